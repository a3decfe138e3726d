package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cdr.dev/slog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teamclock/teamclock/internal/auth"
	"github.com/teamclock/teamclock/internal/daemon"
	"github.com/teamclock/teamclock/internal/database"
	"github.com/teamclock/teamclock/internal/integration"
	"github.com/teamclock/teamclock/internal/presence"
	"github.com/teamclock/teamclock/internal/reporter"
	"github.com/teamclock/teamclock/internal/storage"
	"github.com/teamclock/teamclock/internal/tracker"
	"github.com/teamclock/teamclock/internal/web"
	"github.com/teamclock/teamclock/pkg/connector"
	"github.com/teamclock/teamclock/pkg/integrations/common"
)

const shutdownTimeout = 10 * time.Second

func (r *root) serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and the idle sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := r.loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				if err := cfg.SetWebPort(port); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return errors.Wrap(err, "invalid configuration")
			}

			log, closeLog := newLogger(cfg.Log, cmd.ErrOrStderr())
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return r.serve(ctx, log)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides web.port)")
	return cmd
}

func (r *root) serve(ctx context.Context, log slog.Logger) error {
	cfg := r.cfg

	dm := daemon.New(cfg.Daemon.PIDFile)
	if err := dm.Acquire(); err != nil {
		return err
	}
	defer func() { _ = dm.RemovePID() }()

	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Initialize(); err != nil {
		return err
	}
	repo := database.NewRepository(db)

	// Presence lives in memory only; flags left by a previous process are stale.
	if err := repo.ResetPresence(ctx); err != nil {
		return err
	}

	shots, err := storage.NewScreenshots(cfg.Storage.ScreenshotDir, cfg.Storage.PublicPrefix)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pres := presence.New(presence.Options{
		Logger:       log,
		WriteTimeout: cfg.Web.WriteTimeout,
		Registerer:   reg,
	})
	defer pres.Close()

	trackerSvc := tracker.NewService(repo, tracker.Options{
		Notifier:    pres,
		Screenshots: shots,
		Logger:      log,
		Registerer:  reg,
	})

	web.Version = version
	srv := web.NewServer(cfg, web.Deps{
		Repo: repo,
		Auth: auth.New(repo, auth.Options{
			Secret:     cfg.Auth.Secret,
			AccessTTL:  cfg.Auth.AccessTTL,
			RefreshTTL: cfg.Auth.RefreshTTL,
			Logger:     log,
		}),
		Tracker: trackerSvc,
		Reporter: reporter.New(repo, reporter.Options{
			Location: cfg.Location(),
			Logger:   log,
		}),
		Presence: pres,
		Integrations: integration.NewService(repo, integration.Options{
			Connector: connector.Options{Options: common.Options{
				Retry: common.RetryOptions{
					Timeout:    cfg.Integrations.Timeout,
					MaxRetries: cfg.Integrations.MaxRetries,
				},
			}},
			Logger: log,
		}),
		Screenshots: shots,
		Registry:    reg,
		Logger:      log,
	})

	log.Info(ctx, "starting teamclock",
		slog.F("version", version),
		slog.F("address", cfg.Address()),
		slog.F("pid_file", dm.PIDFile()))
	log.Debug(ctx, cfg.String())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		// Websocket sessions are hijacked and not covered by Shutdown.
		_ = pres.Close()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if spec := cfg.Tracker.IdleSweep; spec != "" {
		sweeper := tracker.NewSweeper(trackerSvc, spec)
		g.Go(func() error { return sweeper.Start(ctx) })
	}

	err = g.Wait()
	log.Info(context.Background(), "teamclock stopped")
	return err
}
