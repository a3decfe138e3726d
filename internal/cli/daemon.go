package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/teamclock/teamclock/internal/daemon"
	"github.com/teamclock/teamclock/pkg/utils"
)

func (r *root) stopCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := r.loadConfig()
			if err != nil {
				return err
			}
			pid, err := daemon.New(cfg.Daemon.PIDFile).Stop(timeout)
			if errors.Is(err, daemon.ErrNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "Server is not running")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server stopped (PID: %d)\n", pid)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "how long to wait for the server to exit")
	return cmd
}

func (r *root) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the server is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := r.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			dm := daemon.New(cfg.Daemon.PIDFile)
			running, pid, err := dm.IsRunning()
			if err != nil {
				return err
			}
			if !running {
				fmt.Fprintln(out, "Status: Not running")
				return nil
			}

			fmt.Fprintf(out, "Status: Running (PID: %d)\n", pid)
			if info, err := os.Stat(dm.PIDFile()); err == nil {
				fmt.Fprintf(out, "Uptime: %s\n", utils.FormatRoundedUnit(int64(time.Since(info.ModTime()).Seconds())))
			}
			fmt.Fprintf(out, "Address: http://%s\n", cfg.Address())
			fmt.Fprintf(out, "Database: %s\n", cfg.Database.Path)
			return nil
		},
	}
}
