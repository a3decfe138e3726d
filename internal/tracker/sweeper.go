package tracker

import (
	"context"
	"sync"
	"time"

	"cdr.dev/slog"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/atomic"

	"github.com/teamclock/teamclock/internal/models"
)

const defaultIdleTimeout = 5 * time.Minute

// SweepIdle marks users idle when they have an open entry but no activity
// for longer than their settings.idle_timeout. It returns how many users
// changed status.
func (s *Service) SweepIdle(ctx context.Context) (int, error) {
	open, err := s.repo.ListOpenEntries(ctx)
	if err != nil {
		return 0, err
	}
	if len(open) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(open))
	for _, e := range open {
		ids = append(ids, e.UserID)
	}
	users, err := s.repo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return 0, err
	}

	now := s.now()
	marked := 0
	for _, e := range open {
		u, ok := users[e.UserID]
		if !ok || u.Status != models.WorkStatusActive {
			continue
		}
		last := e.StartTime
		if u.LastActive != nil && u.LastActive.After(last) {
			last = *u.LastActive
		}
		timeout := time.Duration(u.Settings.IdleTimeout) * time.Minute
		if timeout <= 0 {
			timeout = defaultIdleTimeout
		}
		if now.Sub(last) < timeout {
			continue
		}

		changed, err := s.repo.MarkIdle(ctx, u.ID, now.Add(-timeout))
		if err != nil {
			s.log.Warn(ctx, "mark idle", slog.F("user_id", u.ID), slog.Error(err))
			continue
		}
		if !changed {
			continue
		}
		marked++
		s.metrics.idled.Inc()
		s.notifier.TeamActivity(ctx, u.ID, map[string]any{
			"status":        models.WorkStatusIdle,
			"time_entry_id": e.ID,
			"idle_since":    last,
		})
	}
	if marked > 0 {
		s.log.Info(ctx, "idle sweep", slog.F("marked", marked))
	}
	return marked, nil
}

// Sweeper runs SweepIdle on a cron schedule.
type Sweeper struct {
	svc      *Service
	spec     string
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
}

func NewSweeper(svc *Service, spec string) *Sweeper {
	return &Sweeper{
		svc:      svc,
		spec:     spec,
		stopChan: make(chan struct{}),
	}
}

// Start blocks until ctx is done or Stop is called.
func (w *Sweeper) Start(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return errors.New("sweeper is already running")
	}
	defer w.running.Store(false)

	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(w.spec, func() {
		if _, err := w.svc.SweepIdle(ctx); err != nil {
			w.svc.log.Error(ctx, "idle sweep failed", slog.Error(err))
		}
	})
	if err != nil {
		return errors.Wrapf(err, "invalid idle sweep schedule %q", w.spec)
	}

	w.svc.log.Info(ctx, "starting idle sweeper", slog.F("schedule", w.spec))
	c.Start()
	defer func() { <-c.Stop().Done() }()

	select {
	case <-ctx.Done():
		w.svc.log.Info(ctx, "idle sweeper stopped by context")
		return nil
	case <-w.stopChan:
		w.svc.log.Info(ctx, "idle sweeper stopped")
		return nil
	}
}

func (w *Sweeper) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
}

func (w *Sweeper) IsRunning() bool {
	return w.running.Load()
}
