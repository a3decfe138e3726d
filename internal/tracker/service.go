// Package tracker is the timer engine: it owns the lifecycle of time
// entries and keeps project totals and user work status in step with it.
package tracker

import (
	"context"
	"io"
	"time"

	"cdr.dev/slog"
	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/teamclock/teamclock/internal/apperr"
	"github.com/teamclock/teamclock/internal/database"
	"github.com/teamclock/teamclock/internal/models"
)

// Notifier receives timer events for real-time fan-out. Delivery is best
// effort; it never fails the operation that triggered it.
type Notifier interface {
	TimeEntryUpdate(ctx context.Context, userID, action string, timeEntry any) int
	TeamActivity(ctx context.Context, userID string, activity any) int
}

// ScreenshotStore persists uploaded screenshot files.
type ScreenshotStore interface {
	Save(userID, entryID, filename string, r io.Reader) (string, error)
}

type nopNotifier struct{}

func (nopNotifier) TimeEntryUpdate(context.Context, string, string, any) int { return 0 }
func (nopNotifier) TeamActivity(context.Context, string, any) int           { return 0 }

type Options struct {
	Notifier    Notifier
	Screenshots ScreenshotStore
	Clock       quartz.Clock
	Logger      slog.Logger
	Registerer  prometheus.Registerer
}

type Service struct {
	repo        *database.Repository
	notifier    Notifier
	screenshots ScreenshotStore
	clock       quartz.Clock
	log         slog.Logger
	metrics     *metrics
}

func NewService(repo *database.Repository, opts Options) *Service {
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	return &Service{
		repo:        repo,
		notifier:    opts.Notifier,
		screenshots: opts.Screenshots,
		clock:       opts.Clock,
		log:         opts.Logger.Named("tracker"),
		metrics:     newMetrics(opts.Registerer),
	}
}

type StartRequest struct {
	ProjectID   string  `json:"project_id" validate:"required"`
	TaskID      *string `json:"task_id,omitempty"`
	Description string  `json:"description,omitempty" validate:"max=2000"`
}

type ManualRequest struct {
	ProjectID     string    `json:"project_id" validate:"required"`
	TaskID        *string   `json:"task_id,omitempty"`
	StartTime     time.Time `json:"start_time" validate:"required"`
	EndTime       time.Time `json:"end_time" validate:"required"`
	Description   string    `json:"description,omitempty" validate:"max=2000"`
	ActivityLevel *float64  `json:"activity_level,omitempty" validate:"omitempty,gte=0,lte=100"`
}

type ActivityRequest struct {
	TimeEntryID     string     `json:"time_entry_id" validate:"required"`
	Timestamp       *time.Time `json:"timestamp,omitempty"`
	MouseClicks     int        `json:"mouse_clicks" validate:"gte=0"`
	KeyboardStrokes int        `json:"keyboard_strokes" validate:"gte=0"`
	ActiveApp       string     `json:"active_app,omitempty"`
	ActiveURL       string     `json:"active_url,omitempty"`
	ScreenshotURL   string     `json:"screenshot_url,omitempty"`
	ActivityScore   float64    `json:"activity_score" validate:"gte=0,lte=100"`
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// durationSeconds is the whole number of seconds between start and end.
func durationSeconds(start, end time.Time) int64 {
	d := int64(end.Sub(start) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}

// resolveTarget checks the project exists and, when given, that the task
// exists and belongs to it.
func (s *Service) resolveTarget(ctx context.Context, projectID string, taskID *string) error {
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return err
	}
	if taskID == nil || *taskID == "" {
		return nil
	}
	task, err := s.repo.GetTask(ctx, *taskID)
	if err != nil {
		return err
	}
	if task.ProjectID != projectID {
		return apperr.NotFound("Task not found")
	}
	return nil
}

// Start opens a new entry for the user. A user with an open entry gets a
// Conflict; the check and the insert are one atomic store operation.
func (s *Service) Start(ctx context.Context, userID string, req StartRequest) (*models.TimeEntry, error) {
	if err := s.resolveTarget(ctx, req.ProjectID, req.TaskID); err != nil {
		return nil, err
	}

	now := s.now()
	entry := &models.TimeEntry{
		UserID:      userID,
		ProjectID:   req.ProjectID,
		TaskID:      normalizeTaskID(req.TaskID),
		StartTime:   now,
		Description: req.Description,
	}
	err := s.repo.WithTx(ctx, func(tx *database.Repository) error {
		if err := tx.CreateOpenEntry(ctx, entry); err != nil {
			return err
		}
		return tx.SetWorkStatus(ctx, userID, models.WorkStatusActive, &now)
	})
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			s.metrics.conflicts.Inc()
		}
		return nil, err
	}

	s.metrics.starts.Inc()
	s.log.Info(ctx, "timer started",
		slog.F("user_id", userID),
		slog.F("entry_id", entry.ID),
		slog.F("project_id", entry.ProjectID))
	s.notifier.TimeEntryUpdate(ctx, userID, "started", entry)
	return entry, nil
}

// Stop closes the user's open entry and accrues its hours to the project.
func (s *Service) Stop(ctx context.Context, userID, entryID string) (*models.TimeEntry, error) {
	entry, err := s.repo.GetEntryForUser(ctx, entryID, userID)
	if err != nil {
		return nil, err
	}
	if !entry.IsOpen() {
		return nil, apperr.Conflict("Time entry already stopped")
	}

	if err := s.repo.WithTx(ctx, func(tx *database.Repository) error {
		return s.close(ctx, tx, entry, s.now())
	}); err != nil {
		return nil, err
	}

	s.metrics.stops.Inc()
	s.log.Info(ctx, "timer stopped",
		slog.F("user_id", userID),
		slog.F("entry_id", entry.ID),
		slog.F("duration_seconds", *entry.Duration))
	s.notifier.TimeEntryUpdate(ctx, userID, "stopped", entry)
	return entry, nil
}

// close finalizes an open entry inside tx. CloseEntry only succeeds once
// per entry, so hours are never accrued twice.
func (s *Service) close(ctx context.Context, tx *database.Repository, entry *models.TimeEntry, end time.Time) error {
	duration := durationSeconds(entry.StartTime, end)
	if err := tx.CloseEntry(ctx, entry.ID, end, duration); err != nil {
		return err
	}
	entry.EndTime = &end
	entry.Duration = &duration

	if err := s.accrue(ctx, tx, entry); err != nil {
		return err
	}
	return tx.SetWorkStatus(ctx, entry.UserID, models.WorkStatusIdle, nil)
}

// accrue adds a closed entry's hours to its project and task. A project
// deleted while the timer ran is not an error for the timer.
func (s *Service) accrue(ctx context.Context, tx *database.Repository, entry *models.TimeEntry) error {
	hours := entry.Hours()
	if err := tx.AccrueProjectHours(ctx, entry.ProjectID, hours); err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			return err
		}
		s.log.Warn(ctx, "project gone, hours not accrued",
			slog.F("entry_id", entry.ID), slog.F("project_id", entry.ProjectID))
	}
	if entry.TaskID != nil {
		if err := tx.AccrueTaskHours(ctx, *entry.TaskID, hours); err != nil {
			return err
		}
	}
	return nil
}

// RecordManual creates an already-closed entry for a past interval.
func (s *Service) RecordManual(ctx context.Context, userID string, req ManualRequest) (*models.TimeEntry, error) {
	start, end := req.StartTime.UTC(), req.EndTime.UTC()
	duration := durationSeconds(start, end)
	if duration <= 0 {
		return nil, apperr.InvalidRange("End time must be after start time")
	}
	if err := s.resolveTarget(ctx, req.ProjectID, req.TaskID); err != nil {
		return nil, err
	}
	entry := &models.TimeEntry{
		UserID:        userID,
		ProjectID:     req.ProjectID,
		TaskID:        normalizeTaskID(req.TaskID),
		StartTime:     start,
		EndTime:       &end,
		Duration:      &duration,
		Description:   req.Description,
		IsManual:      true,
		ActivityLevel: req.ActivityLevel,
	}
	err := s.repo.WithTx(ctx, func(tx *database.Repository) error {
		if err := tx.CreateClosedEntry(ctx, entry); err != nil {
			return err
		}
		return s.accrue(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "manual entry recorded",
		slog.F("user_id", userID),
		slog.F("entry_id", entry.ID),
		slog.F("duration_seconds", duration))
	s.notifier.TimeEntryUpdate(ctx, userID, "created", entry)
	return entry, nil
}

// Update patches an entry owned by the user. Setting end_time is only
// allowed on an open entry and stops it; end_time can never be cleared.
func (s *Service) Update(ctx context.Context, userID, entryID string, patch models.TimeEntryPatch) (*models.TimeEntry, error) {
	entry, err := s.repo.GetEntryForUser(ctx, entryID, userID)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return entry, nil
	}

	var end time.Time
	if patch.EndTime != nil {
		if !entry.IsOpen() {
			return nil, apperr.Conflict("Time entry already stopped")
		}
		end = patch.EndTime.UTC()
		if durationSeconds(entry.StartTime, end) <= 0 {
			return nil, apperr.InvalidRange("End time must be after start time")
		}
	}

	var columns []string
	if patch.Description != nil {
		entry.Description = *patch.Description
		columns = append(columns, "description")
	}
	if patch.ActivityLevel != nil {
		entry.ActivityLevel = patch.ActivityLevel
		columns = append(columns, "activity_level")
	}
	if patch.AppsUsed != nil {
		entry.AppsUsed = *patch.AppsUsed
		columns = append(columns, "apps_used")
	}
	if patch.URLsVisited != nil {
		entry.URLsVisited = *patch.URLsVisited
		columns = append(columns, "urls_visited")
	}

	err = s.repo.WithTx(ctx, func(tx *database.Repository) error {
		if err := tx.SaveEntryFields(ctx, entry, columns...); err != nil {
			return err
		}
		if patch.EndTime != nil {
			return s.close(ctx, tx, entry, end)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	action := "updated"
	if patch.EndTime != nil {
		action = "stopped"
		s.metrics.stops.Inc()
	}
	s.notifier.TimeEntryUpdate(ctx, userID, action, entry)
	return entry, nil
}

// GetActive returns the user's open entry, or nil.
func (s *Service) GetActive(ctx context.Context, userID string) (*models.TimeEntry, error) {
	return s.repo.GetOpenEntry(ctx, userID)
}

// List returns the user's entries newest first.
func (s *Service) List(ctx context.Context, userID string, filter models.EntryFilter) ([]*models.TimeEntry, error) {
	filter.UserID = userID
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, apperr.InvalidRange("end_date must not be before start_date")
	}
	return s.repo.ListEntries(ctx, filter)
}

// RecordActivity appends a telemetry sample to one of the user's entries.
// Activity on an open entry marks the user active again.
func (s *Service) RecordActivity(ctx context.Context, userID string, req ActivityRequest) (*models.ActivityData, error) {
	entry, err := s.repo.GetEntryForUser(ctx, req.TimeEntryID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ts := now
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}
	sample := &models.ActivityData{
		UserID:          userID,
		TimeEntryID:     entry.ID,
		Timestamp:       ts,
		MouseClicks:     req.MouseClicks,
		KeyboardStrokes: req.KeyboardStrokes,
		ActiveApp:       req.ActiveApp,
		ActiveURL:       req.ActiveURL,
		ScreenshotURL:   req.ScreenshotURL,
		ActivityScore:   req.ActivityScore,
	}
	err = s.repo.WithTx(ctx, func(tx *database.Repository) error {
		if err := tx.CreateActivity(ctx, sample); err != nil {
			return err
		}
		if entry.IsOpen() {
			return tx.SetWorkStatus(ctx, userID, models.WorkStatusActive, &now)
		}
		return tx.TouchLastActive(ctx, userID, now)
	})
	if err != nil {
		return nil, err
	}
	return sample, nil
}

// AddScreenshot stores an uploaded file and links it to the user's entry.
func (s *Service) AddScreenshot(ctx context.Context, userID, entryID, filename string, r io.Reader, activityLevel *float64) (*models.Screenshot, error) {
	if s.screenshots == nil {
		return nil, apperr.Invalid("Screenshot storage is not configured")
	}
	entry, err := s.repo.GetEntryForUser(ctx, entryID, userID)
	if err != nil {
		return nil, err
	}

	url, err := s.screenshots.Save(userID, entry.ID, filename, r)
	if err != nil {
		return nil, err
	}

	shot := &models.Screenshot{
		UserID:        userID,
		TimeEntryID:   entry.ID,
		URL:           url,
		Timestamp:     s.now(),
		ActivityLevel: activityLevel,
	}
	err = s.repo.WithTx(ctx, func(tx *database.Repository) error {
		if err := tx.CreateScreenshot(ctx, shot); err != nil {
			return err
		}
		entry.Screenshots = append(entry.Screenshots, url)
		return tx.SaveEntryFields(ctx, entry, "screenshots")
	})
	if err != nil {
		return nil, err
	}
	return shot, nil
}

func normalizeTaskID(id *string) *string {
	if id == nil || *id == "" {
		return nil
	}
	return id
}
