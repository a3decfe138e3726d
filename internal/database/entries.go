package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/teamclock/teamclock/internal/apperr"
	"github.com/teamclock/teamclock/internal/models"
)

// CreateOpenEntry inserts an entry without an end time. The partial unique
// index rejects it when the user already has an open entry.
func (r *Repository) CreateOpenEntry(ctx context.Context, e *models.TimeEntry) error {
	e.EndTime = nil
	e.Duration = nil
	err := r.conn(ctx).Create(e).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict("User already has an active time entry")
	}
	if err != nil {
		return errors.Wrap(err, "failed to insert time entry")
	}
	return nil
}

// CreateClosedEntry inserts an entry that already has an end time and
// duration, such as a manual entry.
func (r *Repository) CreateClosedEntry(ctx context.Context, e *models.TimeEntry) error {
	if e.EndTime == nil || e.Duration == nil {
		return errors.New("closed entry requires end time and duration")
	}
	if err := r.conn(ctx).Create(e).Error; err != nil {
		return errors.Wrap(err, "failed to insert time entry")
	}
	return nil
}

// GetEntryForUser loads an entry owned by userID. Entries owned by someone
// else are reported as missing.
func (r *Repository) GetEntryForUser(ctx context.Context, id, userID string) (*models.TimeEntry, error) {
	var e models.TimeEntry
	err := r.conn(ctx).First(&e, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		return nil, notFound(err, "Time entry")
	}
	return &e, nil
}

// GetOpenEntry returns the user's open entry, or nil when there is none.
func (r *Repository) GetOpenEntry(ctx context.Context, userID string) (*models.TimeEntry, error) {
	var e models.TimeEntry
	err := r.conn(ctx).Where("user_id = ? AND end_time IS NULL", userID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get active time entry")
	}
	return &e, nil
}

// ListOpenEntries returns every open entry.
func (r *Repository) ListOpenEntries(ctx context.Context) ([]*models.TimeEntry, error) {
	entries := []*models.TimeEntry{}
	if err := r.conn(ctx).Where("end_time IS NULL").Find(&entries).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query open entries")
	}
	return entries, nil
}

// CloseEntry sets end time and duration only if the entry is still open.
// Losing that race is a Conflict, so hours are accrued at most once.
func (r *Repository) CloseEntry(ctx context.Context, id string, end time.Time, duration int64) error {
	res := r.conn(ctx).Model(&models.TimeEntry{}).
		Where("id = ? AND end_time IS NULL", id).
		Updates(map[string]any{"end_time": end.UTC(), "duration": duration})
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to close time entry")
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("Time entry already stopped")
	}
	return nil
}

// SaveEntryFields writes the named columns of e.
func (r *Repository) SaveEntryFields(ctx context.Context, e *models.TimeEntry, columns ...string) error {
	if len(columns) == 0 {
		return nil
	}
	err := r.conn(ctx).Model(e).Select(columns).Updates(e).Error
	return errors.Wrap(err, "failed to update time entry")
}

// ListEntries returns entries newest first.
func (r *Repository) ListEntries(ctx context.Context, filter models.EntryFilter) ([]*models.TimeEntry, error) {
	q := r.conn(ctx).Model(&models.TimeEntry{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.ProjectID != "" {
		q = q.Where("project_id = ?", filter.ProjectID)
	}
	if filter.From != nil {
		q = q.Where("start_time >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		q = q.Where("start_time <= ?", filter.To.UTC())
	}
	entries := []*models.TimeEntry{}
	if err := page(q, filter.Offset, filter.Limit).Order("start_time DESC").Find(&entries).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query time entries")
	}
	return entries, nil
}

// ClosedEntriesBetween returns closed entries starting in [from, to),
// oldest first. Empty id slices mean "any".
func (r *Repository) ClosedEntriesBetween(ctx context.Context, from, to time.Time, userIDs, projectIDs []string) ([]*models.TimeEntry, error) {
	q := r.conn(ctx).Model(&models.TimeEntry{}).
		Where("start_time >= ? AND start_time < ?", from.UTC(), to.UTC()).
		Where("end_time IS NOT NULL")
	if len(userIDs) > 0 {
		q = q.Where("user_id IN ?", userIDs)
	}
	if len(projectIDs) > 0 {
		q = q.Where("project_id IN ?", projectIDs)
	}
	entries := []*models.TimeEntry{}
	if err := q.Order("start_time ASC").Find(&entries).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query time entries")
	}
	return entries, nil
}

func (r *Repository) CreateActivity(ctx context.Context, a *models.ActivityData) error {
	err := r.conn(ctx).Create(a).Error
	return errors.Wrap(err, "failed to insert activity data")
}

func (r *Repository) CreateScreenshot(ctx context.Context, s *models.Screenshot) error {
	err := r.conn(ctx).Create(s).Error
	return errors.Wrap(err, "failed to insert screenshot")
}

// ListScreenshots returns the screenshots of one entry, oldest first.
func (r *Repository) ListScreenshots(ctx context.Context, entryID string) ([]*models.Screenshot, error) {
	shots := []*models.Screenshot{}
	err := r.conn(ctx).Where("time_entry_id = ?", entryID).Order("timestamp ASC").Find(&shots).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query screenshots")
	}
	return shots, nil
}
