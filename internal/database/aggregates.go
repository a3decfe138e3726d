package database

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/teamclock/teamclock/internal/models"
)

// Totals is one SUM/COUNT/AVG group over closed time entries.
type Totals struct {
	ID          string
	Seconds     int64
	Entries     int64
	AvgActivity float64
}

// UserTotalsBetween groups closed entries starting in [from, to) by user.
// Uses SQL SUM for efficiency - runtime can do additional calculations
func (r *Repository) UserTotalsBetween(ctx context.Context, from, to time.Time) ([]Totals, error) {
	return r.totals(ctx, "user_id", from, to, "")
}

// ProjectTotalsBetween groups closed entries starting in [from, to) by
// project. A non-empty userID restricts it to that user's entries.
func (r *Repository) ProjectTotalsBetween(ctx context.Context, from, to time.Time, userID string) ([]Totals, error) {
	return r.totals(ctx, "project_id", from, to, userID)
}

func (r *Repository) totals(ctx context.Context, column string, from, to time.Time, userID string) ([]Totals, error) {
	q := r.conn(ctx).Model(&models.TimeEntry{}).
		Select(column+" AS id, COALESCE(SUM(duration), 0) AS seconds, COUNT(*) AS entries, COALESCE(AVG(activity_level), 0) AS avg_activity").
		Where("start_time >= ? AND start_time < ?", from.UTC(), to.UTC()).
		Where("end_time IS NOT NULL")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}

	var rows []Totals
	if err := q.Group(column).Order("seconds DESC").Scan(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to total entries by %s", column)
	}
	return rows, nil
}
