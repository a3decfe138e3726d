package database

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/teamclock/teamclock/internal/apperr"
	"github.com/teamclock/teamclock/internal/models"
)

// CreateUser inserts a user. Emails are stored lower-cased; a duplicate
// email is a Conflict.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	err := r.conn(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict("Email already registered")
	}
	if err != nil {
		return errors.Wrap(err, "failed to insert user")
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.conn(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "User")
	}
	return &user, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.conn(ctx).First(&user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil {
		return nil, notFound(err, "User")
	}
	return &user, nil
}

// GetUsersByIDs returns the users keyed by id. Unknown ids are skipped.
func (r *Repository) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users := []*models.User{}
	if err := r.conn(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query users")
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *Repository) ListUsers(ctx context.Context, filter models.UserFilter) ([]*models.User, error) {
	q := r.conn(ctx).Model(&models.User{})
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	users := []*models.User{}
	if err := page(q, filter.Offset, filter.Limit).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query users")
	}
	return users, nil
}

// UpdateUser applies the non-nil fields of upd and returns the stored user.
func (r *Repository) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	user, err := r.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		user.Name = *upd.Name
	}
	if upd.Role != nil {
		user.Role = *upd.Role
	}
	if upd.Timezone != nil {
		user.Timezone = *upd.Timezone
	}
	if upd.Avatar != nil {
		user.Avatar = *upd.Avatar
	}
	if upd.Company != nil {
		user.Company = *upd.Company
	}
	if upd.WorkingHours != nil {
		user.WorkingHours = *upd.WorkingHours
	}
	if upd.Settings != nil {
		user.Settings = *upd.Settings
	}
	if err := r.conn(ctx).Save(user).Error; err != nil {
		return nil, errors.Wrap(err, "failed to update user")
	}
	return user, nil
}

// SetWorkStatus records the timer-derived status. A non-nil lastActive
// also refreshes last_active.
func (r *Repository) SetWorkStatus(ctx context.Context, id string, status models.WorkStatus, lastActive *time.Time) error {
	updates := map[string]any{"status": status}
	if lastActive != nil {
		updates["last_active"] = lastActive.UTC()
	}
	res := r.conn(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to update user status")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("User not found")
	}
	return nil
}

// MarkIdle moves an active user to idle when nothing touched last_active
// after cutoff. It reports whether the row changed.
func (r *Repository) MarkIdle(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	res := r.conn(ctx).Model(&models.User{}).
		Where("id = ? AND status = ?", id, models.WorkStatusActive).
		Where("last_active IS NULL OR last_active <= ?", cutoff.UTC()).
		Update("status", models.WorkStatusIdle)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "failed to mark user idle")
	}
	return res.RowsAffected == 1, nil
}

// TouchLastActive refreshes last_active without changing status.
func (r *Repository) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	err := r.conn(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_active", at.UTC()).Error
	return errors.Wrap(err, "failed to update last active")
}

// SetPresence records the websocket presence flag.
func (r *Repository) SetPresence(ctx context.Context, id string, online bool, at time.Time) error {
	err := r.conn(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]any{"online": online, "last_seen_at": at.UTC()}).Error
	return errors.Wrap(err, "failed to update presence")
}

// ResetPresence marks every user offline. Presence is process-local, so a
// fresh process starts with nobody connected.
func (r *Repository) ResetPresence(ctx context.Context) error {
	err := r.conn(ctx).Model(&models.User{}).Where("online = ?", true).Update("online", false).Error
	return errors.Wrap(err, "failed to reset presence")
}

func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	res := r.conn(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to delete user")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("User not found")
	}
	return nil
}

// TeamCounters counts users by role and by work status.
func (r *Repository) TeamCounters(ctx context.Context) (*models.TeamCounters, error) {
	type row struct {
		Label string
		Count int64
	}
	out := &models.TeamCounters{
		ByRole:   map[string]int64{},
		ByStatus: map[string]int64{},
	}

	var byRole []row
	if err := r.conn(ctx).Model(&models.User{}).
		Select("role AS label, COUNT(*) AS count").Group("role").Scan(&byRole).Error; err != nil {
		return nil, errors.Wrap(err, "failed to count users by role")
	}
	for _, rr := range byRole {
		out.ByRole[rr.Label] = rr.Count
		out.Total += rr.Count
	}

	var byStatus []row
	if err := r.conn(ctx).Model(&models.User{}).
		Select("status AS label, COUNT(*) AS count").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, errors.Wrap(err, "failed to count users by status")
	}
	for _, rr := range byStatus {
		out.ByStatus[rr.Label] = rr.Count
	}

	if err := r.conn(ctx).Model(&models.User{}).Where("online = ?", true).Count(&out.Online).Error; err != nil {
		return nil, errors.Wrap(err, "failed to count online users")
	}
	return out, nil
}
