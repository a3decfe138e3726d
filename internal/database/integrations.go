package database

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/teamclock/teamclock/internal/apperr"
	"github.com/teamclock/teamclock/internal/models"
)

// UpsertIntegration stores the user's connector of the given type. An
// existing record, active or not, is replaced and reactivated.
func (r *Repository) UpsertIntegration(ctx context.Context, in *models.Integration) error {
	var existing models.Integration
	err := r.conn(ctx).Where("user_id = ? AND type = ?", in.UserID, in.Type).First(&existing).Error
	switch {
	case err == nil:
		in.ID = existing.ID
		in.CreatedAt = existing.CreatedAt
		in.Active = true
		return errors.Wrap(r.conn(ctx).Save(in).Error, "failed to update integration")
	case errors.Is(err, gorm.ErrRecordNotFound):
		in.Active = true
		return errors.Wrap(r.conn(ctx).Create(in).Error, "failed to insert integration")
	default:
		return errors.Wrap(err, "failed to look up integration")
	}
}

// ListIntegrations returns the user's active integrations.
func (r *Repository) ListIntegrations(ctx context.Context, userID string) ([]*models.Integration, error) {
	out := []*models.Integration{}
	err := r.conn(ctx).Where("user_id = ? AND active = ?", userID, true).Order("created_at ASC").Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query integrations")
	}
	return out, nil
}

// GetActiveIntegration returns the user's active integration of a type.
func (r *Repository) GetActiveIntegration(ctx context.Context, userID string, kind models.IntegrationKind) (*models.Integration, error) {
	var in models.Integration
	err := r.conn(ctx).Where("user_id = ? AND type = ? AND active = ?", userID, kind, true).First(&in).Error
	if err != nil {
		return nil, notFound(err, "Integration")
	}
	return &in, nil
}

// DeactivateIntegration soft-deletes an integration owned by userID.
func (r *Repository) DeactivateIntegration(ctx context.Context, id, userID string) error {
	res := r.conn(ctx).Model(&models.Integration{}).
		Where("id = ? AND user_id = ? AND active = ?", id, userID, true).
		Update("active", false)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to deactivate integration")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Integration not found")
	}
	return nil
}
