package database

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/teamclock/teamclock/internal/apperr"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Repository handles all database operations. A Repository obtained from
// WithTx runs every call inside that transaction.
//
// sqlite compares timestamps as text, so every time written or used in a
// range filter is UTC.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db.DB}
}

// WithTx runs fn inside a single transaction. fn must only use the
// repository it is given.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// Ping checks the store is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying sql.DB")
	}
	return sqlDB.PingContext(ctx)
}

func (r *Repository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// notFound maps gorm.ErrRecordNotFound onto the taxonomy and wraps
// anything else.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s not found", what)
	}
	return errors.Wrapf(err, "failed to get %s", what)
}

// page clamps skip/limit to the supported window.
func page(q *gorm.DB, offset, limit int) *gorm.DB {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return q.Offset(offset).Limit(limit)
}
