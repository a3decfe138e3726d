// Package integration connects users to external tools and runs actions
// against the connectors they stored.
package integration

import (
	"context"

	"cdr.dev/slog"
	"github.com/pkg/errors"

	"github.com/teamclock/teamclock/internal/apperr"
	"github.com/teamclock/teamclock/internal/database"
	"github.com/teamclock/teamclock/internal/models"
	"github.com/teamclock/teamclock/pkg/connector"
	"github.com/teamclock/teamclock/pkg/integrations/common"
)

// Factory builds a provider from a stored config.
type Factory func(kind common.Kind, cfg map[string]string) (common.Provider, error)

type Options struct {
	Connector connector.Options
	// Factory replaces connector.New, mostly for tests
	Factory Factory
	Logger  slog.Logger
}

type Service struct {
	repo    *database.Repository
	factory Factory
	log     slog.Logger
}

func NewService(repo *database.Repository, opts Options) *Service {
	log := opts.Logger.Named("integration")
	factory := opts.Factory
	if factory == nil {
		copts := opts.Connector
		copts.Logger = log
		factory = func(kind common.Kind, cfg map[string]string) (common.Provider, error) {
			return connector.New(kind, cfg, copts)
		}
	}
	return &Service{repo: repo, factory: factory, log: log}
}

// Connection is the outcome of a successful Connect.
type Connection struct {
	Integration  models.Integration  `json:"integration"`
	Verification common.Verification `json:"verification"`
}

// Connect verifies cfg against the tool and stores it as the user's active
// connector of that kind, replacing any earlier one.
func (s *Service) Connect(ctx context.Context, userID string, kind models.IntegrationKind, cfg map[string]string) (*Connection, error) {
	if !kind.Valid() {
		return nil, apperr.Invalid("unknown integration type: %s", kind)
	}
	p, err := s.factory(common.Kind(kind), cfg)
	if err != nil {
		return nil, err
	}
	v, err := p.Verify(ctx)
	if err != nil {
		s.log.Info(ctx, "integration verification failed",
			slog.F("user_id", userID),
			slog.F("type", kind),
			slog.Error(err))
		return nil, err
	}

	in := &models.Integration{UserID: userID, Type: kind, Config: cfg}
	if err := s.repo.UpsertIntegration(ctx, in); err != nil {
		return nil, errors.Wrap(err, "failed to store integration")
	}
	s.log.Info(ctx, "integration connected", slog.F("user_id", userID), slog.F("type", kind))
	return &Connection{Integration: in.Masked(), Verification: *v}, nil
}

// List returns the user's active connectors with secrets masked.
func (s *Service) List(ctx context.Context, userID string) ([]models.Integration, error) {
	ins, err := s.repo.ListIntegrations(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Integration, 0, len(ins))
	for _, in := range ins {
		out = append(out, in.Masked())
	}
	return out, nil
}

// Invoke runs action with the user's active connector of kind.
func (s *Service) Invoke(ctx context.Context, userID string, kind models.IntegrationKind, action common.Action) (*common.Result, error) {
	in, err := s.repo.GetActiveIntegration(ctx, userID, kind)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound("%s integration not found", displayName(kind))
		}
		return nil, err
	}
	p, err := s.factory(common.Kind(kind), in.Config)
	if err != nil {
		return nil, err
	}

	res, err := p.Perform(ctx, action)
	if err != nil {
		s.log.Warn(ctx, "integration action failed",
			slog.F("user_id", userID),
			slog.F("type", kind),
			slog.F("action", action.ActionName()),
			slog.Error(err))
		return nil, err
	}
	return res, nil
}

// Disconnect deactivates one of the user's connectors.
func (s *Service) Disconnect(ctx context.Context, userID, id string) error {
	if err := s.repo.DeactivateIntegration(ctx, id, userID); err != nil {
		return err
	}
	s.log.Info(ctx, "integration disconnected", slog.F("user_id", userID), slog.F("integration_id", id))
	return nil
}

func displayName(kind models.IntegrationKind) string {
	switch kind {
	case models.IntegrationSlack:
		return "Slack"
	case models.IntegrationTrello:
		return "Trello"
	case models.IntegrationGitHub:
		return "GitHub"
	}
	return string(kind)
}
