// Package auth issues and verifies bearer tokens and exposes the role gates
// used by the HTTP layer.
package auth

import (
	"context"
	"time"

	"cdr.dev/slog"
	"github.com/coder/quartz"

	"github.com/teamclock/teamclock/internal/apperr"
	"github.com/teamclock/teamclock/internal/database"
	"github.com/teamclock/teamclock/internal/models"
)

type Options struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Clock      quartz.Clock
	Logger     slog.Logger
}

type Service struct {
	repo       *database.Repository
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      quartz.Clock
	log        slog.Logger
}

func New(repo *database.Repository, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.AccessTTL == 0 {
		opts.AccessTTL = 30 * time.Minute
	}
	if opts.RefreshTTL == 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Service{
		repo:       repo,
		secret:     []byte(opts.Secret),
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		clock:      opts.Clock,
		log:        opts.Logger.Named("auth"),
	}
}

type RegisterRequest struct {
	Name     string      `json:"name" validate:"required,min=1,max=200"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=6,max=72"`
	Company  string      `json:"company,omitempty"`
	Role     models.Role `json:"role,omitempty" validate:"omitempty,oneof=admin manager user"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is the token pair returned by Register and Login.
type Session struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	TokenType    string       `json:"token_type"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         *models.User `json:"user,omitempty"`
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Company:      req.Company,
		Role:         req.Role,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "user registered", slog.F("user_id", user.ID), slog.F("role", user.Role))
	return s.issue(user)
}

// Login verifies credentials. An unknown email and a wrong password are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}
	if user == nil || !CheckPassword(user.PasswordHash, req.Password) {
		return nil, apperr.Unauthenticated("Incorrect email or password")
	}

	now := s.clock.Now().UTC()
	if err := s.repo.SetWorkStatus(ctx, user.ID, models.WorkStatusActive, &now); err != nil {
		return nil, err
	}
	user.Status = models.WorkStatusActive
	user.LastActive = &now
	return s.issue(user)
}

func (s *Service) Logout(ctx context.Context, user *models.User) error {
	return s.repo.SetWorkStatus(ctx, user.ID, models.WorkStatusOffline, nil)
}

// Refresh exchanges a refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	userID, err := s.parse(refreshToken, RefreshToken)
	if err != nil {
		return nil, err
	}
	if _, err := s.lookup(ctx, userID); err != nil {
		return nil, err
	}
	access, exp, err := s.sign(userID, AccessToken, s.accessTTL)
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: access, TokenType: "bearer", ExpiresAt: exp}, nil
}

// Resolve turns an access token into its user.
func (s *Service) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperr.Unauthenticated("Not authenticated")
	}
	userID, err := s.parse(token, AccessToken)
	if err != nil {
		return nil, err
	}
	return s.lookup(ctx, userID)
}

func (s *Service) lookup(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.Unauthenticated("Could not validate credentials")
	}
	return user, err
}

func (s *Service) issue(user *models.User) (*Session, error) {
	access, exp, err := s.sign(user.ID, AccessToken, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.sign(user.ID, RefreshToken, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    exp,
		User:         user,
	}, nil
}

func RequireAdmin(u *models.User) error {
	if u == nil {
		return apperr.Unauthenticated("Not authenticated")
	}
	if !u.IsAdmin() {
		return apperr.Forbidden("Admin access required")
	}
	return nil
}

func RequireAdminOrManager(u *models.User) error {
	if u == nil {
		return apperr.Unauthenticated("Not authenticated")
	}
	if !u.IsAdminOrManager() {
		return apperr.Forbidden("Admin or manager access required")
	}
	return nil
}
