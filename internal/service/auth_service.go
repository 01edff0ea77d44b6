package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/gate-checkin/internal/auth"
	"github.com/spec-kit/gate-checkin/internal/clock"
	"github.com/spec-kit/gate-checkin/internal/config"
	"github.com/spec-kit/gate-checkin/internal/domain"
	"github.com/spec-kit/gate-checkin/internal/repository"
	apperrors "github.com/spec-kit/gate-checkin/pkg/util/errorutil"
)

// AuthService coordinates sign-up and login flows.
type AuthService struct {
	users      repository.UserRepository
	gate       *auth.Gate
	tokenMgr   *auth.TokenManager
	clock      clock.Clock
	logger     *zap.Logger
	bcryptCost int
	inviteCode string
	defaults   config.AuthConfig
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Gate     *auth.Gate
	Clock    clock.Clock
	Logger   *zap.Logger
}

// RegisterInput is the sign-up payload.
type RegisterInput struct {
	Name       string      `json:"name" validate:"required,max=120"`
	Email      string      `json:"email" validate:"required,email"`
	Password   string      `json:"password" validate:"required,min=6"`
	Role       domain.Role `json:"role" validate:"omitempty,oneof=organizer attendee"`
	InviteCode string      `json:"invite_code"`
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		gate:       deps.Gate,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL()),
		clock:      deps.Clock,
		logger:     logger,
		bcryptCost: cfg.Auth.BcryptCost,
		inviteCode: cfg.Auth.OrganizerInviteCode,
		defaults:   cfg.Auth,
	}
}

// Register creates an account. Organizer accounts need the invite code.
func (s *AuthService) Register(ctx context.Context, p *auth.Principal, in RegisterInput) (*domain.User, domain.Token, error) {
	if err := s.gate.Check(p, auth.CapAuthenticate); err != nil {
		return nil, domain.Token{}, err
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Role == "" {
		in.Role = domain.RoleAttendee
	}
	if err := apperrors.ValidateStruct("invalid sign-up", in); err != nil {
		return nil, domain.Token{}, err
	}
	if in.Role == domain.RoleOrganizer && !s.inviteMatches(in.InviteCode) {
		return nil, domain.Token{}, apperrors.NewForbidden("invalid organizer invite code")
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, domain.Token{}, apperrors.NewValidationError("invalid sign-up", map[string]any{"password": "max"})
	}
	if err != nil {
		return nil, domain.Token{}, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.Token{}, apperrors.NewConflict("email already registered", map[string]any{"email": in.Email})
		}
		return nil, domain.Token{}, storageError("create user", err)
	}

	token, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, domain.Token{}, apperrors.NewInternalError(err)
	}
	s.logger.Info("account registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, token, nil
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, p *auth.Principal, email, password string) (*domain.User, domain.Token, error) {
	if err := s.gate.Check(p, auth.CapAuthenticate); err != nil {
		return nil, domain.Token{}, err
	}

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if isNotFound(err) {
			auth.CompareDummy(password)
			return nil, domain.Token{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, domain.Token{}, storageError("get user", err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, domain.Token{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, domain.Token{}, apperrors.NewInternalError(err)
	}
	return user, token, nil
}

// PrincipalFor resolves a principal from credentials, for tools that act
// without an HTTP session.
func (s *AuthService) PrincipalFor(ctx context.Context, email, password string) (*auth.Principal, error) {
	user, _, err := s.Login(ctx, auth.Guest(), email, password)
	if err != nil {
		return nil, err
	}
	return &auth.Principal{UserID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role}, nil
}

// SeedDefaultOrganizer creates the configured organizer when no account exists.
func (s *AuthService) SeedDefaultOrganizer(ctx context.Context) error {
	n, err := s.users.Count(ctx)
	if err != nil {
		return storageError("count users", err)
	}
	if n > 0 {
		return nil
	}

	hash, err := auth.HashPassword(s.defaults.DefaultOrganizerPass, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Name:         s.defaults.DefaultOrganizerName,
		Email:        normalizeEmail(s.defaults.DefaultOrganizerEmail),
		PasswordHash: hash,
		Role:         domain.RoleOrganizer,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return storageError("seed organizer", err)
	}
	s.logger.Info("seeded default organizer", zap.String("email", user.Email))
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) inviteMatches(code string) bool {
	if s.inviteCode == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(code)), []byte(s.inviteCode)) == 1
}
