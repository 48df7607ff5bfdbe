package users

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ai4kg/server/pkg/apperror"
	"github.com/ai4kg/server/pkg/auth"
	"github.com/ai4kg/server/pkg/logger"
)

// Service implements account registration and login.
type Service struct {
	repo   Store
	issuer *auth.TokenIssuer
	log    *slog.Logger
}

// NewService creates a user service.
func NewService(repo Store, issuer *auth.TokenIssuer, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		issuer: issuer,
		log:    log.With(logger.Scope("users.service")),
	}
}

// Register creates an account and returns a fresh token for it.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, apperror.NewBadRequest("username, email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.NewInternal("hash password", err)
	}

	u := &User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.log.Info("user registered", slog.String("username", u.Username))
	return s.tokenFor(u)
}

// Login verifies credentials and returns a token. A missing user and a
// wrong password are reported identically.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	u, err := s.repo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, apperror.ErrUnauthorized.WithMessage("invalid username or password")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return nil, apperror.ErrUnauthorized.WithMessage("invalid username or password")
	}
	return s.tokenFor(u)
}

// Me returns the account behind an authenticated request.
func (s *Service) Me(ctx context.Context, user *auth.User) (*UserResponse, error) {
	id, err := uuid.Parse(user.ID)
	if err != nil {
		return nil, apperror.ErrUnauthorized
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := u.ToResponse()
	return &resp, nil
}

func (s *Service) tokenFor(u *User) (*TokenResponse, error) {
	token, err := s.issuer.Issue(u.ID.String(), u.Username)
	if err != nil {
		return nil, apperror.NewInternal("issue token", err)
	}
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        u.ToResponse(),
	}, nil
}
