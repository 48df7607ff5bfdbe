package users

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai4kg/server/internal/config"
	"github.com/ai4kg/server/pkg/apperror"
	"github.com/ai4kg/server/pkg/auth"
)

// memUsers is an in-memory Store so the service can be exercised without a
// database. It mirrors the repository's conflict and not-found behavior.
type memUsers struct {
	byID map[uuid.UUID]*User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[uuid.UUID]*User)}
}

func (m *memUsers) Create(_ context.Context, u *User) error {
	for _, existing := range m.byID {
		if existing.Username == u.Username || existing.Email == u.Email {
			return apperror.NewConflict("username or email already registered")
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	m.byID[u.ID] = u
	return nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*User, error) {
	for _, u := range m.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, apperror.NewNotFound("user", username)
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, apperror.NewNotFound("user", id.String())
}

func newUserService(t *testing.T) (*Service, *memUsers) {
	t.Helper()
	store := newMemUsers()
	issuer := auth.NewTokenIssuer(&config.Config{
		Auth: config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Minute},
	})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, issuer, log), store
}

func TestRegisterIssuesToken(t *testing.T) {
	svc, store := newUserService(t)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "hunter2",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, "alice", resp.User.Username)

	stored, err := store.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", stored.PasswordHash, "passwords are never stored in the clear")
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newUserService(t)

	_, err := svc.Register(context.Background(), RegisterRequest{Username: "alice"})
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "a@example.com", Password: "x"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterRequest{Username: "alice", Email: "other@example.com", Password: "x"})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestLogin(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "a@example.com", Password: "hunter2"})
	require.NoError(t, err)

	resp, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "hunter2"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)

	_, wrongPass := svc.Login(ctx, LoginRequest{Username: "alice", Password: "nope"})
	_, noUser := svc.Login(ctx, LoginRequest{Username: "bob", Password: "hunter2"})
	assert.ErrorIs(t, wrongPass, apperror.ErrUnauthorized)
	assert.ErrorIs(t, noUser, apperror.ErrUnauthorized)
	assert.Equal(t, wrongPass.Error(), noUser.Error(),
		"a missing user and a wrong password are indistinguishable")
}

func TestMe(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "a@example.com", Password: "x"})
	require.NoError(t, err)

	me, err := svc.Me(ctx, &auth.User{ID: reg.User.ID, Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", me.Email)

	_, err = svc.Me(ctx, &auth.User{ID: "not-a-uuid"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}
