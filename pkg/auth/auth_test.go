package auth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai4kg/server/internal/config"
	"github.com/ai4kg/server/pkg/apperror"
)

func testIssuer(ttl time.Duration) *TokenIssuer {
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.TokenTTL = ttl
	return NewTokenIssuer(cfg)
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := testIssuer(time.Hour)

	token, err := issuer.Issue("user-1", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	user, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "alice", user.Username)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer := testIssuer(-time.Minute)

	token, err := issuer.Issue("user-1", "alice")
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, apperror.ErrInvalidToken)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := testIssuer(time.Hour).Issue("user-1", "alice")
	require.NoError(t, err)

	other := testIssuer(time.Hour)
	other.secret = []byte("different-secret")

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, apperror.ErrInvalidToken)
}

func TestRequireAuth(t *testing.T) {
	issuer := testIssuer(time.Hour)
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	mw := NewMiddleware(issuer, log)

	token, err := issuer.Issue("user-1", "alice")
	require.NoError(t, err)

	tests := []struct {
		name       string
		authHeader string
		wantErr    bool
	}{
		{"valid bearer token", "Bearer " + token, false},
		{"missing header", "", true},
		{"not a bearer token", "Basic abc", true},
		{"garbage token", "Bearer not-a-jwt", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.authHeader)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var captured *User
			handler := mw.RequireAuth()(func(c echo.Context) error {
				captured = GetUser(c)
				return c.NoContent(http.StatusOK)
			})

			err := handler(c)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, captured)
			} else {
				require.NoError(t, err)
				require.NotNil(t, captured)
				assert.Equal(t, "user-1", captured.ID)
			}
		})
	}
}
