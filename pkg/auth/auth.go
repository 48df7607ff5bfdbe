// Package auth provides bearer-token authentication middleware. Domain
// handlers only ever see the opaque authenticated User it places in the
// request context.
package auth

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/ai4kg/server/internal/config"
	"github.com/ai4kg/server/pkg/apperror"
	"github.com/ai4kg/server/pkg/logger"
)

var Module = fx.Module("auth",
	fx.Provide(NewMiddleware),
	fx.Provide(NewTokenIssuer),
)

// User represents an authenticated user. The ID is the ownership key every
// domain operation is scoped by.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type contextKey string

const userContextKey contextKey = "auth_user"

// GetUser retrieves the authenticated user from the Echo context.
func GetUser(c echo.Context) *User {
	if user, ok := c.Get(string(userContextKey)).(*User); ok {
		return user
	}
	return nil
}

// SetUser stores the authenticated user in the Echo context. Exposed for
// handler tests.
func SetUser(c echo.Context, u *User) {
	c.Set(string(userContextKey), u)
}

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates a token issuer from the auth config.
func NewTokenIssuer(cfg *config.Config) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(cfg.Auth.JWTSecret),
		ttl:    cfg.Auth.TokenTTL,
	}
}

// Issue returns a signed HS256 token with the user id as subject.
func (t *TokenIssuer) Issue(userID, username string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      userID,
		"username": username,
		"iat":      now.Unix(),
		"exp":      now.Add(t.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning the embedded user.
func (t *TokenIssuer) Verify(tokenString string) (*User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperror.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperror.ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, apperror.ErrInvalidToken
	}
	username, _ := claims["username"].(string)

	return &User{ID: sub, Username: username}, nil
}

// Middleware handles authentication for routes.
type Middleware struct {
	issuer *TokenIssuer
	log    *slog.Logger
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(issuer *TokenIssuer, log *slog.Logger) *Middleware {
	return &Middleware{
		issuer: issuer,
		log:    log.With(logger.Scope("auth")),
	}
}

// RequireAuth returns middleware that requires a valid bearer token.
func (m *Middleware) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return apperror.ErrUnauthorized
			}

			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				return apperror.ErrUnauthorized.WithMessage("authorization header must be a bearer token")
			}

			user, err := m.issuer.Verify(tokenString)
			if err != nil {
				m.log.Warn("authentication failed", logger.Error(err))
				return err
			}

			SetUser(c, user)
			return next(c)
		}
	}
}
