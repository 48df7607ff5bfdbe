package apperror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without internal error",
			err:  ErrNotFound,
			want: "not_found: Resource not found",
		},
		{
			name: "with internal error",
			err:  ErrDatabase.WithInternal(errors.New("connection refused")),
			want: "database_error: Database operation failed (connection refused)",
		},
		{
			name: "custom message",
			err:  NewBadRequest("source node id is required"),
			want: "bad_request: source node id is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWithInternalPreservesSentinel(t *testing.T) {
	inner := errors.New("boom")
	err := ErrDatabase.WithInternal(inner)

	assert.Equal(t, ErrDatabase.Code, err.Code)
	assert.Equal(t, ErrDatabase.HTTPStatus, err.HTTPStatus)
	assert.Equal(t, inner, errors.Unwrap(err))

	// The sentinel itself must stay untouched.
	assert.Nil(t, ErrDatabase.Internal)
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("node", "n1")
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus)
	assert.Equal(t, "not_found", err.Code)
	assert.Equal(t, "node 'n1' not found", err.Message)
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ErrNotFound.HTTPStatus)
	assert.Equal(t, http.StatusConflict, ErrConflict.HTTPStatus)
	assert.Equal(t, http.StatusBadRequest, ErrBadRequest.HTTPStatus)
	assert.Equal(t, http.StatusUnauthorized, ErrUnauthorized.HTTPStatus)
	assert.Equal(t, http.StatusInternalServerError, ErrInternal.HTTPStatus)
}
