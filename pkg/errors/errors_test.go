package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesWrappedAppError(t *testing.T) {
	base := Unauthorized("token rejected", nil)
	wrapped := fmt.Errorf("calling backend: %w", base)

	assert.True(t, Is(wrapped, "UNAUTHORIZED"))
	assert.False(t, Is(wrapped, "NOT_FOUND"))
	assert.False(t, Is(fmt.Errorf("plain"), "UNAUTHORIZED"))
	assert.False(t, Is(nil, "UNAUTHORIZED"))
}

func TestConstructorsCarryStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NotFound("Message", nil).Status)
	assert.Equal(t, http.StatusBadRequest, BadRequest("bad", nil).Status)
	assert.Equal(t, http.StatusUnauthorized, Unauthorized("no", nil).Status)
	assert.Equal(t, http.StatusForbidden, Forbidden("no", nil).Status)
	assert.Equal(t, http.StatusServiceUnavailable, Unavailable("down", nil).Status)
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := fmt.Errorf("tcp reset")
	err := Unavailable("backend unreachable", cause)
	assert.Equal(t, cause, err.Unwrap())
	assert.Equal(t, "UNAVAILABLE: backend unreachable", err.Error())
}
