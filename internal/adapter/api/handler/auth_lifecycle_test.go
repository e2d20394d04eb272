package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidchat/internal/adapter/api"
	"bidchat/internal/domain/entity"
	"bidchat/internal/domain/repository"
	"bidchat/internal/infrastructure/polling"
	"bidchat/internal/infrastructure/script"
	"bidchat/internal/usecase"
)

// Subscriptions are bound to the service lifetime, not the login request:
// net/http cancels the request context the moment the handler returns, and
// the poller started by login must keep fetching long after that.
func TestPollingOutlivesLoginRequest(t *testing.T) {
	var polls atomic.Int64

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("action") {
		case "loginUser":
			w.Write([]byte(`{"success":true,"token":"up-token","firstName":"Alice","lastName":"Smith"}`))
		case "getChatMessages":
			polls.Add(1)
			w.Write([]byte(`{"success":true,"messages":[]}`))
		default:
			w.Write([]byte(`{"success":true}`))
		}
	}))
	t.Cleanup(backend.Close)

	client := script.NewClient(backend.URL)
	factory := func(ctx context.Context, session *entity.Session) (repository.ChatChannel, error) {
		return polling.NewChannel(client, session.Email, session.Token, session.IsAdmin(),
			25*time.Millisecond, time.Hour), nil
	}

	auth := usecase.NewAuthUseCase(client, usecase.NewSessionStore(), "lifecycle-test-secret", 3600)
	chat := usecase.NewChatService(context.Background(), factory, discardSink{})
	t.Cleanup(chat.StopAll)

	e := echo.New()
	e.Validator = api.NewValidator()
	e.POST("/api/v1/auth/login", NewAuthHandler(auth, chat).Login)

	gateway := httptest.NewServer(e)
	t.Cleanup(gateway.Close)

	resp, err := http.Post(gateway.URL+"/api/v1/auth/login", echo.MIMEApplicationJSON,
		strings.NewReader(`{"email":"alice@example.com","password":"pw"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Several poll cycles must land after the request context died.
	deadline := time.Now().Add(2 * time.Second)
	for polls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.GreaterOrEqual(t, polls.Load(), int64(3))
}
