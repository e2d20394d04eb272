package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidchat/internal/domain/entity"
	"bidchat/internal/usecase"
)

const testSecret = "middleware-test-secret"

func mintToken(t *testing.T, sessions *usecase.SessionStore, session *entity.Session) string {
	t.Helper()
	id := "sess-" + session.Email
	claims := jwt.RegisteredClaims{
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	sessions.Put(id, session)
	return signed
}

func authFixture(t *testing.T) (*AuthMiddleware, *usecase.SessionStore) {
	sessions := usecase.NewSessionStore()
	auth := usecase.NewAuthUseCase(nil, sessions, testSecret, 3600)
	return NewAuthMiddleware(auth), sessions
}

func runMiddleware(mw echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, *entity.Session, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var captured *entity.Session
	err := mw(func(c echo.Context) error {
		captured = SessionFrom(c)
		return c.NoContent(http.StatusOK)
	})(c)
	return rec, captured, err
}

func TestAuthenticateRequiresToken(t *testing.T) {
	mw, _ := authFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, _, err := runMiddleware(mw.Authenticate, req)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestAuthenticateRejectsMalformedHeader(t *testing.T) {
	mw, _ := authFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	_, _, err := runMiddleware(mw.Authenticate, req)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestAuthenticateRejectsUnknownSession(t *testing.T) {
	mw, sessions := authFixture(t)
	token := mintToken(t, sessions, &entity.Session{Email: "alice@example.com"})
	sessions.Delete("sess-alice@example.com")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	_, _, err := runMiddleware(mw.Authenticate, req)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestAuthenticateSetsSessionFromBearer(t *testing.T) {
	mw, sessions := authFixture(t)
	token := mintToken(t, sessions, &entity.Session{Email: "alice@example.com", AdminType: "user"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec, session, err := runMiddleware(mw.Authenticate, req)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, session)
	assert.Equal(t, "alice@example.com", session.Email)
}

// The websocket upgrade cannot carry headers from the browser, so the token
// query parameter is accepted when no Authorization header is present.
func TestAuthenticateFallsBackToQueryParam(t *testing.T) {
	mw, sessions := authFixture(t)
	token := mintToken(t, sessions, &entity.Session{Email: "alice@example.com"})

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	rec, session, err := runMiddleware(mw.Authenticate, req)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, session)
}

func TestAdminOnlyForbidsNonAdmin(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("session", &entity.Session{Email: "alice@example.com", AdminType: "user"})

	err := NewAdminMiddleware().AdminOnly(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.Code)
}

func TestAdminOnlyAllowsAdmin(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("session", &entity.Session{Email: "admin@example.com", AdminType: "super"})

	err := NewAdminMiddleware().AdminOnly(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminOnlyRequiresSession(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := NewAdminMiddleware().AdminOnly(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}
