package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"bidchat/internal/domain/entity"
	"bidchat/internal/usecase"
)

type AuthMiddleware struct {
	auth *usecase.AuthUseCase
}

func NewAuthMiddleware(auth *usecase.AuthUseCase) *AuthMiddleware {
	return &AuthMiddleware{
		auth: auth,
	}
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c)
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is required")
		}

		session, err := m.auth.Authenticate(token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}

		c.Set("session", session)
		c.Set("token", token)
		return next(c)
	}
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter for the websocket upgrade, where the browser cannot set
// headers.
func bearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return c.QueryParam("token")
}

// SessionFrom pulls the authenticated session out of the echo context.
func SessionFrom(c echo.Context) *entity.Session {
	session, _ := c.Get("session").(*entity.Session)
	return session
}
