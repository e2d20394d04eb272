package handler

import (
	"github.com/labstack/echo/v4"

	"bidchat/internal/adapter/api/middleware"
	"bidchat/internal/usecase"
	"bidchat/pkg/response"
)

type AuthHandler struct {
	authUseCase *usecase.AuthUseCase
	chatService *usecase.ChatService
}

func NewAuthHandler(authUseCase *usecase.AuthUseCase, chatService *usecase.ChatService) *AuthHandler {
	return &AuthHandler{
		authUseCase: authUseCase,
		chatService: chatService,
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
}

type authResponse struct {
	Token     string `json:"token"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	AdminType string `json:"adminType"`
}

// Login authenticates against the remote backend and activates the chat
// session for the user in the same turn, so the UI needs no second call.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	result, err := h.authUseCase.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return response.Error(c, err)
	}

	if _, err := h.chatService.Start(result.Session); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, authResponse{
		Token:     result.Token,
		Email:     result.Session.Email,
		FirstName: result.Session.FirstName,
		LastName:  result.Session.LastName,
		AdminType: result.Session.AdminType,
	})
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	result, err := h.authUseCase.Register(c.Request().Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		return response.Error(c, err)
	}

	if _, err := h.chatService.Start(result.Session); err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, authResponse{
		Token:     result.Token,
		Email:     result.Session.Email,
		FirstName: result.Session.FirstName,
		LastName:  result.Session.LastName,
		AdminType: result.Session.AdminType,
	})
}

// Logout drops the gateway session and releases the chat subscriptions and
// pollers bound to it.
func (h *AuthHandler) Logout(c echo.Context) error {
	session := middleware.SessionFrom(c)
	if session != nil {
		h.chatService.StopFor(session.Email)
	}
	if token, ok := c.Get("token").(string); ok {
		h.authUseCase.Logout(token)
	}
	return response.Success(c, map[string]string{"status": "logged out"})
}

// Me reports the authenticated identity. The admin flag is re-verified with
// the backend rather than trusted from the cached session.
func (h *AuthHandler) Me(c echo.Context) error {
	session := middleware.SessionFrom(c)

	isAdmin, err := h.authUseCase.CheckAdmin(c.Request().Context(), session)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"email":     session.Email,
		"firstName": session.FirstName,
		"lastName":  session.LastName,
		"adminType": session.AdminType,
		"isAdmin":   isAdmin,
	})
}
