package handler

import (
	"github.com/labstack/echo/v4"

	"bidchat/internal/adapter/api/middleware"
	"bidchat/internal/usecase"
	"bidchat/pkg/response"
)

type ChatHandler struct {
	chatService    *usecase.ChatService
	auctionUseCase *usecase.AuctionUseCase
}

func NewChatHandler(chatService *usecase.ChatService, auctionUseCase *usecase.AuctionUseCase) *ChatHandler {
	return &ChatHandler{
		chatService:    chatService,
		auctionUseCase: auctionUseCase,
	}
}

type selectSessionRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type sendMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

type typingRequest struct {
	IsTyping bool `json:"isTyping"`
}

type cannedResponseRequest struct {
	Title string `json:"title"`
	Text  string `json:"text" validate:"required"`
}

// SelectSession points an admin's chat at one bidder's conversation.
func (h *ChatHandler) SelectSession(c echo.Context) error {
	var req selectSessionRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	session := middleware.SessionFrom(c)
	manager, err := h.chatService.ManagerFor(session.Email)
	if err != nil {
		return response.Error(c, err)
	}

	if err := manager.SelectCounterparty(req.Email); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"counterparty": req.Email})
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	session := middleware.SessionFrom(c)
	manager, err := h.chatService.ManagerFor(session.Email)
	if err != nil {
		return response.Error(c, err)
	}

	if err := manager.SendMessage(c.Request().Context(), req.Message); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"status": "sent"})
}

// GetTranscript returns the current conversation, ascending by timestamp.
func (h *ChatHandler) GetTranscript(c echo.Context) error {
	session := middleware.SessionFrom(c)
	manager, err := h.chatService.ManagerFor(session.Email)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, manager.Transcript())
}

// GetActiveUsers lists the active bidders with their unread counts, the
// data behind the admin's session buttons.
func (h *ChatHandler) GetActiveUsers(c echo.Context) error {
	session := middleware.SessionFrom(c)
	manager, err := h.chatService.ManagerFor(session.Email)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"users":        manager.ActiveUsers(),
		"unreadCounts": manager.UnreadCounts(),
	})
}

func (h *ChatHandler) Typing(c echo.Context) error {
	var req typingRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	session := middleware.SessionFrom(c)
	manager, err := h.chatService.ManagerFor(session.Email)
	if err != nil {
		return response.Error(c, err)
	}

	manager.Typing(c.Request().Context(), req.IsTyping)
	return response.Success(c, map[string]string{"status": "ok"})
}

func (h *ChatHandler) AddCannedResponse(c echo.Context) error {
	var req cannedResponseRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	session := middleware.SessionFrom(c)
	if err := h.auctionUseCase.AddCannedResponse(c.Request().Context(), session, req.Title, req.Text); err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, map[string]string{"status": "created"})
}

func (h *ChatHandler) ListCannedResponses(c echo.Context) error {
	session := middleware.SessionFrom(c)
	responses, err := h.auctionUseCase.ListCannedResponses(c.Request().Context(), session)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, responses)
}
