package handler

import (
	"github.com/labstack/echo/v4"

	"bidchat/internal/adapter/api/middleware"
	"bidchat/internal/domain/entity"
	"bidchat/internal/usecase"
	"bidchat/pkg/response"
	"bidchat/pkg/utils"
)

type AuctionHandler struct {
	auctionUseCase *usecase.AuctionUseCase
}

func NewAuctionHandler(auctionUseCase *usecase.AuctionUseCase) *AuctionHandler {
	return &AuctionHandler{
		auctionUseCase: auctionUseCase,
	}
}

type placeBidRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

type toggleBiddingRequest struct {
	Status string `json:"status" validate:"required,oneof=open closed"`
}

type addItemRequest struct {
	Name        string   `json:"itemName" validate:"required"`
	Description string   `json:"itemDescription"`
	Images      []string `json:"images" validate:"max=3,dive,url"`
}

type publishRequest struct {
	Message   string `json:"message" validate:"required"`
	Sender    string `json:"sender" validate:"required"`
	Timestamp int64  `json:"timestamp" validate:"required"`
}

// ListItems returns the catalog, optionally scoped to a category. The
// backend has no paging, so a requested page is cut from the full list here.
func (h *AuctionHandler) ListItems(c echo.Context) error {
	items, err := h.auctionUseCase.ListItems(c.Request().Context(), c.QueryParam("category"))
	if err != nil {
		return response.Error(c, err)
	}

	if c.QueryParam("page") == "" {
		return response.Success(c, items)
	}

	params := utils.GetPaginationParams(c)
	total := len(items)
	start := params.Offset
	if start > total {
		start = total
	}
	end := start + params.PageSize
	if end > total {
		end = total
	}
	return response.Paginated(c, items[start:end], int64(total), params.Page, params.PageSize)
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	var req placeBidRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	session := middleware.SessionFrom(c)
	if err := h.auctionUseCase.PlaceBid(c.Request().Context(), session, c.Param("id"), req.Amount); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"status": "bid placed"})
}

func (h *AuctionHandler) ToggleBidding(c echo.Context) error {
	var req toggleBiddingRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	session := middleware.SessionFrom(c)
	if err := h.auctionUseCase.ToggleBidding(c.Request().Context(), session, c.Param("id"), req.Status); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"status": req.Status})
}

func (h *AuctionHandler) AddItem(c echo.Context) error {
	var req addItemRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	session := middleware.SessionFrom(c)
	err := h.auctionUseCase.AddItem(c.Request().Context(), session, usecase.AddItemInput{
		Name:        req.Name,
		Description: req.Description,
		Images:      req.Images,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, map[string]string{"status": "created"})
}

// GenerateRSSFeed mints a fresh feed token and answers with the public URL.
func (h *AuctionHandler) GenerateRSSFeed(c echo.Context) error {
	session := middleware.SessionFrom(c)
	feedURL, err := h.auctionUseCase.GenerateRSSFeed(c.Request().Context(), session)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"feedUrl": feedURL})
}

// PublishToRSS pushes one chat message onto the public display feed.
func (h *AuctionHandler) PublishToRSS(c echo.Context) error {
	var req publishRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	session := middleware.SessionFrom(c)
	err := h.auctionUseCase.PublishMessage(c.Request().Context(), session, &entity.Message{
		Sender:    req.Sender,
		Text:      req.Message,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"status": "published"})
}
