package usecase

import (
	"context"

	"bidchat/internal/domain/entity"
	"bidchat/internal/infrastructure/script"
	"bidchat/pkg/errors"
)

// AuctionUseCase fronts the bidding side of the backend: item listing,
// bids, the admin item/bidding controls, RSS publishing, and canned
// responses.
type AuctionUseCase struct {
	script ScriptService
	auth   *AuthUseCase
}

func NewAuctionUseCase(script ScriptService, auth *AuthUseCase) *AuctionUseCase {
	return &AuctionUseCase{
		script: script,
		auth:   auth,
	}
}

func (uc *AuctionUseCase) ListItems(ctx context.Context, category string) ([]entity.AuctionItem, error) {
	return uc.script.GetAuctionItems(ctx, category)
}

func (uc *AuctionUseCase) PlaceBid(ctx context.Context, session *entity.Session, itemID string, amount float64) error {
	if amount <= 0 {
		return errors.BadRequest("Bid amount must be positive", nil)
	}
	return uc.script.HandleBid(ctx, session.Email, itemID, amount)
}

func (uc *AuctionUseCase) ToggleBidding(ctx context.Context, session *entity.Session, itemID, status string) error {
	if !session.IsAdmin() {
		return errors.Forbidden("Only admins can toggle bidding", nil)
	}
	err := uc.script.ToggleBidding(ctx, session.Email, session.Token, itemID, status)
	if err != nil {
		uc.auth.InvalidateOnUnauthorized(session, err)
	}
	return err
}

type AddItemInput struct {
	Name        string
	Description string
	Images      []string
}

func (uc *AuctionUseCase) AddItem(ctx context.Context, session *entity.Session, input AddItemInput) error {
	if !session.IsAdmin() {
		return errors.Forbidden("Only admins can add auction items", nil)
	}
	if input.Name == "" {
		return errors.BadRequest("Item name is required", nil)
	}
	return uc.script.AddItem(ctx, script.AddItemInput{
		Name:        input.Name,
		Description: input.Description,
		Images:      input.Images,
	})
}

// GenerateRSSFeed mints a feed token and returns the public feed URL.
func (uc *AuctionUseCase) GenerateRSSFeed(ctx context.Context, session *entity.Session) (string, error) {
	if !session.IsAdmin() {
		return "", errors.Forbidden("Only admins can generate RSS feeds", nil)
	}
	token, err := uc.script.GenerateRSSToken(ctx, session.Email, session.Token)
	if err != nil {
		uc.auth.InvalidateOnUnauthorized(session, err)
		return "", err
	}
	return uc.script.FeedURL(token), nil
}

func (uc *AuctionUseCase) PublishMessage(ctx context.Context, session *entity.Session, msg *entity.Message) error {
	if !session.IsAdmin() {
		return errors.Forbidden("Only admins can publish to the display feed", nil)
	}
	return uc.script.PublishToRSS(ctx, msg)
}

func (uc *AuctionUseCase) AddCannedResponse(ctx context.Context, session *entity.Session, title, text string) error {
	if !session.IsAdmin() {
		return errors.Forbidden("Only admins can manage canned responses", nil)
	}
	if text == "" {
		return errors.BadRequest("Canned response text is required", nil)
	}
	return uc.script.AddCannedResponse(ctx, session.Email, session.Token, title, text)
}

func (uc *AuctionUseCase) ListCannedResponses(ctx context.Context, session *entity.Session) ([]entity.CannedResponse, error) {
	if !session.IsAdmin() {
		return nil, errors.Forbidden("Only admins can manage canned responses", nil)
	}
	return uc.script.GetCannedResponses(ctx, session.Email, session.Token)
}
