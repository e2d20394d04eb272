package usecase

import (
	"context"

	"bidchat/internal/domain/entity"
	"bidchat/internal/infrastructure/script"
)

// ScriptService is the slice of the script-endpoint client consumed by the
// use cases. Kept as an interface so tests can substitute a fake backend.
type ScriptService interface {
	LoginUser(ctx context.Context, email, encodedPassword string) (*script.LoginResult, error)
	RegisterUser(ctx context.Context, email, encodedPassword, firstName, lastName string) (*script.LoginResult, error)
	CheckAdmin(ctx context.Context, email, token string) (bool, error)

	GetAuctionItems(ctx context.Context, category string) ([]entity.AuctionItem, error)
	ToggleBidding(ctx context.Context, email, token, itemID, status string) error
	HandleBid(ctx context.Context, email, itemID string, amount float64) error
	AddItem(ctx context.Context, input script.AddItemInput) error

	GenerateRSSToken(ctx context.Context, email, token string) (string, error)
	FeedURL(rssToken string) string
	PublishToRSS(ctx context.Context, msg *entity.Message) error

	AddCannedResponse(ctx context.Context, email, token, title, text string) error
	GetCannedResponses(ctx context.Context, email, token string) ([]entity.CannedResponse, error)
}
