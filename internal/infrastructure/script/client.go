package script

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bidchat/internal/domain/entity"
	"bidchat/pkg/errors"
)

// Client talks to the remote script endpoint: a single URL accepting
// query-string actions and answering JSON (or raw text for the RSS feed).
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// envelope is the common response wrapper. Some actions omit success and
// return bare arrays or text; those are handled per call site.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type LoginResult struct {
	Token     string `json:"token"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	AdminType string `json:"adminType"`
}

type loginResponse struct {
	envelope
	LoginResult
}

func (c *Client) LoginUser(ctx context.Context, email, encodedPassword string) (*LoginResult, error) {
	var resp loginResponse
	err := c.get(ctx, url.Values{
		"action":   {"loginUser"},
		"email":    {email},
		"password": {encodedPassword},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, failure(resp.envelope, "Invalid email or password")
	}
	if resp.AdminType == "" {
		resp.AdminType = "user"
	}
	return &resp.LoginResult, nil
}

func (c *Client) RegisterUser(ctx context.Context, email, encodedPassword, firstName, lastName string) (*LoginResult, error) {
	var resp loginResponse
	err := c.get(ctx, url.Values{
		"action":    {"registerUser"},
		"email":     {email},
		"password":  {encodedPassword},
		"firstName": {firstName},
		"lastName":  {lastName},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, failure(resp.envelope, "Registration failed")
	}
	if resp.AdminType == "" {
		resp.AdminType = "user"
	}
	resp.FirstName = firstName
	resp.LastName = lastName
	return &resp.LoginResult, nil
}

func (c *Client) CheckAdmin(ctx context.Context, email, token string) (bool, error) {
	var resp struct {
		envelope
		IsAdmin bool `json:"isAdmin"`
	}
	err := c.get(ctx, url.Values{
		"action": {"checkAdmin"},
		"email":  {email},
		"token":  {token},
	}, &resp)
	if err != nil {
		return false, err
	}
	if !resp.Success {
		return false, failure(resp.envelope, "Admin check failed")
	}
	return resp.IsAdmin, nil
}

// GetAuctionItems returns the item list, optionally scoped to a category.
// This action answers a bare JSON array rather than the usual envelope.
func (c *Client) GetAuctionItems(ctx context.Context, category string) ([]entity.AuctionItem, error) {
	params := url.Values{"action": {"getAuctionItems"}}
	if category != "" {
		params.Set("category", category)
	}
	var items []entity.AuctionItem
	if err := c.get(ctx, params, &items); err != nil {
		return nil, err
	}
	return items, nil
}

type ChatMessagesResult struct {
	Messages    []entity.Message  `json:"messages"`
	ActiveUsers []entity.Presence `json:"activeUsers"`
}

type chatMessagesResponse struct {
	envelope
	ChatMessagesResult
}

// GetChatMessages fetches the conversation superset for the session.
// targetUser scopes an admin read to one bidder; lastTimestamp asks the
// backend for messages after that point; allHistory requests everything.
func (c *Client) GetChatMessages(ctx context.Context, email, token, targetUser string, lastTimestamp int64, allHistory bool) (*ChatMessagesResult, error) {
	params := url.Values{
		"action":     {"getChatMessages"},
		"email":      {email},
		"token":      {token},
		"targetUser": {targetUser},
	}
	if lastTimestamp > 0 {
		params.Set("lastTimestamp", strconv.FormatInt(lastTimestamp, 10))
	}
	if allHistory {
		params.Set("allHistory", "true")
	}

	var resp chatMessagesResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, failure(resp.envelope, "Failed to load chat messages")
	}
	return &resp.ChatMessagesResult, nil
}

func (c *Client) AddChatMessage(ctx context.Context, email, token, text, targetUser string) error {
	var resp envelope
	err := c.get(ctx, url.Values{
		"action":     {"addChatMessage"},
		"email":      {email},
		"message":    {text},
		"token":      {token},
		"targetUser": {targetUser},
	}, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return failure(resp, "Failed to send message")
	}
	return nil
}

func (c *Client) GetActiveUsers(ctx context.Context, email, token string) ([]entity.Presence, error) {
	var resp struct {
		envelope
		Users []entity.Presence `json:"users"`
	}
	err := c.get(ctx, url.Values{
		"action": {"getActiveUsers"},
		"email":  {email},
		"token":  {token},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, failure(resp.envelope, "Failed to load active users")
	}
	return resp.Users, nil
}

func (c *Client) ToggleBidding(ctx context.Context, email, token, itemID, status string) error {
	var resp envelope
	err := c.get(ctx, url.Values{
		"action": {"toggleBidding"},
		"itemId": {itemID},
		"status": {status},
		"email":  {email},
		"token":  {token},
	}, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return failure(resp, "Failed to toggle bidding")
	}
	return nil
}

func (c *Client) HandleBid(ctx context.Context, email, itemID string, amount float64) error {
	var resp envelope
	err := c.get(ctx, url.Values{
		"action":    {"handleBid"},
		"itemId":    {itemID},
		"bidAmount": {strconv.FormatFloat(amount, 'f', -1, 64)},
		"email":     {email},
	}, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return failure(resp, "Bid rejected")
	}
	return nil
}

type AddItemInput struct {
	Name        string
	Description string
	Images      []string
}

func (c *Client) AddItem(ctx context.Context, input AddItemInput) error {
	params := url.Values{
		"action":          {"addItem"},
		"itemName":        {input.Name},
		"itemDescription": {input.Description},
	}
	for i, img := range input.Images {
		if i >= 3 {
			break
		}
		params.Set(fmt.Sprintf("itemImage%d", i+1), img)
	}
	var resp envelope
	if err := c.get(ctx, params, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return failure(resp, "Failed to add item")
	}
	return nil
}

func (c *Client) GenerateRSSToken(ctx context.Context, email, token string) (string, error) {
	var resp struct {
		envelope
		Token string `json:"token"`
	}
	err := c.get(ctx, url.Values{
		"action": {"generateRSSToken"},
		"email":  {email},
		"token":  {token},
	}, &resp)
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", failure(resp.envelope, "Failed to generate RSS token")
	}
	return resp.Token, nil
}

// FeedURL builds the public RSS feed URL for a generated token.
func (c *Client) FeedURL(rssToken string) string {
	return fmt.Sprintf("%s?action=getRSSFeed&token=%s", c.baseURL, url.QueryEscape(rssToken))
}

func (c *Client) PublishToRSS(ctx context.Context, msg *entity.Message) error {
	var resp envelope
	err := c.get(ctx, url.Values{
		"action":    {"publishToRSS"},
		"message":   {msg.Text},
		"sender":    {msg.Sender},
		"timestamp": {strconv.FormatInt(msg.Timestamp, 10)},
	}, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return failure(resp, "Failed to publish to RSS")
	}
	return nil
}

func (c *Client) AddCannedResponse(ctx context.Context, email, token, title, text string) error {
	var resp envelope
	err := c.get(ctx, url.Values{
		"action": {"addCannedResponse"},
		"email":  {email},
		"token":  {token},
		"title":  {title},
		"text":   {text},
	}, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return failure(resp, "Failed to add canned response")
	}
	return nil
}

func (c *Client) GetCannedResponses(ctx context.Context, email, token string) ([]entity.CannedResponse, error) {
	var resp struct {
		envelope
		Responses []entity.CannedResponse `json:"responses"`
	}
	err := c.get(ctx, url.Values{
		"action": {"getCannedResponses"},
		"email":  {email},
		"token":  {token},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, failure(resp.envelope, "Failed to load canned responses")
	}
	return resp.Responses, nil
}

// RestreamMessage is the payload republished when the Restream relay
// receives a chat.message frame.
type RestreamMessage struct {
	Sender    string `json:"sender"`
	Platform  string `json:"platform"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

func (c *Client) HandleRestreamMessage(ctx context.Context, msg RestreamMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Internal("Failed to encode restream message", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"?action=handleRestreamMessage", strings.NewReader(string(body)))
	if err != nil {
		return errors.Internal("Failed to build restream request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Unavailable("Script endpoint unreachable", err)
	}
	defer httpResp.Body.Close()

	var resp envelope
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return errors.Internal("Failed to decode restream response", err)
	}
	if !resp.Success {
		return failure(resp, "Failed to publish restream message")
	}
	return nil
}

func (c *Client) get(ctx context.Context, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Internal("Failed to build script request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Unavailable("Script endpoint unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return errors.Unauthorized("Session rejected by backend", nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Unavailable(fmt.Sprintf("Script endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Internal("Failed to decode script response", err)
	}
	return nil
}

// failure maps an unsuccessful envelope to an AppError. The backend signals
// token rejection with the literal string "unauthorized".
func failure(resp envelope, fallback string) error {
	if strings.EqualFold(strings.TrimSpace(resp.Message), "unauthorized") {
		return errors.Unauthorized("Session token rejected", nil)
	}
	msg := resp.Message
	if msg == "" {
		msg = fallback
	}
	return errors.BadRequest(msg, nil)
}
