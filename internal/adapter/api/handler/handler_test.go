package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"bidchat/internal/adapter/api"
	"bidchat/internal/domain/entity"
	"bidchat/internal/domain/repository"
	"bidchat/internal/infrastructure/script"
	"bidchat/internal/usecase"
	"bidchat/pkg/errors"
)

// stubScript fakes the remote script endpoint at the use-case boundary.
type stubScript struct {
	mu       sync.Mutex
	loginErr error
	items    []entity.AuctionItem
	bids     []float64
	canned   []entity.CannedResponse
	rssToken string
}

func (s *stubScript) LoginUser(ctx context.Context, email, encodedPassword string) (*script.LoginResult, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	adminType := "user"
	if strings.HasPrefix(email, "admin") {
		adminType = "super"
	}
	return &script.LoginResult{Token: "up-" + email, FirstName: "Test", LastName: "User", AdminType: adminType}, nil
}

func (s *stubScript) RegisterUser(ctx context.Context, email, encodedPassword, firstName, lastName string) (*script.LoginResult, error) {
	return &script.LoginResult{Token: "up-" + email, FirstName: firstName, LastName: lastName, AdminType: "user"}, nil
}

func (s *stubScript) CheckAdmin(ctx context.Context, email, token string) (bool, error) {
	return strings.HasPrefix(email, "admin"), nil
}

func (s *stubScript) GetAuctionItems(ctx context.Context, category string) ([]entity.AuctionItem, error) {
	return s.items, nil
}

func (s *stubScript) ToggleBidding(ctx context.Context, email, token, itemID, status string) error {
	return nil
}

func (s *stubScript) HandleBid(ctx context.Context, email, itemID string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bids = append(s.bids, amount)
	return nil
}

func (s *stubScript) AddItem(ctx context.Context, input script.AddItemInput) error { return nil }

func (s *stubScript) GenerateRSSToken(ctx context.Context, email, token string) (string, error) {
	return s.rssToken, nil
}

func (s *stubScript) FeedURL(rssToken string) string { return "https://feed.example/?token=" + rssToken }

func (s *stubScript) PublishToRSS(ctx context.Context, msg *entity.Message) error { return nil }

func (s *stubScript) AddCannedResponse(ctx context.Context, email, token, title, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canned = append(s.canned, entity.CannedResponse{Title: title, Text: text})
	return nil
}

func (s *stubScript) GetCannedResponses(ctx context.Context, email, token string) ([]entity.CannedResponse, error) {
	return s.canned, nil
}

// stubChannel records sends and lets tests push inbound message batches.
type stubChannel struct {
	mu     sync.Mutex
	subs   map[string]func([]entity.Message)
	sent   []entity.Message
	closes int
}

func newStubChannel() *stubChannel {
	return &stubChannel{subs: make(map[string]func([]entity.Message))}
}

func (s *stubChannel) Subscribe(ctx context.Context, counterparty string, fn func([]entity.Message)) (repository.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[counterparty] = fn
	return func() {}, nil
}

func (s *stubChannel) Send(ctx context.Context, msg *entity.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, *msg)
	return nil
}

func (s *stubChannel) SubscribePresence(ctx context.Context, fn func([]entity.Presence)) (repository.CancelFunc, error) {
	return func() {}, nil
}

func (s *stubChannel) Announce(ctx context.Context, email string) error { return nil }

func (s *stubChannel) MarkRead(ctx context.Context, counterparty, messageID string) error {
	return nil
}

func (s *stubChannel) SetTyping(ctx context.Context, status entity.TypingStatus) error { return nil }

func (s *stubChannel) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *stubChannel) deliver(counterparty string, msgs []entity.Message) {
	s.mu.Lock()
	fn := s.subs[counterparty]
	s.mu.Unlock()
	if fn != nil {
		fn(msgs)
	}
}

type discardSink struct{}

func (discardSink) DeliverMessages(email, counterparty string, fresh []entity.Message) {}
func (discardSink) DeliverPresence(email string, presences []entity.Presence)          {}

// testEnv wires the handlers against stubbed infrastructure: no HTTP
// upstream, no realtime backend.
type testEnv struct {
	echo     *echo.Echo
	script   *stubScript
	auth     *usecase.AuthUseCase
	chat     *usecase.ChatService
	auction  *usecase.AuctionUseCase
	channels map[string]*stubChannel
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	e := echo.New()
	e.Validator = api.NewValidator()

	stub := &stubScript{}
	sessions := usecase.NewSessionStore()
	auth := usecase.NewAuthUseCase(stub, sessions, "handler-test-secret", 3600)

	channels := make(map[string]*stubChannel)
	factory := func(ctx context.Context, session *entity.Session) (repository.ChatChannel, error) {
		ch := newStubChannel()
		channels[session.Email] = ch
		return ch, nil
	}
	chat := usecase.NewChatService(context.Background(), factory, discardSink{})
	t.Cleanup(chat.StopAll)

	return &testEnv{
		echo:     e,
		script:   stub,
		auth:     auth,
		chat:     chat,
		auction:  usecase.NewAuctionUseCase(stub, auth),
		channels: channels,
	}
}

// signIn runs the real login path so the chat session exists, then returns
// the authenticated session for direct handler invocation.
func (env *testEnv) signIn(t *testing.T, email string) *entity.Session {
	t.Helper()
	result, err := env.auth.Login(context.Background(), email, "pw")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := env.chat.Start(result.Session); err != nil {
		t.Fatalf("chat start failed: %v", err)
	}
	return result.Session
}

func (env *testEnv) request(method, target, body string, session *entity.Session) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := env.echo.NewContext(req, rec)
	if session != nil {
		c.Set("session", session)
	}
	return c, rec
}

var errInvalidLogin = errors.BadRequest("Invalid credentials", nil)
