package usecase

import (
	"context"
	"sync"

	"bidchat/internal/domain/entity"
	"bidchat/internal/domain/repository"
	"bidchat/internal/infrastructure/ratelimit"
	"bidchat/pkg/errors"
	"bidchat/pkg/logger"
)

// ChannelFactory builds a message channel for a freshly authenticated
// session. Which concrete channel comes back (Firestore push or script
// polling) is a deployment decision made in main.
type ChannelFactory func(ctx context.Context, session *entity.Session) (repository.ChatChannel, error)

// MessageSink receives merged conversation updates for delivery to the UI.
type MessageSink interface {
	DeliverMessages(email, counterparty string, fresh []entity.Message)
	DeliverPresence(email string, presences []entity.Presence)
}

// ChatService owns one ChatManager per signed-in user. Managers are created
// when a session activates chat and torn down on logout, so no poller or
// listener outlives its session.
type ChatService struct {
	// baseCtx is the application lifetime. Subscriptions are bound to it,
	// never to the request that triggered Start: the request context dies
	// as soon as the login response is written.
	baseCtx context.Context
	factory ChannelFactory
	sink    MessageSink
	limiter *ratelimit.Limiter

	mu       sync.Mutex
	sessions map[string]*chatSession
}

type chatSession struct {
	manager *ChatManager
	channel repository.ChatChannel
}

func NewChatService(ctx context.Context, factory ChannelFactory, sink MessageSink) *ChatService {
	limiter := ratelimit.NewLimiter()
	limiter.StartCleanup()
	return &ChatService{
		baseCtx:  ctx,
		factory:  factory,
		sink:     sink,
		limiter:  limiter,
		sessions: make(map[string]*chatSession),
	}
}

// Start activates chat for a session. Starting twice tears down the
// previous manager first, so a re-login cannot double the listeners.
func (s *ChatService) Start(session *entity.Session) (*ChatManager, error) {
	s.StopFor(session.Email)

	channel, err := s.factory(s.baseCtx, session)
	if err != nil {
		return nil, err
	}

	manager := NewChatManager(channel, NewMessageCache(), s.limiter)
	email := session.Email
	manager.SetHandlers(
		func(counterparty string, fresh []entity.Message) {
			s.sink.DeliverMessages(email, counterparty, fresh)
		},
		func(presences []entity.Presence) {
			s.sink.DeliverPresence(email, presences)
		},
	)

	if err := manager.Initialize(s.baseCtx, session.Email, session.IsAdmin()); err != nil {
		channel.Close()
		return nil, err
	}

	s.mu.Lock()
	s.sessions[session.Email] = &chatSession{manager: manager, channel: channel}
	s.mu.Unlock()
	return manager, nil
}

// ManagerFor returns the active manager for a signed-in email.
func (s *ChatService) ManagerFor(email string) (*ChatManager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.sessions[email]
	if !ok {
		return nil, errors.NotFound("Chat session", nil)
	}
	return cs.manager, nil
}

// StopFor releases the manager, its subscriptions, and the channel for one
// user. Mandatory on logout: a leaked poller would keep hitting the backend
// with a dead token.
func (s *ChatService) StopFor(email string) {
	s.mu.Lock()
	cs, ok := s.sessions[email]
	delete(s.sessions, email)
	s.mu.Unlock()
	if !ok {
		return
	}

	cs.manager.Stop()
	if err := cs.channel.Close(); err != nil {
		logger.Warn("Failed to close channel for %s: %v", email, err)
	}
}

// StopAll tears down every active session. Used on shutdown.
func (s *ChatService) StopAll() {
	s.mu.Lock()
	emails := make([]string, 0, len(s.sessions))
	for email := range s.sessions {
		emails = append(emails, email)
	}
	s.mu.Unlock()

	for _, email := range emails {
		s.StopFor(email)
	}
}
