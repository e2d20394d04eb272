// Package polling implements the chat channel against the script endpoint
// alone: messages are fetched on a fixed 10 s cadence and presence on a 30 s
// cadence, with no push path at all.
package polling

import (
	"context"
	"sync"
	"time"

	"bidchat/internal/domain/entity"
	"bidchat/internal/domain/repository"
	"bidchat/internal/infrastructure/script"
	"bidchat/pkg/logger"
)

type Channel struct {
	client  *script.Client
	email   string
	token   string
	isAdmin bool

	messageInterval  time.Duration
	presenceInterval time.Duration

	mu      sync.Mutex
	cursors map[string]int64 // per-counterparty lastTimestamp
	cancels []context.CancelFunc
	closed  bool
}

func NewChannel(client *script.Client, email, token string, isAdmin bool, messageInterval, presenceInterval time.Duration) *Channel {
	return &Channel{
		client:           client,
		email:            email,
		token:            token,
		isAdmin:          isAdmin,
		messageInterval:  messageInterval,
		presenceInterval: presenceInterval,
		cursors:          make(map[string]int64),
	}
}

// Subscribe polls the conversation on the message cadence. The first fetch
// happens immediately; subsequent fetches ask only for messages after the
// last seen timestamp. The ticker stops when the subscription is cancelled
// or ctx ends, which is how a logout releases the timer.
func (ch *Channel) Subscribe(ctx context.Context, counterparty string, fn func([]entity.Message)) (repository.CancelFunc, error) {
	pollCtx, cancel := ch.register(ctx)

	go func() {
		ch.pollMessages(pollCtx, counterparty, fn)

		ticker := time.NewTicker(ch.messageInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				ch.pollMessages(pollCtx, counterparty, fn)
			}
		}
	}()

	return repository.CancelFunc(cancel), nil
}

func (ch *Channel) pollMessages(ctx context.Context, counterparty string, fn func([]entity.Message)) {
	target := ""
	if ch.isAdmin {
		target = counterparty
	}

	ch.mu.Lock()
	cursor := ch.cursors[counterparty]
	ch.mu.Unlock()

	result, err := ch.client.GetChatMessages(ctx, ch.email, ch.token, target, cursor, false)
	if err != nil {
		logger.Error("Error polling chat messages: %v", err)
		return
	}
	if len(result.Messages) == 0 {
		return
	}

	ch.mu.Lock()
	for _, msg := range result.Messages {
		if msg.Timestamp > ch.cursors[counterparty] {
			ch.cursors[counterparty] = msg.Timestamp
		}
	}
	ch.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	fn(result.Messages)
}

func (ch *Channel) Send(ctx context.Context, msg *entity.Message) error {
	target := ""
	if msg.IsAdmin {
		target = msg.Recipient
	}
	return ch.client.AddChatMessage(ctx, ch.email, ch.token, msg.Text, target)
}

// SubscribePresence polls the active-user registry on the presence cadence.
func (ch *Channel) SubscribePresence(ctx context.Context, fn func([]entity.Presence)) (repository.CancelFunc, error) {
	pollCtx, cancel := ch.register(ctx)

	go func() {
		ch.pollPresence(pollCtx, fn)

		ticker := time.NewTicker(ch.presenceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				ch.pollPresence(pollCtx, fn)
			}
		}
	}()

	return repository.CancelFunc(cancel), nil
}

func (ch *Channel) pollPresence(ctx context.Context, fn func([]entity.Presence)) {
	users, err := ch.client.GetActiveUsers(ctx, ch.email, ch.token)
	if err != nil {
		logger.Error("Error polling active users: %v", err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	fn(users)
}

// Announce is a no-op: the script backend infers presence from request
// activity and never exposes an explicit registration. It never removes
// stale records either, so the active list can lag reality.
func (ch *Channel) Announce(ctx context.Context, email string) error {
	logger.Debug("Presence announce is implicit for the polling backend (%s)", email)
	return nil
}

// MarkRead is a no-op: the script API has no read-receipt action. Read
// flags only round-trip on the realtime backend.
func (ch *Channel) MarkRead(ctx context.Context, counterparty, messageID string) error {
	return nil
}

// SetTyping is a no-op for the same reason.
func (ch *Channel) SetTyping(ctx context.Context, status entity.TypingStatus) error {
	return nil
}

func (ch *Channel) Close() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.closed = true
	for _, cancel := range ch.cancels {
		cancel()
	}
	ch.cancels = nil
	return nil
}

func (ch *Channel) register(ctx context.Context) (context.Context, context.CancelFunc) {
	pollCtx, cancel := context.WithCancel(ctx)
	ch.mu.Lock()
	if ch.closed {
		cancel()
	} else {
		ch.cancels = append(ch.cancels, cancel)
	}
	ch.mu.Unlock()
	return pollCtx, cancel
}

var _ repository.ChatChannel = (*Channel)(nil)
