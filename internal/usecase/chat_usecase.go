package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bidchat/internal/domain/entity"
	"bidchat/internal/domain/repository"
	"bidchat/internal/infrastructure/ratelimit"
	"bidchat/pkg/errors"
	"bidchat/pkg/logger"
)

// ChatManager owns the chat session: the local identity, the selected
// counterparty, the channel subscriptions, and the message cache. One
// instance per authenticated session; all UI-facing surfaces go through it.
type ChatManager struct {
	channel repository.ChatChannel
	cache   *MessageCache
	limiter *ratelimit.Limiter

	mu sync.Mutex
	// ctx bounds every subscription. It is the application lifetime, not a
	// request lifetime: pollers and listeners must outlive the HTTP call
	// that started them.
	ctx          context.Context
	email        string
	isAdmin      bool
	counterparty string // admin only; empty until a session is selected
	presences    []entity.Presence

	cancelMessages repository.CancelFunc
	cancelPresence repository.CancelFunc
	// badges holds one subscription per non-selected active user so unread
	// counts accumulate before the admin ever opens that conversation.
	badges map[string]repository.CancelFunc

	unread     map[string]int
	unreadSeen map[string]map[entity.DedupKey]bool // true while counted unread

	onMessages func(counterparty string, fresh []entity.Message)
	onPresence func([]entity.Presence)
}

func NewChatManager(channel repository.ChatChannel, cache *MessageCache, limiter *ratelimit.Limiter) *ChatManager {
	return &ChatManager{
		channel: channel,
		cache:   cache,
		limiter: limiter,
	}
}

// SetHandlers registers the delivery callbacks consumed by the UI push
// layer. Must be called before Initialize.
func (m *ChatManager) SetHandlers(onMessages func(string, []entity.Message), onPresence func([]entity.Presence)) {
	m.onMessages = onMessages
	m.onPresence = onPresence
}

// Initialize establishes the message channel for the session. Non-admins
// announce presence and immediately subscribe to their fixed conversation
// with the admin; admins subscribe to the presence registry and stay without
// a message subscription until SelectCounterparty. Re-initializing cancels
// the previous subscriptions first, so listeners are never doubled.
//
// ctx must span the whole session, not one request: every subscription and
// poller this manager creates is derived from it.
func (m *ChatManager) Initialize(ctx context.Context, email string, isAdmin bool) error {
	m.mu.Lock()
	m.stopLocked()
	m.ctx = ctx
	m.email = email
	m.isAdmin = isAdmin
	m.counterparty = ""
	m.badges = make(map[string]repository.CancelFunc)
	m.unread = make(map[string]int)
	m.unreadSeen = make(map[string]map[entity.DedupKey]bool)
	m.mu.Unlock()

	if isAdmin {
		cancel, err := m.channel.SubscribePresence(ctx, m.handlePresence)
		if err != nil {
			return err
		}
		m.mu.Lock()
		m.cancelPresence = cancel
		m.mu.Unlock()
		return nil
	}

	if err := m.channel.Announce(ctx, email); err != nil {
		// Presence is advisory; the conversation still works without it.
		logger.Warn("Failed to announce presence for %s: %v", email, err)
	}
	return m.subscribeMessages(entity.AdminCounterparty)
}

// SelectCounterparty switches an admin to another bidder's session: the
// message stream is cancelled and re-scoped to the new counterparty. The UI
// clears its transcript view and repaints from Transcript. Non-admins always
// converse with the fixed admin identity, so for them this is a rejected
// operation.
func (m *ChatManager) SelectCounterparty(email string) error {
	m.mu.Lock()
	if !m.isAdmin {
		m.mu.Unlock()
		return errors.Forbidden("Only admins can select a chat session", nil)
	}
	if m.cancelMessages != nil {
		m.cancelMessages()
		m.cancelMessages = nil
	}
	previous := m.counterparty
	m.counterparty = email
	m.mu.Unlock()

	// The main subscription takes over unread tracking for the selection;
	// the conversation being left falls back to a badge subscription.
	m.dropBadge(email)
	if previous != "" && previous != email {
		m.restoreBadge(previous)
	}
	return m.subscribeMessages(email)
}

// EffectiveCounterparty is "admin" for non-admins regardless of any
// selection attempts, and the selected bidder (or empty) for admins.
func (m *ChatManager) EffectiveCounterparty() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isAdmin {
		return entity.AdminCounterparty
	}
	return m.counterparty
}

// SendMessage appends a message to the conversation. Blank input is a no-op.
// An admin without a selected counterparty is rejected; the caller keeps the
// input so the user can retry after any failure.
func (m *ChatManager) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	m.mu.Lock()
	email := m.email
	isAdmin := m.isAdmin
	recipient := entity.AdminCounterparty
	if isAdmin {
		recipient = m.counterparty
	}
	m.mu.Unlock()

	if isAdmin && recipient == "" {
		return errors.BadRequest("Select a user to send the message to", nil)
	}

	if allowed, wait := m.limiter.Allow(email, ratelimit.ActionSendMessage); !allowed {
		logger.Warn("Rate limited send for %s, next token in %v", email, wait)
		return errors.TooManyRequests("You are sending messages too quickly. Please slow down.")
	}

	msg := &entity.Message{
		ID:        uuid.New().String(),
		Sender:    email,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
		IsAdmin:   isAdmin,
		Recipient: recipient,
		Read:      false,
	}

	if err := m.channel.Send(ctx, msg); err != nil {
		logger.Error("Failed to send message from %s: %v", email, err)
		return err
	}
	return nil
}

// Transcript returns the current conversation ordered by timestamp.
func (m *ChatManager) Transcript() []entity.Message {
	cp := m.EffectiveCounterparty()
	if cp == "" {
		return nil
	}
	return m.cache.Transcript(cp)
}

// ActiveUsers is the last presence set delivered to an admin session.
func (m *ChatManager) ActiveUsers() []entity.Presence {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.Presence, len(m.presences))
	copy(out, m.presences)
	return out
}

// UnreadCounts maps each active bidder to the number of unread messages in
// their conversation, selected or not. The counts feed the session badges,
// which matter most for conversations the admin has not opened yet.
func (m *ChatManager) UnreadCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]int, len(m.presences))
	for _, p := range m.presences {
		counts[p.Email] = m.unread[p.Email]
	}
	return counts
}

// Typing publishes the local typing status. Failures are logged only, and
// over-eager keystroke updates are dropped rather than rejected.
func (m *ChatManager) Typing(ctx context.Context, isTyping bool) {
	m.mu.Lock()
	email := m.email
	m.mu.Unlock()
	if email == "" {
		return
	}

	if allowed, _ := m.limiter.Allow(email, ratelimit.ActionTyping); !allowed {
		return
	}

	err := m.channel.SetTyping(ctx, entity.TypingStatus{
		Email:     email,
		IsTyping:  isTyping,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		logger.Warn("Failed to update typing status for %s: %v", email, err)
	}
}

// Stop cancels the active subscriptions. Required on logout and shutdown so
// no poller keeps referencing a dead session.
func (m *ChatManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *ChatManager) stopLocked() {
	if m.cancelMessages != nil {
		m.cancelMessages()
		m.cancelMessages = nil
	}
	if m.cancelPresence != nil {
		m.cancelPresence()
		m.cancelPresence = nil
	}
	for email, cancel := range m.badges {
		cancel()
		delete(m.badges, email)
	}
}

func (m *ChatManager) subscribeMessages(counterparty string) error {
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()

	cancel, err := m.channel.Subscribe(ctx, counterparty, func(msgs []entity.Message) {
		m.handleIncoming(ctx, counterparty, msgs)
	})
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.cancelMessages = cancel
	m.mu.Unlock()
	return nil
}

// handleIncoming filters, dedups, and delivers a conversation update. The
// counterparty the update was requested for is compared against the current
// selection first: a late poll result for a previously selected session must
// never reach the UI.
func (m *ChatManager) handleIncoming(ctx context.Context, counterparty string, msgs []entity.Message) {
	if counterparty != m.EffectiveCounterparty() {
		logger.Debug("Discarding stale update for %s", counterparty)
		return
	}

	visible := msgs[:0:0]
	for _, msg := range msgs {
		if m.visible(msg) {
			visible = append(visible, msg)
		}
	}

	m.trackUnread(counterparty, visible)

	fresh := m.cache.Merge(counterparty, visible)
	if len(fresh) == 0 {
		return
	}

	m.mu.Lock()
	email := m.email
	onMessages := m.onMessages
	m.mu.Unlock()

	for _, msg := range fresh {
		if !msg.Read && msg.Recipient == email && msg.ID != "" {
			m.markRead(ctx, counterparty, msg.ID)
		}
	}

	if onMessages != nil {
		onMessages(counterparty, fresh)
	}
}

// visible applies the role-based filter. The backend returns a superset
// because writes are keyed by the sender's path, so both roles must check
// sender and recipient explicitly.
func (m *ChatManager) visible(msg entity.Message) bool {
	m.mu.Lock()
	email := m.email
	isAdmin := m.isAdmin
	counterparty := m.counterparty
	m.mu.Unlock()

	if isAdmin {
		return msg.Sender == counterparty ||
			(msg.Sender == email && msg.Recipient == counterparty)
	}
	return msg.Sender == email ||
		(msg.IsAdmin && msg.Recipient == email)
}

// markRead is fire-and-forget: the flag flips at most once and a failed
// update is only logged.
func (m *ChatManager) markRead(ctx context.Context, counterparty, messageID string) {
	m.cache.MarkRead(counterparty, messageID)
	if err := m.channel.MarkRead(ctx, counterparty, messageID); err != nil {
		logger.Warn("Failed to mark message %s as read: %v", messageID, err)
	}
}

func (m *ChatManager) handlePresence(presences []entity.Presence) {
	m.mu.Lock()
	m.presences = presences
	onPresence := m.onPresence
	isAdmin := m.isAdmin
	m.mu.Unlock()

	if isAdmin {
		m.syncBadges(presences)
	}
	if onPresence != nil {
		onPresence(presences)
	}
}

// syncBadges reconciles the badge subscriptions with the active-user set:
// every active user except the current selection gets one, departed users
// lose theirs.
func (m *ChatManager) syncBadges(presences []entity.Presence) {
	active := make(map[string]bool, len(presences))
	for _, p := range presences {
		active[p.Email] = true
	}

	m.mu.Lock()
	counterparty := m.counterparty
	var stale []repository.CancelFunc
	for email, cancel := range m.badges {
		if !active[email] {
			stale = append(stale, cancel)
			delete(m.badges, email)
		}
	}
	var missing []string
	for email := range active {
		if email == counterparty {
			continue
		}
		if _, ok := m.badges[email]; !ok {
			missing = append(missing, email)
		}
	}
	m.mu.Unlock()

	for _, cancel := range stale {
		cancel()
	}
	for _, email := range missing {
		m.subscribeBadge(email)
	}
}

func (m *ChatManager) subscribeBadge(email string) {
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()

	cancel, err := m.channel.Subscribe(ctx, email, func(msgs []entity.Message) {
		m.trackUnread(email, msgs)
	})
	if err != nil {
		logger.Warn("Failed to watch unread count for %s: %v", email, err)
		return
	}

	m.mu.Lock()
	_, exists := m.badges[email]
	if exists || email == m.counterparty {
		m.mu.Unlock()
		cancel()
		return
	}
	m.badges[email] = cancel
	m.mu.Unlock()
}

// restoreBadge re-attaches the badge subscription for a conversation the
// admin just navigated away from, provided the user is still active.
func (m *ChatManager) restoreBadge(email string) {
	m.mu.Lock()
	present := false
	for _, p := range m.presences {
		if p.Email == email {
			present = true
			break
		}
	}
	_, exists := m.badges[email]
	m.mu.Unlock()

	if present && !exists {
		m.subscribeBadge(email)
	}
}

func (m *ChatManager) dropBadge(email string) {
	m.mu.Lock()
	cancel, ok := m.badges[email]
	delete(m.badges, email)
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// trackUnread keeps the per-user unread counter in step with delivered
// snapshots. Only messages sent by that user are eligible; each counts once
// while its read flag is false and is released when a later delivery shows
// the flag flipped.
func (m *ChatManager) trackUnread(user string, msgs []entity.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := m.unreadSeen[user]
	if seen == nil {
		seen = make(map[entity.DedupKey]bool)
		m.unreadSeen[user] = seen
	}

	for _, msg := range msgs {
		if msg.Sender != user {
			continue
		}
		key := msg.DedupKey()
		counted, ok := seen[key]
		switch {
		case !ok:
			seen[key] = !msg.Read
			if !msg.Read {
				m.unread[user]++
			}
		case counted && msg.Read:
			seen[key] = false
			m.unread[user]--
		}
	}
}
