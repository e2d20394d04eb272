package repository

import (
	"context"

	"bidchat/internal/domain/entity"
)

// CancelFunc tears down a subscription. Safe to call more than once.
type CancelFunc func()

// ChatChannel is the message transport between the local session and the
// remote backend. Two implementations exist: a Firestore snapshot listener
// (push) and a script-endpoint poller. Both deliver whole-conversation
// updates; the caller filters and diffs them.
type ChatChannel interface {
	// Subscribe delivers message updates for the conversation keyed by the
	// sanitized counterparty email. Callbacks run until the returned cancel
	// is invoked or ctx is done.
	Subscribe(ctx context.Context, counterparty string, fn func([]entity.Message)) (CancelFunc, error)

	// Send appends a message. The write is keyed by the sender's sanitized
	// email for non-admin senders and by the counterparty's for admins, so
	// readers must filter by sender and recipient rather than trusting the
	// storage path.
	Send(ctx context.Context, msg *entity.Message) error

	// SubscribePresence delivers the full active-user set on every change
	// (push) or poll tick.
	SubscribePresence(ctx context.Context, fn func([]entity.Presence)) (CancelFunc, error)

	// Announce upserts the presence record for email.
	Announce(ctx context.Context, email string) error

	// MarkRead flips a message's read flag. Fire-and-forget at the call
	// sites: failures are logged, never retried.
	MarkRead(ctx context.Context, counterparty, messageID string) error

	// SetTyping publishes the local typing status.
	SetTyping(ctx context.Context, status entity.TypingStatus) error

	Close() error
}
