// Package firestore implements the chat channel on Firestore snapshot
// listeners: the push variant of the message stream. Conversations are
// keyed by the bidder's sanitized email, so an admin writes under the
// selected counterparty's key and a bidder under their own.
package firestore

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"bidchat/internal/domain/entity"
	"bidchat/internal/domain/repository"
	"bidchat/pkg/errors"
	"bidchat/pkg/logger"
	"bidchat/pkg/utils"
)

type Channel struct {
	client  *firestore.Client
	email   string
	isAdmin bool

	mu      sync.Mutex
	cancels []context.CancelFunc
	closed  bool
}

func NewChannel(client *firestore.Client, email string, isAdmin bool) *Channel {
	return &Channel{
		client:  client,
		email:   email,
		isAdmin: isAdmin,
	}
}

// conversationKey maps an effective counterparty to the storage key. The
// bidder's email keys the conversation from both sides.
func (ch *Channel) conversationKey(counterparty string) string {
	if ch.isAdmin {
		return utils.SanitizePathKey(counterparty)
	}
	return utils.SanitizePathKey(ch.email)
}

func (ch *Channel) messages(counterparty string) *firestore.CollectionRef {
	return ch.client.Collection("messages").Doc(ch.conversationKey(counterparty)).Collection("items")
}

// Subscribe streams whole-conversation snapshots. Every committed change
// re-delivers the full ordered set; the caller's cache diffs it.
func (ch *Channel) Subscribe(ctx context.Context, counterparty string, fn func([]entity.Message)) (repository.CancelFunc, error) {
	subCtx, cancel := ch.register(ctx)

	query := ch.messages(counterparty).OrderBy("timestamp", firestore.Asc)
	snapshots := query.Snapshots(subCtx)

	go func() {
		defer snapshots.Stop()
		for {
			snap, err := snapshots.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					logger.Error("Message snapshot stream for %s ended: %v", counterparty, err)
				}
				return
			}

			msgs, err := collectMessages(snap.Documents)
			if err != nil {
				logger.Error("Failed to read message snapshot for %s: %v", counterparty, err)
				continue
			}
			fn(msgs)
		}
	}()

	return repository.CancelFunc(cancel), nil
}

func collectMessages(docs *firestore.DocumentIterator) ([]entity.Message, error) {
	var msgs []entity.Message
	for {
		doc, err := docs.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		var msg entity.Message
		if err := doc.DataTo(&msg); err != nil {
			logger.Warn("Skipping malformed message %s: %v", doc.Ref.ID, err)
			continue
		}
		if msg.ID == "" {
			msg.ID = doc.Ref.ID
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Send appends the message to the conversation keyed by the sender's side
// of the asymmetry: the bidder's email either way.
func (ch *Channel) Send(ctx context.Context, msg *entity.Message) error {
	key := msg.Sender
	if msg.IsAdmin {
		key = msg.Recipient
	}

	items := ch.client.Collection("messages").Doc(utils.SanitizePathKey(key)).Collection("items")
	if _, err := items.Doc(msg.ID).Set(ctx, msg); err != nil {
		return errors.Internal("Failed to send message", err)
	}
	return nil
}

// SubscribePresence streams the active-user registry.
func (ch *Channel) SubscribePresence(ctx context.Context, fn func([]entity.Presence)) (repository.CancelFunc, error) {
	subCtx, cancel := ch.register(ctx)

	snapshots := ch.client.Collection("activeUsers").Snapshots(subCtx)

	go func() {
		defer snapshots.Stop()
		for {
			snap, err := snapshots.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					logger.Error("Presence snapshot stream ended: %v", err)
				}
				return
			}

			var presences []entity.Presence
			docs := snap.Documents
			for {
				doc, err := docs.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					logger.Error("Failed to read presence snapshot: %v", err)
					break
				}

				var p entity.Presence
				if err := doc.DataTo(&p); err != nil {
					logger.Warn("Skipping malformed presence record %s: %v", doc.Ref.ID, err)
					continue
				}
				if p.Email != "" {
					presences = append(presences, p)
				}
			}
			fn(presences)
		}
	}()

	return repository.CancelFunc(cancel), nil
}

// Announce upserts the presence record for email. The unsanitized email is
// stored in the record for display; only the document key is sanitized.
func (ch *Channel) Announce(ctx context.Context, email string) error {
	_, err := ch.client.Collection("activeUsers").Doc(utils.SanitizePathKey(email)).Set(ctx, entity.Presence{
		Email:      email,
		LastActive: time.Now().UnixMilli(),
	})
	if err != nil {
		return errors.Internal("Failed to announce presence", err)
	}
	return nil
}

func (ch *Channel) MarkRead(ctx context.Context, counterparty, messageID string) error {
	_, err := ch.messages(counterparty).Doc(messageID).Update(ctx, []firestore.Update{
		{Path: "read", Value: true},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Message", err)
		}
		return errors.Internal("Failed to mark message as read", err)
	}
	return nil
}

// SetTyping publishes the typing status; a cleared status removes the
// record entirely so watchers see the indicator disappear immediately.
func (ch *Channel) SetTyping(ctx context.Context, typing entity.TypingStatus) error {
	doc := ch.client.Collection("typing").Doc(utils.SanitizePathKey(typing.Email))
	if !typing.IsTyping {
		_, err := doc.Delete(ctx)
		return err
	}
	_, err := doc.Set(ctx, typing)
	return err
}

// Close cancels every subscription and removes the session's presence
// record, standing in for the realtime database's disconnect hook.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	ch.closed = true
	cancels := ch.cancels
	ch.cancels = nil
	ch.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	if !ch.isAdmin && ch.email != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := ch.client.Collection("activeUsers").Doc(utils.SanitizePathKey(ch.email)).Delete(ctx); err != nil {
			logger.Warn("Failed to remove presence record for %s: %v", ch.email, err)
		}
	}
	return nil
}

func (ch *Channel) register(ctx context.Context) (context.Context, context.CancelFunc) {
	subCtx, cancel := context.WithCancel(ctx)
	ch.mu.Lock()
	if ch.closed {
		cancel()
	} else {
		ch.cancels = append(ch.cancels, cancel)
	}
	ch.mu.Unlock()
	return subCtx, cancel
}

var _ repository.ChatChannel = (*Channel)(nil)
