package usecase

import (
	"sort"
	"sync"

	"bidchat/internal/domain/entity"
)

// MessageCache holds the per-counterparty buffer of already delivered
// messages. It exists so each poll or snapshot only surfaces messages not
// seen before, instead of re-rendering the whole conversation.
//
// Dedup equality is the (timestamp, text) pair, not a real identifier: the
// polling backend never threads a message ID through. Two identical texts
// stamped in the same millisecond would be collapsed. Entries are never
// evicted; a conversation is bounded by one session's lifetime.
type MessageCache struct {
	mu      sync.Mutex
	entries map[string][]entity.Message
	seen    map[string]map[entity.DedupKey]struct{}
}

func NewMessageCache() *MessageCache {
	return &MessageCache{
		entries: make(map[string][]entity.Message),
		seen:    make(map[string]map[entity.DedupKey]struct{}),
	}
}

// Merge appends the not-yet-seen subset of incoming to the counterparty's
// buffer and returns it, preserving incoming order.
func (c *MessageCache) Merge(counterparty string, incoming []entity.Message) []entity.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.seen[counterparty]
	if keys == nil {
		keys = make(map[entity.DedupKey]struct{})
		c.seen[counterparty] = keys
	}

	var fresh []entity.Message
	for _, msg := range incoming {
		key := msg.DedupKey()
		if _, ok := keys[key]; ok {
			continue
		}
		keys[key] = struct{}{}
		fresh = append(fresh, msg)
	}

	c.entries[counterparty] = append(c.entries[counterparty], fresh...)
	return fresh
}

// Transcript returns the conversation ordered by ascending timestamp.
// Out-of-order arrivals are resorted here; ties keep arrival order.
func (c *MessageCache) Transcript(counterparty string) []entity.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := make([]entity.Message, len(c.entries[counterparty]))
	copy(msgs, c.entries[counterparty])
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp < msgs[j].Timestamp
	})
	return msgs
}

// LastTimestamp is the newest cached timestamp for the counterparty, used as
// the incremental-fetch cursor. Zero when nothing is cached.
func (c *MessageCache) LastTimestamp(counterparty string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var last int64
	for _, msg := range c.entries[counterparty] {
		if msg.Timestamp > last {
			last = msg.Timestamp
		}
	}
	return last
}

// MarkRead flips the cached copy's read flag so unread counts settle without
// waiting for the backend to echo the update.
func (c *MessageCache) MarkRead(counterparty, messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := c.entries[counterparty]
	for i := range msgs {
		if msgs[i].ID == messageID {
			msgs[i].Read = true
			return
		}
	}
}
