package entity

type Message struct {
	ID        string `json:"id" firestore:"id"`
	Sender    string `json:"sender" firestore:"sender"`
	Text      string `json:"message" firestore:"message"`
	Timestamp int64  `json:"timestamp" firestore:"timestamp"` // epoch milliseconds
	IsAdmin   bool   `json:"isAdmin" firestore:"isAdmin"`
	Recipient string `json:"recipient" firestore:"recipient"`
	Read      bool   `json:"read" firestore:"read"`
}

// DedupKey identifies a message for cache merging. The polling backend does
// not carry a stable message ID, so equality falls back to the
// (timestamp, text) pair. Two identical texts written in the same millisecond
// collapse into one; see the cache documentation.
type DedupKey struct {
	Timestamp int64
	Text      string
}

func (m *Message) DedupKey() DedupKey {
	return DedupKey{Timestamp: m.Timestamp, Text: m.Text}
}
