package entity

type Presence struct {
	Email      string `json:"email" firestore:"email"`
	LastActive int64  `json:"lastActive" firestore:"lastActive"` // epoch milliseconds
}

type TypingStatus struct {
	Email     string `json:"email" firestore:"email"`
	IsTyping  bool   `json:"isTyping" firestore:"isTyping"`
	Timestamp int64  `json:"timestamp" firestore:"timestamp"`
}
