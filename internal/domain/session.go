package domain

import "time"

type SessionID string

// Session is created by the backend; clients only reference its id.
type Session struct {
	ID        SessionID `json:"id"`
	Title     string    `json:"title,omitempty"`
	Agent     Identity  `json:"agent_id,omitempty"`
	Customer  Identity  `json:"customer_id,omitempty"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

type MessageID string

// Message is one entry of the append-only per-session log.
// Ordering is arrival order on the channel; the client never reorders.
type Message struct {
	ID        MessageID `json:"id"`
	Sender    Identity  `json:"sender"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt string    `json:"created_at,omitempty"`
}
