package core

import "encoding/json"

// EventKind is the canonical form of an inbound channel event. The backend
// emits several spellings for the same event depending on which code path
// produced it; everything funnels through Canonicalize before dispatch.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindMessage
	KindPresenceUpdate
	KindPresenceSnapshot
	KindMeetingStarted
)

func (k EventKind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindPresenceUpdate:
		return "presence_update"
	case KindPresenceSnapshot:
		return "presence_snapshot"
	case KindMeetingStarted:
		return "meeting_started"
	}
	return "unknown"
}

var eventAliases = map[string]EventKind{
	"message":         KindMessage,
	"chat.message":    KindMessage,
	"chat_message":    KindMessage,
	"presence":        KindPresenceUpdate,
	"presence.update": KindPresenceUpdate,
	"presence_update": KindPresenceUpdate,
	"identified":      KindPresenceSnapshot,
	"meeting.started": KindMeetingStarted,
	"meeting_started": KindMeetingStarted,
}

// Canonicalize maps a wire event spelling to its kind. Unmatched values map
// to KindUnknown and are passed through for logging only.
func Canonicalize(rawType string) EventKind {
	if k, ok := eventAliases[rawType]; ok {
		return k
	}
	return KindUnknown
}

const (
	PresenceJoined = "joined"
	PresenceLeft   = "left"
)

// Envelope is the union of fields any inbound frame may carry. Fields are
// read selectively per kind; unknown fields are ignored.
type Envelope struct {
	Type      string   `json:"type"`
	Action    string   `json:"action,omitempty"`
	User      string   `json:"user,omitempty"`
	Online    []string `json:"online,omitempty"`
	ID        string   `json:"id,omitempty"`
	Sender    string   `json:"sender,omitempty"`
	Role      string   `json:"role,omitempty"`
	Text      string   `json:"text,omitempty"`
	Message   string   `json:"message,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
	LinkID    string   `json:"link_id,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
}

// Body returns the chat text, tolerating both spellings the backend uses.
func (e *Envelope) Body() string {
	if e.Text != "" {
		return e.Text
	}
	return e.Message
}

// DecodeEnvelope parses a raw frame. A false return means the frame is
// malformed and must be dropped without mutating any state.
func DecodeEnvelope(frame []byte) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, false
	}
	return env, true
}
