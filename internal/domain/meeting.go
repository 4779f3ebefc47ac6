package domain

type (
	LinkID   string
	RoomName string
)

// MeetingLink escalates a chat session into a call. Minted by the backend,
// consumed by the join flow; the one-time flag plus AllowedCount bound how
// many identities may be issued a token against it.
type MeetingLink struct {
	ID           LinkID    `json:"id"`
	Session      SessionID `json:"session_id,omitempty"`
	Creator      Identity  `json:"creator,omitempty"`
	RoomName     RoomName  `json:"room_name,omitempty"`
	OneTime      bool      `json:"one_time"`
	AllowedCount int       `json:"allowed_count"`
}

// LinkValidation is the backend's verdict on a meeting link before join.
type LinkValidation struct {
	Valid   bool      `json:"valid"`
	Reason  string    `json:"reason,omitempty"`
	Room    RoomName  `json:"room_name,omitempty"`
	Session SessionID `json:"session_id,omitempty"`
}

// CallAccess is the credential set issued against a validated link.
type CallAccess struct {
	Token    string    `json:"token"`
	Mode     string    `json:"mode"`
	Identity Identity  `json:"identity"`
	Room     RoomName  `json:"-"`
	Session  SessionID `json:"-"`
}
