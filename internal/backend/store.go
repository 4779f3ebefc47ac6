// Package backend is an in-process stand-in for the support backend: the
// REST API, the per-session message channel and the meeting-link registry.
// It backs cmd/server and the end-to-end tests.
package backend

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/averko/supportline/internal/domain"
)

type meetingState struct {
	link     domain.MeetingLink
	issued   int
	consumed bool
}

// Store keeps sessions, messages and meeting links in memory.
type Store struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.Session
	messages map[domain.SessionID][]domain.Message
	meetings map[domain.LinkID]*meetingState
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[domain.SessionID]*domain.Session),
		messages: make(map[domain.SessionID][]domain.Message),
		meetings: make(map[domain.LinkID]*meetingState),
	}
}

func (s *Store) CreateSession(title string, agent, customer domain.Identity) domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := domain.Session{
		ID:        domain.SessionID(uuid.NewString()),
		Title:     title,
		Agent:     agent,
		Customer:  customer,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	s.sessions[sess.ID] = &sess
	return sess
}

func (s *Store) Session(id domain.SessionID) (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	return *sess, true
}

func (s *Store) ListSessions() []domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	return out
}

func (s *Store) CloseSession(id domain.SessionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	sess.Active = false
	return true
}

// AppendMessage persists and returns the stored message; ok is false when
// the session does not exist.
func (s *Store) AppendMessage(id domain.SessionID, sender domain.Identity, role domain.Role, text string) (domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return domain.Message{}, false
	}
	msg := domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		Sender:    sender,
		Role:      role,
		Text:      text,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	s.messages[id] = append(s.messages[id], msg)
	return msg, true
}

func (s *Store) Messages(id domain.SessionID) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[id]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

func (s *Store) CreateMeeting(session domain.SessionID, creator domain.Identity, oneTime bool, allowed int) (domain.MeetingLink, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[session]
	if !ok || !sess.Active {
		return domain.MeetingLink{}, false
	}
	link := domain.MeetingLink{
		ID:           domain.LinkID(uuid.NewString()),
		Session:      session,
		Creator:      creator,
		RoomName:     domain.RoomName(fmt.Sprintf("support-%s", session)),
		OneTime:      oneTime,
		AllowedCount: allowed,
	}
	s.meetings[link.ID] = &meetingState{link: link}
	return link, true
}

func (s *Store) ValidateMeeting(id domain.LinkID) domain.LinkValidation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[id]
	if !ok {
		return domain.LinkValidation{Valid: false, Reason: "not_found"}
	}
	if m.consumed {
		return domain.LinkValidation{Valid: false, Reason: "consumed"}
	}
	return domain.LinkValidation{
		Valid:   true,
		Room:    m.link.RoomName,
		Session: m.link.Session,
	}
}

// IssueToken hands out call-join credentials against a link. A one-time
// link is consumed once its allowed participant count is exhausted.
func (s *Store) IssueToken(id domain.LinkID, identity domain.Identity) (domain.CallAccess, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return domain.CallAccess{}, "not_found"
	}
	if m.consumed {
		return domain.CallAccess{}, "consumed"
	}
	m.issued++
	if m.link.OneTime && m.issued >= m.link.AllowedCount {
		m.consumed = true
	}
	return domain.CallAccess{
		Token:    fmt.Sprintf("tok-%s", uuid.NewString()),
		Mode:     "p2p",
		Identity: identity,
		Room:     m.link.RoomName,
		Session:  m.link.Session,
	}, ""
}
