package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/averko/supportline/internal/core"
	"github.com/averko/supportline/internal/domain"
)

type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	}
	return "closed"
}

var (
	ErrNotConnected = errors.New("not connected")
	ErrEmptyMessage = errors.New("empty message")
	ErrAlreadyOpen  = errors.New("controller already opened")
)

const (
	actionIdentify = "identify"
	actionMessage  = "message"
)

type outboundFrame struct {
	Action string          `json:"action"`
	Text   string          `json:"text,omitempty"`
	User   domain.Identity `json:"user"`
	Role   domain.Role     `json:"role"`
}

// Controller owns exactly one session channel for its lifetime. Closed is
// terminal: there is no retry, a new instance must be created to reconnect.
type Controller struct {
	dialer core.Dialer
	wsBase string

	mu       sync.Mutex
	state    ConnState
	ch       core.SignalChannel
	identity domain.Identity
	role     domain.Role
	messages []domain.Message

	presence *PresenceSet

	onMessage func(domain.Message)
	onMeeting func(domain.LinkID)
}

func NewController(dialer core.Dialer, wsBase string) *Controller {
	return &Controller{
		dialer:   dialer,
		wsBase:   wsBase,
		presence: NewPresenceSet(),
	}
}

func (c *Controller) Presence() *PresenceSet { return c.presence }

func (c *Controller) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnMessage registers the observer for appended messages. Set before Open.
func (c *Controller) OnMessage(fn func(domain.Message)) { c.onMessage = fn }

// OnMeetingStarted registers the one-shot escalation notification. It fires
// once per meeting.started frame; two frames produce two notifications.
// Set before Open.
func (c *Controller) OnMeetingStarted(fn func(domain.LinkID)) { c.onMeeting = fn }

// PreloadHistory seeds the message log from the backend history endpoint.
// Call before Open; the channel is the authoritative source afterwards.
func (c *Controller) PreloadHistory(msgs []domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages[:0], msgs...)
}

// Messages returns a copy of the log in arrival order.
func (c *Controller) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Open dials the session channel and identifies. Valid only from StateIdle.
func (c *Controller) Open(ctx context.Context, session domain.SessionID, identity domain.Identity, role domain.Role) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.state = StateConnecting
	c.identity = identity
	c.role = role
	c.mu.Unlock()

	url := fmt.Sprintf("%s/ws/sessions/%s/", c.wsBase, session)
	ch, err := c.dialer.Dial(ctx, url, c.handleFrame, c.Close)
	if err != nil {
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		return fmt.Errorf("dial session channel: %w", err)
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Closed while the dial was in flight; Closed stays terminal and
		// the fresh channel must not leak.
		c.mu.Unlock()
		ch.Close()
		return ErrNotConnected
	}
	c.ch = ch
	c.state = StateOpen
	c.mu.Unlock()
	log.Info().Str("module", "app.controller").Str("session", string(session)).Str("user", string(identity)).Msg("channel open")

	return c.send(outboundFrame{Action: actionIdentify, User: identity, Role: role})
}

// SendMessage broadcasts a chat message. The trimmed text must be non-empty.
func (c *Controller) SendMessage(text string) error {
	trimmed := strings.TrimSpace(text)

	c.mu.Lock()
	state, identity, role := c.state, c.identity, c.role
	c.mu.Unlock()
	if state != StateOpen {
		return ErrNotConnected
	}
	if trimmed == "" {
		return ErrEmptyMessage
	}
	return c.send(outboundFrame{Action: actionMessage, Text: trimmed, User: identity, Role: role})
}

func (c *Controller) send(f outboundFrame) error {
	c.mu.Lock()
	state, ch := c.state, c.ch
	c.mu.Unlock()
	if state != StateOpen || ch == nil {
		return ErrNotConnected
	}
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", f.Action, err)
	}
	if err := ch.TrySend(b); err != nil {
		return fmt.Errorf("send %s frame: %w", f.Action, err)
	}
	return nil
}

// handleFrame processes one inbound frame. Frames arrive serially from the
// transport read loop; malformed frames are dropped without mutating state.
func (c *Controller) handleFrame(frame core.Frame) {
	env, ok := core.DecodeEnvelope(frame)
	if !ok {
		log.Debug().Str("module", "app.controller").Msg("dropping malformed frame")
		return
	}

	switch core.Canonicalize(env.Type) {
	case core.KindMessage:
		c.appendMessage(env)
	case core.KindPresenceUpdate:
		c.applyPresence(env)
	case core.KindPresenceSnapshot:
		ids := make([]domain.Identity, 0, len(env.Online))
		for _, u := range env.Online {
			ids = append(ids, domain.Identity(u))
		}
		c.presence.Snapshot(ids)
	case core.KindMeetingStarted:
		log.Info().Str("module", "app.controller").Str("link", env.LinkID).Msg("meeting started")
		if c.onMeeting != nil {
			c.onMeeting(domain.LinkID(env.LinkID))
		}
	default:
		log.Debug().Str("module", "app.controller").Str("type", env.Type).Msg("unknown event")
	}
}

func (c *Controller) appendMessage(env core.Envelope) {
	msg := domain.Message{
		ID:        domain.MessageID(env.ID),
		Sender:    domain.Identity(env.Sender),
		Role:      domain.Role(env.Role),
		Text:      env.Body(),
		CreatedAt: env.CreatedAt,
	}
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

func (c *Controller) applyPresence(env core.Envelope) {
	switch env.Action {
	case core.PresenceJoined:
		c.presence.Join(domain.Identity(env.User))
	case core.PresenceLeft:
		c.presence.Leave(domain.Identity(env.User))
	default:
		log.Debug().Str("module", "app.controller").Str("action", env.Action).Msg("unknown presence action")
	}
}

// Close releases the channel. Safe to call any number of times and from the
// remote-close path; the controller stays Closed afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	ch := c.ch
	c.ch = nil
	c.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	log.Info().Str("module", "app.controller").Msg("channel closed")
}
