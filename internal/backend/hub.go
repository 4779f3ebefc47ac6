package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/averko/supportline/internal/core"
	"github.com/averko/supportline/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type wsClient struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool

	session    domain.SessionID
	user       domain.Identity
	role       domain.Role
	identified bool
}

func (c *wsClient) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// Hub fans frames out to every client attached to a session and tracks
// per-session presence.
type Hub struct {
	store *Store

	mu       sync.RWMutex
	groups   map[domain.SessionID]map[*wsClient]struct{}
	presence map[domain.SessionID]map[domain.Identity]struct{}
}

func NewHub(store *Store) *Hub {
	return &Hub{
		store:    store,
		groups:   make(map[domain.SessionID]map[*wsClient]struct{}),
		presence: make(map[domain.SessionID]map[domain.Identity]struct{}),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSession upgrades one websocket onto a session group.
func (h *Hub) HandleSession(ctx context.Context, c *gin.Context) {
	session := domain.SessionID(c.Param("id"))
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "backend.hub").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "backend.hub").Str("session", string(session)).Msg("new WS connection")

	client := &wsClient{
		conn:    ws,
		send:    make(chan core.Frame, 32),
		session: session,
	}
	h.register(client)
	h.sendJSON(client, map[string]any{"type": "connected", "session_id": session})

	go h.writePump(ctx, client)
	go h.readPump(ctx, client)
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.groups[c.session] == nil {
		h.groups[c.session] = make(map[*wsClient]struct{})
	}
	h.groups[c.session][c] = struct{}{}
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if g, ok := h.groups[c.session]; ok {
		delete(g, c)
		if len(g) == 0 {
			delete(h.groups, c.session)
		}
	}
}

func (h *Hub) addPresence(session domain.SessionID, id domain.Identity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.presence[session] == nil {
		h.presence[session] = make(map[domain.Identity]struct{})
	}
	h.presence[session][id] = struct{}{}
}

func (h *Hub) removePresence(session domain.SessionID, id domain.Identity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.presence[session]; ok {
		delete(p, id)
		if len(p) == 0 {
			delete(h.presence, session)
		}
	}
}

func (h *Hub) online(session domain.SessionID) []domain.Identity {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]domain.Identity, 0, len(h.presence[session]))
	for id := range h.presence[session] {
		out = append(out, id)
	}
	return out
}

// Broadcast sends v to every client in the session group, sender included.
func (h *Hub) Broadcast(session domain.SessionID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "backend.hub").Msg("broadcast marshal")
		return
	}
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.groups[session]))
	for c := range h.groups[session] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		_ = c.TrySend(b)
	}
}

// BroadcastMeetingStarted announces a call join on a session's channel.
// Fired on every token issue: the agent-side auto-join reacts to the
// customer accepting the invite.
func (h *Hub) BroadcastMeetingStarted(session domain.SessionID, link domain.LinkID) {
	h.Broadcast(session, map[string]any{
		"type":       "meeting.started",
		"session_id": session,
		"link_id":    link,
	})
}

func (h *Hub) sendJSON(c *wsClient, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "backend.hub").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (h *Hub) writePump(ctx context.Context, c *wsClient) {
	hubWritePump(ctx, c, "backend.hub")
}

func hubWritePump(ctx context.Context, c *wsClient, module string) {
	for {
		select {
		case <-ctx.Done():
			c.Close()
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", module).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", module).Msg("writePump write error")
				return
			}
		}
	}
}

func (h *Hub) readPump(ctx context.Context, c *wsClient) {
	defer func() {
		h.disconnect(c)
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "backend.hub").Str("session", string(c.session)).Msg("readPump exiting")
				return
			}
			h.handleFrame(c, data)
		}
	}
}

func (h *Hub) disconnect(c *wsClient) {
	h.unregister(c)
	if c.identified {
		h.removePresence(c.session, c.user)
		h.Broadcast(c.session, map[string]any{
			"type":   "presence",
			"action": "left",
			"user":   c.user,
		})
	}
}

func (h *Hub) handleFrame(c *wsClient, data []byte) {
	var frame struct {
		Action string `json:"action"`
		User   string `json:"user"`
		Role   string `json:"role"`
		Text   string `json:"text"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		h.sendJSON(c, map[string]any{"error": "invalid_json"})
		return
	}

	switch frame.Action {
	case "identify":
		h.handleIdentify(c, frame.User, frame.Role)
	case "message":
		h.handleMessage(c, frame.User, frame.Role, frame.Text)
	default:
		h.sendJSON(c, map[string]any{"error": "unknown_action", "action": frame.Action})
	}
}

func (h *Hub) handleIdentify(c *wsClient, user, role string) {
	c.user = domain.Identity(user)
	if r, err := domain.ParseRole(role); err == nil {
		c.role = r
	} else {
		c.role = domain.RoleCustomer
	}
	c.identified = true
	h.addPresence(c.session, c.user)

	h.Broadcast(c.session, map[string]any{
		"type":   "presence",
		"action": "joined",
		"user":   c.user,
		"role":   c.role,
	})
	h.sendJSON(c, map[string]any{
		"type":   "identified",
		"user":   c.user,
		"online": h.online(c.session),
	})
}

func (h *Hub) handleMessage(c *wsClient, user, role, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		h.sendJSON(c, map[string]any{"error": "empty_text"})
		return
	}

	sender := c.user
	if sender == "" {
		sender = domain.Identity(user)
	}
	msgRole := c.role
	if msgRole == "" {
		if r, err := domain.ParseRole(role); err == nil {
			msgRole = r
		} else {
			msgRole = domain.RoleCustomer
		}
	}

	msg, ok := h.store.AppendMessage(c.session, sender, msgRole, text)
	if !ok {
		h.sendJSON(c, map[string]any{"error": "unknown_session"})
		return
	}
	h.Broadcast(c.session, map[string]any{
		"type":       "message",
		"id":         msg.ID,
		"session_id": c.session,
		"sender":     msg.Sender,
		"role":       msg.Role,
		"text":       msg.Text,
		"created_at": msg.CreatedAt,
	})
}
