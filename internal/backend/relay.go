package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/averko/supportline/internal/core"
	"github.com/averko/supportline/internal/domain"
)

// Relay forwards signaling frames between the peers of one meeting room.
// It never inspects SDP; it only announces membership and fans frames out
// to the other side.
type Relay struct {
	mu    sync.RWMutex
	rooms map[domain.RoomName]map[*wsClient]struct{}
}

func NewRelay() *Relay {
	return &Relay{rooms: make(map[domain.RoomName]map[*wsClient]struct{})}
}

// HandleMeeting upgrades one websocket onto a meeting room.
func (r *Relay) HandleMeeting(ctx context.Context, c *gin.Context) {
	room := domain.RoomName(c.Param("room"))
	identity := domain.Identity(c.Query("identity"))
	if identity == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identity required"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "backend.relay").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "backend.relay").Str("room", string(room)).Str("identity", string(identity)).Msg("peer connected")

	client := &wsClient{
		conn: ws,
		send: make(chan core.Frame, 32),
		user: identity,
	}

	peers := r.join(room, client)
	r.sendState(client, peers)
	r.fanout(room, client, mustJSON(map[string]any{
		"type":     "peer_joined",
		"identity": identity,
	}))

	go r.writePump(ctx, client)
	go r.readPump(ctx, room, client)
}

// join registers the client and returns the identities already present.
func (r *Relay) join(room domain.RoomName, c *wsClient) []domain.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	peers := make([]domain.Identity, 0, len(r.rooms[room]))
	for other := range r.rooms[room] {
		peers = append(peers, other.user)
	}
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[*wsClient]struct{})
	}
	r.rooms[room][c] = struct{}{}
	return peers
}

func (r *Relay) leave(room domain.RoomName, c *wsClient) {
	r.mu.Lock()
	if g, ok := r.rooms[room]; ok {
		delete(g, c)
		if len(g) == 0 {
			delete(r.rooms, room)
		}
	}
	r.mu.Unlock()
	r.fanout(room, c, mustJSON(map[string]any{
		"type":     "peer_left",
		"identity": c.user,
	}))
}

func (r *Relay) sendState(c *wsClient, peers []domain.Identity) {
	_ = c.TrySend(mustJSON(map[string]any{
		"type":  "room_state",
		"peers": peers,
	}))
}

// fanout delivers data to every room member except from.
func (r *Relay) fanout(room domain.RoomName, from *wsClient, data core.Frame) {
	if data == nil {
		return
	}
	r.mu.RLock()
	clients := make([]*wsClient, 0, len(r.rooms[room]))
	for c := range r.rooms[room] {
		if c != from {
			clients = append(clients, c)
		}
	}
	r.mu.RUnlock()
	for _, c := range clients {
		if err := c.TrySend(data); err != nil {
			log.Warn().Err(err).Str("module", "backend.relay").Str("room", string(room)).Msg("relay drop")
		}
	}
}

func (r *Relay) writePump(ctx context.Context, c *wsClient) {
	hubWritePump(ctx, c, "backend.relay")
}

func (r *Relay) readPump(ctx context.Context, room domain.RoomName, c *wsClient) {
	defer func() {
		r.leave(room, c)
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "backend.relay").Str("room", string(room)).Msg("readPump exiting")
				return
			}
			r.fanout(room, c, data)
		}
	}
}

func mustJSON(v any) core.Frame {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "backend.relay").Msg("marshal")
		return nil
	}
	return b
}
