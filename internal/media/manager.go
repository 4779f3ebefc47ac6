// Package media drives the lifecycle of one audio/video call: local capture
// tracks, the room connection, remote participant tracks, screen share and
// the tile registry behind the call view.
package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/averko/supportline/internal/core"
	"github.com/averko/supportline/internal/domain"
)

type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateConnecting
	StateConnected
	StateDisconnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring_media"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	}
	return "error"
}

var (
	ErrCallActive        = errors.New("call already active")
	ErrNoActiveCall      = errors.New("no active call")
	ErrCallClosed        = errors.New("call torn down during join")
	ErrScreenShareActive = errors.New("screen share already active")
)

type tileKey struct {
	owner domain.Identity
	track core.TrackID
}

// callSession is the per-call mutable state. It is owned solely by the
// Manager and mutated only under its lock; handlers receive it through the
// manager, never through captured ambient variables.
type callSession struct {
	room       core.Room
	localAudio core.LocalTrack
	localVideo core.LocalTrack
	screen     core.LocalTrack
	screenPub  core.Publication
	tiles      map[tileKey]core.Tile
	expanded   core.Tile
}

// Manager runs one call from join to leave. Leave is idempotent and is the
// single teardown path for local actions, errors and remote disconnects.
type Manager struct {
	provider core.MediaProvider
	surface  core.Surface
	identity domain.Identity

	mu        sync.Mutex
	state     State
	sess      *callSession
	leaveDone bool

	onLeave       func()
	onShareChange func(active bool)
}

func NewManager(provider core.MediaProvider, surface core.Surface, identity domain.Identity) *Manager {
	return &Manager{
		provider: provider,
		surface:  surface,
		identity: identity,
		state:    StateIdle,
	}
}

// OnLeave registers the completion callback invoked at most once, after
// teardown finishes. Set before Join.
func (m *Manager) OnLeave(fn func()) { m.onLeave = fn }

// OnScreenShareChange reports screen-share start/stop so the view can swap
// its affordances. Set before Join.
func (m *Manager) OnScreenShareChange(fn func(active bool)) { m.onShareChange = fn }

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Join acquires local capture, then connects to the room publishing the
// acquired tracks. Both local tracks come up disabled before anything is
// published; their tiles carry the disabled overlay from the start.
func (m *Manager) Join(ctx context.Context, token string, room domain.RoomName) error {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return ErrCallActive
	}
	m.state = StateAcquiring
	m.sess = &callSession{tiles: make(map[tileKey]core.Tile)}
	m.mu.Unlock()

	audio, video, err := m.provider.AcquireLocalTracks(ctx)
	if err != nil {
		m.mu.Lock()
		m.state = StateError
		m.mu.Unlock()
		return fmt.Errorf("acquire local media: %w", err)
	}
	audio.Disable()
	video.Disable()

	m.mu.Lock()
	if m.state != StateAcquiring {
		// Torn down while acquisition was in flight; do not orphan capture.
		m.mu.Unlock()
		audio.Stop()
		video.Stop()
		return ErrCallClosed
	}
	m.sess.localAudio = audio
	m.sess.localVideo = video
	m.addLocalTileLocked(audio, "")
	m.addLocalTileLocked(video, "")
	m.state = StateConnecting
	m.mu.Unlock()

	r, err := m.provider.Connect(ctx, token, room, []core.LocalTrack{audio, video})
	if err != nil {
		m.mu.Lock()
		if m.state == StateConnecting {
			m.state = StateError
			m.clearTilesLocked()
		}
		m.mu.Unlock()
		audio.Stop()
		video.Stop()
		return fmt.Errorf("connect room: %w", err)
	}

	m.mu.Lock()
	if m.state != StateConnecting {
		m.mu.Unlock()
		r.Disconnect()
		audio.Stop()
		video.Stop()
		return ErrCallClosed
	}
	m.sess.room = r
	m.state = StateConnected
	m.mu.Unlock()
	log.Info().Str("module", "media").Str("room", string(room)).Str("identity", string(m.identity)).Msg("connected")

	m.bindRoom(r)
	return nil
}

// bindRoom wires every room and participant event to its named handler.
// Already-present participants and their published tracks get tiles first.
func (m *Manager) bindRoom(r core.Room) {
	for _, p := range r.Participants() {
		m.handleParticipantConnected(p)
		for _, t := range p.Tracks() {
			m.handleTrackSubscribed(p, t)
		}
	}
	r.OnParticipantConnected(m.handleParticipantConnected)
	r.OnParticipantDisconnected(m.handleParticipantDisconnected)
	r.OnDisconnected(m.handleRoomDisconnected)
}

// ToggleMute flips the local audio track and only the tiles bound to it.
// Returns the new enabled state.
func (m *Manager) ToggleMute() (bool, error) {
	return m.toggleLocal(func(s *callSession) core.LocalTrack { return s.localAudio }, core.OverlayMuted)
}

// ToggleCamera flips the local video track, independent of any screen track.
func (m *Manager) ToggleCamera() (bool, error) {
	return m.toggleLocal(func(s *callSession) core.LocalTrack { return s.localVideo }, core.OverlayCameraOff)
}

func (m *Manager) toggleLocal(pick func(*callSession) core.LocalTrack, overlay core.OverlayKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return false, ErrNoActiveCall
	}
	track := pick(m.sess)
	if track == nil {
		return false, ErrNoActiveCall
	}

	if track.Enabled() {
		track.Disable()
	} else {
		track.Enable()
	}
	enabled := track.Enabled()
	if tile, ok := m.sess.tiles[tileKey{m.identity, track.ID()}]; ok {
		tile.SetOverlay(overlay, !enabled)
	}
	return enabled, nil
}

// Leave tears the call down: screen share, local tracks, every tile, the
// room connection, then the completion callback. Reachable from the local
// action, join failures and the remote disconnect event; calling it twice
// is a no-op.
func (m *Manager) Leave() {
	m.mu.Lock()
	if m.leaveDone {
		m.mu.Unlock()
		return
	}
	m.leaveDone = true
	m.state = StateDisconnected
	s := m.sess
	m.sess = nil
	m.mu.Unlock()

	if s != nil {
		if s.screenPub != nil && s.room != nil {
			// Best effort: local state resets regardless.
			if err := s.room.Unpublish(s.screenPub); err != nil {
				log.Warn().Err(err).Str("module", "media").Msg("unpublish screen on leave")
			}
		}
		if s.screen != nil {
			s.screen.Stop()
		}
		if s.localAudio != nil {
			s.localAudio.Stop()
		}
		if s.localVideo != nil {
			s.localVideo.Stop()
		}
		if s.expanded != nil {
			s.expanded.Detach()
			s.expanded.Close()
		}
		for key, tile := range s.tiles {
			tile.Detach()
			tile.Close()
			delete(s.tiles, key)
		}
		if s.room != nil {
			s.room.Disconnect()
		}
	}
	log.Info().Str("module", "media").Msg("call torn down")

	if m.onLeave != nil {
		m.onLeave()
	}
}
