package media

import (
	"github.com/rs/zerolog/log"

	"github.com/averko/supportline/internal/core"
	"github.com/averko/supportline/internal/domain"
)

// Tiles are keyed by (participant identity, track handle), never by the
// participant alone: removing a track removes only the tile bound to that
// exact track and leaves sibling tracks' tiles untouched.

func (m *Manager) addLocalTileLocked(track core.LocalTrack, label string) {
	tile := m.surface.CreateTile(m.identity, track.Kind(), label)
	tile.Attach(track.ID())
	if !track.Enabled() {
		tile.SetOverlay(overlayFor(track.Kind()), true)
	}
	m.sess.tiles[tileKey{m.identity, track.ID()}] = tile
}

func overlayFor(kind core.TrackKind) core.OverlayKind {
	if kind == core.TrackAudio {
		return core.OverlayMuted
	}
	return core.OverlayCameraOff
}

func (m *Manager) handleParticipantConnected(p core.Participant) {
	log.Info().Str("module", "media").Str("participant", string(p.Identity())).Msg("participant connected")
	p.OnTrackSubscribed(func(t core.RemoteTrack) { m.handleTrackSubscribed(p, t) })
	p.OnTrackUnsubscribed(func(t core.RemoteTrack) { m.handleTrackUnsubscribed(p, t) })
}

func (m *Manager) handleParticipantDisconnected(p core.Participant) {
	identity := p.Identity()
	m.mu.Lock()
	s := m.sess
	if s == nil {
		m.mu.Unlock()
		return
	}
	for key, tile := range s.tiles {
		if key.owner == identity {
			tile.Detach()
			tile.Close()
			delete(s.tiles, key)
		}
	}
	m.mu.Unlock()
	log.Info().Str("module", "media").Str("participant", string(identity)).Msg("participant disconnected")
}

// handleTrackSubscribed creates exactly one tile for the subscribed track
// and wires its enabled/disabled/stopped observers to that tile only.
func (m *Manager) handleTrackSubscribed(p core.Participant, t core.RemoteTrack) {
	identity := p.Identity()
	key := tileKey{identity, t.ID()}

	m.mu.Lock()
	s := m.sess
	if s == nil {
		m.mu.Unlock()
		return
	}
	if _, exists := s.tiles[key]; exists {
		m.mu.Unlock()
		return
	}
	tile := m.surface.CreateTile(identity, t.Kind(), "")
	tile.Attach(t.ID())
	s.tiles[key] = tile
	m.mu.Unlock()

	overlay := overlayFor(t.Kind())
	t.OnDisabled(func() { m.setOverlay(key, overlay, true) })
	t.OnEnabled(func() { m.setOverlay(key, overlay, false) })
	t.OnStopped(func() { m.removeTrackTiles(identity, t.ID()) })
}

func (m *Manager) handleTrackUnsubscribed(p core.Participant, t core.RemoteTrack) {
	m.removeTrackTiles(p.Identity(), t.ID())
}

func (m *Manager) handleRoomDisconnected() {
	m.Leave()
}

func (m *Manager) setOverlay(key tileKey, kind core.OverlayKind, visible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return
	}
	if tile, ok := m.sess.tiles[key]; ok {
		tile.SetOverlay(kind, visible)
	}
}

// removeTrackTiles removes only the tile bound to this exact track. Stop
// and unsubscribe may both fire for one track; the second removal is a
// no-op, not a double free.
func (m *Manager) removeTrackTiles(owner domain.Identity, id core.TrackID) {
	key := tileKey{owner, id}
	m.mu.Lock()
	s := m.sess
	if s == nil {
		m.mu.Unlock()
		return
	}
	tile, ok := s.tiles[key]
	if ok {
		delete(s.tiles, key)
	}
	m.mu.Unlock()

	if ok {
		tile.Detach()
		tile.Close()
	}
}

func (m *Manager) clearTilesLocked() {
	if m.sess == nil {
		return
	}
	for key, tile := range m.sess.tiles {
		tile.Detach()
		tile.Close()
		delete(m.sess.tiles, key)
	}
}

// TileCount reports the registry size; display code and tests use it, the
// registry itself is never handed out.
func (m *Manager) TileCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return 0
	}
	return len(m.sess.tiles)
}

func (m *Manager) HasTile(owner domain.Identity, id core.TrackID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return false
	}
	_, ok := m.sess.tiles[tileKey{owner, id}]
	return ok
}

// Expand attaches a second, independent surface for an existing track into
// the overlay. The original tile and the track lifecycle are untouched.
func (m *Manager) Expand(owner domain.Identity, id core.TrackID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sess
	if s == nil {
		return ErrNoActiveCall
	}
	if _, ok := s.tiles[tileKey{owner, id}]; !ok {
		return ErrNoActiveCall
	}
	if s.expanded != nil {
		s.expanded.Detach()
		s.expanded.Close()
	}
	tile := m.surface.CreateTile(owner, core.TrackVideo, "expanded")
	tile.Attach(id)
	s.expanded = tile
	return nil
}

// CloseExpanded detaches only the secondary surface.
func (m *Manager) CloseExpanded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil || m.sess.expanded == nil {
		return
	}
	m.sess.expanded.Detach()
	m.sess.expanded.Close()
	m.sess.expanded = nil
}
