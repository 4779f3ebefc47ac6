package media

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/averko/supportline/internal/core"
)

const screenLabel = "screen"

// StartScreenShare requests a screen-capture source, publishes it and adds
// its tile. The capture's end-of-stream hook routes into StopScreenShare so
// that stopping via an OS-level control behaves like the in-app button.
func (m *Manager) StartScreenShare(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateConnected || m.sess == nil {
		m.mu.Unlock()
		return ErrNoActiveCall
	}
	if m.sess.screen != nil {
		m.mu.Unlock()
		return ErrScreenShareActive
	}
	room := m.sess.room
	m.mu.Unlock()

	track, err := m.provider.AcquireScreenTrack(ctx)
	if err != nil {
		return fmt.Errorf("acquire screen capture: %w", err)
	}

	pub, err := room.Publish(track)
	if err != nil {
		track.Stop()
		return fmt.Errorf("publish screen track: %w", err)
	}

	m.mu.Lock()
	if m.sess == nil {
		// Torn down while the prompt was open.
		m.mu.Unlock()
		_ = room.Unpublish(pub)
		track.Stop()
		return ErrCallClosed
	}
	m.sess.screen = track
	m.sess.screenPub = pub
	tile := m.surface.CreateTile(m.identity, core.TrackVideo, screenLabel)
	tile.Attach(track.ID())
	m.sess.tiles[tileKey{m.identity, track.ID()}] = tile
	m.mu.Unlock()

	track.OnEnded(m.StopScreenShare)
	log.Info().Str("module", "media").Str("track", string(track.ID())).Msg("screen share started")

	if m.onShareChange != nil {
		m.onShareChange(true)
	}
	return nil
}

// StopScreenShare unpublishes and stops the screen track and removes its
// tile. Unpublish failures are swallowed so local state still resets. Safe
// from the explicit action, from the capture's ended hook, and when no
// screen track is active.
func (m *Manager) StopScreenShare() {
	m.mu.Lock()
	s := m.sess
	if s == nil || s.screen == nil {
		m.mu.Unlock()
		return
	}
	track := s.screen
	pub := s.screenPub
	room := s.room
	s.screen = nil
	s.screenPub = nil
	m.mu.Unlock()

	if pub != nil && room != nil {
		if err := room.Unpublish(pub); err != nil {
			log.Warn().Err(err).Str("module", "media").Msg("unpublish screen track")
		}
	}
	track.Stop()
	m.removeTrackTiles(m.identity, track.ID())
	log.Info().Str("module", "media").Str("track", string(track.ID())).Msg("screen share stopped")

	if m.onShareChange != nil {
		m.onShareChange(false)
	}
}
