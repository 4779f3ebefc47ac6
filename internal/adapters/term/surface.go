// Package term renders call tiles as log lines. The console client has no
// video output; the tile grid exists so the operator can see who is in the
// call and what each track is doing.
package term

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/averko/supportline/internal/core"
	"github.com/averko/supportline/internal/domain"
)

type Surface struct {
	mu  sync.Mutex
	seq int
}

func NewSurface() *Surface { return &Surface{} }

func (s *Surface) CreateTile(owner domain.Identity, kind core.TrackKind, label string) core.Tile {
	s.mu.Lock()
	s.seq++
	n := s.seq
	s.mu.Unlock()

	t := &tile{n: n, owner: owner, kind: kind, label: label}
	log.Info().Str("module", "term").Int("tile", n).
		Str("owner", string(owner)).Str("kind", string(kind)).Str("label", label).
		Msg("tile created")
	return t
}

type tile struct {
	n     int
	owner domain.Identity
	kind  core.TrackKind
	label string

	mu       sync.Mutex
	track    core.TrackID
	overlays map[core.OverlayKind]bool
	closed   bool
}

func (t *tile) Attach(id core.TrackID) {
	t.mu.Lock()
	t.track = id
	t.mu.Unlock()
	log.Info().Str("module", "term").Int("tile", t.n).Str("track", string(id)).Msg("tile attached")
}

func (t *tile) Detach() {
	t.mu.Lock()
	id := t.track
	t.track = ""
	t.mu.Unlock()
	log.Info().Str("module", "term").Int("tile", t.n).Str("track", string(id)).Msg("tile detached")
}

func (t *tile) SetOverlay(kind core.OverlayKind, visible bool) {
	t.mu.Lock()
	if t.overlays == nil {
		t.overlays = make(map[core.OverlayKind]bool)
	}
	t.overlays[kind] = visible
	t.mu.Unlock()
	log.Info().Str("module", "term").Int("tile", t.n).
		Str("overlay", string(kind)).Bool("visible", visible).
		Msg("tile overlay")
}

func (t *tile) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()
	log.Info().Str("module", "term").Int("tile", t.n).Str("owner", string(t.owner)).Msg("tile closed")
}
