package core

import "github.com/averko/supportline/internal/domain"

// OverlayKind marks the disabled-state affordance a tile can show.
type OverlayKind string

const (
	OverlayMuted     OverlayKind = "muted"
	OverlayCameraOff OverlayKind = "camera_off"
)

// Tile is one visual surface bound to exactly one track at a time.
// Implementations are per platform; the registry and removal logic in
// internal/media never touch a real rendering surface.
type Tile interface {
	Attach(TrackID)
	Detach()
	SetOverlay(OverlayKind, bool)
	Close()
}

// Surface creates tiles. label distinguishes e.g. a screen tile from the
// camera tile of the same participant.
type Surface interface {
	CreateTile(owner domain.Identity, kind TrackKind, label string) Tile
}
