package core

import (
	"context"

	"github.com/averko/supportline/internal/domain"
)

type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// TrackID is the opaque media handle; tiles are keyed by it, never by the
// participant alone.
type TrackID string

// LocalTrack is a capture track owned by the media session for the call's
// lifetime. Tracks are created disabled and enabled on user action.
type LocalTrack interface {
	ID() TrackID
	Kind() TrackKind
	Enabled() bool
	Enable()
	Disable()
	Stop()
	// OnEnded fires when the underlying capture ends outside the app,
	// e.g. the user stops a screen share via an OS-level control.
	OnEnded(func())
}

// RemoteTrack is owned by the room; the client only observes it.
type RemoteTrack interface {
	ID() TrackID
	Kind() TrackKind
	OnEnabled(func())
	OnDisabled(func())
	OnStopped(func())
}

type Participant interface {
	Identity() domain.Identity
	Tracks() []RemoteTrack
	OnTrackSubscribed(func(RemoteTrack))
	OnTrackUnsubscribed(func(RemoteTrack))
}

// Publication is the handle needed to later unpublish a local track.
type Publication interface {
	Track() LocalTrack
}

type Room interface {
	Name() domain.RoomName
	Participants() []Participant
	Publish(LocalTrack) (Publication, error)
	Unpublish(Publication) error
	OnParticipantConnected(func(Participant))
	OnParticipantDisconnected(func(Participant))
	// OnDisconnected fires once when the room connection ends remotely.
	OnDisconnected(func())
	Disconnect()
}

// MediaProvider produces capture tracks and room connections. Acquisition
// must complete before Connect: the local tracks are supplied atomically
// with the connection attempt.
type MediaProvider interface {
	AcquireLocalTracks(ctx context.Context) (audio, video LocalTrack, err error)
	AcquireScreenTrack(ctx context.Context) (LocalTrack, error)
	Connect(ctx context.Context, token string, room domain.RoomName, tracks []LocalTrack) (Room, error)
}
