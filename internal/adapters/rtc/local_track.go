// Package rtc is the pion-backed media provider: mediadevices capture and
// a 1:1 peer connection negotiated over the backend's meeting relay.
package rtc

import (
	"sync"

	"github.com/pion/mediadevices"
	"github.com/pion/webrtc/v4"

	"github.com/averko/supportline/internal/core"
)

// localTrack wraps a capture track with the advertised enabled flag. The
// flag starts false; flipping it is announced to the room session so the
// remote side can toggle its overlay. Actual encoder pause is left to the
// driver.
type localTrack struct {
	track mediadevices.Track
	kind  core.TrackKind

	mu       sync.Mutex
	enabled  bool
	stopped  bool
	ended    []func()
	announce func(id core.TrackID, enabled bool)
}

func wrapLocalTrack(t mediadevices.Track) *localTrack {
	kind := core.TrackAudio
	if t.Kind() == webrtc.RTPCodecTypeVideo {
		kind = core.TrackVideo
	}
	lt := &localTrack{track: t, kind: kind}
	t.OnEnded(func(error) { lt.fireEnded() })
	return lt
}

func (t *localTrack) ID() core.TrackID     { return core.TrackID(t.track.ID()) }
func (t *localTrack) Kind() core.TrackKind { return t.kind }

func (t *localTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *localTrack) Enable()  { t.setEnabled(true) }
func (t *localTrack) Disable() { t.setEnabled(false) }

func (t *localTrack) setEnabled(v bool) {
	t.mu.Lock()
	if t.enabled == v || t.stopped {
		t.mu.Unlock()
		return
	}
	t.enabled = v
	announce := t.announce
	t.mu.Unlock()
	if announce != nil {
		announce(t.ID(), v)
	}
}

// bind attaches the room-session announcer once the track is published.
func (t *localTrack) bind(announce func(core.TrackID, bool)) {
	t.mu.Lock()
	t.announce = announce
	t.mu.Unlock()
}

func (t *localTrack) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.mu.Unlock()
	_ = t.track.Close()
}

func (t *localTrack) OnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ended = append(t.ended, fn)
}

func (t *localTrack) fireEnded() {
	t.mu.Lock()
	fns := append([]func(){}, t.ended...)
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
