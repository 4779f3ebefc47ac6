package rtc

import (
	"sync"

	"github.com/averko/supportline/internal/core"
	"github.com/averko/supportline/internal/domain"
)

// remoteTrack mirrors a peer's published track. Enabled state changes arrive
// as track_state frames over the relay, not from RTP itself.
type remoteTrack struct {
	id   core.TrackID
	kind core.TrackKind

	mu         sync.Mutex
	stopped    bool
	onEnabled  []func()
	onDisabled []func()
	onStopped  []func()
}

func (t *remoteTrack) ID() core.TrackID     { return t.id }
func (t *remoteTrack) Kind() core.TrackKind { return t.kind }

func (t *remoteTrack) OnEnabled(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnabled = append(t.onEnabled, fn)
}

func (t *remoteTrack) OnDisabled(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDisabled = append(t.onDisabled, fn)
}

func (t *remoteTrack) OnStopped(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStopped = append(t.onStopped, fn)
}

func (t *remoteTrack) fireState(enabled bool) {
	t.mu.Lock()
	var fns []func()
	if enabled {
		fns = append(fns, t.onEnabled...)
	} else {
		fns = append(fns, t.onDisabled...)
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (t *remoteTrack) fireStopped() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	fns := append([]func(){}, t.onStopped...)
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type participant struct {
	identity domain.Identity

	mu      sync.Mutex
	tracks  map[core.TrackID]*remoteTrack
	onSub   []func(core.RemoteTrack)
	onUnsub []func(core.RemoteTrack)
}

func newParticipant(identity domain.Identity) *participant {
	return &participant{identity: identity, tracks: make(map[core.TrackID]*remoteTrack)}
}

func (p *participant) Identity() domain.Identity { return p.identity }

func (p *participant) Tracks() []core.RemoteTrack {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.RemoteTrack, 0, len(p.tracks))
	for _, t := range p.tracks {
		out = append(out, t)
	}
	return out
}

func (p *participant) OnTrackSubscribed(fn func(core.RemoteTrack)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onSub = append(p.onSub, fn)
}

func (p *participant) OnTrackUnsubscribed(fn func(core.RemoteTrack)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onUnsub = append(p.onUnsub, fn)
}

func (p *participant) addTrack(t *remoteTrack) {
	p.mu.Lock()
	p.tracks[t.id] = t
	fns := append([]func(core.RemoteTrack){}, p.onSub...)
	p.mu.Unlock()
	for _, fn := range fns {
		fn(t)
	}
}

func (p *participant) removeTrack(id core.TrackID) {
	p.mu.Lock()
	t, ok := p.tracks[id]
	if ok {
		delete(p.tracks, id)
	}
	fns := append([]func(core.RemoteTrack){}, p.onUnsub...)
	p.mu.Unlock()
	if !ok {
		return
	}
	t.fireStopped()
	for _, fn := range fns {
		fn(t)
	}
}

func (p *participant) track(id core.TrackID) *remoteTrack {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracks[id]
}

func (p *participant) removeAll() []*remoteTrack {
	p.mu.Lock()
	out := make([]*remoteTrack, 0, len(p.tracks))
	for id, t := range p.tracks {
		out = append(out, t)
		delete(p.tracks, id)
	}
	p.mu.Unlock()
	return out
}
