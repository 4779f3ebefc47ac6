package media

import (
	"context"
	"errors"
	"sync"

	"github.com/averko/supportline/internal/core"
	"github.com/averko/supportline/internal/domain"
)

type fakeLocalTrack struct {
	id   core.TrackID
	kind core.TrackKind

	mu      sync.Mutex
	enabled bool
	stops   int
	ended   []func()
}

func newFakeLocalTrack(id string, kind core.TrackKind) *fakeLocalTrack {
	return &fakeLocalTrack{id: core.TrackID(id), kind: kind}
}

func (t *fakeLocalTrack) ID() core.TrackID     { return t.id }
func (t *fakeLocalTrack) Kind() core.TrackKind { return t.kind }

func (t *fakeLocalTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *fakeLocalTrack) Enable() {
	t.mu.Lock()
	t.enabled = true
	t.mu.Unlock()
}

func (t *fakeLocalTrack) Disable() {
	t.mu.Lock()
	t.enabled = false
	t.mu.Unlock()
}

func (t *fakeLocalTrack) Stop() {
	t.mu.Lock()
	t.stops++
	t.mu.Unlock()
}

func (t *fakeLocalTrack) stopCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops
}

func (t *fakeLocalTrack) OnEnded(fn func()) {
	t.mu.Lock()
	t.ended = append(t.ended, fn)
	t.mu.Unlock()
}

func (t *fakeLocalTrack) fireEnded() {
	t.mu.Lock()
	fns := append([]func(){}, t.ended...)
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type fakeRemoteTrack struct {
	id   core.TrackID
	kind core.TrackKind

	mu         sync.Mutex
	onEnabled  []func()
	onDisabled []func()
	onStopped  []func()
}

func newFakeRemoteTrack(id string, kind core.TrackKind) *fakeRemoteTrack {
	return &fakeRemoteTrack{id: core.TrackID(id), kind: kind}
}

func (t *fakeRemoteTrack) ID() core.TrackID     { return t.id }
func (t *fakeRemoteTrack) Kind() core.TrackKind { return t.kind }

func (t *fakeRemoteTrack) OnEnabled(fn func()) {
	t.mu.Lock()
	t.onEnabled = append(t.onEnabled, fn)
	t.mu.Unlock()
}

func (t *fakeRemoteTrack) OnDisabled(fn func()) {
	t.mu.Lock()
	t.onDisabled = append(t.onDisabled, fn)
	t.mu.Unlock()
}

func (t *fakeRemoteTrack) OnStopped(fn func()) {
	t.mu.Lock()
	t.onStopped = append(t.onStopped, fn)
	t.mu.Unlock()
}

func (t *fakeRemoteTrack) fire(which *[]func()) {
	t.mu.Lock()
	fns := append([]func(){}, *which...)
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (t *fakeRemoteTrack) fireDisabled() { t.fire(&t.onDisabled) }
func (t *fakeRemoteTrack) fireEnabled()  { t.fire(&t.onEnabled) }
func (t *fakeRemoteTrack) fireStopped()  { t.fire(&t.onStopped) }

type fakeParticipant struct {
	identity domain.Identity

	mu      sync.Mutex
	tracks  []core.RemoteTrack
	onSub   []func(core.RemoteTrack)
	onUnsub []func(core.RemoteTrack)
}

func newFakeParticipant(identity string) *fakeParticipant {
	return &fakeParticipant{identity: domain.Identity(identity)}
}

func (p *fakeParticipant) Identity() domain.Identity { return p.identity }

func (p *fakeParticipant) Tracks() []core.RemoteTrack {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.RemoteTrack{}, p.tracks...)
}

func (p *fakeParticipant) OnTrackSubscribed(fn func(core.RemoteTrack)) {
	p.mu.Lock()
	p.onSub = append(p.onSub, fn)
	p.mu.Unlock()
}

func (p *fakeParticipant) OnTrackUnsubscribed(fn func(core.RemoteTrack)) {
	p.mu.Lock()
	p.onUnsub = append(p.onUnsub, fn)
	p.mu.Unlock()
}

func (p *fakeParticipant) publish(t core.RemoteTrack) {
	p.mu.Lock()
	p.tracks = append(p.tracks, t)
	fns := append([]func(core.RemoteTrack){}, p.onSub...)
	p.mu.Unlock()
	for _, fn := range fns {
		fn(t)
	}
}

func (p *fakeParticipant) unpublish(t core.RemoteTrack) {
	p.mu.Lock()
	fns := append([]func(core.RemoteTrack){}, p.onUnsub...)
	p.mu.Unlock()
	for _, fn := range fns {
		fn(t)
	}
}

type fakePublication struct{ track core.LocalTrack }

func (p *fakePublication) Track() core.LocalTrack { return p.track }

type fakeRoom struct {
	name domain.RoomName

	mu             sync.Mutex
	participants   []core.Participant
	published      []core.LocalTrack
	unpublished    []core.LocalTrack
	publishErr     error
	unpublishErr   error
	disconnects    int
	onConnected    []func(core.Participant)
	onDisconnected []func(core.Participant)
	onRoomClosed   []func()
}

func (r *fakeRoom) Name() domain.RoomName { return r.name }

func (r *fakeRoom) Participants() []core.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Participant{}, r.participants...)
}

func (r *fakeRoom) Publish(t core.LocalTrack) (core.Publication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.publishErr != nil {
		return nil, r.publishErr
	}
	r.published = append(r.published, t)
	return &fakePublication{track: t}, nil
}

func (r *fakeRoom) Unpublish(p core.Publication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unpublishErr != nil {
		return r.unpublishErr
	}
	r.unpublished = append(r.unpublished, p.Track())
	return nil
}

func (r *fakeRoom) OnParticipantConnected(fn func(core.Participant)) {
	r.mu.Lock()
	r.onConnected = append(r.onConnected, fn)
	r.mu.Unlock()
}

func (r *fakeRoom) OnParticipantDisconnected(fn func(core.Participant)) {
	r.mu.Lock()
	r.onDisconnected = append(r.onDisconnected, fn)
	r.mu.Unlock()
}

func (r *fakeRoom) OnDisconnected(fn func()) {
	r.mu.Lock()
	r.onRoomClosed = append(r.onRoomClosed, fn)
	r.mu.Unlock()
}

func (r *fakeRoom) Disconnect() {
	r.mu.Lock()
	r.disconnects++
	r.mu.Unlock()
}

func (r *fakeRoom) join(p core.Participant) {
	r.mu.Lock()
	r.participants = append(r.participants, p)
	fns := append([]func(core.Participant){}, r.onConnected...)
	r.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}

func (r *fakeRoom) leave(p core.Participant) {
	r.mu.Lock()
	fns := append([]func(core.Participant){}, r.onDisconnected...)
	r.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}

func (r *fakeRoom) dropConnection() {
	r.mu.Lock()
	fns := append([]func(){}, r.onRoomClosed...)
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type fakeProvider struct {
	audio  *fakeLocalTrack
	video  *fakeLocalTrack
	screen *fakeLocalTrack
	room   *fakeRoom

	acquireErr error
	connectErr error
	screenErr  error

	// hooks run inside the corresponding provider call, outside the
	// manager lock, to model teardown races.
	duringAcquire func()
	duringConnect func()

	mu        sync.Mutex
	connected [][]core.LocalTrack
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		audio:  newFakeLocalTrack("a1", core.TrackAudio),
		video:  newFakeLocalTrack("v1", core.TrackVideo),
		screen: newFakeLocalTrack("scr1", core.TrackVideo),
		room:   &fakeRoom{name: "support-s1"},
	}
}

func (p *fakeProvider) AcquireLocalTracks(ctx context.Context) (core.LocalTrack, core.LocalTrack, error) {
	if p.duringAcquire != nil {
		p.duringAcquire()
	}
	if p.acquireErr != nil {
		return nil, nil, p.acquireErr
	}
	return p.audio, p.video, nil
}

func (p *fakeProvider) AcquireScreenTrack(ctx context.Context) (core.LocalTrack, error) {
	if p.screenErr != nil {
		return nil, p.screenErr
	}
	return p.screen, nil
}

func (p *fakeProvider) Connect(ctx context.Context, token string, room domain.RoomName, tracks []core.LocalTrack) (core.Room, error) {
	if p.duringConnect != nil {
		p.duringConnect()
	}
	if p.connectErr != nil {
		return nil, p.connectErr
	}
	p.mu.Lock()
	p.connected = append(p.connected, tracks)
	p.mu.Unlock()
	return p.room, nil
}

type fakeTile struct {
	owner domain.Identity
	kind  core.TrackKind
	label string

	mu       sync.Mutex
	attached core.TrackID
	overlays map[core.OverlayKind]bool
	detaches int
	closes   int
}

func (t *fakeTile) Attach(id core.TrackID) {
	t.mu.Lock()
	t.attached = id
	t.mu.Unlock()
}

func (t *fakeTile) Detach() {
	t.mu.Lock()
	t.attached = ""
	t.detaches++
	t.mu.Unlock()
}

func (t *fakeTile) SetOverlay(kind core.OverlayKind, visible bool) {
	t.mu.Lock()
	if t.overlays == nil {
		t.overlays = make(map[core.OverlayKind]bool)
	}
	t.overlays[kind] = visible
	t.mu.Unlock()
}

func (t *fakeTile) Close() {
	t.mu.Lock()
	t.closes++
	t.mu.Unlock()
}

func (t *fakeTile) overlay(kind core.OverlayKind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.overlays[kind]
}

func (t *fakeTile) closeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closes
}

type fakeSurface struct {
	mu    sync.Mutex
	tiles []*fakeTile
}

func (s *fakeSurface) CreateTile(owner domain.Identity, kind core.TrackKind, label string) core.Tile {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTile{owner: owner, kind: kind, label: label}
	s.tiles = append(s.tiles, t)
	return t
}

// tileFor returns the most recent live tile attached to id.
func (s *fakeSurface) tileFor(id core.TrackID) *fakeTile {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.tiles) - 1; i >= 0; i-- {
		t := s.tiles[i]
		t.mu.Lock()
		match := t.attached == id
		t.mu.Unlock()
		if match {
			return t
		}
	}
	return nil
}

func (s *fakeSurface) labeled(label string) *fakeTile {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.tiles) - 1; i >= 0; i-- {
		if s.tiles[i].label == label {
			return s.tiles[i]
		}
	}
	return nil
}

var errBoom = errors.New("boom")
