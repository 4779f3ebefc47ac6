package rtc

import (
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/averko/supportline/internal/core"
	"github.com/averko/supportline/internal/domain"
)

// relayFrame is the meeting relay wire format. Offers, answers and
// candidates are forwarded verbatim between peers; room_state, peer_joined
// and peer_left come from the relay itself.
type relayFrame struct {
	Type      string                   `json:"type"`
	Identity  string                   `json:"identity,omitempty"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	TrackID   string                   `json:"track_id,omitempty"`
	Enabled   bool                     `json:"enabled"`
	Peers     []string                 `json:"peers,omitempty"`
}

const (
	frameRoomState    = "room_state"
	framePeerJoined   = "peer_joined"
	framePeerLeft     = "peer_left"
	frameOffer        = "offer"
	frameAnswer       = "answer"
	frameCandidate    = "candidate"
	frameTrackState   = "track_state"
	frameTrackRemoved = "track_removed"
)

type publication struct {
	track  core.LocalTrack
	sender *webrtc.RTPSender
}

func (p *publication) Track() core.LocalTrack { return p.track }

// roomSession is one peer connection negotiated over the relay channel.
// The later joiner makes the offer; renegotiation offers come from
// whichever side published or unpublished a track.
type roomSession struct {
	name     domain.RoomName
	identity domain.Identity
	pc       *webrtc.PeerConnection

	mu      sync.Mutex
	ch      core.SignalChannel
	pending []core.Frame
	peers   map[domain.Identity]*participant
	closed  bool

	onPeerConnected    []func(core.Participant)
	onPeerDisconnected []func(core.Participant)
	onDisconnected     []func()
}

func newRoomSession(pc *webrtc.PeerConnection, name domain.RoomName, identity domain.Identity) *roomSession {
	s := &roomSession{
		name:     name,
		identity: identity,
		pc:       pc,
		peers:    make(map[domain.Identity]*participant),
	}

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("room", string(name)).Str("ice_state", state.String()).Msg("ICE state")
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("room", string(name)).Str("peer_state", state.String()).Msg("peer state")
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			s.handleDisconnected()
		}
	})
	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		init := cand.ToJSON()
		s.send(relayFrame{Type: frameCandidate, Candidate: &init})
	})
	pc.OnTrack(s.handleRemoteTrack)

	return s
}

func (s *roomSession) Name() domain.RoomName { return s.name }

func (s *roomSession) Participants() []core.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Participant, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

func (s *roomSession) OnParticipantConnected(fn func(core.Participant)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPeerConnected = append(s.onPeerConnected, fn)
}

func (s *roomSession) OnParticipantDisconnected(fn func(core.Participant)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPeerDisconnected = append(s.onPeerDisconnected, fn)
}

func (s *roomSession) OnDisconnected(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnected = append(s.onDisconnected, fn)
}

func (s *roomSession) Publish(t core.LocalTrack) (core.Publication, error) {
	pub, err := s.addTrack(t)
	if err != nil {
		return nil, err
	}
	s.renegotiate()
	return pub, nil
}

// addTrack attaches a local track without renegotiating, so the initial
// track set can ride the first offer.
func (s *roomSession) addTrack(t core.LocalTrack) (*publication, error) {
	lt, ok := t.(*localTrack)
	if !ok {
		return nil, errForeignTrack
	}
	sender, err := s.pc.AddTrack(lt.track)
	if err != nil {
		return nil, err
	}
	lt.bind(s.announceTrackState)
	return &publication{track: t, sender: sender}, nil
}

func (s *roomSession) Unpublish(p core.Publication) error {
	pub, ok := p.(*publication)
	if !ok {
		return errForeignTrack
	}
	if err := s.pc.RemoveTrack(pub.sender); err != nil {
		return err
	}
	s.send(relayFrame{Type: frameTrackRemoved, TrackID: string(pub.track.ID())})
	s.renegotiate()
	return nil
}

func (s *roomSession) Disconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ch := s.ch
	s.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	if err := s.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("room", string(s.name)).Msg("peer connection close")
	}
}

// handleDisconnected fires the room-level observers once, for remote
// closes only. Local Disconnect sets closed first and suppresses it.
func (s *roomSession) handleDisconnected() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ch := s.ch
	fns := append([]func(){}, s.onDisconnected...)
	s.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	_ = s.pc.Close()
	for _, fn := range fns {
		fn()
	}
}

func (s *roomSession) send(f relayFrame) {
	f.Identity = string(s.identity)
	data, err := json.Marshal(f)
	if err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("marshal relay frame")
		return
	}
	s.mu.Lock()
	ch := s.ch
	if ch == nil {
		// Frames can be produced before Connect attaches the relay
		// channel; hold them until then.
		s.pending = append(s.pending, core.Frame(data))
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	if err := ch.TrySend(core.Frame(data)); err != nil {
		log.Warn().Err(err).Str("module", "rtc").Str("type", f.Type).Msg("relay send dropped")
	}
}

// attach hands the relay channel to the session and flushes frames queued
// during dialing.
func (s *roomSession) attach(ch core.SignalChannel) {
	s.mu.Lock()
	s.ch = ch
	queued := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, data := range queued {
		if err := ch.TrySend(data); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Msg("relay send dropped")
		}
	}
}

func (s *roomSession) handleFrame(data core.Frame) {
	var f relayFrame
	if err := json.Unmarshal(data, &f); err != nil {
		log.Debug().Err(err).Str("module", "rtc").Msg("malformed relay frame")
		return
	}
	switch f.Type {
	case frameRoomState:
		for _, id := range f.Peers {
			s.addPeer(domain.Identity(id))
		}
		if len(f.Peers) > 0 {
			s.sendOffer()
		}
	case framePeerJoined:
		s.addPeer(domain.Identity(f.Identity))
	case framePeerLeft:
		s.removePeer(domain.Identity(f.Identity))
	case frameOffer:
		s.handleOffer(f.SDP)
	case frameAnswer:
		desc := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: f.SDP}
		if err := s.pc.SetRemoteDescription(desc); err != nil {
			log.Error().Err(err).Str("module", "rtc").Msg("apply answer")
		}
	case frameCandidate:
		if f.Candidate == nil {
			return
		}
		if err := s.pc.AddICECandidate(*f.Candidate); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Msg("add ice candidate")
		}
	case frameTrackState:
		if t := s.findTrack(core.TrackID(f.TrackID)); t != nil {
			t.fireState(f.Enabled)
		}
	case frameTrackRemoved:
		s.removeRemoteTrack(core.TrackID(f.TrackID))
	default:
		log.Debug().Str("module", "rtc").Str("type", f.Type).Msg("unknown relay frame")
	}
}

func (s *roomSession) sendOffer() {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("create offer")
		return
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("set local offer")
		return
	}
	s.send(relayFrame{Type: frameOffer, SDP: offer.SDP})
}

func (s *roomSession) handleOffer(sdp string) {
	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("apply offer")
		return
	}
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("create answer")
		return
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("set local answer")
		return
	}
	s.send(relayFrame{Type: frameAnswer, SDP: answer.SDP})
}

func (s *roomSession) renegotiate() {
	s.mu.Lock()
	havePeers := len(s.peers) > 0
	s.mu.Unlock()
	if havePeers {
		s.sendOffer()
	}
}

func (s *roomSession) announceTrackState(id core.TrackID, enabled bool) {
	s.send(relayFrame{Type: frameTrackState, TrackID: string(id), Enabled: enabled})
}

func (s *roomSession) addPeer(id domain.Identity) {
	if id == "" || id == s.identity {
		return
	}
	s.mu.Lock()
	if _, ok := s.peers[id]; ok {
		s.mu.Unlock()
		return
	}
	p := newParticipant(id)
	s.peers[id] = p
	fns := append([]func(core.Participant){}, s.onPeerConnected...)
	s.mu.Unlock()

	log.Info().Str("module", "rtc").Str("room", string(s.name)).Str("peer", string(id)).Msg("peer joined")
	for _, fn := range fns {
		fn(p)
	}
}

func (s *roomSession) removePeer(id domain.Identity) {
	s.mu.Lock()
	p, ok := s.peers[id]
	if ok {
		delete(s.peers, id)
	}
	fns := append([]func(core.Participant){}, s.onPeerDisconnected...)
	s.mu.Unlock()
	if !ok {
		return
	}
	for _, t := range p.removeAll() {
		t.fireStopped()
	}
	log.Info().Str("module", "rtc").Str("room", string(s.name)).Str("peer", string(id)).Msg("peer left")
	for _, fn := range fns {
		fn(p)
	}
}

// handleRemoteTrack attributes an incoming track to the remote peer. In a
// two-party room there is at most one; a track arriving before the relay
// announced anyone is attributed by its stream id.
func (s *roomSession) handleRemoteTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	kind := core.TrackAudio
	if track.Kind() == webrtc.RTPCodecTypeVideo {
		kind = core.TrackVideo
	}
	rt := &remoteTrack{id: core.TrackID(track.ID()), kind: kind}

	s.mu.Lock()
	var owner *participant
	for _, p := range s.peers {
		owner = p
		break
	}
	s.mu.Unlock()
	if owner == nil {
		s.addPeer(domain.Identity(track.StreamID()))
		s.mu.Lock()
		for _, p := range s.peers {
			owner = p
			break
		}
		s.mu.Unlock()
	}
	if owner == nil {
		return
	}

	log.Info().
		Str("module", "rtc").
		Str("room", string(s.name)).
		Str("kind", string(kind)).
		Str("track_id", track.ID()).
		Msg("remote track")
	owner.addTrack(rt)

	go func() {
		for {
			if _, _, err := track.ReadRTP(); err != nil {
				owner.removeTrack(rt.id)
				return
			}
		}
	}()
}

func (s *roomSession) findTrack(id core.TrackID) *remoteTrack {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.peers {
		if t := p.track(id); t != nil {
			return t
		}
	}
	return nil
}

func (s *roomSession) removeRemoteTrack(id core.TrackID) {
	s.mu.Lock()
	peers := make([]*participant, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()
	for _, p := range peers {
		p.removeTrack(id)
	}
}
