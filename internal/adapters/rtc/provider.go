package rtc

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/mediadevices"
	"github.com/pion/webrtc/v4"

	"github.com/averko/supportline/internal/core"
	"github.com/averko/supportline/internal/domain"
)

var errForeignTrack = errors.New("track was not produced by this provider")

// Provider implements core.MediaProvider on pion: mediadevices for capture
// and a peer connection signaled through the backend's meeting relay.
type Provider struct {
	wsBase   string
	dialer   core.Dialer
	identity domain.Identity

	mu       sync.Mutex
	selector *mediadevices.CodecSelector
}

func NewProvider(wsBase string, dialer core.Dialer, identity domain.Identity) *Provider {
	return &Provider{wsBase: wsBase, dialer: dialer, identity: identity}
}

func (p *Provider) codecSelector() (*mediadevices.CodecSelector, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.selector == nil {
		sel, err := newCodecSelector()
		if err != nil {
			return nil, err
		}
		p.selector = sel
	}
	return p.selector, nil
}

func (p *Provider) AcquireLocalTracks(ctx context.Context) (core.LocalTrack, core.LocalTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	sel, err := p.codecSelector()
	if err != nil {
		return nil, nil, err
	}
	audio, video, err := captureUserMedia(sel)
	if err != nil {
		return nil, nil, err
	}
	return wrapLocalTrack(audio), wrapLocalTrack(video), nil
}

func (p *Provider) AcquireScreenTrack(ctx context.Context) (core.LocalTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, err := p.codecSelector()
	if err != nil {
		return nil, err
	}
	track, err := captureDisplay(sel)
	if err != nil {
		return nil, err
	}
	return wrapLocalTrack(track), nil
}

func (p *Provider) Connect(ctx context.Context, token string, room domain.RoomName, tracks []core.LocalTrack) (core.Room, error) {
	sel, err := p.codecSelector()
	if err != nil {
		return nil, err
	}
	pc, err := newPeerConnection(sel)
	if err != nil {
		return nil, err
	}

	s := newRoomSession(pc, room, p.identity)
	for _, t := range tracks {
		if _, err := s.addTrack(t); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("attach local track: %w", err)
		}
	}

	relayURL := fmt.Sprintf("%s/ws/meetings/%s/?identity=%s&token=%s",
		p.wsBase, url.PathEscape(string(room)),
		url.QueryEscape(string(p.identity)), url.QueryEscape(token))
	ch, err := p.dialer.Dial(ctx, relayURL, s.handleFrame, s.handleDisconnected)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("dial meeting relay: %w", err)
	}
	s.attach(ch)

	return s, nil
}

func newPeerConnection(selector *mediadevices.CodecSelector) (*webrtc.PeerConnection, error) {
	mediaEngine := &webrtc.MediaEngine{}
	selector.Populate(mediaEngine)

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, err
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
	)
	return api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	})
}
