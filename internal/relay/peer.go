package relay

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/satsuralala/face-detection/internal/domain"
)

// DefaultSTUNServers matches the portal's fixed public STUN set. No TURN
// relay is configured, so symmetric NATs are a known limitation.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
}

// Peer abstracts the native peer connection handle so the registry and
// negotiation engine can be exercised without a network stack.
// CreateOffer and CreateAnswer also set the local description.
type Peer interface {
	CreateOffer() (domain.SessionDescription, error)
	CreateAnswer() (domain.SessionDescription, error)
	SetRemoteDescription(domain.SessionDescription) error
	AddICECandidate(domain.ICECandidate) error
	AddTrack(track webrtc.TrackLocal) error
	OnICECandidate(fn func(domain.ICECandidate))
	OnConnectionStateChange(fn func(webrtc.PeerConnectionState))
	OnTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver))
	ConnectionState() webrtc.PeerConnectionState
	Close() error
}

// Factory builds a Peer for a remote id.
type Factory func(peerID string) (Peer, error)

// NewPionFactory returns a Factory producing pion peer connections configured
// with the given STUN servers and the default interceptor set.
func NewPionFactory(stunServers []string) Factory {
	if len(stunServers) == 0 {
		stunServers = DefaultSTUNServers
	}
	return func(peerID string) (Peer, error) {
		return newPionPeer(stunServers)
	}
}

type pionPeer struct {
	pc *webrtc.PeerConnection
}

func newPionPeer(stunServers []string) (*pionPeer, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(i),
	)

	servers := make([]webrtc.ICEServer, 0, len(stunServers))
	for _, s := range stunServers {
		servers = append(servers, webrtc.ICEServer{URLs: []string{s}})
	}

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return &pionPeer{pc: pc}, nil
}

func (p *pionPeer) CreateOffer() (domain.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return domain.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return domain.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return domain.SessionDescription{Type: offer.Type.String(), SDP: offer.SDP}, nil
}

func (p *pionPeer) CreateAnswer() (domain.SessionDescription, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return domain.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return domain.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return domain.SessionDescription{Type: answer.Type.String(), SDP: answer.SDP}, nil
}

func (p *pionPeer) SetRemoteDescription(sdp domain.SessionDescription) error {
	desc := webrtc.SessionDescription{
		Type: webrtc.NewSDPType(sdp.Type),
		SDP:  sdp.SDP,
	}
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

func (p *pionPeer) AddICECandidate(c domain.ICECandidate) error {
	init := webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
	if err := p.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

func (p *pionPeer) AddTrack(track webrtc.TrackLocal) error {
	sender, err := p.pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("add track: %w", err)
	}

	// Drain RTCP so the interceptors keep running.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

func (p *pionPeer) OnICECandidate(fn func(domain.ICECandidate)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			// nil marks the end of gathering.
			return
		}
		init := c.ToJSON()
		fn(domain.ICECandidate{
			Candidate:        init.Candidate,
			SDPMid:           init.SDPMid,
			SDPMLineIndex:    init.SDPMLineIndex,
			UsernameFragment: init.UsernameFragment,
		})
	})
}

func (p *pionPeer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(fn)
}

func (p *pionPeer) OnTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	p.pc.OnTrack(fn)
}

func (p *pionPeer) ConnectionState() webrtc.PeerConnectionState {
	return p.pc.ConnectionState()
}

func (p *pionPeer) Close() error {
	return p.pc.Close()
}
