package relay

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/satsuralala/face-detection/internal/domain"
)

// StateFunc is notified when a session's connectivity flips.
type StateFunc func(peerID string, connected bool)

// TrackFunc receives remote media tracks as they arrive.
type TrackFunc func(peerID string, track *webrtc.TrackRemote)

// Config wires a Registry.
type Config struct {
	Factory Factory
	Sender  domain.Sender
	OnState StateFunc
	OnTrack TrackFunc
}

// Registry owns every peer session, keyed by remote peer id. Sessions are
// removed only on an explicit peer-left signal or teardown; a transient
// connection-state blip flips the connected flag but keeps negotiated state.
type Registry struct {
	cfg Config
	log *logrus.Entry

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		log:      logrus.WithField("comp", "relay"),
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the existing session for peerID or builds one, wiring
// ICE forwarding, the connection-state callback and the track handler.
func (r *Registry) GetOrCreate(peerID string) (*Session, error) {
	r.mu.Lock()
	if s, ok := r.sessions[peerID]; ok {
		r.mu.Unlock()
		s.touch()
		return s, nil
	}
	r.mu.Unlock()

	peer, err := r.cfg.Factory(peerID)
	if err != nil {
		return nil, fmt.Errorf("create peer for %s: %w", peerID, err)
	}

	s := newSession(peerID, peer)

	peer.OnICECandidate(func(c domain.ICECandidate) {
		msg := domain.SignalMessage{
			Type:      domain.TypeICECandidate,
			Candidate: &c,
			Target:    peerID,
		}
		if err := r.cfg.Sender.Send(msg); err != nil {
			r.log.WithError(err).WithField("peer", peerID).Warn("send ice candidate")
		}
	})

	peer.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		r.log.WithFields(logrus.Fields{"peer": peerID, "state": state.String()}).Info("peer state")
		switch state {
		case webrtc.PeerConnectionStateConnected:
			s.setConnected(true)
		case webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed:
			s.setConnected(false)
		default:
			return
		}
		if r.cfg.OnState != nil {
			r.cfg.OnState(peerID, s.Connected())
		}
	})

	if r.cfg.OnTrack != nil {
		peer.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			r.cfg.OnTrack(peerID, track)
		})
	}

	r.mu.Lock()
	if existing, ok := r.sessions[peerID]; ok {
		// Lost a creation race; keep the first session.
		r.mu.Unlock()
		peer.Close()
		return existing, nil
	}
	r.sessions[peerID] = s
	r.mu.Unlock()

	r.log.WithField("peer", peerID).Info("session created")
	return s, nil
}

// Get returns the session for peerID if one exists.
func (r *Registry) Get(peerID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[peerID]
	return s, ok
}

// Remove closes the session's peer connection and deletes it.
func (r *Registry) Remove(peerID string) {
	r.mu.Lock()
	s, ok := r.sessions[peerID]
	delete(r.sessions, peerID)
	r.mu.Unlock()
	if !ok {
		return
	}
	if err := s.Peer.Close(); err != nil {
		r.log.WithError(err).WithField("peer", peerID).Warn("close peer")
	}
	r.log.WithField("peer", peerID).Info("session removed")
}

// ForEach runs fn over a snapshot of the sessions.
func (r *Registry) ForEach(fn func(*Session)) {
	r.mu.Lock()
	snapshot := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		snapshot = append(snapshot, s)
	}
	r.mu.Unlock()

	for _, s := range snapshot {
		fn(s)
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll closes every peer connection and clears the map. Used on page
// teardown and explicit stop actions.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for id, s := range sessions {
		if err := s.Peer.Close(); err != nil {
			r.log.WithError(err).WithField("peer", id).Warn("close peer")
		}
	}
	if len(sessions) > 0 {
		r.log.WithField("count", len(sessions)).Info("all sessions closed")
	}
}
