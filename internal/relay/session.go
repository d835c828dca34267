package relay

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/satsuralala/face-detection/internal/domain"
)

// Session tracks one remote peer: the native connection handle, liveness
// state and candidates that arrived before the remote description.
type Session struct {
	PeerID string
	Peer   Peer

	log *logrus.Entry

	mu        sync.Mutex
	connected bool
	lastSeen  time.Time
	remoteSet bool
	pending   []domain.ICECandidate
}

func newSession(peerID string, peer Peer) *Session {
	return &Session{
		PeerID:   peerID,
		Peer:     peer,
		log:      logrus.WithFields(logrus.Fields{"comp": "relay", "peer": peerID}),
		lastSeen: time.Now(),
	}
}

// Connected reports whether the underlying connection is established.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Session) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// LastSeen returns the time of the last signaling activity for this peer.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// SetRemoteDescription applies the description and flushes candidates that
// were buffered before it arrived. A rejected buffered candidate is logged
// and skipped; it must not discard the rest of the buffer.
func (s *Session) SetRemoteDescription(sdp domain.SessionDescription) error {
	if err := s.Peer.SetRemoteDescription(sdp); err != nil {
		return err
	}

	s.mu.Lock()
	s.remoteSet = true
	s.lastSeen = time.Now()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, cand := range pending {
		if err := s.Peer.AddICECandidate(cand); err != nil {
			s.log.WithError(err).Warn("buffered ice candidate rejected")
		}
	}
	return nil
}

// AddICECandidate applies the candidate, or buffers it when the remote
// description is not set yet. Candidates legitimately race the offer/answer
// on the wire; buffering replicates what browser stacks do natively.
func (s *Session) AddICECandidate(c domain.ICECandidate) error {
	s.mu.Lock()
	if !s.remoteSet {
		s.pending = append(s.pending, c)
		s.lastSeen = time.Now()
		s.mu.Unlock()
		return nil
	}
	s.lastSeen = time.Now()
	s.mu.Unlock()
	return s.Peer.AddICECandidate(c)
}

func (s *Session) pendingCandidates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
