package relay

import (
	"errors"
	"testing"

	"github.com/satsuralala/face-detection/internal/domain"
)

func newEngineHarness(hooks Hooks) (*Engine, *testHarness) {
	h := newHarness()
	return NewEngine(h.reg, h.sender, hooks), h
}

func TestHandleRaw_DropsMalformedPayload(t *testing.T) {
	eng, h := newEngineHarness(Hooks{})

	eng.HandleRaw([]byte(`{not json`))

	if h.reg.Len() != 0 || len(h.sender.sent) != 0 {
		t.Error("malformed payload must not create sessions or send messages")
	}
}

func TestActiveStreamers_InvokesHookPerStreamer(t *testing.T) {
	var seen []string
	eng, _ := newEngineHarness(Hooks{
		OnStreamerAvailable: func(id string) { seen = append(seen, id) },
	})

	eng.Handle(domain.SignalMessage{
		Type:      domain.TypeActiveStreamers,
		Streamers: []string{"s1", "s2"},
	})

	if len(seen) != 2 || seen[0] != "s1" || seen[1] != "s2" {
		t.Errorf("expected both streamers announced, got %v", seen)
	}
}

func TestRequestStream_CreatesSessionThenSends(t *testing.T) {
	eng, h := newEngineHarness(Hooks{})

	eng.RequestStream("streamer_1")

	if h.reg.Len() != 1 {
		t.Fatalf("expected session created before the request, got %d", h.reg.Len())
	}
	if len(h.sender.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(h.sender.sent))
	}
	msg := h.sender.sent[0]
	if msg.Type != domain.TypeRequestStream || msg.StreamerID != "streamer_1" {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestStreamRequest_OffersToViewer(t *testing.T) {
	eng, h := newEngineHarness(Hooks{})

	eng.Handle(domain.SignalMessage{Type: domain.TypeStreamRequest, From: "viewer_1"})

	if h.reg.Len() != 1 {
		t.Fatalf("expected viewer session, got %d", h.reg.Len())
	}
	if len(h.sender.sent) != 1 {
		t.Fatalf("expected offer sent, got %d messages", len(h.sender.sent))
	}
	msg := h.sender.sent[0]
	if msg.Type != domain.TypeOffer || msg.Target != "viewer_1" || msg.Offer == nil {
		t.Errorf("unexpected offer: %+v", msg)
	}
}

func TestOffer_AnsweredAndSessionKept(t *testing.T) {
	eng, h := newEngineHarness(Hooks{})

	eng.Handle(domain.SignalMessage{
		Type:  domain.TypeOffer,
		From:  "streamer_1",
		Offer: &domain.SessionDescription{Type: "offer", SDP: "v=0\r\nremote-offer"},
	})

	if h.peers["streamer_1"].remoteSDP != "v=0\r\nremote-offer" {
		t.Errorf("expected remote description applied, got %q", h.peers["streamer_1"].remoteSDP)
	}
	if len(h.sender.sent) != 1 || h.sender.sent[0].Type != domain.TypeAnswer {
		t.Fatalf("expected answer sent, got %+v", h.sender.sent)
	}
	if h.sender.sent[0].Target != "streamer_1" {
		t.Errorf("answer must target the offerer, got %q", h.sender.sent[0].Target)
	}
}

func TestOffer_ApplyFailureLeavesSession(t *testing.T) {
	eng, h := newEngineHarness(Hooks{})

	// Create the session first so the fake can be primed to fail.
	if _, err := h.reg.GetOrCreate("streamer_1"); err != nil {
		t.Fatal(err)
	}
	h.peers["streamer_1"].remoteErr = errors.New("bad sdp")

	eng.Handle(domain.SignalMessage{
		Type:  domain.TypeOffer,
		From:  "streamer_1",
		Offer: &domain.SessionDescription{Type: "offer", SDP: "v=0"},
	})

	if len(h.sender.sent) != 0 {
		t.Errorf("expected no answer after failed apply, got %+v", h.sender.sent)
	}
	if h.reg.Len() != 1 {
		t.Errorf("failed negotiation must not tear the session down, got %d", h.reg.Len())
	}
}

func TestAnswer_UnknownPeerIgnored(t *testing.T) {
	eng, h := newEngineHarness(Hooks{})

	eng.Handle(domain.SignalMessage{
		Type:   domain.TypeAnswer,
		From:   "stranger",
		Answer: &domain.SessionDescription{Type: "answer", SDP: "v=0"},
	})

	if h.reg.Len() != 0 {
		t.Errorf("answer from unknown peer must not create a session, got %d", h.reg.Len())
	}
}

func TestStreamerLeft_RemovesSessionAndFiresHook(t *testing.T) {
	var left string
	eng, h := newEngineHarness(Hooks{
		OnStreamerLeft: func(id string) { left = id },
	})

	if _, err := h.reg.GetOrCreate("streamer_1"); err != nil {
		t.Fatal(err)
	}
	eng.Handle(domain.SignalMessage{Type: domain.TypeStreamerLeft, StreamerID: "streamer_1"})

	if h.reg.Len() != 0 {
		t.Errorf("expected session removed, got %d", h.reg.Len())
	}
	if !h.peers["streamer_1"].closed {
		t.Error("expected peer closed")
	}
	if left != "streamer_1" {
		t.Errorf("expected hook fired with streamer id, got %q", left)
	}

	// A returning streamer negotiates from scratch.
	if _, err := h.reg.GetOrCreate("streamer_1"); err != nil {
		t.Fatal(err)
	}
	if h.created != 2 {
		t.Errorf("expected a fresh peer for the returning streamer, got %d", h.created)
	}
}

func TestCandidates_BufferedUntilRemoteDescription(t *testing.T) {
	eng, h := newEngineHarness(Hooks{})

	eng.RequestStream("streamer_1")
	peer := h.peers["streamer_1"]

	first := &domain.ICECandidate{Candidate: "candidate:1"}
	second := &domain.ICECandidate{Candidate: "candidate:2"}
	eng.Handle(domain.SignalMessage{Type: domain.TypeICECandidate, From: "streamer_1", Candidate: first})
	eng.Handle(domain.SignalMessage{Type: domain.TypeICECandidate, From: "streamer_1", Candidate: second})

	if len(peer.candidates) != 0 {
		t.Fatalf("candidates must not reach the peer before the description, got %d", len(peer.candidates))
	}
	s, _ := h.reg.Get("streamer_1")
	if s.pendingCandidates() != 2 {
		t.Fatalf("expected 2 buffered candidates, got %d", s.pendingCandidates())
	}

	eng.Handle(domain.SignalMessage{
		Type:  domain.TypeOffer,
		From:  "streamer_1",
		Offer: &domain.SessionDescription{Type: "offer", SDP: "v=0"},
	})

	if len(peer.candidates) != 2 {
		t.Fatalf("expected buffered candidates flushed, got %d", len(peer.candidates))
	}
	if peer.candidates[0].Candidate != "candidate:1" || peer.candidates[1].Candidate != "candidate:2" {
		t.Errorf("expected arrival order preserved, got %v", peer.candidates)
	}
	if s.pendingCandidates() != 0 {
		t.Errorf("expected buffer drained, got %d", s.pendingCandidates())
	}

	// Late candidates now go straight through.
	eng.Handle(domain.SignalMessage{
		Type:      domain.TypeICECandidate,
		From:      "streamer_1",
		Candidate: &domain.ICECandidate{Candidate: "candidate:3"},
	})
	if len(peer.candidates) != 3 {
		t.Errorf("expected direct application after description, got %d", len(peer.candidates))
	}
}

func TestCandidate_UnknownPeerDropped(t *testing.T) {
	eng, h := newEngineHarness(Hooks{})

	eng.Handle(domain.SignalMessage{
		Type:      domain.TypeICECandidate,
		From:      "stranger",
		Candidate: &domain.ICECandidate{Candidate: "candidate:1"},
	})

	if h.reg.Len() != 0 {
		t.Errorf("candidate from unknown peer must not create a session, got %d", h.reg.Len())
	}
}
