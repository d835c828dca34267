package relay

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/satsuralala/face-detection/internal/domain"
)

// Hooks let the role orchestrators react to roster messages without the
// engine knowing about either role.
type Hooks struct {
	OnStreamerAvailable func(streamerID string)
	OnStreamerLeft      func(streamerID string)
	OnStreamRequest     func(viewerID string)
}

// Engine drives the offer/answer/ICE exchange for both directions of the
// relay protocol: the viewer pull flow (request_stream, answer inbound
// offers) and the streamer push flow (offer on stream_request, apply inbound
// answers). Negotiation is best-effort per message: a failed step is logged
// and the session is left as-is, with no retry and no teardown.
type Engine struct {
	reg   *Registry
	send  domain.Sender
	hooks Hooks
	log   *logrus.Entry
}

func NewEngine(reg *Registry, send domain.Sender, hooks Hooks) *Engine {
	return &Engine{
		reg:   reg,
		send:  send,
		hooks: hooks,
		log:   logrus.WithField("comp", "negotiate"),
	}
}

// HandleRaw parses one inbound relay payload and dispatches it. Payloads
// that do not decode are dropped.
func (e *Engine) HandleRaw(data []byte) {
	var msg domain.SignalMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		e.log.WithError(err).Warn("dropping undecodable signal message")
		return
	}
	e.Handle(msg)
}

// Handle dispatches one signaling message.
func (e *Engine) Handle(msg domain.SignalMessage) {
	switch msg.Type {
	case domain.TypeActiveStreamers:
		for _, id := range msg.Streamers {
			e.announce(id)
		}
	case domain.TypeNewStreamer:
		e.announce(msg.StreamerID)
	case domain.TypeStreamerLeft:
		e.reg.Remove(msg.StreamerID)
		if e.hooks.OnStreamerLeft != nil {
			e.hooks.OnStreamerLeft(msg.StreamerID)
		}
	case domain.TypeStreamRequest:
		e.handleStreamRequest(msg.From)
	case domain.TypeOffer:
		e.handleOffer(msg)
	case domain.TypeAnswer:
		e.handleAnswer(msg)
	case domain.TypeICECandidate:
		e.handleCandidate(msg)
	default:
		e.log.WithField("type", msg.Type).Debug("unhandled signal message")
	}
}

func (e *Engine) announce(streamerID string) {
	if streamerID == "" {
		return
	}
	if e.hooks.OnStreamerAvailable != nil {
		e.hooks.OnStreamerAvailable(streamerID)
	}
}

// RequestStream asks the signaling server to introduce us to a streamer. The
// session is created up front so inbound candidates have somewhere to land.
func (e *Engine) RequestStream(streamerID string) {
	if _, err := e.reg.GetOrCreate(streamerID); err != nil {
		e.log.WithError(err).WithField("streamer", streamerID).Error("create session")
		return
	}
	e.sendMsg(domain.SignalMessage{
		Type:       domain.TypeRequestStream,
		StreamerID: streamerID,
	})
}

// handleStreamRequest serves a viewer asking for our stream: create the
// session (local tracks are attached by the factory), offer, send it.
func (e *Engine) handleStreamRequest(viewerID string) {
	if viewerID == "" {
		return
	}
	if e.hooks.OnStreamRequest != nil {
		e.hooks.OnStreamRequest(viewerID)
	}

	s, err := e.reg.GetOrCreate(viewerID)
	if err != nil {
		e.log.WithError(err).WithField("viewer", viewerID).Error("create session")
		return
	}
	offer, err := s.Peer.CreateOffer()
	if err != nil {
		e.log.WithError(err).WithField("viewer", viewerID).Error("create offer")
		return
	}
	e.sendMsg(domain.SignalMessage{
		Type:   domain.TypeOffer,
		Offer:  &offer,
		Target: viewerID,
	})
}

func (e *Engine) handleOffer(msg domain.SignalMessage) {
	if msg.Offer == nil || msg.From == "" {
		e.log.Warn("dropping offer without payload or sender")
		return
	}
	s, err := e.reg.GetOrCreate(msg.From)
	if err != nil {
		e.log.WithError(err).WithField("peer", msg.From).Error("create session")
		return
	}
	if err := s.SetRemoteDescription(*msg.Offer); err != nil {
		e.log.WithError(err).WithField("peer", msg.From).Error("apply offer")
		return
	}
	answer, err := s.Peer.CreateAnswer()
	if err != nil {
		e.log.WithError(err).WithField("peer", msg.From).Error("create answer")
		return
	}
	e.sendMsg(domain.SignalMessage{
		Type:   domain.TypeAnswer,
		Answer: &answer,
		Target: msg.From,
	})
}

func (e *Engine) handleAnswer(msg domain.SignalMessage) {
	if msg.Answer == nil || msg.From == "" {
		e.log.Warn("dropping answer without payload or sender")
		return
	}
	s, ok := e.reg.Get(msg.From)
	if !ok {
		e.log.WithField("peer", msg.From).Warn("answer from unknown peer")
		return
	}
	if err := s.SetRemoteDescription(*msg.Answer); err != nil {
		e.log.WithError(err).WithField("peer", msg.From).Error("apply answer")
	}
}

func (e *Engine) handleCandidate(msg domain.SignalMessage) {
	if msg.Candidate == nil || msg.From == "" {
		return
	}
	s, ok := e.reg.Get(msg.From)
	if !ok {
		e.log.WithField("peer", msg.From).Debug("candidate for unknown peer")
		return
	}
	// Candidates racing the description are buffered inside the session;
	// anything that still fails here is a genuinely bad candidate.
	if err := s.AddICECandidate(*msg.Candidate); err != nil {
		e.log.WithError(err).WithField("peer", msg.From).Warn("apply ice candidate")
	}
}

func (e *Engine) sendMsg(msg domain.SignalMessage) {
	if err := e.send.Send(msg); err != nil {
		e.log.WithError(err).WithField("type", msg.Type).Warn("send signal message")
	}
}
