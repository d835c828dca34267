package domain

// Relay-channel message types. The server forwards targeted messages verbatim
// and emits the streamer roster messages itself.
const (
	TypeActiveStreamers = "active_streamers"
	TypeNewStreamer     = "new_streamer"
	TypeStreamerLeft    = "streamer_left"
	TypeRequestStream   = "request_stream"
	TypeStreamRequest   = "stream_request"
	TypeOffer           = "offer"
	TypeAnswer          = "answer"
	TypeICECandidate    = "ice-candidate"
)

// SessionDescription is the JSON shape of an SDP offer or answer.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidate is the JSON shape of a single ICE candidate.
type ICECandidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// SignalMessage is the envelope for every relay-channel message. Which
// payload fields are set depends on Type.
type SignalMessage struct {
	Type       string              `json:"type"`
	From       string              `json:"from,omitempty"`
	Target     string              `json:"target,omitempty"`
	StreamerID string              `json:"streamerId,omitempty"`
	Streamers  []string            `json:"streamers,omitempty"`
	Offer      *SessionDescription `json:"offer,omitempty"`
	Answer     *SessionDescription `json:"answer,omitempty"`
	Candidate  *ICECandidate       `json:"candidate,omitempty"`
	Timestamp  string              `json:"timestamp,omitempty"`
}

// Sender is the outbound half of a signaling channel.
type Sender interface {
	Send(v any) error
}
