package broadcast

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/satsuralala/face-detection/internal/relay"
)

// Channel is the slice of the signaling channel the broadcaster needs.
// Satisfied by *signal.Channel.
type Channel interface {
	Connect() error
	Send(v any) error
	Close(reason string)
	OnMessage(fn func(data []byte))
}

// Track is a local video feed. Satisfied by *media.FileVideoTrack.
type Track interface {
	Track() webrtc.TrackLocal
	Stream(ctx context.Context) error
}

// Broadcaster announces itself as a streamer and serves its video track to
// every viewer that asks. Each viewer gets its own peer connection with the
// shared track attached before the offer is created.
type Broadcaster struct {
	ch    Channel
	reg   *relay.Registry
	eng   *relay.Engine
	track Track
	log   *logrus.Entry
}

func New(ch Channel, factory relay.Factory, track Track) *Broadcaster {
	b := &Broadcaster{
		ch:    ch,
		track: track,
		log:   logrus.WithField("comp", "broadcast"),
	}
	b.reg = relay.NewRegistry(relay.Config{
		Factory: b.attachTrack(factory),
		Sender:  ch,
		OnState: func(peerID string, connected bool) {
			b.log.WithFields(logrus.Fields{"viewer": peerID, "connected": connected}).Info("viewer state")
		},
	})
	b.eng = relay.NewEngine(b.reg, ch, relay.Hooks{
		OnStreamRequest: func(viewerID string) {
			b.log.WithField("viewer", viewerID).Info("stream requested")
		},
	})
	return b
}

// attachTrack wraps the factory so the local track is on the connection
// before any offer is generated.
func (b *Broadcaster) attachTrack(factory relay.Factory) relay.Factory {
	return func(peerID string) (relay.Peer, error) {
		peer, err := factory(peerID)
		if err != nil {
			return nil, err
		}
		if err := peer.AddTrack(b.track.Track()); err != nil {
			peer.Close()
			return nil, fmt.Errorf("attach track for %s: %w", peerID, err)
		}
		return peer, nil
	}
}

// HandleRaw feeds one relay payload into the negotiation engine.
func (b *Broadcaster) HandleRaw(data []byte) { b.eng.HandleRaw(data) }

// Viewers reports the number of live viewer sessions.
func (b *Broadcaster) Viewers() int { return b.reg.Len() }

// Run connects to the relay, streams the video feed and blocks until ctx is
// cancelled or the feed fails.
func (b *Broadcaster) Run(ctx context.Context) error {
	b.ch.OnMessage(b.eng.HandleRaw)
	if err := b.ch.Connect(); err != nil {
		return fmt.Errorf("connect relay: %w", err)
	}

	streamErr := make(chan error, 1)
	go func() { streamErr <- b.track.Stream(ctx) }()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-streamErr:
	}

	b.Shutdown()
	return err
}

// Shutdown closes every viewer session and the relay socket. The server
// notifies remaining viewers with streamer_left on our disconnect.
func (b *Broadcaster) Shutdown() {
	b.reg.CloseAll()
	b.ch.Close("broadcast stopped")
}
