package watch

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/satsuralala/face-detection/internal/media"
	"github.com/satsuralala/face-detection/internal/relay"
)

// Channel is the slice of the signaling channel the viewer needs. Satisfied
// by *signal.Channel.
type Channel interface {
	Connect() error
	Send(v any) error
	Close(reason string)
	OnMessage(fn func(data []byte))
}

// SinkFactory opens an output for one streamer's video, typically an Annex-B
// file named after the streamer.
type SinkFactory func(streamerID string) (io.WriteCloser, error)

var annexBStartCode = []byte{0x00, 0x00, 0x00, 0x01}

// Viewer subscribes to every camera the relay announces and demuxes each
// remote track into its own H264 elementary stream.
type Viewer struct {
	ch    Channel
	reg   *relay.Registry
	eng   *relay.Engine
	sinks SinkFactory
	log   *logrus.Entry

	mu   sync.Mutex
	open map[string]io.WriteCloser
}

func New(ch Channel, factory relay.Factory, sinks SinkFactory) *Viewer {
	v := &Viewer{
		ch:    ch,
		sinks: sinks,
		log:   logrus.WithField("comp", "watch"),
		open:  make(map[string]io.WriteCloser),
	}
	v.reg = relay.NewRegistry(relay.Config{
		Factory: factory,
		Sender:  ch,
		OnTrack: v.onTrack,
	})
	v.eng = relay.NewEngine(v.reg, ch, relay.Hooks{
		OnStreamerAvailable: v.onStreamerAvailable,
		OnStreamerLeft:      v.onStreamerLeft,
	})
	return v
}

// HandleRaw feeds one relay payload into the negotiation engine.
func (v *Viewer) HandleRaw(data []byte) { v.eng.HandleRaw(data) }

// Sessions reports the number of live streamer sessions.
func (v *Viewer) Sessions() int { return v.reg.Len() }

// Run connects to the relay and blocks until ctx is cancelled, then tears
// everything down.
func (v *Viewer) Run(ctx context.Context) error {
	v.ch.OnMessage(v.eng.HandleRaw)
	if err := v.ch.Connect(); err != nil {
		return fmt.Errorf("connect relay: %w", err)
	}
	<-ctx.Done()
	v.Shutdown()
	return ctx.Err()
}

// Shutdown closes every peer session, every open sink and the relay socket.
func (v *Viewer) Shutdown() {
	v.reg.CloseAll()

	v.mu.Lock()
	sinks := v.open
	v.open = make(map[string]io.WriteCloser)
	v.mu.Unlock()
	for id, sink := range sinks {
		if err := sink.Close(); err != nil {
			v.log.WithError(err).WithField("streamer", id).Warn("close sink")
		}
	}

	v.ch.Close("viewer stopped")
}

func (v *Viewer) onStreamerAvailable(streamerID string) {
	v.log.WithField("streamer", streamerID).Info("streamer available")
	v.eng.RequestStream(streamerID)
}

func (v *Viewer) onStreamerLeft(streamerID string) {
	v.log.WithField("streamer", streamerID).Info("streamer left")
	v.mu.Lock()
	sink, ok := v.open[streamerID]
	delete(v.open, streamerID)
	v.mu.Unlock()
	if ok {
		if err := sink.Close(); err != nil {
			v.log.WithError(err).WithField("streamer", streamerID).Warn("close sink")
		}
	}
}

func (v *Viewer) onTrack(streamerID string, track *webrtc.TrackRemote) {
	v.log.WithFields(logrus.Fields{"streamer": streamerID, "codec": track.Codec().MimeType}).Info("track")
	go v.consumeTrack(streamerID, track)
}

func (v *Viewer) consumeTrack(streamerID string, track *webrtc.TrackRemote) {
	sink, err := v.sinkFor(streamerID)
	if err != nil {
		v.log.WithError(err).WithField("streamer", streamerID).Error("open sink")
		return
	}

	depack := media.NewH264Depacketizer()
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			v.log.WithError(err).WithField("streamer", streamerID).Info("track ended")
			return
		}
		if err := writeNALUs(sink, depack.DepacketizePacket(pkt)); err != nil {
			v.log.WithError(err).WithField("streamer", streamerID).Error("write video")
			return
		}
	}
}

func (v *Viewer) sinkFor(streamerID string) (io.WriteCloser, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if sink, ok := v.open[streamerID]; ok {
		return sink, nil
	}
	sink, err := v.sinks(streamerID)
	if err != nil {
		return nil, err
	}
	v.open[streamerID] = sink
	return sink, nil
}

// writeNALUs emits each NAL unit with an Annex-B start code prefix.
func writeNALUs(w io.Writer, nalus [][]byte) error {
	for _, nalu := range nalus {
		if _, err := w.Write(annexBStartCode); err != nil {
			return err
		}
		if _, err := w.Write(nalu); err != nil {
			return err
		}
	}
	return nil
}
