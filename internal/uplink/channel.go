package uplink

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/satsuralala/face-detection/internal/domain"
)

// DefaultFrameInterval is the uplink sampling cadence.
const DefaultFrameInterval = 500 * time.Millisecond

// Conn is the slice of the signaling channel the uplink needs. Satisfied by
// *signal.Channel.
type Conn interface {
	Connect() error
	Send(v any) error
	IsOpen() bool
	Close(reason string)
	OnMessage(fn func(data []byte))
}

// framePayload is one outbound camera sample.
type framePayload struct {
	Frame string `json:"frame"`
}

// matchPayload is the recognizer's verdict for one frame. The backend sends
// either confidence_percentage (0-100) or similarity (0-1) depending on the
// model in use; bbox is x, y, width, height in capture-resolution pixels.
type matchPayload struct {
	Matched              bool        `json:"matched"`
	Name                 string      `json:"name"`
	ConfidencePercentage *float64    `json:"confidence_percentage"`
	Similarity           *float64    `json:"similarity"`
	BBox                 *[4]float64 `json:"bbox"`
	Error                string      `json:"error"`
}

// normalize folds the two confidence encodings into one 0-1 similarity.
// confidence_percentage wins when both are present.
func (p matchPayload) normalize() domain.MatchResult {
	res := domain.MatchResult{
		Matched: p.Matched,
		Name:    p.Name,
	}
	switch {
	case p.ConfidencePercentage != nil:
		res.Similarity = *p.ConfidencePercentage / 100
	case p.Similarity != nil:
		res.Similarity = *p.Similarity
	}
	if p.BBox != nil {
		res.BBox = &domain.BBox{
			X: p.BBox[0],
			Y: p.BBox[1],
			W: p.BBox[2],
			H: p.BBox[3],
		}
	}
	return res
}

// Channel pumps camera frames to the recognition endpoint at a fixed cadence
// and feeds verdicts to a sink. One Channel serves one search.
type Channel struct {
	conn     Conn
	source   domain.FrameSource
	sink     domain.MatchSink
	interval time.Duration
	log      *logrus.Entry

	onFrame func(image.Image)
	onStop  func()

	mu      sync.Mutex
	stop    chan struct{}
	stopped bool
}

// Option tweaks channel construction.
type Option func(*Channel)

// WithFrameInterval overrides the sampling cadence.
func WithFrameInterval(d time.Duration) Option {
	return func(c *Channel) { c.interval = d }
}

// WithFrameHook observes every frame that is uplinked, after capture and
// before encoding. Used for snapshot compositing.
func WithFrameHook(fn func(image.Image)) Option {
	return func(c *Channel) { c.onFrame = fn }
}

// WithStopHook runs once at the end of Stop, after the camera is released.
func WithStopHook(fn func()) Option {
	return func(c *Channel) { c.onStop = fn }
}

func New(conn Conn, source domain.FrameSource, sink domain.MatchSink, opts ...Option) *Channel {
	c := &Channel{
		conn:     conn,
		source:   source,
		sink:     sink,
		interval: DefaultFrameInterval,
		log:      logrus.WithField("comp", "uplink"),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start connects the socket and begins sampling. Sampling continues through
// socket outages; ticks that land while the socket is down are skipped
// without touching the camera, and frames lost that way are never re-sent.
func (c *Channel) Start() error {
	c.conn.OnMessage(c.handleMessage)
	if err := c.conn.Connect(); err != nil {
		return fmt.Errorf("connect uplink: %w", err)
	}
	go c.sampleLoop()
	return nil
}

func (c *Channel) sampleLoop() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick uplinks one frame. No socket means no capture.
func (c *Channel) tick() {
	if !c.conn.IsOpen() {
		return
	}
	frame, err := c.source.Frame()
	if err != nil {
		c.log.WithError(err).Warn("capture frame")
		return
	}
	if c.onFrame != nil {
		c.onFrame(frame)
	}
	encoded, err := encodeFrame(frame)
	if err != nil {
		c.log.WithError(err).Warn("encode frame")
		return
	}
	if err := c.conn.Send(framePayload{Frame: encoded}); err != nil {
		c.log.WithError(err).Warn("send frame")
	}
}

// handleMessage decodes one verdict. A verdict carrying an error string is
// logged and never reaches the sink.
func (c *Channel) handleMessage(data []byte) {
	var payload matchPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.log.WithError(err).Warn("dropping undecodable verdict")
		return
	}
	if payload.Error != "" {
		c.log.WithField("error", payload.Error).Warn("recognizer error")
		return
	}
	res := payload.normalize()
	if res.Matched {
		c.log.WithFields(logrus.Fields{
			"name":       res.Name,
			"confidence": fmt.Sprintf("%.1f%%", res.ConfidencePercent()),
		}).Info("match")
	}
	c.sink.OnMatch(res)
}

// Stop tears the search down: the sampler, the socket, the camera, then the
// stop hook. Every step runs even when an earlier one fails.
func (c *Channel) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stop)
	c.mu.Unlock()

	c.conn.Close("camera stopped")
	err := c.source.Close()
	if err != nil {
		c.log.WithError(err).Warn("close frame source")
	}
	if c.onStop != nil {
		c.onStop()
	}
	c.log.Info("stopped")
	return err
}

// encodeFrame normalizes the frame to the capture resolution and packs it as
// a base64 JPEG data URI, matching what the recognizer expects.
func encodeFrame(img image.Image) (string, error) {
	bounds := img.Bounds()
	if bounds.Dx() != domain.CaptureWidth || bounds.Dy() != domain.CaptureHeight {
		img = imaging.Resize(img, domain.CaptureWidth, domain.CaptureHeight, imaging.Linear)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
