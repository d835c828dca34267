package uplink

import (
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/satsuralala/face-detection/internal/domain"
)

type fakeConn struct {
	open      bool
	sent      []any
	closed    bool
	closeWith string
	onMessage func([]byte)
}

func (f *fakeConn) Connect() error { return nil }
func (f *fakeConn) Send(v any) error {
	f.sent = append(f.sent, v)
	return nil
}
func (f *fakeConn) IsOpen() bool { return f.open }
func (f *fakeConn) Close(reason string) {
	f.closed = true
	f.closeWith = reason
}
func (f *fakeConn) OnMessage(fn func(data []byte)) { f.onMessage = fn }

type fakeSource struct {
	frames   int
	closed   bool
	closeErr error
}

func (f *fakeSource) Frame() (image.Image, error) {
	f.frames++
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}
func (f *fakeSource) Close() error {
	f.closed = true
	return f.closeErr
}

type recordSink struct {
	results []domain.MatchResult
}

func (r *recordSink) OnMatch(res domain.MatchResult) {
	r.results = append(r.results, res)
}

func newTestChannel(conn *fakeConn, source *fakeSource, sink *recordSink, opts ...Option) *Channel {
	c := New(conn, source, sink, opts...)
	conn.onMessage = c.handleMessage
	return c
}

func TestTickSkipsWhenSocketClosed(t *testing.T) {
	conn := &fakeConn{open: false}
	source := &fakeSource{}
	c := newTestChannel(conn, source, &recordSink{})

	c.tick()

	if source.frames != 0 {
		t.Errorf("expected no capture while socket is down, got %d", source.frames)
	}
	if len(conn.sent) != 0 {
		t.Errorf("expected no sends while socket is down, got %d", len(conn.sent))
	}
}

func TestTickUplinksDataURIFrame(t *testing.T) {
	conn := &fakeConn{open: true}
	source := &fakeSource{}
	var hooked int
	c := newTestChannel(conn, source, &recordSink{}, WithFrameHook(func(image.Image) { hooked++ }))

	c.tick()
	c.tick()

	if source.frames != 2 {
		t.Fatalf("expected 2 captures, got %d", source.frames)
	}
	if len(conn.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(conn.sent))
	}
	if hooked != 2 {
		t.Errorf("expected frame hook to run twice, got %d", hooked)
	}
	payload, ok := conn.sent[0].(framePayload)
	if !ok {
		t.Fatalf("expected framePayload, got %T", conn.sent[0])
	}
	if !strings.HasPrefix(payload.Frame, "data:image/jpeg;base64,") {
		t.Errorf("expected a jpeg data URI, got %q", payload.Frame[:32])
	}
}

func TestVerdictPercentageTakesPrecedence(t *testing.T) {
	conn := &fakeConn{open: true}
	sink := &recordSink{}
	newTestChannel(conn, &fakeSource{}, sink)

	conn.onMessage([]byte(`{"matched":true,"name":"Bat","confidence_percentage":87.5,"similarity":0.2,"bbox":[100,100,40,40]}`))

	if len(sink.results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(sink.results))
	}
	res := sink.results[0]
	if !res.Matched || res.Name != "Bat" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Similarity != 0.875 {
		t.Errorf("expected similarity 0.875, got %v", res.Similarity)
	}
	if res.ConfidencePercent() != 87.5 {
		t.Errorf("expected confidence 87.5, got %v", res.ConfidencePercent())
	}
	if res.BBox == nil || res.BBox.X != 100 || res.BBox.W != 40 {
		t.Errorf("unexpected bbox: %+v", res.BBox)
	}
}

func TestVerdictSimilarityFallback(t *testing.T) {
	conn := &fakeConn{open: true}
	sink := &recordSink{}
	newTestChannel(conn, &fakeSource{}, sink)

	conn.onMessage([]byte(`{"matched":true,"name":"Saruul","similarity":0.61}`))

	if len(sink.results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(sink.results))
	}
	if sink.results[0].Similarity != 0.61 {
		t.Errorf("expected similarity 0.61, got %v", sink.results[0].Similarity)
	}
}

func TestVerdictWithErrorNeverReachesSink(t *testing.T) {
	conn := &fakeConn{open: true}
	sink := &recordSink{}
	newTestChannel(conn, &fakeSource{}, sink)

	conn.onMessage([]byte(`{"matched":true,"name":"ghost","error":"no face detected"}`))

	if len(sink.results) != 0 {
		t.Fatalf("expected error verdict to be dropped, got %d results", len(sink.results))
	}
}

func TestUnmatchedVerdictStillPublished(t *testing.T) {
	conn := &fakeConn{open: true}
	sink := &recordSink{}
	newTestChannel(conn, &fakeSource{}, sink)

	conn.onMessage([]byte(`{"matched":false,"name":""}`))

	if len(sink.results) != 1 {
		t.Fatalf("expected unmatched verdict to be published, got %d results", len(sink.results))
	}
	if sink.results[0].Matched {
		t.Errorf("expected unmatched result")
	}
}

func TestStopRunsEveryStep(t *testing.T) {
	conn := &fakeConn{open: true}
	source := &fakeSource{closeErr: errors.New("device busy")}
	var hookRan bool
	c := newTestChannel(conn, source, &recordSink{}, WithStopHook(func() { hookRan = true }))

	err := c.Stop()

	if !conn.closed {
		t.Errorf("expected socket closed")
	}
	if conn.closeWith != "camera stopped" {
		t.Errorf("unexpected close reason %q", conn.closeWith)
	}
	if !source.closed {
		t.Errorf("expected camera released")
	}
	if !hookRan {
		t.Errorf("expected stop hook to run despite close error")
	}
	if err == nil {
		t.Errorf("expected the source close error to surface")
	}

	// Second stop is a no-op.
	if err := c.Stop(); err != nil {
		t.Errorf("expected idempotent stop, got %v", err)
	}
}
