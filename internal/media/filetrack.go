package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/h264reader"
)

// FileVideoTrack loops an Annex-B H264 file into a local sample track so a
// broadcaster has video without a physical camera.
type FileVideoTrack struct {
	track *webrtc.TrackLocalStaticSample
	path  string
	fps   int
}

// NewFileVideoTrack builds the local track. The file is opened when Stream
// starts.
func NewFileVideoTrack(path string, fps int) (*FileVideoTrack, error) {
	if fps <= 0 {
		fps = 30
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264},
		"video",
		"facestream",
	)
	if err != nil {
		return nil, fmt.Errorf("create video track: %w", err)
	}
	return &FileVideoTrack{track: track, path: path, fps: fps}, nil
}

// Track exposes the track for attaching to peer connections.
func (t *FileVideoTrack) Track() webrtc.TrackLocal {
	return t.track
}

// Stream writes NAL units into the track at the frame cadence, rewinding at
// EOF, until ctx is cancelled.
func (t *FileVideoTrack) Stream(ctx context.Context) error {
	file, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("open video: %w", err)
	}
	defer file.Close()

	reader, err := h264reader.NewReader(file)
	if err != nil {
		return fmt.Errorf("h264 reader: %w", err)
	}

	frameDur := time.Second / time.Duration(t.fps)
	ticker := time.NewTicker(frameDur)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		nal, err := reader.NextNAL()
		if errors.Is(err, io.EOF) {
			if _, err := file.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("rewind video: %w", err)
			}
			reader, err = h264reader.NewReader(file)
			if err != nil {
				return fmt.Errorf("h264 reader: %w", err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("read nal: %w", err)
		}

		if err := t.track.WriteSample(media.Sample{Data: nal.Data, Duration: frameDur}); err != nil {
			return fmt.Errorf("write sample: %w", err)
		}
	}
}
