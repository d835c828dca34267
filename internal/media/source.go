package media

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/satsuralala/face-detection/internal/domain"
)

// ImageSource serves one still image on every tick. Useful for exercising
// the uplink against a known face.
type ImageSource struct {
	img image.Image
}

func NewImageSource(path string) (*ImageSource, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	return &ImageSource{img: img}, nil
}

func (s *ImageSource) Frame() (image.Image, error) { return s.img, nil }
func (s *ImageSource) Close() error                { return nil }

// VideoSource decodes a video file, or any input ffmpeg can read, into a
// stream of JPEG frames at roughly the uplink cadence.
type VideoSource struct {
	pr *io.PipeReader
	br *bufio.Reader
}

// NewVideoSource starts an ffmpeg pipeline emitting MJPEG at fps frames per
// second, pre-scaled to the canonical capture resolution.
func NewVideoSource(input string, fps float64) (*VideoSource, error) {
	if fps <= 0 {
		fps = 2
	}
	pr, pw := io.Pipe()

	go func() {
		err := ffmpeg.Input(input).
			Filter("fps", ffmpeg.Args{fmt.Sprintf("%g", fps)}).
			Output("pipe:", ffmpeg.KwArgs{
				"format": "image2pipe",
				"vcodec": "mjpeg",
				"s":      fmt.Sprintf("%dx%d", domain.CaptureWidth, domain.CaptureHeight),
			}).
			WithOutput(pw).
			Run()
		pw.CloseWithError(err)
	}()

	return &VideoSource{pr: pr, br: bufio.NewReaderSize(pr, 1<<20)}, nil
}

// Frame reads and decodes the next JPEG from the pipeline.
func (s *VideoSource) Frame() (image.Image, error) {
	data, err := s.nextJPEG()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// nextJPEG scans the MJPEG byte stream for one SOI..EOI unit.
func (s *VideoSource) nextJPEG() ([]byte, error) {
	for {
		b, err := s.br.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != 0xff {
			continue
		}
		b, err = s.br.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == 0xd8 {
			break
		}
	}

	buf := []byte{0xff, 0xd8}
	var prev byte
	for {
		b, err := s.br.ReadByte()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b)
		if prev == 0xff && b == 0xd9 {
			return buf, nil
		}
		prev = b
	}
}

// Close stops the pipeline by breaking its output pipe.
func (s *VideoSource) Close() error {
	return s.pr.Close()
}

var _ domain.FrameSource = (*ImageSource)(nil)
var _ domain.FrameSource = (*VideoSource)(nil)
