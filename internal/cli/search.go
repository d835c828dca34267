package cli

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/satsuralala/face-detection/internal/api"
	"github.com/satsuralala/face-detection/internal/domain"
	"github.com/satsuralala/face-detection/internal/media"
	"github.com/satsuralala/face-detection/internal/overlay"
	"github.com/satsuralala/face-detection/internal/signal"
	"github.com/satsuralala/face-detection/internal/uplink"
)

var (
	searchVideo     string
	searchImage     string
	searchSnapshots string
)

var searchCmd = &cobra.Command{
	Use:   "search <person-id>",
	Short: "Uplink camera frames and search for one missing person",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		personID := args[0]

		person, err := api.NewClient(cfg.ServerURL).GetPerson(ctx, personID)
		if err != nil {
			return fmt.Errorf("fetch person: %w", err)
		}
		logrus.WithFields(logrus.Fields{"person": person.Name, "id": person.Key()}).Info("searching")

		source, err := openSource()
		if err != nil {
			return err
		}

		conn, err := signal.NewUplinkChannel(cfg.ServerURL, personID)
		if err != nil {
			source.Close()
			return err
		}

		renderer := overlay.NewRenderer(domain.CaptureWidth, domain.CaptureHeight)
		sink := &searchSink{
			renderer: renderer,
			snapdir:  searchSnapshots,
			log:      logrus.WithField("comp", "search"),
		}

		up := uplink.New(conn, source, sink,
			uplink.WithFrameInterval(cfg.FrameInterval),
			uplink.WithFrameHook(sink.setFrame),
			uplink.WithStopHook(renderer.Clear),
		)
		if err := up.Start(); err != nil {
			source.Close()
			return err
		}

		<-ctx.Done()
		return up.Stop()
	},
}

func openSource() (domain.FrameSource, error) {
	switch {
	case searchImage != "":
		return media.NewImageSource(searchImage)
	case searchVideo != "":
		return media.NewVideoSource(searchVideo, 1/cfg.FrameInterval.Seconds())
	default:
		return nil, fmt.Errorf("one of --video or --image is required")
	}
}

// searchSink renders each verdict and, on a match, saves an annotated
// snapshot of the frame that produced it.
type searchSink struct {
	renderer *overlay.Renderer
	snapdir  string
	log      *logrus.Entry

	mu    sync.Mutex
	frame image.Image
	saved int
}

func (s *searchSink) setFrame(img image.Image) {
	s.mu.Lock()
	s.frame = img
	s.mu.Unlock()
}

func (s *searchSink) OnMatch(res domain.MatchResult) {
	s.renderer.Render(res)
	if !res.Matched {
		return
	}
	s.log.WithFields(logrus.Fields{
		"name":       res.Name,
		"confidence": fmt.Sprintf("%.1f%%", res.ConfidencePercent()),
	}).Info("person matched")

	if s.snapdir == "" || res.BBox == nil {
		return
	}
	if err := s.saveSnapshot(); err != nil {
		s.log.WithError(err).Warn("save snapshot")
	}
}

func (s *searchSink) saveSnapshot() error {
	s.mu.Lock()
	frame := s.frame
	s.mu.Unlock()
	if frame == nil {
		return nil
	}

	if err := os.MkdirAll(s.snapdir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	base := imaging.Resize(frame, domain.CaptureWidth, domain.CaptureHeight, imaging.Linear)
	composite := imaging.Overlay(base, s.renderer.Canvas(), image.Pt(0, 0), 1.0)

	s.mu.Lock()
	s.saved++
	n := s.saved
	s.mu.Unlock()

	path := filepath.Join(s.snapdir, fmt.Sprintf("match_%d_%d.png", time.Now().Unix(), n))
	if err := imaging.Save(composite, path); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.log.WithField("path", path).Info("snapshot saved")
	return nil
}

func init() {
	searchCmd.Flags().StringVar(&searchVideo, "video", "", "video file to sample frames from")
	searchCmd.Flags().StringVar(&searchImage, "image", "", "still image to uplink on every tick")
	searchCmd.Flags().StringVar(&searchSnapshots, "snapshots", "", "directory for annotated match snapshots")
	rootCmd.AddCommand(searchCmd)
}
