package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/satsuralala/face-detection/internal/domain"
	"github.com/satsuralala/face-detection/internal/relay"
	"github.com/satsuralala/face-detection/internal/signal"
	"github.com/satsuralala/face-detection/internal/watch"
)

var watchOut string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Subscribe to every live camera and record their streams",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		if err := os.MkdirAll(watchOut, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}

		id := domain.NewIdentity(domain.RoleViewer)
		ch, err := signal.NewRelayChannel(cfg.ServerURL, id)
		if err != nil {
			return err
		}

		sinks := func(streamerID string) (io.WriteCloser, error) {
			path := filepath.Join(watchOut, streamerID+".h264")
			return os.Create(path)
		}

		v := watch.New(ch, relay.NewPionFactory(cfg.STUNServers), sinks)
		logrus.WithFields(logrus.Fields{"id": id.ID, "out": watchOut}).Info("watching")

		if err := v.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchOut, "out", "recordings", "directory for per-camera H264 recordings")
	rootCmd.AddCommand(watchCmd)
}
