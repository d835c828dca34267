package cli

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/satsuralala/face-detection/internal/broadcast"
	"github.com/satsuralala/face-detection/internal/domain"
	"github.com/satsuralala/face-detection/internal/media"
	"github.com/satsuralala/face-detection/internal/relay"
	"github.com/satsuralala/face-detection/internal/signal"
)

var (
	broadcastVideo string
	broadcastFPS   int
)

var broadcastCmd = &cobra.Command{
	Use:   "broadcast",
	Short: "Stream an H264 video file to the relay as a camera",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		id := domain.NewIdentity(domain.RoleStreamer)
		ch, err := signal.NewRelayChannel(cfg.ServerURL, id)
		if err != nil {
			return err
		}
		track, err := media.NewFileVideoTrack(broadcastVideo, broadcastFPS)
		if err != nil {
			return err
		}

		b := broadcast.New(ch, relay.NewPionFactory(cfg.STUNServers), track)
		logrus.WithFields(logrus.Fields{"id": id.ID, "video": broadcastVideo}).Info("broadcasting")

		if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	broadcastCmd.Flags().StringVar(&broadcastVideo, "video", "", "path to an Annex-B H264 file to stream")
	broadcastCmd.Flags().IntVar(&broadcastFPS, "fps", 30, "frame rate of the video file")
	broadcastCmd.MarkFlagRequired("video")
	rootCmd.AddCommand(broadcastCmd)
}
