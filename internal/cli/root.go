package cli

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/satsuralala/face-detection/internal/config"
)

var (
	cfg *config.Config

	flagServer string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "facestream",
	Short: "Camera streaming and face search client for the missing-persons portal",
	Long: `facestream connects cameras and observers to the portal's relay.

It can broadcast a video feed as a camera, watch live camera streams,
and run a face search that uplinks frames to the recognizer and reports
matches for a registered missing person.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
		c, err := config.Load()
		if err != nil {
			return err
		}
		if flagServer != "" {
			c.ServerURL = flagServer
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "portal base URL (overrides FACESTREAM_SERVER)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
