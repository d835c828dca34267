package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/satsuralala/face-detection/internal/relay"
	"github.com/satsuralala/face-detection/internal/uplink"
)

// Config holds the application configuration.
type Config struct {
	ServerURL     string
	STUNServers   []string
	FrameInterval time.Duration
}

// Load reads configuration from a .env file (if present) and environment
// variables. Environment variables take precedence over .env values.
func Load() (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	cfg := &Config{
		ServerURL:     "http://localhost:8000",
		STUNServers:   relay.DefaultSTUNServers,
		FrameInterval: uplink.DefaultFrameInterval,
	}

	if v := os.Getenv("FACESTREAM_SERVER"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("FACESTREAM_STUN"); v != "" {
		var servers []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				servers = append(servers, s)
			}
		}
		if len(servers) == 0 {
			return nil, fmt.Errorf("FACESTREAM_STUN is set but contains no servers")
		}
		cfg.STUNServers = servers
	}
	if v := os.Getenv("FACESTREAM_FRAME_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse FACESTREAM_FRAME_INTERVAL: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("FACESTREAM_FRAME_INTERVAL must be positive, got %s", d)
		}
		cfg.FrameInterval = d
	}

	return cfg, nil
}
