// Package config loads client configuration from flags and environment
// variables, with sensible defaults for the deployed detection service.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/verdantlabs/weedwatch/internal/app"
	"github.com/verdantlabs/weedwatch/internal/encode"
)

// Config holds all recognized options. Precedence: flags over environment
// variables over defaults.
type Config struct {
	// StreamEndpoint is the websocket URL of the streaming detection service.
	StreamEndpoint string
	// PredictURL is the HTTP base URL for one-shot submissions.
	PredictURL string
	// Period is the capture cadence.
	Period time.Duration
	// MaxDimension bounds the long edge of encoded frames.
	MaxDimension int
	// Quality is the JPEG re-encode quality.
	Quality int
	// Labels overrides the class-name table (comma separated); empty keeps
	// the default model labels.
	Labels []string
	// CameraID selects the capture device.
	CameraID int
	// StatusAddr is the listen address of the observer server; empty
	// disables it.
	StatusAddr string
	// JournalPath is the sqlite session journal; empty disables journaling.
	JournalPath string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		StreamEndpoint: "ws://localhost:8080/stream",
		PredictURL:     "http://localhost:8080",
		Period:         app.DefaultPeriod,
		MaxDimension:   encode.DefaultMaxDimension,
		Quality:        encode.DefaultQuality,
		CameraID:       0,
		StatusAddr:     "",
		JournalPath:    "",
		LogLevel:       "info",
	}
}

// FromEnv overlays WEEDWATCH_* environment variables onto c.
func (c *Config) FromEnv() {
	if v := os.Getenv("WEEDWATCH_STREAM_ENDPOINT"); v != "" {
		c.StreamEndpoint = v
	}
	if v := os.Getenv("WEEDWATCH_PREDICT_URL"); v != "" {
		c.PredictURL = v
	}
	if v := os.Getenv("WEEDWATCH_PERIOD_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			c.Period = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("WEEDWATCH_MAX_DIMENSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxDimension = n
		}
	}
	if v := os.Getenv("WEEDWATCH_QUALITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Quality = n
		}
	}
	if v := os.Getenv("WEEDWATCH_LABELS"); v != "" {
		c.Labels = splitLabels(v)
	}
	if v := os.Getenv("WEEDWATCH_CAMERA_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.CameraID = n
		}
	}
	if v := os.Getenv("WEEDWATCH_STATUS_ADDR"); v != "" {
		c.StatusAddr = v
	}
	if v := os.Getenv("WEEDWATCH_JOURNAL"); v != "" {
		c.JournalPath = v
	}
	if v := os.Getenv("WEEDWATCH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// RegisterFlags binds c's fields to fs.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.StreamEndpoint, "endpoint", c.StreamEndpoint, "websocket endpoint of the detection service")
	fs.StringVar(&c.PredictURL, "predict-url", c.PredictURL, "HTTP base URL for one-shot detection")
	fs.DurationVar(&c.Period, "period", c.Period, "capture cadence")
	fs.IntVar(&c.MaxDimension, "max-dimension", c.MaxDimension, "maximum frame edge in pixels")
	fs.IntVar(&c.Quality, "quality", c.Quality, "JPEG encode quality")
	fs.IntVar(&c.CameraID, "camera", c.CameraID, "camera device ID")
	fs.StringVar(&c.StatusAddr, "status-addr", c.StatusAddr, "observer server listen address (empty disables)")
	fs.StringVar(&c.JournalPath, "journal", c.JournalPath, "sqlite session journal path (empty disables)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn or error")
	fs.Func("labels", "comma-separated class-name override", func(v string) error {
		c.Labels = splitLabels(v)
		return nil
	})
}

// Validate checks the configuration for coherent values.
func (c *Config) Validate() error {
	if c.StreamEndpoint == "" {
		return errors.New("stream endpoint is required")
	}
	if !strings.HasPrefix(c.StreamEndpoint, "ws://") && !strings.HasPrefix(c.StreamEndpoint, "wss://") {
		return fmt.Errorf("stream endpoint must be a ws:// or wss:// URL, got %q", c.StreamEndpoint)
	}
	if c.Period <= 0 {
		return errors.New("period must be positive")
	}
	if c.MaxDimension <= 0 {
		return errors.New("max dimension must be positive")
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("quality must be in [1,100], got %d", c.Quality)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

func splitLabels(v string) []string {
	parts := strings.Split(v, ",")
	labels := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			labels = append(labels, p)
		}
	}
	return labels
}
