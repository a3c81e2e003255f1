package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lmittmann/tint"

	"github.com/verdantlabs/weedwatch/internal/app"
	"github.com/verdantlabs/weedwatch/internal/capture"
	"github.com/verdantlabs/weedwatch/internal/channel"
	"github.com/verdantlabs/weedwatch/internal/config"
	"github.com/verdantlabs/weedwatch/internal/detection"
	"github.com/verdantlabs/weedwatch/internal/encode"
	"github.com/verdantlabs/weedwatch/internal/predict"
	"github.com/verdantlabs/weedwatch/internal/server"
	"github.com/verdantlabs/weedwatch/internal/state"
	"github.com/verdantlabs/weedwatch/internal/store"
)

func main() {
	cfg := config.Default()
	cfg.FromEnv()

	args := os.Args[1:]
	mode := "stream"
	if len(args) > 0 && (args[0] == "stream" || args[0] == "detect") {
		mode = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("weedwatch", flag.ExitOnError)
	cfg.RegisterFlags(fs)
	fs.Parse(args)

	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      logLevel(cfg.LogLevel),
			TimeFormat: "15:04:05",
		}),
	)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	labels := detection.DefaultLabels
	if len(cfg.Labels) > 0 {
		labels = detection.LabelTable(cfg.Labels)
	}

	switch mode {
	case "detect":
		if err := runDetect(cfg, labels, fs.Args()); err != nil {
			logger.Error("detection failed", "error", err)
			os.Exit(1)
		}
	default:
		if err := runStream(cfg, labels, logger); err != nil {
			logger.Error("pipeline failed", "error", err)
			os.Exit(1)
		}
	}
}

// runStream runs the continuous streaming pipeline until interrupted.
func runStream(cfg config.Config, labels detection.LabelTable, logger *slog.Logger) error {
	states := state.NewStore()
	ch := channel.New(states, states, labels, logger)

	var journal app.Recorder
	if cfg.JournalPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.JournalPath), 0755); err != nil {
			return fmt.Errorf("create journal directory: %w", err)
		}
		st, err := store.New(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer st.Close()

		j, err := st.StartSession(cfg.StreamEndpoint)
		if err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		defer j.End()
		journal = j
	}

	pipeline := app.New(app.Config{
		Endpoint: cfg.StreamEndpoint,
		Period:   cfg.Period,
		Source:   capture.NewCamera(cfg.CameraID),
		Encoder:  encode.NewEncoder(cfg.MaxDimension, cfg.Quality),
		Channel:  ch,
		States:   states,
		Journal:  journal,
		Logger:   logger,
	})

	if cfg.StatusAddr != "" {
		srv := server.New(server.Config{States: states})
		go func() {
			logger.Info("observer server listening", "addr", cfg.StatusAddr)
			if err := srv.ListenAndServe(cfg.StatusAddr); err != nil {
				logger.Error("observer server failed", "error", err)
			}
		}()
	}

	if err := pipeline.Start(context.Background()); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	pipeline.Stop()
	return nil
}

// runDetect submits a single image file and prints the labeled results.
func runDetect(cfg config.Config, labels detection.LabelTable, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: weedwatch detect [flags] <image-file>")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	client := predict.NewClient(cfg.PredictURL, labels)
	result, err := client.Detect(context.Background(), data, filepath.Base(args[0]))
	if err != nil {
		return err
	}

	fmt.Printf("Found %d detection(s)\n", result.Count)
	for _, d := range result.Detections {
		fmt.Printf("  %-14s %5.1f%%  [%.0f,%.0f %.0f,%.0f]\n",
			d.ClassName, d.Confidence*100, d.X1, d.Y1, d.X2, d.Y2)
	}
	return nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
