// Package main implements the entry point for the realtimefmri service.
// It wires the ingestion source, the frame execution engine, and the
// display dispatcher together for one pipeline run.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/TomDLT/realtimefmri/config"
	"github.com/TomDLT/realtimefmri/display"
	"github.com/TomDLT/realtimefmri/engine"
	"github.com/TomDLT/realtimefmri/ingest"
	"github.com/TomDLT/realtimefmri/metric"
	"github.com/TomDLT/realtimefmri/natsclient"
	"github.com/TomDLT/realtimefmri/pipeline"
	"github.com/TomDLT/realtimefmri/step"
	"github.com/TomDLT/realtimefmri/stepregistry"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "realtimefmri"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cliCfg.PipelinePath != "" {
		cfg.Pipeline = cliCfg.PipelinePath
	}

	doc, err := pipeline.Load(cfg.Pipeline)
	if err != nil {
		return fmt.Errorf("load pipeline: %w", err)
	}
	graph, err := doc.Validate()
	if err != nil {
		return fmt.Errorf("validate pipeline: %w", err)
	}

	registry := step.NewRegistry()
	if err := stepregistry.Register(registry); err != nil {
		return fmt.Errorf("register step types: %w", err)
	}

	if cliCfg.Validate {
		logger.Info("configuration and pipeline are valid",
			"pipeline", cfg.Pipeline,
			"steps", len(graph.Steps),
			"n_skip", graph.NSkip)
		return nil
	}

	recordingID := cliCfg.RecordingID
	if recordingID == "" {
		recordingID = uuid.NewString()
	}
	logger.Info("starting run",
		"version", Version,
		"recording_id", recordingID,
		"pipeline", cfg.Pipeline,
		"steps", len(graph.Steps))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsRegistry := metric.NewMetricsRegistry()
	metrics := metricsRegistry.CoreMetrics()

	natsClient, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(metrics),
		natsclient.WithClientName(cfg.NATS.Name))
	if err != nil {
		return fmt.Errorf("create nats client: %w", err)
	}
	if err := natsClient.Connect(ctx); err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer natsClient.Close()

	// Register the run before any frame so viewers can resolve the
	// recording id to its pipeline immediately.
	kv, err := natsClient.KeyValue(ctx, cfg.Recording.Bucket)
	if err != nil {
		return fmt.Errorf("open runs bucket: %w", err)
	}
	if err := engine.RegisterRun(ctx, kv, recordingID, doc); err != nil {
		return fmt.Errorf("register run: %w", err)
	}

	publishers := []display.Publisher{
		display.NewNATSPublisher(natsClient, cfg.Display.SubjectPrefix),
	}
	if cfg.Display.WebSocketPort > 0 {
		ws := display.NewWSServer(cfg.Display.WebSocketPort, "/ws", logger)
		if err := ws.Start(); err != nil {
			return fmt.Errorf("start websocket server: %w", err)
		}
		publishers = append(publishers, ws)
	}

	dispatcher := display.NewDispatcher(logger, publishers,
		display.WithQueueSize(cfg.Display.QueueSize),
		display.WithMetrics(metrics))
	dispatcher.Start(ctx)
	defer dispatcher.Stop(cliCfg.ShutdownTimeout)

	var metricsServer *metric.Server
	if cfg.Metrics.Port > 0 {
		metricsServer = metric.NewServer(cfg.Metrics.Port, "/metrics", metricsRegistry)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() {
			if err := metricsServer.Stop(5 * time.Second); err != nil {
				logger.Warn("metrics server stop failed", "error", err)
			}
		}()
	}

	eng, err := engine.New(graph, registry,
		step.Dependencies{
			Logger:       logger,
			Metrics:      metricsRegistry,
			Display:      dispatcher,
			RecordingID:  recordingID,
			RecordingDir: cfg.Recording.Directory,
		},
		engine.WithLogger(logger),
		engine.WithMetrics(metrics),
		engine.WithDisplay(dispatcher))
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	source, err := buildSource(cfg, natsClient, logger, metrics)
	if err != nil {
		return fmt.Errorf("build ingest source: %w", err)
	}

	frames := make(chan ingest.Frame)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer close(frames)
		return source.Run(groupCtx, frames)
	})
	group.Go(func() error {
		return eng.Run(groupCtx, frames)
	})

	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("run stopped")
		return nil
	}
	return err
}

// buildSource selects the configured ingestion source.
func buildSource(cfg *config.Config, client *natsclient.Client, logger *slog.Logger, metrics *metric.Metrics) (ingest.Source, error) {
	switch cfg.Ingest.Source {
	case config.SourceNATS:
		return ingest.NewNATSSource(client, cfg.Ingest.Subject, logger,
			ingest.WithSourceMetrics(metrics))
	default:
		return ingest.NewDirWatcher(cfg.Ingest.Directory, logger,
			ingest.WithPattern(cfg.Ingest.Pattern),
			ingest.WithWatcherMetrics(metrics))
	}
}
