// Scanner server - runs the camera capture loop and serves the REST and
// WebSocket API
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/study-scanner/internal/camera"
	"github.com/GriffinCanCode/study-scanner/internal/config"
	"github.com/GriffinCanCode/study-scanner/internal/frame"
	"github.com/GriffinCanCode/study-scanner/internal/grpcclient"
	"github.com/GriffinCanCode/study-scanner/internal/notes"
	"github.com/GriffinCanCode/study-scanner/internal/ocr"
	"github.com/GriffinCanCode/study-scanner/internal/orchestrator"
	"github.com/GriffinCanCode/study-scanner/internal/orchestrator/capture"
	"github.com/GriffinCanCode/study-scanner/internal/orchestrator/history"
	"github.com/GriffinCanCode/study-scanner/internal/resilience"
	"github.com/GriffinCanCode/study-scanner/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.LogFormat, cfg.LogLevel, os.Stderr))

	if err := run(cfg); err != nil {
		slog.Error("scanner exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := notes.Open(ctx, cfg.NotesDSN, cfg.NoteOwner)
	if err != nil {
		return fmt.Errorf("open notes: %w", err)
	}
	defer func() { _ = store.Close() }()

	src, closeSrc := newSource(cfg)
	defer closeSrc()

	extractor, closeOCR, err := newExtractor(cfg)
	if err != nil {
		return err
	}
	defer closeOCR()

	ctrl := capture.New(frame.NewSampler(src, cfg.JPEGQuality), extractor, capture.Options{
		Interval:            cfg.CaptureInterval,
		MinTextLength:       cfg.MinTextLength,
		SimilarityThreshold: cfg.SimilarityThreshold,
		OCRTimeout:          cfg.OCRTimeout,
	})

	mgr := orchestrator.New(ctrl, store, history.NewStore(cfg.HistorySize))
	mgr.Start(ctx)

	srv := server.New(mgr)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("scanner server starting", "http", cfg.HTTPAddr, "ocr", cfg.OCRBackend, "source", cfg.FrameSource)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	mgr.Stop()
	slog.Info("shutdown complete")
	return nil
}

func newSource(cfg *config.Config) (frame.Source, func()) {
	if cfg.FrameSource == "file" {
		return camera.NewFile(cfg.FramePath), func() {}
	}
	dev := camera.New(cfg.CameraDevice)
	return dev, dev.Close
}

func newExtractor(cfg *config.Config) (capture.Extractor, func(), error) {
	if cfg.OCRBackend == "tesseract" {
		return ocr.NewTesseract(cfg.TesseractPath, cfg.TesseractLang), func() {}, nil
	}

	breaker := resilience.New(resilience.OCRConfig()).WithHook(func(from, to resilience.State) {
		slog.Warn("ocr circuit breaker", "from", from, "to", to)
	})
	client, err := grpcclient.New(cfg.OCRAddr, grpcclient.WithBreaker(breaker))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to OCR engine at %s: %w", cfg.OCRAddr, err)
	}
	return client, func() { _ = client.Close() }, nil
}
