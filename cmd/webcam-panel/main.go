package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"webcam-fingerprint/internal/application"
	"webcam-fingerprint/internal/infrastructure/camera"
	"webcam-fingerprint/internal/infrastructure/fingerprint"
	"webcam-fingerprint/internal/infrastructure/logger"
	"webcam-fingerprint/internal/infrastructure/streaming"
	"webcam-fingerprint/internal/infrastructure/upload"
	"webcam-fingerprint/internal/presentation/cli"
	"webcam-fingerprint/internal/presentation/web"
)

func main() {
	options, err := cli.ParseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	cfg, err := cli.LoadConfig(options)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	stdLogger := logger.NewStdLogger(cfg.Debug)

	// Infrastructure
	cameraManager := camera.NewMediaDevicesManager(stdLogger)
	hub := streaming.NewHub(stdLogger, cfg.Debug)
	uploader := upload.NewLogUploader(stdLogger)
	scanner := fingerprint.NewClient(cfg.Fingerprint.Endpoint, cfg.FingerprintTimeout())

	// Application services; the two widgets share nothing but the hub
	captureService := application.NewCaptureService(cameraManager, hub, uploader, hub, stdLogger, cfg.VideoConfig())
	fingerprintService := application.NewFingerprintService(scanner, hub, stdLogger)

	server := web.NewServer(cfg.Port, captureService, fingerprintService, hub, stdLogger)

	cliApp := cli.NewCLI(captureService, stdLogger, options)
	err = cliApp.Run(func(ctx context.Context) error {
		defer hub.Close()
		return server.Run(ctx)
	})
	if err != nil {
		log.Fatalf("error: %v", err)
	}
}
