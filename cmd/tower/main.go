// Command tower runs the tower process: PCM ingest, the ring buffer, the
// emission metronome, the ffmpeg encoder, and HTTP fan-out to listeners.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/retrowaves/retrowaves/config"
	"github.com/retrowaves/retrowaves/internal/frame"
	"github.com/retrowaves/retrowaves/internal/security"
	"github.com/retrowaves/retrowaves/internal/tower"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.LoadTower()

	slog.Info("starting tower",
		"addr", cfg.Addr(),
		"pcm_socket", cfg.PCMSocketPath,
		"buffer_capacity", cfg.BufferCapacity,
	)

	sup := tower.NewSupervisor(
		cfg.BufferCapacity,
		cfg.ClientBufferBytes,
		cfg.Bitrate,
		cfg.SampleRate,
		cfg.Channels,
		frame.Period,
		time.Duration(cfg.EncoderGraceSeconds)*time.Second,
	)

	network := "unix"
	addr := cfg.PCMSocketPath
	if cfg.PCMTCPAddr != "" {
		network = "tcp"
		addr = cfg.PCMTCPAddr
	}
	ingress, err := tower.NewIngress(network, addr, sup.Buf)
	if err != nil {
		slog.Error("failed to bind pcm ingress", "error", err, "network", network, "addr", addr)
		os.Exit(1)
	}
	sup.AttachIngress(ingress)

	gate, err := security.NewGate(cfg.AdminPassword)
	if err != nil {
		slog.Error("failed to initialize admin gate", "error", err)
		os.Exit(1)
	}

	router := tower.NewRouter(sup, tower.ServerConfig{
		StationName:    "retrowaves",
		BitrateKbps:    "128",
		MaxClients:     0,
		WriteTimeout:   cfg.ClientTimeout(),
		MetricsEnabled: cfg.MetricsEnabled,
	}, gate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutdown signal received")
		cancel()
	}()

	sup.Start(ctx)

	httpErrCh := make(chan error, 1)
	go func() {
		httpErrCh <- router.Run(cfg.Addr())
	}()

	select {
	case <-ctx.Done():
	case err := <-httpErrCh:
		if err != nil {
			slog.Error("tower http server error", "error", err)
		}
	}

	sup.Stop()
	slog.Info("tower stopped")
}
