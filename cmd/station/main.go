// Command station runs the station process: content selection (via a
// minimal demo scanner), segment scheduling, and Clock A decode pacing
// over the PCM transport to the tower.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/retrowaves/retrowaves/config"
	"github.com/retrowaves/retrowaves/internal/content"
	"github.com/retrowaves/retrowaves/internal/history"
	"github.com/retrowaves/retrowaves/internal/station"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.LoadStation()

	slog.Info("starting station",
		"music_dir", cfg.MusicDir,
		"tower_host", cfg.TowerHost,
		"tower_port", cfg.TowerPort,
		"pid_enabled", cfg.PIDEnabled,
	)

	scanner, err := content.NewScanner(cfg.MusicDir)
	if err != nil {
		slog.Error("failed to scan music directory", "error", err, "dir", cfg.MusicDir)
		os.Exit(1)
	}

	network := "unix"
	pcmAddr := cfg.PCMSocketPath
	if cfg.PCMTCPAddr != "" {
		network = "tcp"
		pcmAddr = cfg.PCMTCPAddr
	}

	sup := station.NewSupervisor(station.Config{
		TowerNetwork: network,
		TowerPCMAddr: pcmAddr,
		TowerWSURL:   fmt.Sprintf("ws://%s:%d/tower/events", cfg.TowerHost, cfg.TowerPort),
		TowerHTTPURL: fmt.Sprintf("http://%s:%d", cfg.TowerHost, cfg.TowerPort),
		PrepLead:     time.Duration(cfg.PrepLeadSeconds) * time.Second,
		PID: station.PIDConfig{
			Enabled:             cfg.PIDEnabled,
			Kp:                  cfg.PIDKp,
			Ki:                  cfg.PIDKi,
			Kd:                  cfg.PIDKd,
			TargetRatio:         cfg.PIDTargetRatio,
			MinSleep:            0,
			MaxSleep:            100 * time.Millisecond,
			IntegralWindupLimit: 10.0,
		},
		PollInterval: cfg.PIDUpdateInterval,
		QueryTimeout: cfg.PIDQueryTimeout,
	})

	recorder := history.NewRecorder(cfg.HistoryPath)

	sup.Engine.OnPrep = func() {
		ev, ok := scanner.NextAudioEvent()
		if !ok {
			slog.Warn("content scanner has nothing to enqueue")
			return
		}
		if err := sup.Enqueue(ev); err != nil {
			slog.Warn("failed to enqueue audio event", "error", err)
			return
		}
		recorder.Record(history.Entry{Path: ev.Path, Type: string(ev.Type), PlayedAt: time.Now()})
	}

	// Seed the first segment immediately so Clock A has something to
	// play before its own prep window fires.
	if ev, ok := scanner.NextAudioEvent(); ok {
		_ = sup.Enqueue(ev)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutdown signal received, draining current segment")
		// Stop lets the in-flight segment finish before it cancels ctx,
		// so the playout engine's own ctx.Err() checks don't abort
		// mid-segment out from under the drain.
		sup.Stop(time.Duration(cfg.DrainTimeoutSeconds) * time.Second)
		cancel()
	}()

	sup.Start(ctx, cfg.PIDUpdateInterval)

	<-ctx.Done()

	if err := recorder.Save(); err != nil {
		slog.Error("failed to persist play history", "error", err)
	}

	slog.Info("station stopped")
}
