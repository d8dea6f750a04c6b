package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"satscope/internal/config"
	"satscope/internal/fix"
	"satscope/internal/gps"
	"satscope/internal/interference"
	"satscope/internal/mapproj"
	"satscope/internal/metrics"
	"satscope/internal/sim"
	"satscope/internal/statebus"
	"satscope/internal/udp"
	"satscope/internal/web"
)

func runService(ctx context.Context, cfg config.Config) error {
	if cfg.Replay.Speed < 0 {
		return fmt.Errorf("replay.speed must be > 0")
	}

	logs := web.NewLogBuffer(cfg.Web.LogLines)
	log.SetOutput(io.MultiWriter(os.Stderr, logs))

	log.Printf("satscope starting")

	var table *interference.Table
	if p := cfg.Interference.Path; p != "" {
		t, err := interference.Load(p)
		if err != nil {
			return fmt.Errorf("interference load failed: %w", err)
		}
		table = t
		log.Printf("interference loaded path=%s cells=%d date=%s", p, t.Len(), t.Date)
	}

	m, err := metrics.New(nil)
	if err != nil {
		return fmt.Errorf("metrics init failed: %w", err)
	}

	fan, err := udp.NewFanout(cfg.Rebroadcast.Targets)
	if err != nil {
		return fmt.Errorf("rebroadcast init failed: %w", err)
	}
	defer fan.Close()
	if fan.Len() > 0 {
		log.Printf("rebroadcast targets=%v", cfg.Rebroadcast.Targets)
	}

	bus := statebus.New(nil)
	svc := gps.New(gpsConfig(cfg), gps.Deps{
		Bus: bus,
		Fix: fix.Options{
			TTL:          cfg.Satellites.TTL,
			HistoryEvery: cfg.Satellites.HistoryEvery,
			Interference: table,
		},
		Metrics:     m,
		Rebroadcast: fan,
	})
	// GNSS failures should not bring down the map server.
	if err := svc.Start(ctx); err != nil {
		log.Printf("gps start failed: %v", err)
	}
	defer svc.Close()

	status := web.NewStatus()
	status.SetStatic(map[string]any{
		"interference_cells": table.Len(),
		"interference_date":  tableDate(table),
		"scale_method":       string(cfg.Map.ScaleMethod),
	})

	log.Printf("web listening addr=%s", cfg.Web.Listen)
	err = web.Serve(ctx, cfg.Web.Listen, web.Deps{
		Bus:     bus,
		GNSS:    svc,
		Status:  status,
		Logs:    logs,
		Metrics: m,
		Map: web.MapConfig{
			Available:  mapAvailable(cfg),
			View:       cfg.Map.Options(),
			HideTrails: cfg.Map.HideTrails,
		},
	})
	log.Printf("satscope stopping")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func gpsConfig(cfg config.Config) gps.Config {
	out := gps.Config{
		Enable:      true,
		Source:      cfg.GNSS.Source,
		Device:      cfg.GNSS.Device,
		Baud:        cfg.GNSS.Baud,
		GPSDAddr:    cfg.GNSS.GPSDAddr,
		ReplayPath:  cfg.Replay.Path,
		ReplaySpeed: cfg.Replay.Speed,
		ReplayLoop:  cfg.Replay.Loop,
		Sim: sim.Receiver{
			CenterLatDeg: cfg.Sim.LatDeg,
			CenterLonDeg: cfg.Sim.LonDeg,
			AltM:         cfg.Sim.AltM,
			RadiusM:      cfg.Sim.RadiusM,
			Period:       cfg.Sim.Period,
			Satellites:   sim.DefaultSatellites(),
		},
		SimInterval: cfg.Sim.Interval,
	}
	if cfg.Record.Enable {
		out.RecordPath = cfg.Record.Path
	}
	return out
}

func tableDate(t *interference.Table) string {
	if t == nil {
		return ""
	}
	return t.Date
}

func mapAvailable(cfg config.Config) mapproj.Size {
	return mapproj.Size{Width: cfg.Map.Width, Height: cfg.Map.Height}
}
