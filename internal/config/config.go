package config

import (
	"fmt"
	"math"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"satscope/internal/mapproj"
)

type Config struct {
	GNSS         GNSSConfig         `yaml:"gnss"`
	Replay       ReplayConfig       `yaml:"replay"`
	Record       RecordConfig       `yaml:"record"`
	Sim          SimConfig          `yaml:"sim"`
	Satellites   SatellitesConfig   `yaml:"satellites"`
	Map          MapConfig          `yaml:"map"`
	Interference InterferenceConfig `yaml:"interference"`
	Rebroadcast  RebroadcastConfig  `yaml:"rebroadcast"`
	Web          WebConfig          `yaml:"web"`
}

type GNSSConfig struct {
	// Source is one of nmea (serial), gpsd, replay or sim.
	Source   string `yaml:"source"`
	Device   string `yaml:"device"`
	Baud     int    `yaml:"baud"`
	GPSDAddr string `yaml:"gpsd_addr"`
}

type ReplayConfig struct {
	Path  string  `yaml:"path"`
	Speed float64 `yaml:"speed"`
	Loop  bool    `yaml:"loop"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

// SimConfig places the simulated receiver used when gnss.source is sim.
type SimConfig struct {
	LatDeg   float64       `yaml:"lat_deg"`
	LonDeg   float64       `yaml:"lon_deg"`
	AltM     float64       `yaml:"alt_m"`
	RadiusM  float64       `yaml:"radius_m"`
	Period   time.Duration `yaml:"period"`
	Interval time.Duration `yaml:"interval"`
}

type SatellitesConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	HistoryEvery time.Duration `yaml:"history_every"`
}

type MapConfig struct {
	// Width and Height are the screen area the map is shown in.
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`

	ScaleFactor float64             `yaml:"scale_factor"`
	ScaleMethod mapproj.ScaleMethod `yaml:"scale_method"`
	FocusLat    float64             `yaml:"focus_lat"`
	FocusLong   float64             `yaml:"focus_long"`

	HideKey   bool    `yaml:"hide_key"`
	KeyXMult  float64 `yaml:"key_x_mult"`
	KeyYMult  float64 `yaml:"key_y_mult"`
	KeyWidth  float64 `yaml:"key_width"`
	KeyHeight float64 `yaml:"key_height"`

	HideTrails bool `yaml:"hide_trails"`
}

// Options converts the map section to projector options.
func (m MapConfig) Options() mapproj.Options {
	return mapproj.Options{
		ScaleFactor: m.ScaleFactor,
		ScaleMethod: m.ScaleMethod,
		FocusLat:    m.FocusLat,
		FocusLong:   m.FocusLong,
		HideKey:     m.HideKey,
		KeyXMult:    m.KeyXMult,
		KeyYMult:    m.KeyYMult,
		KeySize:     mapproj.Size{Width: m.KeyWidth, Height: m.KeyHeight},
	}
}

type InterferenceConfig struct {
	// Path is a gpsjam-style CSV of hex,good,bad rows. Optional.
	Path string `yaml:"path"`
}

type RebroadcastConfig struct {
	// Targets are host:port UDP listeners that receive every raw sentence.
	Targets []string `yaml:"targets"`
}

type WebConfig struct {
	Listen   string `yaml:"listen"`
	LogLines int    `yaml:"log_lines"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	if err := applyDefaults(&cfg); err != nil {
		// The zero config always validates.
		panic(err)
	}
	return cfg
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := applyDefaults(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) error {
	cfg.GNSS.Source = strings.ToLower(strings.TrimSpace(cfg.GNSS.Source))
	if cfg.GNSS.Source == "" {
		cfg.GNSS.Source = "nmea"
	}
	switch cfg.GNSS.Source {
	case "nmea":
		if cfg.GNSS.Baud == 0 {
			cfg.GNSS.Baud = 9600
		}
		if cfg.GNSS.Baud < 0 {
			return fmt.Errorf("gnss.baud must be > 0")
		}
	case "gpsd":
		if cfg.GNSS.GPSDAddr == "" {
			cfg.GNSS.GPSDAddr = "127.0.0.1:2947"
		}
	case "replay":
		if cfg.Replay.Path == "" {
			return fmt.Errorf("replay.path is required when gnss.source is replay")
		}
		if cfg.Replay.Speed == 0 {
			cfg.Replay.Speed = 1
		}
		if cfg.Replay.Speed < 0 {
			return fmt.Errorf("replay.speed must be > 0")
		}
	case "sim":
		if cfg.Sim.LatDeg < -90 || cfg.Sim.LatDeg > 90 {
			return fmt.Errorf("sim.lat_deg must be within [-90,90]")
		}
		if cfg.Sim.LonDeg < -180 || cfg.Sim.LonDeg > 180 {
			return fmt.Errorf("sim.lon_deg must be within [-180,180]")
		}
		if cfg.Sim.Period == 0 {
			cfg.Sim.Period = 12 * time.Hour
		}
		if cfg.Sim.Interval == 0 {
			cfg.Sim.Interval = time.Second
		}
		if cfg.Sim.Period < 0 || cfg.Sim.Interval < 0 || cfg.Sim.RadiusM < 0 {
			return fmt.Errorf("sim.period, sim.interval and sim.radius_m must be >= 0")
		}
	default:
		return fmt.Errorf("gnss.source must be one of nmea, gpsd, replay, sim")
	}

	if cfg.Record.Enable {
		if cfg.GNSS.Source == "replay" {
			return fmt.Errorf("record cannot be used with gnss.source=replay")
		}
		if cfg.Record.Path == "" {
			return fmt.Errorf("record.path is required when record.enable is true")
		}
	}

	if cfg.Satellites.TTL == 0 {
		cfg.Satellites.TTL = 3600 * time.Second
	}
	if cfg.Satellites.TTL < 0 {
		return fmt.Errorf("satellites.ttl must be > 0")
	}
	if cfg.Satellites.HistoryEvery == 0 {
		cfg.Satellites.HistoryEvery = 20 * time.Minute
	}
	if cfg.Satellites.HistoryEvery < 0 {
		return fmt.Errorf("satellites.history_every must be > 0")
	}

	for _, v := range []struct {
		name string
		val  float64
	}{
		{"map.width", cfg.Map.Width},
		{"map.height", cfg.Map.Height},
		{"map.scale_factor", cfg.Map.ScaleFactor},
		{"map.focus_lat", cfg.Map.FocusLat},
		{"map.focus_long", cfg.Map.FocusLong},
	} {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) {
			return fmt.Errorf("%s must be a finite number", v.name)
		}
	}
	if cfg.Map.Width == 0 {
		cfg.Map.Width = 1920
	}
	if cfg.Map.Height == 0 {
		cfg.Map.Height = 1080
	}
	if cfg.Map.Width < 0 || cfg.Map.Height < 0 {
		return fmt.Errorf("map.width and map.height must be > 0")
	}
	if cfg.Map.ScaleFactor == 0 {
		cfg.Map.ScaleFactor = 1
	}
	if cfg.Map.ScaleFactor < 0 {
		return fmt.Errorf("map.scale_factor must be > 0")
	}
	if cfg.Map.ScaleMethod == "" {
		cfg.Map.ScaleMethod = mapproj.Fit
	}
	if _, err := mapproj.ParseScaleMethod(string(cfg.Map.ScaleMethod)); err != nil {
		return fmt.Errorf("map.scale_method: %w", err)
	}
	if cfg.Map.FocusLat < -90 || cfg.Map.FocusLat > 90 {
		return fmt.Errorf("map.focus_lat must be within [-90,90]")
	}

	for i, t := range cfg.Rebroadcast.Targets {
		if _, _, err := net.SplitHostPort(strings.TrimSpace(t)); err != nil {
			return fmt.Errorf("rebroadcast.targets[%d] must be host:port", i)
		}
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}
	if cfg.Web.LogLines == 0 {
		cfg.Web.LogLines = 2000
	}
	if cfg.Web.LogLines < 0 {
		return fmt.Errorf("web.log_lines must be > 0")
	}
	return nil
}
