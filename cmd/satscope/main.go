package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"satscope/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "satscope",
		Short: "satscope - live GNSS satellite tracker and world map server",
		Long: `satscope reads NMEA 0183 from a GNSS receiver (serial, gpsd, a recorded
log or a built-in simulator), tracks the satellites in view and serves
their sub-satellite points, trails and map viewport over HTTP.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runService(cmd.Context(), cfg)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (defaults apply when empty)")

	rootCmd.AddCommand(newReplayCmd(&configPath), newSimCmd(&configPath), newSummarizeCmd())
	return rootCmd
}

func newReplayCmd(configPath *string) *cobra.Command {
	var (
		speed float64
		loop  bool
	)
	cmd := &cobra.Command{
		Use:   "replay <log>",
		Short: "Serve the map from a recorded NMEA log instead of a receiver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runService(cmd.Context(), replayConfig(cfg, args[0], speed, loop))
		},
	}
	cmd.Flags().Float64Var(&speed, "speed", 1, "Playback speed multiplier")
	cmd.Flags().BoolVar(&loop, "loop", false, "Restart the log when it ends")
	return cmd
}

const (
	defaultSimLat = 54.597
	defaultSimLon = -5.930
)

func newSimCmd(configPath *string) *cobra.Command {
	var (
		lat, lon float64
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Serve the map from a simulated receiver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runService(cmd.Context(), simConfig(cfg, simFlags{
				lat:      flagFloat(cmd, "lat", lat),
				lon:      flagFloat(cmd, "lon", lon),
				interval: flagDuration(cmd, "interval", interval),
			}))
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", defaultSimLat, "Receiver latitude in degrees (overrides sim.lat_deg)")
	cmd.Flags().Float64Var(&lon, "lon", defaultSimLon, "Receiver longitude in degrees (overrides sim.lon_deg)")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Time between simulated epochs (overrides sim.interval)")
	return cmd
}

func newSummarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <log>",
		Short: "Print sentence counts and duration of a recorded NMEA log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printLogSummary(cmd.OutOrStdout(), args[0])
		},
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// replayConfig switches the ingest source to a recorded log. Recording is
// turned off so the log is not rewritten while it is read.
func replayConfig(cfg config.Config, path string, speed float64, loop bool) config.Config {
	cfg.GNSS.Source = "replay"
	cfg.Replay.Path = path
	cfg.Replay.Speed = speed
	cfg.Replay.Loop = loop
	cfg.Record.Enable = false
	return cfg
}

// simFlags holds the sim command flags; nil means the flag was not given and
// the config value (or its default) stands.
type simFlags struct {
	lat, lon *float64
	interval *time.Duration
}

func flagFloat(cmd *cobra.Command, name string, v float64) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

func flagDuration(cmd *cobra.Command, name string, v time.Duration) *time.Duration {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

func simConfig(cfg config.Config, f simFlags) config.Config {
	// A config written for another source has no receiver position yet.
	if cfg.GNSS.Source != "sim" {
		cfg.GNSS.Source = "sim"
		if cfg.Sim.LatDeg == 0 && cfg.Sim.LonDeg == 0 {
			cfg.Sim.LatDeg, cfg.Sim.LonDeg = defaultSimLat, defaultSimLon
		}
	}
	if f.lat != nil {
		cfg.Sim.LatDeg = *f.lat
	}
	if f.lon != nil {
		cfg.Sim.LonDeg = *f.lon
	}
	if f.interval != nil {
		cfg.Sim.Interval = *f.interval
	}
	if cfg.Sim.Period == 0 {
		cfg.Sim.Period = 12 * time.Hour
	}
	if cfg.Sim.Interval == 0 {
		cfg.Sim.Interval = time.Second
	}
	return cfg
}
