// Package main is the entry point for the thermodashd daemon.
// thermodashd samples sensors into SQLite, runs the thermostat, and
// serves the dashboard HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mvolf/thermodash/internal/actuators"
	"github.com/mvolf/thermodash/internal/config"
	"github.com/mvolf/thermodash/internal/ingest"
	"github.com/mvolf/thermodash/internal/logging"
	"github.com/mvolf/thermodash/internal/server"
	"github.com/mvolf/thermodash/internal/store"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	addr := flag.String("addr", "", "listen address (overrides config)")
	configFile := flag.String("config", "", "config file (default is $HOME/.config/thermodash/config.yaml)")
	dbPath := flag.String("db", "", "database path (overrides config)")
	logLevel := flag.String("log-level", "", "override logging level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "override logging format (json, console)")
	simulate := flag.Bool("simulate", false, "force simulated sensors")
	flag.Parse()

	cfg, loader, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	if *simulate {
		cfg.Sampler.Simulate = true
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directories: %v\n", err)
		os.Exit(1)
	}

	logFile, err := os.OpenFile(cfg.LogFilePath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	// Console copy for interactive runs, file copy for the log tail
	// endpoint.
	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       io.MultiWriter(os.Stderr, logFile),
		EnableCaller: cfg.Logging.EnableCaller,
	})
	logger := logging.Component("thermodashd")

	if cfgUsed := loader.ConfigFileUsed(); cfgUsed != "" {
		logger.Debug().Str("config_file", cfgUsed).Msg("loaded config file")
	}

	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", date).
		Msg("thermodashd starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		logger.Error().Err(err).Msg("failed to open store")
		os.Exit(1)
	}
	defer st.Close()
	logger.Info().Str("path", cfg.DatabasePath()).Msg("store opened")

	manager := actuators.NewManager(st)
	for _, sensorID := range cfg.Sampler.Sensors {
		manager.Register(ctx, "led_"+sensorID, nil, 0)
	}
	for _, relay := range cfg.Actuators.Relays {
		manager.Register(ctx, relay, nil, cfg.Actuators.DefaultSetpoint)
	}

	source := buildSource(cfg)
	sampler := ingest.NewSampler(ingest.Config{
		Interval:         cfg.Sampler.Interval,
		ThermostatSensor: cfg.Sampler.ThermostatSensor,
	}, source, st, manager)
	if err := sampler.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to start sampler")
		os.Exit(1)
	}
	defer func() { _ = sampler.Stop() }()

	srv := server.New(server.Config{
		Addr:        cfg.Server.Addr,
		LogPath:     cfg.LogFilePath(),
		SensorNames: cfg.Server.SensorNames,
	}, st, manager)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown incomplete")
	}
	logger.Info().Msg("thermodashd stopped")
}

func loadConfig(path string) (*config.Config, *config.Loader, error) {
	loader := config.NewLoader()
	if path != "" {
		loader.SetConfigFile(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

func buildSource(cfg *config.Config) ingest.Source {
	// Hardware DHT11 access is platform-specific; the daemon ships with
	// the simulated source and takes real sources behind this seam.
	return ingest.NewSimulatedSource(cfg.Sampler.Sensors, time.Now().UnixNano())
}
