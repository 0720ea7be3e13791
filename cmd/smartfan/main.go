// Package main is the entry point for the smartfan controller.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"smartfan/internal/config"
	"smartfan/internal/fan"
	"smartfan/internal/ipmi"
	"smartfan/internal/logger"
	"smartfan/internal/report"
	"smartfan/internal/scheduler"
	"smartfan/internal/sender"
	"smartfan/internal/sensor"
	"smartfan/internal/service"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const startupErrorLogDir = "log/smartfan"

var errCycleFailed = errors.New("control cycle failed")

func main() {
	var (
		configPath  = flag.String("config", config.DefaultPath, "Path to the YAML configuration file")
		mode        = flag.String("mode", "", "IPMI mode override: remote or local (in-band)")
		once        = flag.Bool("once", false, "Run a single control cycle and exit")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("smartfan %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// "smartfan in-band" keeps existing launch scripts working.
	if *mode == "" && flag.NArg() > 0 {
		*mode = flag.Arg(0)
	}

	// The SCM starts services in System32; an absolute config path anchors
	// relative log and data paths to the install directory instead.
	if filepath.IsAbs(*configPath) {
		base := filepath.Dir(filepath.Dir(*configPath))
		if err := os.Chdir(base); err != nil {
			fail(fmt.Errorf("failed to chdir to %s: %w", base, err))
		}
	}

	cfg, err := loadConfig(*configPath, *mode)
	if err != nil {
		fail(err)
	}

	if err := logger.Init(cfg.Logging); err != nil {
		fail(fmt.Errorf("failed to initialize logger: %w", err))
	}
	defer logger.Close()

	log := logger.WithComponent("main")
	log.Info().
		Str("version", version).
		Str("config", *configPath).
		Str("mode", cfg.IPMI.Mode).
		Msg("Starting smartfan")

	if *once {
		if err := runOnce(context.Background(), cfg); err != nil {
			log.Error().Err(err).Msg("Single cycle failed")
			logger.Close()
			os.Exit(1)
		}
		return
	}

	svc := service.NewService(func(ctx context.Context) error {
		return run(ctx, cfg, *configPath)
	})
	if err := svc.Run(context.Background()); err != nil {
		log.Error().Err(err).Msg("Service exited with error")
		logger.Close()
		os.Exit(1)
	}

	log.Info().Msg("smartfan stopped")
}

// fail reports a startup error everywhere it can be seen before logging
// exists, then exits.
func fail(err error) {
	service.ReportStartupError(err)
	service.WriteStartupErrorFile(startupErrorLogDir, err)
	fmt.Fprintf(os.Stderr, "smartfan: %v\n", err)
	os.Exit(1)
}

// loadConfig is config.Load with the -mode override applied before
// validation, since local mode does not need a BMC host.
func loadConfig(path, mode string) (*config.Config, error) {
	if mode == "" {
		return config.Load(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := config.Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.IPMI.Mode = strings.TrimSpace(mode)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// controlPlane is everything a cycle needs; close releases the sink.
type controlPlane struct {
	sched  *scheduler.Scheduler
	sender sender.Sender
}

func (cp *controlPlane) close() {
	if err := cp.sender.Close(); err != nil {
		logger.WithComponent("main").Error().Err(err).Msg("Error closing sender")
	}
}

func build(ctx context.Context, cfg *config.Config) (*controlPlane, error) {
	log := logger.WithComponent("main")

	hostInfo, err := report.LookupHost(ctx)
	if err != nil {
		log.Warn().Err(err).Str("hostname", hostInfo.Hostname).Msg("Host lookup incomplete")
	}
	log.Info().
		Str("hostname", hostInfo.Hostname).
		Str("platform", hostInfo.Platform).
		Str("kernel", hostInfo.KernelVersion).
		Msg("Host identified")

	tool, err := ipmi.NewTool(cfg.IPMIOptions(), ipmi.ExecRunner{})
	if err != nil {
		return nil, err
	}

	curve := cfg.FanCurve()
	if len(curve) == 0 {
		log.Warn().Msg("fan_speeds is empty, every reading will use the fail-safe speed")
	}
	controller := fan.NewController(tool, curve)

	snd, err := sender.New(ctx, cfg.Sender, hostInfo.Hostname)
	if err != nil {
		// Telemetry is optional; the fans are not.
		log.Error().Err(err).Msg("Failed to create sender, cycle reports will be discarded")
		snd = sender.Discard{}
	}

	sched := scheduler.New(sensor.NewReader(tool), controller, snd, scheduler.Options{
		Interval:     cfg.Controller.Interval,
		CycleTimeout: cfg.Controller.CycleTimeout,
		Hostname:     hostInfo.Hostname,
		BMCHost:      tool.Host(),
	})

	log.Info().
		Str("mode", string(tool.Mode())).
		Str("bmc_host", tool.Host()).
		Int("curve_entries", len(curve)).
		Msg("Controller initialized")

	return &controlPlane{sched: sched, sender: snd}, nil
}

func runOnce(ctx context.Context, cfg *config.Config) error {
	cp, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer cp.close()

	cycle := cp.sched.RunOnce(ctx)
	if !cycle.Success {
		return fmt.Errorf("%w: %s", errCycleFailed, cycle.Error)
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, configPath string) error {
	log := logger.WithComponent("main")

	cp, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer cp.close()

	watcher, err := config.NewReloadWatcher(configPath, cfg, func(lc logger.Config) {
		if err := logger.Init(lc); err != nil {
			log.Error().Err(err).Msg("Failed to apply logging configuration")
			return
		}
		logger.WithComponent("main").Info().Str("level", lc.Level).Msg("Logging configuration updated")
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create config watcher, hot reload disabled")
	} else if err := watcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start config watcher, hot reload disabled")
		_ = watcher.Stop()
	} else {
		defer func() {
			if err := watcher.Stop(); err != nil {
				log.Error().Err(err).Msg("Error stopping config watcher")
			}
		}()
	}

	if err := cp.sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	<-ctx.Done()

	log.Info().Msg("Shutting down")
	cp.sched.Stop()
	return nil
}
