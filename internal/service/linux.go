//go:build !windows

package service

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"smartfan/internal/logger"
)

// unixService stops on SIGINT or SIGTERM. A second signal while shutting
// down abandons the wait.
type unixService struct {
	runFunc RunFunc
	signals chan os.Signal

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

// NewService returns the platform service wrapper.
func NewService(runFunc RunFunc) Service {
	return &unixService{
		runFunc: runFunc,
		signals: make(chan os.Signal, 2),
	}
}

func (s *unixService) Run(ctx context.Context) error {
	log := logger.WithComponent("service")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	signal.Notify(s.signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.signals)

	done := make(chan error, 1)
	go func() {
		done <- s.runFunc(ctx)
	}()

	log.Info().Int("pid", os.Getpid()).Msg("smartfan started")

	select {
	case err := <-done:
		return err
	case sig := <-s.signals:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		_ = s.Stop()
	}

	select {
	case err := <-done:
		return err
	case sig := <-s.signals:
		log.Warn().Str("signal", sig.String()).Msg("Received second signal, exiting without waiting")
		return nil
	}
}

func (s *unixService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil && !s.stopped {
		s.stopped = true
		s.cancel()
	}
	return nil
}

// IsService guesses from stdin: systemd does not attach a terminal.
func (s *unixService) IsService() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice == 0
}
