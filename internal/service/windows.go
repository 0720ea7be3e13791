//go:build windows

package service

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"time"

	"golang.org/x/sys/windows/svc"

	"smartfan/internal/logger"
)

const stopTimeout = 30 * time.Second

type windowsService struct {
	runFunc RunFunc

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

// NewService returns the platform service wrapper.
func NewService(runFunc RunFunc) Service {
	return &windowsService{runFunc: runFunc}
}

// Run hands control to the SCM when started as a service and otherwise runs
// in the foreground.
func (s *windowsService) Run(ctx context.Context) error {
	if !s.IsService() {
		ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
		s.setCancel(cancel)
		defer cancel()
		return s.runFunc(ctx)
	}
	return svc.Run(Name, s)
}

func (s *windowsService) setCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
}

func (s *windowsService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil && !s.stopped {
		s.stopped = true
		s.cancel()
	}
	return nil
}

func (s *windowsService) IsService() bool {
	ok, err := svc.IsWindowsService()
	return err == nil && ok
}

// Execute implements svc.Handler.
func (s *windowsService) Execute(_ []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (bool, uint32) {
	log := logger.WithComponent("service")
	const accepted = svc.AcceptStop | svc.AcceptShutdown

	changes <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	s.setCancel(cancel)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.runFunc(ctx)
	}()

	changes <- svc.Status{State: svc.Running, Accepts: accepted}
	log.Info().Msg("smartfan service started")

	for {
		select {
		case c := <-r:
			switch c.Cmd {
			case svc.Interrogate:
				changes <- c.CurrentStatus
				time.Sleep(100 * time.Millisecond)
				changes <- c.CurrentStatus

			case svc.Stop, svc.Shutdown:
				log.Info().Msg("Stop requested by service control manager")
				changes <- svc.Status{State: svc.StopPending}
				_ = s.Stop()

				select {
				case <-done:
				case <-time.After(stopTimeout):
					log.Warn().Dur("timeout", stopTimeout).Msg("Control loop did not stop in time")
				}
				changes <- svc.Status{State: svc.Stopped}
				return false, 0

			default:
				log.Warn().Uint32("cmd", uint32(c.Cmd)).Msg("Unexpected service control command")
			}

		case err := <-done:
			changes <- svc.Status{State: svc.Stopped}
			if err != nil {
				log.Error().Err(err).Msg("Control loop exited with error")
				return true, 1
			}
			return false, 0
		}
	}
}
