// Package service adapts the control loop to the host's service manager.
package service

import "context"

// Name is the service name registered with the Windows SCM and Event Log.
const Name = "smartfan"

// Service runs the controller until the platform asks it to stop.
type Service interface {
	// Run blocks until runFunc returns or a stop is requested.
	Run(ctx context.Context) error
	Stop() error
	// IsService reports whether a service manager started the process.
	IsService() bool
}

// RunFunc is the controller body; it must return once ctx is done.
type RunFunc func(ctx context.Context) error
