// Package sender publishes cycle reports to an external sink.
package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"smartfan/internal/report"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("sender is closed")

// Sender delivers one report per control cycle. Implementations must be
// safe for concurrent use; a failed Send never affects fan control.
type Sender interface {
	Send(ctx context.Context, cycle *report.Cycle) error
	Close() error
}

// Discard drops every report. It is used when no sink is configured.
type Discard struct{}

func (Discard) Send(context.Context, *report.Cycle) error { return nil }
func (Discard) Close() error                              { return nil }

func encode(cycle *report.Cycle, pretty bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(cycle, "", "  ")
	} else {
		data, err = json.Marshal(cycle)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cycle report: %w", err)
	}
	return data, nil
}
