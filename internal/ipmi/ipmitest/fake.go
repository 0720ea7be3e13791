// Package ipmitest provides an in-memory BMC for tests of packages that
// drive ipmitool through sensor.Querier and fan.Commander.
package ipmitest

import (
	"context"
	"sync"

	"smartfan/internal/ipmi"
)

// Fake stands in for ipmi.Tool.
type Fake struct {
	mu sync.Mutex

	// SensorReport is returned by QuerySensors.
	SensorReport string

	// QueryError, if set, is returned by QuerySensors.
	QueryError error

	// SendError, if set, is returned by every SendRaw call.
	SendError error

	// FailCommand, if set, decides the result of each SendRaw call.
	FailCommand func(cmd ipmi.RawCommand) error

	queries int
	sent    []ipmi.RawCommand
}

// NewFake creates a Fake that reports the given sensor text.
func NewFake(report string) *Fake {
	return &Fake{SensorReport: report}
}

// QuerySensors records the query and returns SensorReport or QueryError.
func (f *Fake) QuerySensors(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries++
	if f.QueryError != nil {
		return "", f.QueryError
	}
	return f.SensorReport, nil
}

// SendRaw records the command. It is recorded even when it fails.
func (f *Fake) SendRaw(_ context.Context, cmd ipmi.RawCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, cmd)
	if f.SendError != nil {
		return f.SendError
	}
	if f.FailCommand != nil {
		return f.FailCommand(cmd)
	}
	return nil
}

// SetSensorReport replaces the report returned by later queries.
func (f *Fake) SetSensorReport(report string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SensorReport = report
}

// Queries returns how many times QuerySensors was called.
func (f *Fake) Queries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

// Sent returns a copy of every command passed to SendRaw.
func (f *Fake) Sent() []ipmi.RawCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ipmi.RawCommand, len(f.sent))
	copy(out, f.sent)
	return out
}

// SentStrings returns Sent formatted with ipmi.RawCommand.String.
func (f *Fake) SentStrings() []string {
	cmds := f.Sent()
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.String()
	}
	return out
}

// Reset clears recorded calls.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = 0
	f.sent = nil
}
