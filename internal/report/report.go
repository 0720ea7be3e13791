// Package report defines the per-cycle status record published to sinks.
package report

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"smartfan/internal/sensor"
)

// Cycle summarizes one control cycle.
type Cycle struct {
	Timestamp        time.Time       `json:"timestamp"`
	Hostname         string          `json:"hostname"`
	BMCHost          string          `json:"bmc_host,omitempty"`
	Temperature      *float64        `json:"temperature"`
	CPUCount         int             `json:"cpu_count"`
	Speed            *int            `json:"speed"`
	Success          bool            `json:"success"`
	CPU2FansDisabled bool            `json:"cpu2_fans_disabled"`
	Sensors          []sensor.Sample `json:"sensors,omitempty"`
	Error            string          `json:"error,omitempty"`
	DurationMS       int64           `json:"duration_ms"`
}

// SetTemperature records the observed maximum.
func (c *Cycle) SetTemperature(v float64) { c.Temperature = &v }

// SetSpeed records the commanded speed.
func (c *Cycle) SetSpeed(v int) { c.Speed = &v }

// Fail marks the cycle unsuccessful with err.
func (c *Cycle) Fail(err error) {
	c.Success = false
	if err != nil {
		c.Error = err.Error()
	}
}

// HostInfo identifies the machine running the controller.
type HostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelVersion   string `json:"kernel_version"`
	BootTime        uint64 `json:"boot_time"`
}

// LookupHost gathers host details. On failure it still returns the hostname
// from the OS so cycle records always carry one.
func LookupHost(ctx context.Context) (HostInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		name, _ := os.Hostname()
		return HostInfo{Hostname: name}, err
	}
	return HostInfo{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		BootTime:        info.BootTime,
	}, nil
}
