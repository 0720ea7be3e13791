package fan

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"

	"smartfan/internal/ipmi"
	"smartfan/internal/logger"
)

// Zones driven by each socket when only CPU1 is populated.
var (
	cpu1Zones = []int{1, 2, 3}
	cpu2Zones = []int{4, 5, 6}
)

// Commander sends one raw request to the BMC.
type Commander interface {
	SendRaw(ctx context.Context, cmd ipmi.RawCommand) error
}

// CommandResult is the outcome of one issued command.
type CommandResult struct {
	Command ipmi.RawCommand
	Err     error
}

// Result describes one Apply call.
type Result struct {
	Temperature float64
	CPUCount    int
	Speed       int
	Commands    []CommandResult
	// DisabledCPU2Zones is true on the single call that issued the zone 4-6 disable.
	DisabledCPU2Zones bool
}

// Failed returns the commands that did not succeed.
func (r *Result) Failed() []CommandResult {
	var failed []CommandResult
	for _, c := range r.Commands {
		if c.Err != nil {
			failed = append(failed, c)
		}
	}
	return failed
}

// Controller applies the curve and remembers whether CPU2's fan zones have
// already been switched off. The zero latch is false; it is never reset.
type Controller struct {
	commander Commander
	curve     Curve

	mu               sync.Mutex
	cpu2FansDisabled bool
}

// NewController creates a Controller with the latch cleared.
func NewController(commander Commander, curve Curve) *Controller {
	c := make(Curve, len(curve))
	copy(c, curve)
	return &Controller{
		commander: commander,
		curve:     c,
	}
}

// Curve returns a copy of the configured curve.
func (c *Controller) Curve() Curve {
	out := make(Curve, len(c.curve))
	copy(out, c.curve)
	return out
}

// CPU2FansDisabled reports the latch.
func (c *Controller) CPU2FansDisabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cpu2FansDisabled
}

// Apply looks up the speed for temp and drives the fan zones for the given
// socket count. With one CPU, zones 1-3 get the speed and, the first time
// only, zones 4-6 are disabled. Otherwise all zones get the speed in one
// command. Every planned command is attempted; a non-nil error means at least
// one failed and callers should not assume any subset took effect.
func (c *Controller) Apply(ctx context.Context, temp float64, cpuCount int) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log := logger.WithComponent("fan")

	speed := Lookup(temp, c.curve)
	result := &Result{
		Temperature: temp,
		CPUCount:    cpuCount,
		Speed:       speed,
	}

	var cmds []ipmi.RawCommand
	if cpuCount == 1 {
		log.Debug().
			Int("cpu_count", cpuCount).
			Bool("cpu2_fans_disabled", c.cpu2FansDisabled).
			Msg("Single CPU detected")

		for _, zone := range cpu1Zones {
			cmds = append(cmds, ipmi.SetZoneSpeed(zone, speed))
		}
		if !c.cpu2FansDisabled {
			for _, zone := range cpu2Zones {
				cmds = append(cmds, ipmi.DisableZone(zone))
			}
			c.cpu2FansDisabled = true
			result.DisabledCPU2Zones = true
		}
	} else {
		cmds = append(cmds, ipmi.SetZoneSpeed(ipmi.ZoneAll, speed))
	}

	var errs *multierror.Error
	for _, cmd := range cmds {
		err := c.commander.SendRaw(ctx, cmd)
		result.Commands = append(result.Commands, CommandResult{Command: cmd, Err: err})
		if err != nil {
			log.Error().Err(err).Str("command", cmd.String()).Msg("Error executing fan command")
			errs = multierror.Append(errs, err)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return result, err
	}

	log.Info().
		Int("speed", speed).
		Float64("temperature", temp).
		Msgf("Set fan speed to %d%% for CPU temperature %g°C", speed, temp)
	return result, nil
}
