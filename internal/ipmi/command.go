package ipmi

import (
	"fmt"
	"strings"
)

// OEM fan control for HR650X class boards: raw 0x2e 0x30 0x00 <zone> <value>.
const (
	NetFnOEM       byte = 0x2e
	CmdSetFanSpeed byte = 0x30

	// ZoneAll addresses every fan zone at once.
	ZoneAll = 0

	// ZoneDisabled is the value byte that turns a zone off. It is not a speed.
	ZoneDisabled byte = 0x02
)

// RawCommand is a single "ipmitool raw" request.
type RawCommand struct {
	NetFn   byte
	Command byte
	Data    []byte
}

// SetZoneSpeed builds the command that sets zone to speed percent.
// The speed is clamped to 0-100.
func SetZoneSpeed(zone, speed int) RawCommand {
	if speed < 0 {
		speed = 0
	}
	if speed > 100 {
		speed = 100
	}
	return RawCommand{
		NetFn:   NetFnOEM,
		Command: CmdSetFanSpeed,
		Data:    []byte{0x00, byte(zone), byte(speed)},
	}
}

// DisableZone builds the command that switches zone off.
func DisableZone(zone int) RawCommand {
	return RawCommand{
		NetFn:   NetFnOEM,
		Command: CmdSetFanSpeed,
		Data:    []byte{0x00, byte(zone), ZoneDisabled},
	}
}

// Args returns the ipmitool arguments for the command, every byte hex-encoded.
func (c RawCommand) Args() []string {
	args := make([]string, 0, 3+len(c.Data))
	args = append(args, "raw", hexByte(c.NetFn), hexByte(c.Command))
	for _, b := range c.Data {
		args = append(args, hexByte(b))
	}
	return args
}

func (c RawCommand) String() string {
	return strings.Join(c.Args(), " ")
}

func hexByte(b byte) string {
	return fmt.Sprintf("0x%02x", b)
}
