// Package fan maps CPU temperature to a fan speed and drives the BMC fan zones.
package fan

import "fmt"

// FailSafeSpeed is used whenever the curve has no entry for a temperature.
const FailSafeSpeed = 100

// CurveEntry applies Speed to temperatures in [Low, High).
type CurveEntry struct {
	Low   float64
	High  float64
	Speed int
}

// Contains reports whether temp falls in [Low, High).
func (e CurveEntry) Contains(temp float64) bool {
	return e.Low <= temp && temp < e.High
}

func (e CurveEntry) String() string {
	return fmt.Sprintf("[%g, %g) -> %d%%", e.Low, e.High, e.Speed)
}

// Curve is an ordered list of entries; the first match wins.
type Curve []CurveEntry

// Lookup returns the speed of the first entry containing temp, or
// FailSafeSpeed if none does.
func Lookup(temp float64, curve Curve) int {
	for _, e := range curve {
		if e.Contains(temp) {
			return e.Speed
		}
	}
	return FailSafeSpeed
}
