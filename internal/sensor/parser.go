// Package sensor reads CPU temperatures from an "ipmitool sensor" report and
// infers how many CPU sockets are populated.
package sensor

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	cpuMarker  = "CPU"
	tempMarker = "Temp"

	// cpu2Label marks the second socket's die sensor. A reading of exactly
	// zero on it means the socket is empty.
	cpu2Label = "CPU2_Temp"

	notAvailable = "na"

	reasonTooFewFields = "fewer than 2 fields"
	reasonNoNumber     = "no numeric reading"

	// fullColumns is the column count of a complete "ipmitool sensor" row:
	// name | value | unit | status | lnr | lc | lnc | unc | uc | unr
	fullColumns = 10
)

var numberRe = regexp.MustCompile(`\d+\.\d+`)

// ErrNoData is returned when a report holds no temperature readings at all.
// It means "nothing to act on", not "the system is cold".
var ErrNoData = errors.New("no temperature data found")

// ParseError describes a report line that could not be used.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unexpected sensor line format (%s): %q", e.Reason, e.Line)
}

// Thresholds are the limits ipmitool prints after the status column.
// A nil field was reported as "na".
type Thresholds struct {
	LowerNonRecoverable *float64 `json:"lnr,omitempty"`
	LowerCritical       *float64 `json:"lc,omitempty"`
	LowerNonCritical    *float64 `json:"lnc,omitempty"`
	UpperNonCritical    *float64 `json:"unc,omitempty"`
	UpperCritical       *float64 `json:"uc,omitempty"`
	UpperNonRecoverable *float64 `json:"unr,omitempty"`
}

// Sample is one CPU temperature reading.
type Sample struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	// Available is false when the sensor printed "na"; Value is then 0.
	Available  bool        `json:"available"`
	Unit       string      `json:"unit,omitempty"`
	Status     string      `json:"status,omitempty"`
	Thresholds *Thresholds `json:"thresholds,omitempty"`
}

// AboveCritical reports whether the reading exceeds its upper critical limit.
func (s Sample) AboveCritical() bool {
	if !s.Available || s.Thresholds == nil || s.Thresholds.UpperCritical == nil {
		return false
	}
	return s.Value >= *s.Thresholds.UpperCritical
}

// Report is the parsed form of a sensor report.
type Report struct {
	Samples []Sample
	// CPUCount is 2 unless CPU2_Temp read exactly zero, and 0 when there are no samples.
	CPUCount int
	Errors   []*ParseError
}

// Max returns the hottest reading. ok is false when there are no samples.
func (r *Report) Max() (hottest float64, ok bool) {
	if len(r.Samples) == 0 {
		return 0, false
	}
	for _, s := range r.Samples {
		if s.Value > hottest {
			hottest = s.Value
		}
	}
	return hottest, true
}

// ParseReport parses the text printed by "ipmitool sensor". Only lines naming
// both a CPU and a temperature are considered; malformed lines are recorded in
// Errors and skipped.
func ParseReport(text string) *Report {
	report := &Report{CPUCount: 2}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if !strings.Contains(line, cpuMarker) || !strings.Contains(line, tempMarker) {
			continue
		}

		fields := strings.Split(line, "|")
		if len(fields) < 2 {
			report.Errors = append(report.Errors, &ParseError{Line: line, Reason: reasonTooFewFields})
			continue
		}

		label := strings.TrimSpace(fields[0])
		if strings.TrimSpace(fields[1]) == notAvailable {
			report.Samples = append(report.Samples, Sample{Label: label, Value: 0})
			continue
		}

		match := numberRe.FindString(line)
		if match == "" {
			report.Errors = append(report.Errors, &ParseError{Line: line, Reason: reasonNoNumber})
			continue
		}
		value, err := strconv.ParseFloat(match, 64)
		if err != nil {
			report.Errors = append(report.Errors, &ParseError{Line: line, Reason: err.Error()})
			continue
		}

		sample := Sample{Label: label, Value: value, Available: true}
		if len(fields) >= 4 {
			sample.Unit = optionalString(fields[2])
			sample.Status = optionalString(fields[3])
		}
		if len(fields) >= fullColumns {
			sample.Thresholds = parseThresholds(fields[4:fullColumns])
		}
		report.Samples = append(report.Samples, sample)

		if strings.Contains(line, cpu2Label) && value == 0 {
			report.CPUCount = 1
		}
	}

	if len(report.Samples) == 0 {
		report.CPUCount = 0
	}
	return report
}

func parseThresholds(cols []string) *Thresholds {
	return &Thresholds{
		LowerNonRecoverable: optionalFloat(cols[0]),
		LowerCritical:       optionalFloat(cols[1]),
		LowerNonCritical:    optionalFloat(cols[2]),
		UpperNonCritical:    optionalFloat(cols[3]),
		UpperCritical:       optionalFloat(cols[4]),
		UpperNonRecoverable: optionalFloat(cols[5]),
	}
}

func optionalFloat(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}

func optionalString(s string) string {
	s = strings.TrimSpace(s)
	if s == notAvailable {
		return ""
	}
	return s
}
