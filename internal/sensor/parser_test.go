package sensor

import (
	"testing"
)

// Captured from an HR650X with one populated socket.
const singleSocketReport = `CPU1_Temp        | 34.000     | degrees C  | ok    | na        | na        | na        | 93.000    | 100.000   | 105.000
CPU2_Temp        | 0.000      | degrees C  | ok    | na        | na        | na        | 100.000   | 102.000   | 104.000
CPU1_VR_Temp     | 30.000     | degrees C  | ok    | na        | na        | na        | 112.000   | 123.000   | 133.000
CPU2_VR_Temp     | 15.000     | degrees C  | ok    | na        | na        | na        | 112.000   | 123.000   | 133.000
`

const fullReport = `Inlet_Temp       | 22.000     | degrees C  | ok    | na        | na        | na        | 40.000    | 42.000    | 45.000
CPU1_Temp        | 61.000     | degrees C  | ok    | na        | na        | na        | 93.000    | 100.000   | 105.000
CPU2_Temp        | 58.000     | degrees C  | ok    | na        | na        | na        | 100.000   | 102.000   | 104.000
FAN1_Speed       | 6000.000   | RPM        | ok    | na        | 500.000   | na        | na        | na        | na
CPU1_VR_Temp     | 40.000     | degrees C  | ok    | na        | na        | na        | 112.000   | 123.000   | 133.000
`

func TestParseReport_SingleSocket(t *testing.T) {
	r := ParseReport(singleSocketReport)

	if len(r.Samples) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(r.Samples))
	}
	if r.CPUCount != 1 {
		t.Errorf("expected CPUCount=1, got %d", r.CPUCount)
	}
	max, ok := r.Max()
	if !ok || max != 34.0 {
		t.Errorf("expected max 34.0, got %v (ok=%v)", max, ok)
	}
	if len(r.Errors) != 0 {
		t.Errorf("expected no parse errors, got %v", r.Errors)
	}
}

func TestParseReport_DualSocketIgnoresNonCPULines(t *testing.T) {
	r := ParseReport(fullReport)

	if len(r.Samples) != 3 {
		t.Fatalf("expected 3 CPU temperature samples, got %d", len(r.Samples))
	}
	for _, s := range r.Samples {
		if s.Label == "Inlet_Temp" || s.Label == "FAN1_Speed" {
			t.Errorf("unexpected sample %q", s.Label)
		}
	}
	if r.CPUCount != 2 {
		t.Errorf("expected CPUCount=2, got %d", r.CPUCount)
	}
	if max, _ := r.Max(); max != 61.0 {
		t.Errorf("expected max 61.0, got %v", max)
	}
}

func TestParseReport_CPU2ZeroNarrowsToOne(t *testing.T) {
	r := ParseReport("CPU2_Temp | 0.0 | degrees C")
	if r.CPUCount != 1 {
		t.Errorf("expected CPUCount=1, got %d", r.CPUCount)
	}

	r = ParseReport("CPU2_Temp | 41.5 | degrees C")
	if r.CPUCount != 2 {
		t.Errorf("expected CPUCount=2 for nonzero CPU2, got %d", r.CPUCount)
	}
}

func TestParseReport_CPU2VRZeroDoesNotNarrow(t *testing.T) {
	r := ParseReport("CPU2_VR_Temp | 0.000 | degrees C")
	if r.CPUCount != 2 {
		t.Errorf("expected CPUCount=2, got %d", r.CPUCount)
	}
}

func TestParseReport_NotAvailable(t *testing.T) {
	r := ParseReport("CPU1_Temp        | na         | degrees C  | na    | na        | na        | na        | 93.000    | 100.000   | 105.000")

	if len(r.Samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(r.Samples))
	}
	s := r.Samples[0]
	if s.Value != 0 {
		t.Errorf("expected value 0 for na, got %v", s.Value)
	}
	if s.Available {
		t.Error("expected Available=false for na")
	}
	if len(r.Errors) != 0 {
		t.Errorf("na must not be a parse error, got %v", r.Errors)
	}
}

func TestParseReport_NotAvailableCPU2KeepsTwoSockets(t *testing.T) {
	r := ParseReport("CPU2_Temp | na | degrees C")
	if r.CPUCount != 2 {
		t.Errorf("expected CPUCount=2 when CPU2 reports na, got %d", r.CPUCount)
	}
}

func TestParseReport_ZeroReadingCountsTowardMax(t *testing.T) {
	// A "system off" zero takes part in the max like any other value.
	r := ParseReport("CPU1_Temp | na | degrees C\nCPU2_Temp | 0.000 | degrees C")
	max, ok := r.Max()
	if !ok || max != 0 {
		t.Errorf("expected max 0 with ok, got %v (ok=%v)", max, ok)
	}
}

func TestParseReport_NoData(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"blank lines", "\n\n\n"},
		{"no cpu temps", "Inlet_Temp | 22.000 | degrees C\nFAN1 | 6000.000 | RPM"},
		{"no numbers", "CPU1_Temp | disabled | degrees C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ParseReport(tt.text)
			if _, ok := r.Max(); ok {
				t.Error("expected no max")
			}
			if r.CPUCount != 0 {
				t.Errorf("expected CPUCount=0, got %d", r.CPUCount)
			}
		})
	}
}

func TestParseReport_TooFewFields(t *testing.T) {
	r := ParseReport("CPU1_Temp 45.000 degrees C\nCPU2_Temp | 44.000 | degrees C")

	if len(r.Errors) != 1 {
		t.Fatalf("expected 1 parse error, got %d", len(r.Errors))
	}
	if r.Errors[0].Reason != reasonTooFewFields {
		t.Errorf("unexpected reason %q", r.Errors[0].Reason)
	}
	if len(r.Samples) != 1 || r.Samples[0].Value != 44.0 {
		t.Errorf("expected remaining line parsed, got %+v", r.Samples)
	}
}

func TestParseReport_Thresholds(t *testing.T) {
	r := ParseReport(singleSocketReport)
	s := r.Samples[0]

	if s.Label != "CPU1_Temp" {
		t.Fatalf("expected CPU1_Temp first, got %q", s.Label)
	}
	if s.Unit != "degrees C" {
		t.Errorf("unit: got %q", s.Unit)
	}
	if s.Status != "ok" {
		t.Errorf("status: got %q", s.Status)
	}
	if s.Thresholds == nil {
		t.Fatal("expected thresholds")
	}
	if s.Thresholds.LowerCritical != nil {
		t.Errorf("expected nil lower critical, got %v", *s.Thresholds.LowerCritical)
	}
	if s.Thresholds.UpperCritical == nil || *s.Thresholds.UpperCritical != 100.0 {
		t.Errorf("expected upper critical 100.0, got %v", s.Thresholds.UpperCritical)
	}
	if s.AboveCritical() {
		t.Error("34C must not be above critical")
	}
}

func TestParseReport_ShortLineHasNoThresholds(t *testing.T) {
	r := ParseReport("CPU1_Temp | 45.500 | degrees C")
	if r.Samples[0].Thresholds != nil {
		t.Error("expected no thresholds on a 3-column line")
	}
	if r.Samples[0].Value != 45.5 {
		t.Errorf("expected 45.5, got %v", r.Samples[0].Value)
	}
}

func TestParseReport_CRLF(t *testing.T) {
	r := ParseReport("CPU1_Temp | 45.000 | degrees C\r\nCPU2_Temp | 0.000 | degrees C\r\n")
	if len(r.Samples) != 2 || r.CPUCount != 1 {
		t.Errorf("expected 2 samples and CPUCount=1, got %d and %d", len(r.Samples), r.CPUCount)
	}
}

func TestSample_AboveCritical(t *testing.T) {
	uc := 95.0
	hot := Sample{Label: "CPU1_Temp", Value: 96, Available: true, Thresholds: &Thresholds{UpperCritical: &uc}}
	if !hot.AboveCritical() {
		t.Error("expected 96C above 95C critical")
	}

	off := Sample{Label: "CPU1_Temp", Value: 0, Thresholds: &Thresholds{UpperCritical: &uc}}
	if off.AboveCritical() {
		t.Error("unavailable sample must never be above critical")
	}
}
