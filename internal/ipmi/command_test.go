package ipmi

import "testing"

func TestRawCommand_String(t *testing.T) {
	tests := []struct {
		name string
		cmd  RawCommand
		want string
	}{
		{"all zones 50%", SetZoneSpeed(ZoneAll, 50), "raw 0x2e 0x30 0x00 0x00 0x32"},
		{"zone 1 20%", SetZoneSpeed(1, 20), "raw 0x2e 0x30 0x00 0x01 0x14"},
		{"zone 3 full", SetZoneSpeed(3, 100), "raw 0x2e 0x30 0x00 0x03 0x64"},
		{"zone 4 off", DisableZone(4), "raw 0x2e 0x30 0x00 0x04 0x02"},
		{"zone 6 off", DisableZone(6), "raw 0x2e 0x30 0x00 0x06 0x02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmd.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSetZoneSpeed_Clamps(t *testing.T) {
	if got := SetZoneSpeed(1, 150).Data[2]; got != 100 {
		t.Errorf("expected speed clamped to 100, got %d", got)
	}
	if got := SetZoneSpeed(1, -5).Data[2]; got != 0 {
		t.Errorf("expected speed clamped to 0, got %d", got)
	}
}

func TestRawCommand_Args(t *testing.T) {
	args := SetZoneSpeed(2, 80).Args()
	want := []string{"raw", "0x2e", "0x30", "0x00", "0x02", "0x50"}

	if len(args) != len(want) {
		t.Fatalf("expected %d args, got %d (%v)", len(want), len(args), args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("arg %d: got %q, want %q", i, args[i], want[i])
		}
	}
}
