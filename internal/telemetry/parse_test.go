package telemetry

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseLineCSV(t *testing.T) {
	line := "1750719826.031,120.5,-33.25,410.0,12.0,-4.5,88.25,10.1,20.2,30.3,40.4,50.5,60.6,70.7,5,3"

	got, err := ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine failed: %v", err)
	}

	want := &PoseSample{
		Timestamp: 1750719826.031,
		X:         120.5,
		Y:         -33.25,
		Z:         410.0,
		A:         12.0,
		B:         -4.5,
		C:         88.25,
		Joints:    [NumJoints]float64{10.1, 20.2, 30.3, 40.4, 50.5, 60.6, 70.7},
		Buttons:   5,
		Flags:     3,
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sample mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLineJSON(t *testing.T) {
	line := `{"ts": 12.5, "x": 1, "y": 2, "z": 3, "a": 4, "b": 5, "c": 6, "joints": [1,2,3,4,5,6,7], "buttons": 2, "flags": 1}`

	got, err := ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine failed: %v", err)
	}

	if got.Timestamp != 12.5 {
		t.Errorf("Timestamp = %v, want 12.5", got.Timestamp)
	}
	if got.Joints[6] != 7 {
		t.Errorf("Joints[6] = %v, want 7", got.Joints[6])
	}
	if !got.Buttons.Pressed(1) {
		t.Error("expected button 1 pressed for mask 2")
	}
	if got.Flags&FlagReferenced == 0 {
		t.Error("expected FlagReferenced set for flags 1")
	}
}

func TestParseLineErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"empty", "", "empty line"},
		{"whitespace", "   \t ", "empty line"},
		{"short csv", "1,2,3", "expected 16"},
		{"bad float", "x,1,2,3,4,5,6,1,2,3,4,5,6,7,0,0", "failed to parse ts"},
		{"bad joint", "1,1,2,3,4,5,6,1,2,bad,4,5,6,7,0,0", "failed to parse joint 3"},
		{"bad buttons", "1,1,2,3,4,5,6,1,2,3,4,5,6,7,-1,0", "failed to parse buttons"},
		{"bad json", `{"ts": nope}`, "failed to unmarshal"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseLine(tc.line)
			if err == nil {
				t.Fatalf("expected error for %q", tc.line)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not contain %q", err.Error(), tc.want)
			}
		})
	}
}

func TestPoseSampleJSONRoundTrip(t *testing.T) {
	s := &PoseSample{
		Seq:           42,
		Timestamp:     100.25,
		ReceivedNanos: 1750000000000000000,
		ArmID:         "quantum-s-07",
		X:             1.5, Y: 2.5, Z: 3.5,
		A: -10, B: 20, C: -30,
		Joints:  [NumJoints]float64{1, 2, 3, 4, 5, 6, 7},
		Buttons: 3,
		Flags:   FlagReferenced | FlagProbeSeated,
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	// The field names are a wire contract with non-Go subscribers.
	for _, field := range []string{`"seq":42`, `"ts":100.25`, `"recv_ns":`, `"arm_id":"quantum-s-07"`, `"joints":[1,2,3,4,5,6,7]`, `"buttons":3`, `"flags":3`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("encoded sample missing %s: %s", field, data)
		}
	}

	var back PoseSample
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if diff := cmp.Diff(s, &back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestButtonMaskPressed(t *testing.T) {
	m := ButtonMask(0b101)
	if !m.Pressed(0) || m.Pressed(1) || !m.Pressed(2) {
		t.Errorf("unexpected pressed bits for mask %b", m)
	}
	if m.Pressed(-1) || m.Pressed(32) {
		t.Error("out-of-range button index should never report pressed")
	}
}
