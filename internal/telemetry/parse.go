package telemetry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// csvFieldCount is the number of comma-separated fields in a pose line:
// ts, x, y, z, a, b, c, seven joint angles, buttons, flags.
const csvFieldCount = 9 + NumJoints

// ParseLine parses one line of driver output into a PoseSample.
//
// The driver emits pose updates in one of two shapes depending on the
// configured output mode: a JSON object using the wire field names, or a
// bare CSV record `ts,x,y,z,a,b,c,j1..j7,buttons,flags`. Sequence number
// and receive timestamp are left zero; the relay stamps them at publish
// time.
func ParseLine(line string) (*PoseSample, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("empty line")
	}

	if strings.HasPrefix(line, "{") {
		var s PoseSample
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pose JSON: %w", err)
		}
		return &s, nil
	}

	segments := strings.Split(line, ",")
	if len(segments) != csvFieldCount {
		return nil, fmt.Errorf("invalid pose line: got %d fields, expected %d", len(segments), csvFieldCount)
	}

	fields := make([]float64, 7)
	names := []string{"ts", "x", "y", "z", "a", "b", "c"}
	for i, name := range names {
		v, err := strconv.ParseFloat(strings.TrimSpace(segments[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		fields[i] = v
	}

	s := &PoseSample{
		Timestamp: fields[0],
		X:         fields[1],
		Y:         fields[2],
		Z:         fields[3],
		A:         fields[4],
		B:         fields[5],
		C:         fields[6],
	}

	for j := 0; j < NumJoints; j++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(segments[7+j]), 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse joint %d: %w", j+1, err)
		}
		s.Joints[j] = v
	}

	buttons, err := strconv.ParseUint(strings.TrimSpace(segments[7+NumJoints]), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to parse buttons: %w", err)
	}
	s.Buttons = ButtonMask(buttons)

	flags, err := strconv.ParseUint(strings.TrimSpace(segments[8+NumJoints]), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	s.Flags = StatusFlags(flags)

	return s, nil
}
