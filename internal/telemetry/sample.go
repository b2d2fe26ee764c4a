// Package telemetry defines the pose sample record relayed from the arm
// driver to subscribers, along with stream-health tracking for the update
// feed.
package telemetry

import (
	"fmt"
	"time"
)

// NumJoints is the number of articulated joints reported by the arm.
const NumJoints = 7

// ButtonMask is the bitmask of probe button states reported with each update.
type ButtonMask uint32

// Pressed reports whether button i (0-based) is held in this mask.
func (m ButtonMask) Pressed(i int) bool {
	if i < 0 || i > 31 {
		return false
	}
	return m&(1<<uint(i)) != 0
}

// StatusFlags carries device status bits reported with each update.
type StatusFlags uint32

const (
	// FlagReferenced is set once all joint encoders have been referenced.
	FlagReferenced StatusFlags = 1 << iota
	// FlagProbeSeated is set while a probe is attached and seated.
	FlagProbeSeated
	// FlagThermalStable is set when the arm reports thermal stability.
	FlagThermalStable
	// FlagFault is set when the driver reports a device fault.
	FlagFault
)

// PoseSample is a single arm telemetry update. The JSON field names are the
// wire contract: the relay publishes exactly this encoding and the
// visualizer decodes it back.
type PoseSample struct {
	// Seq is stamped by the relay at publish time, strictly increasing per
	// relay process. Zero until published.
	Seq uint64 `json:"seq"`

	// Timestamp is the driver-reported update time in seconds.
	Timestamp float64 `json:"ts"`

	// ReceivedNanos is the relay receive time (UnixNano), stamped alongside
	// the sequence number.
	ReceivedNanos int64 `json:"recv_ns"`

	// ArmID identifies the source device (model/serial), when known.
	ArmID string `json:"arm_id,omitempty"`

	// Effector position in millimetres.
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`

	// Effector orientation in degrees.
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`

	// Joints holds the seven joint angles in degrees, base to wrist.
	Joints [NumJoints]float64 `json:"joints"`

	Buttons ButtonMask  `json:"buttons"`
	Flags   StatusFlags `json:"flags"`
}

// Received returns the receive timestamp as a time.Time.
func (s *PoseSample) Received() time.Time {
	return time.Unix(0, s.ReceivedNanos)
}

func (s *PoseSample) String() string {
	return fmt.Sprintf(
		"#%06d ts=%.3f xyz=(%8.3f, %8.3f, %8.3f) abc=(%8.3f, %8.3f, %8.3f) joints=(%6.2f, %6.2f, %6.2f, %6.2f, %6.2f, %6.2f, %6.2f) buttons=%d flags=%d",
		s.Seq, s.Timestamp, s.X, s.Y, s.Z, s.A, s.B, s.C,
		s.Joints[0], s.Joints[1], s.Joints[2], s.Joints[3], s.Joints[4], s.Joints[5], s.Joints[6],
		s.Buttons, s.Flags,
	)
}

// ArmIdentity describes the connected device as reported by the driver.
type ArmIdentity struct {
	ModelName       string `json:"model_name"`
	SerialNumber    string `json:"serial_number"`
	FirmwareVersion string `json:"firmware_version"`
	DriverVersion   string `json:"driver_version"`
}

func (a ArmIdentity) String() string {
	if a.ModelName == "" && a.SerialNumber == "" {
		return "unknown arm"
	}
	return fmt.Sprintf("%s (serial %s, firmware %s, driver %s)",
		a.ModelName, a.SerialNumber, a.FirmwareVersion, a.DriverVersion)
}
