package visualizer

import (
	"fmt"

	"github.com/meridian-cmm/armcast/internal/telemetry"
)

// JointTransform rotates one joint of the rendered arm.
type JointTransform interface {
	SetRotation(deg float64)
}

// Scene is the rendering target the model drives. Implementations range
// from a full 3D rig to the terminal status line.
type Scene interface {
	Joint(i int) JointTransform
	SetEffectorPosition(x, y, z float64)
	SetEffectorOrientation(a, b, c float64)
}

// JointCalibration adjusts one reported joint angle before it reaches the
// scene. Sign flips joints whose rig axis runs opposite the encoder;
// OffsetDeg shifts the rig's zero pose.
type JointCalibration struct {
	Sign      float64 `json:"sign"`
	OffsetDeg float64 `json:"offset_deg"`
}

// Apply returns the scene-space angle for a reported angle.
func (c JointCalibration) Apply(deg float64) float64 {
	sign := c.Sign
	if sign == 0 {
		sign = 1
	}
	return sign*deg + c.OffsetDeg
}

// Model applies pose samples to a Scene, dropping anything stale.
type Model struct {
	scene       Scene
	calibration [telemetry.NumJoints]JointCalibration

	lastSeq uint64
	applied uint64
	stale   uint64
}

// NewModel creates a Model over the given scene with identity calibration.
func NewModel(scene Scene) *Model {
	m := &Model{scene: scene}
	for i := range m.calibration {
		m.calibration[i] = JointCalibration{Sign: 1}
	}
	return m
}

// SetCalibration replaces the calibration for joint i (0-based).
func (m *Model) SetCalibration(i int, c JointCalibration) error {
	if i < 0 || i >= telemetry.NumJoints {
		return fmt.Errorf("joint index %d out of range", i)
	}
	m.calibration[i] = c
	return nil
}

// Apply drives the scene from one sample. Samples at or behind the last
// applied sequence number are skipped; the feed is most-recent-wins and an
// old sample must never move the arm backwards.
func (m *Model) Apply(sample *telemetry.PoseSample) bool {
	if sample == nil {
		return false
	}
	if sample.Seq != 0 && sample.Seq <= m.lastSeq {
		m.stale++
		return false
	}
	m.lastSeq = sample.Seq

	for i, deg := range sample.Joints {
		m.scene.Joint(i).SetRotation(m.calibration[i].Apply(deg))
	}
	m.scene.SetEffectorPosition(sample.X, sample.Y, sample.Z)
	m.scene.SetEffectorOrientation(sample.A, sample.B, sample.C)

	m.applied++
	return true
}

// Applied returns the number of samples applied to the scene.
func (m *Model) Applied() uint64 { return m.applied }

// Stale returns the number of samples skipped as stale.
func (m *Model) Stale() uint64 { return m.stale }
