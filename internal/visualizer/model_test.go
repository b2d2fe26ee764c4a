package visualizer

import (
	"testing"

	"github.com/meridian-cmm/armcast/internal/telemetry"
)

// recordingScene captures everything the model applies.
type recordingScene struct {
	joints      [telemetry.NumJoints]float64
	x, y, z     float64
	a, b, c     float64
	applyCounts int
}

type recordingJoint struct {
	scene *recordingScene
	index int
}

func (j recordingJoint) SetRotation(deg float64) {
	j.scene.joints[j.index] = deg
	j.scene.applyCounts++
}

func (s *recordingScene) Joint(i int) JointTransform {
	return recordingJoint{scene: s, index: i}
}

func (s *recordingScene) SetEffectorPosition(x, y, z float64) {
	s.x, s.y, s.z = x, y, z
}

func (s *recordingScene) SetEffectorOrientation(a, b, c float64) {
	s.a, s.b, s.c = a, b, c
}

func sampleWithSeq(seq uint64) *telemetry.PoseSample {
	return &telemetry.PoseSample{
		Seq: seq,
		X:   100, Y: 200, Z: 300,
		A: 10, B: 20, C: 30,
		Joints: [telemetry.NumJoints]float64{1, 2, 3, 4, 5, 6, 7},
	}
}

func TestModelAppliesSample(t *testing.T) {
	scene := &recordingScene{}
	model := NewModel(scene)

	if !model.Apply(sampleWithSeq(1)) {
		t.Fatal("Apply returned false for fresh sample")
	}

	if scene.joints != [telemetry.NumJoints]float64{1, 2, 3, 4, 5, 6, 7} {
		t.Errorf("joints = %v", scene.joints)
	}
	if scene.x != 100 || scene.y != 200 || scene.z != 300 {
		t.Errorf("position = (%v, %v, %v), want (100, 200, 300)", scene.x, scene.y, scene.z)
	}
	if scene.a != 10 || scene.b != 20 || scene.c != 30 {
		t.Errorf("orientation = (%v, %v, %v), want (10, 20, 30)", scene.a, scene.b, scene.c)
	}
	if model.Applied() != 1 {
		t.Errorf("Applied() = %d, want 1", model.Applied())
	}
}

func TestModelSkipsStaleSamples(t *testing.T) {
	scene := &recordingScene{}
	model := NewModel(scene)

	model.Apply(sampleWithSeq(5))

	old := sampleWithSeq(3)
	old.Joints[0] = 99
	if model.Apply(old) {
		t.Error("Apply should reject an older sequence number")
	}
	if model.Apply(sampleWithSeq(5)) {
		t.Error("Apply should reject a repeated sequence number")
	}
	if scene.joints[0] == 99 {
		t.Error("stale sample reached the scene")
	}
	if model.Stale() != 2 {
		t.Errorf("Stale() = %d, want 2", model.Stale())
	}

	if !model.Apply(sampleWithSeq(6)) {
		t.Error("Apply should accept the next sequence number")
	}
}

func TestModelAppliesCalibration(t *testing.T) {
	scene := &recordingScene{}
	model := NewModel(scene)

	if err := model.SetCalibration(0, JointCalibration{Sign: -1, OffsetDeg: 90}); err != nil {
		t.Fatalf("SetCalibration failed: %v", err)
	}

	sample := sampleWithSeq(1)
	sample.Joints[0] = 30
	model.Apply(sample)

	if scene.joints[0] != 60 {
		t.Errorf("calibrated joint 0 = %v, want 60 (-1*30 + 90)", scene.joints[0])
	}
	if scene.joints[1] != sample.Joints[1] {
		t.Errorf("uncalibrated joint 1 = %v, want %v", scene.joints[1], sample.Joints[1])
	}
}

func TestModelRejectsBadCalibrationIndex(t *testing.T) {
	model := NewModel(&recordingScene{})
	if err := model.SetCalibration(-1, JointCalibration{}); err == nil {
		t.Error("expected error for negative index")
	}
	if err := model.SetCalibration(telemetry.NumJoints, JointCalibration{}); err == nil {
		t.Error("expected error for out-of-range index")
	}
}

func TestJointCalibrationZeroSignDefaultsToOne(t *testing.T) {
	c := JointCalibration{OffsetDeg: 5}
	if got := c.Apply(10); got != 15 {
		t.Errorf("Apply(10) = %v, want 15", got)
	}
}

func TestModelIgnoresNil(t *testing.T) {
	model := NewModel(&recordingScene{})
	if model.Apply(nil) {
		t.Error("Apply(nil) should return false")
	}
}
