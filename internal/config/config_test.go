package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meridian-cmm/armcast/internal/telemetry"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, "armcast.json", `{
		"publish_endpoint": "tcp://*:7777",
		"baud_rate": 230400,
		"gap_warn": "250ms"
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := cfg.GetPublishEndpoint(); got != "tcp://*:7777" {
		t.Errorf("GetPublishEndpoint() = %q", got)
	}
	if got := cfg.LinkOptions().BaudRate; got != 230400 {
		t.Errorf("BaudRate = %d", got)
	}
	if got := cfg.GetGapWarn(); got != 250*time.Millisecond {
		t.Errorf("GetGapWarn() = %v", got)
	}

	// unset fields fall back to defaults
	if got := cfg.GetPublishTopic(); got != "arm.pose" {
		t.Errorf("GetPublishTopic() = %q, want arm.pose", got)
	}
	if got := cfg.GetDBPath(); got != "armcast.db" {
		t.Errorf("GetDBPath() = %q", got)
	}
	if got := cfg.GetListenAddr(); got != ":8080" {
		t.Errorf("GetListenAddr() = %q", got)
	}
	if got := cfg.GetStallThreshold(); got != telemetry.DefaultStallThreshold {
		t.Errorf("GetStallThreshold() = %v", got)
	}
	if got := cfg.GetMirrorAddress(); got != "" {
		t.Errorf("GetMirrorAddress() = %q, want empty (disabled)", got)
	}
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := Empty()

	if got := cfg.GetLinkDevice(); got != "/dev/ttyUSB0" {
		t.Errorf("GetLinkDevice() = %q", got)
	}
	if got := cfg.GetFirstUpdateGrace(); got != telemetry.DefaultFirstUpdateGrace {
		t.Errorf("GetFirstUpdateGrace() = %v", got)
	}
	if got := cfg.GetWarnInterval(); got != telemetry.DefaultWarnInterval {
		t.Errorf("GetWarnInterval() = %v", got)
	}
	if got := cfg.GetMirrorLogInterval(); got != time.Minute {
		t.Errorf("GetMirrorLogInterval() = %v", got)
	}

	opts, err := cfg.LinkOptions().Normalize()
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if opts.BaudRate != 115200 {
		t.Errorf("default BaudRate = %d, want 115200", opts.BaudRate)
	}
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	path := writeConfig(t, "armcast.yaml", `{}`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for non-json extension")
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := writeConfig(t, "bad.json", `{"publish_endpoint": `)
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "dur.json", `{"stall_threshold": "three seconds"}`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for unparseable duration")
	}
}

func TestValidateRejectsBadFraming(t *testing.T) {
	path := writeConfig(t, "framing.json", `{"data_bits": 4}`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid data bits")
	}
}

func TestValidateRejectsTooManyCalibrations(t *testing.T) {
	path := writeConfig(t, "cal.json", `{
		"joint_calibration": [
			{"sign": 1}, {"sign": 1}, {"sign": 1}, {"sign": 1},
			{"sign": 1}, {"sign": 1}, {"sign": 1}, {"sign": 1}
		]
	}`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for more calibrations than joints")
	}
}

func TestJointCalibrationRoundTrip(t *testing.T) {
	path := writeConfig(t, "cal.json", `{
		"joint_calibration": [
			{"sign": -1, "offset_deg": 90},
			{"sign": 1}
		]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.JointCalibration) != 2 {
		t.Fatalf("got %d calibrations, want 2", len(cfg.JointCalibration))
	}
	if got := cfg.JointCalibration[0].Apply(30); got != 60 {
		t.Errorf("calibration[0].Apply(30) = %v, want 60", got)
	}
}
