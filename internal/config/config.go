// Package config loads the relay's JSON configuration file. Fields are
// pointers so a partial file only overrides what it names; the Get* methods
// supply defaults for everything else.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/meridian-cmm/armcast/internal/armlink"
	"github.com/meridian-cmm/armcast/internal/relay"
	"github.com/meridian-cmm/armcast/internal/telemetry"
	"github.com/meridian-cmm/armcast/internal/visualizer"
)

// Config represents the root configuration for the relay and viewer.
type Config struct {
	// Driver link params
	LinkDevice *string `json:"link_device,omitempty"`
	BaudRate   *int    `json:"baud_rate,omitempty"`
	DataBits   *int    `json:"data_bits,omitempty"`
	StopBits   *int    `json:"stop_bits,omitempty"`
	Parity     *string `json:"parity,omitempty"`

	// Publish params
	PublishEndpoint *string `json:"publish_endpoint,omitempty"`
	PublishTopic    *string `json:"publish_topic,omitempty"`

	// UDP mirror params
	MirrorAddress     *string `json:"mirror_address,omitempty"`
	MirrorLogInterval *string `json:"mirror_log_interval,omitempty"` // duration string like "1m"

	// Storage and HTTP params
	DBPath     *string `json:"db_path,omitempty"`
	ListenAddr *string `json:"listen_addr,omitempty"`

	// Watchdog params
	FirstUpdateGrace *string `json:"first_update_grace,omitempty"` // duration string like "2s"
	StallThreshold   *string `json:"stall_threshold,omitempty"`
	GapWarn          *string `json:"gap_warn,omitempty"`
	WarnInterval     *string `json:"warn_interval,omitempty"`

	// Viewer params
	JointCalibration []visualizer.JointCalibration `json:"joint_calibration,omitempty"`
}

// Empty returns a Config with all fields set to nil.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The file is validated to ensure it
// has a .json extension and is under the max file size. Fields omitted from
// the JSON file retain their default values, so partial configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if _, err := c.LinkOptions().Normalize(); err != nil {
		return err
	}

	for name, value := range map[string]*string{
		"mirror_log_interval": c.MirrorLogInterval,
		"first_update_grace":  c.FirstUpdateGrace,
		"stall_threshold":     c.StallThreshold,
		"gap_warn":            c.GapWarn,
		"warn_interval":       c.WarnInterval,
	} {
		if value != nil && *value != "" {
			if _, err := time.ParseDuration(*value); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *value, err)
			}
		}
	}

	if len(c.JointCalibration) > telemetry.NumJoints {
		return fmt.Errorf("joint_calibration has %d entries, arm has %d joints",
			len(c.JointCalibration), telemetry.NumJoints)
	}

	return nil
}

// LinkOptions assembles the serial framing options for the driver link.
func (c *Config) LinkOptions() armlink.LinkOptions {
	var opts armlink.LinkOptions
	if c.BaudRate != nil {
		opts.BaudRate = *c.BaudRate
	}
	if c.DataBits != nil {
		opts.DataBits = *c.DataBits
	}
	if c.StopBits != nil {
		opts.StopBits = *c.StopBits
	}
	if c.Parity != nil {
		opts.Parity = *c.Parity
	}
	return opts
}

func (c *Config) durationOr(value *string, fallback time.Duration) time.Duration {
	if value == nil || *value == "" {
		return fallback
	}
	d, err := time.ParseDuration(*value)
	if err != nil {
		return fallback
	}
	return d
}

// GetLinkDevice returns the link_device value or the default.
func (c *Config) GetLinkDevice() string {
	if c.LinkDevice == nil {
		return "/dev/ttyUSB0"
	}
	return *c.LinkDevice
}

// GetPublishEndpoint returns the publish_endpoint value or the default.
func (c *Config) GetPublishEndpoint() string {
	if c.PublishEndpoint == nil {
		return "tcp://*:5556"
	}
	return *c.PublishEndpoint
}

// GetPublishTopic returns the publish_topic value or the default.
func (c *Config) GetPublishTopic() string {
	if c.PublishTopic == nil {
		return relay.DefaultTopic
	}
	return *c.PublishTopic
}

// GetMirrorAddress returns the mirror_address value; empty disables the
// UDP mirror.
func (c *Config) GetMirrorAddress() string {
	if c.MirrorAddress == nil {
		return ""
	}
	return *c.MirrorAddress
}

// GetMirrorLogInterval parses and returns the mirror error log interval.
func (c *Config) GetMirrorLogInterval() time.Duration {
	return c.durationOr(c.MirrorLogInterval, time.Minute)
}

// GetDBPath returns the db_path value or the default.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil {
		return "armcast.db"
	}
	return *c.DBPath
}

// GetListenAddr returns the listen_addr value or the default.
func (c *Config) GetListenAddr() string {
	if c.ListenAddr == nil {
		return ":8080"
	}
	return *c.ListenAddr
}

// GetFirstUpdateGrace returns the first-update watchdog threshold.
func (c *Config) GetFirstUpdateGrace() time.Duration {
	return c.durationOr(c.FirstUpdateGrace, telemetry.DefaultFirstUpdateGrace)
}

// GetStallThreshold returns the stall watchdog threshold.
func (c *Config) GetStallThreshold() time.Duration {
	return c.durationOr(c.StallThreshold, telemetry.DefaultStallThreshold)
}

// GetGapWarn returns the single-gap warning threshold.
func (c *Config) GetGapWarn() time.Duration {
	return c.durationOr(c.GapWarn, telemetry.DefaultGapWarn)
}

// GetWarnInterval returns the watchdog warning rate limit.
func (c *Config) GetWarnInterval() time.Duration {
	return c.durationOr(c.WarnInterval, telemetry.DefaultWarnInterval)
}
