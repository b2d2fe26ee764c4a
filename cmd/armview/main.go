// Command armview subscribes to an armcast relay and renders the live pose
// as a terminal status line. It stands in for the 3D front-end when
// debugging the feed over SSH.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridian-cmm/armcast/internal/config"
	"github.com/meridian-cmm/armcast/internal/monitoring"
	"github.com/meridian-cmm/armcast/internal/relay"
	"github.com/meridian-cmm/armcast/internal/telemetry"
	"github.com/meridian-cmm/armcast/internal/visualizer"
)

var (
	connect    = flag.String("connect", "tcp://localhost:5556", "Relay PUB endpoint to subscribe to")
	topic      = flag.String("topic", relay.DefaultTopic, "Topic to subscribe to")
	configPath = flag.String("config", "", "Path to JSON config file (joint calibration)")
	fps        = flag.Int("fps", 30, "Render rate in frames per second")
	width      = flag.Int("width", 160, "Terminal width for the status line")
)

func main() {
	flag.Parse()

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	sub, err := visualizer.NewSubscriber(*connect, *topic)
	if err != nil {
		log.Fatalf("failed to connect to relay: %v", err)
	}
	defer sub.Close()

	scene := visualizer.NewStatusScene(os.Stdout, *width)
	model := visualizer.NewModel(scene)
	for i, cal := range cfg.JointCalibration {
		if err := model.SetCalibration(i, cal); err != nil {
			log.Fatalf("invalid joint calibration: %v", err)
		}
	}

	// The status line owns the terminal row, so route log output through a
	// clear/restore cycle to keep warnings readable.
	monitoring.SetLogger(func(format string, v ...any) {
		scene.Clear()
		log.Printf(format, v...)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The render ticker only sees the newest sample of each drain, so the
	// displayed rate comes from the stamps on the samples, not poll timing.
	var tracker telemetry.WireRateTracker

	interval := time.Second / time.Duration(*fps)
	if interval <= 0 {
		interval = time.Second / 30
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastButtons telemetry.ButtonMask
	for {
		select {
		case <-ctx.Done():
			scene.Clear()
			log.Printf("received %d samples (%d superseded), shutting down",
				sub.Received(), sub.Discarded())
			return
		case <-ticker.C:
			sample, err := sub.Poll()
			if err != nil {
				monitoring.Logf("poll error: %v", err)
				continue
			}
			if sample == nil {
				continue
			}
			tracker.Observe(sample)
			if model.Apply(sample) {
				lastButtons = sample.Buttons
				scene.Render(sample.Seq, tracker.AvgHz(), lastButtons)
			}
		}
	}
}
