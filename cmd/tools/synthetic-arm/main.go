// Command synthetic-arm publishes a synthetic moving arm on the relay's
// PUB socket so front-ends can be developed without hardware. Joints sweep
// sinusoidally at staggered frequencies; the effector traces a circle.
package main

import (
	"context"
	"flag"
	"log"
	"math"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridian-cmm/armcast/internal/relay"
	"github.com/meridian-cmm/armcast/internal/telemetry"
)

var (
	publish   = flag.String("publish", "tcp://*:5556", "PUB endpoint to bind")
	topic     = flag.String("topic", relay.DefaultTopic, "Topic to publish on")
	rate      = flag.Float64("rate", 50, "Update rate in Hz")
	amplitude = flag.Float64("amplitude", 60, "Joint sweep amplitude in degrees")
	radius    = flag.Float64("radius", 400, "Effector circle radius in mm")
	armID     = flag.String("arm-id", "synthetic", "Arm identifier stamped on each sample")
	pressEach = flag.Duration("press-each", 5*time.Second, "Interval between simulated button presses (0 disables)")
)

func main() {
	flag.Parse()

	if *rate <= 0 {
		log.Fatal("rate must be positive")
	}

	publisher, err := relay.NewPublisher(*publish, *topic, nil)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}
	defer publisher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := time.Duration(float64(time.Second) / *rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	log.Printf("publishing synthetic arm at %.1f Hz on %s", *rate, *publish)

	for {
		select {
		case <-ctx.Done():
			stats := publisher.Stats()
			log.Printf("published %d samples (%d dropped)", stats.Published, stats.Dropped)
			return
		case now := <-ticker.C:
			t := now.Sub(start).Seconds()
			publisherSample := synthesize(t, now, *amplitude, *radius, *armID, *pressEach)
			if _, err := publisher.Publish(publisherSample); err != nil {
				log.Printf("publish failed: %v", err)
			}
		}
	}
}

// synthesize builds one pose at elapsed time t. Each joint sweeps at a
// slightly different frequency so the rig visibly articulates instead of
// waving in unison.
func synthesize(t float64, now time.Time, amplitude, radius float64, armID string, pressEach time.Duration) *telemetry.PoseSample {
	sample := &telemetry.PoseSample{
		Timestamp: float64(now.UnixNano()) / 1e9,
		ArmID:     armID,
		Flags:     telemetry.FlagReferenced | telemetry.FlagProbeSeated,
	}

	for i := range sample.Joints {
		freq := 0.05 + 0.03*float64(i)
		phase := float64(i) * math.Pi / 7
		sample.Joints[i] = amplitude * math.Sin(2*math.Pi*freq*t+phase)
	}

	angle := 2 * math.Pi * 0.1 * t
	sample.X = radius * math.Cos(angle)
	sample.Y = radius * math.Sin(angle)
	sample.Z = 300 + 100*math.Sin(2*math.Pi*0.07*t)
	sample.A = math.Mod(angle*180/math.Pi, 360)
	sample.B = 30 * math.Sin(2*math.Pi*0.04*t)
	sample.C = 30 * math.Cos(2*math.Pi*0.04*t)

	// brief button press on a fixed cadence
	if pressEach > 0 {
		phase := math.Mod(t, pressEach.Seconds())
		if phase < 0.2 {
			sample.Buttons = 1
		}
	}

	return sample
}
