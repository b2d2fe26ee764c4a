package telemetry

import (
	"context"
	"time"

	"github.com/meridian-cmm/armcast/internal/monitoring"
	"github.com/meridian-cmm/armcast/internal/timeutil"
)

// Watchdog thresholds. The update feed is event driven, so a healthy arm
// produces a steady stream the moment updates are enabled; silence is the
// main failure signal available to the relay.
const (
	// DefaultFirstUpdateGrace is how long to wait for the first update after
	// enabling the stream before warning.
	DefaultFirstUpdateGrace = 2 * time.Second

	// DefaultStallThreshold is how long the stream may go quiet after at
	// least one update before warning.
	DefaultStallThreshold = 3 * time.Second

	// DefaultGapWarn is the single-interval gap above which the relay logs
	// a warning for one late update.
	DefaultGapWarn = 500 * time.Millisecond

	// DefaultWarnInterval rate-limits repeated watchdog warnings.
	DefaultWarnInterval = 5 * time.Second
)

// Watchdog monitors a RateTracker and warns when the update stream never
// starts or stalls. It never stops the relay; a stalled arm often resumes
// when moved.
type Watchdog struct {
	tracker *RateTracker
	clock   timeutil.Clock

	FirstUpdateGrace time.Duration
	StallThreshold   time.Duration
	WarnInterval     time.Duration
}

// NewWatchdog creates a Watchdog over the given tracker. A nil clock falls
// back to the real clock.
func NewWatchdog(tracker *RateTracker, clock timeutil.Clock) *Watchdog {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Watchdog{
		tracker:          tracker,
		clock:            clock,
		FirstUpdateGrace: DefaultFirstUpdateGrace,
		StallThreshold:   DefaultStallThreshold,
		WarnInterval:     DefaultWarnInterval,
	}
}

// Run checks the stream once a second until the context is cancelled.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := w.clock.NewTicker(time.Second)
	defer ticker.Stop()

	start := w.clock.Now()
	var lastCount uint64
	var lastWarn time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			now := w.clock.Now()

			count := w.tracker.Count()
			if count == 0 {
				elapsed := now.Sub(start)
				if elapsed > w.FirstUpdateGrace && now.Sub(lastWarn) > w.WarnInterval {
					monitoring.Logf("no arm updates received %.1fs after enabling the stream; check that the device is powered and streaming", elapsed.Seconds())
					lastWarn = now
				}
				continue
			}

			if count == lastCount {
				last := w.tracker.LastReceive()
				if !last.IsZero() && now.Sub(last) > w.StallThreshold && now.Sub(lastWarn) > w.WarnInterval {
					monitoring.Logf("arm updates stalled for %.1fs; move the arm or check device state", now.Sub(last).Seconds())
					lastWarn = now
				}
			} else {
				lastCount = count
			}
		}
	}
}
