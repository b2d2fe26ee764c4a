package telemetry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/meridian-cmm/armcast/internal/monitoring"
	"github.com/meridian-cmm/armcast/internal/timeutil"
)

// logCapture collects watchdog warnings emitted through monitoring.Logf.
type logCapture struct {
	mu    sync.Mutex
	lines []string
}

func (c *logCapture) logf(format string, v ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, fmt.Sprintf(format, v...))
}

func (c *logCapture) containing(substr string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, l := range c.lines {
		if strings.Contains(l, substr) {
			n++
		}
	}
	return n
}

// advance steps the mock clock one second at a time, pausing briefly after
// each step so the watchdog goroutine can consume the tick.
func advance(clock *timeutil.MockClock, seconds int) {
	for i := 0; i < seconds; i++ {
		clock.Advance(time.Second)
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatchdogWarnsWhenNoFirstUpdate(t *testing.T) {
	capture := &logCapture{}
	monitoring.SetLogger(capture.logf)
	defer monitoring.SetLogger(nil)

	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	tracker := NewRateTracker(clock)
	w := NewWatchdog(tracker, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	advance(clock, 4)

	if capture.containing("no arm updates") == 0 {
		t.Error("expected a no-first-update warning after the grace period")
	}
}

func TestWatchdogRateLimitsWarnings(t *testing.T) {
	capture := &logCapture{}
	monitoring.SetLogger(capture.logf)
	defer monitoring.SetLogger(nil)

	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	tracker := NewRateTracker(clock)
	w := NewWatchdog(tracker, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	// 12 seconds of silence: grace period is 2s and warnings are limited to
	// one per 5s, so at most two warnings should appear.
	advance(clock, 12)

	if got := capture.containing("no arm updates"); got == 0 || got > 2 {
		t.Errorf("expected 1-2 rate-limited warnings, got %d", got)
	}
}

func TestWatchdogWarnsOnStall(t *testing.T) {
	capture := &logCapture{}
	monitoring.SetLogger(capture.logf)
	defer monitoring.SetLogger(nil)

	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	tracker := NewRateTracker(clock)
	w := NewWatchdog(tracker, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	// A healthy stream, then silence.
	tracker.Observe()
	advance(clock, 1)
	tracker.Observe()

	advance(clock, 5)

	if capture.containing("stalled") == 0 {
		t.Error("expected a stall warning after the stream went quiet")
	}
	if capture.containing("no arm updates") != 0 {
		t.Error("no-first-update warning should not fire once updates have arrived")
	}
}

func TestWatchdogQuietWhileHealthy(t *testing.T) {
	capture := &logCapture{}
	monitoring.SetLogger(capture.logf)
	defer monitoring.SetLogger(nil)

	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	tracker := NewRateTracker(clock)
	w := NewWatchdog(tracker, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	for i := 0; i < 10; i++ {
		tracker.Observe()
		advance(clock, 1)
	}

	if len(capture.lines) != 0 {
		t.Errorf("expected no warnings for a healthy stream, got %v", capture.lines)
	}
}
