package telemetry

import (
	"sync"
	"time"

	"github.com/meridian-cmm/armcast/internal/timeutil"
)

// RateTracker tracks the arrival rate of arm updates. The average period is
// an exponentially weighted moving average (nine parts old, one part new) so
// the reported rate settles quickly after startup but still smooths jitter.
type RateTracker struct {
	mu          sync.Mutex
	clock       timeutil.Clock
	count       uint64
	startTime   time.Time
	lastReceive time.Time
	avgPeriod   time.Duration
}

// NewRateTracker creates a RateTracker using the given clock. A nil clock
// falls back to the real clock.
func NewRateTracker(clock timeutil.Clock) *RateTracker {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RateTracker{
		clock:     clock,
		startTime: clock.Now(),
	}
}

// Observe records the arrival of one update and returns the interval since
// the previous one. first is true for the very first update, in which case
// dt is zero.
func (r *RateTracker) Observe() (dt time.Duration, first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	r.count++

	if r.lastReceive.IsZero() {
		r.lastReceive = now
		return 0, true
	}

	dt = now.Sub(r.lastReceive)
	r.lastReceive = now

	if r.avgPeriod == 0 {
		r.avgPeriod = dt
	} else {
		r.avgPeriod = time.Duration(0.9*float64(r.avgPeriod) + 0.1*float64(dt))
	}
	return dt, false
}

// Count returns the number of updates observed.
func (r *RateTracker) Count() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// AvgHz returns the smoothed update rate, or zero before two updates have
// been observed.
func (r *RateTracker) AvgHz() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.avgPeriod <= 0 {
		return 0
	}
	return float64(time.Second) / float64(r.avgPeriod)
}

// LastReceive returns the arrival time of the most recent update, or the
// zero time if none has arrived.
func (r *RateTracker) LastReceive() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastReceive
}

// Uptime returns the time elapsed since the tracker was created.
func (r *RateTracker) Uptime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clock.Since(r.startTime)
}

// WireRateTracker estimates the sender's update rate from the seq and
// recv_ns stamps carried in the samples themselves. A polling consumer that
// drains a backlog and decodes only the newest update still sees the true
// rate: the interval between two decoded samples is divided by the number of
// sequence steps between them.
type WireRateTracker struct {
	mu        sync.Mutex
	count     uint64
	lastSeq   uint64
	lastNanos int64
	avgPeriod float64 // seconds
}

// Observe records one decoded sample. Samples that are out of order or
// missing stamps only reset the reference point.
func (w *WireRateTracker) Observe(s *PoseSample) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.count++
	if w.count == 1 || s.Seq <= w.lastSeq || s.ReceivedNanos <= w.lastNanos {
		w.lastSeq = s.Seq
		w.lastNanos = s.ReceivedNanos
		return
	}

	steps := s.Seq - w.lastSeq
	period := float64(s.ReceivedNanos-w.lastNanos) / 1e9 / float64(steps)
	if w.avgPeriod == 0 {
		w.avgPeriod = period
	} else {
		w.avgPeriod = 0.9*w.avgPeriod + 0.1*period
	}
	w.lastSeq = s.Seq
	w.lastNanos = s.ReceivedNanos
}

// Count returns the number of samples observed.
func (w *WireRateTracker) Count() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// AvgHz returns the smoothed sender-side update rate, or zero before two
// stamped samples have been observed.
func (w *WireRateTracker) AvgHz() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.avgPeriod <= 0 {
		return 0
	}
	return 1 / w.avgPeriod
}
