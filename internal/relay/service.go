package relay

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/meridian-cmm/armcast/internal/monitoring"
	"github.com/meridian-cmm/armcast/internal/telemetry"
	"github.com/meridian-cmm/armcast/internal/timeutil"
)

// LineSource is the subset of the arm mux the service consumes. Dropped
// reports lines the source discarded because the service was not draining
// its channel fast enough.
type LineSource interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
	Dropped() uint64
}

// SampleStore persists samples and button transitions for later replay.
// Both methods are best effort from the relay's point of view: storage
// errors are logged, never fatal.
type SampleStore interface {
	RecordSample(sessionID string, s *telemetry.PoseSample) error
	RecordButtonEvent(sessionID string, seq uint64, previous, current telemetry.ButtonMask) error
}

// ServiceConfig wires a Service together. Mirror and Store are optional;
// zero durations fall back to the telemetry defaults.
type ServiceConfig struct {
	Source    LineSource
	Publisher SamplePublisher
	Mirror    *UDPMirror
	Store     SampleStore
	SessionID string
	ArmID     string
	Clock     timeutil.Clock

	FirstUpdateGrace time.Duration
	StallThreshold   time.Duration
	GapWarn          time.Duration
	WarnInterval     time.Duration
}

// Service is the relay event loop: it subscribes to the driver link, parses
// each telemetry line, stamps and publishes the sample, and keeps stream
// health counters.
type Service struct {
	source    LineSource
	publisher SamplePublisher
	mirror    *UDPMirror
	store     SampleStore
	sessionID string
	armID     string

	tracker  *telemetry.RateTracker
	watchdog *telemetry.Watchdog
	gapWarn  time.Duration

	latest      atomic.Pointer[telemetry.PoseSample]
	parseErrors atomic.Uint64
	lastButtons atomic.Uint32
	hasButtons  atomic.Bool
}

// NewService creates a Service from the given configuration.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	tracker := telemetry.NewRateTracker(clock)

	watchdog := telemetry.NewWatchdog(tracker, clock)
	if cfg.FirstUpdateGrace > 0 {
		watchdog.FirstUpdateGrace = cfg.FirstUpdateGrace
	}
	if cfg.StallThreshold > 0 {
		watchdog.StallThreshold = cfg.StallThreshold
	}
	if cfg.WarnInterval > 0 {
		watchdog.WarnInterval = cfg.WarnInterval
	}

	gapWarn := cfg.GapWarn
	if gapWarn <= 0 {
		gapWarn = telemetry.DefaultGapWarn
	}

	return &Service{
		source:    cfg.Source,
		publisher: cfg.Publisher,
		mirror:    cfg.Mirror,
		store:     cfg.Store,
		sessionID: cfg.SessionID,
		armID:     cfg.ArmID,
		tracker:   tracker,
		watchdog:  watchdog,
		gapWarn:   gapWarn,
	}
}

// Tracker exposes the stream health tracker for the HTTP status surface.
func (s *Service) Tracker() *telemetry.RateTracker {
	return s.tracker
}

// Latest returns the most recently published sample, or nil before the
// first update.
func (s *Service) Latest() *telemetry.PoseSample {
	return s.latest.Load()
}

// ParseErrors returns the number of lines that failed to parse.
func (s *Service) ParseErrors() uint64 {
	return s.parseErrors.Load()
}

// LineDrops returns the number of lines the link fan-out discarded before
// the service could read them.
func (s *Service) LineDrops() uint64 {
	return s.source.Dropped()
}

// Run consumes telemetry lines until the context is cancelled. The watchdog
// runs alongside and warns when the stream never starts or stalls.
func (s *Service) Run(ctx context.Context) {
	go s.watchdog.Run(ctx)

	if s.mirror != nil {
		s.mirror.Start(ctx)
	}

	id, lines := s.source.Subscribe()
	defer s.source.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("relay service stopped")
			return
		case line, ok := <-lines:
			if !ok {
				monitoring.Logf("arm line source closed, relay service stopping")
				return
			}
			s.handleLine(line)
		}
	}
}

// handleLine parses, tracks, records, and publishes one telemetry line.
func (s *Service) handleLine(line string) {
	sample, err := telemetry.ParseLine(line)
	if err != nil {
		n := s.parseErrors.Add(1)
		monitoring.Logf("failed to parse telemetry line (%d so far): %v", n, err)
		return
	}
	if sample.ArmID == "" {
		sample.ArmID = s.armID
	}

	dt, first := s.tracker.Observe()
	if first {
		monitoring.Logf("first arm update received")
	} else if dt > s.gapWarn {
		monitoring.Logf("gap between arm updates: %.3fs", dt.Seconds())
	}

	payload, err := s.publisher.Publish(sample)
	if err != nil {
		monitoring.Logf("failed to publish sample: %v", err)
		return
	}
	s.latest.Store(sample)

	if s.mirror != nil && payload != nil {
		s.mirror.ForwardAsync(payload)
	}

	s.noteButtons(sample)

	if s.store != nil {
		if err := s.store.RecordSample(s.sessionID, sample); err != nil {
			monitoring.Logf("failed to record sample %d: %v", sample.Seq, err)
		}
	}
}

// noteButtons logs and records button-state transitions.
func (s *Service) noteButtons(sample *telemetry.PoseSample) {
	current := uint32(sample.Buttons)
	if !s.hasButtons.Load() {
		s.hasButtons.Store(true)
		s.lastButtons.Store(current)
		return
	}

	previous := s.lastButtons.Load()
	if previous == current {
		return
	}
	s.lastButtons.Store(current)

	monitoring.Logf("button state changed: %d -> %d", previous, current)
	if s.store != nil {
		if err := s.store.RecordButtonEvent(s.sessionID, sample.Seq, telemetry.ButtonMask(previous), telemetry.ButtonMask(current)); err != nil {
			monitoring.Logf("failed to record button event: %v", err)
		}
	}
}
