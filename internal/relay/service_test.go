package relay

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/meridian-cmm/armcast/internal/telemetry"
)

// fakeSource hands out one shared line channel to its single subscriber.
type fakeSource struct {
	lines        chan string
	unsubscribed bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{lines: make(chan string, 16)}
}

func (f *fakeSource) Subscribe() (string, chan string) { return "test", f.lines }
func (f *fakeSource) Unsubscribe(string)               { f.unsubscribed = true }
func (f *fakeSource) Dropped() uint64                  { return 0 }

// fakePublisher records published samples and stamps sequence numbers the
// way the real publisher does.
type fakePublisher struct {
	mu      sync.Mutex
	seq     uint64
	samples []telemetry.PoseSample
	err     error
}

func (f *fakePublisher) Publish(s *telemetry.PoseSample) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.seq++
	s.Seq = f.seq
	f.samples = append(f.samples, *s)
	return json.Marshal(s)
}

func (f *fakePublisher) published() []telemetry.PoseSample {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]telemetry.PoseSample(nil), f.samples...)
}

type buttonEvent struct {
	seq       uint64
	prev, cur telemetry.ButtonMask
}

// fakeStore records everything handed to it.
type fakeStore struct {
	mu      sync.Mutex
	samples []telemetry.PoseSample
	events  []buttonEvent
}

func (f *fakeStore) RecordSample(sessionID string, s *telemetry.PoseSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, *s)
	return nil
}

func (f *fakeStore) RecordButtonEvent(sessionID string, seq uint64, prev, cur telemetry.ButtonMask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, buttonEvent{seq: seq, prev: prev, cur: cur})
	return nil
}

func (f *fakeStore) buttonEvents() []buttonEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]buttonEvent(nil), f.events...)
}

func (f *fakeStore) sampleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.samples)
}

// runService starts a service over the fakes and returns a cancel function
// that stops it and waits for shutdown.
func runService(t *testing.T, svc *Service) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Run(ctx)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("service did not stop")
		}
	}
}

// waitFor polls until cond returns true or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestServicePublishesParsedLines(t *testing.T) {
	source := newFakeSource()
	pub := &fakePublisher{}
	store := &fakeStore{}

	svc := NewService(ServiceConfig{
		Source:    source,
		Publisher: pub,
		Store:     store,
		SessionID: "session-1",
		ArmID:     "FARO-12345",
	})
	stop := runService(t, svc)
	defer stop()

	source.lines <- "1000.0,100.5,-20.25,310.0,12.5,-45.0,90.0,10,20,30,40,50,60,70,0,3"
	source.lines <- "1000.02,101.0,-20.0,311.0,12.0,-44.5,90.5,11,21,31,41,51,61,71,1,3"

	waitFor(t, func() bool { return len(pub.published()) == 2 }, "samples not published")

	got := pub.published()
	if got[0].Seq != 1 || got[1].Seq != 2 {
		t.Errorf("sequence numbers = %d, %d, want 1, 2", got[0].Seq, got[1].Seq)
	}
	if got[0].ArmID != "FARO-12345" {
		t.Errorf("ArmID = %q, want FARO-12345", got[0].ArmID)
	}
	if got[1].X != 101.0 {
		t.Errorf("X = %v, want 101.0", got[1].X)
	}

	waitFor(t, func() bool { return store.sampleCount() == 2 }, "samples not stored")

	latest := svc.Latest()
	if latest == nil || latest.Seq != 2 {
		t.Errorf("Latest() = %+v, want seq 2", latest)
	}
}

func TestServiceCountsParseErrors(t *testing.T) {
	source := newFakeSource()
	pub := &fakePublisher{}

	svc := NewService(ServiceConfig{Source: source, Publisher: pub})
	stop := runService(t, svc)
	defer stop()

	source.lines <- "not a telemetry line"
	source.lines <- "1,2,3"
	source.lines <- "1000.0,1,2,3,4,5,6,10,20,30,40,50,60,70,0,0"

	waitFor(t, func() bool { return len(pub.published()) == 1 }, "valid line not published")

	if got := svc.ParseErrors(); got != 2 {
		t.Errorf("ParseErrors() = %d, want 2", got)
	}
	if svc.Latest() == nil {
		t.Error("Latest() should survive surrounding parse errors")
	}
}

func TestServiceRecordsButtonTransitions(t *testing.T) {
	source := newFakeSource()
	pub := &fakePublisher{}
	store := &fakeStore{}

	svc := NewService(ServiceConfig{Source: source, Publisher: pub, Store: store, SessionID: "s"})
	stop := runService(t, svc)
	defer stop()

	// buttons: 0, 0, 1, 1, 3 -> transitions 0->1 and 1->3.
	for _, buttons := range []string{"0", "0", "1", "1", "3"} {
		source.lines <- "1000.0,1,2,3,4,5,6,10,20,30,40,50,60,70," + buttons + ",0"
	}

	waitFor(t, func() bool { return len(store.buttonEvents()) == 2 }, "button transitions not recorded")

	events := store.buttonEvents()
	if events[0].prev != 0 || events[0].cur != 1 {
		t.Errorf("first transition = %d -> %d, want 0 -> 1", events[0].prev, events[0].cur)
	}
	if events[1].prev != 1 || events[1].cur != 3 {
		t.Errorf("second transition = %d -> %d, want 1 -> 3", events[1].prev, events[1].cur)
	}
	if events[1].seq != 5 {
		t.Errorf("transition seq = %d, want 5", events[1].seq)
	}
}

func TestServicePreservesEmbeddedArmID(t *testing.T) {
	source := newFakeSource()
	pub := &fakePublisher{}

	svc := NewService(ServiceConfig{Source: source, Publisher: pub, ArmID: "fallback"})
	stop := runService(t, svc)
	defer stop()

	source.lines <- `{"ts":1000.0,"arm_id":"FARO-99","x":1,"y":2,"z":3,"a":4,"b":5,"c":6,"joints":[1,2,3,4,5,6,7],"buttons":0,"flags":0}`

	waitFor(t, func() bool { return len(pub.published()) == 1 }, "sample not published")

	if got := pub.published()[0].ArmID; got != "FARO-99" {
		t.Errorf("ArmID = %q, want FARO-99 (embedded identity wins)", got)
	}
}

func TestServiceStopsWhenSourceCloses(t *testing.T) {
	source := newFakeSource()
	svc := NewService(ServiceConfig{Source: source, Publisher: &fakePublisher{}})

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Run(context.Background())
	}()

	close(source.lines)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("service did not stop after source closed")
	}
}
