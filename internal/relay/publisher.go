// Package relay reads arm telemetry from the driver link, stamps each update
// with a sequence number, and republishes it as JSON on a PUB socket.
package relay

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/meridian-cmm/armcast/internal/monitoring"
	"github.com/meridian-cmm/armcast/internal/telemetry"
	"github.com/meridian-cmm/armcast/internal/timeutil"
)

// DefaultTopic is the topic frame prefixed to every published pose message.
const DefaultTopic = "arm.pose"

// SamplePublisher is the publishing interface the relay service depends on.
// Publish returns the encoded payload so callers can mirror it elsewhere
// without re-encoding.
type SamplePublisher interface {
	Publish(*telemetry.PoseSample) ([]byte, error)
}

// Publisher owns a ZeroMQ PUB socket and broadcasts pose samples on it.
// Delivery is best effort: a send that would block is dropped and counted.
type Publisher struct {
	endpoint string
	topic    string
	clock    timeutil.Clock

	socketMu sync.Mutex
	socket   *zmq.Socket

	seq       atomic.Uint64
	published atomic.Uint64
	dropped   atomic.Uint64

	lastStatsMu   sync.Mutex
	lastStatsTime time.Time
	lastPublished uint64
}

// NewPublisher creates a Publisher bound to the given endpoint, e.g.
// "tcp://*:5556". A nil clock falls back to the real clock.
func NewPublisher(endpoint, topic string, clock timeutil.Clock) (*Publisher, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	socket, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	// Bound outgoing queue: when a subscriber cannot keep up, old samples
	// are shed rather than buffered without limit.
	if err := socket.SetSndhwm(1000); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set send high-water mark: %w", err)
	}

	if err := socket.Bind(endpoint); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind %s: %w", endpoint, err)
	}

	monitoring.Logf("publishing pose updates on %s (topic %q)", endpoint, topic)

	return &Publisher{
		endpoint: endpoint,
		topic:    topic,
		clock:    clock,
		socket:   socket,
	}, nil
}

// Publish stamps the sample with the next sequence number and the receive
// timestamp, encodes it as JSON, and sends it as a two-frame message
// (topic, payload). The send never blocks; a full socket queue drops the
// sample. Returns the encoded payload.
func (p *Publisher) Publish(s *telemetry.PoseSample) ([]byte, error) {
	s.Seq = p.seq.Add(1)
	if s.ReceivedNanos == 0 {
		s.ReceivedNanos = p.clock.Now().UnixNano()
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pose sample: %w", err)
	}

	p.socketMu.Lock()
	_, err = p.socket.SendMessageDontwait(p.topic, payload)
	p.socketMu.Unlock()

	if err != nil {
		if zmq.AsErrno(err) == zmq.Errno(syscall.EAGAIN) {
			// Socket queue full: best effort, shed the sample.
			p.dropped.Add(1)
			return payload, nil
		}
		return nil, fmt.Errorf("failed to publish sample %d: %w", s.Seq, err)
	}

	p.published.Add(1)
	p.logPeriodicStats()
	return payload, nil
}

// logPeriodicStats reports publish throughput every 5 seconds.
func (p *Publisher) logPeriodicStats() {
	p.lastStatsMu.Lock()
	defer p.lastStatsMu.Unlock()

	now := p.clock.Now()
	if p.lastStatsTime.IsZero() {
		p.lastStatsTime = now
		return
	}

	elapsed := now.Sub(p.lastStatsTime)
	if elapsed < 5*time.Second {
		return
	}

	published := p.published.Load()
	interval := published - p.lastPublished
	monitoring.Logf("publisher stats: rate=%.1f/s published=%d dropped=%d",
		float64(interval)/elapsed.Seconds(), published, p.dropped.Load())
	p.lastStatsTime = now
	p.lastPublished = published
}

// PublisherStats contains publish counters.
type PublisherStats struct {
	Endpoint  string `json:"endpoint"`
	Topic     string `json:"topic"`
	Sequence  uint64 `json:"seq"`
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
}

// Stats returns current publisher statistics.
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		Endpoint:  p.endpoint,
		Topic:     p.topic,
		Sequence:  p.seq.Load(),
		Published: p.published.Load(),
		Dropped:   p.dropped.Load(),
	}
}

// Close closes the PUB socket.
func (p *Publisher) Close() error {
	p.socketMu.Lock()
	defer p.socketMu.Unlock()
	if p.socket == nil {
		return nil
	}
	err := p.socket.Close()
	p.socket = nil
	return err
}
