// Package visualizer consumes the relay's pose feed and maps each sample
// onto a 3D scene or a terminal status line.
package visualizer

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"syscall"

	zmq "github.com/pebbe/zmq4"

	"github.com/meridian-cmm/armcast/internal/monitoring"
	"github.com/meridian-cmm/armcast/internal/telemetry"
)

// Subscriber owns a ZeroMQ SUB socket connected to the relay. Poll drains
// the socket without blocking so a render loop can call it on every frame.
type Subscriber struct {
	socket *zmq.Socket
	topic  string

	received  atomic.Uint64
	discarded atomic.Uint64
}

// NewSubscriber connects to the relay's PUB endpoint and subscribes to the
// given topic.
func NewSubscriber(endpoint, topic string) (*Subscriber, error) {
	socket, err := zmq.NewSocket(zmq.SUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create SUB socket: %w", err)
	}

	if err := socket.Connect(endpoint); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to connect %s: %w", endpoint, err)
	}
	if err := socket.SetSubscribe(topic); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to subscribe to %q: %w", topic, err)
	}

	monitoring.Logf("subscribed to pose updates on %s (topic %q)", endpoint, topic)

	return &Subscriber{socket: socket, topic: topic}, nil
}

// Poll drains every pending message and returns the newest decoded sample,
// or nil when nothing arrived. Samples superseded within one poll are
// counted as discarded; the render loop only ever needs the latest pose.
func (s *Subscriber) Poll() (*telemetry.PoseSample, error) {
	var latest *telemetry.PoseSample

	for {
		frames, err := s.socket.RecvMessageBytes(zmq.DONTWAIT)
		if err != nil {
			if zmq.AsErrno(err) == zmq.Errno(syscall.EAGAIN) {
				break
			}
			return latest, fmt.Errorf("failed to receive pose message: %w", err)
		}
		// topic frame, payload frame
		if len(frames) < 2 {
			continue
		}

		var sample telemetry.PoseSample
		if err := json.Unmarshal(frames[len(frames)-1], &sample); err != nil {
			monitoring.Logf("failed to decode pose payload: %v", err)
			continue
		}

		s.received.Add(1)
		if latest != nil {
			s.discarded.Add(1)
		}
		latest = &sample
	}

	return latest, nil
}

// Received returns the total number of samples decoded.
func (s *Subscriber) Received() uint64 {
	return s.received.Load()
}

// Discarded returns the number of samples superseded before being applied.
func (s *Subscriber) Discarded() uint64 {
	return s.discarded.Load()
}

// Close closes the SUB socket.
func (s *Subscriber) Close() error {
	return s.socket.Close()
}
