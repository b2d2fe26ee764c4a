// Package armlink provides an abstraction over the arm driver link with the
// ability for multiple clients to subscribe to telemetry lines from the
// device and to send commands back to it.
package armlink

import (
	"bufio"
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meridian-cmm/armcast/internal/monitoring"
)

var ErrWriteFailed = fmt.Errorf("failed to write to arm link")

// ArmMux is a generic driver-link multiplexer that allows multiple clients
// to subscribe to telemetry lines from a single arm.
type ArmMux[T LinkPorter] struct {
	port         T
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
	dropped      atomic.Uint64
}

// ArmMuxer defines the interface for the ArmMux type.
type ArmMuxer interface {
	// Subscribe creates a new channel for receiving telemetry lines from
	// the arm. The channel ID identifies the channel when unsubscribing.
	Subscribe() (string, chan string)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// SendCommand writes the provided command to the driver link.
	SendCommand(string) error
	// Monitor reads lines from the driver link and fans them out to
	// subscribers until the context is cancelled.
	Monitor(context.Context) error
	// Close closes all subscribed channels and the underlying link.
	Close() error

	// Dropped reports how many lines were discarded because a subscriber
	// channel was full.
	Dropped() uint64

	Initialize() error

	// AttachAdminRoutes attaches admin debugging endpoints to the given
	// HTTP mux served at /debug/. These routes are accessible only over
	// localhost/via Tailscale and are not publicly accessible.
	AttachAdminRoutes(*http.ServeMux)
}

// NewArmMux creates an ArmMux instance backed by the given driver link.
func NewArmMux[T LinkPorter](port T) *ArmMux[T] {
	return &ArmMux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (m *ArmMux[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the mux.
func (m *ArmMux[T]) Unsubscribe(id string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// Initialize syncs the device clock and enables pose streaming in the line
// formats the parser understands.
func (m *ArmMux[T]) Initialize() error {
	// sync the device clock to the current UNIX time
	command := fmt.Sprintf("C=%d", time.Now().Unix())
	if err := m.SendCommand(command); err != nil {
		return fmt.Errorf("failed to synchronize clock: %w", err)
	}

	for _, command := range []string{
		"OP",  // enable pose output (position + orientation)
		"OJ7", // report all seven joint angles with each update
		"OB",  // include button states with each update
		"OF",  // include device status flags with each update
		"U=1", // enable the update stream
	} {
		if err := m.SendCommand(command); err != nil {
			return fmt.Errorf("failed to send start command %q: %w", command, err)
		}
	}

	return nil
}

// SendCommand sends a command to the driver link.
func (m *ArmMux[T]) SendCommand(command string) error {
	m.commandMu.Lock()
	defer m.commandMu.Unlock()
	if !bytes.HasSuffix([]byte(command), []byte("\n")) {
		command += "\n" // ensure command ends with a newline
	}
	n, err := m.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor monitors the driver link for telemetry lines and fans them out to
// subscribers. A subscriber that is not keeping up misses lines rather than
// blocking the stream: the feed is best effort, most-recent-wins.
func (m *ArmMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(m.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// Read from the link in a separate goroutine so the blocking scan.Scan
	// cannot interfere with the outer loop awaiting lines and context
	// cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			// if the channel is closed, we're done reading from the link
			if !ok {
				if err := scan.Err(); err != nil {
					return err
				}
				return nil
			}

			m.closingMu.Lock()
			if m.closing {
				m.closingMu.Unlock()
				return nil
			}
			m.closingMu.Unlock()

			m.subscriberMu.Lock()
			for _, ch := range m.subscribers {
				select {
				case ch <- line:
				default:
					// skip full channels so a slow subscriber cannot stall the stream
					if n := m.dropped.Add(1); n == 1 || n%1000 == 0 {
						monitoring.Logf("line fan-out has dropped %d lines (subscriber not keeping up)", n)
					}
				}
			}
			m.subscriberMu.Unlock()
		}
	}
}

// Dropped returns the number of lines discarded during fan-out.
func (m *ArmMux[T]) Dropped() uint64 {
	return m.dropped.Load()
}

func (m *ArmMux[T]) Close() error {
	m.closingMu.Lock()
	m.closing = true
	m.closingMu.Unlock()

	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	return m.port.Close()
}
