package relay

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/meridian-cmm/armcast/internal/monitoring"
)

// UDPMirror forwards published JSON payloads to a UDP address for consumers
// that prefer a plain datagram feed. Forwarding is asynchronous and
// non-blocking: when the buffer is full the payload is dropped and counted.
type UDPMirror struct {
	conn        *net.UDPConn
	channel     chan []byte
	logInterval time.Duration
	address     string
	dropped     atomic.Uint64
}

// NewUDPMirror creates a mirror that sends payloads to the given address.
func NewUDPMirror(address string, logInterval time.Duration) (*UDPMirror, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mirror address: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create mirror connection: %w", err)
	}

	if logInterval <= 0 {
		logInterval = time.Minute
	}

	return &UDPMirror{
		conn:        conn,
		channel:     make(chan []byte, 1000),
		logInterval: logInterval,
		address:     address,
	}, nil
}

// Start begins the forwarding goroutine. Send errors are aggregated and
// logged on the configured interval rather than per payload.
func (m *UDPMirror) Start(ctx context.Context) {
	go func() {
		errCount := 0
		var lastError error
		ticker := time.NewTicker(m.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case payload := <-m.channel:
				if _, err := m.conn.Write(payload); err != nil {
					errCount++
					lastError = err
				}
			case <-ticker.C:
				if errCount > 0 && lastError != nil {
					monitoring.Logf("dropped %d mirrored payloads due to errors (latest: %v)", errCount, lastError)
					errCount = 0
					lastError = nil
				}
			}
		}
	}()

	monitoring.Logf("mirroring pose payloads to udp %s", m.address)
}

// ForwardAsync queues a payload for forwarding without blocking. The payload
// is copied; a full buffer drops it.
func (m *UDPMirror) ForwardAsync(payload []byte) {
	payloadCopy := make([]byte, len(payload))
	copy(payloadCopy, payload)

	select {
	case m.channel <- payloadCopy:
	default:
		m.dropped.Add(1)
	}
}

// Dropped returns the number of payloads shed because the buffer was full.
func (m *UDPMirror) Dropped() uint64 {
	return m.dropped.Load()
}

// Close closes the UDP connection.
func (m *UDPMirror) Close() error {
	return m.conn.Close()
}
