package armlink

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

// MockLinkPort implements LinkPorter for dev mode. Reads come from a pipe
// fed by a fixture replayer; writes (commands) are captured in memory.
type MockLinkPort struct {
	io.Reader

	mu      sync.Mutex
	written bytes.Buffer
	closed  bool
	closer  io.Closer
}

func (p *MockLinkPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errors.New("arm link closed")
	}
	return p.written.Write(b)
}

func (p *MockLinkPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

// Commands returns everything written to the mock link so far.
func (p *MockLinkPort) Commands() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// NewMockArmMux creates an ArmMux backed by a mock link that replays the
// given fixture lines on a ticker, cycling forever. Used by dev mode and
// demos so the full relay path can run without an arm attached.
func NewMockArmMux(fixtures []string, interval time.Duration) *ArmMux[*MockLinkPort] {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}

	r, w := io.Pipe()
	port := &MockLinkPort{Reader: r, closer: r}

	go func() {
		defer w.Close()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		i := 0
		for range ticker.C {
			if len(fixtures) == 0 {
				return
			}
			line := fixtures[i%len(fixtures)]
			if _, err := io.WriteString(w, line+"\n"); err != nil {
				return
			}
			i++
		}
	}()

	return NewArmMux(port)
}

// TestableLinkPort implements LinkPorter with configurable behaviour for
// tests: scripted reads, captured writes, and injectable errors.
type TestableLinkPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls.
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the link.
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set.
	ReadError error

	// WriteError is returned by the next Write call if set.
	WriteError error

	// CloseError is returned by Close if set.
	CloseError error

	// Closed indicates whether Close was called.
	Closed bool

	// ShortWrite truncates the next Write to half its length.
	ShortWrite bool

	// BlockReads causes Read to block until data is added or Close is called.
	BlockReads bool

	readCond *sync.Cond
}

// NewTestableLinkPort creates a TestableLinkPort with empty buffers.
func NewTestableLinkPort() *TestableLinkPort {
	p := &TestableLinkPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

func (p *TestableLinkPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Closed {
		return 0, io.EOF
	}
	if p.ReadError != nil {
		err := p.ReadError
		p.ReadError = nil
		return 0, err
	}

	if p.BlockReads && p.ReadBuffer.Len() == 0 {
		for !p.Closed && p.ReadBuffer.Len() == 0 {
			p.readCond.Wait()
		}
		if p.Closed {
			return 0, io.EOF
		}
	}

	return p.ReadBuffer.Read(b)
}

func (p *TestableLinkPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Closed {
		return 0, errors.New("arm link closed")
	}
	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}
	if p.ShortWrite {
		p.ShortWrite = false
		return p.WriteBuffer.Write(b[:len(b)/2])
	}

	return p.WriteBuffer.Write(b)
}

func (p *TestableLinkPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Closed = true
	p.readCond.Broadcast() // wake any blocked readers
	return p.CloseError
}

// AddReadData appends data to be returned by subsequent Read calls.
func (p *TestableLinkPort) AddReadData(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ReadBuffer.Write(data)
	p.readCond.Signal()
}

// WrittenData returns all data written to the link.
func (p *TestableLinkPort) WrittenData() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.WriteBuffer.Bytes()
}
