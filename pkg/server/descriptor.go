package server

import (
	"log"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// outboundQueue is how many lines a client may fall behind before it is
// dropped as too slow.
const outboundQueue = 256

// TransportType identifies the kind of transport a Descriptor uses.
type TransportType int

const (
	TransportTCP       TransportType = iota // Traditional telnet/TCP
	TransportWebSocket                      // WebSocket (JSON frames)
	TransportInternal                       // in-process, used by tests
)

func (t TransportType) String() string {
	switch t {
	case TransportTCP:
		return "tcp"
	case TransportWebSocket:
		return "websocket"
	default:
		return "internal"
	}
}

// Descriptor represents a single client connection. It satisfies
// session.Conn; the registry compares descriptors by pointer.
type Descriptor struct {
	ID        int
	SessionID uuid.UUID
	Conn      net.Conn // nil for non-TCP transports
	Addr      string
	Transport TransportType

	// SendFunc delivers a line synchronously when the descriptor has no
	// writer goroutine (in-process connections).
	SendFunc func(msg string)
	// CloseFunc runs once when the descriptor is closed, after queued
	// output has been written.
	CloseFunc func()

	mu     sync.Mutex
	closed bool
	out    chan frame    // nil without a writer
	done   chan struct{} // closed by Close
}

// frame is one queued unit of output. Only the WebSocket transport has
// kinds other than plain text.
type frame struct {
	kind string // "" for game text, "error" for protocol errors
	text string
}

var nextDescriptorID atomic.Int64

// NewDescriptor wraps a net.Conn into a Descriptor.
func NewDescriptor(conn net.Conn) *Descriptor {
	d := newDescriptor(TransportTCP, conn.RemoteAddr().String())
	d.Conn = conn
	d.CloseFunc = func() { conn.Close() }
	d.startWriter(func(f frame) error {
		msg := f.text
		// Ensure lines end with \r\n for telnet
		if !strings.HasSuffix(msg, "\n") {
			msg += "\r\n"
		}
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		_, err := conn.Write([]byte(msg))
		return err
	})
	return d
}

func newDescriptor(t TransportType, addr string) *Descriptor {
	return &Descriptor{
		ID:        int(nextDescriptorID.Add(1)),
		SessionID: uuid.New(),
		Addr:      addr,
		Transport: t,
		done:      make(chan struct{}),
	}
}

// startWriter moves output onto its own goroutine, so a command that
// talks to a slow client never waits for it.
func (d *Descriptor) startWriter(write func(f frame) error) {
	d.out = make(chan frame, outboundQueue)
	go d.writeLoop(write)
}

func (d *Descriptor) writeLoop(write func(f frame) error) {
	defer d.finish()
	for {
		select {
		case f := <-d.out:
			if err := write(f); err != nil {
				d.Close()
				return
			}
		case <-d.done:
			// Flush what was queued before the close, e.g. a goodbye.
			for {
				select {
				case f := <-d.out:
					if write(f) != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (d *Descriptor) finish() {
	if d.CloseFunc != nil {
		d.CloseFunc()
	}
}

// Send queues a line for the client. Sends after Close are dropped, and a
// client whose queue is full is disconnected.
func (d *Descriptor) Send(msg string) {
	d.enqueue(frame{text: msg})
}

func (d *Descriptor) enqueue(f frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.out == nil {
		if d.SendFunc != nil {
			d.SendFunc(f.text)
		}
		return
	}
	select {
	case d.out <- f:
	default:
		log.Printf("[%d] output queue full, dropping %s", d.ID, d.Addr)
		d.closeLocked()
	}
}

// Close terminates the connection. It is safe to call more than once.
// Output already queued is still written.
func (d *Descriptor) Close() {
	d.mu.Lock()
	writer := d.closeLocked()
	d.mu.Unlock()
	if !writer {
		d.finish()
	}
}

// closeLocked marks d closed. It reports whether a writer goroutine will
// run CloseFunc; otherwise the caller must, unless d was already closed.
func (d *Descriptor) closeLocked() (handled bool) {
	if d.closed {
		return true
	}
	d.closed = true
	close(d.done)
	return d.out != nil
}

// IsClosed reports whether Close has been called.
func (d *Descriptor) IsClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
