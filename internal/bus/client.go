package bus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCallTimeout bounds synchronous calls. A timed-out reply is a
// failure: the caller drops the side effect, never retries.
const DefaultCallTimeout = 5 * time.Second

// registration retry backoff per attempt.
var registerBackoff = []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}

// SignalHandler consumes one broadcast signal.
type SignalHandler func(payload json.RawMessage)

// Client is the agent side of the session bus.
type Client struct {
	socketPath string
	timeout    time.Duration

	conn    net.Conn
	writeMu sync.Mutex

	nextID  atomic.Uint64
	pending map[uint64]chan *Frame
	pendMu  sync.Mutex

	signalMu sync.RWMutex
	signals  map[string]SignalHandler
	sigQueue chan *Frame

	closed atomic.Bool
}

// Dial connects to the daemon, retrying registration 3 times with
// increasing backoff on transient errors.
func Dial(socketPath string) (*Client, error) {
	c := &Client{
		socketPath: socketPath,
		timeout:    DefaultCallTimeout,
		pending:    make(map[uint64]chan *Frame),
		signals:    make(map[string]SignalHandler),
		sigQueue:   make(chan *Frame, 64),
	}

	var err error
	for attempt := 0; ; attempt++ {
		c.conn, err = net.DialTimeout("unix", socketPath, c.timeout)
		if err == nil {
			break
		}
		if attempt >= len(registerBackoff) {
			return nil, fmt.Errorf("failed to connect to daemon after %d attempts: %w",
				attempt+1, err)
		}
		log.Printf("bus: connect attempt %d failed (%v), retrying", attempt+1, err)
		time.Sleep(registerBackoff[attempt])
	}

	go c.readLoop()
	go c.signalLoop()
	return c, nil
}

// OnSignal registers a handler for a broadcast signal. Handlers run in
// order on a dedicated goroutine, off the read loop, so they may make
// synchronous calls.
func (c *Client) OnSignal(method string, h SignalHandler) {
	c.signalMu.Lock()
	c.signals[method] = h
	c.signalMu.Unlock()
}

// Close terminates the connection.
func (c *Client) Close() error {
	c.closed.Store(true)
	return c.conn.Close()
}

func (c *Client) writeFrame(f *Frame) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.conn.Write(data)
	return err
}

// Emit sends a fire-and-forget event.
func (c *Client) Emit(method string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", method, err)
	}
	return c.writeFrame(&Frame{Kind: FrameEvent, Method: method, Payload: data})
}

// Call sends a synchronous request and decodes the reply into result
// (which may be nil to discard it).
func (c *Client) Call(method string, payload, result any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", method, err)
	}

	id := c.nextID.Add(1)
	ch := make(chan *Frame, 1)
	c.pendMu.Lock()
	c.pending[id] = ch
	c.pendMu.Unlock()
	defer func() {
		c.pendMu.Lock()
		delete(c.pending, id)
		c.pendMu.Unlock()
	}()

	if err := c.writeFrame(&Frame{Kind: FrameRequest, ID: id, Method: method, Payload: data}); err != nil {
		return fmt.Errorf("failed to send %s: %w", method, err)
	}

	select {
	case reply := <-ch:
		if reply.Error != "" {
			return fmt.Errorf("%s: %s", method, reply.Error)
		}
		if result != nil && len(reply.Payload) > 0 {
			if err := json.Unmarshal(reply.Payload, result); err != nil {
				return fmt.Errorf("failed to decode %s reply: %w", method, err)
			}
		}
		return nil
	case <-time.After(c.timeout):
		return fmt.Errorf("%s: call timed out after %s", method, c.timeout)
	}
}

func (c *Client) readLoop() {
	reader := bufio.NewReader(c.conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF && !c.closed.Load() {
				log.Printf("bus: read loop terminated: %v", err)
			}
			c.failPending(err)
			close(c.sigQueue)
			return
		}
		frame, err := ParseFrame(line)
		if err != nil {
			log.Printf("bus: dropping malformed frame: %v", err)
			continue
		}
		switch frame.Kind {
		case FrameReply:
			c.pendMu.Lock()
			ch, ok := c.pending[frame.ID]
			c.pendMu.Unlock()
			if ok {
				ch <- frame
			}
		case FrameSignal:
			// Handlers issue calls of their own, so signals are queued to
			// the dispatch goroutine instead of run on the read loop.
			select {
			case c.sigQueue <- frame:
			default:
				log.Printf("bus: signal queue full, dropping %q", frame.Method)
			}
		default:
			log.Printf("bus: unexpected frame kind %q from server", frame.Kind)
		}
	}
}

// signalLoop dispatches queued signals in arrival order.
func (c *Client) signalLoop() {
	for frame := range c.sigQueue {
		c.signalMu.RLock()
		h, ok := c.signals[frame.Method]
		c.signalMu.RUnlock()
		if ok {
			h(frame.Payload)
		} else {
			log.Printf("bus: unhandled signal %q", frame.Method)
		}
	}
}

// failPending unblocks outstanding calls when the connection dies.
func (c *Client) failPending(err error) {
	c.pendMu.Lock()
	defer c.pendMu.Unlock()
	msg := "connection closed"
	if err != nil && err != io.EOF {
		msg = err.Error()
	}
	for id, ch := range c.pending {
		ch <- &Frame{Kind: FrameReply, ID: id, Error: msg}
		delete(c.pending, id)
	}
}
