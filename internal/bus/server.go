package bus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
)

// Handler serves one method. A nil result with a nil error produces an
// empty reply for requests and is ignored for events.
type Handler func(payload json.RawMessage) (any, error)

// Server hosts the daemon side of the session bus.
type Server struct {
	socketPath string
	listener   net.Listener

	mu       sync.RWMutex
	handlers map[string]Handler
	conns    map[*serverConn]struct{}

	shuttingDown atomic.Bool
}

type serverConn struct {
	conn    net.Conn
	writeMu sync.Mutex
}

func (c *serverConn) writeFrame(f *Frame) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.conn.Write(data)
	return err
}

// NewServer creates a bus server bound to the given socket path.
func NewServer(socketPath string) *Server {
	return &Server{
		socketPath: socketPath,
		handlers:   make(map[string]Handler),
		conns:      make(map[*serverConn]struct{}),
	}
}

// Handle registers a method handler. Must be called before Start.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	s.handlers[method] = h
	s.mu.Unlock()
}

// Start begins listening for connections.
func (s *Server) Start() error {
	// Remove a stale socket from a previous run.
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create bus socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}
	s.listener = listener

	log.Printf("bus listening on %s", s.socketPath)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and all connections.
func (s *Server) Stop() {
	s.shuttingDown.Store(true)
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Lock()
	for c := range s.conns {
		c.conn.Close()
	}
	s.conns = make(map[*serverConn]struct{})
	s.mu.Unlock()
	os.Remove(s.socketPath)
}

// Broadcast sends a signal frame to every connected agent.
func (s *Server) Broadcast(method string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("bus: failed to marshal signal %s: %v", method, err)
		return
	}
	frame := &Frame{Kind: FrameSignal, Method: method, Payload: data}

	s.mu.RLock()
	conns := make([]*serverConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		if err := c.writeFrame(frame); err != nil {
			log.Printf("bus: failed to send signal %s: %v", method, err)
		}
	}
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.shuttingDown.Load() {
				return
			}
			log.Printf("bus accept error: %v", err)
			continue
		}
		sc := &serverConn{conn: conn}
		s.mu.Lock()
		s.conns[sc] = struct{}{}
		s.mu.Unlock()
		go s.serveConn(sc)
	}
}

func (s *Server) serveConn(sc *serverConn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, sc)
		s.mu.Unlock()
		sc.conn.Close()
	}()

	reader := bufio.NewReader(sc.conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF && !s.shuttingDown.Load() {
				log.Printf("bus read error: %v", err)
			}
			return
		}
		frame, err := ParseFrame(line)
		if err != nil {
			log.Printf("bus: dropping malformed frame: %v", err)
			continue
		}
		switch frame.Kind {
		case FrameRequest:
			s.dispatchRequest(sc, frame)
		case FrameEvent:
			s.dispatchEvent(frame)
		default:
			log.Printf("bus: unexpected frame kind %q from client", frame.Kind)
		}
	}
}

func (s *Server) dispatchRequest(sc *serverConn, frame *Frame) {
	reply := &Frame{Kind: FrameReply, ID: frame.ID, Method: frame.Method}

	s.mu.RLock()
	h, ok := s.handlers[frame.Method]
	s.mu.RUnlock()
	if !ok {
		reply.Error = fmt.Sprintf("unknown method %q", frame.Method)
	} else if result, err := h(frame.Payload); err != nil {
		reply.Error = err.Error()
	} else if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			reply.Error = fmt.Sprintf("failed to marshal reply: %v", err)
		} else {
			reply.Payload = data
		}
	}
	if err := sc.writeFrame(reply); err != nil {
		log.Printf("bus: failed to send reply for %s: %v", frame.Method, err)
	}
}

func (s *Server) dispatchEvent(frame *Frame) {
	s.mu.RLock()
	h, ok := s.handlers[frame.Method]
	s.mu.RUnlock()
	if !ok {
		log.Printf("bus: no handler for event %q", frame.Method)
		return
	}
	// Hot-path async call: a failure only loses this event's side effect;
	// the next event corrects state.
	if _, err := h(frame.Payload); err != nil {
		log.Printf("bus: event %s failed: %v", frame.Method, err)
	}
}
