package bus

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "bus.sock")
	s := NewServer(socket)
	t.Cleanup(s.Stop)
	return s, socket
}

func TestFrameRoundTrip(t *testing.T) {
	payload, _ := json.Marshal(DragMoved{WindowID: "a:b:0x1", CursorX: 10, CursorY: 20})
	f := &Frame{Kind: FrameEvent, Method: MethodDragMoved, Payload: payload}

	data, err := f.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if data[len(data)-1] != '\n' {
		t.Fatalf("frame must be newline-delimited")
	}
	back, err := ParseFrame(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if back.Kind != FrameEvent || back.Method != MethodDragMoved {
		t.Fatalf("envelope mismatch: %+v", back)
	}
	var moved DragMoved
	if err := json.Unmarshal(back.Payload, &moved); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if moved.WindowID != "a:b:0x1" || moved.CursorX != 10 {
		t.Fatalf("payload mismatch: %+v", moved)
	}
}

func TestRequestReply(t *testing.T) {
	s, socket := startTestServer(t)
	s.Handle(MethodQueryWindowFloating, func(payload json.RawMessage) (any, error) {
		var ref WindowRef
		if err := json.Unmarshal(payload, &ref); err != nil {
			return nil, err
		}
		return BoolReply{Value: ref.WindowID == "floaty:f:0x1"}, nil
	})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	c, err := Dial(socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	var reply BoolReply
	if err := c.Call(MethodQueryWindowFloating, WindowRef{WindowID: "floaty:f:0x1"}, &reply); err != nil {
		t.Fatalf("call: %v", err)
	}
	if !reply.Value {
		t.Fatalf("expected true reply")
	}

	// Unknown methods surface as errors, not hangs.
	if err := c.Call("no.such.method", WindowRef{}, nil); err == nil {
		t.Fatalf("expected error for unknown method")
	}
}

func TestHandlerErrorPropagates(t *testing.T) {
	s, socket := startTestServer(t)
	s.Handle(MethodSnapToLastZone, func(json.RawMessage) (any, error) {
		return nil, fmt.Errorf("no record")
	})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	c, err := Dial(socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	err = c.Call(MethodSnapToLastZone, WindowRef{WindowID: "x:y:0"}, nil)
	if err == nil {
		t.Fatalf("expected handler error")
	}
}

func TestEventDelivery(t *testing.T) {
	s, socket := startTestServer(t)
	got := make(chan string, 1)
	s.Handle(MethodWindowAdded, func(payload json.RawMessage) (any, error) {
		var ref WindowRef
		if err := json.Unmarshal(payload, &ref); err != nil {
			return nil, err
		}
		got <- ref.WindowID
		return nil, nil
	})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	c, err := Dial(socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if err := c.Emit(MethodWindowAdded, WindowRef{WindowID: "a:b:0x2", Screen: "DP-1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	select {
	case id := <-got:
		if id != "a:b:0x2" {
			t.Fatalf("unexpected window id %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("event not delivered")
	}
}

func TestBroadcastSignal(t *testing.T) {
	s, socket := startTestServer(t)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		c, err := Dial(socket)
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		defer c.Close()
		wg.Add(1)
		c.OnSignal(SignalWindowFloating, func(payload json.RawMessage) {
			var fc FloatingChanged
			if err := json.Unmarshal(payload, &fc); err == nil {
				results <- fc.Floating
			}
			wg.Done()
		})
	}

	// Give both read loops a moment to attach before broadcasting.
	time.Sleep(50 * time.Millisecond)
	s.Broadcast(SignalWindowFloating, FloatingChanged{StableID: "a:b", Floating: true})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("broadcast not delivered to all clients")
	}
	close(results)
	for v := range results {
		if !v {
			t.Fatalf("signal payload corrupted")
		}
	}
}

func TestDialRetriesThenFails(t *testing.T) {
	// Shrink the backoff so the failure path stays fast.
	old := registerBackoff
	registerBackoff = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	defer func() { registerBackoff = old }()

	_, err := Dial(filepath.Join(t.TempDir(), "nobody-home.sock"))
	if err == nil {
		t.Fatalf("expected dial failure with no server")
	}
}
