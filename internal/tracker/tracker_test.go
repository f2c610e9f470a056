package tracker

import (
	"errors"
	"testing"
	"time"

	"github.com/plasmazones/plasmazones/internal/bus"
	"github.com/plasmazones/plasmazones/internal/settings"
	"github.com/plasmazones/plasmazones/internal/zone"
)

type fakeSource struct {
	x, y       int
	mods       int
	buttons    int
	pointerErr error

	active     string
	geoms      map[string]zone.Rect
	classes    map[string]string
	transient  map[string]bool
	abnormal   map[string]bool
	fullscreen map[string]bool
}

func (f *fakeSource) Pointer() (int, int, int, int, error) {
	return f.x, f.y, f.mods, f.buttons, f.pointerErr
}

func (f *fakeSource) ActiveWindow() (string, bool) {
	return f.active, f.active != ""
}

func (f *fakeSource) WindowGeometry(id string) (zone.Rect, bool) {
	g, ok := f.geoms[id]
	return g, ok
}

func (f *fakeSource) WindowClass(id string) string  { return f.classes[id] }
func (f *fakeSource) IsTransient(id string) bool    { return f.transient[id] }
func (f *fakeSource) IsNormalWindow(id string) bool { return !f.abnormal[id] }
func (f *fakeSource) IsFullscreen(id string) bool   { return f.fullscreen[id] }

type fakeSink struct {
	started []bus.DragStarted
	moved   []bus.DragMoved
	stopped []bus.DragStopped
	closed  []string

	reply    bus.DragStopReply
	replyErr error
}

func (f *fakeSink) DragStarted(ev bus.DragStarted) { f.started = append(f.started, ev) }

func (f *fakeSink) DragMoved(ev bus.DragMoved) { f.moved = append(f.moved, ev) }

func (f *fakeSink) DragStopped(ev bus.DragStopped) (bus.DragStopReply, error) {
	f.stopped = append(f.stopped, ev)
	return f.reply, f.replyErr
}

func (f *fakeSink) WindowClosedDuringDrag(id string) { f.closed = append(f.closed, id) }

type fakeApplier struct {
	moved   []zone.Rect
	movedID []string
	resized [][2]int
}

func (f *fakeApplier) MoveResize(id string, g zone.Rect) {
	f.movedID = append(f.movedID, id)
	f.moved = append(f.moved, g)
}

func (f *fakeApplier) Resize(id string, w, h int) {
	f.resized = append(f.resized, [2]int{w, h})
}

type harness struct {
	src   *fakeSource
	sink  *fakeSink
	apply *fakeApplier
	tr    *Tracker
	clock time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		src: &fakeSource{
			active: "kitty:kitty:0x2a",
			geoms: map[string]zone.Rect{
				"kitty:kitty:0x2a": {X: 100, Y: 100, Width: 800, Height: 600},
			},
			classes:    map[string]string{"kitty:kitty:0x2a": "kitty"},
			transient:  map[string]bool{},
			abnormal:   map[string]bool{},
			fullscreen: map[string]bool{},
		},
		sink:  &fakeSink{},
		apply: &fakeApplier{},
		clock: time.Unix(1000, 0),
	}
	h.tr = New(Config{
		Source:  h.src,
		Sink:    h.sink,
		Applier: h.apply,
		Filters: Filters{SkipTransients: true, MinWindowWidth: 100, MinWindowHeight: 100},
		Now:     func() time.Time { return h.clock },
	})
	return h
}

// beginDrag samples once with the button held, moves the window, and polls
// again so the tracker sees the position change.
func (h *harness) beginDrag() {
	h.src.buttons = settings.ButtonLeft
	h.tr.Poll()
	g := h.src.geoms[h.src.active]
	g.X += 10
	h.src.geoms[h.src.active] = g
	h.clock = h.clock.Add(50 * time.Millisecond)
	h.tr.Poll()
}

func TestDragStartNeedsMotionUnderHeldButton(t *testing.T) {
	h := newHarness(t)

	// Button held but the window stays put: no drag.
	h.src.buttons = settings.ButtonLeft
	h.tr.Poll()
	h.tr.Poll()
	if len(h.sink.started) != 0 {
		t.Fatalf("stationary window must not start a drag")
	}

	h.beginDrag()
	if len(h.sink.started) != 1 {
		t.Fatalf("expected one dragStarted, got %d", len(h.sink.started))
	}
	ev := h.sink.started[0]
	if ev.WindowID != "kitty:kitty:0x2a" || ev.WindowClass != "kitty" {
		t.Fatalf("bad start event: %+v", ev)
	}
	if ev.W != 800 || ev.H != 600 {
		t.Fatalf("start geometry: got %vx%v", ev.W, ev.H)
	}
	if !h.tr.InDrag() {
		t.Fatalf("tracker must be in drag")
	}
}

func TestEdgeResizeDoesNotStartDrag(t *testing.T) {
	h := newHarness(t)

	// Grabbing the top-left corner moves the origin and grows the window
	// in the same sample; that is a resize, not a drag.
	h.src.buttons = settings.ButtonLeft
	h.tr.Poll()
	g := h.src.geoms[h.src.active]
	g.X -= 20
	g.Width += 20
	h.src.geoms[h.src.active] = g
	h.clock = h.clock.Add(50 * time.Millisecond)
	h.tr.Poll()
	if len(h.sink.started) != 0 {
		t.Fatalf("edge resize must not start a drag")
	}

	// A pure move at the settled size still starts one.
	g.X += 10
	h.src.geoms[h.src.active] = g
	h.clock = h.clock.Add(50 * time.Millisecond)
	h.tr.Poll()
	if len(h.sink.started) != 1 {
		t.Fatalf("move after the resize must start a drag, got %d", len(h.sink.started))
	}
}

func TestNoDragWithoutButton(t *testing.T) {
	h := newHarness(t)

	// The window moves (e.g. programmatically) with no button held.
	h.tr.Poll()
	g := h.src.geoms[h.src.active]
	g.X += 50
	h.src.geoms[h.src.active] = g
	h.tr.Poll()
	if len(h.sink.started) != 0 {
		t.Fatalf("motion without a held button must not start a drag")
	}
}

func TestMoveThrottle(t *testing.T) {
	h := newHarness(t)
	h.beginDrag()

	// Polls 50 ms apart pass the 32 ms throttle; two in the same instant
	// collapse to one event.
	h.src.x, h.src.y = 500, 500
	h.clock = h.clock.Add(50 * time.Millisecond)
	h.tr.Poll()
	h.tr.Poll()
	if len(h.sink.moved) != 1 {
		t.Fatalf("throttle: expected 1 dragMoved, got %d", len(h.sink.moved))
	}

	h.src.x = 600
	h.clock = h.clock.Add(50 * time.Millisecond)
	h.tr.Poll()
	if len(h.sink.moved) != 2 {
		t.Fatalf("expected 2 dragMoved, got %d", len(h.sink.moved))
	}
	if h.sink.moved[1].CursorX != 600 {
		t.Fatalf("cursor not propagated: %+v", h.sink.moved[1])
	}
}

func TestReleaseStopsAndAppliesSnap(t *testing.T) {
	h := newHarness(t)
	h.sink.reply = bus.DragStopReply{
		SnapX: 0, SnapY: 0, SnapW: 960, SnapH: 540,
		ShouldApplyGeometry: true,
	}
	h.beginDrag()

	h.src.x, h.src.y = 400, 300
	h.src.mods = settings.ModShift
	h.src.buttons = 0
	h.tr.Poll()

	if len(h.sink.stopped) != 1 {
		t.Fatalf("expected one dragStopped, got %d", len(h.sink.stopped))
	}
	stop := h.sink.stopped[0]
	if stop.Cancelled || stop.CursorX != 400 || stop.Modifiers != settings.ModShift {
		t.Fatalf("bad stop event: %+v", stop)
	}
	if len(h.apply.moved) != 1 {
		t.Fatalf("snap geometry not applied")
	}
	want := zone.Rect{X: 0, Y: 0, Width: 960, Height: 540}
	if h.apply.moved[0] != want {
		t.Fatalf("applied geometry: got %+v, want %+v", h.apply.moved[0], want)
	}
	if h.tr.InDrag() {
		t.Fatalf("tracker must be idle after release")
	}
}

func TestRestoreSizeOnlyResizes(t *testing.T) {
	h := newHarness(t)
	h.sink.reply = bus.DragStopReply{
		SnapW: 700, SnapH: 500,
		RestoreSizeOnly: true,
	}
	h.beginDrag()

	h.src.buttons = 0
	h.tr.Poll()

	if len(h.apply.moved) != 0 {
		t.Fatalf("restore-size must not move the window")
	}
	if len(h.apply.resized) != 1 || h.apply.resized[0] != [2]int{700, 500} {
		t.Fatalf("resize not applied: %+v", h.apply.resized)
	}
}

func TestNoGeometryWhenDaemonDeclines(t *testing.T) {
	h := newHarness(t)
	h.beginDrag()

	h.src.buttons = 0
	h.tr.Poll()
	if len(h.apply.moved) != 0 || len(h.apply.resized) != 0 {
		t.Fatalf("declined stop must leave the window alone")
	}
}

func TestStopErrorLeavesWindowAlone(t *testing.T) {
	h := newHarness(t)
	h.sink.replyErr = errors.New("daemon gone")
	h.beginDrag()

	h.src.buttons = 0
	h.tr.Poll()
	if len(h.apply.moved) != 0 || len(h.apply.resized) != 0 {
		t.Fatalf("failed stop call must not touch the window")
	}
	if h.tr.InDrag() {
		t.Fatalf("tracker must go idle even when the stop call fails")
	}
}

func TestWindowClosedMidDrag(t *testing.T) {
	h := newHarness(t)
	h.beginDrag()

	delete(h.src.geoms, "kitty:kitty:0x2a")
	h.clock = h.clock.Add(50 * time.Millisecond)
	h.tr.Poll()

	if len(h.sink.closed) != 1 || h.sink.closed[0] != "kitty:kitty:0x2a" {
		t.Fatalf("close notification missing: %+v", h.sink.closed)
	}
	if len(h.sink.stopped) != 0 {
		t.Fatalf("a vanished window must not produce a dragStopped")
	}
	if h.tr.InDrag() {
		t.Fatalf("tracker must be idle")
	}
}

func TestFullscreenCancelsAndLatches(t *testing.T) {
	h := newHarness(t)
	h.beginDrag()

	h.src.fullscreen["kitty:kitty:0x2a"] = true
	h.clock = h.clock.Add(50 * time.Millisecond)
	h.tr.Poll()

	if len(h.sink.stopped) != 1 || !h.sink.stopped[0].Cancelled {
		t.Fatalf("fullscreen must cancel the drag: %+v", h.sink.stopped)
	}

	// While the button stays held the latch suppresses a restart.
	h.src.fullscreen["kitty:kitty:0x2a"] = false
	g := h.src.geoms[h.src.active]
	g.X += 30
	h.src.geoms[h.src.active] = g
	h.clock = h.clock.Add(50 * time.Millisecond)
	h.tr.Poll()
	h.clock = h.clock.Add(50 * time.Millisecond)
	h.tr.Poll()
	if len(h.sink.started) != 1 {
		t.Fatalf("latched tracker must not restart the drag")
	}

	// Releasing and pressing again re-arms detection.
	h.src.buttons = 0
	h.tr.Poll()
	h.beginDrag()
	if len(h.sink.started) != 2 {
		t.Fatalf("release must clear the latch, got %d starts", len(h.sink.started))
	}
}

func TestFiltersSkipUnsuitableWindows(t *testing.T) {
	h := newHarness(t)

	h.src.transient["kitty:kitty:0x2a"] = true
	h.beginDrag()
	if len(h.sink.started) != 0 {
		t.Fatalf("transient window must be skipped")
	}
	h.src.transient["kitty:kitty:0x2a"] = false
	h.src.buttons = 0
	h.tr.Poll()

	// Below the minimum size.
	h.src.geoms["kitty:kitty:0x2a"] = zone.Rect{X: 100, Y: 100, Width: 80, Height: 600}
	h.beginDrag()
	if len(h.sink.started) != 0 {
		t.Fatalf("undersized window must be skipped")
	}
	h.src.buttons = 0
	h.tr.Poll()

	// Docks, menus and other non-normal windows.
	h.src.geoms["kitty:kitty:0x2a"] = zone.Rect{X: 100, Y: 100, Width: 800, Height: 600}
	h.src.abnormal["kitty:kitty:0x2a"] = true
	h.beginDrag()
	if len(h.sink.started) != 0 {
		t.Fatalf("non-normal window must be skipped")
	}
}

func TestSetFiltersTakesEffect(t *testing.T) {
	h := newHarness(t)
	h.src.transient["kitty:kitty:0x2a"] = true

	h.tr.SetFilters(Filters{SkipTransients: false})
	h.beginDrag()
	if len(h.sink.started) != 1 {
		t.Fatalf("relaxed filters must allow the drag")
	}
}

func TestPointerErrorIsTolerated(t *testing.T) {
	h := newHarness(t)
	h.beginDrag()

	h.src.pointerErr = errors.New("connection hiccup")
	h.clock = h.clock.Add(50 * time.Millisecond)
	h.tr.Poll()
	if h.tr.InDrag() != true {
		t.Fatalf("a pointer error must not end the drag")
	}

	h.src.pointerErr = nil
	h.src.buttons = 0
	h.tr.Poll()
	if len(h.sink.stopped) != 1 {
		t.Fatalf("drag must stop normally after the error clears")
	}
}
