package nav

import (
	"encoding/json"
	"testing"

	"github.com/plasmazones/plasmazones/internal/bus"
	"github.com/plasmazones/plasmazones/internal/zone"
)

type adjKey struct {
	zoneID    string
	direction string
}

type fakeDaemon struct {
	zoneOf    map[string]string
	adjacent  map[adjKey]bus.ZoneInfo
	firstZone map[string]bus.ZoneInfo
	zoneGeom  map[string]bus.Geometry
	inZone    map[string][]string
	floating  map[string]bool
	preSnap   map[string]bus.Geometry
	preFloat  map[string]string

	snapped   []bus.WindowSnap
	unsnapped []string
	unsnapFl  []string
	setFloat  []bus.WindowFlag
	stored    map[string]bus.Geometry
	cleared   []string
	feedback  []bus.NavFeedback
}

func newFakeDaemon() *fakeDaemon {
	return &fakeDaemon{
		zoneOf:    map[string]string{},
		adjacent:  map[adjKey]bus.ZoneInfo{},
		firstZone: map[string]bus.ZoneInfo{},
		zoneGeom:  map[string]bus.Geometry{},
		inZone:    map[string][]string{},
		floating:  map[string]bool{},
		preSnap:   map[string]bus.Geometry{},
		preFloat:  map[string]string{},
		stored:    map[string]bus.Geometry{},
	}
}

func (f *fakeDaemon) ZoneForWindow(id string) (string, bool) {
	z, ok := f.zoneOf[id]
	return z, ok
}

func (f *fakeDaemon) AdjacentZone(zoneID, screen, dir string) (bus.ZoneInfo, bool) {
	z, ok := f.adjacent[adjKey{zoneID, dir}]
	return z, ok
}

func (f *fakeDaemon) FirstZoneInDirection(screen, dir string) (bus.ZoneInfo, bool) {
	z, ok := f.firstZone[dir]
	return z, ok
}

func (f *fakeDaemon) ZoneGeometryForScreen(zoneID, screen string) (bus.Geometry, bool) {
	g, ok := f.zoneGeom[zoneID]
	return g, ok
}

func (f *fakeDaemon) WindowsInZone(zoneID string) []string { return f.inZone[zoneID] }

func (f *fakeDaemon) WindowSnapped(id, zoneID, screen string) {
	f.snapped = append(f.snapped, bus.WindowSnap{WindowID: id, ZoneID: zoneID, Screen: screen})
	f.zoneOf[id] = zoneID
}

func (f *fakeDaemon) WindowUnsnapped(id string) {
	f.unsnapped = append(f.unsnapped, id)
	delete(f.zoneOf, id)
}

func (f *fakeDaemon) WindowUnsnappedForFloat(id string) {
	f.unsnapFl = append(f.unsnapFl, id)
	f.preFloat[id] = f.zoneOf[id]
	delete(f.zoneOf, id)
}

func (f *fakeDaemon) SetWindowFloating(id string, v bool) {
	f.setFloat = append(f.setFloat, bus.WindowFlag{WindowID: id, Value: v})
	f.floating[id] = v
}

func (f *fakeDaemon) IsWindowFloating(id string) bool { return f.floating[id] }

func (f *fakeDaemon) StorePreSnapGeometry(id string, g bus.Geometry) {
	if _, exists := f.stored[id]; !exists {
		f.stored[id] = g
	}
}

func (f *fakeDaemon) ValidatedPreSnapGeometry(id string) (bus.Geometry, bool) {
	g, ok := f.preSnap[id]
	return g, ok
}

func (f *fakeDaemon) ClearPreSnapGeometry(id string) { f.cleared = append(f.cleared, id) }

func (f *fakeDaemon) PreFloatZone(id string) (string, bool) {
	z, ok := f.preFloat[id]
	return z, ok
}

func (f *fakeDaemon) ClearPreFloatZone(id string) { delete(f.preFloat, id) }

func (f *fakeDaemon) ReportFeedback(fb bus.NavFeedback) { f.feedback = append(f.feedback, fb) }

func (f *fakeDaemon) lastFeedback(t *testing.T) bus.NavFeedback {
	t.Helper()
	if len(f.feedback) == 0 {
		t.Fatalf("no feedback reported")
	}
	return f.feedback[len(f.feedback)-1]
}

type fakeComp struct {
	active   string
	screens  map[string]string
	geoms    map[string]zone.Rect
	stacking []string

	moved   map[string]zone.Rect
	focused []string
}

func newFakeComp() *fakeComp {
	return &fakeComp{
		screens: map[string]string{},
		geoms:   map[string]zone.Rect{},
		moved:   map[string]zone.Rect{},
	}
}

func (f *fakeComp) ActiveWindow() (string, bool) { return f.active, f.active != "" }

func (f *fakeComp) WindowGeometry(id string) (zone.Rect, bool) {
	g, ok := f.geoms[id]
	return g, ok
}

func (f *fakeComp) ScreenOf(id string) (string, bool) {
	s, ok := f.screens[id]
	return s, ok
}

func (f *fakeComp) MoveResize(id string, g zone.Rect) { f.moved[id] = g }
func (f *fakeComp) Focus(id string)                   { f.focused = append(f.focused, id) }
func (f *fakeComp) StackingOrder() []string           { return f.stacking }

// newHarness builds a two-zone scene: win A snapped in z1, z2 to its
// right.
func newHarness() (*fakeDaemon, *fakeComp, *Executor) {
	d := newFakeDaemon()
	c := newFakeComp()

	c.active = "a"
	c.screens["a"] = "DP-1"
	c.geoms["a"] = zone.Rect{X: 10, Y: 10, Width: 400, Height: 300}

	d.zoneOf["a"] = "z1"
	d.zoneGeom["z1"] = bus.Geometry{X: 0, Y: 0, Width: 960, Height: 1080}
	d.zoneGeom["z2"] = bus.Geometry{X: 960, Y: 0, Width: 960, Height: 1080}
	d.adjacent[adjKey{"z1", "right"}] = bus.ZoneInfo{ZoneID: "z2", Number: 2, Geometry: d.zoneGeom["z2"]}
	d.adjacent[adjKey{"z2", "left"}] = bus.ZoneInfo{ZoneID: "z1", Number: 1, Geometry: d.zoneGeom["z1"]}
	d.inZone["z1"] = []string{"a"}

	return d, c, New(d, c, nil)
}

func TestMoveToAdjacentZone(t *testing.T) {
	d, c, ex := newHarness()

	ex.HandleDirective("navigate:right")

	want := zone.Rect{X: 960, Y: 0, Width: 960, Height: 1080}
	if c.moved["a"] != want {
		t.Fatalf("window not moved to z2: %+v", c.moved["a"])
	}
	if d.stored["a"] != (bus.Geometry{X: 10, Y: 10, Width: 400, Height: 300}) {
		t.Fatalf("pre-snap geometry not stored: %+v", d.stored["a"])
	}
	if len(d.snapped) != 1 || d.snapped[0].ZoneID != "z2" || d.snapped[0].Screen != "DP-1" {
		t.Fatalf("snap not recorded: %+v", d.snapped)
	}
	fb := d.lastFeedback(t)
	if !fb.Success || fb.Action != "navigate" {
		t.Fatalf("bad feedback: %+v", fb)
	}
}

func TestMoveUnsnappedUsesEdgeZone(t *testing.T) {
	d, c, ex := newHarness()
	delete(d.zoneOf, "a")
	d.firstZone["left"] = bus.ZoneInfo{ZoneID: "z1", Number: 1, Geometry: d.zoneGeom["z1"]}

	ex.Move("left")

	if c.moved["a"].Width != 960 || c.moved["a"].X != 0 {
		t.Fatalf("edge zone not used: %+v", c.moved["a"])
	}
	if !d.lastFeedback(t).Success {
		t.Fatalf("edge-zone move must succeed")
	}
}

func TestMoveAtEdgeFails(t *testing.T) {
	d, c, ex := newHarness()

	ex.Move("left")

	if len(c.moved) != 0 {
		t.Fatalf("window must not move past the edge")
	}
	fb := d.lastFeedback(t)
	if fb.Success || fb.Reason != "no_adjacent_zone" {
		t.Fatalf("bad feedback: %+v", fb)
	}
}

func TestSwapExchangesWindows(t *testing.T) {
	d, c, ex := newHarness()
	d.zoneOf["b"] = "z2"
	d.inZone["z2"] = []string{"b"}
	c.geoms["b"] = zone.Rect{X: 1000, Y: 50, Width: 500, Height: 400}
	c.stacking = []string{"a", "b"}

	ex.Swap("right")

	if c.moved["a"].X != 960 {
		t.Fatalf("active window not in z2: %+v", c.moved["a"])
	}
	if c.moved["b"].X != 0 || c.moved["b"].Width != 960 {
		t.Fatalf("neighbor not in z1: %+v", c.moved["b"])
	}
	// Both windows keep a pre-snap geometry for restore.
	if _, ok := d.stored["a"]; !ok {
		t.Fatalf("pre-snap for active missing")
	}
	if _, ok := d.stored["b"]; !ok {
		t.Fatalf("pre-snap for neighbor missing")
	}
	if len(d.snapped) != 2 {
		t.Fatalf("both snaps must be recorded, got %+v", d.snapped)
	}
	fb := d.lastFeedback(t)
	if !fb.Success || fb.Reason != "" {
		t.Fatalf("bad feedback: %+v", fb)
	}
}

func TestSwapEmptyNeighborDegeneratesToMove(t *testing.T) {
	d, c, ex := newHarness()

	ex.Swap("right")

	if c.moved["a"].X != 960 {
		t.Fatalf("window must move into the empty neighbor")
	}
	fb := d.lastFeedback(t)
	if !fb.Success || fb.Action != "swap" || fb.Reason != "moved_to_empty" {
		t.Fatalf("bad feedback: %+v", fb)
	}
}

func TestSwapSkipsFloatingNeighbor(t *testing.T) {
	d, c, ex := newHarness()
	d.zoneOf["b"] = "z2"
	d.inZone["z2"] = []string{"b"}
	d.floating["b"] = true
	c.stacking = []string{"a", "b"}

	ex.Swap("right")

	// The floating occupant does not count; swap degenerates to move.
	if _, ok := c.moved["b"]; ok {
		t.Fatalf("floating window must not be swapped")
	}
	if d.lastFeedback(t).Reason != "moved_to_empty" {
		t.Fatalf("bad feedback: %+v", d.lastFeedback(t))
	}
}

func TestRestoreAppliesAndClears(t *testing.T) {
	d, c, ex := newHarness()
	d.preSnap["a"] = bus.Geometry{X: 10, Y: 10, Width: 400, Height: 300}

	ex.Restore()

	if c.moved["a"] != (zone.Rect{X: 10, Y: 10, Width: 400, Height: 300}) {
		t.Fatalf("pre-snap geometry not applied: %+v", c.moved["a"])
	}
	if len(d.unsnapped) != 1 || len(d.cleared) != 1 {
		t.Fatalf("restore must unsnap and reclaim: %v %v", d.unsnapped, d.cleared)
	}
}

func TestRestoreWithoutGeometryFails(t *testing.T) {
	d, c, ex := newHarness()

	ex.Restore()

	if len(c.moved) != 0 {
		t.Fatalf("nothing to restore, nothing must move")
	}
	if d.lastFeedback(t).Reason != "no_presnap_geometry" {
		t.Fatalf("bad feedback: %+v", d.lastFeedback(t))
	}
}

func TestFloatToggleRoundTrip(t *testing.T) {
	d, c, ex := newHarness()
	d.preSnap["a"] = bus.Geometry{X: 10, Y: 10, Width: 400, Height: 300}

	// Snapped -> floating: zone remembered, pre-snap geometry applied.
	ex.ToggleFloat()
	if len(d.unsnapFl) != 1 {
		t.Fatalf("unsnap-for-float not recorded")
	}
	if !d.floating["a"] {
		t.Fatalf("window must be floating")
	}
	if c.moved["a"].Width != 400 {
		t.Fatalf("pre-snap geometry not applied: %+v", c.moved["a"])
	}
	if d.preFloat["a"] != "z1" {
		t.Fatalf("pre-float zone not remembered: %q", d.preFloat["a"])
	}

	// Floating -> snapped: back into the remembered zone.
	ex.ToggleFloat()
	if d.floating["a"] {
		t.Fatalf("window must not be floating anymore")
	}
	if c.moved["a"].Width != 960 || c.moved["a"].X != 0 {
		t.Fatalf("window not re-snapped into z1: %+v", c.moved["a"])
	}
	if _, ok := d.preFloat["a"]; ok {
		t.Fatalf("pre-float zone must be cleared")
	}
	if d.zoneOf["a"] != "z1" {
		t.Fatalf("snap not recorded")
	}
}

func TestRotateSkipsFloatingAndMissing(t *testing.T) {
	d, c, ex := newHarness()
	c.geoms["b"] = zone.Rect{X: 0, Y: 0, Width: 100, Height: 100}
	d.floating["b"] = true

	plan := bus.RotatePlan{Moves: []bus.WindowGeometry{
		{WindowID: "a", Geometry: bus.Geometry{X: 960, Width: 960, Height: 1080}},
		{WindowID: "b", Geometry: bus.Geometry{X: 0, Width: 960, Height: 1080}},
		{WindowID: "ghost", Geometry: bus.Geometry{X: 0, Width: 10, Height: 10}},
	}}
	ex.Rotate(plan)

	if c.moved["a"].X != 960 {
		t.Fatalf("plan entry for a not applied")
	}
	if _, ok := c.moved["b"]; ok {
		t.Fatalf("floating window must be skipped")
	}
	if _, ok := c.moved["ghost"]; ok {
		t.Fatalf("missing window must be skipped")
	}
}

func TestCycleWrapsInStackingOrder(t *testing.T) {
	d, c, ex := newHarness()
	d.inZone["z1"] = []string{"a", "b", "c"}
	d.zoneOf["b"], d.zoneOf["c"] = "z1", "z1"
	c.geoms["b"] = zone.Rect{Width: 10, Height: 10}
	c.geoms["c"] = zone.Rect{Width: 10, Height: 10}
	c.stacking = []string{"b", "a", "c"}

	ex.Cycle(true)
	if got := c.focused[len(c.focused)-1]; got != "c" {
		t.Fatalf("forward from a must focus c, got %q", got)
	}

	// Backward from the bottom wraps to the top.
	c.active = "b"
	c.screens["b"] = "DP-1"
	ex.Cycle(false)
	if got := c.focused[len(c.focused)-1]; got != "c" {
		t.Fatalf("backward from b must wrap to c, got %q", got)
	}
}

func TestFocusAdjacentFrontmost(t *testing.T) {
	d, c, ex := newHarness()
	d.zoneOf["b"], d.zoneOf["x"] = "z2", "z2"
	d.inZone["z2"] = []string{"b", "x"}
	c.geoms["b"] = zone.Rect{Width: 10, Height: 10}
	c.geoms["x"] = zone.Rect{Width: 10, Height: 10}
	c.stacking = []string{"a", "b", "x"}

	ex.Focus("right")
	if len(c.focused) != 1 || c.focused[0] != "x" {
		t.Fatalf("frontmost neighbor must be focused: %v", c.focused)
	}
}

func TestHandleSignalDispatch(t *testing.T) {
	d, c, ex := newHarness()

	payload, _ := json.Marshal(bus.NavCommand{Directive: "navigate:right"})
	ex.HandleSignal(bus.SignalMoveWindowToZone, payload)
	if c.moved["a"].X != 960 {
		t.Fatalf("signal dispatch did not move the window")
	}

	d.preSnap["a"] = bus.Geometry{X: 10, Y: 10, Width: 400, Height: 300}
	ex.HandleSignal(bus.SignalRestoreWindow, nil)
	if len(d.unsnapped) != 1 {
		t.Fatalf("restore signal not handled")
	}
}

func TestBadDirectiveReportsFailure(t *testing.T) {
	d, _, ex := newHarness()
	ex.HandleDirective("frobnicate")
	if d.lastFeedback(t).Reason != "bad_directive" {
		t.Fatalf("bad directive must be reported: %+v", d.lastFeedback(t))
	}
}
