package main

import (
	"log/slog"
	"sync"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/plasmazones/plasmazones/internal/bus"
	"github.com/plasmazones/plasmazones/internal/tracking"
	"github.com/plasmazones/plasmazones/internal/x11"
	"github.com/plasmazones/plasmazones/internal/zone"
)

func wireGeometry(r zone.Rect) bus.Geometry {
	return bus.Geometry{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

func rectOf(g bus.Geometry) zone.Rect {
	return zone.Rect{X: g.X, Y: g.Y, Width: g.Width, Height: g.Height}
}

// windowRegistry maps bus window ids back to X windows. Tracking replies
// carry stable class:resource ids, so both namespaces resolve. When two
// windows share a class the stable entry points at the most recently
// mapped one, matching the tracking table's one-record-per-stable-id
// collapse.
type windowRegistry struct {
	mu       sync.RWMutex
	byID     map[string]xproto.Window
	byStable map[string]xproto.Window
	order    []string // full ids, bottom to top
}

func newWindowRegistry() *windowRegistry {
	return &windowRegistry{
		byID:     make(map[string]xproto.Window),
		byStable: make(map[string]xproto.Window),
	}
}

func (r *windowRegistry) add(id string, win xproto.Window) {
	r.mu.Lock()
	r.byID[id] = win
	r.byStable[tracking.StableID(id)] = win
	r.mu.Unlock()
}

func (r *windowRegistry) remove(id string) {
	r.mu.Lock()
	win, ok := r.byID[id]
	delete(r.byID, id)
	stable := tracking.StableID(id)
	if ok && r.byStable[stable] == win {
		delete(r.byStable, stable)
	}
	r.mu.Unlock()
}

func (r *windowRegistry) lookup(id string) (xproto.Window, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if win, ok := r.byID[id]; ok {
		return win, true
	}
	win, ok := r.byStable[id]
	return win, ok
}

func (r *windowRegistry) known(id string) bool {
	r.mu.RLock()
	_, ok := r.byID[id]
	r.mu.RUnlock()
	return ok
}

func (r *windowRegistry) setOrder(ids []string) {
	r.mu.Lock()
	r.order = ids
	r.mu.Unlock()
}

func (r *windowRegistry) stackingStableIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, tracking.StableID(id))
	}
	return out
}

func (r *windowRegistry) fullIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	return out
}

// monitorCache is the agent's view of the output table, refreshed by the
// RandR watcher.
type monitorCache struct {
	mu   sync.RWMutex
	mons []x11.Monitor
}

func (c *monitorCache) update(mons []x11.Monitor) {
	c.mu.Lock()
	c.mons = mons
	c.mu.Unlock()
}

func (c *monitorCache) screenAt(x, y int) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.mons {
		if m.Geometry.Contains(x, y) {
			return m.StableID, true
		}
	}
	return "", false
}

func (c *monitorCache) primary() (x11.Monitor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.mons) == 0 {
		return x11.Monitor{}, false
	}
	return c.mons[0], true
}

// xWindows adapts the X connection to the tracker and navigation
// interfaces. It resolves bus ids through the registry and keeps the
// registry warm for windows it discovers via the focus path.
type xWindows struct {
	conn *x11.Connection
	reg  *windowRegistry
	mons *monitorCache
	log  *slog.Logger
}

func (x *xWindows) Pointer() (int, int, int, int, error) {
	ps, err := x.conn.QueryPointer()
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return ps.X, ps.Y, ps.Modifiers, ps.Buttons, nil
}

func (x *xWindows) ActiveWindow() (string, bool) {
	win, err := x.conn.ActiveWindow()
	if err != nil || win == 0 {
		return "", false
	}
	id := x.conn.WindowID(win)
	x.reg.add(id, win)
	return id, true
}

func (x *xWindows) WindowGeometry(id string) (zone.Rect, bool) {
	win, ok := x.reg.lookup(id)
	if !ok {
		return zone.Rect{}, false
	}
	g, err := x.conn.WindowGeometry(win)
	if err != nil {
		return zone.Rect{}, false
	}
	return g, true
}

func (x *xWindows) WindowClass(id string) string {
	win, ok := x.reg.lookup(id)
	if !ok {
		return ""
	}
	return x.conn.WindowClass(win)
}

func (x *xWindows) IsTransient(id string) bool {
	win, ok := x.reg.lookup(id)
	return ok && x.conn.IsTransient(win)
}

func (x *xWindows) IsNormalWindow(id string) bool {
	win, ok := x.reg.lookup(id)
	return ok && x.conn.IsNormalWindow(win)
}

func (x *xWindows) IsFullscreen(id string) bool {
	win, ok := x.reg.lookup(id)
	return ok && x.conn.IsFullscreen(win)
}

func (x *xWindows) ScreenOf(id string) (string, bool) {
	g, ok := x.WindowGeometry(id)
	if !ok {
		return "", false
	}
	cx, cy := g.Center()
	return x.mons.screenAt(cx, cy)
}

func (x *xWindows) MoveResize(id string, g zone.Rect) {
	win, ok := x.reg.lookup(id)
	if !ok {
		x.log.Warn("move-resize for unknown window", "window", id)
		return
	}
	if err := x.conn.MoveResizeWindow(win, g); err != nil {
		x.log.Warn("move-resize failed", "window", id, "error", err)
	}
}

func (x *xWindows) Resize(id string, width, height int) {
	win, ok := x.reg.lookup(id)
	if !ok {
		return
	}
	if err := x.conn.ResizeWindow(win, width, height); err != nil {
		x.log.Warn("resize failed", "window", id, "error", err)
	}
}

func (x *xWindows) Focus(id string) {
	win, ok := x.reg.lookup(id)
	if !ok {
		x.log.Warn("focus for unknown window", "window", id)
		return
	}
	if err := x.conn.FocusWindow(win); err != nil {
		x.log.Warn("focus failed", "window", id, "error", err)
	}
}

func (x *xWindows) StackingOrder() []string {
	return x.reg.stackingStableIDs()
}

// busSink feeds the tracker's drag stream to the daemon. dragStopped
// blocks for the commit decision; everything else is fire-and-forget.
type busSink struct {
	client *bus.Client
	log    *slog.Logger
}

func (s *busSink) DragStarted(ev bus.DragStarted) {
	if err := s.client.Emit(bus.MethodDragStarted, ev); err != nil {
		s.log.Warn("dragStarted lost", "error", err)
	}
}

func (s *busSink) DragMoved(ev bus.DragMoved) {
	if err := s.client.Emit(bus.MethodDragMoved, ev); err != nil {
		s.log.Warn("dragMoved lost", "error", err)
	}
}

func (s *busSink) DragStopped(ev bus.DragStopped) (bus.DragStopReply, error) {
	var reply bus.DragStopReply
	err := s.client.Call(bus.MethodDragStopped, ev, &reply)
	return reply, err
}

func (s *busSink) WindowClosedDuringDrag(windowID string) {
	if err := s.client.Emit(bus.MethodWindowClose, bus.WindowRef{WindowID: windowID}); err != nil {
		s.log.Warn("windowClosed lost", "error", err)
	}
}

// busDaemon is the navigation executor's view of the daemon. Only the
// zone-topology and state queries are synchronous calls; tracking-table
// updates are events.
type busDaemon struct {
	client *bus.Client
	log    *slog.Logger
}

func (d *busDaemon) emit(method string, payload any) {
	if err := d.client.Emit(method, payload); err != nil {
		d.log.Warn("event lost", "method", method, "error", err)
	}
}

func (d *busDaemon) call(method string, payload, result any) bool {
	if err := d.client.Call(method, payload, result); err != nil {
		d.log.Warn("call failed", "method", method, "error", err)
		return false
	}
	return true
}

func (d *busDaemon) ZoneForWindow(windowID string) (string, bool) {
	var reply bus.StringReply
	if !d.call(bus.MethodGetZoneForWindow, bus.WindowRef{WindowID: windowID}, &reply) {
		return "", false
	}
	return reply.Value, reply.Value != ""
}

func (d *busDaemon) AdjacentZone(zoneID, screen, direction string) (bus.ZoneInfo, bool) {
	var reply bus.ZoneListReply
	q := bus.ZoneQuery{ZoneID: zoneID, Screen: screen, Direction: direction}
	if !d.call(bus.MethodGetAdjacentZone, q, &reply) || len(reply.Zones) == 0 {
		return bus.ZoneInfo{}, false
	}
	return reply.Zones[0], true
}

func (d *busDaemon) FirstZoneInDirection(screen, direction string) (bus.ZoneInfo, bool) {
	var reply bus.ZoneListReply
	q := bus.ZoneQuery{Screen: screen, Direction: direction}
	if !d.call(bus.MethodGetFirstZoneInDirection, q, &reply) || len(reply.Zones) == 0 {
		return bus.ZoneInfo{}, false
	}
	return reply.Zones[0], true
}

func (d *busDaemon) ZoneGeometryForScreen(zoneID, screen string) (bus.Geometry, bool) {
	var reply bus.GeometryReply
	q := bus.ZoneQuery{ZoneID: zoneID, Screen: screen}
	if !d.call(bus.MethodGetZoneGeometryForScreen, q, &reply) {
		return bus.Geometry{}, false
	}
	return reply.Geometry, reply.OK
}

func (d *busDaemon) WindowsInZone(zoneID string) []string {
	var reply bus.WindowListReply
	if !d.call(bus.MethodGetWindowsInZone, bus.ZoneQuery{ZoneID: zoneID}, &reply) {
		return nil
	}
	return reply.Windows
}

func (d *busDaemon) WindowSnapped(windowID, zoneID, screen string) {
	d.emit(bus.MethodWindowSnapped, bus.WindowSnap{WindowID: windowID, ZoneID: zoneID, Screen: screen})
}

func (d *busDaemon) WindowUnsnapped(windowID string) {
	d.emit(bus.MethodWindowUnsnapped, bus.WindowRef{WindowID: windowID})
}

func (d *busDaemon) WindowUnsnappedForFloat(windowID string) {
	d.emit(bus.MethodWindowUnsnappedForFloat, bus.WindowRef{WindowID: windowID})
}

func (d *busDaemon) SetWindowFloating(windowID string, floating bool) {
	d.emit(bus.MethodSetWindowFloating, bus.WindowFlag{WindowID: windowID, Value: floating})
}

func (d *busDaemon) IsWindowFloating(windowID string) bool {
	var reply bus.BoolReply
	return d.call(bus.MethodQueryWindowFloating, bus.WindowRef{WindowID: windowID}, &reply) && reply.Value
}

func (d *busDaemon) StorePreSnapGeometry(windowID string, g bus.Geometry) {
	d.emit(bus.MethodStorePreSnapGeometry, bus.WindowGeometry{WindowID: windowID, Geometry: g})
}

func (d *busDaemon) ValidatedPreSnapGeometry(windowID string) (bus.Geometry, bool) {
	var reply bus.GeometryReply
	if !d.call(bus.MethodGetPreSnapGeometry, bus.WindowRef{WindowID: windowID}, &reply) {
		return bus.Geometry{}, false
	}
	return reply.Geometry, reply.OK
}

func (d *busDaemon) ClearPreSnapGeometry(windowID string) {
	d.emit(bus.MethodClearPreSnapGeometry, bus.WindowRef{WindowID: windowID})
}

func (d *busDaemon) PreFloatZone(windowID string) (string, bool) {
	var reply bus.StringReply
	if !d.call(bus.MethodGetPreFloatZone, bus.WindowRef{WindowID: windowID}, &reply) {
		return "", false
	}
	return reply.Value, reply.Value != ""
}

func (d *busDaemon) ClearPreFloatZone(windowID string) {
	d.emit(bus.MethodClearPreFloatZone, bus.WindowRef{WindowID: windowID})
}

func (d *busDaemon) ReportFeedback(fb bus.NavFeedback) {
	d.emit(bus.MethodReportNavFeedback, fb)
}
