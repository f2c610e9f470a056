// Package nav executes keyboard navigation commands on the compositor
// side: move, focus, swap, restore, float toggle, rotate plans and
// in-zone cycling. Zone topology questions go to the daemon; window
// geometry changes stay local.
package nav

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/plasmazones/plasmazones/internal/bus"
	"github.com/plasmazones/plasmazones/internal/zone"
)

// Daemon is the zone-topology and tracking surface the executor queries.
// getAdjacentZone and getZoneGeometryForScreen are the only synchronous
// calls behind it; everything else is fire-and-forget.
type Daemon interface {
	ZoneForWindow(windowID string) (string, bool)
	AdjacentZone(zoneID, screen, direction string) (bus.ZoneInfo, bool)
	FirstZoneInDirection(screen, direction string) (bus.ZoneInfo, bool)
	ZoneGeometryForScreen(zoneID, screen string) (bus.Geometry, bool)
	WindowsInZone(zoneID string) []string

	WindowSnapped(windowID, zoneID, screen string)
	WindowUnsnapped(windowID string)
	WindowUnsnappedForFloat(windowID string)
	SetWindowFloating(windowID string, floating bool)
	IsWindowFloating(windowID string) bool

	StorePreSnapGeometry(windowID string, g bus.Geometry)
	ValidatedPreSnapGeometry(windowID string) (bus.Geometry, bool)
	ClearPreSnapGeometry(windowID string)
	PreFloatZone(windowID string) (string, bool)
	ClearPreFloatZone(windowID string)

	ReportFeedback(bus.NavFeedback)
}

// Compositor is the local window surface.
type Compositor interface {
	ActiveWindow() (string, bool)
	WindowGeometry(windowID string) (zone.Rect, bool)
	ScreenOf(windowID string) (string, bool)
	MoveResize(windowID string, g zone.Rect)
	Focus(windowID string)
	// StackingOrder lists managed windows bottom to top.
	StackingOrder() []string
}

// Executor runs navigation commands. Single-threaded on the agent loop.
type Executor struct {
	daemon Daemon
	comp   Compositor
	log    *slog.Logger
}

// New builds an executor.
func New(daemon Daemon, comp Compositor, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{daemon: daemon, comp: comp, log: log.With("component", "nav")}
}

// HandleDirective parses and runs one directive string. Unknown
// directives report failure through the feedback channel rather than an
// error: the shortcut source has no better recovery than the OSD.
func (e *Executor) HandleDirective(directive string) {
	action, arg, ok := splitDirective(directive)
	if !ok {
		e.log.Warn("unparseable nav directive", "directive", directive)
		e.daemon.ReportFeedback(bus.NavFeedback{Action: "nav", Reason: "bad_directive"})
		return
	}
	switch action {
	case "navigate":
		e.Move(arg)
	case "swap":
		e.Swap(arg)
	case "cycle":
		e.Cycle(arg == "forward")
	case "focus":
		e.Focus(arg)
	default:
		e.daemon.ReportFeedback(bus.NavFeedback{Action: action, Reason: "bad_directive"})
	}
}

// HandleSignal dispatches one daemon broadcast to the matching command.
func (e *Executor) HandleSignal(method string, payload json.RawMessage) {
	var cmd bus.NavCommand
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &cmd); err != nil {
			e.log.Warn("bad nav signal payload", "method", method, "error", err)
			return
		}
	}
	switch method {
	case bus.SignalMoveWindowToZone, bus.SignalSwapWindows, bus.SignalCycleWindowsInZone:
		e.HandleDirective(cmd.Directive)
	case bus.SignalFocusWindowInZone:
		_, arg, _ := splitDirective(cmd.Directive)
		e.Focus(arg)
	case bus.SignalRestoreWindow:
		e.Restore()
	case bus.SignalToggleWindowFloat:
		e.ToggleFloat()
	case bus.SignalRotateWindows:
		var plan bus.RotatePlan
		if err := json.Unmarshal(payload, &plan); err != nil {
			e.log.Warn("bad rotate plan", "error", err)
			return
		}
		e.Rotate(plan)
	}
}

// Move snaps the active window to the adjacent zone in a direction, or to
// the direction's edge zone when the window is not snapped yet.
func (e *Executor) Move(direction string) {
	id, screen, ok := e.activeOnScreen("navigate")
	if !ok {
		return
	}
	target, reason := e.targetZone(id, screen, direction)
	if reason != "" {
		e.daemon.ReportFeedback(bus.NavFeedback{Action: "navigate", Reason: reason})
		return
	}
	e.snapTo(id, screen, target)
	e.daemon.ReportFeedback(bus.NavFeedback{Success: true, Action: "navigate"})
}

// Focus activates the frontmost window in the adjacent zone. Unlike Move
// it requires the active window to be snapped: there is no edge-zone
// fallback for focus.
func (e *Executor) Focus(direction string) {
	id, screen, ok := e.activeOnScreen("focus")
	if !ok {
		return
	}
	zoneID, snapped := e.daemon.ZoneForWindow(id)
	if !snapped {
		e.daemon.ReportFeedback(bus.NavFeedback{Action: "focus", Reason: "not_snapped"})
		return
	}
	neighbor, ok := e.daemon.AdjacentZone(zoneID, screen, direction)
	if !ok {
		e.daemon.ReportFeedback(bus.NavFeedback{Action: "focus", Reason: "no_adjacent_zone"})
		return
	}
	front, ok := e.frontmostIn(neighbor.ZoneID, "")
	if !ok {
		e.daemon.ReportFeedback(bus.NavFeedback{Action: "focus", Reason: "zone_empty"})
		return
	}
	e.comp.Focus(front)
	e.daemon.ReportFeedback(bus.NavFeedback{Success: true, Action: "focus"})
}

// Swap exchanges zones with the neighbor's frontmost window. An empty
// neighbor degenerates to Move.
func (e *Executor) Swap(direction string) {
	id, screen, ok := e.activeOnScreen("swap")
	if !ok {
		return
	}
	zoneID, snapped := e.daemon.ZoneForWindow(id)
	if !snapped {
		e.daemon.ReportFeedback(bus.NavFeedback{Action: "swap", Reason: "not_snapped"})
		return
	}
	neighbor, ok := e.daemon.AdjacentZone(zoneID, screen, direction)
	if !ok {
		e.daemon.ReportFeedback(bus.NavFeedback{Action: "swap", Reason: "no_adjacent_zone"})
		return
	}

	other, ok := e.frontmostIn(neighbor.ZoneID, id)
	if !ok {
		e.snapTo(id, screen, neighbor)
		e.daemon.ReportFeedback(bus.NavFeedback{Success: true, Action: "swap", Reason: "moved_to_empty"})
		return
	}

	ownGeom, ok := e.daemon.ZoneGeometryForScreen(zoneID, screen)
	if !ok {
		e.daemon.ReportFeedback(bus.NavFeedback{Action: "swap", Reason: "zone_gone"})
		return
	}

	e.snapTo(id, screen, neighbor)
	if g, ok := e.comp.WindowGeometry(other); ok {
		e.daemon.StorePreSnapGeometry(other, geometryFromRect(g))
	}
	e.comp.MoveResize(other, rectFromGeometry(ownGeom))
	e.daemon.WindowSnapped(other, zoneID, screen)
	e.daemon.ReportFeedback(bus.NavFeedback{Success: true, Action: "swap"})
}

// Restore puts the active window back at its pre-snap geometry.
func (e *Executor) Restore() {
	id, _, ok := e.activeOnScreen("restore")
	if !ok {
		return
	}
	g, ok := e.daemon.ValidatedPreSnapGeometry(id)
	if !ok {
		e.daemon.ReportFeedback(bus.NavFeedback{Action: "restore", Reason: "no_presnap_geometry"})
		return
	}
	e.comp.MoveResize(id, rectFromGeometry(g))
	e.daemon.WindowUnsnapped(id)
	e.daemon.ClearPreSnapGeometry(id)
	e.daemon.ReportFeedback(bus.NavFeedback{Success: true, Action: "restore"})
}

// ToggleFloat floats a snapped window (remembering its zone) or re-snaps
// a floating one into its remembered zone.
func (e *Executor) ToggleFloat() {
	id, screen, ok := e.activeOnScreen("float")
	if !ok {
		return
	}

	if e.daemon.IsWindowFloating(id) {
		e.daemon.SetWindowFloating(id, false)
		zoneID, ok := e.daemon.PreFloatZone(id)
		if !ok {
			e.daemon.ReportFeedback(bus.NavFeedback{Success: true, Action: "float", Reason: "no_prefloat_zone"})
			return
		}
		if g, ok := e.daemon.ZoneGeometryForScreen(zoneID, screen); ok {
			e.comp.MoveResize(id, rectFromGeometry(g))
			e.daemon.WindowSnapped(id, zoneID, screen)
		}
		e.daemon.ClearPreFloatZone(id)
		e.daemon.ReportFeedback(bus.NavFeedback{Success: true, Action: "float"})
		return
	}

	if _, snapped := e.daemon.ZoneForWindow(id); snapped {
		e.daemon.WindowUnsnappedForFloat(id)
		if g, ok := e.daemon.ValidatedPreSnapGeometry(id); ok {
			e.comp.MoveResize(id, rectFromGeometry(g))
			e.daemon.ClearPreSnapGeometry(id)
		}
	}
	e.daemon.SetWindowFloating(id, true)
	e.daemon.ReportFeedback(bus.NavFeedback{Success: true, Action: "float"})
}

// Rotate applies a precomputed move plan atomically from the user's point
// of view: floating and vanished windows are skipped, everything else
// moves in one pass.
func (e *Executor) Rotate(plan bus.RotatePlan) {
	applied := 0
	for _, mv := range plan.Moves {
		if _, ok := e.comp.WindowGeometry(mv.WindowID); !ok {
			continue
		}
		if e.daemon.IsWindowFloating(mv.WindowID) {
			continue
		}
		e.comp.MoveResize(mv.WindowID, rectFromGeometry(mv.Geometry))
		applied++
	}
	e.daemon.ReportFeedback(bus.NavFeedback{Success: applied > 0, Action: "rotate"})
}

// Cycle focuses the next or previous window within the active window's
// zone, in stacking order with wraparound.
func (e *Executor) Cycle(forward bool) {
	id, _, ok := e.activeOnScreen("cycle")
	if !ok {
		return
	}
	zoneID, snapped := e.daemon.ZoneForWindow(id)
	if !snapped {
		e.daemon.ReportFeedback(bus.NavFeedback{Action: "cycle", Reason: "not_snapped"})
		return
	}
	stacked := e.stackedIn(zoneID)
	if len(stacked) < 2 {
		e.daemon.ReportFeedback(bus.NavFeedback{Action: "cycle", Reason: "zone_has_one_window"})
		return
	}
	cur := 0
	for i, w := range stacked {
		if w == id {
			cur = i
			break
		}
	}
	step := 1
	if !forward {
		step = -1
	}
	next := ((cur+step)%len(stacked) + len(stacked)) % len(stacked)
	e.comp.Focus(stacked[next])
	e.daemon.ReportFeedback(bus.NavFeedback{Success: true, Action: "cycle"})
}

// activeOnScreen resolves the active window and its screen, reporting
// failure when there is none.
func (e *Executor) activeOnScreen(action string) (id, screen string, ok bool) {
	id, ok = e.comp.ActiveWindow()
	if !ok {
		e.daemon.ReportFeedback(bus.NavFeedback{Action: action, Reason: "no_active_window"})
		return "", "", false
	}
	screen, ok = e.comp.ScreenOf(id)
	if !ok {
		e.daemon.ReportFeedback(bus.NavFeedback{Action: action, Reason: "window_offscreen"})
		return "", "", false
	}
	return id, screen, true
}

// targetZone picks where Move should land: the adjacent zone when
// snapped, the direction's edge zone when not.
func (e *Executor) targetZone(id, screen, direction string) (bus.ZoneInfo, string) {
	if zoneID, snapped := e.daemon.ZoneForWindow(id); snapped {
		z, ok := e.daemon.AdjacentZone(zoneID, screen, direction)
		if !ok {
			return bus.ZoneInfo{}, "no_adjacent_zone"
		}
		return z, ""
	}
	z, ok := e.daemon.FirstZoneInDirection(screen, direction)
	if !ok {
		return bus.ZoneInfo{}, "no_zones_on_screen"
	}
	return z, ""
}

// snapTo stores the pre-snap geometry, moves the window and records the
// snap.
func (e *Executor) snapTo(id, screen string, target bus.ZoneInfo) {
	if g, ok := e.comp.WindowGeometry(id); ok {
		e.daemon.StorePreSnapGeometry(id, geometryFromRect(g))
	}
	e.comp.MoveResize(id, rectFromGeometry(target.Geometry))
	e.daemon.WindowSnapped(id, target.ZoneID, screen)
}

// frontmostIn returns the topmost non-floating window of a zone,
// excluding one id.
func (e *Executor) frontmostIn(zoneID, exclude string) (string, bool) {
	stacked := e.stackedIn(zoneID)
	for i := len(stacked) - 1; i >= 0; i-- {
		if stacked[i] != exclude {
			return stacked[i], true
		}
	}
	return "", false
}

// stackedIn orders a zone's non-floating windows bottom to top.
func (e *Executor) stackedIn(zoneID string) []string {
	members := map[string]bool{}
	for _, w := range e.daemon.WindowsInZone(zoneID) {
		if !e.daemon.IsWindowFloating(w) {
			members[w] = true
		}
	}
	var stacked []string
	for _, w := range e.comp.StackingOrder() {
		if members[w] {
			stacked = append(stacked, w)
			delete(members, w)
		}
	}
	// Tracked windows absent from the stacking list still participate.
	for _, w := range e.daemon.WindowsInZone(zoneID) {
		if members[w] {
			stacked = append(stacked, w)
		}
	}
	return stacked
}

// splitDirective parses "action:arg" directive strings.
func splitDirective(s string) (action, arg string, ok bool) {
	action, arg, found := strings.Cut(s, ":")
	if !found || action == "" || arg == "" {
		return "", "", false
	}
	return action, arg, true
}

func rectFromGeometry(g bus.Geometry) zone.Rect {
	return zone.Rect{X: g.X, Y: g.Y, Width: g.Width, Height: g.Height}
}

func geometryFromRect(r zone.Rect) bus.Geometry {
	return bus.Geometry{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}
