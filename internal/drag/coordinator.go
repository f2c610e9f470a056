// Package drag owns the drag-to-snap pipeline: activation policy, zone
// targeting, selector hand-off and the atomic commit decision returned to
// the compositor side on release.
package drag

import (
	"encoding/json"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/plasmazones/plasmazones/internal/bus"
	"github.com/plasmazones/plasmazones/internal/overlay"
	"github.com/plasmazones/plasmazones/internal/settings"
	"github.com/plasmazones/plasmazones/internal/tracking"
	"github.com/plasmazones/plasmazones/internal/zone"
)

// Pre-snap fallback tolerances. A window whose geometry sits within these
// bounds of a zone is treated as snapped even without a tracking record,
// so dragging it out still floats it instead of re-snapping.
const (
	preSnapPosTolerance  = 100
	preSnapSizeTolerance = 20
)

// Config wires the coordinator's collaborators. Settings is a getter so a
// live reload takes effect mid-session (though not mid-drag decisions that
// already snapshotted it).
type Config struct {
	Settings func() *settings.Settings
	Layouts  LayoutSource
	Tracking Tracking
	Overlay  Overlay
	Screens  ScreenSource
	Autotile AutotileGate
	Escape   EscapeGrab
	Notify   Notifier
	Context  ContextFunc
	Logger   *slog.Logger
}

// selection is the current snap target, primary zone first.
type selection struct {
	zoneIDs  []string
	geometry zone.Rect
	multi    bool
}

// dragState is the per-drag scratchpad. It exists only between dragStarted
// and dragStopped and is rebuilt from scratch for every drag.
type dragState struct {
	windowID string
	appClass string
	original zone.Rect

	excluded   bool
	wasSnapped bool

	cancelled           bool
	releasedAfterCancel bool

	latched  bool
	prevHold bool

	det       *zone.Detector
	detScreen string
	painted   []uuid.UUID

	sel    selection
	hasSel bool

	overlayShown  bool
	overlayScreen string
	highlighted   []string

	lastPreview      zone.Rect
	lastPreviewValid bool
	restoreEmitted   bool
	overlapWarned    bool
}

// Coordinator implements the daemon half of the drag pipeline. The agent
// feeds it dragStarted/dragMoved events and blocks on dragStopped for the
// commit decision; everything in between is policy that lives here.
type Coordinator struct {
	cfg Config
	log *slog.Logger

	mu         chan struct{} // 1-slot semaphore; see lock()
	st         *dragState
	assistOpen bool
}

// NewCoordinator builds a coordinator. All Config fields except Logger and
// Context are required.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Context == nil {
		cfg.Context = func() (int, string) { return 0, "" }
	}
	c := &Coordinator{
		cfg: cfg,
		log: cfg.Logger.With("component", "drag"),
		mu:  make(chan struct{}, 1),
	}
	return c
}

// lock/unlock serialize the event handlers. Escape fires from the hotkey
// goroutine while moves arrive from the bus, so every entry point takes
// the semaphore.
func (c *Coordinator) lock()   { c.mu <- struct{}{} }
func (c *Coordinator) unlock() { <-c.mu }

// HandleDragStarted opens a new per-drag state block. A drag already in
// flight is discarded first; the compositor never interleaves two drags of
// its own accord, so an existing block means a lost dragStopped.
func (c *Coordinator) HandleDragStarted(ev bus.DragStarted) {
	c.lock()
	defer c.unlock()

	if c.st != nil {
		c.log.Warn("drag started with stale drag in flight, resetting",
			"stale", c.st.windowID, "new", ev.WindowID)
		c.cleanupLocked()
	}

	cfg := c.cfg.Settings()
	st := &dragState{
		windowID: ev.WindowID,
		appClass: ev.WindowClass,
		original: zone.Rect{
			X: int(math.Round(ev.X)), Y: int(math.Round(ev.Y)),
			Width: int(math.Round(ev.W)), Height: int(math.Round(ev.H)),
		},
	}
	c.st = st

	if cfg.IsExcludedClass(ev.WindowClass) {
		st.excluded = true
		c.log.Debug("drag on excluded class, pipeline disabled", "class", ev.WindowClass)
		return
	}

	if err := c.cfg.Escape.Register(c.onEscape); err != nil {
		c.log.Warn("escape shortcut unavailable for this drag", "error", err)
	}

	st.wasSnapped = c.detectPreSnap(st, cfg)
	c.log.Debug("drag started", "window", ev.WindowID, "wasSnapped", st.wasSnapped)
}

// detectPreSnap decides whether the dragged window counts as snapped: the
// tracking table is authoritative, with a geometry comparison against the
// active layout as fallback for windows placed before the daemon started.
func (c *Coordinator) detectPreSnap(st *dragState, cfg *settings.Settings) bool {
	if c.cfg.Tracking.ZoneForWindow(st.windowID) != "" {
		return true
	}

	cx, cy := st.original.Center()
	scr, ok := c.cfg.Screens.ScreenAt(cx, cy)
	if !ok {
		return false
	}
	det := c.detectorFor(st, scr)
	if det == nil {
		return false
	}
	for _, g := range det.Geometries() {
		if abs(g.X-st.original.X) <= preSnapPosTolerance &&
			abs(g.Y-st.original.Y) <= preSnapPosTolerance &&
			abs(g.Width-st.original.Width) <= preSnapSizeTolerance &&
			abs(g.Height-st.original.Height) <= preSnapSizeTolerance {
			return true
		}
	}
	return false
}

// onEscape cancels the drag in flight: all visuals drop and moves are
// ignored until the activation trigger is released and pressed again.
func (c *Coordinator) onEscape() {
	c.lock()

	if c.assistOpen {
		c.assistOpen = false
		c.cfg.Escape.Unregister()
		c.unlock()
		// The overlay runs the dismiss callback on this goroutine and the
		// callback re-enters SnapAssistDismissed, so the assist state must
		// be settled and the semaphore free before the hide call.
		c.cfg.Overlay.HideSnapAssist()
		return
	}
	defer c.unlock()

	st := c.st
	if st == nil || st.cancelled {
		return
	}
	st.cancelled = true
	st.releasedAfterCancel = false
	st.latched = false
	c.clearSelectionLocked(st)
	c.hideVisualsLocked(st)
	c.log.Debug("drag cancelled by escape", "window", st.windowID)
}

// HandleDragMoved runs the full targeting pipeline for one throttled
// cursor update.
func (c *Coordinator) HandleDragMoved(ev bus.DragMoved) {
	c.lock()
	defer c.unlock()

	st := c.st
	if st == nil || st.windowID != ev.WindowID || st.excluded {
		return
	}

	cfg := c.cfg.Settings()
	hold := settings.AnyMatches(cfg.ActivationTriggers, ev.Modifiers, ev.Buttons)

	// A cancelled drag resumes only after the trigger was fully released
	// and pressed again.
	if st.cancelled {
		if !hold {
			st.releasedAfterCancel = true
			st.prevHold = false
			return
		}
		if !st.releasedAfterCancel {
			return
		}
		st.cancelled = false
		st.releasedAfterCancel = false
	}

	active := hold
	if cfg.ToggleActivation {
		if hold && !st.prevHold {
			st.latched = !st.latched
		}
		active = st.latched
	}
	st.prevHold = hold

	scr, onScreen := c.cfg.Screens.ScreenAt(ev.CursorX, ev.CursorY)
	suppressed := !onScreen ||
		!cfg.EnabledOn(scr.Name) ||
		c.cfg.Autotile.IsScreenAutotiled(scr.Name)
	if suppressed {
		c.clearSelectionLocked(st)
		c.hideVisualsLocked(st)
		return
	}

	if active {
		c.moveActiveLocked(st, cfg, scr, ev)
	} else {
		c.moveInactiveLocked(st, cfg, scr, ev)
	}

	// Live feedback to the compositor: the preview geometry when a target
	// exists, a one-shot size restore when the snapped window breaks free
	// with no target.
	if st.hasSel {
		if !st.lastPreviewValid || st.sel.geometry != st.lastPreview {
			c.cfg.Notify.DragPreview(st.windowID, st.sel.geometry)
			st.lastPreview = st.sel.geometry
			st.lastPreviewValid = true
		}
	} else if st.wasSnapped && cfg.RestoreOriginalSizeOnUnsnap && !st.restoreEmitted {
		if g, ok := c.cfg.Tracking.ValidatedPreSnapGeometry(st.windowID); ok {
			c.cfg.Notify.DragRestoreSize(st.windowID, g.Width, g.Height)
			st.restoreEmitted = true
		}
	}
}

// moveActiveLocked handles a move with the activation trigger engaged:
// overlay on, selector off, zone targeting by paint or proximity.
func (c *Coordinator) moveActiveLocked(st *dragState, cfg *settings.Settings, scr Screen, ev bus.DragMoved) {
	if c.cfg.Overlay.ZoneSelectorVisible() {
		c.cfg.Overlay.HideZoneSelector()
		c.cfg.Overlay.ClearSelectedZone()
	}

	if !st.overlayShown || st.overlayScreen != scr.Name {
		c.cfg.Overlay.ShowZones(c.zoneScreens(cfg, scr)...)
		st.overlayShown = true
		st.overlayScreen = scr.Name
	}

	det := c.detectorFor(st, scr)
	if det == nil {
		c.clearSelectionLocked(st)
		return
	}

	span := cfg.EnableZoneSpanning &&
		settings.AnyMatches(cfg.ZoneSpanTriggers, ev.Modifiers, ev.Buttons)
	if span && !st.overlapWarned &&
		settings.Overlaps(cfg.ActivationTriggers, cfg.ZoneSpanTriggers) {
		c.log.Warn("activation and zone-span triggers overlap; span takes precedence")
		st.overlapWarned = true
	}

	var sel selection
	switch {
	case span:
		if z := det.ZoneAt(ev.CursorX, ev.CursorY); z != nil && !containsID(st.painted, z.ID) {
			st.painted = append(st.painted, z.ID)
		}
		zones, union := det.ExpandPaintedZones(st.painted)
		if len(zones) > 0 {
			sel = selection{zoneIDs: zoneIDs(zones), geometry: union, multi: len(zones) > 1}
		}
	case cfg.EnableMultiZone:
		st.painted = nil
		zones, union, multi := det.MultiZoneAt(ev.CursorX, ev.CursorY, cfg.AdjacentThreshold)
		if len(zones) > 0 {
			sel = selection{zoneIDs: zoneIDs(zones), geometry: union, multi: multi}
		}
	default:
		st.painted = nil
		if z := det.ZoneAt(ev.CursorX, ev.CursorY); z != nil {
			g, _ := det.GeometryOf(z.ID)
			sel = selection{zoneIDs: []string{z.ID.String()}, geometry: g}
		}
	}

	if len(sel.zoneIDs) == 0 {
		c.clearSelectionLocked(st)
		return
	}
	st.sel = sel
	st.hasSel = true
	if !equalIDs(st.highlighted, sel.zoneIDs) {
		c.cfg.Overlay.HighlightZones(sel.zoneIDs)
		st.highlighted = sel.zoneIDs
	}
}

// zoneScreens lists the screens that display zones during an active drag:
// the cursor's screen first, plus every other enabled screen when the
// all-monitors setting is on.
func (c *Coordinator) zoneScreens(cfg *settings.Settings, scr Screen) []string {
	names := []string{scr.Name}
	if !cfg.ShowZonesOnAllMonitors {
		return names
	}
	for _, other := range c.cfg.Screens.Screens() {
		if other.Name != scr.Name && cfg.EnabledOn(other.Name) {
			names = append(names, other.Name)
		}
	}
	return names
}

// moveInactiveLocked handles a move without the activation trigger: all
// zone visuals drop and the edge-proximity test drives the selector HUD.
func (c *Coordinator) moveInactiveLocked(st *dragState, cfg *settings.Settings, scr Screen, ev bus.DragMoved) {
	st.painted = nil
	c.clearSelectionLocked(st)
	if st.overlayShown {
		c.cfg.Overlay.HideZones()
		st.overlayShown = false
	}

	selCfg := cfg.SelectorConfigFor(scr.Name)
	popup := overlay.ComputeSelectorPopupSize(selCfg, scr.Geometry, len(c.cfg.Layouts.Layouts()))
	visible := c.cfg.Overlay.ZoneSelectorVisible()
	near := overlay.SelectorProximity(selCfg, scr.Geometry, popup, ev.CursorX, ev.CursorY, visible)

	switch {
	case near && !visible:
		c.cfg.Overlay.ShowZoneSelector(scr.Name)
	case near && visible:
		c.cfg.Overlay.UpdateSelectorPosition(ev.CursorX, ev.CursorY)
	case !near && visible:
		c.cfg.Overlay.HideZoneSelector()
	}
}

// HandleDragStopped produces the atomic commit decision. The state block
// is consumed before returning so a new drag can start while the agent is
// still applying this reply.
func (c *Coordinator) HandleDragStopped(ev bus.DragStopped) bus.DragStopReply {
	c.lock()
	defer c.unlock()

	st := c.st
	if st == nil || st.windowID != ev.WindowID {
		return bus.DragStopReply{}
	}
	c.st = nil
	c.hideVisualsLocked(st)

	cfg := c.cfg.Settings()
	var reply bus.DragStopReply

	scr, onScreen := c.cfg.Screens.ScreenAt(ev.CursorX, ev.CursorY)
	if onScreen {
		reply.ReleaseScreenName = scr.Name
	}
	allowed := onScreen && !st.excluded && !st.cancelled && !ev.Cancelled &&
		cfg.EnabledOn(scr.Name) && !c.cfg.Autotile.IsScreenAutotiled(scr.Name)

	selected := c.cfg.Overlay.HasSelectedZone()
	switch {
	case allowed && selected:
		reply = c.commitSelector(st, scr, reply)
	case allowed && st.hasSel:
		c.cfg.Overlay.ClearSelectedZone()
		c.cfg.Tracking.StorePreSnapGeometry(st.windowID, st.original)
		if st.sel.multi {
			c.cfg.Tracking.WindowSnappedMultiZone(st.windowID, st.sel.zoneIDs, scr.Name)
		} else {
			c.cfg.Tracking.WindowSnapped(st.windowID, st.sel.zoneIDs[0], scr.Name)
		}
		c.cfg.Tracking.RecordSnapIntent(st.windowID, true, false)
		reply.SnapX, reply.SnapY = st.sel.geometry.X, st.sel.geometry.Y
		reply.SnapW, reply.SnapH = st.sel.geometry.Width, st.sel.geometry.Height
		reply.ShouldApplyGeometry = true
	case allowed && st.wasSnapped:
		// Released outside every zone: the window becomes floating.
		c.cfg.Overlay.ClearSelectedZone()
		c.cfg.Tracking.WindowUnsnappedForFloat(st.windowID)
		c.cfg.Tracking.SetWindowFloating(st.windowID, true)
		c.cfg.Notify.WindowFloatingChanged(tracking.StableID(st.windowID), true)
		if cfg.RestoreOriginalSizeOnUnsnap {
			if g, ok := c.cfg.Tracking.ValidatedPreSnapGeometry(st.windowID); ok {
				reply.SnapW, reply.SnapH = g.Width, g.Height
				reply.RestoreSizeOnly = true
				reply.ShouldApplyGeometry = true
				c.cfg.Tracking.ClearPreSnapGeometry(st.windowID)
			}
		}
	default:
		c.cfg.Overlay.ClearSelectedZone()
	}

	if reply.ShouldApplyGeometry && !reply.RestoreSizeOnly && onScreen &&
		(cfg.SnapAssistEnabled || settings.AnyMatches(cfg.SnapAssistTriggers, ev.Modifiers, ev.Buttons)) {
		if emptyJSON := c.emptyZonesJSON(st, scr); emptyJSON != "" {
			reply.SnapAssistRequested = true
			reply.EmptyZonesJSON = emptyJSON
			c.cfg.Overlay.ShowSnapAssist(scr.Name, emptyJSON, "")
			c.assistOpen = true
		}
	}
	// Escape stays armed while the snap-assist HUD is up.
	if !c.assistOpen && !st.excluded {
		c.cfg.Escape.Unregister()
	}
	return reply
}

// commitSelector applies the zone-selector selection: activate the chosen
// layout on the release screen, then snap into the chosen zone.
func (c *Coordinator) commitSelector(st *dragState, scr Screen, reply bus.DragStopReply) bus.DragStopReply {
	defer c.cfg.Overlay.ClearSelectedZone()

	lid, err := uuid.Parse(c.cfg.Overlay.SelectedLayoutID())
	if err != nil {
		c.log.Warn("selector produced unparseable layout id", "error", err)
		return reply
	}
	// The layout manager runs its change listeners synchronously and they
	// re-enter the coordinator, so the semaphore is dropped across the
	// activation. The drag state is already detached from c.st, making the
	// re-entry a no-op.
	c.unlock()
	err = c.cfg.Layouts.ActivateLayout(scr.Name, lid)
	c.lock()
	if err != nil {
		c.log.Warn("failed to activate selector layout", "layout", lid, "error", err)
		return reply
	}
	if l := c.cfg.Layouts.LayoutByID(lid); l != nil {
		c.cfg.Overlay.ShowLayoutOsd(l.Name)
	}
	st.det = nil
	st.detScreen = ""
	zoneID, g, ok := c.cfg.Overlay.SelectedZone(scr.Name)
	if !ok {
		return reply
	}
	c.cfg.Tracking.StorePreSnapGeometry(st.windowID, st.original)
	c.cfg.Tracking.WindowSnapped(st.windowID, zoneID, scr.Name)
	c.cfg.Tracking.RecordSnapIntent(st.windowID, true, true)
	reply.SnapX, reply.SnapY, reply.SnapW, reply.SnapH = g.X, g.Y, g.Width, g.Height
	reply.ShouldApplyGeometry = true
	return reply
}

// emptyZonesJSON lists the release screen's unoccupied zones for the
// snap-assist HUD. Empty string means nothing to offer.
func (c *Coordinator) emptyZonesJSON(st *dragState, scr Screen) string {
	det := c.detectorFor(st, scr)
	if det == nil {
		return ""
	}
	var infos []bus.ZoneInfo
	for i, z := range det.Layout().Zones {
		id := z.ID.String()
		if containsStr(st.sel.zoneIDs, id) {
			continue
		}
		if len(c.cfg.Tracking.WindowsInZone(id)) > 0 {
			continue
		}
		g := det.Geometries()[i]
		infos = append(infos, bus.ZoneInfo{
			ZoneID: id, Number: z.Number,
			Geometry: bus.Geometry{X: g.X, Y: g.Y, Width: g.Width, Height: g.Height},
		})
	}
	if len(infos) == 0 {
		return ""
	}
	data, err := json.Marshal(infos)
	if err != nil {
		return ""
	}
	return string(data)
}

// SnapAssistDismissed is wired to the overlay's dismiss callback; it drops
// the Escape registration kept alive for the HUD.
func (c *Coordinator) SnapAssistDismissed() {
	c.lock()
	defer c.unlock()
	if c.assistOpen {
		c.assistOpen = false
		c.cfg.Escape.Unregister()
	}
}

// HandleWindowClosed aborts the drag when the dragged window disappears
// mid-flight.
func (c *Coordinator) HandleWindowClosed(windowID string) {
	c.lock()
	defer c.unlock()
	st := c.st
	if st == nil || st.windowID != windowID {
		return
	}
	c.cleanupLocked()
	c.log.Debug("drag aborted, window closed", "window", windowID)
}

// InvalidateLayout drops all cached zone state mid-drag; the next move
// recomputes against the new layout. Wired to the layout manager's change
// notifications.
func (c *Coordinator) InvalidateLayout() {
	c.lock()
	defer c.unlock()
	st := c.st
	if st == nil {
		return
	}
	st.det = nil
	st.detScreen = ""
	st.painted = nil
	c.clearSelectionLocked(st)
}

// InDrag reports whether a drag is currently in flight.
func (c *Coordinator) InDrag() bool {
	c.lock()
	defer c.unlock()
	return c.st != nil
}

func (c *Coordinator) cleanupLocked() {
	st := c.st
	c.st = nil
	if st == nil {
		return
	}
	c.hideVisualsLocked(st)
	if !st.excluded {
		c.cfg.Escape.Unregister()
	}
}

// hideVisualsLocked drops every on-screen artifact of the drag.
func (c *Coordinator) hideVisualsLocked(st *dragState) {
	if st.overlayShown {
		c.cfg.Overlay.HideZones()
		st.overlayShown = false
	}
	if len(st.highlighted) > 0 {
		c.cfg.Overlay.ClearHighlight()
		st.highlighted = nil
	}
	if c.cfg.Overlay.ZoneSelectorVisible() {
		c.cfg.Overlay.HideZoneSelector()
	}
}

func (c *Coordinator) clearSelectionLocked(st *dragState) {
	st.sel = selection{}
	st.hasSel = false
	if len(st.highlighted) > 0 {
		c.cfg.Overlay.ClearHighlight()
		st.highlighted = nil
	}
}

// detectorFor returns the zone detector for the given screen, cached per
// drag until the screen or the layout changes.
func (c *Coordinator) detectorFor(st *dragState, scr Screen) *zone.Detector {
	if st.det != nil && st.detScreen == scr.Name {
		return st.det
	}
	desktop, activity := c.cfg.Context()
	l := c.cfg.Layouts.Resolve(scr.Name, desktop, activity)
	if l == nil {
		return nil
	}
	cfg := c.cfg.Settings()
	st.det = zone.NewDetector(l, scr.WorkArea,
		l.EffectivePadding(cfg.ZonePadding), l.EffectiveOuterGap(cfg.OuterGap))
	st.detScreen = scr.Name
	st.painted = nil
	return st.det
}

func zoneIDs(zones []*zone.Zone) []string {
	ids := make([]string, len(zones))
	for i, z := range zones {
		ids[i] = z.ID.String()
	}
	return ids
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsStr(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
