// Package tracker is the compositor-side drag detector: it polls the
// pointer and the active window, recognizes user-initiated moves, and
// turns them into a clean dragStarted/dragMoved/dragStopped stream for
// the daemon.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/plasmazones/plasmazones/internal/bus"
	"github.com/plasmazones/plasmazones/internal/settings"
	"github.com/plasmazones/plasmazones/internal/zone"
)

const (
	// pollInterval bounds drag-start detection latency. Idle polls
	// short-circuit after one pointer query.
	pollInterval = 50 * time.Millisecond
	// moveThrottle caps the dragMoved event rate toward the daemon.
	moveThrottle = 32 * time.Millisecond
)

// WindowSource reads compositor state. The X adapter implements it; tests
// feed synthetic streams.
type WindowSource interface {
	Pointer() (x, y, modifiers, buttons int, err error)
	ActiveWindow() (windowID string, ok bool)
	WindowGeometry(windowID string) (zone.Rect, bool)
	WindowClass(windowID string) string
	IsTransient(windowID string) bool
	IsNormalWindow(windowID string) bool
	IsFullscreen(windowID string) bool
}

// Sink receives the drag event stream. The agent main backs it with bus
// calls; dragStopped is the only synchronous one.
type Sink interface {
	DragStarted(bus.DragStarted)
	DragMoved(bus.DragMoved)
	DragStopped(bus.DragStopped) (bus.DragStopReply, error)
	WindowClosedDuringDrag(windowID string)
}

// Applier commits the daemon's stop decision to the compositor.
type Applier interface {
	MoveResize(windowID string, g zone.Rect)
	Resize(windowID string, width, height int)
}

// Filters are the agent-local participation checks. The daemon applies
// class exclusions; the agent filters what never should leave the
// compositor.
type Filters struct {
	SkipTransients  bool
	MinWindowWidth  int
	MinWindowHeight int
}

// FiltersFromSettings derives the agent filters from daemon settings.
func FiltersFromSettings(s *settings.Settings) Filters {
	return Filters{
		SkipTransients:  s.SkipTransients,
		MinWindowWidth:  s.MinWindowWidth,
		MinWindowHeight: s.MinWindowHeight,
	}
}

// Tracker is the drag-detection state machine. Poll runs on the agent
// loop; only the filters may be swapped from another goroutine.
type Tracker struct {
	src   WindowSource
	sink  Sink
	apply Applier
	log   *slog.Logger

	filterMu sync.Mutex
	filters  Filters
	now      func() time.Time

	// idle-sample memory for start detection
	prevWindow string
	prevGeom   zone.Rect
	prevValid  bool

	dragging   bool
	dragWindow string
	lastSent   time.Time

	// forceEnded suppresses re-detection until all buttons are released,
	// so a cancelled drag does not immediately restart.
	forceEnded bool
}

// Config wires the tracker.
type Config struct {
	Source  WindowSource
	Sink    Sink
	Applier Applier
	Filters Filters
	Logger  *slog.Logger
	Now     func() time.Time
}

// New builds a tracker.
func New(cfg Config) *Tracker {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Tracker{
		src:     cfg.Source,
		sink:    cfg.Sink,
		apply:   cfg.Applier,
		log:     cfg.Logger.With("component", "tracker"),
		filters: cfg.Filters,
		now:     cfg.Now,
	}
}

// SetFilters swaps the participation filters after a settings reload.
// Reloads arrive on the bus goroutine while Poll runs on the agent loop,
// so filter access is the one locked path in the tracker.
func (t *Tracker) SetFilters(f Filters) {
	t.filterMu.Lock()
	t.filters = f
	t.filterMu.Unlock()
}

func (t *Tracker) currentFilters() Filters {
	t.filterMu.Lock()
	defer t.filterMu.Unlock()
	return t.filters
}

// InDrag reports whether a drag is being tracked.
func (t *Tracker) InDrag() bool { return t.dragging }

// Run polls until the context ends.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Poll()
		}
	}
}

// Poll runs one detection step.
func (t *Tracker) Poll() {
	x, y, mods, buttons, err := t.src.Pointer()
	if err != nil {
		t.log.Warn("pointer query failed", "error", err)
		return
	}

	if t.forceEnded {
		if buttons == 0 {
			t.forceEnded = false
		}
		return
	}

	if t.dragging {
		t.pollDragging(x, y, mods, buttons)
		return
	}
	t.pollIdle(buttons)
}

// pollDragging advances or ends the tracked drag.
func (t *Tracker) pollDragging(x, y, mods, buttons int) {
	if _, ok := t.src.WindowGeometry(t.dragWindow); !ok {
		t.sink.WindowClosedDuringDrag(t.dragWindow)
		t.endDrag()
		t.forceEnded = true
		return
	}
	if t.src.IsFullscreen(t.dragWindow) {
		t.stopDrag(x, y, mods, buttons, true)
		t.forceEnded = true
		return
	}
	if buttons&settings.ButtonLeft == 0 {
		t.stopDrag(x, y, mods, buttons, false)
		return
	}

	now := t.now()
	if now.Sub(t.lastSent) < moveThrottle {
		return
	}
	t.lastSent = now
	t.sink.DragMoved(bus.DragMoved{
		WindowID: t.dragWindow, CursorX: x, CursorY: y,
		Modifiers: mods, Buttons: buttons,
	})
}

// pollIdle watches for the start condition: the active window's position
// changed at constant size between samples while the left button stays
// held. A size change alongside the move is a top or left edge resize,
// not a drag.
func (t *Tracker) pollIdle(buttons int) {
	if buttons&settings.ButtonLeft == 0 {
		t.prevValid = false
		return
	}

	id, ok := t.src.ActiveWindow()
	if !ok {
		t.prevValid = false
		return
	}
	geom, ok := t.src.WindowGeometry(id)
	if !ok {
		t.prevValid = false
		return
	}

	moved := t.prevValid && t.prevWindow == id &&
		geom.Width == t.prevGeom.Width && geom.Height == t.prevGeom.Height &&
		(geom.X != t.prevGeom.X || geom.Y != t.prevGeom.Y)
	t.prevWindow, t.prevGeom, t.prevValid = id, geom, true
	if !moved {
		return
	}
	if !t.shouldHandle(id, geom) {
		return
	}

	t.dragging = true
	t.dragWindow = id
	t.lastSent = time.Time{}
	class := t.src.WindowClass(id)
	t.sink.DragStarted(bus.DragStarted{
		WindowID:    id,
		X:           float64(geom.X),
		Y:           float64(geom.Y),
		W:           float64(geom.Width),
		H:           float64(geom.Height),
		WindowClass: class,
		AppName:     class,
		Buttons:     buttons,
	})
}

// shouldHandle applies the agent-local participation filters.
func (t *Tracker) shouldHandle(id string, geom zone.Rect) bool {
	if !t.src.IsNormalWindow(id) {
		return false
	}
	f := t.currentFilters()
	if f.SkipTransients && t.src.IsTransient(id) {
		return false
	}
	if geom.Width < f.MinWindowWidth || geom.Height < f.MinWindowHeight {
		return false
	}
	if t.src.IsFullscreen(id) {
		return false
	}
	return true
}

// stopDrag reports the release synchronously and applies the daemon's
// decision before the tracker goes idle.
func (t *Tracker) stopDrag(x, y, mods, buttons int, cancelled bool) {
	windowID := t.dragWindow
	t.endDrag()

	reply, err := t.sink.DragStopped(bus.DragStopped{
		WindowID: windowID, CursorX: x, CursorY: y,
		Modifiers: mods, Buttons: buttons, Cancelled: cancelled,
	})
	if err != nil {
		t.log.Error("drag stop decision failed", "window", windowID, "error", err)
		return
	}

	switch {
	case reply.RestoreSizeOnly:
		t.apply.Resize(windowID, reply.SnapW, reply.SnapH)
	case reply.ShouldApplyGeometry:
		t.apply.MoveResize(windowID, zone.Rect{
			X: reply.SnapX, Y: reply.SnapY,
			Width: reply.SnapW, Height: reply.SnapH,
		})
	}
}

func (t *Tracker) endDrag() {
	t.dragging = false
	t.dragWindow = ""
	t.prevValid = false
}
