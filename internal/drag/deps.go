package drag

import (
	"github.com/google/uuid"

	"github.com/plasmazones/plasmazones/internal/zone"
)

// Screen describes one output as the coordinator sees it.
type Screen struct {
	Name     string
	Geometry zone.Rect
	WorkArea zone.Rect
}

// ScreenSource answers which screen a point belongs to.
type ScreenSource interface {
	ScreenAt(x, y int) (Screen, bool)
	ScreenByName(name string) (Screen, bool)
	Screens() []Screen
}

// Overlay is the narrow contract to the overlay service. The coordinator
// drives it and never renders anything itself.
type Overlay interface {
	// ShowZones renders zone borders on the listed screens; the first one
	// is the drag's home screen.
	ShowZones(screens ...string)
	HideZones()
	HighlightZones(zoneIDs []string)
	ClearHighlight()

	ShowZoneSelector(screen string)
	HideZoneSelector()
	UpdateSelectorPosition(x, y int)
	ZoneSelectorVisible() bool

	// SelectedZone reports the selector's final selection: the chosen
	// layout, the chosen zone and its geometry on the given screen.
	HasSelectedZone() bool
	SelectedLayoutID() string
	SelectedZone(screen string) (zoneID string, geometry zone.Rect, ok bool)
	ClearSelectedZone()

	ShowSnapAssist(screen, emptyZonesJSON, candidatesJSON string)
	HideSnapAssist()
	IsSnapAssistVisible() bool

	ShowLayoutOsd(layoutName string)
}

// Tracking is the slice of the window tracking service the drag pipeline
// needs.
type Tracking interface {
	ZoneForWindow(windowID string) string
	WindowsInZone(zoneID string) []string
	WindowSnapped(windowID, zoneID, screen string)
	WindowSnappedMultiZone(windowID string, zoneIDs []string, screen string)
	WindowUnsnappedForFloat(windowID string)
	SetWindowFloating(windowID string, floating bool)
	StorePreSnapGeometry(windowID string, g zone.Rect)
	ValidatedPreSnapGeometry(windowID string) (zone.Rect, bool)
	ClearPreSnapGeometry(windowID string)
	RecordSnapIntent(windowID string, userInitiated, viaSelector bool)
}

// LayoutSource resolves and activates layouts. Activation is only used by
// the zone-selector release path, the one drag path that switches layouts.
type LayoutSource interface {
	Resolve(screen string, desktop int, activity string) *zone.Layout
	LayoutByID(id uuid.UUID) *zone.Layout
	Layouts() []*zone.Layout
	ActivateLayout(screen string, layoutID uuid.UUID) error
}

// AutotileGate exposes the single boolean the autotile engine publishes:
// whether a screen is under automatic tiling, which suppresses the manual
// drag pipeline there.
type AutotileGate interface {
	IsScreenAutotiled(screen string) bool
}

// EscapeGrab registers a session-global Escape shortcut for the duration
// of a drag.
type EscapeGrab interface {
	Register(onEscape func()) error
	Unregister()
}

// Notifier delivers live in-drag feedback to the compositor side.
type Notifier interface {
	DragPreview(windowID string, g zone.Rect)
	DragRestoreSize(windowID string, width, height int)
	WindowFloatingChanged(stableID string, floating bool)
}

// ContextFunc supplies the current (virtual desktop, activity) context
// keys. Desktop 0 / empty activity mean "any".
type ContextFunc func() (desktop int, activity string)
