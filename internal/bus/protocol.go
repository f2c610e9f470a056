// Package bus is the session message bus between the compositor-side
// agent and the daemon: newline-delimited JSON frames over a unix socket.
// Requests are synchronous and carry a correlation id; events are
// fire-and-forget agent-to-daemon calls; signals are daemon-to-agent
// broadcasts.
package bus

import (
	"encoding/json"
	"fmt"
)

// FrameKind discriminates the wire frames.
type FrameKind string

const (
	FrameRequest FrameKind = "request"
	FrameReply   FrameKind = "reply"
	FrameEvent   FrameKind = "event"
	FrameSignal  FrameKind = "signal"
)

// Frame is the wire envelope.
type Frame struct {
	Kind    FrameKind       `json:"kind"`
	ID      uint64          `json:"id,omitempty"` // request/reply correlation
	Method  string          `json:"method,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Marshal encodes the frame with the trailing newline delimiter.
func (f *Frame) Marshal() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame: %w", err)
	}
	return append(data, '\n'), nil
}

// ParseFrame decodes one wire frame.
func ParseFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse frame: %w", err)
	}
	return &f, nil
}

// Drag interface (agent → daemon). dragStopped is the only synchronous
// call on the drag hot path: the agent needs the reply to commit the
// geometry atomically.
const (
	MethodDragStarted = "drag.started" // event
	MethodDragMoved   = "drag.moved"   // event
	MethodDragStopped = "drag.stopped" // request
	MethodWindowClose = "drag.windowClosed"
)

// Window tracking interface (agent → daemon).
const (
	MethodWindowAdded             = "tracking.windowAdded"
	MethodWindowClosed            = "tracking.windowClosed"
	MethodWindowActivated         = "tracking.windowActivated"
	MethodWindowSnapped           = "tracking.windowSnapped"
	MethodWindowSnappedMultiZone  = "tracking.windowSnappedMultiZone"
	MethodWindowUnsnapped         = "tracking.windowUnsnapped"
	MethodWindowUnsnappedForFloat = "tracking.windowUnsnappedForFloat"
	MethodSetWindowFloating       = "tracking.setWindowFloating"
	MethodSetWindowSticky         = "tracking.setWindowSticky"
	MethodStorePreSnapGeometry    = "tracking.storePreSnapGeometry"
	MethodHasPreSnapGeometry      = "tracking.hasPreSnapGeometry"
	MethodGetPreSnapGeometry      = "tracking.getValidatedPreSnapGeometry"
	MethodClearPreSnapGeometry    = "tracking.clearPreSnapGeometry"
	MethodGetPreFloatZone         = "tracking.getPreFloatZone"
	MethodClearPreFloatZone       = "tracking.clearPreFloatZone"
	MethodGetZoneForWindow        = "tracking.getZoneForWindow"
	MethodGetWindowsInZone        = "tracking.getWindowsInZone"
	MethodSnapToLastZone          = "tracking.snapToLastZone"
	MethodRestoreToPersistedZone  = "tracking.restoreToPersistedZone"
	MethodGetSnappedWindows       = "tracking.getSnappedWindows"
	MethodGetUpdatedGeometries    = "tracking.getUpdatedWindowGeometries"
	MethodGetFloatingWindows      = "tracking.getFloatingWindows"
	MethodQueryWindowFloating     = "tracking.queryWindowFloating"
	MethodRecordSnapIntent        = "tracking.recordSnapIntent"
	MethodReportNavFeedback       = "tracking.reportNavigationFeedback"
)

// Zone detection interface (agent → daemon, synchronous).
const (
	MethodGetAdjacentZone          = "zones.getAdjacentZone"
	MethodGetFirstZoneInDirection  = "zones.getFirstZoneInDirection"
	MethodGetZoneGeometry          = "zones.getZoneGeometry"
	MethodGetZoneGeometryForScreen = "zones.getZoneGeometryForScreen"
	MethodDetectZoneAtPosition     = "zones.detectZoneAtPosition"
	MethodDetectMultiZoneAt        = "zones.detectMultiZoneAtPosition"
	MethodGetAllZoneGeometries     = "zones.getAllZoneGeometries"
)

// Navigation + control interface (shortcut source / CLI → daemon).
const (
	MethodNavCommand    = "nav.command" // directive strings: navigate:<dir>, swap:<dir>, cycle:<fwd|back>
	MethodApplySlot     = "mode.applySlot"
	MethodSmartToggle   = "mode.smartToggle"
	MethodCycleLayout   = "mode.cycleLayout"
	MethodStatus        = "control.status"
	MethodListLayouts   = "control.listLayouts"
	MethodAssignLayout  = "control.assignLayout"
	MethodReloadConfig  = "control.reloadSettings"
	MethodWorkAreaNotif = "control.workAreaChanged"
)

// Daemon → agent broadcast signals.
const (
	SignalMoveWindowToZone    = "signal.moveWindowToZoneRequested"
	SignalFocusWindowInZone   = "signal.focusWindowInZoneRequested"
	SignalRestoreWindow       = "signal.restoreWindowRequested"
	SignalToggleWindowFloat   = "signal.toggleWindowFloatRequested"
	SignalSwapWindows         = "signal.swapWindowsRequested"
	SignalRotateWindows       = "signal.rotateWindowsRequested"
	SignalCycleWindowsInZone  = "signal.cycleWindowsInZoneRequested"
	SignalPendingRestores     = "signal.pendingRestoresAvailable"
	SignalWindowFloating      = "signal.windowFloatingChanged"
	SignalAutotileWindowTile  = "signal.autotileWindowTileRequested"
	SignalAutotileFocusWindow = "signal.autotileFocusWindowRequested"
	SignalAutotileEnabled     = "signal.autotileEnabledChanged"
	SignalSettingsChanged     = "signal.settingsChanged"
	SignalDragPreview         = "signal.dragPreviewGeometry"
	SignalDragRestoreSize     = "signal.dragRestoreSize"
)

// Geometry is the wire form of a pixel rectangle.
type Geometry struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"w"`
	Height int `json:"h"`
}

// DragStarted reports a drag-start observed by the agent.
type DragStarted struct {
	WindowID    string  `json:"windowId"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	W           float64 `json:"w"`
	H           float64 `json:"h"`
	AppName     string  `json:"appName"`
	WindowClass string  `json:"windowClass"`
	Buttons     int     `json:"mouseButtons"`
}

// DragMoved reports a throttled cursor update during a drag.
type DragMoved struct {
	WindowID  string `json:"windowId"`
	CursorX   int    `json:"cursorX"`
	CursorY   int    `json:"cursorY"`
	Modifiers int    `json:"modifiers"`
	Buttons   int    `json:"mouseButtons"`
}

// DragStopped asks the daemon for the commit decision. Cancelled marks
// drags ended by the compositor or Escape rather than a button release.
type DragStopped struct {
	WindowID  string `json:"windowId"`
	CursorX   int    `json:"cursorX"`
	CursorY   int    `json:"cursorY"`
	Modifiers int    `json:"modifiers"`
	Buttons   int    `json:"mouseButtons"`
	Cancelled bool   `json:"cancelled"`
}

// DragStopReply is the atomic commit record returned to the agent.
type DragStopReply struct {
	SnapX               int    `json:"snapX"`
	SnapY               int    `json:"snapY"`
	SnapW               int    `json:"snapW"`
	SnapH               int    `json:"snapH"`
	ShouldApplyGeometry bool   `json:"shouldApplyGeometry"`
	ReleaseScreenName   string `json:"releaseScreenName"`
	RestoreSizeOnly     bool   `json:"restoreSizeOnly"`
	SnapAssistRequested bool   `json:"snapAssistRequested"`
	EmptyZonesJSON      string `json:"emptyZonesJson"`
}

// WindowRef addresses one window, optionally with its screen.
type WindowRef struct {
	WindowID string `json:"windowId"`
	Screen   string `json:"screen,omitempty"`
}

// WindowSnap records a snap for the tracking table.
type WindowSnap struct {
	WindowID string   `json:"windowId"`
	ZoneID   string   `json:"zoneId,omitempty"`
	ZoneIDs  []string `json:"zoneIds,omitempty"`
	Screen   string   `json:"screen"`
}

// WindowFlag carries a boolean window property change.
type WindowFlag struct {
	WindowID string `json:"windowId"`
	Value    bool   `json:"value"`
}

// WindowGeometry pairs a window with a geometry.
type WindowGeometry struct {
	WindowID string   `json:"windowId"`
	Geometry Geometry `json:"geometry"`
}

// SnapIntent records whether a snap was user-initiated.
type SnapIntent struct {
	WindowID      string `json:"windowId"`
	UserInitiated bool   `json:"userInitiated"`
	ViaSelector   bool   `json:"viaSelector,omitempty"`
}

// BoolReply is a generic boolean answer.
type BoolReply struct {
	Value bool `json:"value"`
}

// StringReply is a generic string answer.
type StringReply struct {
	Value string `json:"value"`
}

// GeometryReply answers geometry queries; OK is false when nothing was
// found.
type GeometryReply struct {
	Geometry Geometry `json:"geometry"`
	OK       bool     `json:"ok"`
}

// SnapTarget answers snap-to-last / restore-to-persisted queries.
type SnapTarget struct {
	ZoneID        string   `json:"zoneId"`
	Geometry      Geometry `json:"geometry"`
	ShouldRestore bool     `json:"shouldRestore"`
}

// ZoneQuery addresses zone-detection requests.
type ZoneQuery struct {
	WindowID  string `json:"windowId,omitempty"`
	ZoneID    string `json:"zoneId,omitempty"`
	Direction string `json:"direction,omitempty"`
	Screen    string `json:"screen,omitempty"`
	Desktop   int    `json:"desktop,omitempty"`
	Activity  string `json:"activity,omitempty"`
	X         int    `json:"x,omitempty"`
	Y         int    `json:"y,omitempty"`
}

// ZoneInfo describes one zone in query replies.
type ZoneInfo struct {
	ZoneID   string   `json:"zoneId"`
	Number   int      `json:"zoneNumber"`
	Geometry Geometry `json:"geometry"`
}

// ZoneListReply lists zones, primary first for multi-zone detection.
type ZoneListReply struct {
	Zones []ZoneInfo `json:"zones"`
	Union Geometry   `json:"union"`
}

// NavCommand is a directive-string command from the shortcut source.
type NavCommand struct {
	Directive string `json:"directive"`
	WindowID  string `json:"windowId,omitempty"`
	Screen    string `json:"screen,omitempty"`
}

// NavFeedback reports navigation success/failure for the OSD.
type NavFeedback struct {
	Success bool   `json:"success"`
	Action  string `json:"action"`
	Reason  string `json:"reason"`
}

// SlotRequest dispatches a quick slot 1..9 on a screen.
type SlotRequest struct {
	Slot   int    `json:"slot"`
	Screen string `json:"screen"`
}

// RotatePlan is the precomputed move list applied atomically by the agent.
type RotatePlan struct {
	Moves []WindowGeometry `json:"moves"`
}

// FloatingChanged mirrors a persisted floating-state change to agents.
type FloatingChanged struct {
	StableID string `json:"stableId"`
	Floating bool   `json:"floating"`
}

// WorkAreaChanged reports a screen work-area change from the agent.
type WorkAreaChanged struct {
	Screen   string   `json:"screen"`
	WorkArea Geometry `json:"workArea"`
}

// WindowListReply lists window ids.
type WindowListReply struct {
	Windows []string `json:"windows"`
}

// GeometryUpdates pairs windows with recomputed snap geometries after a
// work-area change.
type GeometryUpdates struct {
	Updates []WindowGeometry `json:"updates"`
}

// SettingsSnapshot is the slice of daemon settings broadcast to agents on
// reload: only the agent-local participation filters travel.
type SettingsSnapshot struct {
	SkipTransients  bool     `json:"skipTransients"`
	MinWindowWidth  int      `json:"minWindowWidth"`
	MinWindowHeight int      `json:"minWindowHeight"`
	ExcludedClasses []string `json:"excludedClasses,omitempty"`
}

// ModeChange is broadcast when the tiling regime of a screen switches.
type ModeChange struct {
	Screen    string `json:"screen"`
	Autotiled bool   `json:"autotiled"`
	Name      string `json:"name"`
	ID        string `json:"id"`
}

// StatusReply answers control.status.
type StatusReply struct {
	Running       bool   `json:"running"`
	LayoutCount   int    `json:"layoutCount"`
	TrackedCount  int    `json:"trackedCount"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	ActiveLayout  string `json:"activeLayout,omitempty"`
}

// LayoutInfo describes one layout in listings.
type LayoutInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      int    `json:"type"`
	ZoneCount int    `json:"zoneCount"`
	Builtin   bool   `json:"builtin"`
}

// LayoutListReply answers control.listLayouts.
type LayoutListReply struct {
	Layouts []LayoutInfo `json:"layouts"`
}

// AssignRequest answers control.assignLayout.
type AssignRequest struct {
	Screen   string `json:"screen"`
	Desktop  int    `json:"desktop"`
	Activity string `json:"activity"`
	LayoutID string `json:"layoutId"`
}
