package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xwindow"

	"github.com/plasmazones/plasmazones/internal/settings"
	"github.com/plasmazones/plasmazones/internal/zone"
)

// WindowID produces the bus window id "class:resource:0x<win>". The first
// two segments form the stable id tracking records are keyed by.
func (c *Connection) WindowID(win xproto.Window) string {
	class, resource := "unknown", "unknown"
	if hints, err := icccm.WmClassGet(c.XUtil, win); err == nil {
		class, resource = hints.Class, hints.Instance
	}
	return fmt.Sprintf("%s:%s:0x%x", class, resource, uint32(win))
}

// WindowClass returns the WM_CLASS class name, empty when unset.
func (c *Connection) WindowClass(win xproto.Window) string {
	hints, err := icccm.WmClassGet(c.XUtil, win)
	if err != nil {
		return ""
	}
	return hints.Class
}

// IsTransient reports whether the window is a transient (dialog) of
// another window.
func (c *Connection) IsTransient(win xproto.Window) bool {
	parent, err := icccm.WmTransientForGet(c.XUtil, win)
	return err == nil && parent != 0
}

// IsNormalWindow reports whether the window is a regular application
// window rather than a desktop shell component.
func (c *Connection) IsNormalWindow(win xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, win)
	if err != nil {
		return true
	}
	for _, t := range types {
		switch t {
		case "_NET_WM_WINDOW_TYPE_NORMAL":
			return true
		case "_NET_WM_WINDOW_TYPE_DESKTOP",
			"_NET_WM_WINDOW_TYPE_DOCK",
			"_NET_WM_WINDOW_TYPE_SPLASH",
			"_NET_WM_WINDOW_TYPE_TOOLTIP",
			"_NET_WM_WINDOW_TYPE_NOTIFICATION":
			return false
		}
	}
	return len(types) == 0
}

// IsFullscreen reports whether the window carries the fullscreen state.
// Fullscreen transitions cancel drags.
func (c *Connection) IsFullscreen(win xproto.Window) bool {
	states, err := ewmh.WmStateGet(c.XUtil, win)
	if err != nil {
		return false
	}
	for _, s := range states {
		if s == "_NET_WM_STATE_FULLSCREEN" {
			return true
		}
	}
	return false
}

// WindowGeometry returns the window's root-relative geometry.
func (c *Connection) WindowGeometry(win xproto.Window) (zone.Rect, error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(win)).Reply()
	if err != nil {
		return zone.Rect{}, fmt.Errorf("failed to get window geometry: %w", err)
	}
	translate, err := xproto.TranslateCoordinates(c.XUtil.Conn(), win, c.Root, 0, 0).Reply()
	if err != nil {
		return zone.Rect{}, fmt.Errorf("failed to translate window coordinates: %w", err)
	}
	return zone.Rect{
		X: int(translate.DstX), Y: int(translate.DstY),
		Width: int(geom.Width), Height: int(geom.Height),
	}, nil
}

// MoveResizeWindow applies a geometry, dropping any maximized state first
// so the WM honors the request.
func (c *Connection) MoveResizeWindow(win xproto.Window, g zone.Rect) error {
	c.unmaximizeWindow(win)

	if err := ewmh.MoveresizeWindow(c.XUtil, win, g.X, g.Y, g.Width, g.Height); err != nil {
		// Fallback to a direct configure request.
		xwindow.New(c.XUtil, win).MoveResize(g.X, g.Y, g.Width, g.Height)
	}
	return nil
}

// ResizeWindow changes only the window size, keeping its position. Used
// for the restore-size-only path when a snapped window is dragged free.
func (c *Connection) ResizeWindow(win xproto.Window, width, height int) error {
	c.unmaximizeWindow(win)
	xwindow.New(c.XUtil, win).Resize(width, height)
	return nil
}

func (c *Connection) unmaximizeWindow(win xproto.Window) {
	states, err := ewmh.WmStateGet(c.XUtil, win)
	if err != nil {
		return
	}
	for _, state := range states {
		if state == "_NET_WM_STATE_MAXIMIZED_HORZ" || state == "_NET_WM_STATE_MAXIMIZED_VERT" {
			ewmh.WmStateReq(c.XUtil, win, 0, state)
		}
	}
}

// ActiveWindow returns the focused window.
func (c *Connection) ActiveWindow() (xproto.Window, error) {
	return ewmh.ActiveWindowGet(c.XUtil)
}

// ClientList returns the WM's managed windows in stacking order.
func (c *Connection) ClientList() ([]xproto.Window, error) {
	return ewmh.ClientListStackingGet(c.XUtil)
}

// FocusWindow activates and raises a window with _NET_ACTIVE_WINDOW. The
// client message is built manually because the xgbutil helper panics on
// this library version (uint vs int type assertion).
func (c *Connection) FocusWindow(win xproto.Window) error {
	atomReply, err := xproto.InternAtom(c.XUtil.Conn(), false,
		uint16(len("_NET_ACTIVE_WINDOW")), "_NET_ACTIVE_WINDOW").Reply()
	if err != nil {
		return fmt.Errorf("failed to intern _NET_ACTIVE_WINDOW: %w", err)
	}

	const sourceIndication = 2 // pager/direct action
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   atomReply.Atom,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{sourceIndication, 0, 0, 0, 0}),
	}
	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		c.Root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	).Check()
}

// CurrentDesktop returns the current virtual desktop (0-indexed).
func (c *Connection) CurrentDesktop() (int, error) {
	desktop, err := ewmh.CurrentDesktopGet(c.XUtil)
	if err != nil {
		return 0, fmt.Errorf("failed to get current desktop: %w", err)
	}
	return int(desktop), nil
}

// IsSticky reports whether the window is on all desktops.
func (c *Connection) IsSticky(win xproto.Window) bool {
	desktop, err := ewmh.WmDesktopGet(c.XUtil, win)
	return err == nil && desktop == 0xFFFFFFFF
}

// PointerState is one sample of the pointer position and held masks, in
// the bus encoding (settings.Mod*/Button* bits).
type PointerState struct {
	X, Y      int
	Modifiers int
	Buttons   int
}

// QueryPointer samples the pointer. The X key-button mask already matches
// the bus modifier encoding, so modifiers pass through bit-for-bit.
func (c *Connection) QueryPointer() (PointerState, error) {
	reply, err := xproto.QueryPointer(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return PointerState{}, fmt.Errorf("failed to query pointer: %w", err)
	}

	mask := int(reply.Mask)
	ps := PointerState{
		X: int(reply.RootX), Y: int(reply.RootY),
		Modifiers: mask & (settings.ModShift | settings.ModControl | settings.ModAlt | settings.ModMeta),
	}
	if mask&int(xproto.KeyButMaskButton1) != 0 {
		ps.Buttons |= settings.ButtonLeft
	}
	if mask&int(xproto.KeyButMaskButton2) != 0 {
		ps.Buttons |= settings.ButtonMiddle
	}
	if mask&int(xproto.KeyButMaskButton3) != 0 {
		ps.Buttons |= settings.ButtonRight
	}
	return ps, nil
}
