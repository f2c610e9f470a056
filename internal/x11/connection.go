// Package x11 is the compositor adapter: connection handling, monitor and
// work-area discovery, window properties and geometry application. All X
// specifics stay behind this package; the rest of the agent works with
// plain geometry and stable ids.
package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Connection manages the X11 connection and core X resources. Extension
// setup happens once here; the monitor and window code assumes RandR is
// ready and root change events are selected.
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window
}

// NewConnection connects to the X server and prepares the extensions in
// use: keybind for the hotkey and Escape grabs, RandR with screen, crtc
// and output change events selected on the root window.
func NewConnection() (*Connection, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("x server unavailable: %w", err)
	}
	root := xu.RootWin()

	keybind.Initialize(xu)

	if err := randr.Init(xu.Conn()); err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("randr init failed: %w", err)
	}
	err = randr.SelectInputChecked(xu.Conn(), root,
		randr.NotifyMaskScreenChange|randr.NotifyMaskCrtcChange|randr.NotifyMaskOutputChange).Check()
	if err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("failed to select randr input: %w", err)
	}

	return &Connection{XUtil: xu, Root: root}, nil
}

// EventLoop runs the X event loop (blocking).
func (c *Connection) EventLoop() {
	xevent.Main(c.XUtil)
}

// Close disconnects from the X server.
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}
