package x11

import (
	"fmt"
	"sync"
	"time"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"

	"github.com/plasmazones/plasmazones/internal/zone"
)

// workAreaDebounce coalesces the burst of randr/strut events a monitor
// hot-plug produces into one recompute.
const workAreaDebounce = 500 * time.Millisecond

// Monitor represents one physical output. StableID survives output
// renames across cable swaps (EDID-derived when available, output name
// otherwise), so layout assignments follow the panel, not the port.
type Monitor struct {
	Name     string
	StableID string
	Geometry zone.Rect
	WorkArea zone.Rect
}

// GetMonitors retrieves all active outputs via RandR, with work areas
// reduced by dock struts.
func (c *Connection) GetMonitors() ([]Monitor, error) {
	resources, err := randr.GetScreenResources(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var monitors []Monitor
	for _, crtc := range resources.Crtcs {
		crtcInfo, err := randr.GetCrtcInfo(c.XUtil.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		if crtcInfo.Width == 0 || crtcInfo.Height == 0 || len(crtcInfo.Outputs) == 0 {
			continue
		}

		output := crtcInfo.Outputs[0]
		name := fmt.Sprintf("output-%d", output)
		if outputInfo, err := randr.GetOutputInfo(c.XUtil.Conn(), output, resources.ConfigTimestamp).Reply(); err == nil {
			name = string(outputInfo.Name)
		}

		geom := zone.Rect{
			X: int(crtcInfo.X), Y: int(crtcInfo.Y),
			Width: int(crtcInfo.Width), Height: int(crtcInfo.Height),
		}
		mon := Monitor{
			Name:     name,
			StableID: c.stableOutputID(output, name),
			Geometry: geom,
			WorkArea: geom,
		}
		c.applyWorkArea(&mon)
		monitors = append(monitors, mon)
	}
	return monitors, nil
}

// stableOutputID derives a monitor identity from the EDID block:
// manufacturer code, product code and serial. Outputs without an EDID
// (virtual screens, old KVMs) fall back to the output name.
func (c *Connection) stableOutputID(output randr.Output, name string) string {
	atomReply, err := xproto.InternAtom(c.XUtil.Conn(), true,
		uint16(len("EDID")), "EDID").Reply()
	if err != nil || atomReply.Atom == 0 {
		return name
	}
	prop, err := randr.GetOutputProperty(c.XUtil.Conn(), output,
		atomReply.Atom, xproto.AtomAny, 0, 32, false, false).Reply()
	if err != nil || len(prop.Data) < 16 {
		return name
	}
	edid := prop.Data

	// Manufacturer: three 5-bit letters packed into bytes 8..9.
	code := uint16(edid[8])<<8 | uint16(edid[9])
	mfg := string([]byte{
		'A' + byte((code>>10)&0x1f) - 1,
		'A' + byte((code>>5)&0x1f) - 1,
		'A' + byte(code&0x1f) - 1,
	})
	product := uint16(edid[11])<<8 | uint16(edid[10])
	serial := uint32(edid[15])<<24 | uint32(edid[14])<<16 | uint32(edid[13])<<8 | uint32(edid[12])
	return fmt.Sprintf("%s-%04X-%08X", mfg, product, serial)
}

// applyWorkArea shrinks the monitor's work area by dock struts, falling
// back to the EWMH desktop work area when no window publishes struts.
func (c *Connection) applyWorkArea(mon *Monitor) {
	if c.applyDockStruts(mon) {
		return
	}

	workArea, err := ewmh.WorkareaGet(c.XUtil)
	if err != nil || len(workArea) == 0 {
		return
	}
	desktopIndex := 0
	if currentDesktop, err := ewmh.CurrentDesktopGet(c.XUtil); err == nil {
		if int(currentDesktop) >= 0 && int(currentDesktop) < len(workArea) {
			desktopIndex = int(currentDesktop)
		}
	}
	wa := workArea[desktopIndex]

	isect := mon.Geometry.Intersection(zone.Rect{
		X: int(wa.X), Y: int(wa.Y), Width: int(wa.Width), Height: int(wa.Height),
	})
	if !isect.Empty() {
		mon.WorkArea = isect
	}
}

type dockStruts struct {
	left, right, top, bottom int
}

// applyDockStruts accumulates _NET_WM_STRUT(_PARTIAL) of dock windows that
// touch this monitor and reduces its work area accordingly. Reports
// whether any strut applied.
func (c *Connection) applyDockStruts(mon *Monitor) bool {
	rootGeom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(c.Root)).Reply()
	if err != nil {
		return false
	}
	rootWidth := int(rootGeom.Width)
	rootHeight := int(rootGeom.Height)

	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return false
	}

	var struts dockStruts
	for _, windowID := range clients {
		types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
		if err != nil {
			continue
		}
		isDock := false
		for _, t := range types {
			if t == "_NET_WM_WINDOW_TYPE_DOCK" {
				isDock = true
				break
			}
		}
		if !isDock {
			continue
		}

		if sp, err := ewmh.WmStrutPartialGet(c.XUtil, windowID); err == nil {
			accumulateStruts(mon, rootWidth, rootHeight, sp, &struts)
			continue
		}
		// Some docks only set the non-partial strut.
		if s, err := ewmh.WmStrutGet(c.XUtil, windowID); err == nil {
			sp := &ewmh.WmStrutPartial{
				Left: s.Left, Right: s.Right, Top: s.Top, Bottom: s.Bottom,
				LeftStartY: 0, LeftEndY: uint(rootHeight - 1),
				RightStartY: 0, RightEndY: uint(rootHeight - 1),
				TopStartX: 0, TopEndX: uint(rootWidth - 1),
				BottomStartX: 0, BottomEndX: uint(rootWidth - 1),
			}
			accumulateStruts(mon, rootWidth, rootHeight, sp, &struts)
		}
	}

	if struts.left == 0 && struts.right == 0 && struts.top == 0 && struts.bottom == 0 {
		return false
	}

	wa := mon.Geometry
	wa.X += struts.left
	wa.Y += struts.top
	wa.Width -= struts.left + struts.right
	wa.Height -= struts.top + struts.bottom
	if wa.Width < 1 {
		wa.Width = 1
	}
	if wa.Height < 1 {
		wa.Height = 1
	}
	mon.WorkArea = wa
	return true
}

// accumulateStruts folds one strut record into the accumulator, counting
// only the span that actually crosses this monitor.
func accumulateStruts(mon *Monitor, rootWidth, rootHeight int, sp *ewmh.WmStrutPartial, acc *dockStruts) {
	g := mon.Geometry

	if sp.Top > 0 {
		band := zone.Rect{X: int(sp.TopStartX), Y: 0,
			Width: int(sp.TopEndX) - int(sp.TopStartX) + 1, Height: int(sp.Top)}
		if isect := g.Intersection(band); !isect.Empty() {
			acc.top = max(acc.top, isect.Height)
		}
	}
	if sp.Bottom > 0 {
		band := zone.Rect{X: int(sp.BottomStartX), Y: rootHeight - int(sp.Bottom),
			Width: int(sp.BottomEndX) - int(sp.BottomStartX) + 1, Height: int(sp.Bottom)}
		if isect := g.Intersection(band); !isect.Empty() {
			acc.bottom = max(acc.bottom, isect.Height)
		}
	}
	if sp.Left > 0 {
		band := zone.Rect{X: 0, Y: int(sp.LeftStartY),
			Width: int(sp.Left), Height: int(sp.LeftEndY) - int(sp.LeftStartY) + 1}
		if isect := g.Intersection(band); !isect.Empty() {
			acc.left = max(acc.left, isect.Width)
		}
	}
	if sp.Right > 0 {
		band := zone.Rect{X: rootWidth - int(sp.Right), Y: int(sp.RightStartY),
			Width: int(sp.Right), Height: int(sp.RightEndY) - int(sp.RightStartY) + 1}
		if isect := g.Intersection(band); !isect.Empty() {
			acc.right = max(acc.right, isect.Width)
		}
	}
}

// MonitorWatcher debounces screen-configuration changes into a single
// callback per burst.
type MonitorWatcher struct {
	conn     *Connection
	onChange func([]Monitor)

	mu    sync.Mutex
	timer *time.Timer
}

// WatchMonitors builds the debouncer for RandR screen changes; the
// connection already selected the change events on the root window.
// onChange fires on a fresh goroutine after the change burst settles.
func (c *Connection) WatchMonitors(onChange func([]Monitor)) *MonitorWatcher {
	return &MonitorWatcher{conn: c, onChange: onChange}
}

// Kick schedules a debounced recompute. The agent's event loop calls this
// for every randr notify event it drains.
func (w *MonitorWatcher) Kick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(workAreaDebounce, func() {
		monitors, err := w.conn.GetMonitors()
		if err != nil {
			return
		}
		w.onChange(monitors)
	})
}

// Stop cancels any pending recompute.
func (w *MonitorWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
