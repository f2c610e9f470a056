package overlay

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"

	"github.com/plasmazones/plasmazones/internal/zone"
)

// Overlay colors.
const (
	colorZoneIdle   = 0x7f8c8d // gray border for visible zones
	colorZoneActive = 0x3daee9 // highlight for targeted zones
	colorPanelBg    = 0x1f2933 // dark panel background
	colorPanelText  = 0xf5f7fa
	colorCellIdle   = 0x31363b // selector preview cell
	colorCellActive = 0x3daee9
)

// borderThickness is the zone border width in pixels.
const borderThickness = 4

const (
	panelPaddingX   = 10
	panelPaddingY   = 8
	panelLineHeight = 16
	panelCharWidth  = 7
	panelMinWidth   = 180
)

// borderOverlay is a rectangular border made of 4 thin override-redirect
// windows, so the zone interior stays click-through.
type borderOverlay struct {
	top, bottom, left, right xproto.Window
	created                  bool
	mapped                   bool
}

// createOverrideRedirectWindow creates one window that bypasses the WM.
func createOverrideRedirectWindow(xu *xgbutil.XUtil, root xproto.Window) (xproto.Window, error) {
	conn := xu.Conn()
	screen := xu.Screen()

	wid, err := xproto.NewWindowId(conn)
	if err != nil {
		return 0, err
	}
	err = xproto.CreateWindowChecked(
		conn,
		screen.RootDepth,
		wid,
		root,
		0, 0,
		1, 1,
		0,
		xproto.WindowClassInputOutput,
		screen.RootVisual,
		xproto.CwOverrideRedirect|xproto.CwBackPixel,
		// Value list order follows the bit positions of the mask: back_pixel
		// before override_redirect.
		[]uint32{0, 1},
	).Check()
	if err != nil {
		return 0, err
	}
	return wid, nil
}

// updateWindow moves, resizes, restacks and recolors one window.
func updateWindow(xu *xgbutil.XUtil, wid xproto.Window, x, y, width, height int, color uint32) {
	conn := xu.Conn()
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	xproto.ConfigureWindow(
		conn,
		wid,
		xproto.ConfigWindowX|xproto.ConfigWindowY|xproto.ConfigWindowWidth|
			xproto.ConfigWindowHeight|xproto.ConfigWindowStackMode,
		[]uint32{uint32(x), uint32(y), uint32(width), uint32(height), xproto.StackModeAbove},
	)
	xproto.ChangeWindowAttributes(conn, wid, xproto.CwBackPixel, []uint32{color})
	xproto.ClearArea(conn, false, wid, 0, 0, 0, 0)
}

func (b *borderOverlay) create(xu *xgbutil.XUtil, root xproto.Window) error {
	var err error
	if b.top, err = createOverrideRedirectWindow(xu, root); err != nil {
		return err
	}
	if b.bottom, err = createOverrideRedirectWindow(xu, root); err != nil {
		return err
	}
	if b.left, err = createOverrideRedirectWindow(xu, root); err != nil {
		return err
	}
	if b.right, err = createOverrideRedirectWindow(xu, root); err != nil {
		return err
	}
	b.created = true
	return nil
}

// show draws the border around a rect in the given color.
func (b *borderOverlay) show(xu *xgbutil.XUtil, root xproto.Window, r zone.Rect, color uint32) error {
	if !b.created {
		if err := b.create(xu, root); err != nil {
			return err
		}
	}
	t := borderThickness
	updateWindow(xu, b.top, r.X, r.Y, r.Width, t, color)
	updateWindow(xu, b.bottom, r.X, r.Y+r.Height-t, r.Width, t, color)
	updateWindow(xu, b.left, r.X, r.Y+t, t, r.Height-2*t, color)
	updateWindow(xu, b.right, r.X+r.Width-t, r.Y+t, t, r.Height-2*t, color)

	conn := xu.Conn()
	xproto.MapWindow(conn, b.top)
	xproto.MapWindow(conn, b.bottom)
	xproto.MapWindow(conn, b.left)
	xproto.MapWindow(conn, b.right)
	b.mapped = true
	return nil
}

func (b *borderOverlay) hide(xu *xgbutil.XUtil) {
	if !b.mapped {
		return
	}
	conn := xu.Conn()
	xproto.UnmapWindow(conn, b.top)
	xproto.UnmapWindow(conn, b.bottom)
	xproto.UnmapWindow(conn, b.left)
	xproto.UnmapWindow(conn, b.right)
	b.mapped = false
}

func (b *borderOverlay) destroy(xu *xgbutil.XUtil) {
	conn := xu.Conn()
	for _, w := range []xproto.Window{b.top, b.bottom, b.left, b.right} {
		if w != 0 {
			xproto.DestroyWindow(conn, w)
		}
	}
	*b = borderOverlay{}
}

// textPanel is a single-window text surface for the snap-assist list and
// the layout OSD.
type textPanel struct {
	window   xproto.Window
	gc       xproto.Gcontext
	font     xproto.Font
	created  bool
	mapped   bool
	disabled bool
}

// ensure creates the panel window, GC and a core font. Panels degrade to
// disabled when no core font opens; nothing else depends on them.
func (p *textPanel) ensure(xu *xgbutil.XUtil, root xproto.Window) bool {
	if p.disabled {
		return false
	}
	if p.created {
		return true
	}
	conn := xu.Conn()

	win, err := createOverrideRedirectWindow(xu, root)
	if err != nil {
		p.disabled = true
		return false
	}
	font, err := xproto.NewFontId(conn)
	if err != nil {
		xproto.DestroyWindow(conn, win)
		p.disabled = true
		return false
	}
	opened := false
	for _, fontName := range []string{"fixed", "9x15", "8x13", "6x13"} {
		if err := xproto.OpenFontChecked(conn, font, uint16(len(fontName)), fontName).Check(); err == nil {
			opened = true
			break
		}
	}
	if !opened {
		xproto.DestroyWindow(conn, win)
		p.disabled = true
		return false
	}
	gc, err := xproto.NewGcontextId(conn)
	if err != nil {
		xproto.CloseFont(conn, font)
		xproto.DestroyWindow(conn, win)
		p.disabled = true
		return false
	}
	err = xproto.CreateGCChecked(conn, gc, xproto.Drawable(win),
		xproto.GcForeground|xproto.GcBackground|xproto.GcFont,
		[]uint32{colorPanelText, colorPanelBg, uint32(font)}).Check()
	if err != nil {
		xproto.CloseFont(conn, font)
		xproto.DestroyWindow(conn, win)
		p.disabled = true
		return false
	}

	p.window, p.gc, p.font = win, gc, font
	p.created = true
	return true
}

// panelDimensions sizes a panel to its text block.
func panelDimensions(lines []string) (int, int) {
	longest := 0
	for _, line := range lines {
		if len(line) > longest {
			longest = len(line)
		}
	}
	width := longest*panelCharWidth + 2*panelPaddingX
	if width < panelMinWidth {
		width = panelMinWidth
	}
	height := len(lines)*panelLineHeight + 2*panelPaddingY
	return width, height
}

// render draws the text block at the given top-left corner.
func (p *textPanel) render(xu *xgbutil.XUtil, root xproto.Window, x, y int, lines []string) {
	if !p.ensure(xu, root) {
		return
	}
	conn := xu.Conn()
	width, height := panelDimensions(lines)

	updateWindow(xu, p.window, x, y, width, height, colorPanelBg)
	baseline := panelPaddingY + panelLineHeight - 4
	for i, line := range lines {
		if line == "" {
			continue
		}
		if len(line) > 255 {
			line = line[:255]
		}
		xproto.ImageText8(conn, byte(len(line)), xproto.Drawable(p.window), p.gc,
			int16(panelPaddingX), int16(baseline+i*panelLineHeight), line)
	}
	xproto.MapWindow(conn, p.window)
	p.mapped = true
}

func (p *textPanel) hide(xu *xgbutil.XUtil) {
	if p.mapped {
		xproto.UnmapWindow(xu.Conn(), p.window)
		p.mapped = false
	}
}
