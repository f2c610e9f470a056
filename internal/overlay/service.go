// Package overlay renders the daemon's on-screen surfaces: zone border
// overlays, the zone-selector HUD, the snap-assist list and the layout
// OSD. Sizing and hit-testing are pure functions; only this file touches
// the X connection.
package overlay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"

	"github.com/plasmazones/plasmazones/internal/settings"
	"github.com/plasmazones/plasmazones/internal/zone"
)

// osdDuration is how long the layout OSD stays up.
const osdDuration = 1200 * time.Millisecond

// ScreenInfo is the slice of monitor data the overlays need.
type ScreenInfo struct {
	Name     string
	Geometry zone.Rect
	WorkArea zone.Rect
}

// Sources are the daemon-side lookups the service renders from.
type Sources struct {
	Screen         func(name string) (ScreenInfo, bool)
	ActiveLayout   func(screen string) *zone.Layout
	Layouts        func() []*zone.Layout
	SelectorConfig func(screen string) settings.SelectorConfig
	Gaps           func(l *zone.Layout) (padding, outerGap int)
}

// selectorState is the live HUD: where it sits and what the cursor has
// picked so far.
type selectorState struct {
	screen  string
	bar     zone.Rect
	popup   PopupSize
	layouts []*zone.Layout
	cells   []xproto.Window
	panel   *textPanel
}

// selectorSelection survives HideZoneSelector until the drop consumes or
// clears it.
type selectorSelection struct {
	layout  *zone.Layout
	zoneIdx int
}

// Service owns all overlay windows.
type Service struct {
	xu   *xgbutil.XUtil
	root xproto.Window
	src  Sources
	log  *slog.Logger

	mu sync.Mutex

	zoneBorders []*borderOverlay
	zoneIDs     []string
	zoneGeoms   []zone.Rect
	zonesShown  bool
	shownScreen string
	highlighted map[string]bool

	sel       *selectorState
	selection *selectorSelection

	assist          *textPanel
	assistVisible   bool
	onAssistDismiss func()

	osd      *textPanel
	osdTimer *time.Timer
}

// NewService creates the overlay service on an existing X connection.
func NewService(xu *xgbutil.XUtil, root xproto.Window, src Sources, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		xu:          xu,
		root:        root,
		src:         src,
		log:         logger.With("component", "overlay"),
		highlighted: make(map[string]bool),
		assist:      &textPanel{},
		osd:         &textPanel{},
	}
}

// Cleanup destroys every overlay window.
func (s *Service) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.zoneBorders {
		b.destroy(s.xu)
	}
	s.zoneBorders = nil
	s.zoneIDs = nil
	s.dropSelectorLocked()
}

// ShowZones renders each listed screen's active layout as zone borders.
// The first screen is the drag's home screen and anchors the layout OSD.
func (s *Service) ShowZones(screens ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(screens) == 0 {
		return
	}

	var ids []string
	var geoms []zone.Rect
	for _, screen := range screens {
		info, ok := s.src.Screen(screen)
		if !ok {
			continue
		}
		l := s.src.ActiveLayout(screen)
		if l == nil {
			continue
		}
		pad, gap := s.src.Gaps(l)
		det := zone.NewDetector(l, info.WorkArea, pad, gap)
		for i, g := range det.Geometries() {
			ids = append(ids, l.Zones[i].ID.String())
			geoms = append(geoms, g)
		}
	}

	for len(s.zoneBorders) < len(geoms) {
		s.zoneBorders = append(s.zoneBorders, &borderOverlay{})
	}
	for i := len(geoms); i < len(s.zoneBorders); i++ {
		s.zoneBorders[i].hide(s.xu)
	}

	s.zoneIDs = ids
	s.zoneGeoms = geoms
	for i, g := range geoms {
		color := uint32(colorZoneIdle)
		if s.highlighted[ids[i]] {
			color = colorZoneActive
		}
		if err := s.zoneBorders[i].show(s.xu, s.root, g, color); err != nil {
			s.log.Warn("failed to render zone border", "zone", ids[i], "error", err)
		}
	}
	s.zonesShown = true
	s.shownScreen = screens[0]
}

// HideZones unmaps all zone borders.
func (s *Service) HideZones() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.zoneBorders {
		b.hide(s.xu)
	}
	s.zonesShown = false
}

// HighlightZones recolors the targeted zones.
func (s *Service) HighlightZones(zoneIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.highlighted = make(map[string]bool, len(zoneIDs))
	for _, id := range zoneIDs {
		s.highlighted[id] = true
	}
	s.recolorLocked()
}

// ClearHighlight reverts all zones to the idle color.
func (s *Service) ClearHighlight() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.highlighted = make(map[string]bool)
	s.recolorLocked()
}

// recolorLocked repaints the mapped borders with the current highlight
// set. Geometry is untouched.
func (s *Service) recolorLocked() {
	if !s.zonesShown {
		return
	}
	for i, id := range s.zoneIDs {
		color := uint32(colorZoneIdle)
		if s.highlighted[id] {
			color = colorZoneActive
		}
		if err := s.zoneBorders[i].show(s.xu, s.root, s.zoneGeoms[i], color); err != nil {
			s.log.Warn("failed to recolor zone border", "zone", id, "error", err)
		}
	}
}

// ShowZoneSelector brings up the HUD bar with one preview cell per
// layout.
func (s *Service) ShowZoneSelector(screen string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sel != nil && s.sel.screen == screen {
		return
	}
	s.dropSelectorLocked()

	info, ok := s.src.Screen(screen)
	if !ok {
		return
	}
	layouts := s.src.Layouts()
	cfg := s.src.SelectorConfig(screen)
	popup := ComputeSelectorPopupSize(cfg, info.Geometry, len(layouts))
	bar := SelectorBarRect(cfg, info.Geometry, popup)

	sel := &selectorState{
		screen:  screen,
		bar:     bar,
		popup:   popup,
		layouts: layouts,
		panel:   &textPanel{},
	}

	// The bar itself is one dark panel; each layout gets a flat preview
	// cell on top of it.
	sel.panel.render(s.xu, s.root, bar.X, bar.Y, barFillerLines(popup))

	visible := popup.Columns * popup.VisibleRows
	if visible > len(layouts) {
		visible = len(layouts)
	}
	for i := 0; i < visible; i++ {
		win, err := createOverrideRedirectWindow(s.xu, s.root)
		if err != nil {
			s.log.Warn("failed to create selector cell", "error", err)
			break
		}
		cell := IndicatorRect(bar, popup, i)
		updateWindow(s.xu, win, cell.X, cell.Y, cell.Width, cell.Height, colorCellIdle)
		xproto.MapWindow(s.xu.Conn(), win)
		sel.cells = append(sel.cells, win)
	}
	s.sel = sel
}

// barFillerLines pads the bar panel to the popup height so the single
// panel window can serve as the HUD backdrop.
func barFillerLines(popup PopupSize) []string {
	rows := (popup.BarHeight - 2*panelPaddingY) / panelLineHeight
	if rows < 1 {
		rows = 1
	}
	return make([]string, rows)
}

// HideZoneSelector drops the HUD but keeps any selection for the pending
// drop decision.
func (s *Service) HideZoneSelector() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropSelectorLocked()
}

func (s *Service) dropSelectorLocked() {
	if s.sel == nil {
		return
	}
	for _, win := range s.sel.cells {
		xproto.DestroyWindow(s.xu.Conn(), win)
	}
	s.sel.panel.hide(s.xu)
	if s.sel.panel.created {
		xproto.DestroyWindow(s.xu.Conn(), s.sel.panel.window)
	}
	s.sel = nil
}

// UpdateSelectorPosition hit-tests the cursor against the HUD: hovering a
// preview cell picks that layout, and the position inside the cell picks
// the zone.
func (s *Service) UpdateSelectorPosition(x, y int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel := s.sel
	if sel == nil {
		return
	}

	idx, relX, relY, ok := HitTestSelector(sel.bar, sel.popup, len(sel.layouts), x, y)
	if !ok {
		return
	}
	l := sel.layouts[idx]
	zi := ZoneIndexAt(l, relX, relY)
	if zi < 0 {
		return
	}
	s.selection = &selectorSelection{layout: l, zoneIdx: zi}

	for i, win := range sel.cells {
		color := uint32(colorCellIdle)
		if i == idx {
			color = colorCellActive
		}
		cell := IndicatorRect(sel.bar, sel.popup, i)
		updateWindow(s.xu, win, cell.X, cell.Y, cell.Width, cell.Height, color)
	}
}

// ZoneSelectorVisible reports whether the HUD is mapped.
func (s *Service) ZoneSelectorVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel != nil
}

// HasSelectedZone reports whether a HUD selection is pending.
func (s *Service) HasSelectedZone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection != nil
}

// SelectedLayoutID returns the picked layout's id, empty without a
// selection.
func (s *Service) SelectedLayoutID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection == nil {
		return ""
	}
	return s.selection.layout.ID.String()
}

// SelectedZone resolves the picked zone's absolute geometry on the given
// screen.
func (s *Service) SelectedZone(screen string) (string, zone.Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection == nil {
		return "", zone.Rect{}, false
	}
	info, ok := s.src.Screen(screen)
	if !ok {
		return "", zone.Rect{}, false
	}
	l := s.selection.layout
	pad, gap := s.src.Gaps(l)
	det := zone.NewDetector(l, info.WorkArea, pad, gap)
	z := &l.Zones[s.selection.zoneIdx]
	g, ok := det.GeometryOf(z.ID)
	if !ok {
		return "", zone.Rect{}, false
	}
	return z.ID.String(), g, true
}

// ClearSelectedZone discards the pending HUD selection.
func (s *Service) ClearSelectedZone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = nil
}

// assistZone is the wire shape of one empty zone in the snap-assist
// payload.
type assistZone struct {
	ZoneID string `json:"zoneId"`
	Number int    `json:"zoneNumber"`
}

// OnSnapAssistDismissed registers the callback fired when the HUD closes.
func (s *Service) OnSnapAssistDismissed(fn func()) {
	s.mu.Lock()
	s.onAssistDismiss = fn
	s.mu.Unlock()
}

// ShowSnapAssist opens the window-picker HUD listing the still-empty
// zones of the release screen.
func (s *Service) ShowSnapAssist(screen, emptyZonesJSON, candidatesJSON string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zones []assistZone
	if err := json.Unmarshal([]byte(emptyZonesJSON), &zones); err != nil || len(zones) == 0 {
		return
	}
	info, ok := s.src.Screen(screen)
	if !ok {
		return
	}

	lines := []string{"Fill remaining zones:"}
	for _, z := range zones {
		lines = append(lines, fmt.Sprintf("  zone %d", z.Number))
	}
	lines = append(lines, "", "Esc to dismiss")

	w, h := panelDimensions(lines)
	x := info.Geometry.X + (info.Geometry.Width-w)/2
	y := info.Geometry.Y + (info.Geometry.Height-h)/2
	s.assist.render(s.xu, s.root, x, y, lines)
	s.assistVisible = true
}

// HideSnapAssist closes the picker and notifies the dismiss callback.
func (s *Service) HideSnapAssist() {
	s.mu.Lock()
	wasVisible := s.assistVisible
	s.assist.hide(s.xu)
	s.assistVisible = false
	fn := s.onAssistDismiss
	s.mu.Unlock()

	if wasVisible && fn != nil {
		fn()
	}
}

// IsSnapAssistVisible reports whether the picker is up.
func (s *Service) IsSnapAssistVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assistVisible
}

// ShowLayoutOsd flashes the layout name on the most recent screen.
func (s *Service) ShowLayoutOsd(layoutName string) {
	s.mu.Lock()
	screen := s.shownScreen
	s.mu.Unlock()
	s.ShowLayoutOsdOn(screen, layoutName)
}

// ShowLayoutOsdOn flashes the layout name on a specific screen.
func (s *Service) ShowLayoutOsdOn(screen, layoutName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.src.Screen(screen)
	if !ok {
		return
	}
	lines := []string{layoutName}
	w, _ := panelDimensions(lines)
	x := info.Geometry.X + (info.Geometry.Width-w)/2
	y := info.Geometry.Y + info.Geometry.Height/8
	s.osd.render(s.xu, s.root, x, y, lines)

	if s.osdTimer != nil {
		s.osdTimer.Stop()
	}
	s.osdTimer = time.AfterFunc(osdDuration, func() {
		s.mu.Lock()
		s.osd.hide(s.xu)
		s.mu.Unlock()
	})
}
