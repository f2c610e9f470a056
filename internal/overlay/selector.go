package overlay

import (
	"math"

	"github.com/plasmazones/plasmazones/internal/settings"
	"github.com/plasmazones/plasmazones/internal/zone"
)

// Selector popup paddings. The same numbers feed the popup geometry and
// the keep-visible margin, so the cursor can always reach what it sees.
const (
	selectorPaddingX  = 8
	selectorPaddingY  = 8
	selectorSpacing   = 8
	selectorSideMarg  = 12
	indicatorMinWidth = 120
	indicatorMaxWidth = 280
)

// PopupSize is the resolved zone-selector HUD geometry for one screen.
type PopupSize struct {
	IndicatorWidth  int
	IndicatorHeight int
	Columns         int
	VisibleRows     int
	ContainerWidth  int
	ContainerHeight int
	BarWidth        int
	BarHeight       int
}

// ComputeSelectorPopupSize derives the HUD popup dimensions from the
// selector config, the screen geometry and the number of layouts shown.
// The drag coordinator uses the same result as the keep-visible margin for
// the edge-proximity test.
func ComputeSelectorPopupSize(cfg settings.SelectorConfig, screen zone.Rect, layoutCount int) PopupSize {
	if layoutCount < 1 {
		layoutCount = 1
	}

	var size PopupSize
	if cfg.SizeMode == "manual" && cfg.PreviewWidth > 0 && cfg.PreviewHeight > 0 {
		size.IndicatorWidth = cfg.PreviewWidth
		size.IndicatorHeight = cfg.PreviewHeight
	} else {
		w := screen.Width / 10
		if w < indicatorMinWidth {
			w = indicatorMinWidth
		}
		if w > indicatorMaxWidth {
			w = indicatorMaxWidth
		}
		aspect := float64(screen.Width) / float64(screen.Height)
		size.IndicatorWidth = w
		size.IndicatorHeight = int(math.Round(float64(w) / aspect))
	}

	switch cfg.LayoutMode {
	case "horizontal":
		size.Columns = layoutCount
	case "vertical":
		size.Columns = 1
	default: // grid
		size.Columns = cfg.GridColumns
		if size.Columns > layoutCount {
			size.Columns = layoutCount
		}
	}
	if size.Columns < 1 {
		size.Columns = 1
	}

	rows := (layoutCount + size.Columns - 1) / size.Columns
	size.VisibleRows = rows
	if cfg.MaxRows > 0 && size.VisibleRows > cfg.MaxRows {
		size.VisibleRows = cfg.MaxRows
	}
	// Never taller than the screen fits.
	fitRows := (screen.Height - 2*selectorSideMarg - 2*selectorPaddingY + selectorSpacing) /
		(size.IndicatorHeight + selectorSpacing)
	if fitRows < 1 {
		fitRows = 1
	}
	if size.VisibleRows > fitRows {
		size.VisibleRows = fitRows
	}

	size.ContainerWidth = size.Columns*size.IndicatorWidth +
		(size.Columns-1)*selectorSpacing + 2*selectorPaddingX
	size.ContainerHeight = size.VisibleRows*size.IndicatorHeight +
		(size.VisibleRows-1)*selectorSpacing + 2*selectorPaddingY
	size.BarWidth = size.ContainerWidth + 2*selectorSideMarg
	size.BarHeight = size.ContainerHeight + 2*selectorSideMarg
	return size
}

// SelectorProximity reports whether the cursor position should show (or
// keep visible) the zone-selector HUD. Before the HUD is shown the margin
// is the configured trigger distance; once shown it expands to the HUD's
// own bar dimensions so the cursor can enter it without dismissing it.
// Corner positions require proximity on both edges.
func SelectorProximity(cfg settings.SelectorConfig, screen zone.Rect, popup PopupSize, x, y int, shown bool) bool {
	if !screen.Contains(x, y) {
		return false
	}

	hMargin := cfg.TriggerDistance
	vMargin := cfg.TriggerDistance
	if shown {
		hMargin = popup.BarWidth
		vMargin = popup.BarHeight
	}

	nearLeft := x < screen.X+hMargin
	nearRight := x >= screen.X+screen.Width-hMargin
	nearTop := y < screen.Y+vMargin
	nearBottom := y >= screen.Y+screen.Height-vMargin

	switch cfg.Position {
	case settings.SelectorTop:
		return nearTop && withinBarSpanX(screen, popup, x, shown)
	case settings.SelectorBottom:
		return nearBottom && withinBarSpanX(screen, popup, x, shown)
	case settings.SelectorLeft:
		return nearLeft && withinBarSpanY(screen, popup, y, shown)
	case settings.SelectorRight:
		return nearRight && withinBarSpanY(screen, popup, y, shown)
	case settings.SelectorTopLeft:
		return nearTop && nearLeft
	case settings.SelectorTopRight:
		return nearTop && nearRight
	case settings.SelectorBottomLeft:
		return nearBottom && nearLeft
	case settings.SelectorBottomRight:
		return nearBottom && nearRight
	}
	return false
}

// SelectorBarRect places the HUD bar at its configured edge or corner.
func SelectorBarRect(cfg settings.SelectorConfig, screen zone.Rect, popup PopupSize) zone.Rect {
	centerX := screen.X + (screen.Width-popup.BarWidth)/2
	centerY := screen.Y + (screen.Height-popup.BarHeight)/2
	rightX := screen.X + screen.Width - popup.BarWidth
	bottomY := screen.Y + screen.Height - popup.BarHeight

	r := zone.Rect{Width: popup.BarWidth, Height: popup.BarHeight}
	switch cfg.Position {
	case settings.SelectorTop:
		r.X, r.Y = centerX, screen.Y
	case settings.SelectorBottom:
		r.X, r.Y = centerX, bottomY
	case settings.SelectorLeft:
		r.X, r.Y = screen.X, centerY
	case settings.SelectorRight:
		r.X, r.Y = rightX, centerY
	case settings.SelectorTopLeft:
		r.X, r.Y = screen.X, screen.Y
	case settings.SelectorTopRight:
		r.X, r.Y = rightX, screen.Y
	case settings.SelectorBottomLeft:
		r.X, r.Y = screen.X, bottomY
	case settings.SelectorBottomRight:
		r.X, r.Y = rightX, bottomY
	default:
		r.X, r.Y = centerX, screen.Y
	}
	return r
}

// IndicatorRect returns the i-th layout preview cell inside the bar,
// row-major.
func IndicatorRect(bar zone.Rect, popup PopupSize, i int) zone.Rect {
	row := i / popup.Columns
	col := i % popup.Columns
	return zone.Rect{
		X:      bar.X + selectorSideMarg + selectorPaddingX + col*(popup.IndicatorWidth+selectorSpacing),
		Y:      bar.Y + selectorSideMarg + selectorPaddingY + row*(popup.IndicatorHeight+selectorSpacing),
		Width:  popup.IndicatorWidth,
		Height: popup.IndicatorHeight,
	}
}

// HitTestSelector maps a cursor position to (layout index, relative point
// inside that preview). The relative point picks the zone within the
// hovered layout, so a drag over the HUD selects both at once.
func HitTestSelector(bar zone.Rect, popup PopupSize, layoutCount, x, y int) (layoutIdx int, relX, relY float64, ok bool) {
	visible := popup.Columns * popup.VisibleRows
	if layoutCount < visible {
		visible = layoutCount
	}
	for i := 0; i < visible; i++ {
		cell := IndicatorRect(bar, popup, i)
		if cell.Contains(x, y) {
			return i,
				float64(x-cell.X) / float64(cell.Width),
				float64(y-cell.Y) / float64(cell.Height),
				true
		}
	}
	return 0, 0, 0, false
}

// ZoneIndexAt finds the layout zone containing a relative point, -1 when
// no zone covers it.
func ZoneIndexAt(l *zone.Layout, relX, relY float64) int {
	for i := range l.Zones {
		r := l.Zones[i].Relative
		if relX >= r.X && relX < r.X+r.Width && relY >= r.Y && relY < r.Y+r.Height {
			return i
		}
	}
	return -1
}

// withinBarSpanX keeps an edge-centered HUD alive only while the cursor
// stays within its horizontal span; before showing, any x along the edge
// triggers.
func withinBarSpanX(screen zone.Rect, popup PopupSize, x int, shown bool) bool {
	if !shown {
		return true
	}
	center := screen.X + screen.Width/2
	return x >= center-popup.BarWidth/2 && x < center+popup.BarWidth/2
}

func withinBarSpanY(screen zone.Rect, popup PopupSize, y int, shown bool) bool {
	if !shown {
		return true
	}
	center := screen.Y + screen.Height/2
	return y >= center-popup.BarHeight/2 && y < center+popup.BarHeight/2
}
