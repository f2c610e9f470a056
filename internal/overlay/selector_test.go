package overlay

import (
	"testing"

	"github.com/plasmazones/plasmazones/internal/settings"
	"github.com/plasmazones/plasmazones/internal/zone"
)

var selScreen = zone.Rect{X: 0, Y: 0, Width: 1920, Height: 1080}

func autoCfg(pos settings.SelectorPosition) settings.SelectorConfig {
	return settings.SelectorConfig{
		Position: pos, LayoutMode: "grid", SizeMode: "auto",
		GridColumns: 3, MaxRows: 3, TriggerDistance: 8,
	}
}

func TestComputeSelectorPopupSizeAuto(t *testing.T) {
	size := ComputeSelectorPopupSize(autoCfg(settings.SelectorTop), selScreen, 6)

	// 1920/10 = 192, within [120, 280].
	if size.IndicatorWidth != 192 {
		t.Fatalf("indicator width: got %d, want 192", size.IndicatorWidth)
	}
	// 192 / (1920/1080) = 108.
	if size.IndicatorHeight != 108 {
		t.Fatalf("indicator height: got %d, want 108", size.IndicatorHeight)
	}
	if size.Columns != 3 || size.VisibleRows != 2 {
		t.Fatalf("grid: got %dx%d, want 3x2", size.Columns, size.VisibleRows)
	}
	wantContainerW := 3*192 + 2*selectorSpacing + 2*selectorPaddingX
	if size.ContainerWidth != wantContainerW {
		t.Fatalf("container width: got %d, want %d", size.ContainerWidth, wantContainerW)
	}
	if size.BarWidth != wantContainerW+2*selectorSideMarg {
		t.Fatalf("bar width: got %d", size.BarWidth)
	}
}

func TestComputeSelectorPopupSizeClamps(t *testing.T) {
	tiny := zone.Rect{Width: 800, Height: 600}
	size := ComputeSelectorPopupSize(autoCfg(settings.SelectorTop), tiny, 3)
	if size.IndicatorWidth != indicatorMinWidth {
		t.Fatalf("expected min clamp %d, got %d", indicatorMinWidth, size.IndicatorWidth)
	}

	huge := zone.Rect{Width: 5120, Height: 1440}
	size = ComputeSelectorPopupSize(autoCfg(settings.SelectorTop), huge, 3)
	if size.IndicatorWidth != indicatorMaxWidth {
		t.Fatalf("expected max clamp %d, got %d", indicatorMaxWidth, size.IndicatorWidth)
	}

	// MaxRows bounds the visible rows.
	cfg := autoCfg(settings.SelectorTop)
	cfg.MaxRows = 1
	size = ComputeSelectorPopupSize(cfg, selScreen, 9)
	if size.VisibleRows != 1 {
		t.Fatalf("maxRows not honored: got %d rows", size.VisibleRows)
	}
}

func TestComputeSelectorPopupSizeModes(t *testing.T) {
	cfg := autoCfg(settings.SelectorTop)
	cfg.LayoutMode = "horizontal"
	size := ComputeSelectorPopupSize(cfg, selScreen, 5)
	if size.Columns != 5 || size.VisibleRows != 1 {
		t.Fatalf("horizontal: got %dx%d", size.Columns, size.VisibleRows)
	}

	cfg.LayoutMode = "vertical"
	cfg.MaxRows = 9
	size = ComputeSelectorPopupSize(cfg, selScreen, 4)
	if size.Columns != 1 || size.VisibleRows != 4 {
		t.Fatalf("vertical: got %dx%d", size.Columns, size.VisibleRows)
	}

	cfg.SizeMode = "manual"
	cfg.PreviewWidth, cfg.PreviewHeight = 160, 90
	size = ComputeSelectorPopupSize(cfg, selScreen, 4)
	if size.IndicatorWidth != 160 || size.IndicatorHeight != 90 {
		t.Fatalf("manual size ignored: %dx%d", size.IndicatorWidth, size.IndicatorHeight)
	}
}

func TestSelectorProximityEdge(t *testing.T) {
	cfg := autoCfg(settings.SelectorTop)
	popup := ComputeSelectorPopupSize(cfg, selScreen, 3)

	if !SelectorProximity(cfg, selScreen, popup, 960, 3, false) {
		t.Fatalf("cursor at the top edge must trigger")
	}
	if SelectorProximity(cfg, selScreen, popup, 960, 50, false) {
		t.Fatalf("cursor away from the edge must not trigger")
	}
	// Once shown, the keep-visible margin grows to the bar height.
	if !SelectorProximity(cfg, selScreen, popup, 960, 50, true) {
		t.Fatalf("cursor inside the shown bar must keep it visible")
	}
	// But only within the bar's horizontal span.
	if SelectorProximity(cfg, selScreen, popup, 30, 50, true) {
		t.Fatalf("cursor outside the bar span must dismiss")
	}
	// Off-screen never triggers.
	if SelectorProximity(cfg, selScreen, popup, 960, -5, false) {
		t.Fatalf("off-screen cursor must not trigger")
	}
}

func TestSelectorBarPlacement(t *testing.T) {
	popup := ComputeSelectorPopupSize(autoCfg(settings.SelectorTop), selScreen, 3)

	bar := SelectorBarRect(autoCfg(settings.SelectorTop), selScreen, popup)
	if bar.Y != 0 || bar.X != (1920-popup.BarWidth)/2 {
		t.Fatalf("top bar misplaced: %+v", bar)
	}

	bar = SelectorBarRect(autoCfg(settings.SelectorBottomRight), selScreen, popup)
	if bar.X != 1920-popup.BarWidth || bar.Y != 1080-popup.BarHeight {
		t.Fatalf("corner bar misplaced: %+v", bar)
	}
}

func TestHitTestSelectorPicksLayoutAndZone(t *testing.T) {
	cfg := autoCfg(settings.SelectorTop)
	popup := ComputeSelectorPopupSize(cfg, selScreen, 3)
	bar := SelectorBarRect(cfg, selScreen, popup)

	// Center of the second preview cell.
	cell := IndicatorRect(bar, popup, 1)
	cx, cy := cell.Center()
	idx, relX, relY, ok := HitTestSelector(bar, popup, 3, cx, cy)
	if !ok || idx != 1 {
		t.Fatalf("hit test: got idx %d ok=%v", idx, ok)
	}
	if relX < 0.4 || relX > 0.6 || relY < 0.4 || relY > 0.6 {
		t.Fatalf("relative point off center: %f,%f", relX, relY)
	}

	// Between cells nothing is hit.
	if _, _, _, ok := HitTestSelector(bar, popup, 3, cell.X-2, cy); ok {
		t.Fatalf("gap between cells must not hit")
	}

	// The relative point maps to the layout zone under it.
	cols := zone.NewColumnsLayout(2)
	if zi := ZoneIndexAt(cols, 0.25, 0.5); zi != 0 {
		t.Fatalf("left half must map to zone index 0, got %d", zi)
	}
	if zi := ZoneIndexAt(cols, 0.75, 0.5); zi != 1 {
		t.Fatalf("right half must map to zone index 1, got %d", zi)
	}
	if zi := ZoneIndexAt(cols, 1.5, 0.5); zi != -1 {
		t.Fatalf("outside the unit square must miss, got %d", zi)
	}
}

func TestSelectorProximityCorner(t *testing.T) {
	cfg := autoCfg(settings.SelectorBottomRight)
	popup := ComputeSelectorPopupSize(cfg, selScreen, 3)

	if !SelectorProximity(cfg, selScreen, popup, 1915, 1075, false) {
		t.Fatalf("corner cursor must trigger")
	}
	// One edge alone is not enough for a corner position.
	if SelectorProximity(cfg, selScreen, popup, 960, 1075, false) {
		t.Fatalf("bottom edge alone must not trigger a corner selector")
	}
	if SelectorProximity(cfg, selScreen, popup, 1915, 500, false) {
		t.Fatalf("right edge alone must not trigger a corner selector")
	}
}
