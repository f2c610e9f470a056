package zone

import (
	"encoding/json"
	"testing"
)

func TestAbsoluteGeometryNoGaps(t *testing.T) {
	work := Rect{X: 0, Y: 0, Width: 1920, Height: 1080}
	right := Zone{Number: 2, Relative: RelRect{X: 0.5, Y: 0, Width: 0.5, Height: 1}}

	got := right.AbsoluteGeometry(work, 0, 0)
	want := Rect{X: 960, Y: 0, Width: 960, Height: 1080}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestAbsoluteGeometryEdgeSharingAfterRounding(t *testing.T) {
	// A width that does not divide by 3: the right edge of zone i must
	// equal the left edge of zone i+1 regardless of rounding.
	work := Rect{X: 7, Y: 3, Width: 1366, Height: 768}
	l := NewColumnsLayout(3)

	var prevRight int
	for i := range l.Zones {
		r := l.Zones[i].AbsoluteGeometry(work, 0, 0)
		if i > 0 && r.X != prevRight {
			t.Fatalf("zone %d: left edge %d does not meet previous right edge %d", i+1, r.X, prevRight)
		}
		prevRight = r.X + r.Width
	}
	if prevRight != work.X+work.Width {
		t.Fatalf("last zone right edge %d, want %d", prevRight, work.X+work.Width)
	}
}

func TestAbsoluteGeometryPaddingAndOuterGap(t *testing.T) {
	work := Rect{X: 0, Y: 0, Width: 1000, Height: 500}
	l := NewColumnsLayout(2)

	left := l.Zones[0].AbsoluteGeometry(work, 4, 10)
	// Left/top/bottom touch the work-area boundary: outer gap 10.
	// Right edge is interior: padding 4.
	want := Rect{X: 10, Y: 10, Width: 500 - 10 - 4, Height: 500 - 20}
	if left != want {
		t.Fatalf("left zone: expected %+v, got %+v", want, left)
	}

	right := l.Zones[1].AbsoluteGeometry(work, 4, 10)
	if right.X != 504 || right.X+right.Width != 990 {
		t.Fatalf("right zone: expected x=504..990, got x=%d..%d", right.X, right.X+right.Width)
	}
}

func TestZonesNonOverlappingWithGaps(t *testing.T) {
	work := Rect{X: 0, Y: 0, Width: 1920, Height: 1080}
	for _, l := range BuiltinLayouts() {
		rects := make([]Rect, len(l.Zones))
		for i := range l.Zones {
			rects[i] = l.Zones[i].AbsoluteGeometry(work, 8, 12)
		}
		for i := range rects {
			for j := i + 1; j < len(rects); j++ {
				if rects[i].Intersects(rects[j]) {
					t.Fatalf("layout %q: zones %d and %d overlap: %+v vs %+v",
						l.Name, i+1, j+1, rects[i], rects[j])
				}
			}
		}
	}
}

func TestLayoutJSONRoundTrip(t *testing.T) {
	pad := 6
	l := NewGridLayout(2, 2)
	l.ZonePadding = &pad
	l.Zones[0].Appearance = &Appearance{
		HighlightColor: "#3498db", ActiveOpacity: 0.4, BorderWidth: 2, UseCustomColors: true,
	}

	data, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := ParseLayout(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if back.ID != l.ID || back.Name != l.Name || back.Type != l.Type {
		t.Fatalf("header mismatch: got %+v", back)
	}
	if back.ZonePadding == nil || *back.ZonePadding != pad {
		t.Fatalf("zonePadding not preserved: %v", back.ZonePadding)
	}
	if len(back.Zones) != len(l.Zones) {
		t.Fatalf("expected %d zones, got %d", len(l.Zones), len(back.Zones))
	}
	for i := range l.Zones {
		if back.Zones[i].ID != l.Zones[i].ID ||
			back.Zones[i].Number != l.Zones[i].Number ||
			back.Zones[i].Relative != l.Zones[i].Relative {
			t.Fatalf("zone %d mismatch: %+v vs %+v", i, back.Zones[i], l.Zones[i])
		}
	}
	if back.Zones[0].Appearance == nil || back.Zones[0].Appearance.HighlightColor != "#3498db" {
		t.Fatalf("appearance not preserved: %+v", back.Zones[0].Appearance)
	}
}

func TestParseLayoutRejectsMalformed(t *testing.T) {
	if _, err := ParseLayout([]byte(`{"id": 5`)); err == nil {
		t.Fatalf("expected error for truncated JSON")
	}
	// Duplicate zone numbers fail validation; nothing is partially loaded.
	bad := `{"id":"c2a7a1a6-0000-4000-8000-000000000001","name":"bad","type":5,
	  "zones":[
	    {"id":"c2a7a1a6-0000-4000-8000-000000000002","name":"a","zoneNumber":1,
	     "relativeGeometry":{"x":0,"y":0,"width":0.5,"height":1}},
	    {"id":"c2a7a1a6-0000-4000-8000-000000000003","name":"b","zoneNumber":1,
	     "relativeGeometry":{"x":0.5,"y":0,"width":0.5,"height":1}}]}`
	if _, err := ParseLayout([]byte(bad)); err == nil {
		t.Fatalf("expected error for duplicate zone numbers")
	}
}

func TestBuiltinLayoutIDsStable(t *testing.T) {
	a := NewGridLayout(2, 2)
	b := NewGridLayout(2, 2)
	if a.ID != b.ID {
		t.Fatalf("builtin layout id not stable: %s vs %s", a.ID, b.ID)
	}
	if a.Zones[0].ID != b.Zones[0].ID {
		t.Fatalf("builtin zone id not stable")
	}
	if NewGridLayout(3, 3).ID == a.ID {
		t.Fatalf("distinct builtins share an id")
	}
}
