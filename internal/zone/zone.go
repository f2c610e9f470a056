package zone

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Rect represents an absolute window or zone geometry in pixels.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Contains reports whether the point lies inside the rect.
// Rects are half-open: the right and bottom edges are excluded, so a
// point on a shared edge belongs to exactly one zone.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Union returns the smallest rect covering both r and o.
func (r Rect) Union(o Rect) Rect {
	x1 := min(r.X, o.X)
	y1 := min(r.Y, o.Y)
	x2 := max(r.X+r.Width, o.X+o.Width)
	y2 := max(r.Y+r.Height, o.Y+o.Height)
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Intersects reports whether r and o strictly overlap. Rects that only
// share an edge do not intersect.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// Intersection returns the overlap of r and o, the zero Rect when they
// are disjoint.
func (r Rect) Intersection(o Rect) Rect {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.X+r.Width, o.X+o.Width)
	y2 := min(r.Y+r.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Center returns the center point of the rect.
func (r Rect) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the rect area in square pixels.
func (r Rect) Area() int {
	return r.Width * r.Height
}

// Empty reports whether the rect has no usable dimensions.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// DistanceTo returns the Euclidean distance from the point to the rect
// boundary, zero if the point is inside.
func (r Rect) DistanceTo(x, y int) float64 {
	dx := 0
	if x < r.X {
		dx = r.X - x
	} else if x >= r.X+r.Width {
		dx = x - (r.X + r.Width - 1)
	}
	dy := 0
	if y < r.Y {
		dy = r.Y - y
	} else if y >= r.Y+r.Height {
		dy = y - (r.Y + r.Height - 1)
	}
	return math.Hypot(float64(dx), float64(dy))
}

// RelRect is a zone geometry relative to the screen work area. All
// components are in [0,1].
type RelRect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Valid reports whether the relative geometry stays within the unit square.
func (r RelRect) Valid() bool {
	const eps = 1e-9
	return r.X >= -eps && r.Y >= -eps &&
		r.Width > 0 && r.Height > 0 &&
		r.X+r.Width <= 1+eps && r.Y+r.Height <= 1+eps
}

// LayoutType enumerates the built-in layout families.
type LayoutType int

const (
	TypeColumns LayoutType = iota
	TypeRows
	TypeGrid
	TypePriority
	TypeFocus
	TypeCustom
)

func (t LayoutType) String() string {
	switch t {
	case TypeColumns:
		return "columns"
	case TypeRows:
		return "rows"
	case TypeGrid:
		return "grid"
	case TypePriority:
		return "priority"
	case TypeFocus:
		return "focus"
	case TypeCustom:
		return "custom"
	}
	return fmt.Sprintf("layoutType(%d)", int(t))
}

// Appearance holds optional per-zone color/border overrides for the overlay.
type Appearance struct {
	HighlightColor  string  `json:"highlightColor,omitempty"`
	InactiveColor   string  `json:"inactiveColor,omitempty"`
	BorderColor     string  `json:"borderColor,omitempty"`
	ActiveOpacity   float64 `json:"activeOpacity,omitempty"`
	InactiveOpacity float64 `json:"inactiveOpacity,omitempty"`
	BorderWidth     int     `json:"borderWidth,omitempty"`
	BorderRadius    int     `json:"borderRadius,omitempty"`
	UseCustomColors bool    `json:"useCustomColors,omitempty"`
}

// Zone is a single rectangular target within a layout.
type Zone struct {
	ID         uuid.UUID
	Number     int // 1..N within the layout, used for number-key snap
	Name       string
	Relative   RelRect
	Appearance *Appearance
}

// Layout is an ordered partition of a work area into zones.
type Layout struct {
	ID    uuid.UUID
	Name  string
	Type  LayoutType
	Zones []Zone

	// ZonePadding and OuterGap override the global defaults when non-nil.
	ZonePadding *int
	OuterGap    *int

	ShaderID     string
	ShaderParams map[string]float64

	// SourcePath is the file the layout was loaded from. Empty means the
	// layout is user-owned and deletable.
	SourcePath string
}

// ZoneByID returns the zone with the given id, or nil.
func (l *Layout) ZoneByID(id uuid.UUID) *Zone {
	for i := range l.Zones {
		if l.Zones[i].ID == id {
			return &l.Zones[i]
		}
	}
	return nil
}

// ZoneByNumber returns the zone with the given 1-based number, or nil.
func (l *Layout) ZoneByNumber(n int) *Zone {
	for i := range l.Zones {
		if l.Zones[i].Number == n {
			return &l.Zones[i]
		}
	}
	return nil
}

// Validate checks the structural invariants: zone numbers contiguous from 1
// and every relative geometry inside the unit square.
func (l *Layout) Validate() error {
	seen := make(map[int]bool, len(l.Zones))
	for i := range l.Zones {
		z := &l.Zones[i]
		if !z.Relative.Valid() {
			return fmt.Errorf("zone %q: relative geometry out of range: %+v", z.Name, z.Relative)
		}
		if z.Number < 1 || z.Number > len(l.Zones) {
			return fmt.Errorf("zone %q: number %d out of range 1..%d", z.Name, z.Number, len(l.Zones))
		}
		if seen[z.Number] {
			return fmt.Errorf("zone %q: duplicate number %d", z.Name, z.Number)
		}
		seen[z.Number] = true
	}
	return nil
}

// roundHalfEven rounds to the nearest integer, ties to even.
func roundHalfEven(v float64) int {
	return int(math.RoundToEven(v))
}

const edgeEps = 1e-6

// AbsoluteGeometry resolves a zone's relative geometry against the work
// area and insets it by padding on interior sides and by outerGap on sides
// that touch the work-area boundary.
//
// Left/right (top/bottom) pixel edges are derived from the same rounded
// coordinates, so zones that share a relative edge stay edge-sharing after
// rounding.
func (z *Zone) AbsoluteGeometry(work Rect, padding, outerGap int) Rect {
	left := roundHalfEven(z.Relative.X * float64(work.Width))
	right := roundHalfEven((z.Relative.X + z.Relative.Width) * float64(work.Width))
	top := roundHalfEven(z.Relative.Y * float64(work.Height))
	bottom := roundHalfEven((z.Relative.Y + z.Relative.Height) * float64(work.Height))

	insetLeft, insetRight, insetTop, insetBottom := padding, padding, padding, padding
	if z.Relative.X <= edgeEps {
		insetLeft = outerGap
	}
	if z.Relative.X+z.Relative.Width >= 1-edgeEps {
		insetRight = outerGap
	}
	if z.Relative.Y <= edgeEps {
		insetTop = outerGap
	}
	if z.Relative.Y+z.Relative.Height >= 1-edgeEps {
		insetBottom = outerGap
	}

	r := Rect{
		X:      work.X + left + insetLeft,
		Y:      work.Y + top + insetTop,
		Width:  (right - left) - insetLeft - insetRight,
		Height: (bottom - top) - insetTop - insetBottom,
	}
	if r.Width < 1 {
		r.Width = 1
	}
	if r.Height < 1 {
		r.Height = 1
	}
	return r
}

// EffectivePadding returns the layout's zone padding, falling back to the
// given global default.
func (l *Layout) EffectivePadding(global int) int {
	if l.ZonePadding != nil {
		return *l.ZonePadding
	}
	return global
}

// EffectiveOuterGap returns the layout's outer gap, falling back to the
// given global default.
func (l *Layout) EffectiveOuterGap(global int) int {
	if l.OuterGap != nil {
		return *l.OuterGap
	}
	return global
}
