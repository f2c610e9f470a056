package zone

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Direction is a cardinal navigation direction.
type Direction int

const (
	DirNone Direction = iota
	DirLeft
	DirRight
	DirUp
	DirDown
)

func (d Direction) String() string {
	switch d {
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	}
	return "none"
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	switch d {
	case DirLeft:
		return DirRight
	case DirRight:
		return DirLeft
	case DirUp:
		return DirDown
	case DirDown:
		return DirUp
	}
	return DirNone
}

// ParseDirection maps the wire form ("left", "right", "up", "down") to a
// Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "left":
		return DirLeft, nil
	case "right":
		return DirRight, nil
	case "up":
		return DirUp, nil
	case "down":
		return DirDown, nil
	}
	return DirNone, fmt.Errorf("unknown direction %q", s)
}

// Detector answers zone-detection queries for one layout resolved against
// one screen work area.
type Detector struct {
	layout *Layout
	rects  []Rect // absolute geometry per zone, index-aligned with layout.Zones
}

// NewDetector resolves the layout's zones against the work area. padding
// and outerGap are the global defaults; the layout's own values win when
// set.
func NewDetector(l *Layout, work Rect, padding, outerGap int) *Detector {
	d := &Detector{layout: l}
	if l == nil {
		return d
	}
	pad := l.EffectivePadding(padding)
	gap := l.EffectiveOuterGap(outerGap)
	d.rects = make([]Rect, len(l.Zones))
	for i := range l.Zones {
		d.rects[i] = l.Zones[i].AbsoluteGeometry(work, pad, gap)
	}
	return d
}

// Layout returns the layout the detector was built from.
func (d *Detector) Layout() *Layout { return d.layout }

// Geometries returns the resolved absolute geometry of every zone,
// index-aligned with the layout's zones.
func (d *Detector) Geometries() []Rect { return d.rects }

// GeometryOf returns the absolute geometry of the zone with the given id.
func (d *Detector) GeometryOf(id uuid.UUID) (Rect, bool) {
	if i := d.indexOf(id); i >= 0 {
		return d.rects[i], true
	}
	return Rect{}, false
}

func (d *Detector) indexOf(id uuid.UUID) int {
	if d.layout == nil {
		return -1
	}
	for i := range d.layout.Zones {
		if d.layout.Zones[i].ID == id {
			return i
		}
	}
	return -1
}

// ZoneAt returns the zone containing the point, or nil. Zones are
// non-overlapping by construction, so the first hit wins.
func (d *Detector) ZoneAt(x, y int) *Zone {
	for i := range d.rects {
		if d.rects[i].Contains(x, y) {
			return &d.layout.Zones[i]
		}
	}
	return nil
}

// NearestZone returns the zone whose bounding rect is closest to the
// point. Ties break toward the smaller zone, then the lower zone number.
func (d *Detector) NearestZone(x, y int) *Zone {
	if d.layout == nil || len(d.layout.Zones) == 0 {
		return nil
	}
	best := -1
	var bestDist float64
	for i := range d.rects {
		dist := d.rects[i].DistanceTo(x, y)
		if best < 0 || dist < bestDist {
			best, bestDist = i, dist
			continue
		}
		if dist == bestDist {
			cur := &d.layout.Zones[best]
			cand := &d.layout.Zones[i]
			if d.rects[i].Area() < d.rects[best].Area() ||
				(d.rects[i].Area() == d.rects[best].Area() && cand.Number < cur.Number) {
				best = i
			}
		}
	}
	return &d.layout.Zones[best]
}

// MultiZoneAt runs proximity multi-zone detection: the zone containing the
// point plus every neighbor whose shared edge lies within threshold pixels
// of the cursor. Returns the selected zones (primary first), their union
// rect, and whether more than one zone was selected.
func (d *Detector) MultiZoneAt(x, y, threshold int) ([]*Zone, Rect, bool) {
	primary := d.ZoneAt(x, y)
	if primary == nil {
		return nil, Rect{}, false
	}
	primaryIdx := d.indexOf(primary.ID)
	union := d.rects[primaryIdx]

	// A probe rect of half-extent threshold around the cursor reaches
	// exactly the zones whose shared edge is within threshold, including
	// the diagonal neighbor when the cursor sits near a corner.
	probe := Rect{X: x - threshold, Y: y - threshold, Width: 2 * threshold, Height: 2 * threshold}

	zones := []*Zone{primary}
	for i := range d.rects {
		if i == primaryIdx {
			continue
		}
		if d.rects[i].Intersects(probe) {
			zones = append(zones, &d.layout.Zones[i])
			union = union.Union(d.rects[i])
		}
	}
	return zones, union, len(zones) > 1
}

// ExpandPaintedZones implements paint-to-span: given the zones the cursor
// has passed through, compute the bounding rect of their union and return
// every zone that overlaps it, plus the union rect. The same algorithm is
// used by the layout editor, so the in-drag preview matches the final
// snap. An empty seed set yields no expansion.
func (d *Detector) ExpandPaintedZones(seeds []uuid.UUID) ([]*Zone, Rect) {
	if len(seeds) == 0 {
		return nil, Rect{}
	}
	var bounds Rect
	haveBounds := false
	for _, id := range seeds {
		i := d.indexOf(id)
		if i < 0 {
			continue
		}
		if !haveBounds {
			bounds = d.rects[i]
			haveBounds = true
		} else {
			bounds = bounds.Union(d.rects[i])
		}
	}
	if !haveBounds {
		return nil, Rect{}
	}

	var zones []*Zone
	union := bounds
	for i := range d.rects {
		if d.rects[i].Intersects(bounds) {
			zones = append(zones, &d.layout.Zones[i])
			union = union.Union(d.rects[i])
		}
	}
	sort.Slice(zones, func(a, b int) bool { return zones[a].Number < zones[b].Number })
	return zones, union
}

// AdjacentZone returns the neighbor whose center is strictly in dir from
// the given zone's center, minimizing primary-axis distance with the
// cross-axis distance weighted 2×, so horizontal navigation prefers
// vertically aligned neighbors.
func (d *Detector) AdjacentZone(id uuid.UUID, dir Direction) *Zone {
	cur := d.indexOf(id)
	if cur < 0 || dir == DirNone {
		return nil
	}
	cx, cy := d.rects[cur].Center()

	best := -1
	bestScore := 0
	for i := range d.rects {
		if i == cur {
			continue
		}
		zx, zy := d.rects[i].Center()
		var primaryDist, crossDist int
		switch dir {
		case DirLeft:
			if zx >= cx {
				continue
			}
			primaryDist, crossDist = cx-zx, abs(zy-cy)
		case DirRight:
			if zx <= cx {
				continue
			}
			primaryDist, crossDist = zx-cx, abs(zy-cy)
		case DirUp:
			if zy >= cy {
				continue
			}
			primaryDist, crossDist = cy-zy, abs(zx-cx)
		case DirDown:
			if zy <= cy {
				continue
			}
			primaryDist, crossDist = zy-cy, abs(zx-cx)
		}
		score := primaryDist + 2*crossDist
		if best < 0 || score < bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return nil
	}
	return &d.layout.Zones[best]
}

// FirstZoneInDirection returns the edge-most zone of the layout along the
// given direction: the leftmost zone for left, the bottom-most for down,
// and so on. Ties break toward the lower zone number.
func (d *Detector) FirstZoneInDirection(dir Direction) *Zone {
	if d.layout == nil || len(d.layout.Zones) == 0 || dir == DirNone {
		return nil
	}
	best := 0
	for i := 1; i < len(d.rects); i++ {
		bx, by := d.rects[best].Center()
		zx, zy := d.rects[i].Center()
		better := false
		switch dir {
		case DirLeft:
			better = zx < bx
		case DirRight:
			better = zx > bx
		case DirUp:
			better = zy < by
		case DirDown:
			better = zy > by
		}
		if better {
			best = i
		}
	}
	return &d.layout.Zones[best]
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
