package zone

import (
	"fmt"

	"github.com/google/uuid"
)

// builtinNamespace seeds the UUIDs of system layouts so their ids stay
// stable across versions and installs.
var builtinNamespace = uuid.MustParse("7b1f0a4e-52c3-4de9-9d2e-3a86f1c0b5d4")

func builtinID(key string) uuid.UUID {
	return uuid.NewSHA1(builtinNamespace, []byte(key))
}

func builtinZone(layoutKey string, number int, name string, rel RelRect) Zone {
	return Zone{
		ID:       builtinID(fmt.Sprintf("%s/zone-%d", layoutKey, number)),
		Number:   number,
		Name:     name,
		Relative: rel,
	}
}

// NewColumnsLayout builds a layout of n equal-width columns.
func NewColumnsLayout(n int) *Layout {
	key := fmt.Sprintf("columns-%d", n)
	l := &Layout{
		ID:   builtinID(key),
		Name: fmt.Sprintf("%d Columns", n),
		Type: TypeColumns,
	}
	w := 1.0 / float64(n)
	for i := 0; i < n; i++ {
		l.Zones = append(l.Zones, builtinZone(key, i+1,
			fmt.Sprintf("Column %d", i+1),
			RelRect{X: float64(i) * w, Y: 0, Width: w, Height: 1}))
	}
	return l
}

// NewRowsLayout builds a layout of n equal-height rows.
func NewRowsLayout(n int) *Layout {
	key := fmt.Sprintf("rows-%d", n)
	l := &Layout{
		ID:   builtinID(key),
		Name: fmt.Sprintf("%d Rows", n),
		Type: TypeRows,
	}
	h := 1.0 / float64(n)
	for i := 0; i < n; i++ {
		l.Zones = append(l.Zones, builtinZone(key, i+1,
			fmt.Sprintf("Row %d", i+1),
			RelRect{X: 0, Y: float64(i) * h, Width: 1, Height: h}))
	}
	return l
}

// NewGridLayout builds a rows×cols grid layout. Zone numbers run
// row-major from the top left.
func NewGridLayout(rows, cols int) *Layout {
	key := fmt.Sprintf("grid-%dx%d", rows, cols)
	l := &Layout{
		ID:   builtinID(key),
		Name: fmt.Sprintf("Grid %d×%d", rows, cols),
		Type: TypeGrid,
	}
	w := 1.0 / float64(cols)
	h := 1.0 / float64(rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			n := r*cols + c + 1
			l.Zones = append(l.Zones, builtinZone(key, n,
				fmt.Sprintf("Cell %d", n),
				RelRect{X: float64(c) * w, Y: float64(r) * h, Width: w, Height: h}))
		}
	}
	return l
}

// NewPriorityLayout builds a wide center zone flanked by two narrow side
// zones.
func NewPriorityLayout() *Layout {
	const key = "priority"
	return &Layout{
		ID:   builtinID(key),
		Name: "Priority",
		Type: TypePriority,
		Zones: []Zone{
			builtinZone(key, 1, "Main", RelRect{X: 0.25, Y: 0, Width: 0.5, Height: 1}),
			builtinZone(key, 2, "Left", RelRect{X: 0, Y: 0, Width: 0.25, Height: 1}),
			builtinZone(key, 3, "Right", RelRect{X: 0.75, Y: 0, Width: 0.25, Height: 1}),
		},
	}
}

// NewFocusLayout builds a single full-work-area zone.
func NewFocusLayout() *Layout {
	const key = "focus"
	return &Layout{
		ID:   builtinID(key),
		Name: "Focus",
		Type: TypeFocus,
		Zones: []Zone{
			builtinZone(key, 1, "Focus", RelRect{X: 0, Y: 0, Width: 1, Height: 1}),
		},
	}
}

// BuiltinLayouts returns the system layout set generated on first run.
func BuiltinLayouts() []*Layout {
	return []*Layout{
		NewColumnsLayout(2),
		NewColumnsLayout(3),
		NewRowsLayout(2),
		NewGridLayout(2, 2),
		NewGridLayout(3, 3),
		NewPriorityLayout(),
		NewFocusLayout(),
	}
}
