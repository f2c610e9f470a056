// Package mode tracks which tiling regime each screen runs: a manual zone
// layout or an autotile algorithm. Slots 1..9 form one combined dispatch
// table over both, and a smart-toggle shortcut alternates between the two
// most recently used regimes.
package mode

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/plasmazones/plasmazones/internal/zone"
)

// Algorithm is a registered autotile algorithm descriptor. The engine
// itself lives in the compositor; the tracker only dispatches to it by id.
type Algorithm struct {
	ID   string
	Name string
	Slot int // 1..9 slot it claims in the combined table, 0 = none
}

// LayoutControl is the slice of the layout manager the tracker drives.
type LayoutControl interface {
	Layouts() []*zone.Layout
	LayoutByID(id uuid.UUID) *zone.Layout
	SlotLayout(slot int) *zone.Layout
	Resolve(screen string, desktop int, activity string) *zone.Layout
	ActivateLayout(screen string, layoutID uuid.UUID) error
}

// Change describes one regime switch for observers (OSD, bus broadcast).
type Change struct {
	Screen    string
	Autotiled bool
	Name      string // layout or algorithm display name
	ID        string
}

// Tracker is the unified layout controller.
type Tracker struct {
	mu sync.Mutex

	layouts    LayoutControl
	algorithms []Algorithm
	statePath  string
	log        *slog.Logger

	lastManual   uuid.UUID
	lastAutotile string
	autotiled    map[string]string // screen -> active algorithm id

	listeners []func(Change)
}

// Config wires the tracker.
type Config struct {
	Layouts    LayoutControl
	Algorithms []Algorithm
	StatePath  string
	Logger     *slog.Logger
}

// NewTracker builds a tracker and loads its persisted state.
func NewTracker(cfg Config) (*Tracker, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	t := &Tracker{
		layouts:    cfg.Layouts,
		algorithms: cfg.Algorithms,
		statePath:  cfg.StatePath,
		log:        cfg.Logger.With("component", "mode"),
		autotiled:  make(map[string]string),
	}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

// OnChange registers a regime-switch observer. Observers run synchronously
// on the applying goroutine.
func (t *Tracker) OnChange(fn func(Change)) {
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

func (t *Tracker) notify(ch Change) {
	t.mu.Lock()
	fns := append([]func(Change){}, t.listeners...)
	t.mu.Unlock()
	for _, fn := range fns {
		fn(ch)
	}
}

// IsScreenAutotiled reports whether the screen runs an autotile algorithm.
// The manual drag pipeline is suppressed there.
func (t *Tracker) IsScreenAutotiled(screen string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.autotiled[screen]
	return ok
}

// algorithmBySlot returns the algorithm claiming the slot, if any.
func (t *Tracker) algorithmBySlot(slot int) *Algorithm {
	for i := range t.algorithms {
		if t.algorithms[i].Slot == slot {
			return &t.algorithms[i]
		}
	}
	return nil
}

func (t *Tracker) algorithmByID(id string) *Algorithm {
	for i := range t.algorithms {
		if t.algorithms[i].ID == id {
			return &t.algorithms[i]
		}
	}
	return nil
}

// ApplySlot dispatches slot 1..9 on a screen: an algorithm claiming the
// slot wins, otherwise the quick-layout slot applies. The chosen regime is
// recorded as the most recent of its kind for the smart toggle.
func (t *Tracker) ApplySlot(screen string, slot int) (Change, error) {
	if slot < 1 || slot > 9 {
		return Change{}, fmt.Errorf("slot %d out of range 1..9", slot)
	}

	t.mu.Lock()
	alg := t.algorithmBySlot(slot)
	t.mu.Unlock()
	if alg != nil {
		return t.applyAlgorithm(screen, alg)
	}

	l := t.layouts.SlotLayout(slot)
	if l == nil {
		return Change{}, fmt.Errorf("slot %d is unassigned", slot)
	}
	return t.applyManual(screen, l)
}

// SmartToggle alternates the screen between the most recent manual layout
// and the most recent autotile algorithm.
func (t *Tracker) SmartToggle(screen string) (Change, error) {
	t.mu.Lock()
	_, auto := t.autotiled[screen]
	lastManual := t.lastManual
	lastAuto := t.lastAutotile
	t.mu.Unlock()

	if auto {
		if lastManual == uuid.Nil {
			return Change{}, fmt.Errorf("no manual layout to toggle back to")
		}
		l := t.layouts.LayoutByID(lastManual)
		if l == nil {
			return Change{}, fmt.Errorf("last manual layout %s no longer exists", lastManual)
		}
		return t.applyManual(screen, l)
	}
	alg := t.algorithmByID(lastAuto)
	if alg == nil {
		return Change{}, fmt.Errorf("no autotile algorithm to toggle to")
	}
	return t.applyAlgorithm(screen, alg)
}

// CycleLayout steps through the combined enumeration (all layouts in
// order, then all algorithms) from the screen's current entry, wrapping at
// both ends.
func (t *Tracker) CycleLayout(screen string, forward bool) (Change, error) {
	layouts := t.layouts.Layouts()
	total := len(layouts) + len(t.algorithms)
	if total == 0 {
		return Change{}, fmt.Errorf("nothing to cycle through")
	}

	cur := t.currentIndex(screen, layouts)
	step := 1
	if !forward {
		step = -1
	}
	next := ((cur+step)%total + total) % total

	if next < len(layouts) {
		return t.applyManual(screen, layouts[next])
	}
	return t.applyAlgorithm(screen, &t.algorithms[next-len(layouts)])
}

// currentIndex locates the screen's active regime in the combined list.
// An unknown regime resolves to 0 so cycling always starts somewhere.
func (t *Tracker) currentIndex(screen string, layouts []*zone.Layout) int {
	t.mu.Lock()
	algID, auto := t.autotiled[screen]
	t.mu.Unlock()

	if auto {
		for i := range t.algorithms {
			if t.algorithms[i].ID == algID {
				return len(layouts) + i
			}
		}
		return 0
	}
	cur := t.layouts.Resolve(screen, 0, "")
	if cur == nil {
		return 0
	}
	for i, l := range layouts {
		if l.ID == cur.ID {
			return i
		}
	}
	return 0
}

func (t *Tracker) applyManual(screen string, l *zone.Layout) (Change, error) {
	if err := t.layouts.ActivateLayout(screen, l.ID); err != nil {
		return Change{}, err
	}

	t.mu.Lock()
	_, wasAuto := t.autotiled[screen]
	delete(t.autotiled, screen)
	t.lastManual = l.ID
	t.mu.Unlock()
	t.save()

	ch := Change{Screen: screen, Autotiled: false, Name: l.Name, ID: l.ID.String()}
	if wasAuto {
		t.log.Info("screen left autotile", "screen", screen, "layout", l.Name)
	}
	t.notify(ch)
	return ch, nil
}

func (t *Tracker) applyAlgorithm(screen string, alg *Algorithm) (Change, error) {
	t.mu.Lock()
	t.autotiled[screen] = alg.ID
	t.lastAutotile = alg.ID
	t.mu.Unlock()
	t.save()

	t.log.Info("screen entered autotile", "screen", screen, "algorithm", alg.ID)
	ch := Change{Screen: screen, Autotiled: true, Name: alg.Name, ID: alg.ID}
	t.notify(ch)
	return ch, nil
}
