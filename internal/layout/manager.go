package layout

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/plasmazones/plasmazones/internal/zone"
)

// AssignmentKey identifies one assignment context. Desktop 0 means "any
// desktop"; an empty Activity means "any activity".
type AssignmentKey struct {
	Screen   string `yaml:"screen"`
	Desktop  int    `yaml:"desktop"`
	Activity string `yaml:"activity"`
}

// EventKind enumerates the invalidation signals the manager emits.
type EventKind int

const (
	EventLayoutsChanged EventKind = iota
	EventLayoutAssigned
	EventActiveLayoutChanged
)

// Event is delivered to change listeners. Layout may be nil for
// EventLayoutsChanged.
type Event struct {
	Kind   EventKind
	Screen string
	Layout *zone.Layout
}

// Resolver is the capability interface most consumers depend on; the
// concrete Manager additionally carries the listener-registration API.
type Resolver interface {
	Resolve(screen string, desktop int, activity string) *zone.Layout
	LayoutByID(id uuid.UUID) *zone.Layout
}

// Manager owns the loaded layout set, the assignment table, and the
// quick-layout slots.
type Manager struct {
	mu     sync.Mutex
	logger *slog.Logger

	layoutsDir string
	storePath  string

	layouts       map[uuid.UUID]*zone.Layout
	order         []uuid.UUID // stable listing order
	assignments   map[AssignmentKey]uuid.UUID
	slots         map[int]uuid.UUID // quick-layout slots 1..9
	defaultLayout uuid.UUID

	builtin   map[uuid.UUID]bool
	listeners []func(Event)
}

// Config configures a Manager.
type Config struct {
	LayoutsDir string
	StorePath  string
	Logger     *slog.Logger
}

// NewManager creates an empty manager; call Load to populate it.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		logger:      logger,
		layoutsDir:  cfg.LayoutsDir,
		storePath:   cfg.StorePath,
		layouts:     make(map[uuid.UUID]*zone.Layout),
		assignments: make(map[AssignmentKey]uuid.UUID),
		slots:       make(map[int]uuid.UUID),
		builtin:     make(map[uuid.UUID]bool),
	}
	for _, l := range zone.BuiltinLayouts() {
		m.builtin[l.ID] = true
	}
	return m
}

// OnChange registers a listener for layout invalidation signals. Listeners
// are invoked synchronously on the mutating call.
func (m *Manager) OnChange(fn func(Event)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

func (m *Manager) notify(ev Event) {
	m.mu.Lock()
	listeners := make([]func(Event), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

// Layouts returns all loaded layouts in stable order.
func (m *Manager) Layouts() []*zone.Layout {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*zone.Layout, 0, len(m.order))
	for _, id := range m.order {
		if l, ok := m.layouts[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

// LayoutByID returns the layout with the given id, or nil.
func (m *Manager) LayoutByID(id uuid.UUID) *zone.Layout {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.layouts[id]
}

// IsBuiltin reports whether the layout is part of the system set.
func (m *Manager) IsBuiltin(id uuid.UUID) bool {
	return m.builtin[id]
}

// Resolve returns the layout for a (screen, desktop, activity) context.
// Most-specific assignment wins: exact match, then (screen, desktop, any),
// then (screen, any, activity), then (screen, any, any), then the default
// layout. Assignments referencing a deleted layout fall through.
func (m *Manager) Resolve(screen string, desktop int, activity string) *zone.Layout {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := []AssignmentKey{
		{Screen: screen, Desktop: desktop, Activity: activity},
		{Screen: screen, Desktop: desktop, Activity: ""},
		{Screen: screen, Desktop: 0, Activity: activity},
		{Screen: screen, Desktop: 0, Activity: ""},
	}
	for _, key := range candidates {
		if id, ok := m.assignments[key]; ok {
			if l, ok := m.layouts[id]; ok {
				return l
			}
		}
	}
	if l, ok := m.layouts[m.defaultLayout]; ok {
		return l
	}
	// Last resort: any layout at all, so a fresh install still resolves.
	for _, id := range m.order {
		if l, ok := m.layouts[id]; ok {
			return l
		}
	}
	return nil
}

// Assign binds a layout to a (screen, desktop, activity) context and
// persists the assignment table.
func (m *Manager) Assign(screen string, desktop int, activity string, layoutID uuid.UUID) error {
	m.mu.Lock()
	l, ok := m.layouts[layoutID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("assign: unknown layout %s", layoutID)
	}
	m.assignments[AssignmentKey{Screen: screen, Desktop: desktop, Activity: activity}] = layoutID
	m.mu.Unlock()

	if err := m.saveStore(); err != nil {
		m.logger.Warn("failed to persist assignments", "error", err)
	}
	m.notify(Event{Kind: EventLayoutAssigned, Screen: screen, Layout: l})
	m.notify(Event{Kind: EventActiveLayoutChanged, Screen: screen, Layout: l})
	return nil
}

// ActivateLayout binds a layout to a screen for every desktop and
// activity. The drag coordinator and the mode tracker switch layouts
// through this instead of spelling out the wildcard assignment.
func (m *Manager) ActivateLayout(screen string, layoutID uuid.UUID) error {
	return m.Assign(screen, 0, "", layoutID)
}

// AssignBatch applies several assignments and emits a single
// layouts-changed signal, so the overlay recomputes once.
func (m *Manager) AssignBatch(entries map[AssignmentKey]uuid.UUID) error {
	m.mu.Lock()
	for key, id := range entries {
		if _, ok := m.layouts[id]; !ok {
			m.mu.Unlock()
			return fmt.Errorf("assign batch: unknown layout %s", id)
		}
		m.assignments[key] = id
	}
	m.mu.Unlock()

	if err := m.saveStore(); err != nil {
		m.logger.Warn("failed to persist assignments", "error", err)
	}
	m.notify(Event{Kind: EventLayoutsChanged})
	return nil
}

// SetDefault sets the fall-through layout.
func (m *Manager) SetDefault(layoutID uuid.UUID) error {
	m.mu.Lock()
	if _, ok := m.layouts[layoutID]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("set default: unknown layout %s", layoutID)
	}
	m.defaultLayout = layoutID
	m.mu.Unlock()

	if err := m.saveStore(); err != nil {
		m.logger.Warn("failed to persist assignments", "error", err)
	}
	m.notify(Event{Kind: EventLayoutsChanged})
	return nil
}

// SetSlot binds a quick-layout slot (1..9) to a layout.
func (m *Manager) SetSlot(slot int, layoutID uuid.UUID) error {
	if slot < 1 || slot > 9 {
		return fmt.Errorf("slot %d out of range 1..9", slot)
	}
	m.mu.Lock()
	if _, ok := m.layouts[layoutID]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("set slot: unknown layout %s", layoutID)
	}
	m.slots[slot] = layoutID
	m.mu.Unlock()

	if err := m.saveStore(); err != nil {
		m.logger.Warn("failed to persist slots", "error", err)
	}
	return nil
}

// SlotLayout returns the layout bound to the quick slot, or nil.
func (m *Manager) SlotLayout(slot int) *zone.Layout {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.slots[slot]; ok {
		return m.layouts[id]
	}
	return nil
}

// AddLayout registers a new user layout and persists it.
func (m *Manager) AddLayout(l *zone.Layout) error {
	if err := l.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	if _, exists := m.layouts[l.ID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("layout %s already exists", l.ID)
	}
	m.layouts[l.ID] = l
	m.order = append(m.order, l.ID)
	m.mu.Unlock()

	if err := m.saveLayout(l); err != nil {
		return err
	}
	m.notify(Event{Kind: EventLayoutsChanged})
	return nil
}

// UpdateLayout replaces an existing layout's content. Built-in layouts may
// be edited; the edit is written to the user path.
func (m *Manager) UpdateLayout(l *zone.Layout) error {
	if err := l.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	if _, ok := m.layouts[l.ID]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("update: unknown layout %s", l.ID)
	}
	m.layouts[l.ID] = l
	m.mu.Unlock()

	if err := m.saveLayout(l); err != nil {
		return err
	}
	m.notify(Event{Kind: EventLayoutsChanged})
	return nil
}

// DuplicateLayout clones a layout under a fresh UUID (zones included) and
// registers it as a user layout.
func (m *Manager) DuplicateLayout(id uuid.UUID, name string) (*zone.Layout, error) {
	m.mu.Lock()
	src, ok := m.layouts[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("duplicate: unknown layout %s", id)
	}
	dup := &zone.Layout{
		ID:          uuid.New(),
		Name:        name,
		Type:        src.Type,
		Zones:       make([]zone.Zone, len(src.Zones)),
		ZonePadding: src.ZonePadding,
		OuterGap:    src.OuterGap,
		ShaderID:    src.ShaderID,
	}
	copy(dup.Zones, src.Zones)
	for i := range dup.Zones {
		dup.Zones[i].ID = uuid.New()
	}
	m.mu.Unlock()

	if dup.Name == "" {
		dup.Name = src.Name + " (copy)"
	}
	if err := m.AddLayout(dup); err != nil {
		return nil, err
	}
	return dup, nil
}

// DeleteLayout removes a user layout. Built-in layouts cannot be deleted.
// Assignments referencing the deleted layout are left to fall through
// resolution and are pruned on the next store save.
func (m *Manager) DeleteLayout(id uuid.UUID) error {
	if m.builtin[id] {
		return fmt.Errorf("layout %s is built-in and cannot be deleted", id)
	}
	m.mu.Lock()
	if _, ok := m.layouts[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("delete: unknown layout %s", id)
	}
	delete(m.layouts, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	if err := m.removeLayoutFile(id); err != nil {
		m.logger.Warn("failed to remove layout file", "layout", id, "error", err)
	}
	if err := m.saveStore(); err != nil {
		m.logger.Warn("failed to persist assignments", "error", err)
	}
	m.notify(Event{Kind: EventLayoutsChanged})
	return nil
}

// sortedAssignments returns the assignment table in a stable order with
// stale entries (deleted layouts) pruned.
func (m *Manager) sortedAssignments() []storeAssignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]storeAssignment, 0, len(m.assignments))
	for key, id := range m.assignments {
		if _, ok := m.layouts[id]; !ok {
			delete(m.assignments, key) // lazy prune
			continue
		}
		out = append(out, storeAssignment{
			Screen: key.Screen, Desktop: key.Desktop, Activity: key.Activity,
			Layout: id.String(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Screen != out[j].Screen {
			return out[i].Screen < out[j].Screen
		}
		if out[i].Desktop != out[j].Desktop {
			return out[i].Desktop < out[j].Desktop
		}
		return out[i].Activity < out[j].Activity
	})
	return out
}
