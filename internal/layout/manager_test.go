package layout

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	m := NewManager(Config{
		LayoutsDir: filepath.Join(dir, "layouts"),
		StorePath:  filepath.Join(dir, "assignments.yaml"),
	})
	if err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	return m
}

func TestLoadGeneratesBuiltins(t *testing.T) {
	m := newTestManager(t)
	layouts := m.Layouts()
	if len(layouts) == 0 {
		t.Fatalf("expected built-in layouts on first run")
	}
	for _, l := range layouts {
		if !m.IsBuiltin(l.ID) {
			t.Fatalf("layout %q should be built-in", l.Name)
		}
		if l.SourcePath == "" {
			t.Fatalf("layout %q not written to disk", l.Name)
		}
	}
}

func TestResolutionOrder(t *testing.T) {
	m := newTestManager(t)
	layouts := m.Layouts()
	exact, byDesktop, byActivity, byScreen, def :=
		layouts[0], layouts[1], layouts[2], layouts[3], layouts[4]

	if err := m.SetDefault(def.ID); err != nil {
		t.Fatalf("set default: %v", err)
	}
	if err := m.Assign("DP-1", 2, "work", exact.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := m.Assign("DP-1", 2, "", byDesktop.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := m.Assign("DP-1", 0, "work", byActivity.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := m.Assign("DP-1", 0, "", byScreen.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	cases := []struct {
		desktop  int
		activity string
		want     uuid.UUID
	}{
		{2, "work", exact.ID},      // exact match
		{2, "play", byDesktop.ID},  // (screen, desktop, *)
		{5, "work", byActivity.ID}, // (screen, *, activity)
		{5, "play", byScreen.ID},   // (screen, *, *)
	}
	for _, c := range cases {
		got := m.Resolve("DP-1", c.desktop, c.activity)
		if got == nil || got.ID != c.want {
			t.Fatalf("resolve(DP-1, %d, %q): got %v, want %s", c.desktop, c.activity, got, c.want)
		}
	}
	// Unassigned screen falls to the default.
	if got := m.Resolve("HDMI-1", 1, ""); got == nil || got.ID != def.ID {
		t.Fatalf("expected default layout for unassigned screen, got %v", got)
	}
}

func TestAssignmentFallsThroughDeletedLayout(t *testing.T) {
	m := newTestManager(t)
	def := m.Layouts()[0]
	if err := m.SetDefault(def.ID); err != nil {
		t.Fatalf("set default: %v", err)
	}

	user, err := m.DuplicateLayout(def.ID, "mine")
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if err := m.Assign("DP-1", 0, "", user.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := m.DeleteLayout(user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if got := m.Resolve("DP-1", 1, ""); got == nil || got.ID != def.ID {
		t.Fatalf("expected fall-through to default after delete, got %v", got)
	}
}

func TestDuplicateGetsFreshUUIDs(t *testing.T) {
	m := newTestManager(t)
	src := m.Layouts()[0]

	dup, err := m.DuplicateLayout(src.ID, "copy")
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if dup.ID == src.ID {
		t.Fatalf("duplicate shares the source id")
	}
	if len(dup.Zones) != len(src.Zones) {
		t.Fatalf("zone count mismatch")
	}
	for i := range dup.Zones {
		if dup.Zones[i].ID == src.Zones[i].ID {
			t.Fatalf("zone %d shares the source zone id", i)
		}
		if dup.Zones[i].Relative != src.Zones[i].Relative {
			t.Fatalf("zone %d geometry not copied", i)
		}
	}
}

func TestBuiltinDeleteRejected(t *testing.T) {
	m := newTestManager(t)
	if err := m.DeleteLayout(m.Layouts()[0].ID); err == nil {
		t.Fatalf("expected error deleting a built-in layout")
	}
}

func TestChangeListenerFires(t *testing.T) {
	m := newTestManager(t)
	var events []Event
	m.OnChange(func(ev Event) { events = append(events, ev) })

	l := m.Layouts()[0]
	if err := m.Assign("DP-1", 0, "", l.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected assigned + active-changed events, got %d", len(events))
	}
	if events[0].Kind != EventLayoutAssigned || events[0].Screen != "DP-1" {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[1].Kind != EventActiveLayoutChanged {
		t.Fatalf("unexpected second event %+v", events[1])
	}
}

func TestQuickSlots(t *testing.T) {
	m := newTestManager(t)
	l := m.Layouts()[1]
	if err := m.SetSlot(3, l.ID); err != nil {
		t.Fatalf("set slot: %v", err)
	}
	if got := m.SlotLayout(3); got == nil || got.ID != l.ID {
		t.Fatalf("slot 3 not bound")
	}
	if got := m.SlotLayout(4); got != nil {
		t.Fatalf("slot 4 should be empty")
	}
	if err := m.SetSlot(0, l.ID); err == nil {
		t.Fatalf("expected range error for slot 0")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		LayoutsDir: filepath.Join(dir, "layouts"),
		StorePath:  filepath.Join(dir, "assignments.yaml"),
	}
	m := NewManager(cfg)
	if err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	l := m.Layouts()[0]
	dup, err := m.DuplicateLayout(l.ID, "persisted")
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if err := m.Assign("DP-1", 2, "work", dup.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := m.SetSlot(1, dup.ID); err != nil {
		t.Fatalf("slot: %v", err)
	}

	// A fresh manager over the same paths sees the same state.
	m2 := NewManager(cfg)
	if err := m2.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := m2.LayoutByID(dup.ID); got == nil || got.Name != "persisted" {
		t.Fatalf("user layout not reloaded")
	}
	if got := m2.Resolve("DP-1", 2, "work"); got == nil || got.ID != dup.ID {
		t.Fatalf("assignment not reloaded")
	}
	if got := m2.SlotLayout(1); got == nil || got.ID != dup.ID {
		t.Fatalf("slot not reloaded")
	}
}
