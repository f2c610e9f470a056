package tracking

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/plasmazones/plasmazones/internal/settings"
	"github.com/plasmazones/plasmazones/internal/zone"
)

const (
	winA  = "org.kde.konsole:konsole:0x5503ab"
	winA2 = "org.kde.konsole:konsole:0x99ffe0" // same stable id as winA
	winB  = "firefox:Navigator:0x112233"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(Config{
		StatePath:    filepath.Join(t.TempDir(), "windows.yaml"),
		StickyPolicy: settings.StickyNormal,
	})
}

func TestStableID(t *testing.T) {
	if got := StableID(winA); got != "org.kde.konsole:konsole" {
		t.Fatalf("unexpected stable id %q", got)
	}
	if StableID(winA) != StableID(winA2) {
		t.Fatalf("stable id must ignore the transient suffix")
	}
	if got := StableID("bare"); got != "bare" {
		t.Fatalf("malformed id must pass through, got %q", got)
	}
}

func TestPreSnapGeometryFirstWriteWins(t *testing.T) {
	s := newTestService(t)
	first := zone.Rect{X: 80, Y: 80, Width: 800, Height: 600}
	second := zone.Rect{X: 0, Y: 0, Width: 100, Height: 100}

	s.StorePreSnapGeometry(winA, first)
	s.StorePreSnapGeometry(winA, second)

	got, ok := s.ValidatedPreSnapGeometry(winA)
	if !ok || got != first {
		t.Fatalf("expected first geometry %+v to win, got %+v ok=%v", first, got, ok)
	}

	s.ClearPreSnapGeometry(winA)
	if s.HasPreSnapGeometry(winA) {
		t.Fatalf("pre-snap geometry survived clear")
	}
	s.StorePreSnapGeometry(winA, second)
	if got, _ := s.ValidatedPreSnapGeometry(winA); got != second {
		t.Fatalf("expected new geometry after clear, got %+v", got)
	}
}

func TestValidatedPreSnapRejectsDegenerate(t *testing.T) {
	s := newTestService(t)
	s.StorePreSnapGeometry(winA, zone.Rect{X: 5, Y: 5, Width: 0, Height: 600})
	if _, ok := s.ValidatedPreSnapGeometry(winA); ok {
		t.Fatalf("zero-width geometry must not validate")
	}
}

func TestSnapUnsnapKeepsPreSnap(t *testing.T) {
	s := newTestService(t)
	g := zone.Rect{X: 80, Y: 80, Width: 800, Height: 600}
	s.StorePreSnapGeometry(winA, g)
	s.WindowSnapped(winA, "zone-right", "DP-1")

	if got := s.ZoneForWindow(winA2); got != "zone-right" {
		t.Fatalf("zone lookup through a different live suffix failed: %q", got)
	}

	s.WindowUnsnapped(winA)
	if s.ZoneForWindow(winA) != "" {
		t.Fatalf("zone not cleared on unsnap")
	}
	if got, ok := s.ValidatedPreSnapGeometry(winA); !ok || got != g {
		t.Fatalf("pre-snap geometry must survive unsnap")
	}
}

func TestFloatToggleRoundTrip(t *testing.T) {
	s := newTestService(t)
	s.WindowSnapped(winA, "zone-right", "DP-1")

	// Toggle to floating.
	s.WindowUnsnappedForFloat(winA)
	s.SetWindowFloating(winA, true)
	if !s.IsWindowFloating(winA) {
		t.Fatalf("floating override not set")
	}
	if got := s.PreFloatZone(winA); got != "zone-right" {
		t.Fatalf("pre-float zone not remembered: %q", got)
	}

	// Toggle back: the caller re-snaps to the pre-float zone.
	z := s.PreFloatZone(winA)
	s.WindowSnapped(winA, z, "DP-1")
	s.ClearPreFloatZone(winA)
	if s.IsWindowFloating(winA) {
		t.Fatalf("snap must clear the floating override")
	}
	if got := s.ZoneForWindow(winA); got != "zone-right" {
		t.Fatalf("expected original zone after double toggle, got %q", got)
	}
}

func TestFloatingExcludedFromSnapToLast(t *testing.T) {
	s := newTestService(t)
	s.WindowSnapped(winA, "zone-1", "DP-1")
	s.SetWindowFloating(winA, true)
	if _, ok := s.SnapToLastZone(winA, "DP-1"); ok {
		t.Fatalf("floating window must not snap to last zone")
	}
	if sn := s.SnappedWindows(); len(sn) != 0 {
		t.Fatalf("floating window must not appear in snapped listing")
	}
}

func TestMultiZoneSnapPrimary(t *testing.T) {
	s := newTestService(t)
	s.WindowSnappedMultiZone(winA, []string{"z1", "z2", "z3"}, "DP-1")
	if got := s.ZoneForWindow(winA); got != "z1" {
		t.Fatalf("primary zone must be the first id, got %q", got)
	}
	if wins := s.WindowsInZone("z3"); len(wins) != 1 {
		t.Fatalf("window must be listed in every spanned zone")
	}
}

func TestSnapToLastZoneScreenMismatch(t *testing.T) {
	s := newTestService(t)
	s.WindowSnapped(winA, "zone-1", "DP-1")
	if _, ok := s.SnapToLastZone(winA, "HDMI-1"); ok {
		t.Fatalf("snap-to-last must not cross screens")
	}
	if z, ok := s.SnapToLastZone(winA, "DP-1"); !ok || z != "zone-1" {
		t.Fatalf("expected zone-1, got %q ok=%v", z, ok)
	}
}

func TestRestoreToPersistedZoneOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "windows.yaml")
	s := NewService(Config{StatePath: path, StickyPolicy: settings.StickyNormal})
	s.WindowSnapped(winA, "zone-right", "DP-1")
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// A fresh service (next login) sees the record as persisted.
	s2 := NewService(Config{StatePath: path, StickyPolicy: settings.StickyNormal})
	z, ok := s2.RestoreToPersistedZone(winA2, "DP-1")
	if !ok || z != "zone-right" {
		t.Fatalf("expected restore to zone-right, got %q ok=%v", z, ok)
	}
	// The restore offer is one-shot.
	if _, ok := s2.RestoreToPersistedZone(winA2, "DP-1"); ok {
		t.Fatalf("restore must be offered only once")
	}
	// Live records never restore.
	if _, ok := s.RestoreToPersistedZone(winA, "DP-1"); ok {
		t.Fatalf("non-persisted record must not restore")
	}
}

func TestStickyPolicies(t *testing.T) {
	s := newTestService(t)
	s.WindowSnapped(winA, "zone-1", "DP-1")
	s.SetWindowSticky(winA, true)

	s.SetStickyPolicy(settings.StickyIgnore)
	if _, ok := s.SnapToLastZone(winA, "DP-1"); ok {
		t.Fatalf("ignore policy must block snap-to-last")
	}

	s.SetStickyPolicy(settings.StickyRestoreOnly)
	if _, ok := s.SnapToLastZone(winA, "DP-1"); ok {
		t.Fatalf("restore-only policy must block snap-to-last")
	}

	s.SetStickyPolicy(settings.StickyNormal)
	if _, ok := s.SnapToLastZone(winA, "DP-1"); !ok {
		t.Fatalf("normal policy must allow snap-to-last")
	}
}

func TestRecordSnapIntentIdempotent(t *testing.T) {
	s := newTestService(t)
	s.RecordSnapIntent(winA, true, false)
	s.RecordSnapIntent(winA, true, false)
	if !s.HasUserSnapIntent(winA) {
		t.Fatalf("user snap intent not recorded")
	}
	s.RecordSnapIntent(winB, false, false)
	if s.HasUserSnapIntent(winB) {
		t.Fatalf("auto snap must not set user intent")
	}
}

func TestPruneOldRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "windows.yaml")
	s := NewService(Config{StatePath: path, PruneAfter: time.Hour})
	s.WindowSnapped(winA, "zone-1", "DP-1")

	// Age the record past the prune window and reload.
	s.mu.Lock()
	s.records[StableID(winA)].LastSeen = time.Now().Add(-2 * time.Hour)
	s.mu.Unlock()
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2 := NewService(Config{StatePath: path, PruneAfter: time.Hour})
	if s2.ZoneForWindow(winA) != "" {
		t.Fatalf("expected aged record to be pruned on load")
	}
}
