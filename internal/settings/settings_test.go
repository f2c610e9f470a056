package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTriggerMatching(t *testing.T) {
	shift := Trigger{ModifierMask: ModShift}
	if !shift.Matches(ModShift, 0) {
		t.Fatalf("shift trigger must match shift held")
	}
	if !shift.Matches(ModShift|ModControl, ButtonLeft) {
		t.Fatalf("extra modifiers/buttons must not break a match")
	}
	if shift.Matches(ModControl, 0) {
		t.Fatalf("shift trigger must not match ctrl")
	}

	both := Trigger{ModifierMask: ModShift, MouseButton: ButtonRight}
	if both.Matches(ModShift, 0) {
		t.Fatalf("combined trigger needs the button too")
	}
	if !both.Matches(ModShift, ButtonRight) {
		t.Fatalf("combined trigger must match when both held")
	}

	var empty Trigger
	if empty.Matches(ModShift, ButtonLeft) {
		t.Fatalf("empty trigger must never match")
	}
}

func TestTriggerOverlap(t *testing.T) {
	a := []Trigger{{ModifierMask: ModShift}}
	b := []Trigger{{ModifierMask: ModShift}, {MouseButton: ButtonMiddle}}
	if !Overlaps(a, b) {
		t.Fatalf("identical records must overlap")
	}
	if Overlaps(a, []Trigger{{ModifierMask: ModControl}}) {
		t.Fatalf("distinct records must not overlap")
	}
}

func TestParseModifiers(t *testing.T) {
	mask, err := ParseModifiers("shift+ctrl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mask != ModShift|ModControl {
		t.Fatalf("expected shift|ctrl, got %#x", mask)
	}
	if _, err := ParseModifiers("hyper"); err == nil {
		t.Fatalf("expected error for unknown modifier")
	}
}

func TestLoadFromPathDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()

	// Missing file: defaults.
	s, err := LoadFromPath(filepath.Join(dir, "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.AdjacentThreshold != 20 || !s.EnableMultiZone {
		t.Fatalf("defaults not applied: %+v", s)
	}

	path := filepath.Join(dir, "config.yaml")
	content := `
activation_triggers:
  - modifiers: shift
  - button: middle
zone_span_triggers:
  - modifiers: ctrl
adjacent_threshold: 32
enable_multi_zone: false
sticky_handling: restore-only
disabled_screens: [HDMI-1]
zone_selector:
  position: bottom
  max_rows: 2
zone_selector_per_screen:
  DP-1:
    position: left
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err = LoadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.ActivationTriggers) != 2 || s.ActivationTriggers[1].MouseButton != ButtonMiddle {
		t.Fatalf("triggers not parsed: %+v", s.ActivationTriggers)
	}
	if s.AdjacentThreshold != 32 || s.EnableMultiZone {
		t.Fatalf("overrides not applied: %+v", s)
	}
	if s.StickyHandling != StickyRestoreOnly {
		t.Fatalf("sticky policy not parsed: %q", s.StickyHandling)
	}
	if s.EnabledOn("HDMI-1") || !s.EnabledOn("DP-1") {
		t.Fatalf("disabled screens not honored")
	}
	if got := s.SelectorConfigFor("DP-1"); got.Position != SelectorLeft {
		t.Fatalf("per-screen selector override not resolved: %+v", got)
	}
	if got := s.SelectorConfigFor("HDMI-1"); got.Position != SelectorBottom || got.MaxRows != 2 {
		t.Fatalf("global selector default not resolved: %+v", got)
	}
	// Normalization fills unset selector fields.
	if got := s.SelectorConfigFor("DP-1"); got.TriggerDistance <= 0 || got.GridColumns <= 0 {
		t.Fatalf("selector config not normalized: %+v", got)
	}
}

func TestLoadRejectsBadTriggerAndPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("activation_triggers:\n  - {}\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFromPath(path); err == nil {
		t.Fatalf("expected error for empty trigger")
	}

	if err := os.WriteFile(path, []byte("sticky_handling: sometimes\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFromPath(path); err == nil {
		t.Fatalf("expected error for unknown sticky policy")
	}
}
