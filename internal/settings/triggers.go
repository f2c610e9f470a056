package settings

import (
	"fmt"
	"strings"
)

// Modifier mask bits, matching the X11 key-button mask layout so agent
// reports can be forwarded without translation.
const (
	ModShift   = 1 << 0
	ModControl = 1 << 2
	ModAlt     = 1 << 3
	ModMeta    = 1 << 6
)

// Mouse button mask bits in the wire encoding used on the bus.
const (
	ButtonLeft   = 1 << 0
	ButtonMiddle = 1 << 1
	ButtonRight  = 1 << 2
)

// Trigger is a (modifier set, mouse button set) activation record. A zero
// field means "don't care"; a trigger with both fields zero never matches.
type Trigger struct {
	ModifierMask int
	MouseButton  int
}

// Empty reports whether the trigger can never match.
func (t Trigger) Empty() bool {
	return t.ModifierMask == 0 && t.MouseButton == 0
}

// Matches reports whether the trigger matches the currently held modifiers
// and buttons. All bits of a non-zero field must be held.
func (t Trigger) Matches(mods, buttons int) bool {
	if t.Empty() {
		return false
	}
	if t.ModifierMask != 0 && mods&t.ModifierMask != t.ModifierMask {
		return false
	}
	if t.MouseButton != 0 && buttons&t.MouseButton != t.MouseButton {
		return false
	}
	return true
}

// AnyMatches reports whether any trigger in the set currently matches.
func AnyMatches(triggers []Trigger, mods, buttons int) bool {
	for _, t := range triggers {
		if t.Matches(mods, buttons) {
			return true
		}
	}
	return false
}

// Overlaps reports whether two trigger sets share an identical record.
// Used to warn when a zone-span trigger shadows an activation trigger.
func Overlaps(a, b []Trigger) bool {
	for _, ta := range a {
		if ta.Empty() {
			continue
		}
		for _, tb := range b {
			if ta == tb {
				return true
			}
		}
	}
	return false
}

// ParseModifiers parses a "+"-separated modifier list ("shift+ctrl") into
// a modifier mask.
func ParseModifiers(s string) (int, error) {
	mask := 0
	for _, part := range strings.Split(s, "+") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "":
		case "shift":
			mask |= ModShift
		case "ctrl", "control":
			mask |= ModControl
		case "alt", "mod1":
			mask |= ModAlt
		case "meta", "super", "mod4":
			mask |= ModMeta
		default:
			return 0, fmt.Errorf("unknown modifier %q", part)
		}
	}
	return mask, nil
}

// ParseButton parses a mouse button name into a button mask bit.
func ParseButton(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return 0, nil
	case "left":
		return ButtonLeft, nil
	case "middle":
		return ButtonMiddle, nil
	case "right":
		return ButtonRight, nil
	}
	return 0, fmt.Errorf("unknown mouse button %q", s)
}
