// Package hotkeys wraps keybind for the agent's session shortcuts: the
// Escape grab armed during drags and the navigation/slot bindings.
package hotkeys

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Handler manages global keyboard shortcuts on one X connection.
type Handler struct {
	xu   *xgbutil.XUtil
	root xproto.Window

	mu            sync.Mutex
	escapeArmed   bool
	escapeHandler func()
}

var ignoreModsOnce sync.Once

// NewHandler creates a hotkey handler. keybind must already be
// initialized on the connection.
func NewHandler(xu *xgbutil.XUtil, root xproto.Window) *Handler {
	ignoreModsOnce.Do(func() {
		configureIgnoreMods(xu)
	})
	return &Handler{xu: xu, root: root}
}

// RegisterFunc binds an arbitrary key sequence to a callback.
func (h *Handler) RegisterFunc(keySequence string, callback func()) error {
	return keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		callback()
	}).Connect(h.xu, h.root, keySequence, true)
}

// Register arms the session Escape grab for the duration of a drag. The
// grab itself is registered once; arming only swaps the callback, since
// repeated grab/ungrab per drag races the X server.
func (h *Handler) Register(onEscape func()) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.escapeHandler == nil {
		err := keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
			h.mu.Lock()
			armed := h.escapeArmed
			fn := h.escapeHandler
			h.mu.Unlock()
			if armed && fn != nil {
				fn()
			}
		}).Connect(h.xu, h.root, "Escape", true)
		if err != nil {
			return fmt.Errorf("failed to grab Escape: %w", err)
		}
	}
	h.escapeHandler = onEscape
	h.escapeArmed = true
	return nil
}

// Unregister disarms the Escape grab.
func (h *Handler) Unregister() {
	h.mu.Lock()
	h.escapeArmed = false
	h.mu.Unlock()
}

// configureIgnoreMods teaches keybind to ignore lock-key modifiers, so
// shortcuts fire with CapsLock/NumLock/ScrollLock held.
func configureIgnoreMods(xu *xgbutil.XUtil) {
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	unique := make(map[uint16]struct{})
	add := func(mask uint16) {
		unique[mask] = struct{}{}
	}

	add(0)
	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		add(mask)
	}

	ignore := make([]uint16, 0, len(unique))
	for mask := range unique {
		ignore = append(ignore, mask)
	}
	xevent.IgnoreMods = ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
