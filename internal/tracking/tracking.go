// Package tracking maintains the authoritative window-to-zone table: which
// zone each window is snapped to, the geometry it had before its first
// snap, and its floating/sticky overrides. Records are keyed by the stable
// window id so reopened applications can restore to their last zone.
package tracking

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/plasmazones/plasmazones/internal/settings"
	"github.com/plasmazones/plasmazones/internal/zone"
)

// StableID extracts the persistent portion of a full window id
// (class:resource:transientAddress). The runtime transient suffix only
// disambiguates live windows and never reaches persistent state.
func StableID(windowID string) string {
	parts := strings.SplitN(windowID, ":", 3)
	if len(parts) >= 2 {
		return parts[0] + ":" + parts[1]
	}
	return windowID
}

// Record is the persistent state of one window identity.
type Record struct {
	ZoneID   string   `yaml:"zone,omitempty"`     // primary zone, empty when unsnapped
	ZoneIDs  []string `yaml:"zones,omitempty"`    // multi-zone list, primary first
	ScreenID string   `yaml:"screen,omitempty"`   // screen of the last snap
	PreSnap  *Geom    `yaml:"pre_snap,omitempty"` // geometry before the first snap
	PreFloat string   `yaml:"pre_float_zone,omitempty"`
	Floating bool     `yaml:"floating,omitempty"`
	Sticky   bool     `yaml:"sticky,omitempty"`

	UserSnapIntent bool `yaml:"user_snap_intent,omitempty"`
	AutoSnapIntent bool `yaml:"auto_snap_intent,omitempty"`
	ViaSelector    bool `yaml:"via_selector,omitempty"`

	LastSeen  time.Time `yaml:"last_seen"`
	CreatedAt time.Time `yaml:"created_at"`

	// persisted marks a record loaded from disk that has not yet been
	// claimed by a live window; it drives restore-on-login.
	persisted bool
}

// Geom is the YAML form of a window rectangle.
type Geom struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"w"`
	Height int `yaml:"h"`
}

func (g *Geom) rect() zone.Rect {
	return zone.Rect{X: g.X, Y: g.Y, Width: g.Width, Height: g.Height}
}

// SnappedWindow is one entry of the snapped-window listing.
type SnappedWindow struct {
	StableID string
	ZoneIDs  []string
	ScreenID string
}

// Service is the single writer of persistent window state.
type Service struct {
	mu      sync.Mutex
	logger  *slog.Logger
	records map[string]*Record // keyed by stable id

	statePath string
	saveTimer *time.Timer
	saveDelay time.Duration

	stickyPolicy settings.StickyPolicy
	pruneAfter   time.Duration

	now func() time.Time
}

// Config configures the tracking service.
type Config struct {
	StatePath    string
	StickyPolicy settings.StickyPolicy
	PruneAfter   time.Duration
	Logger       *slog.Logger
}

// NewService creates the tracking service and loads persisted records.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pruneAfter := cfg.PruneAfter
	if pruneAfter <= 0 {
		pruneAfter = 30 * 24 * time.Hour
	}
	s := &Service{
		logger:       logger,
		records:      make(map[string]*Record),
		statePath:    cfg.StatePath,
		saveDelay:    time.Second,
		stickyPolicy: cfg.StickyPolicy,
		pruneAfter:   pruneAfter,
		now:          time.Now,
	}
	if err := s.load(); err != nil {
		logger.Warn("failed to load window state", "error", err)
	}
	s.prune()
	return s
}

// SetStickyPolicy updates the sticky-window policy (settings reload).
func (s *Service) SetStickyPolicy(p settings.StickyPolicy) {
	s.mu.Lock()
	s.stickyPolicy = p
	s.mu.Unlock()
}

func (s *Service) record(stableID string) *Record {
	r, ok := s.records[stableID]
	if !ok {
		now := s.now()
		r = &Record{CreatedAt: now, LastSeen: now}
		s.records[stableID] = r
	}
	return r
}

// WindowAdded creates a record for a newly observed window if missing and
// refreshes its last-seen time.
func (s *Service) WindowAdded(windowID, screen string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.record(StableID(windowID))
	r.LastSeen = s.now()
	if r.ScreenID == "" {
		r.ScreenID = screen
	}
	s.markDirtyLocked()
}

// WindowClosed refreshes the last-seen time; the record itself is retained
// so a reopened window can restore to its last zone.
func (s *Service) WindowClosed(windowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[StableID(windowID)]; ok {
		r.LastSeen = s.now()
		s.markDirtyLocked()
	}
}

// WindowSnapped records a single-zone snap and clears the floating
// override.
func (s *Service) WindowSnapped(windowID, zoneID, screen string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.record(StableID(windowID))
	r.ZoneID = zoneID
	r.ZoneIDs = []string{zoneID}
	r.ScreenID = screen
	r.Floating = false
	r.persisted = false
	r.LastSeen = s.now()
	s.markDirtyLocked()
}

// WindowSnappedMultiZone records a snap spanning several adjacent zones.
// The first id is the primary zone.
func (s *Service) WindowSnappedMultiZone(windowID string, zoneIDs []string, screen string) {
	if len(zoneIDs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.record(StableID(windowID))
	r.ZoneID = zoneIDs[0]
	r.ZoneIDs = append([]string(nil), zoneIDs...)
	r.ScreenID = screen
	r.Floating = false
	r.persisted = false
	r.LastSeen = s.now()
	s.markDirtyLocked()
}

// WindowUnsnapped clears the zone assignment but keeps the pre-snap
// geometry so a later restore still works.
func (s *Service) WindowUnsnapped(windowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[StableID(windowID)]; ok {
		r.ZoneID = ""
		r.ZoneIDs = nil
		r.LastSeen = s.now()
		s.markDirtyLocked()
	}
}

// WindowUnsnappedForFloat remembers the current zone as the pre-float zone
// and clears the assignment. The caller also sets the floating override.
func (s *Service) WindowUnsnappedForFloat(windowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.record(StableID(windowID))
	if r.ZoneID != "" {
		r.PreFloat = r.ZoneID
	}
	r.ZoneID = ""
	r.ZoneIDs = nil
	r.LastSeen = s.now()
	s.markDirtyLocked()
}

// SetWindowFloating toggles the floating override. Floating windows are
// exempt from auto-snap, snap-to-last and layout-change resnap.
func (s *Service) SetWindowFloating(windowID string, floating bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.record(StableID(windowID))
	r.Floating = floating
	r.LastSeen = s.now()
	s.markDirtyLocked()
}

// IsWindowFloating reports the floating override.
func (s *Service) IsWindowFloating(windowID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[StableID(windowID)]; ok {
		return r.Floating
	}
	return false
}

// SetWindowSticky mirrors the compositor's on-all-desktops flag.
func (s *Service) SetWindowSticky(windowID string, sticky bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.record(StableID(windowID))
	r.Sticky = sticky
	s.markDirtyLocked()
}

// StorePreSnapGeometry records the window's geometry before a snap.
// First write wins: the stored geometry is never overwritten while the
// window stays snapped, so A→B moves keep the original rect.
func (s *Service) StorePreSnapGeometry(windowID string, g zone.Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.record(StableID(windowID))
	if r.PreSnap != nil {
		return
	}
	r.PreSnap = &Geom{X: g.X, Y: g.Y, Width: g.Width, Height: g.Height}
	s.markDirtyLocked()
}

// HasPreSnapGeometry reports whether a pre-snap geometry is stored.
func (s *Service) HasPreSnapGeometry(windowID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[StableID(windowID)]
	return ok && r.PreSnap != nil
}

// ValidatedPreSnapGeometry returns the stored pre-snap geometry if it has
// usable dimensions.
func (s *Service) ValidatedPreSnapGeometry(windowID string) (zone.Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[StableID(windowID)]
	if !ok || r.PreSnap == nil {
		return zone.Rect{}, false
	}
	g := r.PreSnap.rect()
	if g.Empty() {
		return zone.Rect{}, false
	}
	return g, true
}

// ClearPreSnapGeometry drops the stored geometry after a successful
// restore, bounding memory.
func (s *Service) ClearPreSnapGeometry(windowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[StableID(windowID)]; ok {
		r.PreSnap = nil
		s.markDirtyLocked()
	}
}

// ZoneForWindow returns the primary zone the window is snapped to.
func (s *Service) ZoneForWindow(windowID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[StableID(windowID)]; ok {
		return r.ZoneID
	}
	return ""
}

// WindowsInZone lists the stable ids of windows snapped to the zone.
func (s *Service) WindowsInZone(zoneID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id, r := range s.records {
		for _, z := range r.ZoneIDs {
			if z == zoneID {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// PreFloatZone returns the zone remembered when the window was toggled
// floating.
func (s *Service) PreFloatZone(windowID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[StableID(windowID)]; ok {
		return r.PreFloat
	}
	return ""
}

// ClearPreFloatZone drops the remembered pre-float zone.
func (s *Service) ClearPreFloatZone(windowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[StableID(windowID)]; ok {
		r.PreFloat = ""
		s.markDirtyLocked()
	}
}

// stickyEligible applies the sticky-window policy for auto-snap paths.
func (s *Service) stickyEligible(r *Record, restore bool) bool {
	if !r.Sticky {
		return true
	}
	switch s.stickyPolicy {
	case settings.StickyIgnore:
		return false
	case settings.StickyRestoreOnly:
		return restore
	default:
		return true
	}
}

// SnapToLastZone returns the zone a live window should be re-snapped to
// under the last-used-zone heuristic. Floating windows and windows with no
// recorded zone are not eligible.
func (s *Service) SnapToLastZone(windowID, screen string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[StableID(windowID)]
	if !ok || r.Floating || r.ZoneID == "" {
		return "", false
	}
	if !s.stickyEligible(r, false) {
		return "", false
	}
	if screen != "" && r.ScreenID != "" && r.ScreenID != screen {
		return "", false
	}
	return r.ZoneID, true
}

// RestoreToPersistedZone returns the zone a reopened window should restore
// to after login. Only records persisted from a previous session qualify,
// and each qualifies once.
func (s *Service) RestoreToPersistedZone(windowID, screen string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[StableID(windowID)]
	if !ok || !r.persisted || r.Floating || r.ZoneID == "" {
		return "", false
	}
	if !s.stickyEligible(r, true) {
		return "", false
	}
	r.persisted = false
	r.LastSeen = s.now()
	s.markDirtyLocked()
	return r.ZoneID, true
}

// SnappedWindows lists every window currently snapped to a zone.
func (s *Service) SnappedWindows() []SnappedWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SnappedWindow
	for id, r := range s.records {
		if r.ZoneID == "" || r.Floating {
			continue
		}
		out = append(out, SnappedWindow{
			StableID: id,
			ZoneIDs:  append([]string(nil), r.ZoneIDs...),
			ScreenID: r.ScreenID,
		})
	}
	return out
}

// FloatingWindows lists every window with the floating override set.
func (s *Service) FloatingWindows() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id, r := range s.records {
		if r.Floating {
			out = append(out, id)
		}
	}
	return out
}

// RecordSnapIntent distinguishes user-driven snaps from automatic ones for
// later auto-snap eligibility. Idempotent per (window, userInitiated).
func (s *Service) RecordSnapIntent(windowID string, userInitiated, viaSelector bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.record(StableID(windowID))
	if userInitiated {
		if r.UserSnapIntent && r.ViaSelector == viaSelector {
			return
		}
		r.UserSnapIntent = true
		r.ViaSelector = viaSelector
	} else {
		if r.AutoSnapIntent {
			return
		}
		r.AutoSnapIntent = true
	}
	s.markDirtyLocked()
}

// HasUserSnapIntent reports whether the window was ever snapped by an
// explicit user action.
func (s *Service) HasUserSnapIntent(windowID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[StableID(windowID)]; ok {
		return r.UserSnapIntent
	}
	return false
}

// prune drops records not seen within the prune window.
func (s *Service) prune() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.pruneAfter)
	for id, r := range s.records {
		if r.LastSeen.Before(cutoff) {
			delete(s.records, id)
		}
	}
}
