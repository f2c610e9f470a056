package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// StickyPolicy controls how windows that are on all desktops take part in
// auto-snap and layout-change resnap.
type StickyPolicy string

const (
	StickyNormal      StickyPolicy = "normal"       // treat like any other window
	StickyRestoreOnly StickyPolicy = "restore-only" // restore on login, skip resnap
	StickyIgnore      StickyPolicy = "ignore"       // never auto-snap or resnap
)

// SelectorPosition is one of the eight screen-edge/corner slots the zone
// selector HUD can slide in from. Center is not a valid slot.
type SelectorPosition string

const (
	SelectorTop         SelectorPosition = "top"
	SelectorBottom      SelectorPosition = "bottom"
	SelectorLeft        SelectorPosition = "left"
	SelectorRight       SelectorPosition = "right"
	SelectorTopLeft     SelectorPosition = "top-left"
	SelectorTopRight    SelectorPosition = "top-right"
	SelectorBottomLeft  SelectorPosition = "bottom-left"
	SelectorBottomRight SelectorPosition = "bottom-right"
)

// Valid reports whether the position names one of the eight edge slots.
func (p SelectorPosition) Valid() bool {
	switch p {
	case SelectorTop, SelectorBottom, SelectorLeft, SelectorRight,
		SelectorTopLeft, SelectorTopRight, SelectorBottomLeft, SelectorBottomRight:
		return true
	}
	return false
}

// SelectorConfig shapes the zone-selector HUD for one screen.
type SelectorConfig struct {
	Position        SelectorPosition `yaml:"position"`
	LayoutMode      string           `yaml:"layout_mode"` // grid, horizontal, vertical
	SizeMode        string           `yaml:"size_mode"`   // auto, manual
	PreviewWidth    int              `yaml:"preview_width"`
	PreviewHeight   int              `yaml:"preview_height"`
	GridColumns     int              `yaml:"grid_columns"`
	MaxRows         int              `yaml:"max_rows"`
	TriggerDistance int              `yaml:"trigger_distance"`
}

// Settings is the effective daemon configuration.
type Settings struct {
	ActivationTriggers []Trigger
	ZoneSpanTriggers   []Trigger
	SnapAssistTriggers []Trigger
	ToggleActivation   bool

	AdjacentThreshold           int
	EnableMultiZone             bool
	EnableZoneSpanning          bool
	RestoreOriginalSizeOnUnsnap bool
	SnapAssistEnabled           bool
	ShowZonesOnAllMonitors      bool

	ExcludedClasses []string
	SkipTransients  bool
	MinWindowWidth  int
	MinWindowHeight int

	DisabledScreens []string
	StickyHandling  StickyPolicy

	ZonePadding int
	OuterGap    int

	SelectorDefault   SelectorConfig
	SelectorOverrides map[string]SelectorConfig

	PruneAfterDays int
}

// EnabledOn reports whether zone snapping is enabled on the given screen.
func (s *Settings) EnabledOn(screen string) bool {
	for _, d := range s.DisabledScreens {
		if d == screen {
			return false
		}
	}
	return true
}

// IsExcludedClass reports whether the app class is on the exclusion list.
func (s *Settings) IsExcludedClass(class string) bool {
	for _, c := range s.ExcludedClasses {
		if c == class {
			return true
		}
	}
	return false
}

// SelectorConfigFor resolves the zone-selector configuration for a screen:
// per-screen override first, global default otherwise. The typed struct is
// the single source of truth.
func (s *Settings) SelectorConfigFor(screen string) SelectorConfig {
	if cfg, ok := s.SelectorOverrides[screen]; ok {
		return normalizeSelector(cfg)
	}
	return normalizeSelector(s.SelectorDefault)
}

func normalizeSelector(cfg SelectorConfig) SelectorConfig {
	if !cfg.Position.Valid() {
		cfg.Position = SelectorTop
	}
	if cfg.LayoutMode == "" {
		cfg.LayoutMode = "grid"
	}
	if cfg.SizeMode == "" {
		cfg.SizeMode = "auto"
	}
	if cfg.GridColumns <= 0 {
		cfg.GridColumns = 3
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 3
	}
	if cfg.TriggerDistance <= 0 {
		cfg.TriggerDistance = 8
	}
	return cfg
}

// rawTrigger is the YAML form of a trigger; masks are parsed from names.
type rawTrigger struct {
	Modifiers string `yaml:"modifiers"`
	Button    string `yaml:"button"`
}

// rawSettings is the on-disk YAML shape. Pointer fields distinguish
// "absent" from zero so defaults can be applied.
type rawSettings struct {
	ActivationTriggers []rawTrigger `yaml:"activation_triggers"`
	ZoneSpanTriggers   []rawTrigger `yaml:"zone_span_triggers"`
	SnapAssistTriggers []rawTrigger `yaml:"snap_assist_triggers"`
	ToggleActivation   *bool        `yaml:"toggle_activation"`

	AdjacentThreshold           *int  `yaml:"adjacent_threshold"`
	EnableMultiZone             *bool `yaml:"enable_multi_zone"`
	EnableZoneSpanning          *bool `yaml:"enable_zone_spanning"`
	RestoreOriginalSizeOnUnsnap *bool `yaml:"restore_original_size_on_unsnap"`
	SnapAssistEnabled           *bool `yaml:"snap_assist_enabled"`
	ShowZonesOnAllMonitors      *bool `yaml:"show_zones_on_all_monitors"`

	ExcludedClasses []string `yaml:"excluded_classes"`
	SkipTransients  *bool    `yaml:"skip_transients"`
	MinWindowWidth  *int     `yaml:"min_window_width"`
	MinWindowHeight *int     `yaml:"min_window_height"`

	DisabledScreens []string `yaml:"disabled_screens"`
	StickyHandling  string   `yaml:"sticky_handling"`

	ZonePadding *int `yaml:"zone_padding"`
	OuterGap    *int `yaml:"outer_gap"`

	Selector          *SelectorConfig           `yaml:"zone_selector"`
	SelectorOverrides map[string]SelectorConfig `yaml:"zone_selector_per_screen"`

	PruneAfterDays *int `yaml:"prune_after_days"`
}

// DefaultConfigPath returns the standard settings file location.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "plasmazones", "config.yaml")
}

// Default returns the built-in settings used when no config file exists.
func Default() *Settings {
	return &Settings{
		ActivationTriggers:          []Trigger{{ModifierMask: ModShift}},
		ZoneSpanTriggers:            []Trigger{{ModifierMask: ModControl}},
		AdjacentThreshold:           20,
		EnableMultiZone:             true,
		EnableZoneSpanning:          true,
		RestoreOriginalSizeOnUnsnap: true,
		SkipTransients:              true,
		MinWindowWidth:              120,
		MinWindowHeight:             90,
		StickyHandling:              StickyNormal,
		SelectorDefault:             normalizeSelector(SelectorConfig{}),
		PruneAfterDays:              30,
	}
}

// Load reads settings from the standard location. A missing file yields
// the defaults; a malformed file is an error.
func Load() (*Settings, error) {
	return LoadFromPath(DefaultConfigPath())
}

// LoadFromPath reads settings from the given file.
func LoadFromPath(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Settings, error) {
	var raw rawSettings
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	s := Default()

	if trig, err := parseTriggers(raw.ActivationTriggers); err != nil {
		return nil, fmt.Errorf("activation_triggers: %w", err)
	} else if raw.ActivationTriggers != nil {
		s.ActivationTriggers = trig
	}
	if trig, err := parseTriggers(raw.ZoneSpanTriggers); err != nil {
		return nil, fmt.Errorf("zone_span_triggers: %w", err)
	} else if raw.ZoneSpanTriggers != nil {
		s.ZoneSpanTriggers = trig
	}
	if trig, err := parseTriggers(raw.SnapAssistTriggers); err != nil {
		return nil, fmt.Errorf("snap_assist_triggers: %w", err)
	} else if raw.SnapAssistTriggers != nil {
		s.SnapAssistTriggers = trig
	}

	setBool(&s.ToggleActivation, raw.ToggleActivation)
	setInt(&s.AdjacentThreshold, raw.AdjacentThreshold)
	setBool(&s.EnableMultiZone, raw.EnableMultiZone)
	setBool(&s.EnableZoneSpanning, raw.EnableZoneSpanning)
	setBool(&s.RestoreOriginalSizeOnUnsnap, raw.RestoreOriginalSizeOnUnsnap)
	setBool(&s.SnapAssistEnabled, raw.SnapAssistEnabled)
	setBool(&s.ShowZonesOnAllMonitors, raw.ShowZonesOnAllMonitors)
	setBool(&s.SkipTransients, raw.SkipTransients)
	setInt(&s.MinWindowWidth, raw.MinWindowWidth)
	setInt(&s.MinWindowHeight, raw.MinWindowHeight)
	setInt(&s.ZonePadding, raw.ZonePadding)
	setInt(&s.OuterGap, raw.OuterGap)
	setInt(&s.PruneAfterDays, raw.PruneAfterDays)

	if raw.ExcludedClasses != nil {
		s.ExcludedClasses = raw.ExcludedClasses
	}
	if raw.DisabledScreens != nil {
		s.DisabledScreens = raw.DisabledScreens
	}
	switch StickyPolicy(raw.StickyHandling) {
	case StickyNormal, StickyRestoreOnly, StickyIgnore:
		s.StickyHandling = StickyPolicy(raw.StickyHandling)
	case "":
	default:
		return nil, fmt.Errorf("unknown sticky_handling %q", raw.StickyHandling)
	}
	if raw.Selector != nil {
		s.SelectorDefault = normalizeSelector(*raw.Selector)
	}
	if raw.SelectorOverrides != nil {
		s.SelectorOverrides = raw.SelectorOverrides
	}
	return s, nil
}

func parseTriggers(raw []rawTrigger) ([]Trigger, error) {
	var out []Trigger
	for _, rt := range raw {
		mods, err := ParseModifiers(rt.Modifiers)
		if err != nil {
			return nil, err
		}
		btn, err := ParseButton(rt.Button)
		if err != nil {
			return nil, err
		}
		t := Trigger{ModifierMask: mods, MouseButton: btn}
		if t.Empty() {
			return nil, fmt.Errorf("trigger with no modifiers and no button")
		}
		out = append(out, t)
	}
	return out, nil
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
