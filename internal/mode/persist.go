package mode

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// stateFile is the on-disk shape of the mode-tracker state.
type stateFile struct {
	LastManualLayout      string            `yaml:"last_manual_layout,omitempty"`
	LastAutotileAlgorithm string            `yaml:"last_autotile_algorithm,omitempty"`
	AutotiledScreens      map[string]string `yaml:"autotiled_screens,omitempty"`
}

func (t *Tracker) load() error {
	if t.statePath == "" {
		return nil
	}
	data, err := os.ReadFile(t.statePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var state stateFile
	if err := yaml.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse mode state: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if state.LastManualLayout != "" {
		id, err := uuid.Parse(state.LastManualLayout)
		if err != nil {
			return fmt.Errorf("failed to parse mode state: %w", err)
		}
		t.lastManual = id
	}
	// Stale algorithm ids are dropped silently: the registered set may have
	// changed between sessions.
	if t.algorithmByID(state.LastAutotileAlgorithm) != nil {
		t.lastAutotile = state.LastAutotileAlgorithm
	}
	for screen, algID := range state.AutotiledScreens {
		if t.algorithmByID(algID) != nil {
			t.autotiled[screen] = algID
		}
	}
	return nil
}

func (t *Tracker) save() {
	if t.statePath == "" {
		return
	}
	t.mu.Lock()
	state := stateFile{
		LastAutotileAlgorithm: t.lastAutotile,
		AutotiledScreens:      make(map[string]string, len(t.autotiled)),
	}
	if t.lastManual != uuid.Nil {
		state.LastManualLayout = t.lastManual.String()
	}
	for screen, algID := range t.autotiled {
		state.AutotiledScreens[screen] = algID
	}
	t.mu.Unlock()

	data, err := yaml.Marshal(&state)
	if err != nil {
		t.log.Warn("failed to marshal mode state", "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(t.statePath), 0755); err != nil {
		t.log.Warn("failed to persist mode state", "error", err)
		return
	}
	if err := os.WriteFile(t.statePath, data, 0600); err != nil {
		t.log.Warn("failed to persist mode state", "error", err)
	}
}
