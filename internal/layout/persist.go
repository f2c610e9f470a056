package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/plasmazones/plasmazones/internal/zone"
)

// storeAssignment is the YAML form of one assignment-table entry.
type storeAssignment struct {
	Screen   string `yaml:"screen"`
	Desktop  int    `yaml:"desktop,omitempty"`
	Activity string `yaml:"activity,omitempty"`
	Layout   string `yaml:"layout"`
}

// storeFile is the single keyed config holding assignments, quick slots
// and the default layout.
type storeFile struct {
	Default     string            `yaml:"default_layout,omitempty"`
	Assignments []storeAssignment `yaml:"assignments,omitempty"`
	Slots       map[int]string    `yaml:"slots,omitempty"`
}

// Load reads all layout files from the layouts directory and the
// assignment store. Built-in layouts are generated on first run when the
// directory is empty. Malformed layout files are logged and skipped; they
// never abort the load.
func (m *Manager) Load() error {
	if err := os.MkdirAll(m.layoutsDir, 0755); err != nil {
		return fmt.Errorf("failed to create layouts dir: %w", err)
	}

	entries, err := os.ReadDir(m.layoutsDir)
	if err != nil {
		return fmt.Errorf("failed to read layouts dir: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(m.layoutsDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			m.logger.Warn("failed to read layout file", "path", path, "error", err)
			continue
		}
		l, err := zone.ParseLayout(data)
		if err != nil {
			m.logger.Warn("rejected layout file", "path", path, "error", err)
			continue
		}
		l.SourcePath = path
		m.mu.Lock()
		m.layouts[l.ID] = l
		m.order = append(m.order, l.ID)
		m.mu.Unlock()
		loaded++
	}

	if loaded == 0 {
		m.logger.Info("no layouts found, generating built-in set")
		for _, l := range zone.BuiltinLayouts() {
			m.mu.Lock()
			m.layouts[l.ID] = l
			m.order = append(m.order, l.ID)
			m.mu.Unlock()
			if err := m.saveLayout(l); err != nil {
				m.logger.Warn("failed to write built-in layout", "layout", l.Name, "error", err)
			}
		}
	}

	if err := m.loadStore(); err != nil {
		m.logger.Warn("failed to load assignment store", "error", err)
	}
	m.mu.Lock()
	if m.defaultLayout == uuid.Nil && len(m.order) > 0 {
		m.defaultLayout = m.order[0]
	}
	m.mu.Unlock()
	return nil
}

// saveLayout writes one layout to its UUID-named file in the user
// directory.
func (m *Manager) saveLayout(l *zone.Layout) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal layout %s: %w", l.ID, err)
	}
	path := filepath.Join(m.layoutsDir, l.ID.String()+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write layout file: %w", err)
	}
	l.SourcePath = path
	return nil
}

func (m *Manager) removeLayoutFile(id uuid.UUID) error {
	path := filepath.Join(m.layoutsDir, id.String()+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (m *Manager) loadStore() error {
	data, err := os.ReadFile(m.storePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var store storeFile
	if err := yaml.Unmarshal(data, &store); err != nil {
		return fmt.Errorf("failed to parse assignment store: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if store.Default != "" {
		if id, err := uuid.Parse(store.Default); err == nil {
			m.defaultLayout = id
		} else {
			m.logger.Warn("invalid default layout id", "id", store.Default)
		}
	}
	for _, a := range store.Assignments {
		id, err := uuid.Parse(a.Layout)
		if err != nil {
			m.logger.Warn("invalid layout id in assignment", "id", a.Layout)
			continue
		}
		m.assignments[AssignmentKey{Screen: a.Screen, Desktop: a.Desktop, Activity: a.Activity}] = id
	}
	for slot, raw := range store.Slots {
		id, err := uuid.Parse(raw)
		if err != nil || slot < 1 || slot > 9 {
			m.logger.Warn("invalid quick slot entry", "slot", slot, "id", raw)
			continue
		}
		m.slots[slot] = id
	}
	return nil
}

func (m *Manager) saveStore() error {
	assignments := m.sortedAssignments()

	m.mu.Lock()
	store := storeFile{Assignments: assignments}
	if m.defaultLayout != uuid.Nil {
		store.Default = m.defaultLayout.String()
	}
	if len(m.slots) > 0 {
		store.Slots = make(map[int]string, len(m.slots))
		for slot, id := range m.slots {
			store.Slots[slot] = id.String()
		}
	}
	m.mu.Unlock()

	data, err := yaml.Marshal(&store)
	if err != nil {
		return fmt.Errorf("failed to marshal assignment store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.storePath), 0755); err != nil {
		return err
	}
	return os.WriteFile(m.storePath, data, 0644)
}
