package tracking

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// stateFile is the on-disk shape of the window table.
type stateFile struct {
	Windows map[string]*Record `yaml:"windows"`
}

func (s *Service) load() error {
	if s.statePath == "" {
		return nil
	}
	data, err := os.ReadFile(s.statePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var state stateFile
	if err := yaml.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse window state: %w", err)
	}
	s.mu.Lock()
	for id, r := range state.Windows {
		r.persisted = true
		s.records[id] = r
	}
	s.mu.Unlock()
	return nil
}

// markDirtyLocked schedules a debounced save. Writes are serialized by the
// service mutex; persistence happens on idle.
func (s *Service) markDirtyLocked() {
	if s.statePath == "" {
		return
	}
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	s.saveTimer = time.AfterFunc(s.saveDelay, func() {
		if err := s.Flush(); err != nil {
			s.logger.Warn("failed to persist window state", "error", err)
		}
	})
}

// Flush writes the window table to disk immediately.
func (s *Service) Flush() error {
	if s.statePath == "" {
		return nil
	}
	s.mu.Lock()
	state := stateFile{Windows: make(map[string]*Record, len(s.records))}
	for id, r := range s.records {
		cp := *r
		state.Windows[id] = &cp
	}
	s.mu.Unlock()

	data, err := yaml.Marshal(&state)
	if err != nil {
		return fmt.Errorf("failed to marshal window state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.statePath), 0755); err != nil {
		return err
	}
	return os.WriteFile(s.statePath, data, 0600)
}

// Close flushes any pending save.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	s.mu.Unlock()
	return s.Flush()
}
