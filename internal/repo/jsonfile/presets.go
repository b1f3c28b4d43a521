package jsonfile

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/podstudio-labs/podstudio-go/internal/domain"
	"github.com/podstudio-labs/podstudio-go/internal/repo"
)

// DefaultPresetName is seeded on first use and cannot be deleted.
const DefaultPresetName = "Recommended"

// PresetStore keeps named presets in a JSON object on disk, keyed by
// preset name.
type PresetStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewPresetStore creates a preset store writing to path and seeds the
// default preset when it is missing.
func NewPresetStore(path string, logger *slog.Logger) (*PresetStore, error) {
	s := &PresetStore{path: path, logger: logger}

	s.mu.Lock()
	defer s.mu.Unlock()

	presets := s.load()
	if _, ok := presets[DefaultPresetName]; !ok {
		presets[DefaultPresetName] = defaultPresetOptions()
		if err := s.save(presets); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func defaultPresetOptions() domain.Options {
	yes := true
	return domain.Options{
		Diarize:         &yes,
		Deepcast:        &yes,
		ExtractMarkdown: &yes,
		Preprocess:      &yes,
	}
}

// List returns all presets sorted by name.
func (s *PresetStore) List() ([]domain.Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	presets := s.load()
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]domain.Preset, 0, len(names))
	for _, name := range names {
		out = append(out, domain.Preset{Name: name, Options: presets[name]})
	}
	return out, nil
}

// Get returns the preset with the given name.
func (s *PresetStore) Get(name string) (domain.Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	presets := s.load()
	options, ok := presets[name]
	if !ok {
		return domain.Preset{}, repo.ErrNotFound
	}
	return domain.Preset{Name: name, Options: options}, nil
}

// Create stores a new preset. An existing name is an error.
func (s *PresetStore) Create(name string, options domain.Options) (domain.Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	presets := s.load()
	if _, ok := presets[name]; ok {
		return domain.Preset{}, repo.ErrExists
	}

	presets[name] = options
	if err := s.save(presets); err != nil {
		return domain.Preset{}, err
	}
	s.logger.Info("created preset", "name", name)
	return domain.Preset{Name: name, Options: options}, nil
}

// Update replaces an existing preset. A missing name is an error.
func (s *PresetStore) Update(name string, options domain.Options) (domain.Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	presets := s.load()
	if _, ok := presets[name]; !ok {
		return domain.Preset{}, repo.ErrNotFound
	}

	presets[name] = options
	if err := s.save(presets); err != nil {
		return domain.Preset{}, err
	}
	s.logger.Info("updated preset", "name", name)
	return domain.Preset{Name: name, Options: options}, nil
}

// Delete removes a preset. The default preset cannot be deleted.
func (s *PresetStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	presets := s.load()
	if _, ok := presets[name]; !ok {
		return repo.ErrNotFound
	}
	if name == DefaultPresetName {
		return repo.ErrProtected
	}

	delete(presets, name)
	if err := s.save(presets); err != nil {
		return err
	}
	s.logger.Info("deleted preset", "name", name)
	return nil
}

func (s *PresetStore) load() map[string]domain.Options {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read presets", "path", s.path, "error", err)
		}
		return map[string]domain.Options{}
	}

	var presets map[string]domain.Options
	if err := json.Unmarshal(data, &presets); err != nil {
		s.logger.Warn("presets file is corrupt, treating as empty", "path", s.path, "error", err)
		return map[string]domain.Options{}
	}
	if presets == nil {
		presets = map[string]domain.Options{}
	}
	return presets
}

func (s *PresetStore) save(presets map[string]domain.Options) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(presets, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o644)
}
