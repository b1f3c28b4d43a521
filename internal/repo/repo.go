// Package repo defines persistence contracts for run history and
// presets.
package repo

import (
	"errors"

	"github.com/podstudio-labs/podstudio-go/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrExists    = errors.New("already exists")
	ErrProtected = errors.New("preset is protected")
)

// HistoryRepository persists terminal run records, newest first. Load
// failures degrade to an empty view rather than propagating.
type HistoryRepository interface {
	Append(run domain.Run) error
	List() ([]domain.Run, error)
	Get(runID string) (domain.Run, error)
}

// PresetRepository persists named option presets.
type PresetRepository interface {
	List() ([]domain.Preset, error)
	Get(name string) (domain.Preset, error)
	Create(name string, options domain.Options) (domain.Preset, error)
	Update(name string, options domain.Options) (domain.Preset, error)
	Delete(name string) error
}
