package runs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/podstudio-labs/podstudio-go/internal/domain"
)

var (
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrNotFound         = errors.New("run not found")
	ErrNotCancelable    = errors.New("run is not cancelable")
)

// Registry holds every run record created during the process lifetime.
// Admission counts only active (pending or running) records, so
// terminal records stay readable without occupying capacity. All reads
// hand out deep copies; records never escape the lock by reference.
type Registry struct {
	mu            sync.Mutex
	maxConcurrent int
	runs          map[string]*domain.Run
	cancels       map[string]context.CancelFunc
}

func NewRegistry(maxConcurrent int) *Registry {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Registry{
		maxConcurrent: maxConcurrent,
		runs:          make(map[string]*domain.Run),
		cancels:       make(map[string]context.CancelFunc),
	}
}

// Admit creates a pending record if capacity allows. The capacity check
// and the insert happen under one lock so two concurrent requests can
// never both observe a free slot.
func (r *Registry) Admit(cfg domain.PipelineConfig) (domain.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := 0
	for _, run := range r.runs {
		if !run.Status.IsTerminal() {
			active++
		}
	}
	if active >= r.maxConcurrent {
		return domain.Run{}, fmt.Errorf("maximum concurrent runs (%d) reached, wait for current runs to complete: %w", r.maxConcurrent, ErrCapacityExceeded)
	}

	run := &domain.Run{
		RunID:     uuid.NewString(),
		Config:    cfg,
		Status:    domain.RunPending,
		Progress:  make(map[string]domain.StageStatus),
		StartedAt: time.Now().UTC(),
	}
	r.runs[run.RunID] = run
	return run.Clone(), nil
}

// Get returns a copy of the record with the given identifier.
func (r *Registry) Get(runID string) (domain.Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[runID]
	if !ok {
		return domain.Run{}, false
	}
	return run.Clone(), true
}

// List returns copies of all records, in no particular order.
func (r *Registry) List() []domain.Run {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Run, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run.Clone())
	}
	return out
}

// ActiveCount reports how many records are pending or running.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := 0
	for _, run := range r.runs {
		if !run.Status.IsTerminal() {
			active++
		}
	}
	return active
}

// MarkRunning moves a pending record to running. It reports false when
// the record is missing or no longer pending, which happens when a run
// is canceled before execution begins.
func (r *Registry) MarkRunning(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[runID]
	if !ok || !domain.CanTransitionRunStatus(run.Status, domain.RunRunning) {
		return false
	}
	run.Status = domain.RunRunning
	return true
}

// ApplyProgress records a normalized stage status, last write wins per
// stage. Updates are only applied while the run is still running, so a
// late callback from an interrupted pipeline cannot resurrect a
// terminal record. Returns a copy of the updated record.
func (r *Registry) ApplyProgress(runID, stage string, status domain.StageStatus) (domain.Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[runID]
	if !ok || run.Status != domain.RunRunning {
		return domain.Run{}, false
	}
	run.Progress[stage] = status
	return run.Clone(), true
}

// SetResult finalizes a running record from a pipeline result: an empty
// error list completes it, anything else fails it.
func (r *Registry) SetResult(runID string, result domain.PipelineResult) (domain.Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[runID]
	if !ok || run.Status != domain.RunRunning {
		return domain.Run{}, false
	}

	run.Result = result.Clone()
	if len(result.Errors) == 0 {
		run.Status = domain.RunCompleted
	} else {
		run.Status = domain.RunFailed
	}
	now := time.Now().UTC()
	run.CompletedAt = &now
	return run.Clone(), true
}

// SetError fails a running record with a human-readable message.
func (r *Registry) SetError(runID, message string) (domain.Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[runID]
	if !ok || run.Status != domain.RunRunning {
		return domain.Run{}, false
	}

	run.Error = message
	run.Status = domain.RunFailed
	now := time.Now().UTC()
	run.CompletedAt = &now
	return run.Clone(), true
}

// SetNotionURL attaches the published Notion page URL to a record.
func (r *Registry) SetNotionURL(runID, url string) (domain.Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[runID]
	if !ok {
		return domain.Run{}, false
	}
	run.NotionURL = url
	return run.Clone(), true
}

// Cancel marks a pending or running record canceled and interrupts its
// execution. A missing record and an already-terminal record are
// distinct failures.
func (r *Registry) Cancel(runID string) (domain.Run, error) {
	r.mu.Lock()

	run, ok := r.runs[runID]
	if !ok {
		r.mu.Unlock()
		return domain.Run{}, ErrNotFound
	}
	if !domain.CanTransitionRunStatus(run.Status, domain.RunCanceled) {
		r.mu.Unlock()
		return domain.Run{}, ErrNotCancelable
	}

	run.Status = domain.RunCanceled
	now := time.Now().UTC()
	run.CompletedAt = &now

	cancel := r.cancels[runID]
	delete(r.cancels, runID)
	snapshot := run.Clone()
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return snapshot, nil
}

// BindCancel registers the function that interrupts a run's execution.
func (r *Registry) BindCancel(runID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[runID] = cancel
}

// ClearCancel drops a run's interrupt function once execution returns.
func (r *Registry) ClearCancel(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, runID)
}
