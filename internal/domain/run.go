package domain

import "time"

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// IsTerminal reports whether no further transition is possible.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCanceled:
		return true
	default:
		return false
	}
}

// CanTransitionRunStatus reports whether a run may move between two statuses.
// Terminal states admit no outgoing transitions; a pending run may be
// canceled without ever running.
func CanTransitionRunStatus(from, to RunStatus) bool {
	switch from {
	case RunPending:
		return to == RunRunning || to == RunCanceled
	case RunRunning:
		return to == RunCompleted || to == RunFailed || to == RunCanceled
	default:
		return false
	}
}

// StageStatus is the normalized state of a single pipeline stage.
type StageStatus string

const (
	StageStarted   StageStatus = "started"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

// PipelineResult is what a full pipeline execution returns. Errors holds
// non-fatal stage errors; a non-empty list marks the run failed even though
// a result exists.
type PipelineResult struct {
	Workdir        string            `json:"workdir"`
	StepsCompleted []string          `json:"steps_completed"`
	Artifacts      map[string]string `json:"artifacts"`
	Duration       float64           `json:"duration"`
	Errors         []string          `json:"errors"`
}

// Clone returns a deep copy.
func (r *PipelineResult) Clone() *PipelineResult {
	if r == nil {
		return nil
	}
	out := PipelineResult{
		Workdir:  r.Workdir,
		Duration: r.Duration,
	}
	if r.StepsCompleted != nil {
		out.StepsCompleted = append([]string(nil), r.StepsCompleted...)
	}
	if r.Artifacts != nil {
		out.Artifacts = make(map[string]string, len(r.Artifacts))
		for k, v := range r.Artifacts {
			out.Artifacts[k] = v
		}
	}
	if r.Errors != nil {
		out.Errors = append([]string(nil), r.Errors...)
	}
	return &out
}

// Run is one tracked invocation of the external pipeline.
//
// CompletedAt is set exactly when Status is terminal. Result is set only
// when a full pipeline execution returned, never on rejection or early
// cancellation.
type Run struct {
	RunID       string                 `json:"run_id"`
	Config      PipelineConfig         `json:"config"`
	Status      RunStatus              `json:"status"`
	Progress    map[string]StageStatus `json:"progress"`
	Result      *PipelineResult        `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	NotionURL   string                 `json:"notion_url,omitempty"`
}

// Clone returns a deep copy safe to hand across ownership boundaries.
// Mutating the copy never affects the original.
func (r Run) Clone() Run {
	out := r
	if r.Progress != nil {
		out.Progress = make(map[string]StageStatus, len(r.Progress))
		for k, v := range r.Progress {
			out.Progress[k] = v
		}
	}
	out.Result = r.Result.Clone()
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
