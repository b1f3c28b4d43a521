// Package pipeline executes the podx pipeline for a run, either by
// driving the real CLI or by simulating it.
package pipeline

import (
	"context"
	"fmt"

	"github.com/podstudio-labs/podstudio-go/internal/domain"
)

// ProgressFunc receives raw stage/status callbacks during execution.
// Callbacks may arrive zero or more times before Run returns.
type ProgressFunc func(stage, status string)

// Runner executes the pipeline for one run config.
type Runner interface {
	Run(ctx context.Context, cfg domain.PipelineConfig, onProgress ProgressFunc) (domain.PipelineResult, error)
}

// Defaults are values the pipeline treats as implicit. Flags matching a
// default are omitted from generated commands.
type Defaults struct {
	ASRModel      string
	DeepcastModel string
	DeepcastTemp  float64
}

// PipelineError is a stage-aware execution error.
type PipelineError struct {
	Stage   string
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
