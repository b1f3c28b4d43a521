// Package runs orchestrates pipeline runs: admission against a
// concurrency ceiling, execution in a per-run goroutine, normalized
// progress fan-out, and terminal archival to history.
package runs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sort"

	"github.com/podstudio-labs/podstudio-go/internal/domain"
	"github.com/podstudio-labs/podstudio-go/internal/pipeline"
	"github.com/podstudio-labs/podstudio-go/internal/progress"
	"github.com/podstudio-labs/podstudio-go/internal/repo"
)

const defaultListLimit = 20

// Service coordinates the registry, broadcaster, pipeline runner, and
// history store for the full run lifecycle.
type Service struct {
	base        context.Context
	logger      *slog.Logger
	registry    *Registry
	broadcaster *Broadcaster
	runner      pipeline.Runner
	history     repo.HistoryRepository
	normalizer  *progress.Normalizer
}

// NewService wires the run orchestrator. base is the parent context for
// run execution; cancelling it interrupts every active run.
func NewService(
	base context.Context,
	logger *slog.Logger,
	registry *Registry,
	broadcaster *Broadcaster,
	runner pipeline.Runner,
	history repo.HistoryRepository,
	normalizer *progress.Normalizer,
) *Service {
	return &Service{
		base:        base,
		logger:      logger,
		registry:    registry,
		broadcaster: broadcaster,
		runner:      runner,
		history:     history,
		normalizer:  normalizer,
	}
}

// Create admits a new run and starts executing it in the background.
// It returns the run identifier immediately; outcome is observable
// through GetRun and the progress channel.
func (s *Service) Create(cfg domain.PipelineConfig) (string, error) {
	run, err := s.registry.Admit(cfg)
	if err != nil {
		return "", err
	}

	s.logger.Info("created run", "run_id", run.RunID)
	go s.execute(run.RunID, cfg)
	return run.RunID, nil
}

func (s *Service) execute(runID string, cfg domain.PipelineConfig) {
	ctx, cancel := context.WithCancel(s.base)
	defer cancel()
	s.registry.BindCancel(runID, cancel)
	defer s.registry.ClearCancel(runID)

	// A run canceled before execution begins never transitions through
	// running; its terminal event was already published by the cancel.
	if !s.registry.MarkRunning(runID) {
		return
	}

	// Synthetic liveness event so subscribers observe movement before
	// the first real callback arrives.
	s.applyAndPublish(runID, "fetch", domain.StageStarted)

	onProgress := func(rawStage, rawStatus string) {
		stage, status, recognized := s.normalizer.Normalize(rawStage, rawStatus)
		if !recognized {
			s.logger.Warn("unrecognized progress status, treating as started",
				"run_id", runID, "stage", stage, "raw_status", rawStatus)
		}
		s.applyAndPublish(runID, stage, status)
	}

	result, err := s.runner.Run(ctx, cfg, onProgress)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			s.finishCanceled(runID)
			return
		}
		s.finishFailed(runID, err.Error())
		return
	}
	s.finishCompleted(runID, result)
}

// applyAndPublish records one normalized progress update and pushes it
// to subscribers. The published snapshot already includes the update.
// Updates against a record that is no longer running are dropped.
func (s *Service) applyAndPublish(runID, stage string, status domain.StageStatus) {
	run, ok := s.registry.ApplyProgress(runID, stage, status)
	if !ok {
		return
	}
	s.broadcaster.Publish(runID, Event{
		Stage:    stage,
		Status:   string(status),
		Progress: run.Progress,
	})
}

func (s *Service) finishCompleted(runID string, result domain.PipelineResult) {
	run, ok := s.registry.SetResult(runID, result)
	if !ok {
		return
	}

	if url := notionURLFromArtifacts(result.Artifacts); url != "" {
		if updated, ok := s.registry.SetNotionURL(runID, url); ok {
			run = updated
		}
	}

	s.appendHistory(run)
	if run.Status == domain.RunCompleted {
		s.logger.Info("run completed", "run_id", runID, "duration_s", result.Duration)
		s.publishTerminal(run, StageComplete, "completed")
		return
	}
	s.logger.Error("run failed", "run_id", runID, "errors", result.Errors)
	s.publishTerminal(run, StageError, "failed")
}

func (s *Service) finishFailed(runID, message string) {
	run, ok := s.registry.SetError(runID, message)
	if !ok {
		return
	}
	s.logger.Error("run failed", "run_id", runID, "error", message)
	s.appendHistory(run)
	s.publishTerminal(run, StageError, "failed")
}

// finishCanceled settles a run whose execution was interrupted without
// an explicit cancel request, such as process shutdown. A run already
// canceled through CancelRun has nothing left to do.
func (s *Service) finishCanceled(runID string) {
	run, err := s.registry.Cancel(runID)
	if err != nil {
		return
	}
	s.logger.Info("run canceled", "run_id", runID)
	s.appendHistory(run)
	s.publishTerminal(run, StageCanceled, "canceled")
}

func (s *Service) publishTerminal(run domain.Run, stage, status string) {
	s.broadcaster.Publish(run.RunID, Event{
		Stage:     stage,
		Status:    status,
		Progress:  run.Progress,
		Error:     run.Error,
		Result:    run.Result,
		NotionURL: run.NotionURL,
	})
}

func (s *Service) appendHistory(run domain.Run) {
	if err := s.history.Append(run); err != nil {
		s.logger.Warn("failed to persist run to history", "run_id", run.RunID, "error", err)
	}
}

// GetRun returns a run from the live registry, falling back to history
// for runs recorded by earlier processes.
func (s *Service) GetRun(runID string) (domain.Run, error) {
	if run, ok := s.registry.Get(runID); ok {
		return run, nil
	}
	run, err := s.history.Get(runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Run{}, ErrNotFound
		}
		return domain.Run{}, err
	}
	return run, nil
}

// ListRuns merges live and stored records, deduplicated by identifier
// with live records taking precedence, newest first.
func (s *Service) ListRuns(limit int) []domain.Run {
	if limit <= 0 {
		limit = defaultListLimit
	}

	merged := s.registry.List()
	seen := make(map[string]struct{}, len(merged))
	for _, run := range merged {
		seen[run.RunID] = struct{}{}
	}

	stored, err := s.history.List()
	if err != nil {
		s.logger.Warn("failed to load run history", "error", err)
	}
	for _, run := range stored {
		if _, ok := seen[run.RunID]; ok {
			continue
		}
		merged = append(merged, run)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].StartedAt.After(merged[j].StartedAt)
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// CancelRun cancels a pending or running run, archives it, and emits
// the terminal event. Cancelling a terminal run fails with
// ErrNotCancelable; an unknown run fails with ErrNotFound.
func (s *Service) CancelRun(runID string) (domain.Run, error) {
	run, err := s.registry.Cancel(runID)
	if err != nil {
		return domain.Run{}, err
	}
	s.logger.Info("run canceled", "run_id", runID)
	s.appendHistory(run)
	s.publishTerminal(run, StageCanceled, "canceled")
	return run, nil
}

// Subscribe attaches a live progress subscriber to a run. The first
// delivered event is a snapshot of the run's current status and
// progress, so late joiners never start blind.
func (s *Service) Subscribe(runID string) (*Subscriber, error) {
	if _, ok := s.registry.Get(runID); !ok {
		return nil, ErrNotFound
	}

	sub := s.broadcaster.Subscribe(runID, func() (Event, bool) {
		run, ok := s.registry.Get(runID)
		if !ok {
			return Event{}, false
		}
		return Event{
			Stage:    StageConnected,
			Status:   string(run.Status),
			Progress: run.Progress,
		}, true
	})
	return sub, nil
}

// Unsubscribe detaches a subscriber and closes its event channel.
func (s *Service) Unsubscribe(sub *Subscriber) {
	s.broadcaster.Unsubscribe(sub)
}

// notionURLFromArtifacts reads the Notion page URL out of the pipeline's
// notion artifact. Every failure degrades to an absent URL.
func notionURLFromArtifacts(artifacts map[string]string) string {
	path, ok := artifacts["notion"]
	if !ok || path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	var page struct {
		URL     string `json:"url"`
		PageURL string `json:"page_url"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return ""
	}
	if page.URL != "" {
		return page.URL
	}
	return page.PageURL
}
