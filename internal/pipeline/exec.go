package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/podstudio-labs/podstudio-go/internal/domain"
)

// CommandRunner drives the podx CLI as a subprocess. The CLI streams
// one JSON object per line on stdout: progress events carry stage and
// status, and the final event carries the result.
type CommandRunner struct {
	binary   string
	defaults Defaults
	logger   *slog.Logger
}

func NewCommandRunner(binary string, defaults Defaults, logger *slog.Logger) *CommandRunner {
	return &CommandRunner{binary: binary, defaults: defaults, logger: logger}
}

type streamEvent struct {
	Stage  string                 `json:"stage,omitempty"`
	Status string                 `json:"status,omitempty"`
	Result *domain.PipelineResult `json:"result,omitempty"`
}

// Run executes the CLI and forwards its progress stream. Cancelling the
// context kills the subprocess.
func (r *CommandRunner) Run(ctx context.Context, cfg domain.PipelineConfig, onProgress ProgressFunc) (domain.PipelineResult, error) {
	args := Args(cfg, r.defaults)

	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return domain.PipelineResult{}, &PipelineError{Stage: "pipeline", Message: "failed to open stdout pipe", Err: err}
	}

	if err := cmd.Start(); err != nil {
		return domain.PipelineResult{}, &PipelineError{
			Stage:   "pipeline",
			Message: fmt.Sprintf("failed to start %s", r.binary),
			Err:     err,
		}
	}

	result, scanErr := parseStream(stdout, onProgress, r.logger)

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return domain.PipelineResult{}, ctx.Err()
	}
	if waitErr != nil {
		// A nonzero exit with a reported result is a pipeline-level
		// failure, not a transport one. The result's error list is the
		// authoritative record.
		if result != nil && len(result.Errors) > 0 {
			return *result, nil
		}
		return domain.PipelineResult{}, &PipelineError{
			Stage:   "pipeline",
			Message: exitMessage(r.binary, waitErr, stderr.String()),
			Err:     waitErr,
		}
	}
	if scanErr != nil {
		return domain.PipelineResult{}, &PipelineError{Stage: "pipeline", Message: "failed to read pipeline output", Err: scanErr}
	}
	if result == nil {
		return domain.PipelineResult{}, &PipelineError{
			Stage:   "pipeline",
			Message: fmt.Sprintf("%s exited without reporting a result", r.binary),
		}
	}
	return *result, nil
}

// parseStream consumes line-delimited JSON events, forwarding progress
// callbacks and capturing the final result. Unparseable lines are
// skipped so incidental CLI output cannot wedge a run.
func parseStream(r io.Reader, onProgress ProgressFunc, logger *slog.Logger) (*domain.PipelineResult, error) {
	var result *domain.PipelineResult

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			logger.Debug("ignoring unparseable pipeline output", "line", line)
			continue
		}
		if event.Result != nil {
			result = event.Result
			continue
		}
		if event.Stage != "" && onProgress != nil {
			onProgress(event.Stage, event.Status)
		}
	}
	return result, scanner.Err()
}

func exitMessage(binary string, err error, stderr string) string {
	msg := fmt.Sprintf("%s failed: %v", binary, err)
	if tail := stderrTail(stderr, 5); tail != "" {
		msg += ": " + tail
	}
	return msg
}

// stderrTail keeps the last n non-empty lines, which is where CLIs put
// the actionable part of a failure.
func stderrTail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	kept := make([]string, 0, n)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, " | ")
}
