package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/podstudio-labs/podstudio-go/internal/domain"
)

// SimRunner simulates a pipeline run without invoking the CLI. Stages
// advance on a fixed cadence and artifacts are written into a scratch
// workdir so artifact and export endpoints behave like the real thing.
type SimRunner struct {
	StepDelay time.Duration
	// FailStage makes the run fail at the named stage. Empty means the
	// run completes.
	FailStage string
}

func NewSimRunner(stepDelay time.Duration) *SimRunner {
	return &SimRunner{StepDelay: stepDelay}
}

func (s *SimRunner) Run(ctx context.Context, cfg domain.PipelineConfig, onProgress ProgressFunc) (domain.PipelineResult, error) {
	start := time.Now()

	workdir, err := os.MkdirTemp("", "podx-sim-*")
	if err != nil {
		return domain.PipelineResult{}, &PipelineError{Stage: "fetch", Message: "failed to create workdir", Err: err}
	}

	result := domain.PipelineResult{
		Workdir:   workdir,
		Artifacts: map[string]string{},
	}

	for _, stage := range simStages(cfg) {
		emit(onProgress, stage, startText(stage))
		if err := simWait(ctx, s.StepDelay); err != nil {
			return domain.PipelineResult{}, err
		}

		if stage == s.FailStage {
			emit(onProgress, stage, "failed")
			result.Errors = append(result.Errors, fmt.Sprintf("simulated failure at %s", stage))
			result.Duration = time.Since(start).Seconds()
			return result, nil
		}

		if err := s.produceArtifacts(stage, cfg, &result); err != nil {
			return domain.PipelineResult{}, err
		}

		emit(onProgress, stage, "completed")
		result.StepsCompleted = append(result.StepsCompleted, stage)
	}

	result.Duration = time.Since(start).Seconds()
	return result, nil
}

func simStages(cfg domain.PipelineConfig) []string {
	stages := []string{"fetch", "transcode", "transcribe"}
	if cfg.Preprocess {
		stages = append(stages, "preprocess")
	}
	if cfg.Diarize {
		stages = append(stages, "diarize")
	}
	if cfg.Deepcast {
		stages = append(stages, "deepcast")
	}
	stages = append(stages, "export")
	if cfg.Notion {
		stages = append(stages, "notion")
	}
	return stages
}

// startText returns raw status text in the same vocabulary the real CLI
// uses, so simulated runs exercise normalization.
func startText(stage string) string {
	switch stage {
	case "fetch":
		return "fetching episode"
	case "transcode":
		return "transcoding audio"
	case "transcribe":
		return "transcribing"
	default:
		return "started"
	}
}

func (s *SimRunner) produceArtifacts(stage string, cfg domain.PipelineConfig, result *domain.PipelineResult) error {
	write := func(key, name, content string) error {
		path := filepath.Join(result.Workdir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return &PipelineError{Stage: stage, Message: "failed to write " + name, Err: err}
		}
		result.Artifacts[key] = path
		return nil
	}

	switch stage {
	case "deepcast":
		return write("deepcast_md", "deepcast.md", "# Episode notes\n\nSimulated analysis.\n")
	case "export":
		transcript := `{"language": "en", "segments": [{"start": 0.0, "end": 2.4, "text": "Welcome to the show."}]}`
		if err := write("latest_json", "transcript.json", transcript+"\n"); err != nil {
			return err
		}
		if err := write("latest_txt", "transcript.txt", "Welcome to the show.\n"); err != nil {
			return err
		}
		if err := write("latest_srt", "transcript.srt", "1\n00:00:00,000 --> 00:00:02,400\nWelcome to the show.\n"); err != nil {
			return err
		}
		return write("latest_vtt", "transcript.vtt", "WEBVTT\n\n00:00.000 --> 00:02.400\nWelcome to the show.\n")
	case "notion":
		url := "https://www.notion.so/podx-" + sourceHash(cfg)
		return write("notion", "notion.json", fmt.Sprintf("{\"url\": %q}\n", url))
	default:
		return nil
	}
}

// sourceHash derives a stable short identifier from the run's source so
// repeated simulations of the same input look the same.
func sourceHash(cfg domain.PipelineConfig) string {
	source := cfg.Show
	if source == "" {
		source = cfg.RSSURL
	}
	if source == "" {
		source = cfg.YouTubeURL
	}
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:4])
}

func emit(onProgress ProgressFunc, stage, status string) {
	if onProgress != nil {
		onProgress(stage, status)
	}
}

func simWait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
