package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/podstudio-labs/podstudio-go/internal/config"
	"github.com/podstudio-labs/podstudio-go/internal/domain"
	"github.com/podstudio-labs/podstudio-go/internal/pipeline"
	"github.com/podstudio-labs/podstudio-go/internal/repo"
	"github.com/podstudio-labs/podstudio-go/internal/service/runs"
	"github.com/podstudio-labs/podstudio-go/internal/sources"
)

type studioAPI struct {
	logger   *slog.Logger
	runs     *runs.Service
	presets  repo.PresetRepository
	defaults config.DefaultsConfig
}

func newStudioAPI(logger *slog.Logger, svc *runs.Service, presets repo.PresetRepository, defaults config.DefaultsConfig) *studioAPI {
	return &studioAPI{
		logger:   logger,
		runs:     svc,
		presets:  presets,
		defaults: defaults,
	}
}

func (api *studioAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/runs", api.handleCreateRun)
	mux.HandleFunc("GET /api/runs", api.handleListRuns)
	mux.HandleFunc("GET /api/runs/{run_id}", api.handleGetRun)
	mux.HandleFunc("POST /api/runs/{run_id}/cancel", api.handleCancelRun)
	mux.HandleFunc("GET /api/runs/{run_id}/events", api.handleRunEvents)
	mux.HandleFunc("GET /api/runs/{run_id}/debug-cli", api.handleDebugCLI)

	mux.HandleFunc("GET /api/runs/{run_id}/artifacts", api.handleListArtifacts)
	mux.HandleFunc("GET /api/runs/{run_id}/transcript", api.handleGetTranscript)
	// The literal zip segment takes precedence over the format wildcard.
	mux.HandleFunc("GET /api/runs/{run_id}/export/zip", api.handleExportZip)
	mux.HandleFunc("GET /api/runs/{run_id}/export/{format}", api.handleExportFormat)

	mux.HandleFunc("GET /api/presets", api.handleListPresets)
	mux.HandleFunc("POST /api/presets", api.handleCreatePreset)
	mux.HandleFunc("PUT /api/presets/{name}", api.handleUpdatePreset)
	mux.HandleFunc("DELETE /api/presets/{name}", api.handleDeletePreset)

	mux.HandleFunc("POST /api/validate-url", api.handleValidateURL)
}

type createRunRequest struct {
	URL      string          `json:"url"`
	Preset   string          `json:"preset,omitempty"`
	Advanced *domain.Options `json:"advanced,omitempty"`
}

type createRunResponse struct {
	RunID string `json:"run_id"`
}

func (api *studioAPI) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	var presetOptions *domain.Options
	if name := strings.TrimSpace(req.Preset); name != "" {
		preset, err := api.presets.Get(name)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				api.writeError(w, r, http.StatusNotFound, "preset_not_found")
				return
			}
			api.writeError(w, r, http.StatusInternalServerError, "internal_error")
			return
		}
		presetOptions = &preset.Options
	}

	if strings.TrimSpace(req.URL) == "" {
		api.writeError(w, r, http.StatusBadRequest, "url_required")
		return
	}

	cfg, classification := api.buildRunConfig(req.URL, presetOptions, req.Advanced)
	if !classification.Valid {
		api.writeErrorWithDetails(w, r, http.StatusBadRequest, "invalid_url", classification.Error)
		return
	}

	runID, err := api.runs.Create(cfg)
	if err != nil {
		if errors.Is(err, runs.ErrCapacityExceeded) {
			api.writeErrorWithDetails(w, r, http.StatusTooManyRequests, "capacity_exceeded", err.Error())
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	w.Header().Set("Location", "/api/runs/"+runID)
	api.writeJSON(w, http.StatusCreated, createRunResponse{RunID: runID})
}

// buildRunConfig assembles the run configuration in override order:
// base defaults, then the source URL, then preset options, then
// per-request options, then service-level fallbacks for anything still
// unset.
func (api *studioAPI) buildRunConfig(rawURL string, preset, advanced *domain.Options) (domain.PipelineConfig, sources.Classification) {
	classification := sources.Classify(rawURL)
	if !classification.Valid {
		return domain.PipelineConfig{}, classification
	}

	cfg := domain.DefaultPipelineConfig()
	if classification.Type == sources.SourceYouTube {
		cfg.YouTubeURL = strings.TrimSpace(rawURL)
	} else {
		// Podcast pages go down the feed path as well; the pipeline
		// resolves the feed from the page.
		cfg.RSSURL = strings.TrimSpace(rawURL)
	}

	preset.Apply(&cfg)
	advanced.Apply(&cfg)

	if cfg.Model == "" {
		cfg.Model = api.defaults.ASRModel
	}
	if cfg.Compute == "" {
		cfg.Compute = api.defaults.Compute
	}
	if cfg.DeepcastModel == "" {
		cfg.DeepcastModel = api.defaults.DeepcastModel
	}
	if cfg.DeepcastTemp == 0 {
		cfg.DeepcastTemp = api.defaults.DeepcastTemp
	}
	if cfg.Notion && api.defaults.NotionDB != "" {
		cfg.NotionDB = api.defaults.NotionDB
		cfg.PodcastProp = api.defaults.PodcastProp
		cfg.DateProp = api.defaults.DateProp
		cfg.EpisodeProp = api.defaults.EpisodeProp
	}
	return cfg, classification
}

func (api *studioAPI) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(parseIntQuery(r, "limit", 20), 1, 100)
	api.writeJSON(w, http.StatusOK, map[string]any{"runs": api.runs.ListRuns(limit)})
}

func (api *studioAPI) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("run_id"))
	if runID == "" {
		api.writeError(w, r, http.StatusBadRequest, "run_id_required")
		return
	}

	run, err := api.runs.GetRun(runID)
	if err != nil {
		if errors.Is(err, runs.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusOK, run)
}

func (api *studioAPI) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("run_id"))
	if runID == "" {
		api.writeError(w, r, http.StatusBadRequest, "run_id_required")
		return
	}

	if _, err := api.runs.CancelRun(runID); err != nil {
		switch {
		case errors.Is(err, runs.ErrNotFound):
			api.writeError(w, r, http.StatusNotFound, "not_found")
		case errors.Is(err, runs.ErrNotCancelable):
			api.writeError(w, r, http.StatusConflict, "not_cancelable")
		default:
			api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		}
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"status": "canceled"})
}

type validateURLRequest struct {
	URL string `json:"url"`
}

func (api *studioAPI) handleValidateURL(w http.ResponseWriter, r *http.Request) {
	var req validateURLRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	api.writeJSON(w, http.StatusOK, sources.Classify(req.URL))
}

func (api *studioAPI) handleDebugCLI(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("run_id"))
	if runID == "" {
		api.writeError(w, r, http.StatusBadRequest, "run_id_required")
		return
	}

	run, err := api.runs.GetRun(runID)
	if err != nil {
		if errors.Is(err, runs.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	command := pipeline.DebugCommand(run.Config, pipelineDefaults(api.defaults))
	api.writeJSON(w, http.StatusOK, map[string]any{"command": command})
}

func pipelineDefaults(d config.DefaultsConfig) pipeline.Defaults {
	return pipeline.Defaults{
		ASRModel:      d.ASRModel,
		DeepcastModel: d.DeepcastModel,
		DeepcastTemp:  d.DeepcastTemp,
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func (api *studioAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *studioAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func (api *studioAPI) writeErrorWithDetails(w http.ResponseWriter, r *http.Request, status int, code string, details any) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
		"details":    details,
	})
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func clampInt(v int, min int, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
