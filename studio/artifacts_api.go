package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/podstudio-labs/podstudio-go/internal/artifacts"
	"github.com/podstudio-labs/podstudio-go/internal/domain"
	"github.com/podstudio-labs/podstudio-go/internal/service/runs"
)

// runForArtifacts loads a run and writes the 404 itself when the run is
// unknown. The bool reports whether the caller may proceed.
func (api *studioAPI) runForArtifacts(w http.ResponseWriter, r *http.Request) (domain.Run, bool) {
	runID := strings.TrimSpace(r.PathValue("run_id"))
	if runID == "" {
		api.writeError(w, r, http.StatusBadRequest, "run_id_required")
		return domain.Run{}, false
	}

	run, err := api.runs.GetRun(runID)
	if err != nil {
		if errors.Is(err, runs.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return domain.Run{}, false
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return domain.Run{}, false
	}
	return run, true
}

func (api *studioAPI) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	run, ok := api.runForArtifacts(w, r)
	if !ok {
		return
	}
	if run.Result == nil {
		api.writeJSON(w, http.StatusOK, map[string]any{"artifacts": []artifacts.Info{}})
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"artifacts": artifacts.List(run.Result.Artifacts)})
}

func (api *studioAPI) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	run, ok := api.runForArtifacts(w, r)
	if !ok {
		return
	}
	if run.Result == nil {
		api.writeError(w, r, http.StatusNotFound, "no_result")
		return
	}

	path, err := artifacts.ResolveTranscript(run.Result.Artifacts)
	if err != nil {
		api.writeError(w, r, http.StatusNotFound, "not_found")
		return
	}
	api.serveFile(w, r, path, "application/json", "")
}

func (api *studioAPI) handleExportFormat(w http.ResponseWriter, r *http.Request) {
	run, ok := api.runForArtifacts(w, r)
	if !ok {
		return
	}
	if run.Result == nil {
		api.writeError(w, r, http.StatusNotFound, "no_result")
		return
	}

	format := strings.TrimSpace(r.PathValue("format"))
	export, err := artifacts.ResolveExport(run.Result.Artifacts, format)
	if err != nil {
		if errors.Is(err, artifacts.ErrUnsupportedFormat) {
			api.writeError(w, r, http.StatusBadRequest, "unsupported_format")
			return
		}
		api.writeError(w, r, http.StatusNotFound, "not_found")
		return
	}
	api.serveFile(w, r, export.Path, export.MediaType, "")
}

func (api *studioAPI) handleExportZip(w http.ResponseWriter, r *http.Request) {
	run, ok := api.runForArtifacts(w, r)
	if !ok {
		return
	}
	if run.Result == nil {
		api.writeError(w, r, http.StatusNotFound, "no_result")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifacts.ZipFilename(run.RunID)))
	w.WriteHeader(http.StatusOK)

	if err := artifacts.WriteZip(w, run.Result.Artifacts); err != nil {
		// Headers are already out: all we can do is log and drop the
		// connection mid-stream.
		api.logger.Warn("zip export aborted", "run_id", run.RunID, "error", err)
	}
}

// serveFile streams a file from disk with the given content type. A
// non-empty downloadName forces an attachment disposition.
func (api *studioAPI) serveFile(w http.ResponseWriter, r *http.Request, path, contentType, downloadName string) {
	f, err := os.Open(path)
	if err != nil {
		api.writeError(w, r, http.StatusNotFound, "not_found")
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	w.Header().Set("Content-Type", contentType)
	if downloadName != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	}
	w.Header().Set("Content-Length", strconv.FormatInt(stat.Size(), 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		api.logger.Warn("file stream aborted", "path", path, "error", err)
	}
}
