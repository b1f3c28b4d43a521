package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/podstudio-labs/podstudio-go/internal/domain"
	"github.com/podstudio-labs/podstudio-go/internal/service/runs"
)

const streamHeartbeat = 15 * time.Second

// writeSSE writes one server-sent event frame and flushes it.
func writeSSE(w http.ResponseWriter, event, id string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sse payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	if id != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// handleRunEvents streams a run's progress as server-sent events. The
// first frame is a ready marker, the second is a snapshot of the run's
// current state, and the stream closes after the terminal event.
func (api *studioAPI) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("run_id"))
	if runID == "" {
		api.writeError(w, r, http.StatusBadRequest, "run_id_required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.writeError(w, r, http.StatusInternalServerError, "streaming_not_supported")
		return
	}

	sub, err := api.runs.Subscribe(runID)
	if err != nil {
		if errors.Is(err, runs.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	defer api.runs.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ready := map[string]any{
		"run_id":     runID,
		"server_ts":  time.Now().Unix(),
		"request_id": r.Header.Get("X-Request-Id"),
	}
	if err := writeSSE(w, "ready", "", ready); err != nil {
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeSSE(w, "progress", "", ev); err != nil {
				return
			}
			if streamDone(ev) {
				return
			}
		}
	}
}

// streamDone reports whether ev ends the stream: either a terminal
// marker published by the run, or a subscribe-time snapshot of a run
// that already finished.
func streamDone(ev runs.Event) bool {
	switch ev.Stage {
	case runs.StageComplete, runs.StageError, runs.StageCanceled:
		return true
	case runs.StageConnected:
		return domain.RunStatus(ev.Status).IsTerminal()
	}
	return false
}
