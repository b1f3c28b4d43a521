package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/podstudio-labs/podstudio-go/internal/domain"
	"github.com/podstudio-labs/podstudio-go/internal/repo"
)

type createPresetRequest struct {
	Name    string         `json:"name"`
	Options domain.Options `json:"config"`
}

type updatePresetRequest struct {
	Options domain.Options `json:"config"`
}

func (api *studioAPI) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := api.presets.List()
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"presets": presets})
}

func (api *studioAPI) handleCreatePreset(w http.ResponseWriter, r *http.Request) {
	var req createPresetRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		api.writeError(w, r, http.StatusBadRequest, "name_required")
		return
	}

	preset, err := api.presets.Create(name, req.Options)
	if err != nil {
		if errors.Is(err, repo.ErrExists) {
			api.writeError(w, r, http.StatusConflict, "preset_exists")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	w.Header().Set("Location", "/api/presets/"+name)
	api.writeJSON(w, http.StatusCreated, preset)
}

func (api *studioAPI) handleUpdatePreset(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		api.writeError(w, r, http.StatusBadRequest, "name_required")
		return
	}

	var req updatePresetRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	preset, err := api.presets.Update(name, req.Options)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "preset_not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusOK, preset)
}

func (api *studioAPI) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		api.writeError(w, r, http.StatusBadRequest, "name_required")
		return
	}

	if err := api.presets.Delete(name); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			api.writeError(w, r, http.StatusNotFound, "preset_not_found")
		case errors.Is(err, repo.ErrProtected):
			api.writeError(w, r, http.StatusBadRequest, "preset_protected")
		default:
			api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		}
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}
