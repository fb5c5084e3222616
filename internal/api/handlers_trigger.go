package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/micro-nova/devlog-go/internal/controller"
	"github.com/micro-nova/devlog-go/internal/models"
)

type triggerRequest struct {
	Enabled           *bool `json:"enabled"`
	DeleteExistingLog bool  `json:"delete_existing_log"`
}

type triggerResponse struct {
	Outcome models.EnableOutcome `json:"outcome"`
	models.TriggerStatus
}

func (h *Handlers) getTrigger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.TriggerStatus())
}

func (h *Handlers) setTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Enabled == nil {
		writeError(w, &models.AppError{Code: "BAD_REQUEST", Message: "enabled is required", Field: "enabled", Status: http.StatusBadRequest})
		return
	}

	outcome, err := h.ctrl.SetTriggerEnabled(detached(r), *req.Enabled, req.DeleteExistingLog)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, triggerResponse{Outcome: outcome, TriggerStatus: h.ctrl.TriggerStatus()})
}

// setLifecycle moves a manual scope to the foreground or background.
func (h *Handlers) setLifecycle(w http.ResponseWriter, r *http.Request) {
	var active bool
	switch chi.URLParam(r, "state") {
	case "foreground":
		active = true
	case "background":
		active = false
	default:
		writeError(w, models.ErrBadRequest("state must be foreground or background"))
		return
	}

	if err := h.ctrl.SetForeground(active); err != nil {
		if errors.Is(err, controller.ErrNotManualScope) {
			writeError(w, models.ErrConflict(err.Error()))
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.TriggerStatus())
}
