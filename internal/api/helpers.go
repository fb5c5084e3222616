// Package api implements the HTTP bridge to the diagnostic log, the shake
// trigger and the upload relays.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/micro-nova/devlog-go/internal/hardware"
	"github.com/micro-nova/devlog-go/internal/logwriter"
	"github.com/micro-nova/devlog-go/internal/models"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ctrl   Controller
	events EventBus
}

// Controller is the interface the handlers use to reach the log, trigger
// and relays.
type Controller interface {
	WriteLog(ctx context.Context, message string) (bool, error)
	Log(ctx context.Context, level logwriter.Level, message string, args ...any) (bool, error)
	FileExists(ctx context.Context) (bool, error)
	DeleteLogFile(ctx context.Context) (bool, error)
	LogPath() string
	SetTriggerEnabled(ctx context.Context, enabled, deleteExistingLog bool) (models.EnableOutcome, error)
	TriggerStatus() models.TriggerStatus
	SetForeground(active bool) error
	Upload(ctx context.Context, endpoint string) models.UploadResult
	UploadSlack(ctx context.Context) (models.UploadResult, *models.AppError)
}

// EventBus is the interface for subscribing to trigger events.
type EventBus interface {
	Subscribe(id string) <-chan models.TriggerEvent
	Unsubscribe(id string)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as a JSON response. AppErrors keep their status,
// hardware faults map to 502 and everything else to 500.
func writeError(w http.ResponseWriter, err error) {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.Status, appErr)
		return
	}
	var hwErr hardware.HardwareError
	if errors.As(err, &hwErr) {
		writeJSON(w, http.StatusBadGateway, &models.AppError{Code: "HARDWARE", Message: hwErr.Error(), Status: http.StatusBadGateway})
		return
	}
	writeJSON(w, http.StatusInternalServerError, models.ErrInternal(err.Error()))
}

// decodeBody decodes a JSON request body into v.
func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.ErrBadRequest("invalid JSON: " + err.Error())
	}
	return nil
}

// detached keeps request values but not cancellation: once accepted, a log
// mutation or upload completes even if the client goes away.
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}
