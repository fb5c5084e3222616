package api

import (
	"net/http"
)

type uploadRequest struct {
	Endpoint string `json:"endpoint"`
}

// upload relays the log to the requested endpoint. Relay failures, an empty
// or malformed endpoint included, are part of the result body, not HTTP
// errors.
func (h *Handlers) upload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Upload(detached(r), req.Endpoint))
}

func (h *Handlers) uploadSlack(w http.ResponseWriter, r *http.Request) {
	res, appErr := h.ctrl.UploadSlack(detached(r))
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
