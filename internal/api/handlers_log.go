package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/micro-nova/devlog-go/internal/logwriter"
	"github.com/micro-nova/devlog-go/internal/models"
)

// appendRequest is the body of POST /api/log. Without a level the message is
// written verbatim; with one it is formatted with a timestamp and level tag.
type appendRequest struct {
	Message string `json:"message"`
	Level   string `json:"level,omitempty"`
	Args    []any  `json:"args,omitempty"`
}

func (h *Handlers) appendLog(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var (
		ok  bool
		err error
	)
	if req.Level == "" {
		ok, err = h.ctrl.WriteLog(detached(r), req.Message)
	} else {
		level, perr := logwriter.ParseLevel(req.Level)
		if perr != nil {
			writeError(w, models.ErrBadRequest(perr.Error()))
			return
		}
		ok, err = h.ctrl.Log(detached(r), level, req.Message, req.Args...)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

// getLog streams the current log file.
func (h *Handlers) getLog(w http.ResponseWriter, r *http.Request) {
	exists, err := h.ctrl.FileExists(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if !exists {
		writeError(w, models.ErrNotFound("log file does not exist"))
		return
	}

	// Appends may land while the file is served; the reader sees a prefix.
	f, err := os.Open(h.ctrl.LogPath())
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, models.ErrNotFound("log file does not exist"))
			return
		}
		writeError(w, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	http.ServeContent(w, r, filepath.Base(f.Name()), info.ModTime(), f)
}

func (h *Handlers) deleteLog(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.ctrl.DeleteLogFile(detached(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Handlers) logExists(w http.ResponseWriter, r *http.Request) {
	exists, err := h.ctrl.FileExists(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

func (h *Handlers) logPath(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"path": h.ctrl.LogPath()})
}
