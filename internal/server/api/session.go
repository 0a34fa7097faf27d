package api

import (
	"net/http"

	"go.uber.org/zap"
)

// SessionHandler serves the session status and the audio gate.
type SessionHandler struct {
	session Session
	logger  *zap.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(s Session, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{session: s, logger: logger}
}

// Status handles GET /api/status.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Status())
}

// EnableAudio handles POST /api/audio/enable.
func (h *SessionHandler) EnableAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.session.EnableAudio(); err != nil {
		h.logger.Warn("enable audio", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Status())
}
