package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ayusman/airchord/internal/recording"
	"github.com/ayusman/airchord/internal/store"
)

// RecordingHandler controls recording and serves the artifact download.
type RecordingHandler struct {
	session Session
	logger  *zap.Logger
}

// NewRecordingHandler creates a RecordingHandler.
func NewRecordingHandler(s Session, logger *zap.Logger) *RecordingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordingHandler{session: s, logger: logger}
}

type recordingResponse struct {
	Status string `json:"status"`
}

// Start handles POST /api/recording/start.
func (h *RecordingHandler) Start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.session.StartRecording(); err != nil {
		h.logger.Warn("start recording", zap.Error(err))
		writeError(w, recordingStatusCode(err), err)
		return
	}
	writeJSON(w, http.StatusOK, recordingResponse{Status: h.session.Status().Recording})
}

// Stop handles POST /api/recording/stop.
func (h *RecordingHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.session.StopRecording(); err != nil {
		h.logger.Warn("stop recording", zap.Error(err))
		writeError(w, recordingStatusCode(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, recordingResponse{Status: h.session.Status().Recording})
}

// Artifact handles GET /api/recording/artifact. The recording is sent as an
// attachment named after its creation time.
func (h *RecordingHandler) Artifact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	a, err := h.session.Artifact()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "No recording available yet."})
			return
		}
		h.logger.Error("load artifact", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", a.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", recording.Filename(a.CreatedAt, a.MimeType)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		w.Write(a.Data)
	}
}

func recordingStatusCode(err error) int {
	switch {
	case errors.Is(err, recording.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, recording.ErrAlreadyRecording),
		errors.Is(err, recording.ErrNotRecording),
		errors.Is(err, recording.ErrNoSource):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
