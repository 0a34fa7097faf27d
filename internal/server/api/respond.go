// Package api provides HTTP API handlers for the airchord session.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/airchord/internal/app"
	"github.com/ayusman/airchord/internal/recording"
)

// Session is the part of the running session the API drives.
type Session interface {
	Status() app.Status
	EnableAudio() error
	StartRecording() error
	StopRecording() error
	Artifact() (*recording.Artifact, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response carrying the user-facing message
// for err.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: app.StatusMessage(err)})
}
