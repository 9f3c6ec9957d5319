package controllers

import (
	"net/http"

	json "github.com/goccy/go-json"

	"hed/internal/models"
)

// ManifestReader is the read side of the export manifest ledger.
type ManifestReader interface {
	Get(date string) (*models.ExportManifest, bool)
	Latest() (*models.ExportManifest, bool)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, gson)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
