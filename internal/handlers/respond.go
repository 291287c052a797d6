package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/edgetensor/fleetdash/internal/types"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api.encode_failed",
			"component", "api",
			"event", "response.encode_error",
			"error", err,
		)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, types.ErrorResponse{Error: code, Message: message})
}
