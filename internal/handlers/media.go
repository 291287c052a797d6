package handlers

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/edgetensor/fleetdash/internal/media"
	"github.com/edgetensor/fleetdash/internal/types"
	"github.com/gorilla/mux"
)

// SignedURLHandler handles GET /dashcamAlertFiles/getSignedUrl?filePath=.
func SignedURLHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := r.URL.Query().Get("filePath")
		if filePath == "" {
			writeError(w, http.StatusBadRequest, "missing_parameter", "filePath is required")
			return
		}

		signed, err := deps.Signer.Sign(filePath)
		if err != nil {
			slog.Error("api.signed_url.sign_failed",
				"component", "api",
				"event", "signed_url.error",
				"error", err,
			)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to sign url")
			return
		}
		writeJSON(w, http.StatusOK, types.SignedURLResponse{SignedURL: signed})
	}
}

// MediaHandler handles GET /media/{path}?token=, serving a stored file when
// the token was issued for exactly that path and has not expired.
func MediaHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := mux.Vars(r)["path"]

		if err := deps.Signer.Verify(r.URL.Query().Get("token"), filePath); err != nil {
			slog.Warn("media.token_rejected",
				"component", "media",
				"event", "token.rejected",
				"path", filePath,
				"error", err,
			)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		err := deps.Storage.ServeFile(w, r, filePath)
		switch {
		case err == nil:
		case errors.Is(err, media.ErrBadPath):
			http.Error(w, "Bad request", http.StatusBadRequest)
		case errors.Is(err, fs.ErrNotExist):
			http.NotFound(w, r)
		default:
			slog.Error("media.serve_failed",
				"component", "media",
				"event", "serve.error",
				"path", filePath,
				"error", err,
			)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}
}
