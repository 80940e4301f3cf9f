package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/itellico/mono/internal/auth"
	"github.com/itellico/mono/internal/category"
	"github.com/itellico/mono/internal/media"
	"github.com/itellico/mono/internal/settings"
	"github.com/itellico/mono/internal/subscription"
	"github.com/itellico/mono/internal/tag"
	"github.com/itellico/mono/internal/tenant"
	"github.com/itellico/mono/internal/version"
)

// envelope is the response shape every endpoint returns.
type envelope struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data, Timestamp: time.Now().UTC()})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: false, Error: msg, Timestamp: time.Now().UTC()})
}

// writeServiceError maps domain sentinels to status codes. Anything
// unrecognized is a 500 with a generic message; the detail goes to the log,
// never to the client.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tenant.ErrNotFound),
		errors.Is(err, category.ErrNotFound),
		errors.Is(err, tag.ErrNotFound),
		errors.Is(err, media.ErrNotFound),
		errors.Is(err, settings.ErrNotFound),
		errors.Is(err, subscription.ErrNotFound),
		errors.Is(err, version.ErrNotFound),
		errors.Is(err, auth.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, category.ErrHasChildren):
		writeError(w, http.StatusConflict, "category has children")
	case errors.Is(err, category.ErrSlugTaken),
		errors.Is(err, tag.ErrSlugTaken):
		writeError(w, http.StatusConflict, "slug already in use")
	case errors.Is(err, category.ErrInvalidSlug):
		writeError(w, http.StatusBadRequest, "slug has no usable characters")
	case errors.Is(err, settings.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, "value does not match the declared type")
	case errors.Is(err, settings.ErrForbidden):
		writeError(w, http.StatusForbidden, "global settings require super admin")
	case errors.Is(err, media.ErrTooLarge):
		writeError(w, http.StatusBadRequest, "file exceeds the upload size limit")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
