// Package handler holds the JSON HTTP handlers for the staff and public surfaces.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/submitlink/internal/apperr"
	"github.com/dukerupert/submitlink/internal/middleware"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders domain errors with their own status. Anything else is
// logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if e, ok := apperr.As(err); ok {
		apperr.Write(w, e)
		return
	}
	logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.RequestIDFrom(r.Context()),
		"error", err,
	)
	apperr.Write(w, &apperr.Error{
		Code:    apperr.CodeInternal,
		Message: "internal error",
		Status:  http.StatusInternalServerError,
	})
}

func invalidRequest(msg string) *apperr.Error {
	return apperr.Validation(apperr.CodeInvalidRequest, msg)
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return invalidRequest("invalid JSON")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidRequest("invalid " + name)
	}
	return id, nil
}
