// Package respond writes JSON responses and maps application errors to HTTP.
package respond

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "github.com/ealmetes/HealthExtent/internal/shared/errors"
	"github.com/rs/zerolog"
)

// JSON writes data with the given status
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error maps err to its HTTP status. Anything that is not an AppError is
// logged and reported as a 500.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			zerolog.Ctx(r.Context()).Error().Err(appErr.Err).Str("path", r.URL.Path).Msg(appErr.Message)
		}
		body := map[string]any{
			"error": appErr.Message,
			"code":  appErr.Code,
		}
		if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
		if len(appErr.Fields) > 0 {
			body["errors"] = appErr.Fields
		}
		JSON(w, appErr.HTTPStatus, body)
		return
	}

	zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
	JSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// Decode reads a JSON request body into dst
func Decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.BadRequest("invalid request body")
	}
	return nil
}

// QueryInt reads an integer query parameter, returning def when absent or malformed
func QueryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// PathInt64 parses an integer route parameter
func PathInt64(value, name string) (int64, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, apperrors.BadRequest("invalid " + name)
	}
	return n, nil
}

// Result is the envelope returned by upsert and write endpoints
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Failure writes the 400 envelope used when a stored procedure rejects a write
func Failure(w http.ResponseWriter, detail string) {
	JSON(w, http.StatusBadRequest, Result{Success: false, Message: "Error: " + detail})
}
