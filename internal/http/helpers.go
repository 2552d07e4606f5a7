package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/garyjeong/household-ledger-server/internal/core"
	"github.com/garyjeong/household-ledger-server/internal/services"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

// maxBodyBytes caps request bodies. Payloads here are small JSON
// documents, so 1 MiB is generous.
const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encoding failed", "error", err)
	}
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= 500 {
		slog.ErrorContext(r.Context(), "request failed",
			"error", err, "method", r.Method, "path", r.URL.Path)
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		// Internal details stay in the logs.
		msg = "internal error"
	}
	respondJSON(w, status, errorBody{Error: msg})
}

// errorStatus maps domain errors onto HTTP status codes. Anything
// unrecognized is a 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, storage.ErrCursorConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrNotDue):
		return http.StatusConflict
	case errors.Is(err, services.ErrAlreadyInGroup),
		errors.Is(err, services.ErrNotInGroup),
		errors.Is(err, services.ErrInviteExpired):
		return http.StatusConflict
	case errors.Is(err, services.ErrWeakPassword),
		errors.Is(err, services.ErrUnknownPeriod),
		errors.Is(err, errBadRequest),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidInterval),
		errors.Is(err, core.ErrInvalidUnit),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrEmptyEmail),
		errors.Is(err, core.ErrMissingCategory),
		errors.Is(err, core.ErrEndBeforeStart),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, core.ErrInvalidOwnerType):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// errBadRequest marks malformed client input that has no dedicated
// domain error.
var errBadRequest = errors.New("bad request")

func badRequest(msg string) error {
	return fmt.Errorf("%w: %s", errBadRequest, msg)
}

// decodeJSON reads the request body into dst, rejecting unknown fields
// and oversized payloads.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

// pathID extracts and parses the named integer path segment.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid " + name + " path parameter")
	}
	return id, nil
}

// queryInt parses an optional integer query parameter, falling back to
// def when absent or unparseable.
func queryInt(r *http.Request, name string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// queryDate parses an optional YYYY-MM-DD query parameter. A zero Date
// is returned when the parameter is absent.
func queryDate(r *http.Request, name string) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, badRequest(name + " must be formatted as YYYY-MM-DD")
	}
	return d, nil
}
