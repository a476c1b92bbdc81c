package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ahrav/go-essaygrade/internal/domain"
	"github.com/ahrav/go-essaygrade/internal/store"
	"github.com/ahrav/go-essaygrade/internal/workflow"
)

type errResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}

// decodeJSON reads a single JSON object into v and validates it.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", domain.ErrInvalidRequest)
		}
		return fmt.Errorf("%w: bad json: %w", domain.ErrInvalidRequest, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	return nil
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidConfig),
		errors.Is(err, domain.ErrUnknownRubric),
		errors.Is(err, domain.ErrUnknownScale),
		errors.Is(err, domain.ErrUnknownCriterion),
		errors.Is(err, domain.ErrInvalidWeights),
		errors.Is(err, domain.ErrEmptyBatch):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, workflow.ErrBatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Server errors are logged and
// their details withheld from the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeErr(w, status, http.StatusText(status))
		return
	}
	writeErr(w, status, err.Error())
}

func unavailable(w http.ResponseWriter, what string) {
	writeErr(w, http.StatusServiceUnavailable, what+" is not configured")
}
