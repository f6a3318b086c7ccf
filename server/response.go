package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hupe1980/pointcount"
)

type envelope map[string]any

func ok(fields envelope) envelope {
	if fields == nil {
		fields = envelope{}
	}
	fields["message"] = "OK"
	return fields
}

func message(msg string) envelope {
	return envelope{"message": msg}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps the error taxonomy of package pointcount onto HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pointcount.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, pointcount.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pointcount.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, pointcount.ErrAborted),
		errors.Is(err, pointcount.ErrClosed),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// statusClientClosedRequest is the de facto code for requests the client
// abandoned.
const statusClientClosedRequest = 499

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)

	msg := err.Error()
	switch code {
	case http.StatusInternalServerError:
		s.opts.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		msg = "Internal server error"
	case http.StatusServiceUnavailable:
		msg = "Service unavailable: " + err.Error()
	}
	writeJSON(w, code, message(msg))
}
