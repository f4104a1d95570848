package mws

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mongodb-labs/mongo-web-shell-sub000/shared"
)

// Error is a failure reported to the client as a JSON error body.
type Error struct {
	Status int
	Reason string
	Detail string
	Err    error
}

func NewError(status int, reason string) *Error {
	return &Error{Status: status, Reason: reason}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Reason, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func badRequest(reason string, err error) *Error {
	return &Error{Status: http.StatusBadRequest, Reason: reason, Err: err}
}

// asError maps any handler failure to a client error. Unexpected failures
// become 500s whose detail carries the cause only in debug mode.
func asError(err error, debug bool) *Error {
	var mwsErr *Error
	if errors.As(err, &mwsErr) {
		if debug && mwsErr.Detail == "" && mwsErr.Err != nil {
			return &Error{Status: mwsErr.Status, Reason: mwsErr.Reason, Detail: mwsErr.Err.Error(), Err: mwsErr.Err}
		}
		return mwsErr
	}
	out := &Error{Status: http.StatusInternalServerError, Reason: "Internal server error", Err: err}
	if debug {
		out.Detail = err.Error()
	}
	return out
}

func writeError(w http.ResponseWriter, r *http.Request, e *Error) {
	body, err := shared.ErrorBody{Error: e.Status, Reason: e.Reason, Detail: e.Detail}.Marshal()
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to encode error body", slog.Any("error", err))
		http.Error(w, e.Reason, e.Status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_, _ = w.Write(body)
}
