package source

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nhle/notifeed/internal/model"
)

// AuthError indicates that authentication has failed or expired for a source.
// It is returned by source clients when a 401 or 403 response is received.
type AuthError struct {
	Source  model.Source
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Source, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// UnavailableError means the source could not be reached: a transport
// failure, a timeout or a 5xx response.
type UnavailableError struct {
	Source model.Source
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err (or any error in its chain) is an
// UnavailableError.
func IsUnavailable(err error) bool {
	var u *UnavailableError
	return errors.As(err, &u)
}

// StatusError is a non-2xx response that is neither an auth failure nor
// a server error.
type StatusError struct {
	Source model.Source
	Code   int
	Method string
	Path   string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf(
		"%s API error (%d) on %s %s: %s",
		e.Source, e.Code, e.Method, e.Path, e.Body,
	)
}

// ClassifyError maps a raw client error onto the source error taxonomy.
// Timeouts, transport errors and 5xx become UnavailableError.
func ClassifyError(src model.Source, err error) error {
	if err == nil {
		return nil
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return err
	}

	var unavailable *UnavailableError
	if errors.As(err, &unavailable) {
		return err
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Code >= http.StatusInternalServerError {
			return &UnavailableError{Source: src, Err: err}
		}
		return err
	}

	// Deadline, cancellation and dial errors all land here.
	return &UnavailableError{Source: src, Err: err}
}
