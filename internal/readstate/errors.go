package readstate

import (
	"errors"
	"fmt"

	"github.com/nhle/notifeed/internal/model"
)

// ErrUnsupported is returned when a source lacks the primitive an
// operation needs.
var ErrUnsupported = errors.New("operation not supported by source")

// ErrUnknownSource is returned for keys whose source has no adapter.
var ErrUnknownSource = errors.New("no adapter registered for source")

// MarkReadFailedError reports a rejected mark-read call. Keys lists the
// entries whose optimistic flip was rolled back.
type MarkReadFailedError struct {
	Source model.Source
	Keys   []model.Key
	Err    error
}

func (e *MarkReadFailedError) Error() string {
	return fmt.Sprintf(
		"mark read failed for %s (%d rolled back): %v",
		e.Source, len(e.Keys), e.Err,
	)
}

func (e *MarkReadFailedError) Unwrap() error { return e.Err }

// DeleteFailedError reports a rejected delete. The local removal stands;
// the entry may come back with the next refresh.
type DeleteFailedError struct {
	Key model.Key
	Err error
}

func (e *DeleteFailedError) Error() string {
	return fmt.Sprintf("delete %s failed: %v", e.Key, e.Err)
}

func (e *DeleteFailedError) Unwrap() error { return e.Err }
