package store

import (
	"context"
	"time"

	"github.com/nhle/notifeed/internal/model"
)

// Journal persists the saga steps of read-state mutations so failed
// backend calls can be listed and retried narrowly.
type Journal interface {
	// Begin records a pending step and returns its id.
	Begin(ctx context.Context, step model.Step) (string, error)

	// Finish records the outcome of a step. A nil stepErr means success.
	Finish(ctx context.Context, id string, stepErr error) error

	// ListFailed returns failed steps that have not been retried, oldest
	// first.
	ListFailed(ctx context.Context) ([]model.JournalEntry, error)

	// MarkRetried flags a failed step as superseded by a retry.
	MarkRetried(ctx context.Context, id string) error

	// Prune deletes settled steps created before cutoff.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}
