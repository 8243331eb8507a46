package readstate

import (
	"context"

	"github.com/nhle/notifeed/internal/model"
)

// Journal records each backend call as a saga step. Journal errors are
// logged and never fail the mutation itself.
type Journal interface {
	Begin(ctx context.Context, step model.Step) (string, error)
	Finish(ctx context.Context, id string, stepErr error) error
}

// nopJournal is used when no journal is configured.
type nopJournal struct{}

func (nopJournal) Begin(context.Context, model.Step) (string, error) { return "", nil }
func (nopJournal) Finish(context.Context, string, error) error      { return nil }
