package source

import (
	"context"

	"github.com/nhle/notifeed/internal/model"
)

// FetchOptions controls pagination for list operations. Page is 1-based.
type FetchOptions struct {
	Page       int
	Limit      int
	UnreadOnly bool
}

// Normalize fills in defaults for missing page or limit values.
func (o FetchOptions) Normalize() FetchOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = 20
	}
	return o
}

// FetchResult holds one page from a source. A failed fetch is degraded,
// not fatal: Items is empty (never nil) and Err says why.
type FetchResult struct {
	Items    []model.Notification
	Degraded bool
	Err      error
}

// Degrade builds the result of a failed fetch.
func Degrade(err error) FetchResult {
	return FetchResult{
		Items:    []model.Notification{},
		Degraded: true,
		Err:      err,
	}
}

// Source defines the contract that every backend domain adapter implements.
type Source interface {
	// Source returns the domain this adapter translates.
	Source() model.Source

	// FetchPage retrieves a page of notifications sorted with model.Before.
	// It never returns an error directly; failures are reported through
	// FetchResult.Degraded.
	FetchPage(ctx context.Context, opts FetchOptions) FetchResult

	// TranslatePush converts a push payload into a notification. It
	// returns false when the payload does not have this domain's shape.
	TranslatePush(payload []byte) (model.Notification, bool)
}

// The mark-read and delete primitives differ per domain, so each one is
// its own capability. The coordinator type-asserts for what it needs.

// IDMarker marks specific notifications as read.
type IDMarker interface {
	MarkRead(ctx context.Context, ids []string) error
}

// BulkMarker marks every notification in the domain as read.
type BulkMarker interface {
	MarkAllRead(ctx context.Context) error
}

// BatchDeleter deletes several notifications in one call.
type BatchDeleter interface {
	Delete(ctx context.Context, ids []string) error
}

// SingleDeleter deletes one notification per call.
type SingleDeleter interface {
	DeleteOne(ctx context.Context, id string) error
}
