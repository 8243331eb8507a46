package system

import (
	"context"
	"slices"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/source"
)

// Adapter implements source.Source, source.IDMarker and
// source.BatchDeleter for the System/job domain.
type Adapter struct {
	client *Client
	log    zerolog.Logger
	now    func() time.Time
}

// NewAdapter creates a System source adapter.
func NewAdapter(client *Client, logger zerolog.Logger) *Adapter {
	return &Adapter{
		client: client,
		log:    logger.With().Str("source", string(model.SourceSystem)).Logger(),
		now:    time.Now,
	}
}

// SetClock replaces the clock used for push events without a timestamp.
func (a *Adapter) SetClock(now func() time.Time) {
	a.now = now
}

// Source returns model.SourceSystem.
func (a *Adapter) Source() model.Source {
	return model.SourceSystem
}

// FetchPage retrieves a page of system notifications. The System API has
// no unread filter, so UnreadOnly is applied to the returned page.
func (a *Adapter) FetchPage(ctx context.Context, opts source.FetchOptions) source.FetchResult {
	opts = opts.Normalize()

	resp, err := a.client.List(ctx, opts.Page, opts.Limit)
	if err != nil {
		err = source.ClassifyError(model.SourceSystem, err)
		a.log.Warn().Err(err).Int("page", opts.Page).Msg("system fetch degraded")
		return source.Degrade(err)
	}

	items := make([]model.Notification, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.ID == "" {
			continue
		}
		n := a.itemToNotification(it)
		if opts.UnreadOnly && n.IsRead {
			continue
		}
		items = append(items, n)
	}
	slices.SortStableFunc(items, model.Compare)

	return source.FetchResult{Items: items}
}

// TranslatePush converts a system push payload. A payload needs an id and
// a title or message to qualify.
func (a *Adapter) TranslatePush(payload []byte) (model.Notification, bool) {
	var it Item
	if err := json.Unmarshal(payload, &it); err != nil {
		return model.Notification{}, false
	}
	if it.ID == "" || (it.Message == "" && it.Title == "") {
		return model.Notification{}, false
	}

	n := a.itemToNotification(it)
	n.IsRead = false
	if n.CreatedAt.IsZero() {
		n.CreatedAt = a.now().UTC()
	}
	return n, true
}

// MarkRead flags ids as read on the backend.
func (a *Adapter) MarkRead(ctx context.Context, ids []string) error {
	return source.ClassifyError(model.SourceSystem, a.client.MarkRead(ctx, ids))
}

// Delete removes ids on the backend.
func (a *Adapter) Delete(ctx context.Context, ids []string) error {
	return source.ClassifyError(model.SourceSystem, a.client.Delete(ctx, ids))
}

// itemToNotification converts a wire Item to a model.Notification.
func (a *Adapter) itemToNotification(it Item) model.Notification {
	return model.Notification{
		ID:        it.ID.String(),
		Source:    model.SourceSystem,
		Type:      it.Type,
		Title:     it.Title,
		Message:   it.Message,
		ActionURL: it.ActionURL,
		IsRead:    it.IsRead,
		CreatedAt: it.CreatedAt.Time(),
		Category:  it.Category,
		Priority:  it.Priority,
	}
}
