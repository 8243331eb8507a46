package forum

import (
	"context"
	"slices"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/source"
)

// Adapter implements source.Source, source.IDMarker, source.BulkMarker
// and source.SingleDeleter for the Forum domain.
type Adapter struct {
	client *Client
	log    zerolog.Logger
	now    func() time.Time
}

// NewAdapter creates a Forum source adapter.
func NewAdapter(client *Client, logger zerolog.Logger) *Adapter {
	return &Adapter{
		client: client,
		log:    logger.With().Str("source", string(model.SourceForum)).Logger(),
		now:    time.Now,
	}
}

// SetClock replaces the clock used for push events without a timestamp.
func (a *Adapter) SetClock(now func() time.Time) {
	a.now = now
}

// Source returns model.SourceForum.
func (a *Adapter) Source() model.Source {
	return model.SourceForum
}

// FetchPage retrieves a page of forum notifications.
func (a *Adapter) FetchPage(ctx context.Context, opts source.FetchOptions) source.FetchResult {
	opts = opts.Normalize()

	resp, err := a.client.List(ctx, opts.Page, opts.Limit, opts.UnreadOnly)
	if err != nil {
		err = source.ClassifyError(model.SourceForum, err)
		a.log.Warn().Err(err).Int("page", opts.Page).Msg("forum fetch degraded")
		return source.Degrade(err)
	}

	items := make([]model.Notification, 0, len(resp.Data))
	for _, it := range resp.Data {
		if it.ID == "" {
			continue
		}
		items = append(items, itemToNotification(it))
	}
	slices.SortStableFunc(items, model.Compare)

	return source.FetchResult{Items: items}
}

// TranslatePush converts a forum push payload. A payload needs an id, a
// sender and a discussion reference to qualify.
func (a *Adapter) TranslatePush(payload []byte) (model.Notification, bool) {
	var it Item
	if err := json.Unmarshal(payload, &it); err != nil {
		return model.Notification{}, false
	}
	if it.ID == "" || it.Sender == nil || it.Discussion == nil {
		return model.Notification{}, false
	}

	n := itemToNotification(it)
	n.IsRead = false
	if n.CreatedAt.IsZero() {
		n.CreatedAt = a.now().UTC()
	}
	return n, true
}

// MarkRead flags ids as read on the backend.
func (a *Adapter) MarkRead(ctx context.Context, ids []string) error {
	return source.ClassifyError(model.SourceForum, a.client.MarkRead(ctx, ids))
}

// MarkAllRead flags every forum notification as read on the backend.
func (a *Adapter) MarkAllRead(ctx context.Context) error {
	return source.ClassifyError(model.SourceForum, a.client.MarkAllRead(ctx))
}

// DeleteOne removes a single notification on the backend.
func (a *Adapter) DeleteOne(ctx context.Context, id string) error {
	return source.ClassifyError(model.SourceForum, a.client.DeleteOne(ctx, id))
}

// itemToNotification converts a wire Item to a model.Notification.
func itemToNotification(it Item) model.Notification {
	n := model.Notification{
		ID:        it.ID.String(),
		Source:    model.SourceForum,
		Type:      it.Type,
		Message:   it.Message,
		IsRead:    it.IsRead,
		CreatedAt: it.CreatedAt.Time(),
	}
	if it.Sender != nil {
		n.Sender = &model.Sender{
			FirstName: it.Sender.FirstName,
			LastName:  it.Sender.LastName,
			AvatarURL: it.Sender.AvatarURL,
		}
	}
	if it.Discussion != nil {
		n.Discussion = &model.DiscussionRef{
			ID:    it.Discussion.ID.String(),
			Title: it.Discussion.Title,
		}
	}
	return n
}
