package forum

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/source/restclient"
)

const (
	listPath     = "/api/forum/notifications"
	markReadPath = "/api/forum/notifications/read"
)

// Client wraps the Forum notification API endpoints.
type Client struct {
	rest *restclient.Client
}

// NewClient creates a Forum API client rooted at baseURL.
func NewClient(baseURL, token string, opts ...restclient.Option) *Client {
	return &Client{
		rest: restclient.New(model.SourceForum, baseURL, token, opts...),
	}
}

// List fetches one page of notifications, optionally unread only.
func (c *Client) List(
	ctx context.Context,
	page, limit int,
	unreadOnly bool,
) (*ListResponse, error) {
	var resp ListResponse
	err := c.rest.Get(ctx, listPath, map[string]string{
		"page":        strconv.Itoa(page),
		"limit":       strconv.Itoa(limit),
		"unread_only": strconv.FormatBool(unreadOnly),
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("listing forum notifications: %w", err)
	}
	return &resp, nil
}

// MarkRead flags the given ids as read.
func (c *Client) MarkRead(ctx context.Context, ids []string) error {
	err := c.rest.Post(ctx, markReadPath, MarkReadRequest{IDs: ids}, nil)
	if err != nil {
		return fmt.Errorf("marking %d forum notifications read: %w", len(ids), err)
	}
	return nil
}

// MarkAllRead flags every forum notification of the user as read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	err := c.rest.Post(ctx, markReadPath, MarkReadRequest{IDs: markAll}, nil)
	if err != nil {
		return fmt.Errorf("marking all forum notifications read: %w", err)
	}
	return nil
}

// DeleteOne removes a single notification. The API has no batch delete.
func (c *Client) DeleteOne(ctx context.Context, id string) error {
	path := listPath + "/" + url.PathEscape(id)
	if err := c.rest.Delete(ctx, path, nil); err != nil {
		return fmt.Errorf("deleting forum notification %s: %w", id, err)
	}
	return nil
}
