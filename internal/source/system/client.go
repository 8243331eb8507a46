package system

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/source/restclient"
)

const (
	listPath     = "/api/notifications"
	markReadPath = "/api/notifications/read"
	deletePath   = "/api/notifications"
)

// Client wraps the System notification API endpoints.
type Client struct {
	rest *restclient.Client
}

// NewClient creates a System API client rooted at baseURL.
func NewClient(baseURL, token string, opts ...restclient.Option) *Client {
	return &Client{
		rest: restclient.New(model.SourceSystem, baseURL, token, opts...),
	}
}

// List fetches one page of notifications.
func (c *Client) List(ctx context.Context, page, limit int) (*ListResponse, error) {
	var resp ListResponse
	err := c.rest.Get(ctx, listPath, map[string]string{
		"page":  strconv.Itoa(page),
		"limit": strconv.Itoa(limit),
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("listing system notifications: %w", err)
	}
	return &resp, nil
}

// MarkRead flags the given ids as read. The API has no bulk-all variant.
func (c *Client) MarkRead(ctx context.Context, ids []string) error {
	err := c.rest.Post(ctx, markReadPath, MarkReadRequest{IDs: ids, IsRead: true}, nil)
	if err != nil {
		return fmt.Errorf("marking %d system notifications read: %w", len(ids), err)
	}
	return nil
}

// Delete removes the given ids.
func (c *Client) Delete(ctx context.Context, ids []string) error {
	if err := c.rest.Delete(ctx, deletePath, DeleteRequest{IDs: ids}); err != nil {
		return fmt.Errorf("deleting %d system notifications: %w", len(ids), err)
	}
	return nil
}
