// Package restclient is the HTTP transport shared by the domain adapters.
// It handles Bearer token authentication, JSON (de)serialization and
// retry with backoff on HTTP 429.
package restclient

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/source"
)

// Client is a thin JSON client for one domain API.
type Client struct {
	src     model.Source
	baseURL string
	http    *resty.Client
}

// Option customizes a Client.
type Option func(*resty.Client)

// WithTimeout overrides the default 30s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithMaxRetries overrides the default of 3 retries on 429.
func WithMaxRetries(n int) Option {
	return func(c *resty.Client) { c.SetRetryCount(n) }
}

// WithRetryWait overrides the 1s..30s backoff window between retries.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *resty.Client) {
		c.SetRetryWaitTime(minWait)
		c.SetRetryMaxWaitTime(maxWait)
	}
}

// New creates a client for src rooted at baseURL. The token is sent as a
// Bearer credential when non-empty.
func New(src model.Source, baseURL, token string, opts ...Option) *Client {
	baseURL = strings.TrimRight(baseURL, "/")

	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetRetryCount(3).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(30 * time.Second).
		SetRetryAfter(retryAfterDuration).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r.StatusCode() == http.StatusTooManyRequests
		})

	if token != "" {
		rc.SetAuthToken(token)
	}

	for _, opt := range opts {
		opt(rc)
	}

	return &Client{src: src, baseURL: baseURL, http: rc}
}

// Get performs an HTTP GET request with query parameters and decodes the
// JSON response into result.
func (c *Client) Get(
	ctx context.Context,
	path string,
	query map[string]string,
	result interface{},
) error {
	req := c.http.R().SetContext(ctx).SetQueryParams(query)
	return c.do(req, http.MethodGet, path, result)
}

// Post performs an HTTP POST request with a JSON body.
func (c *Client) Post(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
) error {
	req := c.http.R().SetContext(ctx).SetBody(body)
	return c.do(req, http.MethodPost, path, result)
}

// Delete performs an HTTP DELETE request, with a JSON body when body is
// non-nil.
func (c *Client) Delete(
	ctx context.Context,
	path string,
	body interface{},
) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	return c.do(req, http.MethodDelete, path, nil)
}

// do executes the request and maps the response onto the source error
// taxonomy.
func (c *Client) do(
	req *resty.Request,
	method string,
	path string,
	result interface{},
) error {
	if result != nil {
		req.SetResult(result).ForceContentType("application/json")
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return source.ClassifyError(
			c.src, fmt.Errorf("executing request %s %s: %w", method, path, err),
		)
	}

	code := resp.StatusCode()
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &source.AuthError{
			Source: c.src,
			Message: fmt.Sprintf(
				"authentication failed (%d): check the API token for %s",
				code, c.baseURL,
			),
		}

	case code == http.StatusTooManyRequests:
		return source.ClassifyError(c.src, fmt.Errorf(
			"max retries exceeded: rate limited (429) on %s %s", method, path,
		))

	case code < 200 || code >= 300:
		return source.ClassifyError(c.src, &source.StatusError{
			Source: c.src,
			Code:   code,
			Method: method,
			Path:   path,
			Body:   strings.TrimSpace(resp.String()),
		})
	}

	return nil
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Returning zero lets resty fall back to exponential backoff.
func retryAfterDuration(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
	if resp == nil {
		return 0, nil
	}
	if header := resp.Header().Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second, nil
		}
	}
	return 0, nil
}
