// Package realtime is a client for a Firebase-style realtime database:
// point reads and writes over the JSON REST API, plus a server-sent-events
// subscription stream for change notifications.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wirasena/kommobridge/internal/logging"
)

// APIError is a non-2xx response from the database.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("realtime db error (status %d): %s", e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	DatabaseURL   string        // e.g. https://project-id-default-rtdb.firebaseio.com
	Root          string        // base path all operations resolve under; defaults to "/"
	Token         TokenSource   // nil means unauthenticated (open rules or local mock)
	Timeout       time.Duration // REST call timeout; defaults to 30s
	ReconnectWait time.Duration // initial stream reconnect delay; defaults to 1s
}

// Client talks to one realtime database. All paths are resolved relative to
// the configured root.
type Client struct {
	http          *resty.Client
	stream        *http.Client // no timeout: subscriptions are long-lived
	base          string
	root          string
	token         TokenSource
	reconnectWait time.Duration
	log           *logging.Logger
}

// New creates a realtime database client.
func New(opts Options, log *logging.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.DatabaseURL), "/")
	if base == "" {
		return nil, errors.New("database url is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	wait := opts.ReconnectWait
	if wait <= 0 {
		wait = time.Second
	}

	return &Client{
		http:          resty.New().SetBaseURL(base).SetTimeout(timeout),
		stream:        &http.Client{},
		base:          base,
		root:          normalizePath(opts.Root),
		token:         opts.Token,
		reconnectWait: wait,
		log:           log.Sub("realtime"),
	}, nil
}

// Root returns the base path operations resolve under.
func (c *Client) Root() string {
	return c.root
}

// Read fetches the value at a path. A missing node comes back as nil.
func (c *Client) Read(ctx context.Context, p string) (any, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := req.Get(c.resolve(p) + ".json")
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var out any
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", p, err)
	}
	return out, nil
}

// Write replaces the value at a path.
func (c *Client) Write(ctx context.Context, p string, value any) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	resp, err := req.SetBody(value).Put(c.resolve(p) + ".json")
	if err != nil {
		return fmt.Errorf("writing %s: %w", p, err)
	}
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	c.log.Debug().Str("path", c.resolve(p)).Msg("value written")
	return nil
}

// Push appends a value under a path with a server-generated key and returns
// that key.
func (c *Client) Push(ctx context.Context, p string, value any) (string, error) {
	req, err := c.request(ctx)
	if err != nil {
		return "", err
	}

	var out struct {
		Name string `json:"name"`
	}
	resp, err := req.SetBody(value).SetResult(&out).Post(c.resolve(p) + ".json")
	if err != nil {
		return "", fmt.Errorf("pushing to %s: %w", p, err)
	}
	if resp.IsError() {
		return "", &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	if out.Name == "" {
		return "", fmt.Errorf("push to %s returned no key", p)
	}

	c.log.Debug().Str("path", c.resolve(p)).Str("key", out.Name).Msg("value pushed")
	return out.Name, nil
}

// Delete removes the value at a path. Deleting a missing node is not an
// error.
func (c *Client) Delete(ctx context.Context, p string) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	resp, err := req.Delete(c.resolve(p) + ".json")
	if err != nil {
		return fmt.Errorf("deleting %s: %w", p, err)
	}
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	c.log.Debug().Str("path", c.resolve(p)).Msg("value deleted")
	return nil
}

// TestConnection verifies the database is reachable by reading the root.
func (c *Client) TestConnection(ctx context.Context) error {
	if _, err := c.Read(ctx, "/"); err != nil {
		return err
	}
	c.log.Info().Str("url", c.base).Str("root", c.root).Msg("realtime db connection ok")
	return nil
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	req := c.http.R().SetContext(ctx)
	if c.token != nil {
		tok, err := c.token.Token(ctx)
		if err != nil {
			return nil, err
		}
		if tok != "" {
			req.SetQueryParam("access_token", tok)
		}
	}
	return req, nil
}

// resolve joins a path with the root. The result starts with "/" and has no
// trailing slash.
func (c *Client) resolve(p string) string {
	return path.Join(c.root, strings.Trim(p, "/"))
}

func normalizePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
