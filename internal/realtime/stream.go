package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Change types delivered on a subscription.
const (
	EventPut   = "put"
	EventPatch = "patch"
)

// Event is one change notification. Path is relative to the subscribed
// location.
type Event struct {
	Type string
	Path string
	Data any
}

const (
	maxStreamBackoff = 30 * time.Second
	// Initial put frames can carry the whole subtree.
	maxFrameSize = 1 << 20
)

var errAuthRevoked = errors.New("stream credential revoked")

// Subscribe opens a change stream at a path under the root and returns a
// bounded event channel. The initial connection failure is returned
// synchronously; later drops (including revoked credentials) reconnect with
// backoff until ctx is canceled, at which point the channel is closed.
// Sends block when the channel is full, stalling the reader.
func (c *Client) Subscribe(ctx context.Context, p string, buffer int) (<-chan Event, error) {
	if buffer <= 0 {
		buffer = 64
	}

	resp, err := c.connect(ctx, p)
	if err != nil {
		return nil, err
	}
	c.log.Info().Str("path", c.resolve(p)).Msg("subscribed to changes")

	events := make(chan Event, buffer)
	go c.consumeLoop(ctx, p, resp, events)
	return events, nil
}

func (c *Client) connect(ctx context.Context, p string) (*http.Response, error) {
	target := c.base + c.resolve(p) + ".json"
	if c.token != nil {
		tok, err := c.token.Token(ctx)
		if err != nil {
			return nil, err
		}
		if tok != "" {
			target += "?access_token=" + url.QueryEscape(tok)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

// consumeLoop reads the stream until it breaks, then reconnects with
// exponential backoff. It owns the events channel.
func (c *Client) consumeLoop(ctx context.Context, p string, resp *http.Response, events chan<- Event) {
	defer close(events)

	backoff := c.reconnectWait
	for {
		err := c.readStream(ctx, resp.Body, events)
		resp.Body.Close()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.log.Warn().Err(err).Str("path", p).Msg("stream interrupted")
		} else {
			c.log.Warn().Str("path", p).Msg("stream closed by server")
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}

			next, err := c.connect(ctx, p)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				backoff = min(backoff*2, maxStreamBackoff)
				c.log.Warn().Err(err).Dur("next_retry", backoff).Msg("stream reconnect failed")
				continue
			}

			c.log.Info().Str("path", p).Msg("stream reconnected")
			resp = next
			backoff = c.reconnectWait
			break
		}
	}
}

// readStream parses SSE frames until the connection drops or an event forces
// a reconnect.
func (c *Client) readStream(ctx context.Context, body io.Reader, events chan<- Event) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	var eventType, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "":
			if err := c.dispatchFrame(ctx, eventType, data, events); err != nil {
				return err
			}
			eventType, data = "", ""
		}
	}
	return scanner.Err()
}

func (c *Client) dispatchFrame(ctx context.Context, eventType, data string, events chan<- Event) error {
	switch eventType {
	case EventPut, EventPatch:
		var frame struct {
			Path string `json:"path"`
			Data any    `json:"data"`
		}
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			c.log.Warn().Err(err).Str("event", eventType).Msg("dropping undecodable frame")
			return nil
		}
		select {
		case events <- Event{Type: eventType, Path: frame.Path, Data: frame.Data}:
		case <-ctx.Done():
			return ctx.Err()
		}
	case "keep-alive", "":
		// heartbeat; nothing to do
	case "auth_revoked":
		// Reconnecting mints a fresh token.
		return errAuthRevoked
	case "cancel":
		return errors.New("stream canceled by server: check database rules")
	default:
		c.log.Debug().Str("event", eventType).Msg("ignoring unknown stream event")
	}
	return nil
}
