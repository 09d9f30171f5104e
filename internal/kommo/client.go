// Package kommo is a REST client for the Kommo CRM: lead custom field
// updates, salesbot launches, and account metadata lookups.
package kommo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"

	"github.com/wirasena/kommobridge/internal/logging"
)

// Account metadata barely changes, so lookups are cached briefly.
const metadataTTL = 5 * time.Minute

// The salesbot run endpoint accepts at most 100 launches per call.
const maxSalesbotBatch = 100

// AuthError means the access token was rejected.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("kommo authentication failed (status %d): check the access token", e.StatusCode)
}

// RateLimitError means the API kept throttling after every retry.
type RateLimitError struct {
	Retries int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("kommo rate limit exceeded after %d retries", e.Retries)
}

// APIError is any other non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kommo api error (status %d): %s", e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	Subdomain   string
	AccessToken string
	BaseURL     string        // overrides the subdomain-derived account URL; used by tests
	Timeout     time.Duration // defaults to 30s
	MaxRetries  int           // retry budget for 429/5xx/transport failures
}

// Client talks to one Kommo account. Methods are safe for concurrent use.
type Client struct {
	http       *resty.Client
	v2URL      string
	maxRetries int
	cache      *cache.Cache
	log        *logging.Logger
}

// New creates a client for the account. Rate-limited and failed requests are
// retried up to MaxRetries times, honoring the Retry-After header.
func New(opts Options, log *logging.Logger) *Client {
	root := opts.BaseURL
	if root == "" {
		root = fmt.Sprintf("https://%s.kommo.com", opts.Subdomain)
	}
	root = strings.TrimRight(root, "/")

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	hc := resty.New().
		SetBaseURL(root+"/api/v4").
		SetAuthToken(opts.AccessToken).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout).
		SetRetryCount(opts.MaxRetries).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		}).
		SetRetryAfter(retryAfter)

	return &Client{
		http:       hc,
		v2URL:      root + "/api/v2",
		maxRetries: opts.MaxRetries,
		cache:      cache.New(metadataTTL, 2*metadataTTL),
		log:        log.Sub("kommo"),
	}
}

// retryAfter waits the server-announced Retry-After if present, otherwise
// backs off linearly per attempt.
func retryAfter(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
	if s := resp.Header().Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second, nil
		}
	}
	return time.Duration(resp.Request.Attempt) * 500 * time.Millisecond, nil
}

// UpdateLeadCustomFields patches custom field values on a lead.
func (c *Client) UpdateLeadCustomFields(ctx context.Context, leadID int64, fields []CustomFieldUpdate) error {
	if len(fields) == 0 {
		return errors.New("no custom fields to update")
	}
	for i, f := range fields {
		if f.FieldID == 0 {
			return fmt.Errorf("custom field %d missing field_id", i)
		}
		if len(f.Values) == 0 {
			return fmt.Errorf("custom field %d missing values", i)
		}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"custom_fields_values": fields}).
		Patch(fmt.Sprintf("/leads/%d", leadID))
	if err := c.check("updating lead custom fields", resp, err); err != nil {
		return err
	}

	c.log.Debug().Int64("lead_id", leadID).Int("fields", len(fields)).Msg("lead custom fields updated")
	return nil
}

// LaunchSalesbot runs one bot against one entity. entityType is "1" for
// contacts and "2" for leads.
func (c *Client) LaunchSalesbot(ctx context.Context, botID, entityID int64, entityType string) error {
	return c.LaunchSalesbots(ctx, []SalesbotRequest{{
		BotID:      botID,
		EntityID:   entityID,
		EntityType: entityType,
	}})
}

// LaunchSalesbots runs a batch of bot launches in a single call.
func (c *Client) LaunchSalesbots(ctx context.Context, reqs []SalesbotRequest) error {
	if len(reqs) == 0 {
		return errors.New("no salesbot requests")
	}
	if len(reqs) > maxSalesbotBatch {
		return fmt.Errorf("too many salesbot requests: %d (max %d)", len(reqs), maxSalesbotBatch)
	}
	for i, r := range reqs {
		if r.EntityType != EntityTypeContact && r.EntityType != EntityTypeLead {
			return fmt.Errorf("salesbot request %d: invalid entity_type %q", i, r.EntityType)
		}
	}

	// Salesbot operations live on the v2 API.
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(reqs).
		Post(c.v2URL + "/salesbot/run")
	if err := c.check("launching salesbot", resp, err); err != nil {
		return err
	}

	for _, r := range reqs {
		c.log.Info().
			Int64("bot_id", r.BotID).
			Int64("entity_id", r.EntityID).
			Str("entity_type", r.EntityType).
			Msg("salesbot launched")
	}
	return nil
}

// Account returns the CRM account summary.
func (c *Client) Account(ctx context.Context) (*Account, error) {
	if v, ok := c.cache.Get("account"); ok {
		return v.(*Account), nil
	}

	var acc Account
	resp, err := c.http.R().SetContext(ctx).SetResult(&acc).Get("/account")
	if err := c.check("fetching account", resp, err); err != nil {
		return nil, err
	}

	c.cache.Set("account", &acc, cache.DefaultExpiration)
	return &acc, nil
}

// Pipelines returns the lead pipelines.
func (c *Client) Pipelines(ctx context.Context) ([]Pipeline, error) {
	if v, ok := c.cache.Get("pipelines"); ok {
		return v.([]Pipeline), nil
	}

	var out pipelinesResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/leads/pipelines")
	if err := c.check("fetching pipelines", resp, err); err != nil {
		return nil, err
	}

	c.cache.Set("pipelines", out.Embedded.Pipelines, cache.DefaultExpiration)
	return out.Embedded.Pipelines, nil
}

// CustomFields returns the custom field definitions for an entity type
// ("leads", "contacts" or "companies"). Defaults to leads.
func (c *Client) CustomFields(ctx context.Context, entity string) ([]CustomFieldDef, error) {
	if entity == "" {
		entity = "leads"
	}
	key := "custom_fields:" + entity
	if v, ok := c.cache.Get(key); ok {
		return v.([]CustomFieldDef), nil
	}

	var out customFieldsResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/" + entity + "/custom_fields")
	if err := c.check("fetching custom fields", resp, err); err != nil {
		return nil, err
	}

	c.cache.Set(key, out.Embedded.CustomFields, cache.DefaultExpiration)
	return out.Embedded.CustomFields, nil
}

// TestConnection verifies the credentials by fetching the account.
func (c *Client) TestConnection(ctx context.Context) error {
	acc, err := c.Account(ctx)
	if err != nil {
		return err
	}
	if acc.ID == 0 {
		return errors.New("account response missing id")
	}
	c.log.Info().Int64("account_id", acc.ID).Str("subdomain", acc.Subdomain).Msg("kommo connection ok")
	return nil
}

func (c *Client) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return &AuthError{StatusCode: resp.StatusCode()}
	case resp.StatusCode() == http.StatusTooManyRequests:
		return &RateLimitError{Retries: c.maxRetries}
	case resp.IsError():
		return &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}
