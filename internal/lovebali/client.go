// Package lovebali is a client for the Love Bali visitor levy API, used to
// verify tourist passport numbers against the levy database.
package lovebali

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wirasena/kommobridge/internal/logging"
)

// DefaultBaseURL is the production Love Bali API endpoint.
const DefaultBaseURL = "https://lovebali.baliprov.go.id/api/v2/"

// APIError is a non-2xx response from the Love Bali API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("love bali api error (status %d): %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether the error means the passport number is not in
// the levy database. The API signals this with 401 or 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusNotFound
}

// ScanData is the levy record returned for a known passport.
type ScanData struct {
	CodeVoucher string `json:"code_voucher"`
	GuestName   string `json:"guest_name"`
	ArrivalDate string `json:"arrival_date"`
	ExpiredDate string `json:"expired_date"`
}

// ScanResult is the single-scan response envelope.
type ScanResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    ScanData `json:"data"`
}

// Options configures a Client.
type Options struct {
	BaseURL  string        // defaults to DefaultBaseURL
	APIToken string
	Timeout  time.Duration // defaults to 30s
}

// Client talks to the Love Bali API.
type Client struct {
	http *resty.Client
	log  *logging.Logger
}

// New creates a Love Bali client.
func New(opts Options, log *logging.Logger) *Client {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	hc := resty.New().
		SetBaseURL(base).
		SetAuthToken(strings.TrimSpace(opts.APIToken)).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)

	return &Client{http: hc, log: log.Sub("lovebali")}
}

// ScanPassport submits a passport number to the single-scan endpoint. The
// number is not logged.
func (c *Client) ScanPassport(ctx context.Context, passportNumber string) (*ScanResult, error) {
	var result ScanResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"passport_number": passportNumber}).
		SetResult(&result).
		Post("/bpd/single_scan_passport")
	if err != nil {
		return nil, fmt.Errorf("scanning passport: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	c.log.Debug().Int("status", resp.StatusCode()).Msg("passport scan completed")
	return &result, nil
}
