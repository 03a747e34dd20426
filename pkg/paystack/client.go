package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// BaseURL is the Paystack API base URL.
	BaseURL = "https://api.paystack.co"

	EventChargeSuccess = "charge.success"
)

// Config holds client settings. Zero values fall back to defaults.
type Config struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
	Debug     bool
}

// Client is a minimal HTTP client for the Paystack transaction API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	debug      bool
}

// APIError is returned when Paystack answers with status=false or a non-2xx code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack: %s (http %d)", e.Message, e.StatusCode)
}

// NewClient constructs a new Paystack client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		secretKey:  cfg.SecretKey,
		debug:      cfg.Debug,
	}
}

// InitializeTransaction creates a checkout session and returns its redirect URL.
func (c *Client) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	var resp envelope[InitializeResponse]
	if err := c.doRequest(ctx, http.MethodPost, "/transaction/initialize", req, &resp); err != nil {
		return nil, err
	}
	if resp.Data.AuthorizationURL == "" {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "missing authorization_url"}
	}
	return &resp.Data, nil
}

// VerifyTransaction fetches the current state of a transaction by reference.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*Transaction, error) {
	var resp envelope[Transaction]
	if err := c.doRequest(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// doRequest sends a JSON request with bearer authentication and decodes the
// envelope into result.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	var reader io.Reader
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	if c.debug {
		ev := log.Debug().Str("method", method).Str("endpoint", c.baseURL+endpoint)
		if payload != nil {
			ev = ev.RawJSON("request", payload)
		}
		ev.Msg("[PAYSTACK] Outgoing request")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if c.debug {
		log.Debug().
			Str("endpoint", endpoint).
			Int("status_code", resp.StatusCode).
			Bytes("response", respBody).
			Msg("[PAYSTACK] Incoming response")
	}

	var head struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(respBody, &head); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "undecodable response"}
	}
	if resp.StatusCode >= 300 || !head.Status {
		return &APIError{StatusCode: resp.StatusCode, Message: head.Message}
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
