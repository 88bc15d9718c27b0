// Package waha provides a client for the WAHA (WhatsApp HTTP API) gateway.
package waha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the WAHA gateway operations used by campaigns.
type Client interface {
	// SendText sends a text message to a phone number through a session.
	SendText(ctx context.Context, session, phone, text string) (*SendResponse, error)
	// SessionStatus returns the state of a WAHA session.
	SessionStatus(ctx context.Context, session string) (*SessionInfo, error)
}

// SendResponse is the parsed WAHA send result.
type SendResponse struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Ack       int    `json:"ack"`
}

// APIError is a non-2xx response from the gateway. Callers can inspect the
// status code to decide whether the request is worth retrying.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.StatusCode == http.StatusTooManyRequests {
		return fmt.Sprintf("waha: rate limit exceeded: %s", e.Body)
	}
	return fmt.Sprintf("waha: unexpected status %d: %s", e.StatusCode, e.Body)
}

// RateLimited reports whether the gateway pushed back with 429.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// SessionInfo describes one WAHA session.
type SessionInfo struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Connected reports whether the session can send messages.
func (s *SessionInfo) Connected() bool {
	return s.Status == "WORKING"
}

// Option configures the WAHA client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new WAHA gateway client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "http://localhost:3000",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sendTextRequest struct {
	Session string `json:"session"`
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
}

func (c *httpClient) SendText(ctx context.Context, session, phone, text string) (*SendResponse, error) {
	payload, err := json.Marshal(sendTextRequest{
		Session: session,
		ChatID:  chatID(phone),
		Text:    text,
	})
	if err != nil {
		return nil, eris.Wrap(err, "waha: marshal send request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/sendText", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "waha: create send request")
	}
	c.setHeaders(req)

	body, statusCode, err := c.do(req)
	if err != nil {
		return nil, eris.Wrap(err, "waha: send request failed")
	}
	if statusCode != http.StatusOK && statusCode != http.StatusCreated {
		return nil, &APIError{StatusCode: statusCode, Body: string(body)}
	}

	var result SendResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "waha: unmarshal send response")
	}
	return &result, nil
}

func (c *httpClient) SessionStatus(ctx context.Context, session string) (*SessionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/sessions/%s", c.baseURL, session), nil)
	if err != nil {
		return nil, eris.Wrap(err, "waha: create status request")
	}
	c.setHeaders(req)

	body, statusCode, err := c.do(req)
	if err != nil {
		return nil, eris.Wrap(err, "waha: status request failed")
	}
	if statusCode == http.StatusNotFound {
		return nil, eris.Errorf("waha: session %q not found", session)
	}
	if statusCode != http.StatusOK {
		return nil, &APIError{StatusCode: statusCode, Body: string(body)}
	}

	var info SessionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, eris.Wrap(err, "waha: unmarshal session info")
	}
	return &info, nil
}

func (c *httpClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
}

func (c *httpClient) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "waha: read response body")
	}
	return body, resp.StatusCode, nil
}

// chatID converts a phone number to WAHA chat-id form: digits only with the
// @c.us suffix.
func chatID(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String() + "@c.us"
}
