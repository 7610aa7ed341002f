package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// IssuerError represents an error response from the auth issuer.
type IssuerError struct {
	StatusCode int
	Body       []byte
}

func (e *IssuerError) Error() string {
	return fmt.Sprintf("auth issuer error %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *IssuerError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// IssuerClient fetches bearer tokens from an external authentication
// service. The issuer itself is an external collaborator; this client only
// speaks its token endpoint.
type IssuerClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// IssuerOption configures an IssuerClient.
type IssuerOption func(*IssuerClient)

// NewIssuerClient creates a token issuer client.
func NewIssuerClient(baseURL string, opts ...IssuerOption) *IssuerClient {
	c := &IssuerClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithIssuerTimeout sets the HTTP client timeout.
func WithIssuerTimeout(d time.Duration) IssuerOption {
	return func(c *IssuerClient) {
		c.httpClient.Timeout = d
	}
}

// WithIssuerRetries sets the retry configuration.
func WithIssuerRetries(max int, backoff time.Duration) IssuerOption {
	return func(c *IssuerClient) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithIssuerLogger sets the logger.
func WithIssuerLogger(logger *slog.Logger) IssuerOption {
	return func(c *IssuerClient) {
		c.logger = logger
	}
}

type tokenRequest struct {
	UserID string `json:"user_id"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Token requests a bearer token for a user id, retrying retryable
// failures with linear backoff.
func (c *IssuerClient) Token(ctx context.Context, userID string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.retryBackoff * time.Duration(attempt)):
			}
			c.logger.Debug("retrying token request", "user_id", userID, "attempt", attempt)
		}

		token, err := c.requestToken(ctx, userID)
		if err == nil {
			return token, nil
		}
		lastErr = err

		if issErr, ok := err.(*IssuerError); ok && !issErr.IsRetryable() {
			return "", err
		}
	}

	return "", fmt.Errorf("token request failed after %d retries: %w", c.maxRetries, lastErr)
}

func (c *IssuerClient) requestToken(ctx context.Context, userID string) (string, error) {
	body, err := json.Marshal(tokenRequest{UserID: userID})
	if err != nil {
		return "", fmt.Errorf("encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return "", &IssuerError{StatusCode: resp.StatusCode, Body: respBody}
	}

	var tr tokenResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if tr.Token == "" {
		return "", fmt.Errorf("issuer returned empty token")
	}

	return tr.Token, nil
}
