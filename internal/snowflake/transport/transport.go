package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tspannhw/thermal-streamer/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

// TokenSource supplies the bearer token attached to outgoing requests.
type TokenSource interface {
	GetToken(ctx context.Context) (string, error)
}

// NetworkError wraps connection-level failures (dns, dial, reset, timeout)
// so the caller can classify them as retryable without string matching.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError is a non-2xx response. The body is retained for logging and
// error reports; it is not interpreted here.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the error is transient: a network failure or a
// server-side/throttling status that may succeed on a later attempt.
func Retryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 ||
			httpErr.StatusCode == http.StatusRequestTimeout ||
			httpErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// AuthFailure reports whether the error is a 401/403 response.
func AuthFailure(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusUnauthorized ||
			httpErr.StatusCode == http.StatusForbidden
	}
	return false
}

// Client issues bounded-timeout requests against the service. When Tokens is
// set, every request carries the current bearer token.
type Client struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Tokens     TokenSource
}

func NewClient(timeout time.Duration, tokens TokenSource) *Client {
	return &Client{
		HTTPClient: &http.Client{},
		Timeout:    timeout,
		Tokens:     tokens,
	}
}

// Do performs a single request and returns the response body. Non-2xx
// responses come back as *HTTPError, connection failures as *NetworkError.
func (c *Client) Do(ctx context.Context, method, url, contentType string, body []byte) ([]byte, error) {

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if c.Tokens != nil {
		token, err := c.Tokens.GetToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Snowflake-Authorization-Token-Type", "OAUTH")
	}

	startTime := time.Now()
	resp, err := c.HTTPClient.Do(req)
	elapsedTime := time.Since(startTime)

	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	logger.Log.WithFields(logrus.Fields{
		"method":   method,
		"url":      url,
		"status":   resp.StatusCode,
		"duration": elapsedTime,
	}).Debug("Remote call complete")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}
