package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/tspannhw/thermal-streamer/internal/platform/logger"
)

func init() {
	logger.InitLogger()
}

type staticTokenSource struct {
	token string
}

func (s *staticTokenSource) GetToken(ctx context.Context) (string, error) {
	return s.token, nil
}

func TestDoSuccess(t *testing.T) {
	receivedAuth := ""
	receivedTokenType := ""
	receivedContentType := ""

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		receivedTokenType = r.Header.Get("X-Snowflake-Authorization-Token-Type")
		receivedContentType = r.Header.Get("Content-Type")
		w.Write([]byte("response body"))
	}))
	defer ts.Close()

	client := NewClient(1*time.Second, &staticTokenSource{token: "issasecret"})

	body, err := client.Do(context.Background(), http.MethodPost, ts.URL, "application/json", []byte("{}"))

	assert.Equal(t, err, nil)
	assert.Equal(t, string(body), "response body")
	assert.Equal(t, receivedAuth, "Bearer issasecret")
	assert.Equal(t, receivedTokenType, "OAUTH")
	assert.Equal(t, receivedContentType, "application/json")
}

func TestDoHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream sad"))
	}))
	defer ts.Close()

	client := NewClient(1*time.Second, nil)

	_, err := client.Do(context.Background(), http.MethodGet, ts.URL, "", nil)

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %v", err)
	}
	assert.Equal(t, httpErr.StatusCode, http.StatusBadGateway)
	assert.Equal(t, httpErr.Body, "upstream sad")
}

func TestDoNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	client := NewClient(1*time.Second, nil)

	_, err := client.Do(context.Background(), http.MethodGet, ts.URL, "", nil)

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %v", err)
	}
}

func TestDoTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer ts.Close()

	client := NewClient(50*time.Millisecond, nil)

	_, err := client.Do(context.Background(), http.MethodGet, ts.URL, "", nil)

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError on timeout, got %v", err)
	}
	assert.Equal(t, Retryable(err), true)
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		retryable   bool
		authFailure bool
	}{
		{"network error", &NetworkError{Err: errors.New("reset")}, true, false},
		{"500", &HTTPError{StatusCode: 500}, true, false},
		{"503", &HTTPError{StatusCode: 503}, true, false},
		{"408", &HTTPError{StatusCode: 408}, true, false},
		{"429", &HTTPError{StatusCode: 429}, true, false},
		{"400", &HTTPError{StatusCode: 400}, false, false},
		{"404", &HTTPError{StatusCode: 404}, false, false},
		{"401", &HTTPError{StatusCode: 401}, false, true},
		{"403", &HTTPError{StatusCode: 403}, false, true},
		{"plain error", errors.New("nope"), false, false},
	}

	for _, c := range cases {
		if got := Retryable(c.err); got != c.retryable {
			t.Fatalf("%s: Retryable got %t, expected %t", c.name, got, c.retryable)
		}
		if got := AuthFailure(c.err); got != c.authFailure {
			t.Fatalf("%s: AuthFailure got %t, expected %t", c.name, got, c.authFailure)
		}
	}
}
