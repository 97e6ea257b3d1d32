package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type capturedRequest struct {
	Path          string
	Authorization string
	Body          struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Temperature float64 `json:"temperature"`
	}
}

func newProvider(t *testing.T, status int, body string, captured *capturedRequest) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			captured.Path = r.URL.Path
			captured.Authorization = r.Header.Get("Authorization")
			if err := json.NewDecoder(r.Body).Decode(&captured.Body); err != nil {
				t.Errorf("Failed to decode request body: %v", err)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if _, err := w.Write([]byte(body)); err != nil {
			t.Errorf("Failed to write response body: %v", err)
		}
	}))
	t.Cleanup(srv.Close)

	return srv
}

func newTestClient(baseURL string) *Client {
	return New(Config{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Model:       "test-model",
		Temperature: 0.3,
		Timeout:     5 * time.Second,
	})
}

func TestCompleteSendsChatRequest(t *testing.T) {
	var captured capturedRequest
	srv := newProvider(t, http.StatusOK,
		`{"choices":[{"index":0,"message":{"role":"assistant","content":"  <p>done</p>\n"}}]}`,
		&captured)

	got, err := newTestClient(srv.URL).Complete(context.Background(), "the prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "<p>done</p>" {
		t.Fatalf("expected trimmed content, got %q", got)
	}
	if captured.Path != "/chat/completions" {
		t.Fatalf("unexpected path: %q", captured.Path)
	}
	if captured.Authorization != "Bearer test-key" {
		t.Fatalf("unexpected authorization header: %q", captured.Authorization)
	}
	if captured.Body.Model != "test-model" {
		t.Fatalf("unexpected model: %q", captured.Body.Model)
	}
	if captured.Body.Temperature != 0.3 {
		t.Fatalf("unexpected temperature: %v", captured.Body.Temperature)
	}
	if len(captured.Body.Messages) != 1 ||
		captured.Body.Messages[0].Role != "user" ||
		captured.Body.Messages[0].Content != "the prompt" {
		t.Fatalf("unexpected messages: %+v", captured.Body.Messages)
	}
}

func TestCompleteEmptyContentIsNotAnError(t *testing.T) {
	srv := newProvider(t, http.StatusOK,
		`{"choices":[{"index":0,"message":{"role":"assistant","content":"   "}}]}`, nil)

	got, err := newTestClient(srv.URL).Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty content, got %q", got)
	}
}

func TestCompleteMissingChoicesFails(t *testing.T) {
	for _, body := range []string{`{}`, `{"choices":[]}`} {
		srv := newProvider(t, http.StatusOK, body, nil)

		got, err := newTestClient(srv.URL).Complete(context.Background(), "prompt")
		if err == nil {
			t.Fatalf("expected error for body %s, got %q", body, got)
		}
		if kind := KindOf(err); kind != KindMalformed {
			t.Fatalf("expected %q kind for body %s, got %q", KindMalformed, body, kind)
		}
	}
}

func TestCompleteMalformedBodyFails(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "truncated", body: `{"choices": [`},
		{name: "not json", body: `not json`},
		{name: "choices not a list", body: `{"choices":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newProvider(t, http.StatusOK, tt.body, nil)

			_, err := newTestClient(srv.URL).Complete(context.Background(), "prompt")

			var completionErr *Error
			if !errors.As(err, &completionErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if got := KindOf(err); got != KindMalformed {
				t.Errorf("kind = %q, want %q (err: %v)", got, KindMalformed, err)
			}
		})
	}
}

func TestCompleteStatusKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   Kind
	}{
		{"Unauthorized", http.StatusUnauthorized, KindUnauthorized},
		{"Forbidden", http.StatusForbidden, KindUnauthorized},
		{"Rate limited", http.StatusTooManyRequests, KindRateLimited},
		{"Bad request", http.StatusBadRequest, KindBadRequest},
		{"Provider down", http.StatusServiceUnavailable, KindProvider},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			srv := newProvider(t, test.status,
				`{"error":{"message":"provider says no","type":"invalid_request_error"}}`, nil)

			_, err := newTestClient(srv.URL).Complete(context.Background(), "prompt")

			var completionErr *Error
			if !errors.As(err, &completionErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if completionErr.Kind != test.want {
				t.Errorf("Expected %q kind, got %q", test.want, completionErr.Kind)
			}
			if completionErr.StatusCode != test.status {
				t.Errorf("Expected %d status, got %d", test.status, completionErr.StatusCode)
			}
		})
	}
}

func TestCompleteMakesSingleAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	t.Cleanup(srv.Close)

	if _, err := newTestClient(srv.URL).Complete(context.Background(), "prompt"); err == nil {
		t.Fatalf("expected error")
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected exactly one attempt, got %d", got)
	}
}

func TestCompleteNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	_, err := newTestClient(baseURL).Complete(context.Background(), "prompt")
	if kind := KindOf(err); kind != KindNetwork {
		t.Fatalf("expected %q kind, got %q (%v)", KindNetwork, kind, err)
	}
}

func TestCompleteTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	client := New(Config{APIKey: "test-key", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	_, err := client.Complete(context.Background(), "prompt")
	if kind := KindOf(err); kind != KindTimeout {
		t.Fatalf("expected %q kind, got %q (%v)", KindTimeout, kind, err)
	}
}

func TestCompleteWithoutAPIKeySkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(srv.Close)

	client := New(Config{APIKey: "   ", BaseURL: srv.URL})

	_, err := client.Complete(context.Background(), "prompt")
	if kind := KindOf(err); kind != KindConfig {
		t.Fatalf("expected %q kind, got %q", KindConfig, kind)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no provider call without API key")
	}
}

func TestNewDefaults(t *testing.T) {
	client := New(Config{APIKey: "test-key"})

	if client.Model() != DefaultModel {
		t.Fatalf("expected default model, got %q", client.Model())
	}
}

func TestKindOf(t *testing.T) {
	if kind := KindOf(errors.New("plain")); kind != "" {
		t.Fatalf("expected empty kind for plain error, got %q", kind)
	}

	wrapped := errors.Join(errors.New("context"), &Error{Kind: KindProvider, Err: errors.New("x")})
	if kind := KindOf(wrapped); kind != KindProvider {
		t.Fatalf("expected %q kind, got %q", KindProvider, kind)
	}
}
