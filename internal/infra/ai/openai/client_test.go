package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bryanwahyu/automaton-analyst/internal/domain/ai"
)

func completionServer(t *testing.T, handler func(w http.ResponseWriter, body map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		handler(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func reply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func TestGenerateReturnsContent(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, body map[string]any) {
		if body["model"] != "test-model" {
			t.Errorf("unexpected model %v", body["model"])
		}
		msgs, _ := body["messages"].([]any)
		if len(msgs) != 2 {
			t.Errorf("expected system and user messages, got %v", body["messages"])
		}
		if body["max_tokens"] != float64(512) {
			t.Errorf("expected max_tokens 512, got %v", body["max_tokens"])
		}
		_, _ = w.Write([]byte(reply("  hello world \n")))
	})

	c := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Model: "test-model", MaxTokens: 512})
	got, err := c.Generate(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("expected trimmed content, got %q", got)
	}
}

func TestGenerateReasoningModelUsesCompletionTokens(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, body map[string]any) {
		if _, ok := body["max_tokens"]; ok {
			t.Errorf("reasoning model must not send max_tokens")
		}
		if body["max_completion_tokens"] != float64(defaultMaxTokens) {
			t.Errorf("expected max_completion_tokens, got %v", body["max_completion_tokens"])
		}
		_, _ = w.Write([]byte(reply("ok")))
	})

	c := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL + "/v1", Model: "o3-mini"})
	if _, err := c.Generate(context.Background(), "s", "u"); err != nil {
		t.Fatalf("generate: %v", err)
	}
}

func TestGenerateMapsQuotaErrors(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, _ map[string]any) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
	})

	c := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	_, err := c.Generate(context.Background(), "s", "u")
	if !errors.Is(err, ai.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if shouldRetry(err) {
		t.Fatal("quota errors must not be retried")
	}
}

func TestGenerateEmptyCompletion(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, _ map[string]any) {
		_, _ = w.Write([]byte(reply("   ")))
	})

	c := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	if _, err := c.Generate(context.Background(), "s", "u"); !errors.Is(err, ai.ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestGenerateServerErrorIsRetryable(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, _ map[string]any) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream"}}`))
	})

	c := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	_, err := c.Generate(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("expected error")
	}
	if !shouldRetry(err) {
		t.Fatalf("expected 502 to be retryable: %v", err)
	}
}

type scripted struct {
	calls atomic.Int32
	errs  []error
}

func (s *scripted) Generate(context.Context, string, string) (string, error) {
	n := int(s.calls.Add(1)) - 1
	if n < len(s.errs) && s.errs[n] != nil {
		return "", s.errs[n]
	}
	return "done", nil
}

func fastRetry(base *scripted, attempts int) *Retrying {
	r := WithRetry(base, attempts, nil)
	r.delay = time.Millisecond
	return r
}

func TestRetryRecoversFromTransientErrors(t *testing.T) {
	base := &scripted{errs: []error{ai.ErrEmptyCompletion, errors.New("read: connection reset by peer")}}

	got, err := fastRetry(base, 3).Generate(context.Background(), "s", "u")
	if err != nil || got != "done" {
		t.Fatalf("expected success on third attempt, got %q %v", got, err)
	}
	if base.calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", base.calls.Load())
	}
}

func TestRetryStopsAtAttemptLimit(t *testing.T) {
	base := &scripted{errs: []error{ai.ErrEmptyCompletion, ai.ErrEmptyCompletion, ai.ErrEmptyCompletion}}

	if _, err := fastRetry(base, 2).Generate(context.Background(), "s", "u"); !errors.Is(err, ai.ErrEmptyCompletion) {
		t.Fatalf("expected last error, got %v", err)
	}
	if base.calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", base.calls.Load())
	}
}

func TestRetryDoesNotRetryPermanentErrors(t *testing.T) {
	base := &scripted{errs: []error{errors.New("invalid request")}}

	if _, err := fastRetry(base, 5).Generate(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error")
	}
	if base.calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", base.calls.Load())
	}
}

func TestRetryHonoursCancellation(t *testing.T) {
	base := &scripted{errs: []error{ai.ErrEmptyCompletion, ai.ErrEmptyCompletion}}
	r := WithRetry(base, 3, nil)
	r.delay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Generate(ctx, "s", "u"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// stalling blocks its first call until the attempt deadline, then answers.
type stalling struct{ calls atomic.Int32 }

func (s *stalling) Generate(ctx context.Context, _, _ string) (string, error) {
	if s.calls.Add(1) == 1 {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return "second try", nil
}

func TestRetryGivesEachAttemptItsOwnDeadline(t *testing.T) {
	base := &stalling{}
	r := WithRetry(base, 2, nil).PerAttempt(20 * time.Millisecond)
	r.delay = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), r.Budget())
	defer cancel()
	got, err := r.Generate(ctx, "s", "u")
	if err != nil || got != "second try" {
		t.Fatalf("expected the timed-out attempt to be retried, got %q %v", got, err)
	}
	if base.calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", base.calls.Load())
	}
}

func TestRetryBudgetCoversAttemptsAndBackoff(t *testing.T) {
	r := WithRetry(&scripted{}, 3, nil).PerAttempt(time.Second)
	// 3 attempts of 1s plus 300ms and 600ms of backoff
	if got, want := r.Budget(), 3*time.Second+900*time.Millisecond; got != want {
		t.Fatalf("expected budget %v, got %v", want, got)
	}
}
