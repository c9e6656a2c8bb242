package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"newshound/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.LLMConfig{
		APIKey:  "sk-test",
		BaseURL: server.URL,
		Model:   "test-model",
	}, WithSleeper(func(time.Duration) {}))
}

func TestCompleteJSONReturnsContent(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "{\"ok\":true}"}}]}`))
	})

	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"ok":true}` {
		t.Fatalf("content = %q", content)
	}
}

func TestCompleteJSONRetriesServerErrors(t *testing.T) {
	calls := 0
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "done"}}]}`))
	})

	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if calls != 3 || content != "done" {
		t.Fatalf("calls=%d content=%q", calls, content)
	}
}

func TestCompleteJSONDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "bad key", http.StatusUnauthorized)
	})

	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want no retry on 401", calls)
	}
}

func TestCompleteJSONRequiresKey(t *testing.T) {
	client := NewClient(config.LLMConfig{BaseURL: "http://unused"})
	if _, err := client.CompleteJSON(context.Background(), "s", "u"); err == nil {
		t.Fatal("missing key should fail fast")
	}
}

func TestDecodeModelJSONRepairChain(t *testing.T) {
	type payload struct {
		Summary string `json:"summary"`
	}

	var direct payload
	if err := DecodeModelJSON(`{"summary": "plain"}`, &direct); err != nil {
		t.Fatalf("direct: %v", err)
	}
	if direct.Summary != "plain" {
		t.Fatalf("direct = %+v", direct)
	}

	var fenced payload
	if err := DecodeModelJSON("```json\n{\"summary\": \"fenced\"}\n```", &fenced); err != nil {
		t.Fatalf("fenced: %v", err)
	}
	if fenced.Summary != "fenced" {
		t.Fatalf("fenced = %+v", fenced)
	}

	var embedded payload
	if err := DecodeModelJSON(`Sure, here you go: {"summary": "embedded"} hope that helps`, &embedded); err != nil {
		t.Fatalf("embedded: %v", err)
	}
	if embedded.Summary != "embedded" {
		t.Fatalf("embedded = %+v", embedded)
	}

	var broken payload
	if err := DecodeModelJSON("not json at all", &broken); err == nil {
		t.Fatal("unrecoverable payload must error")
	}
	if err := DecodeModelJSON("", &broken); err == nil {
		t.Fatal("empty payload must error")
	}
}

func TestParseRetryAfterSeconds(t *testing.T) {
	delay, ok := parseRetryAfter("7")
	if !ok || delay != 7*time.Second {
		t.Fatalf("delay=%v ok=%v", delay, ok)
	}
	if _, ok := parseRetryAfter("-1"); ok {
		t.Fatal("negative retry-after is invalid")
	}
	if _, ok := parseRetryAfter(""); ok {
		t.Fatal("empty retry-after is invalid")
	}
}
