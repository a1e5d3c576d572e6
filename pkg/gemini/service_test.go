package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerateJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gemini-2.5-flash:generateContent" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "k" {
			t.Errorf("key: got %q, want %q", got, "k")
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"invoice_no\":\"1\"}"}]}}]}`))
	}))
	defer srv.Close()

	svc := NewGeminiService("k", time.Second)
	svc.Endpoint = srv.URL

	got, err := svc.GenerateJSON(context.Background(), "system", "prompt")
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if got != `{"invoice_no":"1"}` {
		t.Errorf("GenerateJSON: got %q", got)
	}
}

func TestGenerateJSONError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusForbidden)
	}))
	defer srv.Close()

	svc := NewGeminiService("k", time.Second)
	svc.Endpoint = srv.URL
	if _, err := svc.GenerateJSON(context.Background(), "s", "p"); err == nil {
		t.Error("expected error on 403")
	}
}
