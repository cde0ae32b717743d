package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"clinicalGym/pkg/config"
)

func TestFromConfig(t *testing.T) {
	ctx := context.Background()

	c, err := FromConfig(ctx, config.PolicyConfig{})
	if err != nil || c != nil {
		t.Fatalf("empty provider: got %v, %v", c, err)
	}
	if _, err := FromConfig(ctx, config.PolicyConfig{Provider: "carrier-pigeon"}); err == nil {
		t.Fatal("expected unknown provider error")
	}
	if _, err := FromConfig(ctx, config.PolicyConfig{Provider: ProviderGemini}); err == nil {
		t.Fatal("expected missing gemini key error")
	}
	c, err = FromConfig(ctx, config.PolicyConfig{Provider: ProviderOpenAI, OpenAIKey: "k"})
	if err != nil || c == nil {
		t.Fatalf("openai: got %v, %v", c, err)
	}
}

func TestOpenAIComplete(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "chat.completion",
			"created": 0,
			"model": "tiny",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "escalate"}}]
		}`))
	}))
	defer srv.Close()

	c := OpenAI(WithBaseURL(srv.URL+"/"), WithAPIKey("k"))
	out, err := c.Complete(context.Background(), "tiny", "pick one")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "escalate" {
		t.Fatalf("completion = %q, want escalate", out)
	}
	if gotPath != "/chat/completions" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestOpenAICompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cmpl-2","object":"chat.completion","created":0,"model":"tiny","choices":[]}`))
	}))
	defer srv.Close()

	c := OpenAI(WithBaseURL(srv.URL+"/"), WithAPIKey("k"))
	if _, err := c.Complete(context.Background(), "tiny", "pick one"); !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}
