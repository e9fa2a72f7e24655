package ai_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-assess/internal/ai"
)

func TestRouter_SingleProvider(t *testing.T) {
	router := ai.NewRouter()
	router.Register("openai", ai.NewMockProvider("Hello!"))

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Hello!" {
		t.Errorf("Content = %q, want %q", resp.Content, "Hello!")
	}
}

func TestRouter_Fallback(t *testing.T) {
	router := ai.NewRouter()
	failing := &ai.MockProvider{Err: errors.New("rate limited")}
	fallback := ai.NewMockProvider("Fallback response")
	router.Register("openai", failing)
	router.Register("ollama", fallback)

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Fallback response" {
		t.Errorf("Content = %q, want %q", resp.Content, "Fallback response")
	}
	if failing.Calls() != 1 || fallback.Calls() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", failing.Calls(), fallback.Calls())
	}
}

func TestRouter_AllProvidersFail(t *testing.T) {
	router := ai.NewRouter()
	boom := errors.New("fail 2")
	router.Register("openai", &ai.MockProvider{Err: errors.New("fail 1")})
	router.Register("ollama", &ai.MockProvider{Err: boom})

	_, err := router.Complete(context.Background(), ai.CompletionRequest{})
	if err == nil {
		t.Fatal("Complete() should return error when all providers fail")
	}
	if !errors.Is(err, boom) {
		t.Errorf("error should wrap provider errors, got %v", err)
	}
	if !strings.Contains(err.Error(), "openai: fail 1") {
		t.Errorf("error should name the provider, got %v", err)
	}
}

func TestRouter_NoProviders(t *testing.T) {
	router := ai.NewRouter()
	if router.HasProvider() {
		t.Error("HasProvider() = true, want false")
	}
	if _, err := router.Complete(context.Background(), ai.CompletionRequest{}); !errors.Is(err, ai.ErrNoProvider) {
		t.Errorf("Complete() error = %v, want ErrNoProvider", err)
	}
	if err := router.HealthCheck(context.Background()); !errors.Is(err, ai.ErrNoProvider) {
		t.Errorf("HealthCheck() error = %v, want ErrNoProvider", err)
	}
}

func TestRouter_StopsOnCancelledContext(t *testing.T) {
	router := ai.NewRouter()
	second := ai.NewMockProvider("late")
	router.Register("first", &ai.MockProvider{Err: errors.New("down")})
	router.Register("second", second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := router.Complete(ctx, ai.CompletionRequest{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Complete() error = %v, want context.Canceled", err)
	}
	if second.Calls() != 0 {
		t.Errorf("second provider called %d times after cancellation", second.Calls())
	}
}

func TestRouter_RegisterOrder(t *testing.T) {
	router := ai.NewRouter()
	router.Register("a", ai.NewMockProvider())
	router.Register("b", ai.NewMockProvider())
	router.Register("a", ai.NewMockProvider())

	got := router.Providers()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Providers() = %v, want [a b]", got)
	}
}

func TestRouter_HealthCheck(t *testing.T) {
	router := ai.NewRouter()
	router.Register("down", &ai.MockProvider{Err: errors.New("down")})
	router.Register("up", ai.NewMockProvider())

	if err := router.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}
}
