package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func openaiReply(content string) openaiResponse {
	resp := openaiResponse{
		Choices: []openaiChoice{{}},
		Model:   "gpt-4o",
		Usage:   openaiUsage{PromptTokens: 10, CompletionTokens: 5},
	}
	resp.Choices[0].Message.Content = content
	return resp
}

func TestOpenAIProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-4o" {
			t.Errorf("model = %q, want gpt-4o", req.Model)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("response_format = %+v, want json_object", req.ResponseFormat)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		_ = json.NewEncoder(w).Encode(openaiReply(`{"ok":true}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-key", WithBaseURL(server.URL))

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: "be terse"},
			{Role: "user", Content: "hello"},
		},
		Model: "gpt-4o",
		JSON:  true,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != `{"ok":true}` {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.TotalTokens() != 15 {
		t.Errorf("TotalTokens() = %d, want 15", resp.TotalTokens())
	}
}

func TestOpenAIProvider_Complete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer server.Close()

	provider := NewDeepSeekProvider("test-key", WithBaseURL(server.URL))

	_, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	if err == nil {
		t.Fatal("Complete() should return error on 429")
	}
	if !strings.Contains(err.Error(), "deepseek api error (status 429)") {
		t.Errorf("error = %v, want deepseek 429", err)
	}
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[],"model":"x"}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider("k", WithBaseURL(server.URL))
	if _, err := provider.Complete(context.Background(), CompletionRequest{}); err == nil {
		t.Fatal("Complete() should fail without choices")
	}
}

func TestOllamaProvider_UsesV1AndNoAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("ollama should not send auth, got %q", r.Header.Get("Authorization"))
		}
		var req openaiRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "llama3:8b" {
			t.Errorf("model = %q, want llama3:8b", req.Model)
		}
		_ = json.NewEncoder(w).Encode(openaiReply("hi"))
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL + "/")
	if provider.Name() != "ollama" {
		t.Errorf("Name() = %q, want ollama", provider.Name())
	}
	if _, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
}

func TestOpenRouterProvider_Headers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Title") == "" || r.Header.Get("HTTP-Referer") == "" {
			t.Errorf("missing OpenRouter attribution headers: %v", r.Header)
		}
		_ = json.NewEncoder(w).Encode(openaiReply("hi"))
	}))
	defer server.Close()

	provider := NewOpenRouterProvider("or-key", WithBaseURL(server.URL))
	if _, err := provider.Complete(context.Background(), CompletionRequest{}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
}

func TestOpenAIProvider_HealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"healthy", http.StatusOK, false},
		{"unauthorized", http.StatusUnauthorized, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/models" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			provider := NewOpenAIProvider("k", WithBaseURL(server.URL))
			if err := provider.HealthCheck(context.Background()); (err != nil) != tt.wantErr {
				t.Errorf("HealthCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
