package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultDeepSeekBaseURL   = "https://api.deepseek.com"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenAIProvider implements Provider for OpenAI and every OpenAI-compatible
// chat completions API (DeepSeek, OpenRouter, Ollama) via a configurable
// base URL.
type OpenAIProvider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	name         string
	defaultModel string
	headers      map[string]string
	healthPath   string
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithBaseURL sets the base URL for the OpenAI-compatible API.
func WithBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.client = client
	}
}

// WithDefaultModel sets the model used when a request names none. An empty
// model keeps the provider's default.
func WithDefaultModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if model != "" {
			p.defaultModel = model
		}
	}
}

// WithProviderName sets the name used in errors and logs.
func WithProviderName(name string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.name = name
	}
}

// WithHeader adds a static header to every request.
func WithHeader(key, value string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.headers[key] = value
	}
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:       apiKey,
		baseURL:      defaultOpenAIBaseURL,
		client:       http.DefaultClient,
		name:         "openai",
		defaultModel: "gpt-4o-mini",
		headers:      map[string]string{},
		healthPath:   "/models",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewDeepSeekProvider creates a provider for the DeepSeek API.
func NewDeepSeekProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	opts = append([]OpenAIOption{
		WithBaseURL(defaultDeepSeekBaseURL),
		WithProviderName("deepseek"),
		WithDefaultModel("deepseek-chat"),
	}, opts...)
	return NewOpenAIProvider(apiKey, opts...)
}

// NewOpenRouterProvider creates a provider for OpenRouter.
func NewOpenRouterProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	opts = append([]OpenAIOption{
		WithBaseURL(defaultOpenRouterBaseURL),
		WithProviderName("openrouter"),
		WithDefaultModel("qwen/qwen-2.5-72b-instruct"),
		WithHeader("HTTP-Referer", "https://pandai.org"),
		WithHeader("X-Title", "P&AI Assess"),
	}, opts...)
	return NewOpenAIProvider(apiKey, opts...)
}

// NewOllamaProvider creates a provider for a self-hosted Ollama server,
// which serves the OpenAI-compatible API under /v1.
func NewOllamaProvider(baseURL string, opts ...OpenAIOption) *OpenAIProvider {
	opts = append([]OpenAIOption{
		WithBaseURL(strings.TrimRight(baseURL, "/") + "/v1"),
		WithProviderName("ollama"),
		WithDefaultModel("llama3:8b"),
	}, opts...)
	return NewOpenAIProvider("", opts...)
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// openaiRequest is the request body for the chat completions API.
type openaiRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openaiChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// openaiResponse is the response from the chat completions API.
type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Model   string         `json:"model"`
	Usage   openaiUsage    `json:"usage"`
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	oaiReq := openaiRequest{
		Model:     model,
		Messages:  req.Messages,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		oaiReq.Temperature = &temp
	}
	if req.JSON {
		oaiReq.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(oaiReq)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	p.authorize(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return CompletionResponse{}, fmt.Errorf("%s api error (status %d): %s", p.name, resp.StatusCode, string(respBody))
	}

	var oaiResp openaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return CompletionResponse{}, fmt.Errorf("unmarshal response: %w", err)
	}

	if len(oaiResp.Choices) == 0 {
		return CompletionResponse{}, fmt.Errorf("%s: no choices in response", p.name)
	}

	return CompletionResponse{
		Content:      oaiResp.Choices[0].Message.Content,
		Model:        oaiResp.Model,
		InputTokens:  oaiResp.Usage.PromptTokens,
		OutputTokens: oaiResp.Usage.CompletionTokens,
	}, nil
}

func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+p.healthPath, nil)
	if err != nil {
		return err
	}
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s health check failed: %w", p.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s health check returned status %d", p.name, resp.StatusCode)
	}
	return nil
}

func (p *OpenAIProvider) authorize(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
}
