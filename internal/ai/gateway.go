// Package ai provides a provider-agnostic completion gateway with ordered
// fallback across hosted and self-hosted model providers.
package ai

import "context"

// TaskType labels a request for logging.
type TaskType int

const (
	TaskUnspecified TaskType = iota
	TaskQuestionGeneration
)

func (t TaskType) String() string {
	switch t {
	case TaskQuestionGeneration:
		return "question_generation"
	default:
		return "unknown"
	}
}

// Message is one turn of a chat prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to an AI completion.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	// JSON asks the provider to return a single JSON object.
	JSON bool     `json:"json,omitempty"`
	Task TaskType `json:"task,omitempty"`
}

// CompletionResponse is the output from an AI completion.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Provider is the interface all AI providers must implement.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	HealthCheck(ctx context.Context) error
}

// Completer is the narrow view consumers need. Router and every Provider
// satisfy it.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// jsonInstruction is appended to the system prompt for providers that have no
// native JSON response mode.
const jsonInstruction = "Respond with a single JSON object and nothing else."

// splitSystem separates system messages from the conversation turns.
func splitSystem(msgs []Message) (string, []Message) {
	var system string
	turns := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == "system" {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		turns = append(turns, m)
	}
	return system, turns
}
