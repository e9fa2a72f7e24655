package questionsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pai-assess/internal/ai"
	"github.com/p-n-ai/pai-assess/internal/assessment"
)

// AISource generates questions through the AI gateway.
type AISource struct {
	completer   ai.Completer
	maxAttempts int
}

// Option configures an AISource.
type Option func(*AISource)

// WithMaxAttempts sets how many times a malformed response is retried.
func WithMaxAttempts(n int) Option {
	return func(s *AISource) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// NewAISource creates a Source backed by completer.
func NewAISource(completer ai.Completer, opts ...Option) *AISource {
	s := &AISource{
		completer:   completer,
		maxAttempts: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AISource) Generate(ctx context.Context, req GenerateRequest) (assessment.QuestionSet, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	creq := ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(req)},
		},
		JSON: true,
		Task: ai.TaskQuestionGeneration,
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		resp, err := s.completer.Complete(ctx, creq)
		if err != nil {
			return nil, fmt.Errorf("generate questions for %s: %w", req.StudentID, err)
		}

		set, err := Parse(resp.Content, req)
		if err == nil {
			return set, nil
		}
		if !errors.Is(err, assessment.ErrGenerationFormat) {
			return nil, err
		}

		lastErr = err
		slog.Warn("malformed question set",
			"student_id", req.StudentID,
			"attempt", attempt,
			"max_attempts", s.maxAttempts,
			"model", resp.Model,
			"error", err,
		)
	}
	return nil, fmt.Errorf("generate questions for %s after %d attempts: %w", req.StudentID, s.maxAttempts, lastErr)
}
