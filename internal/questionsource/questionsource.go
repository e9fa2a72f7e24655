// Package questionsource turns course material and a difficulty signal into
// a validated set of multiple-choice questions.
package questionsource

import (
	"context"
	"fmt"
	"strings"

	"github.com/p-n-ai/pai-assess/internal/assessment"
)

// GenerateRequest describes one student's question set.
type GenerateRequest struct {
	Material    string
	Count       int
	Difficulty  float64
	StudentID   string
	FocusTopics []string
}

// Validate rejects requests that can never produce a valid set.
func (r GenerateRequest) Validate() error {
	if r.Count <= 0 {
		return fmt.Errorf("count must be positive, got %d: %w", r.Count, assessment.ErrInvalidInput)
	}
	if r.Difficulty < 0 || r.Difficulty > 1 {
		return fmt.Errorf("difficulty must be within [0,1], got %v: %w", r.Difficulty, assessment.ErrInvalidInput)
	}
	if strings.TrimSpace(r.Material) == "" {
		return fmt.Errorf("material is empty: %w", assessment.ErrInvalidInput)
	}
	if r.StudentID == "" {
		return fmt.Errorf("student id is required: %w", assessment.ErrInvalidInput)
	}
	return nil
}

// Source produces exactly req.Count valid questions or fails. A malformed
// result is reported as assessment.ErrGenerationFormat; it is never padded
// or truncated.
type Source interface {
	Generate(ctx context.Context, req GenerateRequest) (assessment.QuestionSet, error)
}

// Func adapts a function to Source.
type Func func(ctx context.Context, req GenerateRequest) (assessment.QuestionSet, error)

func (f Func) Generate(ctx context.Context, req GenerateRequest) (assessment.QuestionSet, error) {
	return f(ctx, req)
}
