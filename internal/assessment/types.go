// Package assessment defines the quiz domain model, the error taxonomy shared
// by the engine components, and the quiz document store.
package assessment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OptionsPerQuestion is the fixed number of choices on every question.
const OptionsPerQuestion = 4

// Question is a single multiple-choice item.
type Question struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"answer"`
	Topic         string   `json:"topic"`
}

// Validate checks the structural invariants of a question.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("question text is empty")
	}
	if strings.TrimSpace(q.Topic) == "" {
		return fmt.Errorf("question topic is empty")
	}
	if len(q.Options) != OptionsPerQuestion {
		return fmt.Errorf("question has %d options, want %d", len(q.Options), OptionsPerQuestion)
	}
	seen := make(map[string]bool, len(q.Options))
	for _, opt := range q.Options {
		if seen[opt] {
			return fmt.Errorf("duplicate option %q", opt)
		}
		seen[opt] = true
	}
	if !seen[q.CorrectOption] {
		return fmt.Errorf("answer %q is not one of the options", q.CorrectOption)
	}
	return nil
}

// QuestionSet is the ordered question list generated for one student.
type QuestionSet []Question

// Validate checks every question in the set.
func (s QuestionSet) Validate() error {
	for i, q := range s {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}

// QuizAssignment is the teacher-level record that a quiz was issued to a class.
type QuizAssignment struct {
	ID            string    `json:"id"`
	ClassID       string    `json:"class_id"`
	TeacherID     string    `json:"teacher_id"`
	MaterialRefs  []string  `json:"material_refs"`
	QuestionCount int       `json:"question_count"`
	Deadline      time.Time `json:"deadline"`
	CreatedAt     time.Time `json:"created_at"`
}

// PersonalizedQuiz is one student's instance of an assignment.
type PersonalizedQuiz struct {
	ID           string      `json:"id"`
	AssignmentID string      `json:"assignment_id"`
	StudentID    string      `json:"student_id"`
	Questions    QuestionSet `json:"questions"`
	Difficulty   float64     `json:"difficulty"`
	Deadline     time.Time   `json:"deadline"`
	CreatedAt    time.Time   `json:"created_at"`
	Answers      []string    `json:"answers,omitempty"`
	Score        *float64    `json:"score,omitempty"`
	SubmittedAt  *time.Time  `json:"submitted_at,omitempty"`
	Feedback     *string     `json:"feedback,omitempty"`
}

// Submitted reports whether the quiz has reached its terminal state.
func (q *PersonalizedQuiz) Submitted() bool {
	return q.SubmittedAt != nil
}

// Submission is the result written when a quiz transitions to submitted.
type Submission struct {
	Answers     []string
	Score       float64
	SubmittedAt time.Time
	Feedback    *string
}

// NewID returns a fresh entity id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether s is a well-formed entity id.
func ValidID(s string) bool {
	return uuid.Validate(s) == nil
}
