package assessment

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// QuizFilter selects personalized quizzes. Empty fields match everything.
type QuizFilter struct {
	AssignmentID  string
	StudentID     string
	SubmittedOnly bool
}

func (f QuizFilter) match(q *PersonalizedQuiz) bool {
	if f.AssignmentID != "" && q.AssignmentID != f.AssignmentID {
		return false
	}
	if f.StudentID != "" && q.StudentID != f.StudentID {
		return false
	}
	if f.SubmittedOnly && !q.Submitted() {
		return false
	}
	return true
}

// Store persists assignments and personalized quizzes.
type Store interface {
	// CreateAssignment writes the assignment and all of its quizzes, or nothing.
	CreateAssignment(ctx context.Context, a QuizAssignment, quizzes []PersonalizedQuiz) error
	GetAssignment(ctx context.Context, id string) (*QuizAssignment, error)
	GetQuiz(ctx context.Context, id string) (*PersonalizedQuiz, error)
	// ListQuizzes returns matching quizzes ordered by student id.
	ListQuizzes(ctx context.Context, filter QuizFilter) ([]PersonalizedQuiz, error)
	// SubmitQuiz records sub only if the quiz has not been submitted yet.
	// A quiz that is already submitted yields ErrAlreadySubmitted.
	SubmitQuiz(ctx context.Context, id string, sub Submission) error
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	assignments map[string]QuizAssignment
	quizzes     map[string]*PersonalizedQuiz
	mu          sync.RWMutex
}

// NewMemoryStore creates a new in-memory quiz store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assignments: make(map[string]QuizAssignment),
		quizzes:     make(map[string]*PersonalizedQuiz),
	}
}

func (s *MemoryStore) CreateAssignment(_ context.Context, a QuizAssignment, quizzes []PersonalizedQuiz) error {
	if err := checkAssignment(a, quizzes); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assignments[a.ID]; ok {
		return fmt.Errorf("assignment %s already exists", a.ID)
	}
	for i := range quizzes {
		if _, ok := s.quizzes[quizzes[i].ID]; ok {
			return fmt.Errorf("quiz %s already exists", quizzes[i].ID)
		}
	}

	a.MaterialRefs = slices.Clone(a.MaterialRefs)
	s.assignments[a.ID] = a
	for i := range quizzes {
		q := cloneQuiz(quizzes[i])
		s.quizzes[q.ID] = &q
	}
	return nil
}

func (s *MemoryStore) GetAssignment(_ context.Context, id string) (*QuizAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assignments[id]
	if !ok {
		return nil, fmt.Errorf("assignment %s: %w", id, ErrNotFound)
	}
	a.MaterialRefs = slices.Clone(a.MaterialRefs)
	return &a, nil
}

func (s *MemoryStore) GetQuiz(_ context.Context, id string) (*PersonalizedQuiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quizzes[id]
	if !ok {
		return nil, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	out := cloneQuiz(*q)
	return &out, nil
}

func (s *MemoryStore) ListQuizzes(_ context.Context, filter QuizFilter) ([]PersonalizedQuiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []PersonalizedQuiz
	for _, q := range s.quizzes {
		if filter.match(q) {
			out = append(out, cloneQuiz(*q))
		}
	}
	slices.SortFunc(out, func(a, b PersonalizedQuiz) int {
		if c := strings.Compare(a.StudentID, b.StudentID); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *MemoryStore) SubmitQuiz(_ context.Context, id string, sub Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quizzes[id]
	if !ok {
		return fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	if q.Submitted() {
		return fmt.Errorf("quiz %s: %w", id, ErrAlreadySubmitted)
	}

	score := sub.Score
	at := sub.SubmittedAt
	q.Answers = slices.Clone(sub.Answers)
	q.Score = &score
	q.SubmittedAt = &at
	if sub.Feedback != nil {
		fb := *sub.Feedback
		q.Feedback = &fb
	}
	return nil
}

func checkAssignment(a QuizAssignment, quizzes []PersonalizedQuiz) error {
	if a.ID == "" || a.ClassID == "" || a.TeacherID == "" {
		return fmt.Errorf("assignment id, class and teacher are required: %w", ErrInvalidInput)
	}
	if a.QuestionCount <= 0 {
		return fmt.Errorf("question count must be positive: %w", ErrInvalidInput)
	}
	seen := make(map[string]bool, len(quizzes))
	for i := range quizzes {
		q := &quizzes[i]
		if q.AssignmentID != a.ID {
			return fmt.Errorf("quiz %s belongs to assignment %s, not %s: %w", q.ID, q.AssignmentID, a.ID, ErrInvalidInput)
		}
		if seen[q.StudentID] {
			return fmt.Errorf("duplicate quiz for student %s: %w", q.StudentID, ErrInvalidInput)
		}
		seen[q.StudentID] = true
	}
	return nil
}

func cloneQuiz(q PersonalizedQuiz) PersonalizedQuiz {
	q.Questions = slices.Clone(q.Questions)
	for i := range q.Questions {
		q.Questions[i].Options = slices.Clone(q.Questions[i].Options)
	}
	q.Answers = slices.Clone(q.Answers)
	if q.Score != nil {
		v := *q.Score
		q.Score = &v
	}
	if q.SubmittedAt != nil {
		v := *q.SubmittedAt
		q.SubmittedAt = &v
	}
	if q.Feedback != nil {
		v := *q.Feedback
		q.Feedback = &v
	}
	return q
}
