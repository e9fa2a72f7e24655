// Package results gives teachers the scores of an assignment.
package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/p-n-ai/pai-assess/internal/assessment"
	"github.com/p-n-ai/pai-assess/internal/roster"
)

// ScoreEntry is one submitted quiz.
type ScoreEntry struct {
	StudentID   string    `json:"student_id"`
	Score       float64   `json:"score"`
	Feedback    *string   `json:"feedback,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Summary aggregates an assignment.
type Summary struct {
	AssignmentID string  `json:"assignment_id"`
	ClassID      string  `json:"class_id"`
	Assigned     int     `json:"assigned"`
	Submitted    int     `json:"submitted"`
	MeanScore    float64 `json:"mean_score"`
}

// Aggregator reads graded quizzes for the owning teacher.
type Aggregator struct {
	quizzes assessment.Store
	roster  roster.Directory
}

// New creates an aggregator.
func New(quizzes assessment.Store, dir roster.Directory) *Aggregator {
	return &Aggregator{quizzes: quizzes, roster: dir}
}

// ScoresFor returns submitted quizzes of the assignment, ordered by student.
//
// A missing assignment returns an error matching both assessment.ErrNotFound
// and assessment.ErrUnauthorized, so callers that check Unauthorized first
// answer a non-owner the same way whether or not the assignment exists.
func (a *Aggregator) ScoresFor(ctx context.Context, teacher assessment.Identity, assignmentID string) ([]ScoreEntry, error) {
	if _, err := a.authorize(ctx, teacher, assignmentID); err != nil {
		return nil, err
	}

	quizzes, err := a.quizzes.ListQuizzes(ctx, assessment.QuizFilter{
		AssignmentID:  assignmentID,
		SubmittedOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list submitted quizzes: %w", err)
	}

	entries := make([]ScoreEntry, 0, len(quizzes))
	for _, q := range quizzes {
		if !q.Submitted() || q.Score == nil {
			continue
		}
		entries = append(entries, ScoreEntry{
			StudentID:   q.StudentID,
			Score:       *q.Score,
			Feedback:    q.Feedback,
			SubmittedAt: *q.SubmittedAt,
		})
	}
	return entries, nil
}

// Summary counts assigned and submitted quizzes and averages the scores.
func (a *Aggregator) Summary(ctx context.Context, teacher assessment.Identity, assignmentID string) (Summary, error) {
	assignment, err := a.authorize(ctx, teacher, assignmentID)
	if err != nil {
		return Summary{}, err
	}

	quizzes, err := a.quizzes.ListQuizzes(ctx, assessment.QuizFilter{AssignmentID: assignmentID})
	if err != nil {
		return Summary{}, fmt.Errorf("list quizzes: %w", err)
	}

	s := Summary{
		AssignmentID: assignmentID,
		ClassID:      assignment.ClassID,
		Assigned:     len(quizzes),
	}
	var sum float64
	for _, q := range quizzes {
		if q.Submitted() && q.Score != nil {
			s.Submitted++
			sum += *q.Score
		}
	}
	if s.Submitted > 0 {
		s.MeanScore = sum / float64(s.Submitted)
	}
	return s, nil
}

func (a *Aggregator) authorize(ctx context.Context, teacher assessment.Identity, assignmentID string) (*assessment.QuizAssignment, error) {
	if err := teacher.RequireTeacher(); err != nil {
		return nil, err
	}

	assignment, err := a.quizzes.GetAssignment(ctx, assignmentID)
	if errors.Is(err, assessment.ErrNotFound) {
		return nil, fmt.Errorf("assignment %s: %w: %w", assignmentID, assessment.ErrNotFound, assessment.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("load assignment: %w", err)
	}

	class, err := a.roster.Class(ctx, assignment.ClassID)
	switch {
	case err == nil:
		if !class.OwnedBy(teacher.UserID) {
			return nil, fmt.Errorf("class %s is not owned by %s: %w", assignment.ClassID, teacher.UserID, assessment.ErrUnauthorized)
		}
	case errors.Is(err, assessment.ErrNotFound):
		// Class was removed from the roster; the issuing teacher keeps access.
		if assignment.TeacherID != teacher.UserID {
			return nil, fmt.Errorf("assignment %s was not issued by %s: %w", assignmentID, teacher.UserID, assessment.ErrUnauthorized)
		}
	default:
		return nil, fmt.Errorf("load class: %w", err)
	}
	return assignment, nil
}
