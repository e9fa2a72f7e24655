// Package grading scores quiz submissions exactly once and feeds the
// per-question outcomes into the mastery model.
package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/p-n-ai/pai-assess/internal/assessment"
	"github.com/p-n-ai/pai-assess/internal/events"
	"github.com/p-n-ai/pai-assess/internal/mastery"
)

// ErrMasteryNotRecorded means the submission was graded and stored but the
// mastery profile could not be updated.
var ErrMasteryNotRecorded = errors.New("mastery not recorded")

// StudentQuestion is a question as shown to the student, without the answer.
type StudentQuestion struct {
	Text    string   `json:"question"`
	Options []string `json:"options"`
	Topic   string   `json:"topic"`
}

// StudentQuiz is the student's view of a personalized quiz.
type StudentQuiz struct {
	ID           string            `json:"id"`
	AssignmentID string            `json:"assignment_id"`
	Questions    []StudentQuestion `json:"questions"`
	Deadline     time.Time         `json:"deadline"`
	Submitted    bool              `json:"submitted"`
	Score        *float64          `json:"score,omitempty"`
	SubmittedAt  *time.Time        `json:"submitted_at,omitempty"`
}

// Result is a graded submission.
type Result struct {
	Score    float64
	Outcomes []mastery.Outcome
}

// Engine grades submissions.
type Engine struct {
	quizzes assessment.Store
	mastery mastery.Store
	events  events.Logger
	now     func() time.Time
}

// New creates a grading engine. logger may be nil.
func New(quizzes assessment.Store, masteryStore mastery.Store, logger events.Logger) *Engine {
	return &Engine{
		quizzes: quizzes,
		mastery: masteryStore,
		events:  logger,
		now:     time.Now,
	}
}

// Grade compares answers to the quiz key position by position. It is pure:
// nothing is stored.
func Grade(questions assessment.QuestionSet, answers []string) (Result, error) {
	if len(answers) != len(questions) {
		return Result{}, fmt.Errorf("got %d answers for %d questions: %w",
			len(answers), len(questions), assessment.ErrAnswerCountMismatch)
	}
	if len(questions) == 0 {
		return Result{}, fmt.Errorf("quiz has no questions: %w", assessment.ErrInvalidInput)
	}

	outcomes := make([]mastery.Outcome, len(questions))
	correct := 0
	for i, q := range questions {
		ok := answers[i] == q.CorrectOption
		if ok {
			correct++
		}
		outcomes[i] = mastery.Outcome{Topic: q.Topic, Correct: ok}
	}

	return Result{
		Score:    100 * float64(correct) / float64(len(questions)),
		Outcomes: outcomes,
	}, nil
}

// Submit grades and records a student's answers. A second submission of the
// same quiz fails with assessment.ErrAlreadySubmitted and changes nothing.
//
// If the submission is stored but the mastery update fails, the score is
// returned together with the error and a mastery_update_failed event
// carries the outcomes for replay.
func (e *Engine) Submit(ctx context.Context, student assessment.Identity, quizID string, answers []string, feedback *string) (float64, error) {
	if err := student.RequireStudent(); err != nil {
		return 0, err
	}

	quiz, err := e.ownQuiz(ctx, student, quizID)
	if err != nil {
		return 0, err
	}
	if quiz.Submitted() {
		return 0, fmt.Errorf("quiz %s: %w", quizID, assessment.ErrAlreadySubmitted)
	}

	result, err := Grade(quiz.Questions, answers)
	if err != nil {
		return 0, err
	}

	if err := e.quizzes.SubmitQuiz(ctx, quizID, assessment.Submission{
		Answers:     answers,
		Score:       result.Score,
		SubmittedAt: e.now().UTC(),
		Feedback:    feedback,
	}); err != nil {
		return 0, err
	}

	_, masteryErr := e.mastery.RecordResult(ctx, student.UserID, result.Outcomes)
	if masteryErr != nil {
		slog.Error("mastery update failed after submission",
			"quiz_id", quizID,
			"student_id", student.UserID,
			"outcomes", result.Outcomes,
			"error", masteryErr,
		)
		events.Emit(ctx, e.events, events.Event{
			UserID:    student.UserID,
			EventType: events.TypeMasteryUpdateFailed,
			Data: map[string]any{
				"quiz_id":       quizID,
				"assignment_id": quiz.AssignmentID,
				"outcomes":      result.Outcomes,
				"error":         masteryErr.Error(),
			},
		})
	}

	slog.Info("quiz submitted",
		"quiz_id", quizID,
		"assignment_id", quiz.AssignmentID,
		"student_id", student.UserID,
		"score", result.Score,
	)
	events.Emit(ctx, e.events, events.Event{
		UserID:    student.UserID,
		EventType: events.TypeQuizSubmitted,
		Data: map[string]any{
			"quiz_id":       quizID,
			"assignment_id": quiz.AssignmentID,
			"score":         result.Score,
			"late":          e.now().After(quiz.Deadline),
		},
	})
	if masteryErr != nil {
		return result.Score, fmt.Errorf("%w: %w", ErrMasteryNotRecorded, masteryErr)
	}
	return result.Score, nil
}

// View returns the student's quiz with the answer key removed.
func (e *Engine) View(ctx context.Context, student assessment.Identity, quizID string) (StudentQuiz, error) {
	if err := student.RequireStudent(); err != nil {
		return StudentQuiz{}, err
	}
	quiz, err := e.ownQuiz(ctx, student, quizID)
	if err != nil {
		return StudentQuiz{}, err
	}

	view := StudentQuiz{
		ID:           quiz.ID,
		AssignmentID: quiz.AssignmentID,
		Questions:    make([]StudentQuestion, len(quiz.Questions)),
		Deadline:     quiz.Deadline,
		Submitted:    quiz.Submitted(),
		Score:        quiz.Score,
		SubmittedAt:  quiz.SubmittedAt,
	}
	for i, q := range quiz.Questions {
		view.Questions[i] = StudentQuestion{Text: q.Text, Options: q.Options, Topic: q.Topic}
	}
	return view, nil
}

// Quizzes lists the student's own quizzes, newest deadline last.
func (e *Engine) Quizzes(ctx context.Context, student assessment.Identity) ([]StudentQuiz, error) {
	if err := student.RequireStudent(); err != nil {
		return nil, err
	}
	quizzes, err := e.quizzes.ListQuizzes(ctx, assessment.QuizFilter{StudentID: student.UserID})
	if err != nil {
		return nil, err
	}
	out := make([]StudentQuiz, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, StudentQuiz{
			ID:           q.ID,
			AssignmentID: q.AssignmentID,
			Deadline:     q.Deadline,
			Submitted:    q.Submitted(),
			Score:        q.Score,
			SubmittedAt:  q.SubmittedAt,
		})
	}
	return out, nil
}

// Profile returns the student's own mastery profile.
func (e *Engine) Profile(ctx context.Context, student assessment.Identity) (mastery.Profile, error) {
	if err := student.RequireStudent(); err != nil {
		return mastery.Profile{}, err
	}
	return e.mastery.GetProfile(ctx, student.UserID)
}

// ownQuiz hides quizzes of other students behind ErrNotFound.
func (e *Engine) ownQuiz(ctx context.Context, student assessment.Identity, quizID string) (*assessment.PersonalizedQuiz, error) {
	quiz, err := e.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.StudentID != student.UserID {
		return nil, fmt.Errorf("quiz %s: %w", quizID, assessment.ErrNotFound)
	}
	return quiz, nil
}
