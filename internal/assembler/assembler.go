// Package assembler issues a quiz assignment to a class by generating one
// personalized quiz per enrolled student.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/pai-assess/internal/assessment"
	"github.com/p-n-ai/pai-assess/internal/events"
	"github.com/p-n-ai/pai-assess/internal/mastery"
	"github.com/p-n-ai/pai-assess/internal/questionsource"
	"github.com/p-n-ai/pai-assess/internal/roster"
)

// MaterialResolver turns note refs of a class into generation-ready text.
type MaterialResolver interface {
	Resolve(ctx context.Context, classID string, refs []string) (string, error)
}

// Config tunes assembly.
type Config struct {
	QuestionsPerQuiz  int
	Concurrency       int
	GenerationTimeout time.Duration
}

// DefaultConfig matches the service defaults.
func DefaultConfig() Config {
	return Config{
		QuestionsPerQuiz:  10,
		Concurrency:       4,
		GenerationTimeout: 60 * time.Second,
	}
}

// Request is a teacher's assignment request. QuestionCount falls back to
// Config.QuestionsPerQuiz when zero.
type Request struct {
	ClassID       string
	MaterialRefs  []string
	Deadline      time.Time
	QuestionCount int
}

// Assembler builds assignments.
type Assembler struct {
	quizzes  assessment.Store
	mastery  mastery.Store
	source   questionsource.Source
	roster   roster.Directory
	material MaterialResolver
	events   events.Logger
	cfg      Config
	now      func() time.Time
}

// New creates an Assembler. logger may be nil.
func New(
	quizzes assessment.Store,
	masteryStore mastery.Store,
	source questionsource.Source,
	dir roster.Directory,
	resolver MaterialResolver,
	logger events.Logger,
	cfg Config,
) *Assembler {
	def := DefaultConfig()
	if cfg.QuestionsPerQuiz <= 0 {
		cfg.QuestionsPerQuiz = def.QuestionsPerQuiz
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = def.GenerationTimeout
	}
	return &Assembler{
		quizzes:  quizzes,
		mastery:  masteryStore,
		source:   source,
		roster:   dir,
		material: resolver,
		events:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// budgetMargin covers roster lookup, material resolution and the commit.
const budgetMargin = 30 * time.Second

// Budget returns how long assembling an assignment for the class may take
// in the worst case: one generation timeout per wave of Concurrency
// students plus a fixed margin. An unknown class gets a single wave.
func (a *Assembler) Budget(ctx context.Context, classID string) time.Duration {
	students := 1
	if class, err := a.roster.Class(ctx, classID); err == nil && len(class.StudentIDs) > students {
		students = len(class.StudentIDs)
	}
	waves := (students + a.cfg.Concurrency - 1) / a.cfg.Concurrency
	return time.Duration(waves)*a.cfg.GenerationTimeout + budgetMargin
}

// Assemble authorizes the teacher, resolves the material, generates every
// student's quiz and commits the assignment with all quizzes at once. If any
// generation fails nothing is stored and the error wraps
// assessment.ErrAssembly.
func (a *Assembler) Assemble(ctx context.Context, teacher assessment.Identity, req Request) (string, error) {
	if err := teacher.RequireTeacher(); err != nil {
		return "", err
	}

	class, err := a.roster.Class(ctx, req.ClassID)
	if errors.Is(err, assessment.ErrNotFound) {
		return "", fmt.Errorf("class %s: %w", req.ClassID, assessment.ErrUnauthorized)
	}
	if err != nil {
		return "", fmt.Errorf("load class: %w", err)
	}
	if !class.OwnedBy(teacher.UserID) {
		return "", fmt.Errorf("class %s is not owned by %s: %w", req.ClassID, teacher.UserID, assessment.ErrUnauthorized)
	}

	count := req.QuestionCount
	if count == 0 {
		count = a.cfg.QuestionsPerQuiz
	}
	if count < 0 {
		return "", fmt.Errorf("question count must be positive, got %d: %w", count, assessment.ErrInvalidInput)
	}
	if req.Deadline.IsZero() {
		return "", fmt.Errorf("deadline is required: %w", assessment.ErrInvalidInput)
	}

	text, err := a.material.Resolve(ctx, class.ID, req.MaterialRefs)
	if err != nil {
		return "", err
	}

	now := a.now().UTC()
	assignment := assessment.QuizAssignment{
		ID:            assessment.NewID(),
		ClassID:       class.ID,
		TeacherID:     teacher.UserID,
		MaterialRefs:  slices.Clone(req.MaterialRefs),
		QuestionCount: count,
		Deadline:      req.Deadline.UTC(),
		CreatedAt:     now,
	}

	quizzes, err := a.generateAll(ctx, assignment, class.StudentIDs, text)
	if err != nil {
		slog.Warn("quiz assembly failed",
			"class_id", class.ID,
			"teacher_id", teacher.UserID,
			"students", len(class.StudentIDs),
			"error", err,
		)
		return "", fmt.Errorf("%w: %w", assessment.ErrAssembly, err)
	}

	if err := a.quizzes.CreateAssignment(ctx, assignment, quizzes); err != nil {
		return "", fmt.Errorf("store assignment: %w", err)
	}

	slog.Info("assignment assembled",
		"assignment_id", assignment.ID,
		"class_id", class.ID,
		"quizzes", len(quizzes),
		"questions", count,
	)
	events.Emit(ctx, a.events, events.Event{
		UserID:    teacher.UserID,
		EventType: events.TypeAssignmentCreated,
		Data: map[string]any{
			"assignment_id":  assignment.ID,
			"class_id":       class.ID,
			"quiz_count":     len(quizzes),
			"question_count": count,
		},
	})
	return assignment.ID, nil
}

// generateAll runs one generation per student on a bounded pool. The first
// failure cancels the rest.
func (a *Assembler) generateAll(ctx context.Context, assignment assessment.QuizAssignment, students []string, text string) ([]assessment.PersonalizedQuiz, error) {
	quizzes := make([]assessment.PersonalizedQuiz, len(students))
	if len(students) == 0 {
		return quizzes, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)

	for i, studentID := range students {
		g.Go(func() error {
			q, err := a.generateOne(gctx, assignment, studentID, text)
			if err != nil {
				return fmt.Errorf("student %s: %w", studentID, err)
			}
			quizzes[i] = q
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return quizzes, nil
}

func (a *Assembler) generateOne(ctx context.Context, assignment assessment.QuizAssignment, studentID, text string) (assessment.PersonalizedQuiz, error) {
	profile, err := a.mastery.GetProfile(ctx, studentID)
	if err != nil {
		return assessment.PersonalizedQuiz{}, fmt.Errorf("load mastery: %w", err)
	}
	difficulty := mastery.Difficulty(profile)

	genCtx, cancel := context.WithTimeout(ctx, a.cfg.GenerationTimeout)
	defer cancel()

	questions, err := a.source.Generate(genCtx, questionsource.GenerateRequest{
		Material:    text,
		Count:       assignment.QuestionCount,
		Difficulty:  difficulty,
		StudentID:   studentID,
		FocusTopics: profile.WeakTopics,
	})
	if err != nil {
		return assessment.PersonalizedQuiz{}, err
	}
	if len(questions) != assignment.QuestionCount {
		return assessment.PersonalizedQuiz{}, fmt.Errorf("got %d questions, want %d: %w",
			len(questions), assignment.QuestionCount, assessment.ErrGenerationFormat)
	}
	if err := questions.Validate(); err != nil {
		return assessment.PersonalizedQuiz{}, fmt.Errorf("%v: %w", err, assessment.ErrGenerationFormat)
	}

	return assessment.PersonalizedQuiz{
		ID:           assessment.NewID(),
		AssignmentID: assignment.ID,
		StudentID:    studentID,
		Questions:    questions,
		Difficulty:   difficulty,
		Deadline:     assignment.Deadline,
		CreatedAt:    assignment.CreatedAt,
	}, nil
}
