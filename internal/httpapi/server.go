// Package httpapi exposes the assessment services over HTTP.
//
// Callers are trusted to identify themselves with the X-User-ID and
// X-User-Role headers; authentication happens upstream.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/p-n-ai/pai-assess/internal/assembler"
	"github.com/p-n-ai/pai-assess/internal/assessment"
	"github.com/p-n-ai/pai-assess/internal/grading"
	"github.com/p-n-ai/pai-assess/internal/mastery"
	"github.com/p-n-ai/pai-assess/internal/material"
	"github.com/p-n-ai/pai-assess/internal/results"
)

// NoteService uploads and lists class material.
type NoteService interface {
	Upload(ctx context.Context, teacher assessment.Identity, in material.NoteInput) (material.Note, error)
	List(ctx context.Context, teacher assessment.Identity, classID string) ([]material.Note, error)
}

// AssignmentService issues personalized quizzes to a class. Budget bounds
// how long Assemble may run for the class.
type AssignmentService interface {
	Assemble(ctx context.Context, teacher assessment.Identity, req assembler.Request) (string, error)
	Budget(ctx context.Context, classID string) time.Duration
}

// GradingService serves a student's quizzes and grades submissions.
type GradingService interface {
	Submit(ctx context.Context, student assessment.Identity, quizID string, answers []string, feedback *string) (float64, error)
	View(ctx context.Context, student assessment.Identity, quizID string) (grading.StudentQuiz, error)
	Quizzes(ctx context.Context, student assessment.Identity) ([]grading.StudentQuiz, error)
	Profile(ctx context.Context, student assessment.Identity) (mastery.Profile, error)
}

// ResultsService reports assignment scores to teachers.
type ResultsService interface {
	ScoresFor(ctx context.Context, teacher assessment.Identity, assignmentID string) ([]results.ScoreEntry, error)
	Summary(ctx context.Context, teacher assessment.Identity, assignmentID string) (results.Summary, error)
	ExportXLSX(ctx context.Context, teacher assessment.Identity, assignmentID string, w io.Writer) error
}

// Checker is a dependency probed by /readyz.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the services behind the API.
type Deps struct {
	Notes       NoteService
	Assignments AssignmentService
	Grading     GradingService
	Results     ResultsService
	// Ready maps a dependency name to its probe.
	Ready  map[string]Checker
	Logger *slog.Logger
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer wraps NewHandler in an http.Server.
func NewServer(cfg ServerConfig, deps Deps) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      NewHandler(deps),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// NewHandler builds the router with middleware applied.
func NewHandler(deps Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	a := &api{deps: deps, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", a.handleReadyz)

	mux.HandleFunc("POST /v1/classes/{classID}/notes", a.handleUploadNote)
	mux.HandleFunc("GET /v1/classes/{classID}/notes", a.handleListNotes)
	mux.HandleFunc("POST /v1/classes/{classID}/assignments", a.handleCreateAssignment)
	mux.HandleFunc("GET /v1/assignments/{assignmentID}/scores", a.handleScores)

	mux.HandleFunc("GET /v1/quizzes/{quizID}", a.handleViewQuiz)
	mux.HandleFunc("POST /v1/quizzes/{quizID}/submit", a.handleSubmitQuiz)
	mux.HandleFunc("GET /v1/me/quizzes", a.handleMyQuizzes)
	mux.HandleFunc("GET /v1/me/mastery", a.handleMyMastery)

	var h http.Handler = mux
	h = recoverMiddleware(log)(h)
	h = accessLogMiddleware(log)(h)
	h = requestIDMiddleware()(h)
	return h
}

type api struct {
	deps Deps
	log  *slog.Logger
}
