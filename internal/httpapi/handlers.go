package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/p-n-ai/pai-assess/internal/assembler"
	"github.com/p-n-ai/pai-assess/internal/assessment"
	"github.com/p-n-ai/pai-assess/internal/grading"
	"github.com/p-n-ai/pai-assess/internal/material"
)

const readyTimeout = 3 * time.Second

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	checks := make(map[string]string, len(a.deps.Ready))
	ready := true
	for name, c := range a.deps.Ready {
		if err := c.HealthCheck(ctx); err != nil {
			a.log.Warn("readiness check failed", "dependency", name, "error", err)
			checks[name] = "unavailable"
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "checks": checks})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "checks": checks})
}

type uploadNoteRequest struct {
	Title       string `json:"title"`
	ContentType string `json:"content_type"`
	Text        string `json:"text,omitempty"`
	// Data is the base64-encoded PDF.
	Data []byte `json:"data,omitempty"`
}

func (a *api) handleUploadNote(w http.ResponseWriter, r *http.Request) {
	who, err := identityFrom(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req uploadNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	note, err := a.deps.Notes.Upload(r.Context(), who, material.NoteInput{
		ClassID:     r.PathValue("classID"),
		Title:       req.Title,
		ContentType: material.ContentType(req.ContentType),
		Text:        req.Text,
		Data:        req.Data,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (a *api) handleListNotes(w http.ResponseWriter, r *http.Request) {
	who, err := identityFrom(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	notes, err := a.deps.Notes.List(r.Context(), who, r.PathValue("classID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

type createAssignmentRequest struct {
	MaterialRefs  []string  `json:"material_refs"`
	Deadline      time.Time `json:"deadline"`
	QuestionCount int       `json:"question_count,omitempty"`
}

func (a *api) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	who, err := identityFrom(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req createAssignmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	classID := r.PathValue("classID")

	// Generation for a whole class can outlast the server's write timeout.
	deadline := time.Now().Add(a.deps.Assignments.Budget(r.Context(), classID))
	if err := http.NewResponseController(w).SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		a.log.Warn("extend write deadline", "request_id", requestIDFromContext(r.Context()), "error", err)
	}

	id, err := a.deps.Assignments.Assemble(r.Context(), who, assembler.Request{
		ClassID:       classID,
		MaterialRefs:  req.MaterialRefs,
		Deadline:      req.Deadline,
		QuestionCount: req.QuestionCount,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"assignment_id": id})
}

func (a *api) handleScores(w http.ResponseWriter, r *http.Request) {
	who, err := identityFrom(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	id := r.PathValue("assignmentID")

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
	case "xlsx":
		// Buffer so an error can still be reported as JSON.
		var buf bytes.Buffer
		if err := a.deps.Results.ExportXLSX(r.Context(), who, id, &buf); err != nil {
			a.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="scores-%s.xlsx"`, id))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
		return
	default:
		a.fail(w, r, fmt.Errorf("unsupported format %q: %w", format, assessment.ErrInvalidInput))
		return
	}

	scores, err := a.deps.Results.ScoresFor(r.Context(), who, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	summary, err := a.deps.Results.Summary(r.Context(), who, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary, "scores": scores})
}

func (a *api) handleViewQuiz(w http.ResponseWriter, r *http.Request) {
	who, err := identityFrom(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	quiz, err := a.deps.Grading.View(r.Context(), who, r.PathValue("quizID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

type submitQuizRequest struct {
	Answers  []string `json:"answers"`
	Feedback *string  `json:"feedback,omitempty"`
}

func (a *api) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	who, err := identityFrom(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req submitQuizRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	score, err := a.deps.Grading.Submit(r.Context(), who, r.PathValue("quizID"), req.Answers, req.Feedback)
	switch {
	case errors.Is(err, grading.ErrMasteryNotRecorded):
		// The submission is final; only the profile update was lost.
		a.log.Error("submission stored without mastery update",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
		writeJSON(w, http.StatusOK, map[string]any{"score": score, "mastery_updated": false})
	case err != nil:
		a.fail(w, r, err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"score": score, "mastery_updated": true})
	}
}

func (a *api) handleMyQuizzes(w http.ResponseWriter, r *http.Request) {
	who, err := identityFrom(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	quizzes, err := a.deps.Grading.Quizzes(r.Context(), who)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quizzes": quizzes})
}

func (a *api) handleMyMastery(w http.ResponseWriter, r *http.Request) {
	who, err := identityFrom(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	profile, err := a.deps.Grading.Profile(r.Context(), who)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
