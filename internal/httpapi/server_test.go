package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/pai-assess/internal/ai"
	"github.com/p-n-ai/pai-assess/internal/assembler"
	"github.com/p-n-ai/pai-assess/internal/assessment"
	"github.com/p-n-ai/pai-assess/internal/events"
	"github.com/p-n-ai/pai-assess/internal/grading"
	"github.com/p-n-ai/pai-assess/internal/httpapi"
	"github.com/p-n-ai/pai-assess/internal/mastery"
	"github.com/p-n-ai/pai-assess/internal/material"
	"github.com/p-n-ai/pai-assess/internal/questionsource"
	"github.com/p-n-ai/pai-assess/internal/results"
	"github.com/p-n-ai/pai-assess/internal/roster"
)

type checker struct{ err error }

func (c checker) HealthCheck(context.Context) error { return c.err }

// generate answers every question with "A".
func generate(_ context.Context, req questionsource.GenerateRequest) (assessment.QuestionSet, error) {
	set := make(assessment.QuestionSet, req.Count)
	for i := range set {
		set[i] = assessment.Question{
			Text:          fmt.Sprintf("Q%d", i+1),
			Options:       []string{"A", "B", "C", "D"},
			CorrectOption: "A",
			Topic:         "stoichiometry",
		}
	}
	return set, nil
}

func newTestHandler(t *testing.T, ready map[string]httpapi.Checker) http.Handler {
	t.Helper()
	dir := roster.NewMemoryDirectory(roster.Class{
		ID:         "chem-1",
		TeacherID:  "t1",
		StudentIDs: []string{"s1", "s2"},
	})
	quizzes := assessment.NewMemoryStore()
	profiles := mastery.NewMemoryStore()
	log := events.NewMemoryLogger()

	notes := material.NewService(material.NewMemoryNoteStore(), material.NewMemoryBlobStore(), material.NewTikaExtractor(""), dir, log)
	asm := assembler.New(quizzes, profiles, questionsource.Func(generate), dir, notes, log, assembler.Config{
		QuestionsPerQuiz:  4,
		Concurrency:       2,
		GenerationTimeout: 5 * time.Second,
	})

	return httpapi.NewHandler(httpapi.Deps{
		Notes:       notes,
		Assignments: asm,
		Grading:     grading.New(quizzes, profiles, log),
		Results:     results.New(quizzes, dir),
		Ready:       ready,
	})
}

type client struct {
	t *testing.T
	h http.Handler
}

func (c client) do(method, path, userID, role string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
		req.Header.Set("X-User-Role", role)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		ready      map[string]httpapi.Checker
		wantStatus int
		wantBody   string
	}{
		{
			name:       "healthz returns 200",
			path:       "/healthz",
			wantStatus: http.StatusOK,
			wantBody:   `"status":"ok"`,
		},
		{
			name:       "readyz with healthy dependencies",
			path:       "/readyz",
			ready:      map[string]httpapi.Checker{"database": checker{}, "cache": checker{}},
			wantStatus: http.StatusOK,
			wantBody:   `"status":"ready"`,
		},
		{
			name:       "readyz with no AI provider",
			path:       "/readyz",
			ready:      map[string]httpapi.Checker{"database": checker{}, "ai": ai.NewRouter()},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `"ai":"unavailable"`,
		},
		{
			name:       "readyz with cache down",
			path:       "/readyz",
			ready:      map[string]httpapi.Checker{"database": checker{}, "cache": checker{errors.New("refused")}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `"cache":"unavailable"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := client{t: t, h: newTestHandler(t, tt.ready)}
			rec := c.do(http.MethodGet, tt.path, "", "", nil)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.wantBody)
			}
			if rec.Header().Get("X-Request-Id") == "" {
				t.Error("X-Request-Id header not set")
			}
		})
	}
}

func TestAssessmentFlow(t *testing.T) {
	c := client{t: t, h: newTestHandler(t, nil)}

	rec := c.do(http.MethodPost, "/v1/classes/chem-1/notes", "t1", "teacher", map[string]any{
		"title":        "Moles",
		"content_type": "text",
		"text":         "A mole is 6.022e23 particles.",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}
	note := decode[material.Note](t, rec)

	rec = c.do(http.MethodPost, "/v1/classes/chem-1/assignments", "t1", "teacher", map[string]any{
		"material_refs": []string{note.ID},
		"deadline":      time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("assign status = %d, body %s", rec.Code, rec.Body.String())
	}
	assignmentID := decode[map[string]string](t, rec)["assignment_id"]

	rec = c.do(http.MethodGet, "/v1/me/quizzes", "s1", "student", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("my quizzes status = %d", rec.Code)
	}
	mine := decode[struct {
		Quizzes []grading.StudentQuiz `json:"quizzes"`
	}](t, rec).Quizzes
	if len(mine) != 1 || mine[0].AssignmentID != assignmentID {
		t.Fatalf("quizzes = %+v, want one for %s", mine, assignmentID)
	}
	quizPath := "/v1/quizzes/" + mine[0].ID

	rec = c.do(http.MethodGet, quizPath, "s1", "student", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("view status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `"answer"`) {
		t.Errorf("quiz view leaks the answer key: %s", rec.Body.String())
	}
	if got := decode[grading.StudentQuiz](t, rec); len(got.Questions) != 4 {
		t.Errorf("questions = %d, want 4", len(got.Questions))
	}

	if rec = c.do(http.MethodGet, quizPath, "s2", "student", nil); rec.Code != http.StatusNotFound {
		t.Errorf("other student view status = %d, want 404", rec.Code)
	}

	rec = c.do(http.MethodPost, quizPath+"/submit", "s1", "student", map[string]any{
		"answers": []string{"A", "B"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("short submit status = %d, want 400", rec.Code)
	}

	rec = c.do(http.MethodPost, quizPath+"/submit", "s1", "student", map[string]any{
		"answers":  []string{"A", "B", "A", "C"},
		"feedback": "fun",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decode[map[string]any](t, rec); got["score"] != 50.0 || got["mastery_updated"] != true {
		t.Errorf("submit body = %v, want score 50", got)
	}

	rec = c.do(http.MethodPost, quizPath+"/submit", "s1", "student", map[string]any{
		"answers": []string{"A", "A", "A", "A"},
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("resubmit status = %d, want 409", rec.Code)
	}

	rec = c.do(http.MethodGet, "/v1/me/mastery", "s1", "student", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mastery status = %d", rec.Code)
	}
	if p := decode[mastery.Profile](t, rec); p.MasteryIndex != 50 || len(p.WeakTopics) != 0 {
		t.Errorf("profile = %+v, want index 50 and no weak topics", p)
	}

	rec = c.do(http.MethodGet, "/v1/assignments/"+assignmentID+"/scores", "t1", "teacher", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("scores status = %d, body %s", rec.Code, rec.Body.String())
	}
	scores := decode[struct {
		Summary results.Summary      `json:"summary"`
		Scores  []results.ScoreEntry `json:"scores"`
	}](t, rec)
	if scores.Summary.Assigned != 2 || scores.Summary.Submitted != 1 {
		t.Errorf("summary = %+v, want 2 assigned 1 submitted", scores.Summary)
	}
	if len(scores.Scores) != 1 || scores.Scores[0].StudentID != "s1" || scores.Scores[0].Score != 50 {
		t.Errorf("scores = %+v, want s1 at 50", scores.Scores)
	}

	rec = c.do(http.MethodGet, "/v1/assignments/"+assignmentID+"/scores?format=xlsx", "t1", "teacher", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("xlsx status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("Content-Type = %q, want xlsx", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("xlsx body is not a zip archive")
	}
}

func TestErrorMapping(t *testing.T) {
	c := client{t: t, h: newTestHandler(t, nil)}
	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	tests := []struct {
		name       string
		method     string
		path       string
		userID     string
		role       string
		body       any
		wantStatus int
	}{
		{"missing identity", http.MethodGet, "/v1/me/mastery", "", "", nil, http.StatusForbidden},
		{"unknown role", http.MethodGet, "/v1/me/mastery", "s1", "admin", nil, http.StatusForbidden},
		{"teacher reads student mastery", http.MethodGet, "/v1/me/mastery", "t1", "teacher", nil, http.StatusForbidden},
		{"student uploads note", http.MethodPost, "/v1/classes/chem-1/notes", "s1", "student",
			map[string]any{"title": "x", "content_type": "text", "text": "y"}, http.StatusForbidden},
		{"non-owner assigns", http.MethodPost, "/v1/classes/chem-1/assignments", "t2", "teacher",
			map[string]any{"material_refs": []string{"n1"}, "deadline": future}, http.StatusForbidden},
		{"unknown class", http.MethodPost, "/v1/classes/nope/assignments", "t1", "teacher",
			map[string]any{"material_refs": []string{"n1"}, "deadline": future}, http.StatusForbidden},
		{"missing material", http.MethodPost, "/v1/classes/chem-1/assignments", "t1", "teacher",
			map[string]any{"material_refs": []string{assessment.NewID()}, "deadline": future}, http.StatusUnprocessableEntity},
		{"malformed body", http.MethodPost, "/v1/classes/chem-1/assignments", "t1", "teacher",
			map[string]any{"deadline": "tomorrow"}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/v1/quizzes/q1/submit", "s1", "student",
			map[string]any{"answers": []string{"A"}, "extra": true}, http.StatusBadRequest},
		{"missing quiz", http.MethodGet, "/v1/quizzes/" + assessment.NewID(), "s1", "student", nil, http.StatusNotFound},
		{"missing assignment scores", http.MethodGet, "/v1/assignments/" + assessment.NewID() + "/scores", "t1", "teacher", nil, http.StatusForbidden},
		{"unsupported format", http.MethodGet, "/v1/assignments/a1/scores?format=csv", "t1", "teacher", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := c.do(tt.method, tt.path, tt.userID, tt.role, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), `"error"`) {
				t.Errorf("body = %q, want error envelope", rec.Body.String())
			}
		})
	}
}
