package events_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-assess/internal/events"
	"github.com/p-n-ai/pai-assess/internal/platform/database/databasetest"
)

func TestMemoryLogger_LogEvent(t *testing.T) {
	logger := events.NewMemoryLogger()

	err := logger.LogEvent(context.Background(), events.Event{
		UserID:    "teacher-1",
		EventType: events.TypeAssignmentCreated,
		Data: map[string]any{
			"quiz_count": 3,
		},
	})
	if err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}

	logged := logger.Events()
	if len(logged) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(logged))
	}
	if logged[0].EventType != events.TypeAssignmentCreated {
		t.Errorf("EventType = %q, want assignment_created", logged[0].EventType)
	}
	if logged[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	if len(logger.OfType(events.TypeQuizSubmitted)) != 0 {
		t.Error("OfType(quiz_submitted) should be empty")
	}
}

func TestMemoryLogger_RequiresFields(t *testing.T) {
	logger := events.NewMemoryLogger()

	if err := logger.LogEvent(context.Background(), events.Event{UserID: "u"}); err == nil {
		t.Error("expected error for missing event_type")
	}
	if err := logger.LogEvent(context.Background(), events.Event{EventType: "x"}); err == nil {
		t.Error("expected error for missing user_id")
	}
}

func TestPostgresLogger_NilPool(t *testing.T) {
	logger := events.NewPostgresLogger(nil)

	err := logger.LogEvent(context.Background(), events.Event{
		UserID:    "student-1",
		EventType: events.TypeQuizSubmitted,
	})
	if err == nil {
		t.Fatal("expected error for nil pool")
	}
}

type failingLogger struct{}

func (failingLogger) LogEvent(context.Context, events.Event) error {
	return errors.New("events table unavailable")
}

func TestEmit_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	events.Emit(context.Background(), failingLogger{}, events.Event{UserID: "u", EventType: "x"})
	events.Emit(context.Background(), nil, events.Event{UserID: "u", EventType: "x"})

	if !strings.Contains(buf.String(), "events table unavailable") {
		t.Errorf("log output = %q, want failure logged", buf.String())
	}
}

func TestPostgresLogger_Insert(t *testing.T) {
	pool := databasetest.NewPool(t)
	logger := events.NewPostgresLogger(pool)
	ctx := t.Context()

	if err := logger.LogEvent(ctx, events.Event{
		UserID:    "student-1",
		EventType: events.TypeQuizSubmitted,
		Data:      map[string]any{"score": 75.0},
	}); err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}

	var score float64
	if err := pool.QueryRow(ctx,
		`SELECT (data->>'score')::float8 FROM events WHERE user_id = $1 AND event_type = $2`,
		"student-1", events.TypeQuizSubmitted,
	).Scan(&score); err != nil {
		t.Fatalf("query event: %v", err)
	}
	if score != 75 {
		t.Errorf("score = %v, want 75", score)
	}
}
