// Package events records analytics events for assignment and submission
// activity.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event types emitted by the engine.
const (
	TypeAssignmentCreated   = "assignment_created"
	TypeQuizSubmitted       = "quiz_submitted"
	TypeNoteUploaded        = "note_uploaded"
	TypeMasteryUpdateFailed = "mastery_update_failed"
)

const dbTimeout = 5 * time.Second

// Event represents an analytics event persisted to the events table.
type Event struct {
	UserID    string
	EventType string
	Data      map[string]any
	CreatedAt time.Time
}

func (e Event) validate() error {
	if e.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if e.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	return nil
}

// Logger defines event logging behavior.
type Logger interface {
	LogEvent(ctx context.Context, event Event) error
}

// Emit logs event and reports failures through slog only. Analytics never
// fail the operation that produced them.
func Emit(ctx context.Context, l Logger, event Event) {
	if l == nil {
		return
	}
	if err := l.LogEvent(ctx, event); err != nil {
		slog.Warn("failed to log event",
			"type", event.EventType,
			"user_id", event.UserID,
			"error", err,
		)
	}
}

// NopLogger ignores all events.
type NopLogger struct{}

func (NopLogger) LogEvent(context.Context, Event) error {
	return nil
}

// MemoryLogger stores events in memory for tests.
type MemoryLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{
		events: []Event{},
	}
}

func (l *MemoryLogger) LogEvent(_ context.Context, event Event) error {
	if err := event.validate(); err != nil {
		return err
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	return nil
}

// Events returns a copy of everything logged so far.
func (l *MemoryLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// OfType returns logged events with the given type.
func (l *MemoryLogger) OfType(eventType string) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// PostgresLogger inserts events into the events table.
type PostgresLogger struct {
	pool *pgxpool.Pool
}

func NewPostgresLogger(pool *pgxpool.Pool) *PostgresLogger {
	return &PostgresLogger{pool: pool}
}

func (l *PostgresLogger) LogEvent(ctx context.Context, event Event) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	if err := event.validate(); err != nil {
		return err
	}

	payload := event.Data
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dbTimeout)
	defer cancel()

	if _, err := l.pool.Exec(ctx,
		`INSERT INTO events (user_id, event_type, data, created_at)
		 VALUES ($1, $2, $3::jsonb, $4)`,
		event.UserID,
		event.EventType,
		string(data),
		createdAt,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("event logged",
		"type", event.EventType,
		"user_id", event.UserID,
	)
	return nil
}
