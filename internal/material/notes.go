package material

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-assess/internal/assessment"
)

const dbTimeout = 5 * time.Second

// MemoryNoteStore is an in-memory NoteStore.
type MemoryNoteStore struct {
	notes map[string]Note
	mu    sync.RWMutex
}

func NewMemoryNoteStore() *MemoryNoteStore {
	return &MemoryNoteStore{notes: make(map[string]Note)}
}

func (s *MemoryNoteStore) CreateNote(_ context.Context, n Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[n.ID]; ok {
		return fmt.Errorf("note %s already exists", n.ID)
	}
	s.notes[n.ID] = n
	return nil
}

func (s *MemoryNoteStore) GetNote(_ context.Context, id string) (*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, fmt.Errorf("note %s: %w", id, assessment.ErrNotFound)
	}
	return &n, nil
}

func (s *MemoryNoteStore) ListNotes(_ context.Context, classID string) ([]Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Note
	for _, n := range s.notes {
		if n.ClassID == classID {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b Note) int {
		return a.UploadedAt.Compare(b.UploadedAt)
	})
	return out, nil
}

// PostgresNoteStore is a PostgreSQL-backed NoteStore.
type PostgresNoteStore struct {
	pool *pgxpool.Pool
}

func NewPostgresNoteStore(pool *pgxpool.Pool) (*PostgresNoteStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresNoteStore{pool: pool}, nil
}

func (s *PostgresNoteStore) CreateNote(ctx context.Context, n Note) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO notes (id, class_id, teacher_id, title, content_type, content, uploaded_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.ClassID, n.TeacherID, n.Title, string(n.ContentType), n.Content, n.UploadedAt,
	); err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

const noteColumns = `id::text, class_id, teacher_id, title, content_type, content, uploaded_at`

func (s *PostgresNoteStore) GetNote(ctx context.Context, id string) (*Note, error) {
	if !assessment.ValidID(id) {
		return nil, fmt.Errorf("note %s: %w", id, assessment.ErrNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = $1::uuid`, id)
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	n, err := pgx.CollectExactlyOneRow(rows, scanNote)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("note %s: %w", id, assessment.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	return &n, nil
}

func (s *PostgresNoteStore) ListNotes(ctx context.Context, classID string) ([]Note, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE class_id = $1 ORDER BY uploaded_at ASC`,
		classID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	notes, err := pgx.CollectRows(rows, scanNote)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

func scanNote(row pgx.CollectableRow) (Note, error) {
	var n Note
	var ct string
	err := row.Scan(&n.ID, &n.ClassID, &n.TeacherID, &n.Title, &ct, &n.Content, &n.UploadedAt)
	n.ContentType = ContentType(ct)
	return n, err
}
