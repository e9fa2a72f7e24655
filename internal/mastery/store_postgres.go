package mastery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore keeps one mastery_profiles row per student. Updates take a
// row lock so concurrent submissions by one student never lose counts.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed mastery store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, studentID string) (Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	p, err := scanProfile(s.pool.QueryRow(ctx,
		`SELECT student_id, topics, weak_topics, mastery_index, updated_at
		 FROM mastery_profiles
		 WHERE student_id = $1`,
		studentID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Empty(studentID), nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get mastery profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) RecordResult(ctx context.Context, studentID string, outcomes []Outcome) (Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("begin mastery tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Make sure a row exists so the first submission is locked like any other.
	if _, err := tx.Exec(ctx,
		`INSERT INTO mastery_profiles (student_id) VALUES ($1)
		 ON CONFLICT (student_id) DO NOTHING`,
		studentID,
	); err != nil {
		return Profile{}, fmt.Errorf("ensure mastery profile: %w", err)
	}

	p, err := scanProfile(tx.QueryRow(ctx,
		`SELECT student_id, topics, weak_topics, mastery_index, updated_at
		 FROM mastery_profiles
		 WHERE student_id = $1
		 FOR UPDATE`,
		studentID,
	))
	if err != nil {
		return Profile{}, fmt.Errorf("lock mastery profile: %w", err)
	}

	p = Apply(p, outcomes)

	topics, err := json.Marshal(p.Topics)
	if err != nil {
		return Profile{}, fmt.Errorf("marshal topics: %w", err)
	}
	weak, err := json.Marshal(p.WeakTopics)
	if err != nil {
		return Profile{}, fmt.Errorf("marshal weak topics: %w", err)
	}

	if err := tx.QueryRow(ctx,
		`UPDATE mastery_profiles
		 SET topics = $2::jsonb, weak_topics = $3::jsonb, mastery_index = $4, updated_at = NOW()
		 WHERE student_id = $1
		 RETURNING updated_at`,
		studentID, string(topics), string(weak), p.MasteryIndex,
	).Scan(&p.UpdatedAt); err != nil {
		return Profile{}, fmt.Errorf("update mastery profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Profile{}, fmt.Errorf("commit mastery profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) DifficultyFor(ctx context.Context, studentID string) (float64, error) {
	p, err := s.GetProfile(ctx, studentID)
	if err != nil {
		return 0, err
	}
	return Difficulty(p), nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	var topics, weak []byte
	if err := row.Scan(&p.StudentID, &topics, &weak, &p.MasteryIndex, &p.UpdatedAt); err != nil {
		return Profile{}, err
	}
	if err := json.Unmarshal(topics, &p.Topics); err != nil {
		return Profile{}, fmt.Errorf("decode topics: %w", err)
	}
	if err := json.Unmarshal(weak, &p.WeakTopics); err != nil {
		return Profile{}, fmt.Errorf("decode weak topics: %w", err)
	}
	return Recompute(p), nil
}
