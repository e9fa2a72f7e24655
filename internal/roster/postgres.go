package roster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-assess/internal/assessment"
)

const dbTimeout = 5 * time.Second

// PostgresDirectory reads classes and class_members.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory creates a PostgreSQL-backed roster.
func NewPostgresDirectory(pool *pgxpool.Pool) (*PostgresDirectory, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresDirectory{pool: pool}, nil
}

func (d *PostgresDirectory) Class(ctx context.Context, classID string) (Class, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c := Class{ID: classID}
	err := d.pool.QueryRow(ctx,
		`SELECT teacher_id, subject FROM classes WHERE id = $1`,
		classID,
	).Scan(&c.TeacherID, &c.Subject)
	if errors.Is(err, pgx.ErrNoRows) {
		return Class{}, fmt.Errorf("class %s: %w", classID, assessment.ErrNotFound)
	}
	if err != nil {
		return Class{}, fmt.Errorf("get class: %w", err)
	}

	rows, err := d.pool.Query(ctx,
		`SELECT student_id FROM class_members WHERE class_id = $1 ORDER BY student_id`,
		classID,
	)
	if err != nil {
		return Class{}, fmt.Errorf("query class members: %w", err)
	}
	c.StudentIDs, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return Class{}, fmt.Errorf("scan class members: %w", err)
	}
	return c, nil
}

// PutClass creates or replaces a class and its membership.
func (d *PostgresDirectory) PutClass(ctx context.Context, c Class) error {
	if err := c.Validate(); err != nil {
		return err
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin roster tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO classes (id, teacher_id, subject) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET teacher_id = EXCLUDED.teacher_id, subject = EXCLUDED.subject`,
		c.ID, c.TeacherID, c.Subject,
	); err != nil {
		return fmt.Errorf("upsert class: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM class_members WHERE class_id = $1`, c.ID); err != nil {
		return fmt.Errorf("clear class members: %w", err)
	}
	if len(c.StudentIDs) > 0 {
		if _, err := tx.Exec(ctx,
			`INSERT INTO class_members (class_id, student_id)
			 SELECT $1, unnest($2::text[])`,
			c.ID, c.StudentIDs,
		); err != nil {
			return fmt.Errorf("insert class members: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit roster: %w", err)
	}
	return nil
}
