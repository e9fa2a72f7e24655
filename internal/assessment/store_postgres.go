package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed quiz store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) CreateAssignment(ctx context.Context, a QuizAssignment, quizzes []PersonalizedQuiz) error {
	if err := checkAssignment(a, quizzes); err != nil {
		return err
	}

	refs, err := json.Marshal(nonNil(a.MaterialRefs))
	if err != nil {
		return fmt.Errorf("marshal material refs: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin assignment tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO quiz_assignments (id, class_id, teacher_id, material_refs, question_count, deadline, created_at)
		 VALUES ($1::uuid, $2, $3, $4::jsonb, $5, $6, $7)`,
		a.ID, a.ClassID, a.TeacherID, string(refs), a.QuestionCount, a.Deadline, a.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range quizzes {
		q := &quizzes[i]
		questions, err := json.Marshal(q.Questions)
		if err != nil {
			return fmt.Errorf("marshal questions for %s: %w", q.StudentID, err)
		}
		batch.Queue(
			`INSERT INTO personalized_quizzes (id, assignment_id, student_id, questions, difficulty, deadline, created_at)
			 VALUES ($1::uuid, $2::uuid, $3, $4::jsonb, $5, $6, $7)`,
			q.ID, q.AssignmentID, q.StudentID, string(questions), q.Difficulty, q.Deadline, q.CreatedAt,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert quizzes: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit assignment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAssignment(ctx context.Context, id string) (*QuizAssignment, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("assignment %s: %w", id, ErrNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var a QuizAssignment
	var refs []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, class_id, teacher_id, material_refs, question_count, deadline, created_at
		 FROM quiz_assignments
		 WHERE id = $1::uuid`,
		id,
	).Scan(&a.ID, &a.ClassID, &a.TeacherID, &refs, &a.QuestionCount, &a.Deadline, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("assignment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	if err := json.Unmarshal(refs, &a.MaterialRefs); err != nil {
		return nil, fmt.Errorf("decode material refs: %w", err)
	}
	return &a, nil
}

const quizColumns = `id::text, assignment_id::text, student_id, questions, difficulty, deadline, created_at,
	answers, score, submitted_at, feedback`

func (s *PostgresStore) GetQuiz(ctx context.Context, id string) (*PersonalizedQuiz, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := s.pool.QueryRow(ctx,
		`SELECT `+quizColumns+` FROM personalized_quizzes WHERE id = $1::uuid`,
		id,
	)
	q, err := scanQuiz(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	return q, nil
}

func (s *PostgresStore) ListQuizzes(ctx context.Context, filter QuizFilter) ([]PersonalizedQuiz, error) {
	var conds []string
	var args []any
	if filter.AssignmentID != "" {
		if !ValidID(filter.AssignmentID) {
			return nil, nil
		}
		args = append(args, filter.AssignmentID)
		conds = append(conds, fmt.Sprintf("assignment_id = $%d::uuid", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conds = append(conds, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.SubmittedOnly {
		conds = append(conds, "submitted_at IS NOT NULL")
	}

	query := `SELECT ` + quizColumns + ` FROM personalized_quizzes`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY student_id ASC, id ASC"

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query quizzes: %w", err)
	}
	defer rows.Close()

	var out []PersonalizedQuiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		out = append(out, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quizzes: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SubmitQuiz(ctx context.Context, id string, sub Submission) error {
	if !ValidID(id) {
		return fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}

	answers, err := json.Marshal(nonNil(sub.Answers))
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`UPDATE personalized_quizzes
		 SET answers = $2::jsonb, score = $3, submitted_at = $4, feedback = $5
		 WHERE id = $1::uuid AND submitted_at IS NULL`,
		id, string(answers), sub.Score, sub.SubmittedAt, sub.Feedback,
	)
	if err != nil {
		return fmt.Errorf("submit quiz: %w", err)
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}

	// Nothing updated: either the quiz is gone or another submit won.
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM personalized_quizzes WHERE id = $1::uuid)`,
		id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check quiz: %w", err)
	}
	if !exists {
		return fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("quiz %s: %w", id, ErrAlreadySubmitted)
}

func scanQuiz(row pgx.Row) (*PersonalizedQuiz, error) {
	var q PersonalizedQuiz
	var questions, answers []byte
	if err := row.Scan(
		&q.ID,
		&q.AssignmentID,
		&q.StudentID,
		&questions,
		&q.Difficulty,
		&q.Deadline,
		&q.CreatedAt,
		&answers,
		&q.Score,
		&q.SubmittedAt,
		&q.Feedback,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &q.Questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if answers != nil {
		if err := json.Unmarshal(answers, &q.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	}
	return &q, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
