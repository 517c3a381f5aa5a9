package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ViolationRepository owns the append-only violation log.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

// Record appends v and bumps the session's violation counter in one
// transaction. The counter update only matches a live session, and the
// suspension flag is computed from the pre-increment count in the same
// statement, so exactly one report observes the threshold crossing.
// Returns ErrNotFound when no live session matched.
func (r *ViolationRepository) Record(ctx context.Context, v *model.Violation, threshold int) (count int, crossed bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	err = tx.QueryRow(ctx,
		`INSERT INTO violations (exam_id, student_id, type, message, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		v.ExamID, v.StudentID, v.Type, v.Message, v.CreatedAt,
	).Scan(&v.ID)
	if err != nil {
		return 0, false, fmt.Errorf("insert violation: %w", err)
	}

	err = tx.QueryRow(ctx,
		`UPDATE exam_sessions
		 SET violation_count = violation_count + 1,
		     is_suspended = (violation_count + 1 >= $3)
		 WHERE exam_id = $1 AND student_id = $2
		   AND status = 'IN_PROGRESS' AND NOT is_suspended
		 RETURNING violation_count, is_suspended`,
		v.ExamID, v.StudentID, threshold,
	).Scan(&count, &crossed)
	if err != nil {
		return 0, false, notFound(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("commit: %w", err)
	}
	return count, crossed, nil
}

// ListByExam returns the violation log of an exam, oldest first.
func (r *ViolationRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Violation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, student_id, type, message, created_at
		 FROM violations
		 WHERE exam_id = $1
		 ORDER BY created_at ASC, id ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Violation
	for rows.Next() {
		var v model.Violation
		if err := rows.Scan(&v.ID, &v.ExamID, &v.StudentID, &v.Type, &v.Message, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CountByType tallies the whole log by violation type.
func (r *ViolationRepository) CountByType(ctx context.Context) (map[model.ViolationType]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT type, COUNT(*) FROM violations GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.ViolationType]int)
	for rows.Next() {
		var t model.ViolationType
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		counts[t] = n
	}
	return counts, rows.Err()
}
