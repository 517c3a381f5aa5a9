package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

const examColumns = `id, title, author_id, question_ids, duration_minutes, start_time, end_time,
	status, results_finalized, allowed_groups, allowed_subgroups, violation_threshold,
	created_at, updated_at`

// ExamRepository handles exam data access. Exams are authored elsewhere; this
// core only reads them and moves them through close/finalize.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func scanExam(row pgx.Row) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.Title, &e.AuthorID, &e.QuestionIDs, &e.DurationMinutes,
		&e.StartTime, &e.EndTime, &e.Status, &e.ResultsFinalized,
		&e.AllowedGroups, &e.AllowedSubgroups, &e.Proctoring.ViolationThreshold,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e, err := scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// ListExpiredUnfinalized returns published exams whose end time has passed
// and whose results have not been finalized yet.
func (r *ExamRepository) ListExpiredUnfinalized(ctx context.Context, now time.Time) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+`
		 FROM exams
		 WHERE status = $1 AND end_time <= $2 AND NOT results_finalized
		 ORDER BY end_time ASC`,
		model.ExamStatusPublished, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// CloseNow pulls a published exam's end time back to at.
func (r *ExamRepository) CloseNow(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET end_time = LEAST(end_time, $2), updated_at = NOW()
		 WHERE id = $1 AND status = $3`,
		id, at, model.ExamStatusPublished)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// MarkFinalized closes the exam and sets results_finalized. Returns false
// when another caller finalized it first and ErrConflict while any session
// of the exam is still in progress without a result. The exam row lock
// orders it against ExamSessionRepository.Reinstate.
func (r *ExamRepository) MarkFinalized(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var finalized bool
	if err := tx.QueryRow(ctx,
		`SELECT results_finalized FROM exams WHERE id = $1 FOR UPDATE`, id,
	).Scan(&finalized); err != nil {
		return false, notFound(err)
	}
	if finalized {
		return false, nil
	}

	var live bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM exam_sessions s
		     WHERE s.exam_id = $1 AND s.status = $2
		       AND NOT EXISTS (SELECT 1 FROM results r WHERE r.exam_id = s.exam_id AND r.student_id = s.student_id))`,
		id, model.SessionStatusInProgress,
	).Scan(&live); err != nil {
		return false, fmt.Errorf("check live sessions: %w", err)
	}
	if live {
		return false, ErrConflict
	}

	if _, err := tx.Exec(ctx,
		`UPDATE exams SET status = $2, results_finalized = TRUE, updated_at = NOW() WHERE id = $1`,
		id, model.ExamStatusClosed,
	); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}
