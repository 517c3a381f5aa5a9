package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

const resultColumns = `id, exam_id, student_id, score, total_points, answers,
	was_suspended, auto_submitted, submitted_at`

// ResultRepository reads finalized results. Results are written only through
// ExamSessionRepository.Finalize.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

func scanResult(row pgx.Row) (*model.Result, error) {
	res := &model.Result{}
	err := row.Scan(&res.ID, &res.ExamID, &res.StudentID, &res.Score, &res.TotalPoints,
		&res.Answers, &res.WasSuspended, &res.AutoSubmitted, &res.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Get retrieves the result of one student for one exam.
func (r *ResultRepository) Get(ctx context.Context, examID uuid.UUID, studentID int) (*model.Result, error) {
	res, err := scanResult(r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM results WHERE exam_id = $1 AND student_id = $2`,
		examID, studentID))
	if err != nil {
		return nil, notFound(err)
	}
	return res, nil
}

// Exists reports whether a result has been recorded for the pair.
func (r *ResultRepository) Exists(ctx context.Context, examID uuid.UUID, studentID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM results WHERE exam_id = $1 AND student_id = $2)`,
		examID, studentID,
	).Scan(&exists)
	return exists, err
}

// ListByExam returns all results of an exam ordered by score desc, then
// submission time asc.
func (r *ResultRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Result, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+`
		 FROM results
		 WHERE exam_id = $1
		 ORDER BY score DESC, submitted_at ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	return results, rows.Err()
}
