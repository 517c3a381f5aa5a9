package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

const sessionColumns = `id, exam_id, student_id, started_at, last_sync_at, finished_at,
	answers, time_spent, flagged, status, violation_count, is_suspended`

// ExamSessionRepository handles exam session data access. The unique
// (exam_id, student_id) constraint on exam_sessions and results is what every
// create-if-absent write here relies on.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := row.Scan(&s.ID, &s.ExamID, &s.StudentID, &s.StartedAt, &s.LastSyncAt, &s.FinishedAt,
		&s.Answers, &s.TimeSpent, &s.Flagged, &s.Status, &s.ViolationCount, &s.IsSuspended)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Get retrieves the session for a specific exam-student combination.
func (r *ExamSessionRepository) Get(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// CreateIfAbsent inserts a fresh in-progress session. When a session already
// exists for the pair (including one created by a concurrent caller) nothing
// is written, s is overwritten with the stored session and created is false.
func (r *ExamSessionRepository) CreateIfAbsent(ctx context.Context, s *model.ExamSession) (bool, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, student_id, status, started_at, last_sync_at)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id, started_at, last_sync_at`,
		s.ExamID, s.StudentID, model.SessionStatusInProgress, s.StartedAt,
	).Scan(&s.ID, &s.StartedAt, &s.LastSyncAt)
	if err == nil {
		s.Status = model.SessionStatusInProgress
		s.Answers = model.AnswerMap{}
		s.TimeSpent = model.TimeSpentMap{}
		s.Flagged = model.FlaggedMap{}
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("insert session: %w", err)
	}

	existing, err := r.Get(ctx, s.ExamID, s.StudentID)
	if err != nil {
		return false, fmt.Errorf("concurrent start detected, but fetch failed: %w", err)
	}
	*s = *existing
	return false, nil
}

// ReplaceProgress overwrites the per-question maps of a live (in-progress,
// not suspended) session. Returns ErrNotFound when no live session matched.
func (r *ExamSessionRepository) ReplaceProgress(
	ctx context.Context,
	examID uuid.UUID,
	studentID int,
	answers model.AnswerMap,
	timeSpent model.TimeSpentMap,
	flagged model.FlaggedMap,
	at time.Time,
) (*model.ExamSession, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`UPDATE exam_sessions
		 SET answers = $3, time_spent = $4, flagged = $5, last_sync_at = $6
		 WHERE exam_id = $1 AND student_id = $2
		   AND status = 'IN_PROGRESS' AND NOT is_suspended
		 RETURNING `+sessionColumns,
		examID, studentID, nonNil(answers), nonNil(timeSpent), nonNil(flagged), at))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// Finalize writes result and completes the session in one transaction.
// The session row is locked first so a student submission and the sweeper
// serialize on it; whichever inserts the result first wins and the other
// gets finalized=false with nothing written. result.WasSuspended is taken
// from the locked session row.
func (r *ExamSessionRepository) Finalize(ctx context.Context, result *model.Result) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var suspended bool
	if err := tx.QueryRow(ctx,
		`SELECT is_suspended FROM exam_sessions
		 WHERE exam_id = $1 AND student_id = $2
		 FOR UPDATE`, result.ExamID, result.StudentID,
	).Scan(&suspended); err != nil {
		return false, notFound(err)
	}
	result.WasSuspended = suspended

	err = tx.QueryRow(ctx,
		`INSERT INTO results (exam_id, student_id, score, total_points, answers,
		                      was_suspended, auto_submitted, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id`,
		result.ExamID, result.StudentID, result.Score, result.TotalPoints, result.Answers,
		result.WasSuspended, result.AutoSubmitted, result.SubmittedAt,
	).Scan(&result.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert result: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $3, finished_at = $4
		 WHERE exam_id = $1 AND student_id = $2`,
		result.ExamID, result.StudentID, model.SessionStatusCompleted, result.SubmittedAt,
	); err != nil {
		return false, fmt.Errorf("complete session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// Reinstate undoes a suspension: any result for the pair is deleted and the
// session goes back to in-progress with the given violation count. Returns
// ErrNotFound when there is no session and ErrConflict when the session is
// neither suspended nor completed by a suspended attempt. Returns
// ErrExamFinalized once the exam's results are final.
func (r *ExamSessionRepository) Reinstate(ctx context.Context, examID uuid.UUID, studentID int, violationCount int) (*model.ExamSession, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Held until commit so ExamRepository.MarkFinalized sees the reopened session.
	var finalized bool
	if err := tx.QueryRow(ctx,
		`SELECT results_finalized FROM exams WHERE id = $1 FOR SHARE`, examID,
	).Scan(&finalized); err != nil {
		return nil, notFound(err)
	}
	if finalized {
		return nil, ErrExamFinalized
	}

	var suspended bool
	if err := tx.QueryRow(ctx,
		`SELECT is_suspended FROM exam_sessions
		 WHERE exam_id = $1 AND student_id = $2
		 FOR UPDATE`, examID, studentID,
	).Scan(&suspended); err != nil {
		return nil, notFound(err)
	}

	if !suspended {
		var wasSuspended bool
		err := tx.QueryRow(ctx,
			`SELECT was_suspended FROM results WHERE exam_id = $1 AND student_id = $2`,
			examID, studentID,
		).Scan(&wasSuspended)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("check result: %w", err)
		}
		if !wasSuspended {
			return nil, ErrConflict
		}
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM results WHERE exam_id = $1 AND student_id = $2`, examID, studentID,
	); err != nil {
		return nil, fmt.Errorf("delete result: %w", err)
	}

	s, err := scanSession(tx.QueryRow(ctx,
		`UPDATE exam_sessions
		 SET is_suspended = FALSE, status = $3, violation_count = $4, finished_at = NULL
		 WHERE exam_id = $1 AND student_id = $2
		 RETURNING `+sessionColumns,
		examID, studentID, model.SessionStatusInProgress, violationCount))
	if err != nil {
		return nil, fmt.Errorf("reset session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s, nil
}

// ListByExam returns every session of an exam, optionally only in-progress ones.
func (r *ExamSessionRepository) ListByExam(ctx context.Context, examID uuid.UUID, onlyInProgress bool) ([]model.ExamSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM exam_sessions WHERE exam_id = $1`
	if onlyInProgress {
		query += ` AND status = 'IN_PROGRESS'`
	}
	query += ` ORDER BY started_at ASC`

	rows, err := r.pool.Query(ctx, query, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ListParticipants returns one row per session across all exams, with the
// number of logged violations and whether the attempt was ever suspended.
func (r *ExamSessionRepository) ListParticipants(ctx context.Context) ([]model.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.exam_id, s.student_id,
		        COALESCE(v.cnt, 0) AS violations,
		        (s.is_suspended OR COALESCE(res.was_suspended, FALSE)) AS suspended
		 FROM exam_sessions s
		 LEFT JOIN (
		     SELECT exam_id, student_id, COUNT(*) AS cnt
		     FROM violations
		     GROUP BY exam_id, student_id
		 ) v ON v.exam_id = s.exam_id AND v.student_id = s.student_id
		 LEFT JOIN results res ON res.exam_id = s.exam_id AND res.student_id = s.student_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.ExamID, &p.StudentID, &p.Violations, &p.Suspended); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nonNil[M ~map[string]V, V any](m M) M {
	if m == nil {
		return M{}
	}
	return m
}
