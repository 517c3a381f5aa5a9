package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// QuestionRepository is a read-only view of the question bank.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByIDs fetches questions by id, returned in the order of ids.
// Ids with no matching question are skipped.
func (r *QuestionRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	if len(ids) == 0 {
		return []model.Question{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, question_text, options, correct_option, subject, difficulty
		 FROM questions
		 WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]model.Question, len(ids))
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.QuestionText, &q.Options, &q.CorrectOption,
			&q.Subject, &q.Difficulty); err != nil {
			return nil, err
		}
		byID[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	questions := make([]model.Question, 0, len(byID))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

// ListForExam fetches the exam's ordered question set.
func (r *QuestionRepository) ListForExam(ctx context.Context, exam *model.Exam) ([]model.Question, error) {
	return r.ListByIDs(ctx, exam.QuestionIDs)
}
