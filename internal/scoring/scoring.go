// Package scoring grades a set of submitted answers against an exam's
// question set. Manual submission and the expiration sweeper both call Score,
// so a given input always produces the same Outcome.
package scoring

import (
	"github.com/stemsi/exstem-proctor/internal/model"
)

// Outcome is the grading of one attempt.
type Outcome struct {
	Score       int
	TotalPoints int
	Answers     []model.AnswerRecord
}

// Score grades answers against questions.
//
// Only answers whose question id is in the exam are graded; unknown ids are
// ignored. TotalPoints is the number of questions in the exam, so unanswered
// questions count against the student. timeSpent is optional and only copied
// into the frozen records, which follow the exam's question order.
func Score(answers model.AnswerMap, timeSpent model.TimeSpentMap, questions []model.Question) Outcome {
	out := Outcome{
		TotalPoints: len(questions),
		Answers:     make([]model.AnswerRecord, 0, len(answers)),
	}

	for _, q := range questions {
		qid := q.ID.String()
		selected, ok := answers[qid]
		if !ok {
			continue
		}
		correct := selected == q.CorrectOption
		if correct {
			out.Score++
		}
		out.Answers = append(out.Answers, model.AnswerRecord{
			QuestionID:     qid,
			SelectedOption: selected,
			IsCorrect:      correct,
			TimeSpent:      timeSpent[qid],
		})
	}

	return out
}
