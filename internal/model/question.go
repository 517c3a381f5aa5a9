package model

import (
	"github.com/google/uuid"
)

// Difficulty grades a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Question represents a single multiple-choice question from the question bank.
// It is read-only while an exam is active.
type Question struct {
	ID            uuid.UUID  `json:"id"`
	QuestionText  string     `json:"question_text"`
	Options       []string   `json:"options"`
	CorrectOption int        `json:"correct_option"`
	Subject       string     `json:"subject"`
	Difficulty    Difficulty `json:"difficulty"`
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID           uuid.UUID `json:"id"`
	QuestionText string    `json:"question_text"`
	Options      []string  `json:"options"`
	OrderNum     int       `json:"order_num"`
}
