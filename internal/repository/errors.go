package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrNotFound is returned when the addressed row does not exist, or when a
	// conditional write matched no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a row exists but is not in a state the
	// write accepts.
	ErrConflict = errors.New("record state conflict")
	// ErrExamFinalized is returned by writes that would reopen work on an
	// exam whose results are already final.
	ErrExamFinalized = errors.New("exam results finalized")
)

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
