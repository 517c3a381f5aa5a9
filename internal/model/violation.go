package model

import (
	"time"

	"github.com/google/uuid"
)

// ViolationType tags the kind of integrity breach the client detected.
type ViolationType string

const (
	ViolationTabSwitch    ViolationType = "TAB_SWITCH"
	ViolationFullscreen   ViolationType = "FULLSCREEN_EXIT"
	ViolationCopyPaste    ViolationType = "COPY_PASTE"
	ViolationWindowBlur   ViolationType = "WINDOW_BLUR"
	ViolationMultipleFace ViolationType = "MULTIPLE_FACES"
	ViolationOther        ViolationType = "OTHER"
)

// Valid reports whether t is one of the known violation types.
func (t ViolationType) Valid() bool {
	switch t {
	case ViolationTabSwitch, ViolationFullscreen, ViolationCopyPaste,
		ViolationWindowBlur, ViolationMultipleFace, ViolationOther:
		return true
	}
	return false
}

// Violation is an append-only audit record. It is never updated or deleted.
type Violation struct {
	ID        int64         `json:"id"`
	ExamID    uuid.UUID     `json:"exam_id"`
	StudentID int           `json:"student_id"`
	Type      ViolationType `json:"type"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"created_at"`
}

// RecordViolationRequest is the payload a client sends when it detects a breach.
type RecordViolationRequest struct {
	Type    ViolationType `json:"type" binding:"required,violation_type"`
	Message string        `json:"message" binding:"max=1000"`
}

// ViolationOutcome is the session state right after a violation was counted.
type ViolationOutcome struct {
	Violation      *Violation `json:"violation"`
	ViolationCount int        `json:"violation_count"`
	Threshold      int        `json:"threshold"`
	// Suspended is true only for the single report that crossed the threshold.
	Suspended bool `json:"suspended"`
}
