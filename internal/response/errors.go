package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrStaffAccessOnly   ErrCode = "STAFF_ACCESS_ONLY"
	ErrNotEligible       ErrCode = "NOT_ELIGIBLE"
	ErrNotExamOwner      ErrCode = "NOT_EXAM_OWNER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrExamNotFound    ErrCode = "EXAM_NOT_FOUND"
	ErrSessionNotFound ErrCode = "SESSION_NOT_FOUND"
	ErrResultNotFound  ErrCode = "RESULT_NOT_FOUND"

	// ─── Exam session ──────────────────────────────────────────────────
	ErrAlreadySubmitted    ErrCode = "ALREADY_SUBMITTED"
	ErrAlreadyCompleted    ErrCode = "ALREADY_COMPLETED"
	ErrSessionSuspended    ErrCode = "SESSION_SUSPENDED"
	ErrSessionNotSuspended ErrCode = "SESSION_NOT_SUSPENDED"
	ErrExamExpired         ErrCode = "EXAM_EXPIRED"
	ErrExamNotPublished    ErrCode = "EXAM_NOT_PUBLISHED"
	ErrExamNotStarted      ErrCode = "EXAM_NOT_STARTED"
	ErrExamNotOpen         ErrCode = "EXAM_NOT_OPEN"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrStaffAccessOnly:
		return "Sumber daya ini terbatas untuk pengawas dan guru."
	case ErrNotEligible:
		return "Anda tidak terdaftar sebagai peserta ujian ini."
	case ErrNotExamOwner:
		return "Hanya pembuat ujian atau administrator yang dapat melakukan ini."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrExamNotFound:
		return "Ujian tidak ditemukan."
	case ErrSessionNotFound:
		return "Sesi ujian tidak ditemukan. Silakan mulai ujian terlebih dahulu."
	case ErrResultNotFound:
		return "Hasil ujian belum tersedia."

	// ─── Exam session ──────────────────────────────────────────────────
	case ErrAlreadySubmitted:
		return "Jawaban ujian ini sudah dikumpulkan."
	case ErrAlreadyCompleted:
		return "Sesi ujian ini sudah selesai."
	case ErrSessionSuspended:
		return "Sesi ujian Anda ditangguhkan. Hubungi pengawas."
	case ErrSessionNotSuspended:
		return "Sesi ujian ini tidak sedang ditangguhkan."
	case ErrExamExpired:
		return "Waktu ujian telah berakhir."
	case ErrExamNotPublished:
		return "Ujian ini belum dipublikasikan."
	case ErrExamNotStarted:
		return "Ujian ini belum dimulai."
	case ErrExamNotOpen:
		return "Ujian ini sudah ditutup."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
