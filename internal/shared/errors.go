package shared

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates a detail lookup for a record that no longer exists.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAuth indicates a missing or expired session.
	ErrAuth = errors.New("authentication required")
	// ErrQuery indicates the backend rejected a read.
	ErrQuery = errors.New("query failed")
	// ErrMutation indicates the backend rejected a write.
	ErrMutation = errors.New("mutation failed")
	// ErrValidation indicates local validation failed before any backend call.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// ValidationError carries a field-level message shown to the operator.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// UserSafeMessage maps an error onto a message suitable for a toast.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		return vErr.Message
	case errors.Is(err, ErrInvalidCredentials):
		return "이메일 또는 비밀번호가 올바르지 않습니다."
	case errors.Is(err, ErrAuth):
		return "로그인이 필요합니다. 다시 로그인해 주세요."
	case errors.Is(err, ErrNotFound):
		return "요청한 데이터를 찾을 수 없습니다."
	case errors.Is(err, ErrDuplicate):
		return "이미 등록된 데이터입니다."
	case errors.Is(err, ErrValidation):
		return "입력값을 확인해 주세요."
	case errors.Is(err, ErrMutation):
		return "저장에 실패했습니다: " + trimDetail(err)
	case errors.Is(err, ErrQuery):
		return "데이터를 불러오지 못했습니다."
	default:
		return "처리 중 오류가 발생했습니다. 잠시 후 다시 시도해 주세요."
	}
}

func trimDetail(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 {
		msg = msg[idx+2:]
	}
	return msg
}
