package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrValidation はValidationErrorとの比較に使います
	ErrValidation = errors.New("validation failed")
	// ErrNotFound は会場または予約が存在しない場合に返されます
	ErrNotFound = errors.New("not found")
	// ErrVenueClosed は会場が受付を停止している場合に返されます
	ErrVenueClosed = errors.New("venue is closed")
	// ErrSlotUnavailable は要求された枠が既存の予約と重なる場合に返されます
	ErrSlotUnavailable = errors.New("requested slot is unavailable")
	// ErrUnauthorized は操作者に権限がない場合に返されます
	ErrUnauthorized = errors.New("not permitted")
	// ErrInvalidTransition は遷移表に存在しない遷移が要求された場合に返されます
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrConflict は楽観的排他制御で競合に負けた場合に返されます
	ErrConflict = errors.New("reservation was modified concurrently")
	// ErrStorageUnavailable は一時的なインフラ障害を表します
	ErrStorageUnavailable = errors.New("storage unavailable, please try again")
)

// ValidationError はフィールド単位の入力エラーをまとめたものです
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

// NewValidationError creates a ValidationError with a single field message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add はフィールドのエラーを追加します。既にある場合は最初のメッセージを残します
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// HasErrors reports whether any field error was recorded.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

// Is makes errors.Is(err, ErrValidation) succeed for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IsDomainError は利用者に返してよい業務エラーかどうかを判定します
// それ以外はストレージ障害として扱い、原因は利用者に返しません
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrValidation,
		ErrNotFound,
		ErrVenueClosed,
		ErrSlotUnavailable,
		ErrUnauthorized,
		ErrInvalidTransition,
		ErrConflict,
		ErrStorageUnavailable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
