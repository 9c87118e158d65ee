package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Status は予約のステータスを表します
type Status string

const (
	StatusPending               Status = "pending"
	StatusAccepted              Status = "accepted"
	StatusConfirmed             Status = "confirmed"
	StatusCancellationRequested Status = "cancellation_requested"
	StatusCancelled             Status = "cancelled"
	StatusRejected              Status = "rejected"
	StatusCompleted             Status = "completed"
)

var allStatuses = []Status{
	StatusPending,
	StatusAccepted,
	StatusConfirmed,
	StatusCancellationRequested,
	StatusCancelled,
	StatusRejected,
	StatusCompleted,
}

// ParseStatus は文字列をStatusに変換します
// 未知の値はデフォルトに寄せず、バリデーションエラーとして扱います
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if !st.Valid() {
		return "", NewValidationError("status", fmt.Sprintf("unknown reservation status %q", s))
	}
	return st, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, st := range allStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// IsTerminal は終端ステータス(completed, cancelled, rejected)かどうかを返します
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRejected
}

// OccupiesSlot は枠を占有するステータスかどうかを返します
// cancellation_requested は承認/却下されるまで枠を占有し続けます
func (s Status) OccupiesSlot() bool {
	return s.Valid() && !s.IsTerminal()
}

// SlotOccupyingStatuses は枠を占有するステータスの一覧を返します
func SlotOccupyingStatuses() []Status {
	return []Status{StatusPending, StatusAccepted, StatusConfirmed, StatusCancellationRequested}
}

// StatusStrings converts statuses into plain strings for SQL array parameters.
func StatusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (s Status) String() string {
	return string(s)
}

// Scan implements sql.Scanner.
func (s *Status) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("unexpected type for status: %T", src)
	}
	st := Status(raw)
	if !st.Valid() {
		return fmt.Errorf("unknown status value in database: %q", raw)
	}
	*s = st
	return nil
}

// Value implements driver.Valuer.
func (s Status) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status: %q", string(s))
	}
	return string(s), nil
}
