package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	secondsPerDay = 24 * 60 * 60
	dateLayout    = "2006-01-02"
)

// TimeOfDay は0時からの経過秒数で時刻を表します
type TimeOfDay int

// ParseTimeOfDay は "15:04" または "15:04:05" 形式の時刻を解析します
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	// PostgreSQLのTIME型は小数秒を返すことがある
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}

	layouts := []string{"15:04:05", "15:04"}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q: expected HH:MM or HH:MM:SS", s)
}

// Clock returns the hour, minute and second components.
func (t TimeOfDay) Clock() (hour, min, sec int) {
	v := int(t)
	return v / 3600, (v % 3600) / 60, v % 60
}

func (t TimeOfDay) String() string {
	h, m, s := t.Clock()
	if s == 0 {
		return fmt.Sprintf("%02d:%02d", h, m)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Offset は0時からの経過時間を返します
func (t TimeOfDay) Offset() time.Duration {
	return time.Duration(t) * time.Second
}

// Scan implements sql.Scanner.
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseTimeOfDay(v)
		if err != nil {
			return err
		}
		*t = parsed
	case []byte:
		parsed, err := ParseTimeOfDay(string(v))
		if err != nil {
			return err
		}
		*t = parsed
	case time.Time:
		*t = TimeOfDay(v.Hour()*3600 + v.Minute()*60 + v.Second())
	default:
		return fmt.Errorf("unexpected type for time of day: %T", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (t TimeOfDay) Value() (driver.Value, error) {
	h, m, s := t.Clock()
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s), nil
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseDate は "2006-01-02" 形式の日付を解析します
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}

// FormatDate formats a calendar date as YYYY-MM-DD.
func FormatDate(d time.Time) string {
	return d.Format(dateLayout)
}

// Window は会場の予約枠(日付 + 半開区間の時刻)を表します
type Window struct {
	EventDate time.Time
	Start     TimeOfDay
	End       TimeOfDay
}

// Bounds は枠の開始・終了時刻を返します
// End <= Start の場合、終了は翌日として扱います(夜間利用)
func (w Window) Bounds(loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := w.EventDate.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)

	start := midnight.Add(w.Start.Offset())
	end := midnight.Add(w.End.Offset())
	if w.End <= w.Start {
		end = end.Add(24 * time.Hour)
	}
	return start, end
}

// Duration は翌日繰り越しを考慮した利用時間を返します
func (w Window) Duration() time.Duration {
	seconds := int(w.End) - int(w.Start)
	if seconds <= 0 {
		seconds += secondsPerDay
	}
	return time.Duration(seconds) * time.Second
}

// IsZeroLength reports whether start and end are the same clock time.
func (w Window) IsZeroLength() bool {
	return w.Start == w.End
}

// Overlaps は2つの枠が重なるかを判定します: s < e' AND s' < e
func (w Window) Overlaps(o Window) bool {
	s1, e1 := w.Bounds(time.UTC)
	s2, e2 := o.Bounds(time.UTC)
	return s1.Before(e2) && s2.Before(e1)
}
