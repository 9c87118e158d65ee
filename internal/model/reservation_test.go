package model

import (
	"errors"
	"testing"
	"time"
)

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	v, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q) error = %v", s, err)
	}
	return v
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q) error = %v", s, err)
	}
	return d
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "HH:MM", in: "14:00", want: "14:00"},
		{name: "HH:MM:SS", in: "09:30:15", want: "09:30:15"},
		{name: "小数秒付き", in: "22:00:00.000000", want: "22:00"},
		{name: "不正な形式", in: "25:00", wantErr: true},
		{name: "空文字", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimeOfDay() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.String() != tt.want {
				t.Errorf("ParseTimeOfDay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWindow(t *testing.T) {
	manila, err := time.LoadLocation("Asia/Manila")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	tests := []struct {
		name         string
		start, end   string
		wantDuration time.Duration
		wantEndDay   int
	}{
		{name: "日中の利用", start: "14:00", end: "16:00", wantDuration: 2 * time.Hour, wantEndDay: 1},
		{name: "夜間利用(翌日終了)", start: "22:00", end: "02:00", wantDuration: 4 * time.Hour, wantEndDay: 2},
		{name: "同時刻は24時間扱い", start: "10:00", end: "10:00", wantDuration: 24 * time.Hour, wantEndDay: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Window{EventDate: mustDate(t, "2025-03-01"), Start: mustTime(t, tt.start), End: mustTime(t, tt.end)}

			if got := w.Duration(); got != tt.wantDuration {
				t.Errorf("Window.Duration() = %v, want %v", got, tt.wantDuration)
			}
			start, end := w.Bounds(manila)
			if end.Sub(start) != tt.wantDuration {
				t.Errorf("Window.Bounds() span = %v, want %v", end.Sub(start), tt.wantDuration)
			}
			if end.Day() != tt.wantEndDay {
				t.Errorf("Window.Bounds() end day = %v, want %v", end.Day(), tt.wantEndDay)
			}
			if start.Location() != manila {
				t.Errorf("Window.Bounds() location = %v, want %v", start.Location(), manila)
			}
		})
	}
}

func TestWindowOverlaps(t *testing.T) {
	base := Window{EventDate: mustDate(t, "2025-03-01"), Start: mustTime(t, "14:00"), End: mustTime(t, "16:00")}

	tests := []struct {
		name  string
		other Window
		want  bool
	}{
		{name: "一部重複", other: Window{EventDate: base.EventDate, Start: mustTime(t, "15:00"), End: mustTime(t, "17:00")}, want: true},
		{name: "包含", other: Window{EventDate: base.EventDate, Start: mustTime(t, "14:30"), End: mustTime(t, "15:00")}, want: true},
		{name: "終了と開始が接する", other: Window{EventDate: base.EventDate, Start: mustTime(t, "16:00"), End: mustTime(t, "18:00")}, want: false},
		{name: "開始と終了が接する", other: Window{EventDate: base.EventDate, Start: mustTime(t, "12:00"), End: mustTime(t, "14:00")}, want: false},
		{name: "別日", other: Window{EventDate: mustDate(t, "2025-03-02"), Start: mustTime(t, "14:00"), End: mustTime(t, "16:00")}, want: false},
		{name: "前日の夜間利用と重複", other: Window{EventDate: mustDate(t, "2025-02-28"), Start: mustTime(t, "22:00"), End: mustTime(t, "15:00")}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Overlaps(tt.other); got != tt.want {
				t.Errorf("Window.Overlaps() = %v, want %v", got, tt.want)
			}
			if got := tt.other.Overlaps(base); got != tt.want {
				t.Errorf("Window.Overlaps() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	if st, err := ParseStatus(" cancellation_requested "); err != nil || st != StatusCancellationRequested {
		t.Errorf("ParseStatus() = %v, %v", st, err)
	}

	_, err := ParseStatus("archived")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("ParseStatus() error = %v, want ErrValidation", err)
	}
}

func TestStatusOccupiesSlot(t *testing.T) {
	occupying := map[Status]bool{}
	for _, s := range SlotOccupyingStatuses() {
		occupying[s] = true
	}
	for _, s := range allStatuses {
		if s.OccupiesSlot() != occupying[s] {
			t.Errorf("%s.OccupiesSlot() = %v", s, s.OccupiesSlot())
		}
		if s.OccupiesSlot() == s.IsTerminal() {
			t.Errorf("%s must be either terminal or slot occupying", s)
		}
	}
}

func TestReservationIsRenter(t *testing.T) {
	uid := int64(5)
	r := Reservation{RenterUserID: &uid}
	if !r.IsRenter(5) {
		t.Error("IsRenter(5) = false, want true")
	}
	if r.IsRenter(6) {
		t.Error("IsRenter(6) = true, want false")
	}

	guest := Reservation{}
	if guest.IsRenter(0) {
		t.Error("guest reservation must not belong to anyone")
	}
}

func TestValidationError(t *testing.T) {
	verr := NewValidationError("email", "required")
	verr.Add("email", "second")
	verr.Add("first_name", "required")

	if verr.Fields["email"] != "required" {
		t.Errorf("Add() overwrote first message: %v", verr.Fields["email"])
	}
	if !errors.Is(verr, ErrValidation) {
		t.Error("errors.Is(ValidationError, ErrValidation) = false")
	}
	want := "validation failed: email: required; first_name: required"
	if verr.Error() != want {
		t.Errorf("Error() = %q, want %q", verr.Error(), want)
	}
	if !IsDomainError(verr) {
		t.Error("IsDomainError(ValidationError) = false")
	}
}
