package models

import (
	"fmt"
	"time"
)

// RecurrenceKind identifies one of the four supported cadences.
type RecurrenceKind string

const (
	RecurrenceHourly  RecurrenceKind = "hourly"
	RecurrenceDaily   RecurrenceKind = "daily"
	RecurrenceWeekly  RecurrenceKind = "weekly"
	RecurrenceMonthly RecurrenceKind = "monthly"
)

// Recurrence is the tagged-variant schedule rule for a sync task. Each kind
// carries exactly the fields it needs, so illegal combinations are
// unrepresentable.
type Recurrence interface {
	Kind() RecurrenceKind

	// Matches reports whether the rule fires in the minute containing t.
	Matches(t time.Time) bool

	// Validate checks field ranges.
	Validate() error
}

// Hourly fires once per hour at the given minute.
type Hourly struct {
	Minute int
}

func (h Hourly) Kind() RecurrenceKind { return RecurrenceHourly }

func (h Hourly) Matches(t time.Time) bool { return t.Minute() == h.Minute }

func (h Hourly) Validate() error {
	if h.Minute < 0 || h.Minute > 59 {
		return fmt.Errorf("hourly schedule: minute must be in 0..59, got %d", h.Minute)
	}
	return nil
}

// Daily fires once per day at the given time.
type Daily struct {
	Hour   int
	Minute int
}

func (d Daily) Kind() RecurrenceKind { return RecurrenceDaily }

func (d Daily) Matches(t time.Time) bool {
	return t.Hour() == d.Hour && t.Minute() == d.Minute
}

func (d Daily) Validate() error {
	if d.Hour < 0 || d.Hour > 23 {
		return fmt.Errorf("daily schedule: hour must be in 0..23, got %d", d.Hour)
	}
	if d.Minute < 0 || d.Minute > 59 {
		return fmt.Errorf("daily schedule: minute must be in 0..59, got %d", d.Minute)
	}
	return nil
}

// Weekly fires once per week. Weekday follows ISO numbering: 1=Monday
// through 7=Sunday.
type Weekly struct {
	Weekday int
	Hour    int
	Minute  int
}

func (w Weekly) Kind() RecurrenceKind { return RecurrenceWeekly }

func (w Weekly) Matches(t time.Time) bool {
	return isoWeekday(t) == w.Weekday && t.Hour() == w.Hour && t.Minute() == w.Minute
}

func (w Weekly) Validate() error {
	if w.Weekday < 1 || w.Weekday > 7 {
		return fmt.Errorf("weekly schedule: day_of_week must be in 1..7, got %d", w.Weekday)
	}
	if w.Hour < 0 || w.Hour > 23 {
		return fmt.Errorf("weekly schedule: hour must be in 0..23, got %d", w.Hour)
	}
	if w.Minute < 0 || w.Minute > 59 {
		return fmt.Errorf("weekly schedule: minute must be in 0..59, got %d", w.Minute)
	}
	return nil
}

// Monthly fires once per month. Day is capped at 28 so the rule fires in
// every month, including February.
type Monthly struct {
	Day    int
	Hour   int
	Minute int
}

func (m Monthly) Kind() RecurrenceKind { return RecurrenceMonthly }

func (m Monthly) Matches(t time.Time) bool {
	return t.Day() == m.Day && t.Hour() == m.Hour && t.Minute() == m.Minute
}

func (m Monthly) Validate() error {
	if m.Day < 1 || m.Day > 28 {
		return fmt.Errorf("monthly schedule: day_of_month must be in 1..28, got %d", m.Day)
	}
	if m.Hour < 0 || m.Hour > 23 {
		return fmt.Errorf("monthly schedule: hour must be in 0..23, got %d", m.Hour)
	}
	if m.Minute < 0 || m.Minute > 59 {
		return fmt.Errorf("monthly schedule: minute must be in 0..59, got %d", m.Minute)
	}
	return nil
}

// isoWeekday maps time.Weekday (Sunday=0) to ISO numbering (Monday=1..Sunday=7).
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// ParseRecurrence builds a Recurrence from the flat wire/storage fields.
// Pointer fields distinguish absent from zero; minute is required for every
// kind so it is passed by value.
func ParseRecurrence(kind string, minute int, hour, dayOfWeek, dayOfMonth *int) (Recurrence, error) {
	var rec Recurrence
	switch RecurrenceKind(kind) {
	case RecurrenceHourly:
		rec = Hourly{Minute: minute}
	case RecurrenceDaily:
		if hour == nil {
			return nil, fmt.Errorf("daily schedule: schedule_hour is required")
		}
		rec = Daily{Hour: *hour, Minute: minute}
	case RecurrenceWeekly:
		if hour == nil {
			return nil, fmt.Errorf("weekly schedule: schedule_hour is required")
		}
		if dayOfWeek == nil {
			return nil, fmt.Errorf("weekly schedule: schedule_day_of_week is required")
		}
		rec = Weekly{Weekday: *dayOfWeek, Hour: *hour, Minute: minute}
	case RecurrenceMonthly:
		if hour == nil {
			return nil, fmt.Errorf("monthly schedule: schedule_hour is required")
		}
		if dayOfMonth == nil {
			return nil, fmt.Errorf("monthly schedule: schedule_day_of_month is required")
		}
		rec = Monthly{Day: *dayOfMonth, Hour: *hour, Minute: minute}
	default:
		return nil, fmt.Errorf("unknown schedule_type %q", kind)
	}

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// RecurrenceFields flattens a Recurrence back into the wire/storage fields.
// Fields a kind does not use come back nil.
func RecurrenceFields(rec Recurrence) (kind string, minute int, hour, dayOfWeek, dayOfMonth *int) {
	switch r := rec.(type) {
	case Hourly:
		return string(RecurrenceHourly), r.Minute, nil, nil, nil
	case Daily:
		h := r.Hour
		return string(RecurrenceDaily), r.Minute, &h, nil, nil
	case Weekly:
		h, wd := r.Hour, r.Weekday
		return string(RecurrenceWeekly), r.Minute, &h, &wd, nil
	case Monthly:
		h, dom := r.Hour, r.Day
		return string(RecurrenceMonthly), r.Minute, &h, nil, &dom
	}
	return "", 0, nil, nil, nil
}
