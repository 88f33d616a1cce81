package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Weekday is the day a timetable entry recurs on.
type Weekday string

const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
	Sunday    Weekday = "SUNDAY"
)

// Valid returns true when the day is a supported value.
func (d Weekday) Valid() bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	default:
		return false
	}
}

// ParseWeekday normalises user input such as "monday" or " Mon ".
func ParseWeekday(raw string) (Weekday, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if len(value) == 3 {
		for _, d := range []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday} {
			if strings.HasPrefix(string(d), value) {
				return d, nil
			}
		}
	}
	day := Weekday(value)
	if !day.Valid() {
		return "", fmt.Errorf("invalid day of week %q", raw)
	}
	return day, nil
}

// WeekdayOf returns the Weekday a calendar date falls on.
func WeekdayOf(t time.Time) Weekday {
	return Weekday(strings.ToUpper(t.Weekday().String()))
}

// ClockTime is a time of day with minute precision, stored as minutes after
// midnight. The zero value is 00:00.
type ClockTime int

const minutesPerDay = 24 * 60

// NewClockTime builds a ClockTime from hour and minute.
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ParseClockTime accepts "HH:MM" or "HH:MM:SS" (seconds must be zero). The
// hour may have one digit; anything after the last field is rejected.
func ParseClockTime(raw string) (ClockTime, error) {
	value := strings.TrimSpace(raw)
	layout := "15:04"
	if strings.Count(value, ":") == 2 {
		layout = "15:04:05"
	}
	parsed, err := time.Parse(layout, value)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", raw, err)
	}
	if parsed.Second() != 0 {
		return 0, fmt.Errorf("invalid time %q: seconds must be zero", raw)
	}
	return NewClockTime(parsed.Hour(), parsed.Minute()), nil
}

// String formats the time as HH:MM.
func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Valid reports whether t lies within a single day.
func (t ClockTime) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

// MarshalJSON encodes the time as "HH:MM".
func (t ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes "HH:MM".
func (t *ClockTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value stores the time in a Postgres TIME column.
func (t ClockTime) Value() (driver.Value, error) {
	return t.String() + ":00", nil
}

// Scan reads a Postgres TIME column.
func (t *ClockTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*t = NewClockTime(v.Hour(), v.Minute())
		return nil
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	case int64:
		*t = ClockTime(v)
		return nil
	case nil:
		*t = 0
		return nil
	default:
		return fmt.Errorf("unsupported clock time source %T", src)
	}
}

func (t *ClockTime) scanString(raw string) error {
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Overlaps reports whether the half-open windows [s1,e1) and [s2,e2) share
// any instant. Windows that only touch at an endpoint do not overlap.
func Overlaps(s1, e1, s2, e2 ClockTime) bool {
	return s1 < e2 && s2 < e1
}
