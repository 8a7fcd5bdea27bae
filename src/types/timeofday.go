package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// TimeOfDay is a wall-clock time expressed in minutes since midnight.
// 24:00 (1440) is accepted so a window can end at midnight.
type TimeOfDay int

const (
	MinutesPerDay TimeOfDay = 24 * 60
)

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time of day out of range %q", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) Hour() int {
	return int(t) / 60
}

func (t TimeOfDay) Minute() int {
	return int(t) % 60
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t TimeOfDay) Value() (driver.Value, error) {
	return int64(t), nil
}

func (t *TimeOfDay) Scan(value any) error {
	switch v := value.(type) {
	case int64:
		*t = TimeOfDay(v)
	case int32:
		*t = TimeOfDay(v)
	case []byte:
		n, err := strconv.Atoi(string(v))
		if err != nil {
			return err
		}
		*t = TimeOfDay(n)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*t = TimeOfDay(n)
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", value)
	}
	return nil
}

// DaySet holds custom day-of-week codes (Monday=2 ... Sunday=8).
// An empty set marks a one-off booking.
type DaySet []int

func NewDaySet(days ...int) DaySet {
	set := DaySet{}
	for _, d := range days {
		if !slices.Contains(set, d) {
			set = append(set, d)
		}
	}
	slices.Sort(set)
	return set
}

func (d DaySet) Contains(day int) bool {
	return slices.Contains(d, day)
}

func (d DaySet) IsEmpty() bool {
	return len(d) == 0
}

// Intersects treats an empty set as every day.
func (d DaySet) Intersects(other DaySet) bool {
	if d.IsEmpty() || other.IsEmpty() {
		return true
	}
	for _, day := range d {
		if other.Contains(day) {
			return true
		}
	}
	return false
}

func (d DaySet) String() string {
	parts := make([]string, 0, len(d))
	for _, day := range d {
		parts = append(parts, strconv.Itoa(day))
	}
	return strings.Join(parts, ",")
}

func ParseDaySet(s string) (DaySet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DaySet{}, nil
	}
	days := []int{}
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid day code %q", part)
		}
		days = append(days, n)
	}
	return NewDaySet(days...), nil
}

func (d DaySet) Value() (driver.Value, error) {
	return d.String(), nil
}

func (d *DaySet) Scan(value any) error {
	var raw string
	switch v := value.(type) {
	case nil:
		*d = DaySet{}
		return nil
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into DaySet", value)
	}
	set, err := ParseDaySet(raw)
	if err != nil {
		return err
	}
	*d = set
	return nil
}
