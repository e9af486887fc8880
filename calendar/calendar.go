// Package calendar converts instants into per-user calendar dates and measures the distance
// between dates without going through durations, so daylight-saving shifts never change a result.
package calendar

import (
	"database/sql/driver"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const layout = "2006-01-02"

// Date is a (year, month, day) triple evaluated in some timezone. The zero Date means "absent".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IsZero reports whether d is the absent date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return fromDays(d.days() + n)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.days() < other.days()
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.days() > other.days()
}

// days returns the civil day number of d, counted from 1970-01-01.
// Howard Hinnant's days_from_civil.
func (d Date) days() int {
	y := d.Year
	m := int(d.Month)
	if m <= 2 {
		y--
	}
	era := y
	if era < 0 {
		era -= 399
	}
	era /= 400
	yoe := y - era*400
	mp := (m + 9) % 12
	doy := (153*mp+2)/5 + d.Day - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

func fromDays(z int) Date {
	z += 719468
	era := z
	if era < 0 {
		era -= 146096
	}
	era /= 146097
	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	y := yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	day := doy - (153*mp+2)/5 + 1
	m := mp + 3
	if m > 12 {
		m -= 12
	}
	if m <= 2 {
		y++
	}
	return Date{Year: y, Month: time.Month(m), Day: day}
}

// Value stores the date as YYYY-MM-DD, or NULL when absent.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan reads a date column stored as text or as a driver DATE.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case string:
		return d.parseInto(v)
	case []byte:
		return d.parseInto(string(v))
	case time.Time:
		*d = DateOf(v)
		return nil
	default:
		return fmt.Errorf("calendar: cannot scan %T into Date", src)
	}
}

func (d *Date) parseInto(s string) error {
	if s == "" {
		*d = Date{}
		return nil
	}
	if len(s) > len(layout) {
		s = s[:len(layout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// GormDataType keeps gorm from treating Date as an embedded struct.
func (Date) GormDataType() string {
	return "string"
}

// MarshalJSON renders the date as "YYYY-MM-DD", or null when absent.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts "YYYY-MM-DD" or null.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("calendar: invalid date literal %s", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var locations sync.Map // zone name -> *time.Location

// Location resolves an IANA zone identifier. Unknown or empty zones resolve to UTC and ok=false.
func Location(timezone string) (loc *time.Location, ok bool) {
	if timezone == "" {
		return time.UTC, false
	}
	if cached, hit := locations.Load(timezone); hit {
		return cached.(*time.Location), true
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC, false
	}
	locations.Store(timezone, loc)
	return loc, true
}

// LocalDate converts instant to a calendar date in timezone. An unrecognized zone degrades to UTC;
// the fallback is logged and never returned as an error.
func LocalDate(instant time.Time, timezone string) Date {
	loc, ok := Location(timezone)
	if !ok {
		zap.L().Warn("unknown timezone, falling back to UTC", zap.String("timezone", timezone))
	}
	return DateOf(instant.In(loc))
}

// DayDistance returns the absolute number of calendar days between a and b.
func DayDistance(a, b Date) int {
	n := b.days() - a.days()
	if n < 0 {
		return -n
	}
	return n
}

// IsSameDay reports whether a and b are the same calendar date.
func IsSameDay(a, b Date) bool {
	return a == b
}

// SameMonth reports whether two instants fall in the same calendar month in timezone.
func SameMonth(a, b time.Time, timezone string) bool {
	loc, _ := Location(timezone)
	ay, am, _ := a.In(loc).Date()
	by, bm, _ := b.In(loc).Date()
	return ay == by && am == bm
}
