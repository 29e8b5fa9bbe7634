package invoices

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const civilLayout = "2006-01-02"

// CivilDate is a calendar date without time of day or location.
type CivilDate struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) CivilDate {
	y, m, d := t.Date()
	return CivilDate{Year: y, Month: m, Day: d}
}

// NewCivilDate builds a normalized date, so 2025-02-30 becomes 2025-03-02.
func NewCivilDate(year int, month time.Month, day int) CivilDate {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseCivilDate accepts YYYY-MM-DD and RFC 3339 timestamps. Timestamps keep the
// calendar day as written in their own offset.
func ParseCivilDate(raw string) (CivilDate, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(civilLayout, raw); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
		return DateOf(t), nil
	}
	return CivilDate{}, fmt.Errorf("invoices: invalid date %q", raw)
}

// IsZero reports whether the date is unset.
func (d CivilDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Compare returns -1, 0 or 1.
func (d CivilDate) Compare(o CivilDate) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

// Before reports whether d is strictly earlier than o.
func (d CivilDate) Before(o CivilDate) bool { return d.Compare(o) < 0 }

// After reports whether d is strictly later than o.
func (d CivilDate) After(o CivilDate) bool { return d.Compare(o) > 0 }

// AddDays shifts the date by n calendar days.
func (d CivilDate) AddDays(n int) CivilDate {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

// In returns midnight of the date in loc.
func (d CivilDate) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d CivilDate) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalJSON renders YYYY-MM-DD or null.
func (d CivilDate) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON reads a date string. Malformed values decode to the zero date.
func (d *CivilDate) UnmarshalJSON(data []byte) error {
	*d = CivilDate{}
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil || raw == "" {
		return nil
	}
	parsed, err := ParseCivilDate(raw)
	if err != nil {
		return nil
	}
	*d = parsed
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// DateRange bounds issued dates inclusively. A nil bound is open on that side.
type DateRange struct {
	From *CivilDate `json:"from"`
	To   *CivilDate `json:"to"`
}

// NewDateRange returns a closed range.
func NewDateRange(from, to CivilDate) *DateRange {
	return &DateRange{From: &from, To: &to}
}

// Bounded reports whether both ends are present. Only bounded ranges filter.
func (r *DateRange) Bounded() bool {
	return r != nil && r.From != nil && r.To != nil
}

// Ordered reports whether from <= to. Ranges that are not bounded are ordered.
func (r *DateRange) Ordered() bool {
	if !r.Bounded() {
		return true
	}
	return !r.From.After(*r.To)
}

// Contains reports whether d falls in the range. Every date, including the zero
// date, is contained in a range that is not bounded; the zero date is never
// contained in a bounded one.
func (r *DateRange) Contains(d CivilDate) bool {
	if !r.Bounded() {
		return true
	}
	if d.IsZero() {
		return false
	}
	return !d.Before(*r.From) && !d.After(*r.To)
}

// Clone returns a deep copy.
func (r *DateRange) Clone() *DateRange {
	if r == nil {
		return nil
	}
	out := &DateRange{}
	if r.From != nil {
		from := *r.From
		out.From = &from
	}
	if r.To != nil {
		to := *r.To
		out.To = &to
	}
	return out
}

func (r *DateRange) String() string {
	if r == nil {
		return "-:-"
	}
	from, to := "-", "-"
	if r.From != nil {
		from = r.From.String()
	}
	if r.To != nil {
		to = r.To.String()
	}
	return from + ":" + to
}
