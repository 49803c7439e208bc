package core

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

const DateLayout = "2006-01-02"

// accepted layouts, most specific first
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	DateLayout,
}

// Date is a calendar date as sent by the school API.
// The API is not consistent: some fields carry a plain date, others a full timestamp. Both are accepted
// and the time of day is kept so that two events on the same day still compare correctly.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses any of the accepted layouts.
func ParseDate(s string) (Date, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{t}, nil
		}
	}
	return Date{}, errors.Errorf("invalid date %q", s)
}

// Day returns the calendar day (year, month, day) of d at midnight UTC.
func (d Date) Day() Date {
	y, m, dd := d.Date()
	return NewDate(y, m, dd)
}

// DayIn returns the calendar day of d in loc. Plain dates (no time of day) are not shifted.
func (d Date) DayIn(loc *time.Location) Date {
	if d.IsZero() || d.isPlain() {
		return d.Day()
	}
	return Date{d.In(loc)}.Day()
}

func (d Date) isPlain() bool {
	h, m, s := d.Clock()
	return h == 0 && m == 0 && s == 0 && d.Nanosecond() == 0
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	if d.isPlain() {
		return d.Format(DateLayout)
	}
	return d.Format(time.RFC3339)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "decoding date")
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Yesterday returns the calendar day before `now` in now's location.
func Yesterday(now time.Time) Date {
	y, m, d := now.AddDate(0, 0, -1).Date()
	return NewDate(y, m, d)
}
