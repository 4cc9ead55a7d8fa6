package goplist

import (
	"math"
	"time"
)

// Epoch2001 is the reference instant of binary plist dates.
var Epoch2001 = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// epoch2001Unix is Epoch2001 in Unix seconds.
const epoch2001Unix = 978307200

// Date is a point in time stored as seconds relative to Epoch2001, the
// binary format's native representation. Fractional seconds are kept.
type Date struct{ secs float64 }

// DateFromSeconds returns the Date secs seconds after Epoch2001.
func DateFromSeconds(secs float64) Date { return Date{secs: secs} }

// DateFromTime converts t, keeping nanosecond precision as far as a float64
// allows.
func DateFromTime(t time.Time) Date {
	whole := float64(t.Unix() - epoch2001Unix)
	return Date{secs: whole + float64(t.Nanosecond())/1e9}
}

func (Date) Kind() Kind  { return KindDate }
func (Date) plistValue() {}

// Seconds returns the offset from Epoch2001.
func (d Date) Seconds() float64 { return d.secs }

// Time converts the Date to a UTC time.Time rounded to the microsecond.
func (d Date) Time() time.Time {
	whole, frac := math.Modf(d.secs)
	usec := math.Round(frac * 1e6)
	return time.Unix(int64(whole)+epoch2001Unix, int64(usec)*int64(time.Microsecond)).UTC()
}

// dateTolerance absorbs the precision text formats drop (microseconds) and
// float64 rounding far from the epoch.
const dateTolerance = 1e-6

func (d Date) equal(o Date) bool {
	if d.secs == o.secs {
		return true
	}
	diff := math.Abs(d.secs - o.secs)
	return diff <= dateTolerance || diff <= math.Abs(d.secs)*1e-15
}

// isoDateLayout is the XML plist date layout; fractions are appended only
// when present.
const isoDateLayout = "2006-01-02T15:04:05.999999Z07:00"

func formatISODate(d Date) string {
	return d.Time().Format(isoDateLayout)
}

func parseISODate(s string) (Date, error) {
	// Accept RFC3339Nano (trailing zeros optional)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return DateFromTime(t2), nil
		}
		// Date-only values appear in some hand-written files.
		if t3, err3 := time.Parse(time.DateOnly, s); err3 == nil {
			return DateFromTime(t3), nil
		}
		return Date{}, err
	}
	return DateFromTime(t), nil
}
