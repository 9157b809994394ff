// Package timeval normalizes spreadsheet cell values into times of day.
//
// Biometric exports mix text cells ("08:58", "17:40:12", "5:02 PM"), native
// spreadsheet times (fractions of a day) and blanks. Normalize never fails:
// anything it cannot read with confidence becomes Absent, because a malformed
// punch is a data-quality fact about the row, not a fault of the pipeline.
package timeval

import (
	"database/sql/driver"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const secondsPerDay = 24 * 60 * 60

// TimeOfDay is a wall-clock time with second precision and no date or zone.
type TimeOfDay struct {
	sec int32 // seconds since midnight, [0, 86400)
}

// NewTimeOfDay validates the components and builds a TimeOfDay.
func NewTimeOfDay(hour, minute, second int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %02d:%02d:%02d out of range", hour, minute, second)
	}
	return TimeOfDay{sec: int32(hour*3600 + minute*60 + second)}, nil
}

// MustTimeOfDay is NewTimeOfDay for constants; it panics on invalid input.
func MustTimeOfDay(hour, minute, second int) TimeOfDay {
	t, err := NewTimeOfDay(hour, minute, second)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) Hour() int   { return int(t.sec) / 3600 }
func (t TimeOfDay) Minute() int { return int(t.sec) % 3600 / 60 }
func (t TimeOfDay) Second() int { return int(t.sec) % 60 }

// Seconds returns the number of seconds since midnight.
func (t TimeOfDay) Seconds() int { return int(t.sec) }

// Compare returns -1, 0 or +1. There is no notion of crossing midnight.
func (t TimeOfDay) Compare(u TimeOfDay) int {
	switch {
	case t.sec < u.sec:
		return -1
	case t.sec > u.sec:
		return 1
	default:
		return 0
	}
}

func (t TimeOfDay) Before(u TimeOfDay) bool { return t.sec < u.sec }
func (t TimeOfDay) After(u TimeOfDay) bool  { return t.sec > u.sec }

// String formats as HH:MM:SS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// Optional is a TimeOfDay that may be Absent. The zero value is Absent.
// It is stored as a nullable TIME column holding "HH:MM:SS".
type Optional struct {
	Time  TimeOfDay
	Valid bool
}

// Absent is the missing time of day.
var Absent = Optional{}

// Some wraps a present time of day.
func Some(t TimeOfDay) Optional {
	return Optional{Time: t, Valid: true}
}

// String returns HH:MM:SS, or "none" when absent.
func (o Optional) String() string {
	if !o.Valid {
		return "none"
	}
	return o.Time.String()
}

// EarliestNonNull returns the earlier of two values; an absent side yields the other.
func EarliestNonNull(a, b Optional) Optional {
	switch {
	case !a.Valid:
		return b
	case !b.Valid:
		return a
	case b.Time.Before(a.Time):
		return b
	default:
		return a
	}
}

// LatestNonNull returns the later of two values; an absent side yields the other.
func LatestNonNull(a, b Optional) Optional {
	switch {
	case !a.Valid:
		return b
	case !b.Valid:
		return a
	case b.Time.After(a.Time):
		return b
	default:
		return a
	}
}

// Value implements driver.Valuer.
func (o Optional) Value() (driver.Value, error) {
	if !o.Valid {
		return nil, nil
	}
	return o.Time.String(), nil
}

// Scan implements sql.Scanner for TIME columns returned as text, bytes or time.Time.
func (o *Optional) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*o = Absent
		return nil
	case time.Time:
		*o = fromClock(v)
		return nil
	case []byte:
		return o.scanString(string(v))
	case string:
		return o.scanString(v)
	default:
		return fmt.Errorf("timeval: cannot scan %T into Optional", src)
	}
}

func (o *Optional) scanString(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*o = Absent
		return nil
	}
	// Drivers may return a full timestamp for TIME columns.
	if i := strings.LastIndexAny(s, " T"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.IndexAny(s, ".+Z"); i >= 0 {
		s = s[:i]
	}
	parsed := Normalize(s, LayoutAny)
	if !parsed.Valid {
		return fmt.Errorf("timeval: invalid stored time %q", s)
	}
	*o = parsed
	return nil
}

// MarshalJSON renders "HH:MM:SS" or null.
func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return []byte(`"` + o.Time.String() + `"`), nil
}

// UnmarshalJSON accepts null or any string Normalize understands.
func (o *Optional) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*o = Absent
		return nil
	}
	unquoted, err := strconv.Unquote(s)
	if err != nil {
		return fmt.Errorf("timeval: invalid JSON time %s", s)
	}
	return o.scanString(unquoted)
}

// Layout restricts which textual forms Normalize accepts.
type Layout int

const (
	// LayoutAny accepts H:MM and H:MM:SS, both with an optional AM/PM suffix.
	LayoutAny Layout = iota
	// LayoutHHMM accepts only hours and minutes.
	LayoutHHMM
	// LayoutHHMMSS accepts only hours, minutes and seconds.
	LayoutHHMMSS
)

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?\s*([AaPp][Mm])?$`)

// Normalize converts a raw cell value into an Optional time of day.
// Accepted inputs are strings in the given layout, time.Time, time.Duration
// below 24h, TimeOfDay, Optional and spreadsheet fractions of a day (float64
// in [0, 1)). Everything else, including malformed strings, is Absent.
func Normalize(raw any, layout Layout) Optional {
	switch v := raw.(type) {
	case nil:
		return Absent
	case Optional:
		return v
	case TimeOfDay:
		return Some(v)
	case time.Time:
		if v.IsZero() {
			return Absent
		}
		return fromClock(v)
	case time.Duration:
		if v < 0 || v >= 24*time.Hour {
			return Absent
		}
		return Some(TimeOfDay{sec: int32(v / time.Second)})
	case float64:
		return fromDayFraction(v)
	case float32:
		return fromDayFraction(float64(v))
	case string:
		return parseClock(v, layout)
	case fmt.Stringer:
		return parseClock(v.String(), layout)
	default:
		return Absent
	}
}

func fromClock(t time.Time) Optional {
	return Some(TimeOfDay{sec: int32(t.Hour()*3600 + t.Minute()*60 + t.Second())})
}

func fromDayFraction(f float64) Optional {
	if math.IsNaN(f) || f < 0 || f >= 1 {
		return Absent
	}
	sec := int32(math.Round(f * secondsPerDay))
	if sec >= secondsPerDay {
		return Absent
	}
	return Some(TimeOfDay{sec: sec})
}

func isBlank(s string) bool {
	switch strings.ToLower(s) {
	case "", "-", "--", "nan", "nat", "null", "none", "n/a":
		return true
	}
	return false
}

func parseClock(s string, layout Layout) Optional {
	s = strings.TrimSpace(s)
	if isBlank(s) {
		return Absent
	}

	if layout == LayoutAny {
		// Datetime text such as "1899-12-30 09:05:00" carries the time after the space.
		if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
			return fromClock(t)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return fromDayFraction(f)
		}
	}

	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return Absent
	}
	hasSeconds := m[3] != ""
	switch {
	case layout == LayoutHHMM && hasSeconds:
		return Absent
	case layout == LayoutHHMMSS && !hasSeconds:
		return Absent
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	second := 0
	if hasSeconds {
		second, _ = strconv.Atoi(m[3])
	}

	if meridiem := strings.ToUpper(m[4]); meridiem != "" {
		if hour < 1 || hour > 12 {
			return Absent
		}
		hour %= 12
		if meridiem == "PM" {
			hour += 12
		}
	}

	t, err := NewTimeOfDay(hour, minute, second)
	if err != nil {
		return Absent
	}
	return Some(t)
}

var (
	sixty     = decimal.NewFromInt(60)
	thirtySix = decimal.NewFromInt(3600)
)

// ToDecimalHours returns hours + minutes/60 + seconds/3600 rounded to 2 decimals.
func ToDecimalHours(t TimeOfDay) float64 {
	f, _ := decimalHours(t.Hour(), t.Minute(), t.Second()).Float64()
	return f
}

func decimalHours(h, m, s int) decimal.Decimal {
	return decimal.NewFromInt(int64(h)).
		Add(decimal.NewFromInt(int64(m)).Div(sixty)).
		Add(decimal.NewFromInt(int64(s)).Div(thirtySix)).
		Round(2)
}

var durationPattern = regexp.MustCompile(`^(\d{1,3}):(\d{2})(?::(\d{2}))?$`)

// NormalizeHours converts an hours-worked cell into decimal hours rounded to 2 places.
// Accepted inputs are "H:MM[:SS]" strings (hours may exceed 23), plain decimal
// numbers, time.Duration, TimeOfDay and time.Time. Anything else is invalid.
func NormalizeHours(raw any) decimal.NullDecimal {
	switch v := raw.(type) {
	case nil:
		return decimal.NullDecimal{}
	case decimal.Decimal:
		return valid(v.Round(2))
	case time.Duration:
		if v < 0 {
			return decimal.NullDecimal{}
		}
		return valid(decimal.NewFromFloat(v.Hours()).Round(2))
	case TimeOfDay:
		return valid(decimalHours(v.Hour(), v.Minute(), v.Second()))
	case time.Time:
		return valid(decimalHours(v.Hour(), v.Minute(), v.Second()))
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return decimal.NullDecimal{}
		}
		return valid(decimal.NewFromFloat(v).Round(2))
	case int:
		if v < 0 {
			return decimal.NullDecimal{}
		}
		return valid(decimal.NewFromInt(int64(v)))
	case string:
		return parseHours(v)
	default:
		return decimal.NullDecimal{}
	}
}

func parseHours(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if isBlank(s) {
		return decimal.NullDecimal{}
	}
	if m := durationPattern.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		secs := 0
		if m[3] != "" {
			secs, _ = strconv.Atoi(m[3])
		}
		if mins > 59 || secs > 59 {
			return decimal.NullDecimal{}
		}
		return valid(decimalHours(h, mins, secs))
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.NullDecimal{}
	}
	return valid(d.Round(2))
}

func valid(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
