package timeval

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Strings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		layout Layout
		want   Optional
	}{
		{"hh:mm", "08:58", LayoutAny, Some(MustTimeOfDay(8, 58, 0))},
		{"h:mm", "8:58", LayoutAny, Some(MustTimeOfDay(8, 58, 0))},
		{"hh:mm:ss", "17:40:12", LayoutAny, Some(MustTimeOfDay(17, 40, 12))},
		{"padded", "  09:05  ", LayoutAny, Some(MustTimeOfDay(9, 5, 0))},
		{"pm suffix", "5:02 PM", LayoutAny, Some(MustTimeOfDay(17, 2, 0))},
		{"am midnight", "12:15:00 AM", LayoutAny, Some(MustTimeOfDay(0, 15, 0))},
		{"noon", "12:00 pm", LayoutAny, Some(MustTimeOfDay(12, 0, 0))},
		{"datetime text", "1899-12-30 09:05:00", LayoutAny, Some(MustTimeOfDay(9, 5, 0))},
		{"day fraction text", "0.5", LayoutAny, Some(MustTimeOfDay(12, 0, 0))},
		{"strict hhmm accepts", "09:05", LayoutHHMM, Some(MustTimeOfDay(9, 5, 0))},
		{"strict hhmm rejects seconds", "09:05:00", LayoutHHMM, Absent},
		{"strict hhmmss rejects minutes only", "09:05", LayoutHHMMSS, Absent},
		{"empty", "", LayoutAny, Absent},
		{"dash", "--", LayoutAny, Absent},
		{"nan", "NaN", LayoutAny, Absent},
		{"hour out of range", "25:00", LayoutAny, Absent},
		{"minute out of range", "10:61", LayoutAny, Absent},
		{"13 pm", "13:00 PM", LayoutAny, Absent},
		{"words", "absent", LayoutAny, Absent},
		{"whole number", "8", LayoutAny, Absent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.raw, tt.layout))
		})
	}
}

func TestNormalize_NativeValues(t *testing.T) {
	t.Parallel()

	clock := time.Date(2024, 3, 15, 7, 45, 30, 0, time.UTC)
	assert.Equal(t, Some(MustTimeOfDay(7, 45, 30)), Normalize(clock, LayoutAny))
	assert.Equal(t, Absent, Normalize(time.Time{}, LayoutAny))

	assert.Equal(t, Some(MustTimeOfDay(1, 30, 0)), Normalize(90*time.Minute, LayoutAny))
	assert.Equal(t, Absent, Normalize(25*time.Hour, LayoutAny))

	// 0.375 of a day is 09:00
	assert.Equal(t, Some(MustTimeOfDay(9, 0, 0)), Normalize(0.375, LayoutAny))
	assert.Equal(t, Absent, Normalize(1.25, LayoutAny))
	assert.Equal(t, Absent, Normalize(math.NaN(), LayoutAny))

	assert.Equal(t, Absent, Normalize(nil, LayoutAny))
	assert.Equal(t, Absent, Normalize([]byte("09:00"), LayoutAny))
	assert.Equal(t, Some(MustTimeOfDay(6, 0, 0)), Normalize(MustTimeOfDay(6, 0, 0), LayoutAny))
}

func TestEarliestLatestNonNull(t *testing.T) {
	t.Parallel()

	early := Some(MustTimeOfDay(8, 58, 0))
	late := Some(MustTimeOfDay(9, 5, 0))

	assert.Equal(t, early, EarliestNonNull(late, early))
	assert.Equal(t, early, EarliestNonNull(early, late))
	assert.Equal(t, late, EarliestNonNull(Absent, late))
	assert.Equal(t, late, EarliestNonNull(late, Absent))
	assert.Equal(t, Absent, EarliestNonNull(Absent, Absent))

	assert.Equal(t, late, LatestNonNull(early, late))
	assert.Equal(t, late, LatestNonNull(late, early))
	assert.Equal(t, early, LatestNonNull(Absent, early))
}

func TestOptional_ValueAndScan(t *testing.T) {
	t.Parallel()

	v, err := Some(MustTimeOfDay(17, 40, 0)).Value()
	require.NoError(t, err)
	assert.Equal(t, "17:40:00", v)

	v, err = Absent.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	var o Optional
	require.NoError(t, o.Scan([]byte("09:05:00")))
	assert.Equal(t, Some(MustTimeOfDay(9, 5, 0)), o)

	require.NoError(t, o.Scan("0000-01-01T08:30:00Z"))
	assert.Equal(t, Some(MustTimeOfDay(8, 30, 0)), o)

	require.NoError(t, o.Scan(time.Date(0, 1, 1, 6, 15, 0, 0, time.UTC)))
	assert.Equal(t, Some(MustTimeOfDay(6, 15, 0)), o)

	require.NoError(t, o.Scan(nil))
	assert.Equal(t, Absent, o)

	require.Error(t, o.Scan("not a time"))
	require.Error(t, o.Scan(42))
}

func TestToDecimalHours(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 8.5, ToDecimalHours(MustTimeOfDay(8, 30, 0)), 1e-9)
	assert.InDelta(t, 7.76, ToDecimalHours(MustTimeOfDay(7, 45, 30)), 1e-9)
	assert.InDelta(t, 0.0, ToDecimalHours(MustTimeOfDay(0, 0, 0)), 1e-9)
	// 1 + 1/60 + 1/3600 = 1.01694...
	assert.InDelta(t, 1.02, ToDecimalHours(MustTimeOfDay(1, 1, 1)), 1e-9)
}

func TestNormalizeHours(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  any
		want string
		ok   bool
	}{
		{"h:mm:ss", "8:30:00", "8.5", true},
		{"long shift", "26:15:00", "26.25", true},
		{"h:mm", "7:45", "7.75", true},
		{"decimal text", "8.333", "8.33", true},
		{"float", 9.456, "9.46", true},
		{"int", 8, "8", true},
		{"duration", 450 * time.Minute, "7.5", true},
		{"time of day", MustTimeOfDay(4, 20, 0), "4.33", true},
		{"blank", "", "", false},
		{"negative", "-1", "", false},
		{"garbage", "eight", "", false},
		{"bad minutes", "8:75", "", false},
		{"nil", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NormalizeHours(tt.raw)
			require.Equal(t, tt.ok, got.Valid)
			if tt.ok {
				assert.True(t, decimal.RequireFromString(tt.want).Equal(got.Decimal), "got %s", got.Decimal)
			}
		})
	}
}

func TestNewTimeOfDay_Range(t *testing.T) {
	t.Parallel()

	_, err := NewTimeOfDay(24, 0, 0)
	require.Error(t, err)
	_, err = NewTimeOfDay(-1, 0, 0)
	require.Error(t, err)

	tod, err := NewTimeOfDay(23, 59, 59)
	require.NoError(t, err)
	assert.Equal(t, "23:59:59", tod.String())
	assert.Equal(t, 86399, tod.Seconds())
	assert.Equal(t, -1, MustTimeOfDay(8, 0, 0).Compare(tod))
}

func TestOptional_JSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(struct {
		In  Optional `json:"in"`
		Out Optional `json:"out"`
	}{In: Some(MustTimeOfDay(8, 58, 0))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"in":"08:58:00","out":null}`, string(data))

	var decoded struct {
		In  Optional `json:"in"`
		Out Optional `json:"out"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, Some(MustTimeOfDay(8, 58, 0)), decoded.In)
	assert.False(t, decoded.Out.Valid)

	var bad Optional
	assert.Error(t, json.Unmarshal([]byte(`"half past"`), &bad))
}
