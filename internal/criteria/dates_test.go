package criteria

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAbsoluteRangeYearEquality(t *testing.T) {
	r, err := AbsoluteRange(OpEqual, day(2020, time.January, 1), UnitYear)
	require.NoError(t, err)

	assert.True(t, r.Contains(day(2020, time.January, 1)))
	assert.True(t, r.Contains(day(2020, time.June, 15)))
	assert.True(t, r.Contains(day(2020, time.December, 31)))
	assert.False(t, r.Contains(day(2021, time.January, 1)))
	assert.False(t, r.Contains(day(2019, time.December, 31)))
}

func TestAbsoluteRangeBoundaries(t *testing.T) {
	date := day(2020, time.January, 1)
	tests := []struct {
		op      Operator
		unit    Unit
		inside  []time.Time
		outside []time.Time
	}{
		{OpLessEqual, UnitDay, []time.Time{date, date.Add(23 * time.Hour), day(2019, time.May, 5)}, []time.Time{day(2020, time.January, 2)}},
		{OpLess, UnitDay, []time.Time{date.Add(-time.Nanosecond)}, []time.Time{date}},
		{OpGreater, UnitDay, []time.Time{day(2020, time.January, 2)}, []time.Time{date, date.Add(23 * time.Hour)}},
		{OpGreaterEqual, UnitDay, []time.Time{date, day(2030, time.March, 1)}, []time.Time{date.Add(-time.Nanosecond)}},
		{OpGreater, UnitYear, []time.Time{day(2021, time.January, 1)}, []time.Time{day(2020, time.December, 31)}},
		{OpLessEqual, UnitYear, []time.Time{day(2020, time.December, 31)}, []time.Time{day(2021, time.January, 1)}},
	}

	for _, tt := range tests {
		t.Run(string(tt.op)+string(tt.unit), func(t *testing.T) {
			r, err := AbsoluteRange(tt.op, date, tt.unit)
			require.NoError(t, err)
			for _, ts := range tt.inside {
				assert.True(t, r.Contains(ts), "%s should contain %s", r, ts)
			}
			for _, ts := range tt.outside {
				assert.False(t, r.Contains(ts), "%s should not contain %s", r, ts)
			}
		})
	}
}

func TestRelativeRangeFuzzyEquality(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	r, err := RelativeRange(OpEqual, 3, UnitDay, now)
	require.NoError(t, err)

	assert.True(t, r.Contains(now.AddDate(0, 0, -3)))
	assert.True(t, r.Contains(now.AddDate(0, 0, -2).Add(-time.Minute)))
	assert.False(t, r.Contains(now.AddDate(0, 0, -2)))
	assert.False(t, r.Contains(now.AddDate(0, 0, -4)))
	assert.False(t, r.Contains(now.AddDate(0, 0, -5)))
}

func TestRelativeRangeBoundaries(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	point := now.AddDate(0, 0, -7)

	tests := []struct {
		op      Operator
		atPoint bool
		newer   bool
		older   bool
	}{
		{OpLess, false, true, false},
		{OpLessEqual, true, true, false},
		{OpGreater, false, false, true},
		{OpGreaterEqual, true, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			r, err := RelativeRange(tt.op, 7, UnitDay, now)
			require.NoError(t, err)
			assert.Equal(t, tt.atPoint, r.Contains(point))
			assert.Equal(t, tt.newer, r.Contains(point.Add(time.Second)))
			assert.Equal(t, tt.older, r.Contains(point.Add(-time.Second)))
		})
	}
}

func TestRangesRejectUnknownOperator(t *testing.T) {
	_, err := AbsoluteRange("!=", day(2020, time.January, 1), UnitDay)
	assert.ErrorIs(t, err, ErrInvalidOperator)
	assert.ErrorIs(t, err, ErrInvalidCriteria)

	_, err = RelativeRange("~", 1, UnitYear, time.Now())
	assert.ErrorIs(t, err, ErrInvalidOperator)
}

func TestShiftClampsMonthEnd(t *testing.T) {
	assert.Equal(t, day(2023, time.February, 28), Shift(day(2023, time.March, 31), UnitMonth, -1))
	assert.Equal(t, day(2024, time.February, 29), Shift(day(2024, time.January, 31), UnitMonth, 1))
	assert.Equal(t, day(2023, time.February, 28), Shift(day(2024, time.February, 29), UnitYear, -1))
	assert.Equal(t, day(2024, time.March, 3), Shift(day(2024, time.March, 10), UnitDay, -7))
}

func TestDateSpecTimeUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	date := DateSpec{Unit: UnitDay, Year: 2021, Month: time.July, Day: 4}
	assert.Equal(t, time.Date(2021, time.July, 4, 0, 0, 0, 0, loc), date.Time(loc))

	year := DateSpec{Unit: UnitYear, Year: 1999, Month: time.January, Day: 1}
	assert.Equal(t, time.Date(1999, time.January, 1, 0, 0, 0, 0, loc), year.Time(loc))
}
