package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskplanner/internal/model"
)

func intPtr(v int) *int { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func TestNextAdvancesPastAnchor(t *testing.T) {
	anchor := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

	rules := []model.RecurrenceRule{
		{Frequency: model.FrequencyDaily, Interval: 1},
		{Frequency: model.FrequencyDaily, Interval: 365},
		{Frequency: model.FrequencyWeekly, Interval: 2},
		{Frequency: model.FrequencyMonthly, Interval: 1},
		{Frequency: model.FrequencyMonthly, Interval: 11},
	}

	for _, rule := range rules {
		res := Next(anchor, rule, 0)
		require.True(t, res.Advanced(), "rule %+v should advance", rule)
		assert.True(t, res.Date.After(anchor), "rule %+v produced %s, not after anchor", rule, res.Date)
	}
}

func TestNextPreservesTimeOfDay(t *testing.T) {
	anchor := time.Date(2026, 1, 15, 9, 45, 30, 0, time.UTC)

	for _, freq := range []model.Frequency{model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyMonthly} {
		res := Next(anchor, model.RecurrenceRule{Frequency: freq, Interval: 3}, 0)
		require.True(t, res.Advanced())
		assert.Equal(t, 9, res.Date.Hour())
		assert.Equal(t, 45, res.Date.Minute())
		assert.Equal(t, 30, res.Date.Second())
	}
}

func TestNextDefaultsIntervalToOne(t *testing.T) {
	anchor := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	res := Next(anchor, model.RecurrenceRule{Frequency: model.FrequencyDaily}, 0)
	require.True(t, res.Advanced())
	assert.Equal(t, time.Date(2026, 6, 2, 8, 0, 0, 0, time.UTC), res.Date)
}

func TestMonthlyClampsJanThirtyFirst(t *testing.T) {
	rule := model.RecurrenceRule{Frequency: model.FrequencyMonthly, Interval: 1}

	// 2026 is not a leap year.
	res := Next(time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC), rule, 0)
	require.True(t, res.Advanced())
	assert.Equal(t, time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC), res.Date)

	// 2028 is.
	res = Next(time.Date(2028, 1, 31, 10, 0, 0, 0, time.UTC), rule, 0)
	require.True(t, res.Advanced())
	assert.Equal(t, time.Date(2028, 2, 29, 10, 0, 0, 0, time.UTC), res.Date)
}

func TestMonthlyClampAcrossYearBoundary(t *testing.T) {
	rule := model.RecurrenceRule{Frequency: model.FrequencyMonthly, Interval: 3}

	res := Next(time.Date(2026, 11, 30, 7, 15, 0, 0, time.UTC), rule, 0)
	require.True(t, res.Advanced())
	assert.Equal(t, time.Date(2027, 2, 28, 7, 15, 0, 0, time.UTC), res.Date)
}

func TestCountStopsAfterExactOccurrences(t *testing.T) {
	rule := model.RecurrenceRule{
		Frequency: model.FrequencyDaily,
		Interval:  1,
		Count:     intPtr(3),
		// An end date far in the future must not matter: count wins.
		EndDate: timePtr(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)),
	}

	cursor := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	for created := 0; created < 3; created++ {
		res := Next(cursor, rule, created)
		require.True(t, res.Advanced(), "occurrence %d should advance", created)
		cursor = res.Date
	}

	res := Next(cursor, rule, 3)
	assert.False(t, res.Advanced())
	assert.Equal(t, StopCountReached, res.Stop)
}

func TestEndDateStopsFirstCandidateBeyondIt(t *testing.T) {
	end := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	rule := model.RecurrenceRule{
		Frequency: model.FrequencyWeekly,
		Interval:  1,
		EndDate:   &end,
	}

	// Feb 3 + 1 week = Feb 10, equal to end_date: still advances.
	res := Next(time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC), rule, 0)
	require.True(t, res.Advanced())
	assert.Equal(t, end, res.Date)

	// Feb 10 + 1 week = Feb 17, past end_date: stops.
	res = Next(res.Date, rule, 1)
	assert.False(t, res.Advanced())
	assert.Equal(t, StopEndDatePassed, res.Stop)
}

// Matches the biweekly series: 2026-01-05 anchor, interval 2, count 4.
func TestBiweeklySeriesWalksFourOccurrencesThenStops(t *testing.T) {
	rule := model.RecurrenceRule{
		Frequency: model.FrequencyWeekly,
		Interval:  2,
		Count:     intPtr(4),
	}

	want := []time.Time{
		time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 16, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}

	cursor := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	for i, expected := range want {
		res := Next(cursor, rule, i)
		require.True(t, res.Advanced(), "occurrence %d", i)
		assert.Equal(t, expected, res.Date, "occurrence %d", i)
		cursor = res.Date
	}

	res := Next(cursor, rule, len(want))
	assert.Equal(t, StopCountReached, res.Stop)
}
