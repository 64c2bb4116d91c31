package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestValidateRuleAcceptsMinimalRule(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// No interval (defaults to 1), no termination condition: accepted;
	// the chain cap is the backstop.
	err := ValidateRule(RecurrenceRule{Frequency: FrequencyDaily}, now)
	assert.NoError(t, err)
}

func TestValidateRuleRejectsIntervalOutOfRange(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	err := ValidateRule(RecurrenceRule{Frequency: FrequencyDaily, Interval: 400}, now)
	require.Error(t, err)

	var verr *RuleValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "interval", verr.Field)

	err = ValidateRule(RecurrenceRule{Frequency: FrequencyDaily, Interval: -1}, now)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "interval", verr.Field)
}

func TestValidateRuleRejectsBadFrequency(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	err := ValidateRule(RecurrenceRule{Frequency: "hourly", Interval: 1}, now)
	var verr *RuleValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "frequency", verr.Field)
}

func TestValidateRuleRejectsCountOutOfRange(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, count := range []int{0, 101, -5} {
		err := ValidateRule(RecurrenceRule{Frequency: FrequencyWeekly, Interval: 1, Count: intPtr(count)}, now)
		var verr *RuleValidationError
		require.ErrorAs(t, err, &verr, "count %d", count)
		assert.Equal(t, "count", verr.Field)
	}

	err := ValidateRule(RecurrenceRule{Frequency: FrequencyWeekly, Interval: 1, Count: intPtr(100)}, now)
	assert.NoError(t, err)
}

func TestValidateRuleRejectsPastEndDate(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	past := now.Add(-time.Hour)
	err := ValidateRule(RecurrenceRule{Frequency: FrequencyMonthly, Interval: 1, EndDate: &past}, now)
	var verr *RuleValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "end_date", verr.Field)

	// Exactly now is not strictly in the future either.
	err = ValidateRule(RecurrenceRule{Frequency: FrequencyMonthly, Interval: 1, EndDate: &now}, now)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "end_date", verr.Field)

	future := now.Add(time.Hour)
	assert.NoError(t, ValidateRule(RecurrenceRule{Frequency: FrequencyMonthly, Interval: 1, EndDate: &future}, now))
}

func TestReminderTime(t *testing.T) {
	due := time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)

	task := Task{DueDate: &due, ReminderOffset: intPtr(15)}
	at, ok := task.ReminderTime()
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 2, 5, 8, 45, 0, 0, time.UTC), at)

	// Offset 0 means at due time.
	task.ReminderOffset = intPtr(0)
	at, ok = task.ReminderTime()
	require.True(t, ok)
	assert.Equal(t, due, at)

	// No offset means no reminder.
	task.ReminderOffset = nil
	_, ok = task.ReminderTime()
	assert.False(t, ok)

	// No due date means no reminder either.
	task = Task{ReminderOffset: intPtr(10)}
	_, ok = task.ReminderTime()
	assert.False(t, ok)
}
