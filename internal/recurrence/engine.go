package recurrence

import (
	"time"

	"taskplanner/internal/model"
)

// StopReason says why a series produced no further occurrence.
type StopReason string

const (
	StopNone          StopReason = ""
	StopCountReached  StopReason = "count_reached"
	StopEndDatePassed StopReason = "end_date_passed"
)

// Result is either an advanced occurrence date or a stop.
type Result struct {
	Date time.Time
	Stop StopReason
}

// Advanced reports whether the series produced a next occurrence.
func (r Result) Advanced() bool {
	return r.Stop == StopNone
}

// Next computes the occurrence following anchor under rule, given how many
// chain members have been materialized so far. Pure: no clock, no I/O. The
// caller validates the rule; Next assumes it is within bounds.
//
// The candidate keeps the anchor's time of day exactly; only the calendar
// date advances. Monthly advancement clamps to the last day of the target
// month when the anchor's day does not exist there.
func Next(anchor time.Time, rule model.RecurrenceRule, created int) Result {
	rule = rule.Normalized()

	var candidate time.Time
	switch rule.Frequency {
	case model.FrequencyDaily:
		candidate = anchor.AddDate(0, 0, rule.Interval)
	case model.FrequencyWeekly:
		candidate = anchor.AddDate(0, 0, 7*rule.Interval)
	case model.FrequencyMonthly:
		candidate = addMonthsClamped(anchor, rule.Interval)
	default:
		// Unreachable for validated rules; treat as a finished series
		// rather than inventing a date.
		return Result{Stop: StopEndDatePassed}
	}

	if rule.Count != nil && created >= *rule.Count {
		return Result{Stop: StopCountReached}
	}

	if rule.EndDate != nil && candidate.After(*rule.EndDate) {
		return Result{Stop: StopEndDatePassed}
	}

	return Result{Date: candidate}
}

// addMonthsClamped advances by whole calendar months, clamping the day of
// month (Jan 31 + 1 month = Feb 28, or Feb 29 in a leap year) and keeping
// the anchor's clock. time.AddDate is avoided on purpose: it normalizes
// Jan 31 + 1 month into early March.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	total := int(month) - 1 + months
	year += total / 12
	month = time.Month(total%12 + 1)

	if last := daysInMonth(year, month); day > last {
		day = last
	}

	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
