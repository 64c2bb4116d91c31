package model

import (
	"fmt"
	"time"
)

// Frequency is how often a recurring task repeats.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	default:
		return false
	}
}

const (
	// MinInterval and MaxInterval bound "repeat every N periods".
	MinInterval = 1
	MaxInterval = 365

	// MaxCount bounds the per-rule occurrence limit.
	MaxCount = 100
)

// RecurrenceRule declares how a task repeats. It carries no behavior beyond
// validation; occurrence arithmetic lives in the recurrence package.
type RecurrenceRule struct {
	Frequency Frequency  `json:"frequency"`
	Interval  int        `json:"interval"`
	Count     *int       `json:"count,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// Normalized returns a copy with the interval default applied.
func (r RecurrenceRule) Normalized() RecurrenceRule {
	if r.Interval == 0 {
		r.Interval = 1
	}
	return r
}

// RuleValidationError reports the first field of a RecurrenceRule that
// failed validation. Values are never clamped.
type RuleValidationError struct {
	Field  string
	Reason string
}

func (e *RuleValidationError) Error() string {
	return fmt.Sprintf("model: invalid recurrence rule: %s: %s", e.Field, e.Reason)
}

// ValidateRule checks a rule against its bounds. now is the rule-creation
// time; end_date must be strictly after it. A rule carrying neither count
// nor end_date is accepted (the materializer's chain cap is the backstop).
func ValidateRule(rule RecurrenceRule, now time.Time) error {
	if !rule.Frequency.IsValid() {
		return &RuleValidationError{
			Field:  "frequency",
			Reason: fmt.Sprintf("must be daily, weekly or monthly, got %q", rule.Frequency),
		}
	}

	rule = rule.Normalized()
	if rule.Interval < MinInterval || rule.Interval > MaxInterval {
		return &RuleValidationError{
			Field:  "interval",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", MinInterval, MaxInterval, rule.Interval),
		}
	}

	if rule.Count != nil {
		if *rule.Count < 1 || *rule.Count > MaxCount {
			return &RuleValidationError{
				Field:  "count",
				Reason: fmt.Sprintf("must be between 1 and %d, got %d", MaxCount, *rule.Count),
			}
		}
	}

	if rule.EndDate != nil && !rule.EndDate.After(now) {
		return &RuleValidationError{
			Field:  "end_date",
			Reason: "must be in the future",
		}
	}

	return nil
}
