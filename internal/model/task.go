package model

import (
	"time"

	"github.com/google/uuid"
)

// Task is the slice of the task record this engine owns or reads. CRUD on
// the remaining fields belongs to the task API, not the engine.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority"`
	Tags        []string   `json:"tags,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`

	// ReminderOffset is minutes before due_date; 0 means at due time,
	// nil means no reminder.
	ReminderOffset *int `json:"reminder_offset,omitempty"`
	// ReminderSent is monotonic: false to true only. Reset happens solely
	// through an explicit user action on the authoring API.
	ReminderSent bool `json:"reminder_sent"`

	Recurrence *RecurrenceRule `json:"recurrence,omitempty"`
	// ParentTaskID always points at the chain root, never the immediate
	// predecessor. The root itself carries nil.
	ParentTaskID *uuid.UUID `json:"parent_task_id,omitempty"`
	// MaterializedFrom is the completed task that produced this one. A
	// unique index on it makes materialization retries idempotent.
	MaterializedFrom *uuid.UUID `json:"materialized_from,omitempty"`

	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChainRoot returns the id of the first task in this recurrence chain.
func (t Task) ChainRoot() uuid.UUID {
	if t.ParentTaskID != nil {
		return *t.ParentTaskID
	}
	return t.ID
}

// ReminderTime returns when this task's reminder should fire, or false when
// the task has no due date or no reminder offset.
func (t Task) ReminderTime() (time.Time, bool) {
	if t.DueDate == nil || t.ReminderOffset == nil {
		return time.Time{}, false
	}
	return t.DueDate.Add(-time.Duration(*t.ReminderOffset) * time.Minute), true
}

// ReminderEvent is the ephemeral fact "this task's reminder is due now".
// It is built by the scheduler, consumed by the dispatcher, never stored.
type ReminderEvent struct {
	TaskID  uuid.UUID
	Title   string
	DueDate time.Time
}
