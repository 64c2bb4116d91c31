package mq

import "time"

// ReminderDuePayload is published on routing key "reminder.due" when a
// reminder batch fires. Tasks are ordered by due date ascending.
type ReminderDuePayload struct {
	Tag     string             `json:"tag"`
	Title   string             `json:"title"`
	Body    string             `json:"body"`
	Grouped bool               `json:"grouped"`
	Tasks   []ReminderDueEntry `json:"tasks"`
	FiredAt time.Time          `json:"fired_at"`
}

type ReminderDueEntry struct {
	TaskID  string    `json:"task_id"`
	Title   string    `json:"title"`
	DueDate time.Time `json:"due_date"`
}

// ReminderClickedPayload arrives on routing key "reminder.clicked" when a
// delivery client reports a notification click.
type ReminderClickedPayload struct {
	Tag       string    `json:"tag"`
	TaskID    string    `json:"task_id,omitempty"`
	ClickedAt time.Time `json:"clicked_at"`
}
