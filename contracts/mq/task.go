package mq

import "time"

// TaskMaterializedPayload is published on routing key "task.materialized"
// when completing a recurring task creates its successor.
type TaskMaterializedPayload struct {
	CompletedTaskID string    `json:"completed_task_id"`
	SuccessorTaskID string    `json:"successor_task_id"`
	ChainRootID     string    `json:"chain_root_id"`
	DueDate         time.Time `json:"due_date"`
	CreatedAt       time.Time `json:"created_at"`
}

// SeriesCappedPayload is published on routing key "task.series_capped" when
// a recurrence chain hits the hard instance cap. This is informational, not
// an error: the UI tells the user the series was capped.
type SeriesCappedPayload struct {
	CompletedTaskID string    `json:"completed_task_id"`
	ChainRootID     string    `json:"chain_root_id"`
	ChainMembers    int       `json:"chain_members"`
	CappedAt        time.Time `json:"capped_at"`
}
