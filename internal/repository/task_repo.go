package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	mqcontracts "taskplanner/contracts/mq"
	"taskplanner/internal/model"
	"taskplanner/pkg/metrics"
	"taskplanner/pkg/outbox"
)

var ErrTaskNotFound = errors.New("repository: task not found")

const taskColumns = `
	id, user_id, title, description, priority, tags, due_date,
	reminder_offset, reminder_sent, recurrence, parent_task_id,
	materialized_from, completed, created_at, updated_at
`

type TaskRepository struct {
	db         *pgxpool.Pool
	outboxRepo *outbox.Repository
	logger     *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{
		db:         db,
		outboxRepo: outbox.NewRepository(db),
		logger:     logger,
	}
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&t.Priority,
		&t.Tags,
		&t.DueDate,
		&t.ReminderOffset,
		&t.ReminderSent,
		&t.Recurrence,
		&t.ParentTaskID,
		&t.MaterializedFrom,
		&t.Completed,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepository) GetTask(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	start := time.Now()
	task, err := scanTask(r.db.QueryRow(ctx, query, id))
	metrics.RecordDBQueryDuration("select", "tasks", time.Since(start))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		r.logger.Error("Failed to get task", zap.String("task_id", id.String()), zap.Error(err))
		return nil, err
	}
	return task, nil
}

// ListDueCandidates returns a bounded page of incomplete tasks with a due
// date, ordered by due date ascending. Filtering down to tasks whose
// reminder is actually due stays with the scheduler.
func (r *TaskRepository) ListDueCandidates(ctx context.Context, limit int) ([]model.Task, error) {
	r.logger.Debug("Listing due candidates", zap.Int("limit", limit))

	query := `
        SELECT ` + taskColumns + `
        FROM tasks
        WHERE completed = FALSE
          AND due_date IS NOT NULL
        ORDER BY due_date ASC
        LIMIT $1
    `

	start := time.Now()
	rows, err := r.db.Query(ctx, query, limit)
	metrics.RecordDBQueryDuration("select", "tasks", time.Since(start))
	if err != nil {
		r.logger.Error("Failed to list due candidates", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			r.logger.Error("Failed to scan task", zap.Error(err))
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	r.logger.Debug("Listed due candidates", zap.Int("count", len(tasks)))
	return tasks, rows.Err()
}

// MarkReminderSent flips reminder_sent to true if and only if it is still
// false, and reports whether this caller won that race. Safe to retry:
// losing the race is a clean false, not an error.
func (r *TaskRepository) MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
        UPDATE tasks
        SET reminder_sent = TRUE, updated_at = NOW()
        WHERE id = $1 AND reminder_sent = FALSE
    `

	start := time.Now()
	tag, err := r.db.Exec(ctx, query, id)
	metrics.RecordDBQueryDuration("update", "tasks", time.Since(start))
	if err != nil {
		r.logger.Error("Failed to mark reminder sent", zap.String("task_id", id.String()), zap.Error(err))
		return false, err
	}

	claimed := tag.RowsAffected() == 1
	r.logger.Debug("Marked reminder sent",
		zap.String("task_id", id.String()),
		zap.Bool("claimed", claimed),
	)
	return claimed, nil
}

// ResetReminder clears reminder_sent. Only the authoring API calls this;
// the scheduler never un-sends a reminder.
func (r *TaskRepository) ResetReminder(ctx context.Context, id uuid.UUID) error {
	query := `
        UPDATE tasks
        SET reminder_sent = FALSE, updated_at = NOW()
        WHERE id = $1
    `

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to reset reminder", zap.String("task_id", id.String()), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// CountChainMembers counts materialized successors of a chain root.
func (r *TaskRepository) CountChainMembers(ctx context.Context, rootID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM tasks WHERE parent_task_id = $1`

	start := time.Now()
	var count int
	err := r.db.QueryRow(ctx, query, rootID).Scan(&count)
	metrics.RecordDBQueryDuration("select", "tasks", time.Since(start))
	if err != nil {
		r.logger.Error("Failed to count chain members", zap.String("root_id", rootID.String()), zap.Error(err))
		return 0, err
	}
	return count, nil
}

// SetRecurrence attaches or clears a task's recurrence rule.
func (r *TaskRepository) SetRecurrence(ctx context.Context, id uuid.UUID, rule *model.RecurrenceRule) error {
	query := `
        UPDATE tasks
        SET recurrence = $2, updated_at = NOW()
        WHERE id = $1
    `

	tag, err := r.db.Exec(ctx, query, id, rule)
	if err != nil {
		r.logger.Error("Failed to set recurrence", zap.String("task_id", id.String()), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}

	r.logger.Info("Recurrence updated", zap.String("task_id", id.String()))
	return nil
}

// SetReminderOffset sets or clears the reminder offset (minutes before due).
func (r *TaskRepository) SetReminderOffset(ctx context.Context, id uuid.UUID, offset *int) error {
	query := `
        UPDATE tasks
        SET reminder_offset = $2, updated_at = NOW()
        WHERE id = $1
    `

	tag, err := r.db.Exec(ctx, query, id, offset)
	if err != nil {
		r.logger.Error("Failed to set reminder offset", zap.String("task_id", id.String()), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// SetCompleted flips completion without touching recurrence. Used for the
// un-complete direction of the toggle and for tasks without a rule.
func (r *TaskRepository) SetCompleted(ctx context.Context, id uuid.UUID, completed bool) error {
	query := `
        UPDATE tasks
        SET completed = $2, updated_at = NOW()
        WHERE id = $1
    `

	tag, err := r.db.Exec(ctx, query, id, completed)
	if err != nil {
		r.logger.Error("Failed to set completed", zap.String("task_id", id.String()), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// CompleteAndMaterialize marks the original completed and inserts its
// successor in one transaction, together with the task.materialized outbox
// event. The unique index on materialized_from makes retries idempotent:
// a second invocation for the same completed task inserts nothing and
// returns created=false.
func (r *TaskRepository) CompleteAndMaterialize(ctx context.Context, original *model.Task, successor *model.Task) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.Error("Failed to begin transaction", zap.Error(err))
		return false, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
        UPDATE tasks SET completed = TRUE, updated_at = NOW() WHERE id = $1
    `, original.ID); err != nil {
		r.logger.Error("Failed to complete original task", zap.Error(err))
		return false, err
	}

	tag, err := tx.Exec(ctx, `
        INSERT INTO tasks (
            id, user_id, title, description, priority, tags, due_date,
            reminder_offset, reminder_sent, recurrence, parent_task_id,
            materialized_from, completed, created_at, updated_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9, $10, $11, FALSE, NOW(), NOW())
        ON CONFLICT (materialized_from) DO NOTHING
    `,
		successor.ID,
		successor.UserID,
		successor.Title,
		successor.Description,
		successor.Priority,
		successor.Tags,
		successor.DueDate,
		successor.ReminderOffset,
		successor.Recurrence,
		successor.ParentTaskID,
		successor.MaterializedFrom,
	)
	if err != nil {
		r.logger.Error("Failed to insert successor task", zap.Error(err))
		return false, err
	}

	created := tag.RowsAffected() == 1
	if created {
		rootID := successor.ChainRoot().String()
		payload := mqcontracts.TaskMaterializedPayload{
			CompletedTaskID: original.ID.String(),
			SuccessorTaskID: successor.ID.String(),
			ChainRootID:     rootID,
			DueDate:         *successor.DueDate,
			CreatedAt:       time.Now().UTC(),
		}
		if err := outbox.InsertEventInTx(ctx, tx, r.outboxRepo, "task", &rootID, "task.materialized", payload); err != nil {
			r.logger.Error("Failed to insert task.materialized event", zap.Error(err))
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("Failed to commit materialization", zap.Error(err))
		return false, err
	}

	r.logger.Info("Task completed with materialization",
		zap.String("task_id", original.ID.String()),
		zap.String("successor_id", successor.ID.String()),
		zap.Bool("created", created),
	)
	return created, nil
}

// CompleteCapped marks the original completed and records the series-capped
// event in one transaction. Deliberate termination, not a failure.
func (r *TaskRepository) CompleteCapped(ctx context.Context, original *model.Task, chainMembers int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.Error("Failed to begin transaction", zap.Error(err))
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
        UPDATE tasks SET completed = TRUE, updated_at = NOW() WHERE id = $1
    `, original.ID); err != nil {
		r.logger.Error("Failed to complete original task", zap.Error(err))
		return err
	}

	rootID := original.ChainRoot().String()
	payload := mqcontracts.SeriesCappedPayload{
		CompletedTaskID: original.ID.String(),
		ChainRootID:     rootID,
		ChainMembers:    chainMembers,
		CappedAt:        time.Now().UTC(),
	}
	if err := outbox.InsertEventInTx(ctx, tx, r.outboxRepo, "task", &rootID, "task.series_capped", payload); err != nil {
		r.logger.Error("Failed to insert task.series_capped event", zap.Error(err))
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("Failed to commit capped completion", zap.Error(err))
		return err
	}

	return nil
}

// Healthcheck pings the pool with a bounded timeout.
func (r *TaskRepository) Healthcheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("db ping failed: %w", err)
	}
	return nil
}
