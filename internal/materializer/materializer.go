package materializer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskplanner/internal/model"
	"taskplanner/internal/recurrence"
	"taskplanner/pkg/metrics"
)

// ChainLimit is the hard cap on materialized members of one recurrence
// chain. It backstops rules lacking both count and end_date; hitting it is
// a deliberate termination, not an error.
const ChainLimit = 100

// Outcome says what completing a recurring task produced.
type Outcome string

const (
	// OutcomeNoRecurrence: the task carries no rule; nothing to do.
	OutcomeNoRecurrence Outcome = "no_recurrence"
	// OutcomeCreated: a successor task was persisted.
	OutcomeCreated Outcome = "created"
	// OutcomeAlreadyMaterialized: a retry found the successor already
	// present; nothing new was written.
	OutcomeAlreadyMaterialized Outcome = "duplicate"
	// OutcomeSeriesFinished: the rule's own count or end_date ended the
	// series as planned.
	OutcomeSeriesFinished Outcome = "finished"
	// OutcomeSeriesCapped: the chain hit ChainLimit.
	OutcomeSeriesCapped Outcome = "capped"
)

// Result carries the outcome, the stop reason when the series finished, and
// the successor when one was created.
type Result struct {
	Outcome    Outcome
	StopReason recurrence.StopReason
	Successor  *model.Task
}

// Store is the slice of the task storage collaborator the materializer
// needs.
type Store interface {
	CountChainMembers(ctx context.Context, rootID uuid.UUID) (int, error)
	CompleteAndMaterialize(ctx context.Context, original *model.Task, successor *model.Task) (created bool, err error)
	CompleteCapped(ctx context.Context, original *model.Task, chainMembers int) error
	SetCompleted(ctx context.Context, id uuid.UUID, completed bool) error
}

type Materializer struct {
	store  Store
	logger *zap.Logger
}

func New(store Store, logger *zap.Logger) *Materializer {
	return &Materializer{
		store:  store,
		logger: logger,
	}
}

// OnTaskCompleted handles the completion of task. For non-recurring tasks it
// reports OutcomeNoRecurrence without writing anything; the caller owns the
// plain completion update. For recurring tasks it completes the original and
// materializes the successor as one transactional unit, idempotently: the
// successor insert keys on the completed task's id, so re-running after a
// partial failure never creates a second successor.
func (m *Materializer) OnTaskCompleted(ctx context.Context, task *model.Task) (Result, error) {
	if task.Recurrence == nil {
		return Result{Outcome: OutcomeNoRecurrence}, nil
	}

	if task.DueDate == nil {
		// A rule without an anchor cannot advance. Complete the task and
		// let the series end here.
		m.logger.Warn("Recurring task has no due date, nothing to materialize",
			zap.String("task_id", task.ID.String()),
		)
		if err := m.store.SetCompleted(ctx, task.ID, true); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeNoRecurrence}, nil
	}

	rootID := task.ChainRoot()
	members, err := m.store.CountChainMembers(ctx, rootID)
	if err != nil {
		return Result{}, err
	}

	if members >= ChainLimit {
		m.logger.Info("Recurrence chain reached hard cap",
			zap.String("task_id", task.ID.String()),
			zap.String("chain_root", rootID.String()),
			zap.Int("members", members),
		)
		if err := m.store.CompleteCapped(ctx, task, members); err != nil {
			return Result{}, err
		}
		metrics.IncrementMaterialized(string(OutcomeSeriesCapped))
		return Result{Outcome: OutcomeSeriesCapped}, nil
	}

	next := recurrence.Next(*task.DueDate, *task.Recurrence, members)
	if !next.Advanced() {
		m.logger.Info("Recurrence series finished",
			zap.String("task_id", task.ID.String()),
			zap.String("reason", string(next.Stop)),
		)
		if err := m.store.SetCompleted(ctx, task.ID, true); err != nil {
			return Result{}, err
		}
		metrics.IncrementMaterialized(string(OutcomeSeriesFinished))
		return Result{Outcome: OutcomeSeriesFinished, StopReason: next.Stop}, nil
	}

	successor := m.buildSuccessor(task, rootID, next.Date)

	created, err := m.store.CompleteAndMaterialize(ctx, task, successor)
	if err != nil {
		return Result{}, err
	}
	if !created {
		m.logger.Info("Successor already materialized, skipping",
			zap.String("task_id", task.ID.String()),
		)
		metrics.IncrementMaterialized(string(OutcomeAlreadyMaterialized))
		return Result{Outcome: OutcomeAlreadyMaterialized}, nil
	}

	m.logger.Info("Materialized next occurrence",
		zap.String("task_id", task.ID.String()),
		zap.String("successor_id", successor.ID.String()),
		zap.Time("due_date", next.Date),
	)
	metrics.IncrementMaterialized(string(OutcomeCreated))
	return Result{Outcome: OutcomeCreated, Successor: successor}, nil
}

func (m *Materializer) buildSuccessor(task *model.Task, rootID uuid.UUID, dueDate time.Time) *model.Task {
	due := dueDate
	sourceID := task.ID
	root := rootID
	return &model.Task{
		ID:               uuid.New(),
		UserID:           task.UserID,
		Title:            task.Title,
		Description:      task.Description,
		Priority:         task.Priority,
		Tags:             task.Tags,
		DueDate:          &due,
		ReminderOffset:   task.ReminderOffset,
		ReminderSent:     false,
		Recurrence:       task.Recurrence,
		ParentTaskID:     &root,
		MaterializedFrom: &sourceID,
		Completed:        false,
	}
}
