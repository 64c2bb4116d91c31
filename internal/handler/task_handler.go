package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskplanner/internal/materializer"
	"taskplanner/internal/model"
	"taskplanner/internal/recurrence"
	"taskplanner/internal/repository"
)

const (
	previewDefault = 5
	previewMax     = 20
)

// Store is the slice of task storage the HTTP layer needs.
type Store interface {
	GetTask(ctx context.Context, id uuid.UUID) (*model.Task, error)
	SetRecurrence(ctx context.Context, id uuid.UUID, rule *model.RecurrenceRule) error
	SetReminderOffset(ctx context.Context, id uuid.UUID, offset *int) error
	ResetReminder(ctx context.Context, id uuid.UUID) error
	SetCompleted(ctx context.Context, id uuid.UUID, completed bool) error
	CountChainMembers(ctx context.Context, rootID uuid.UUID) (int, error)
}

// Completer handles the false-to-true completion edge of a recurring task.
type Completer interface {
	OnTaskCompleted(ctx context.Context, task *model.Task) (materializer.Result, error)
}

type TaskHandler struct {
	store     Store
	completer Completer
	logger    *zap.Logger
	now       func() time.Time
}

func NewTaskHandler(store Store, completer Completer, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		store:     store,
		completer: completer,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the clock source.
func (h *TaskHandler) WithClock(now func() time.Time) *TaskHandler {
	h.now = now
	return h
}

func (h *TaskHandler) taskID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.logger.Warn("Invalid task id",
			zap.String("task_id", c.Param("id")),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	task, err := h.store.GetTask(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		h.logger.Error("GetTask: failed to fetch task",
			zap.String("task_id", id.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch task"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"task": task})
}

type setRecurrenceRequest struct {
	Recurrence *model.RecurrenceRule `json:"recurrence"`
}

// SetRecurrence stores or clears a task's recurrence rule. A null rule
// clears recurrence without touching the existing chain.
func (h *TaskHandler) SetRecurrence(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	var req setRecurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("SetRecurrence: invalid body",
			zap.String("task_id", id.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var rule *model.RecurrenceRule
	if req.Recurrence != nil {
		normalized := req.Recurrence.Normalized()
		if err := model.ValidateRule(normalized, h.now()); err != nil {
			var verr *model.RuleValidationError
			if errors.As(err, &verr) {
				h.logger.Warn("SetRecurrence: rule rejected",
					zap.String("task_id", id.String()),
					zap.String("field", verr.Field),
					zap.String("reason", verr.Reason),
				)
				c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason, "field": verr.Field})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rule = &normalized
	}

	if err := h.store.SetRecurrence(c.Request.Context(), id, rule); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		h.logger.Error("SetRecurrence: failed to persist rule",
			zap.String("task_id", id.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update recurrence"})
		return
	}

	h.logger.Info("SetRecurrence: success",
		zap.String("task_id", id.String()),
		zap.Bool("cleared", rule == nil),
	)
	c.JSON(http.StatusOK, gin.H{"recurrence": rule})
}

type setReminderRequest struct {
	ReminderOffset *int `json:"reminder_offset"`
	// ResetReminder re-arms a reminder that already fired. The sent flag
	// never resets implicitly.
	ResetReminder bool `json:"reset_reminder"`
}

func (h *TaskHandler) SetReminder(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	var req setReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("SetReminder: invalid body",
			zap.String("task_id", id.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if req.ReminderOffset != nil && *req.ReminderOffset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reminder_offset must not be negative", "field": "reminder_offset"})
		return
	}

	if err := h.store.SetReminderOffset(c.Request.Context(), id, req.ReminderOffset); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		h.logger.Error("SetReminder: failed to persist offset",
			zap.String("task_id", id.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update reminder"})
		return
	}

	if req.ResetReminder {
		if err := h.store.ResetReminder(c.Request.Context(), id); err != nil {
			h.logger.Error("SetReminder: failed to reset reminder flag",
				zap.String("task_id", id.String()),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset reminder"})
			return
		}
	}

	h.logger.Info("SetReminder: success",
		zap.String("task_id", id.String()),
		zap.Bool("reset", req.ResetReminder),
	)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CompleteTask toggles completion. Completing a recurring task also runs
// materialization; the response carries the outcome so the caller can tell
// a created successor from a finished or capped series.
func (h *TaskHandler) CompleteTask(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	task, err := h.store.GetTask(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		h.logger.Error("CompleteTask: failed to fetch task",
			zap.String("task_id", id.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch task"})
		return
	}

	// Un-completing is a plain flag flip with no recurrence side effects.
	if task.Completed {
		if err := h.store.SetCompleted(c.Request.Context(), id, false); err != nil {
			h.logger.Error("CompleteTask: failed to un-complete task",
				zap.String("task_id", id.String()),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update task"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"completed": false})
		return
	}

	result, err := h.completer.OnTaskCompleted(c.Request.Context(), task)
	if err != nil {
		h.logger.Error("CompleteTask: materialization failed",
			zap.String("task_id", id.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to complete task"})
		return
	}

	if result.Outcome == materializer.OutcomeNoRecurrence {
		if err := h.store.SetCompleted(c.Request.Context(), id, true); err != nil {
			h.logger.Error("CompleteTask: failed to complete task",
				zap.String("task_id", id.String()),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update task"})
			return
		}
	}

	h.logger.Info("CompleteTask: success",
		zap.String("task_id", id.String()),
		zap.String("outcome", string(result.Outcome)),
	)

	resp := gin.H{"completed": true, "outcome": result.Outcome}
	if result.StopReason != "" {
		resp["stop_reason"] = result.StopReason
	}
	if result.Successor != nil {
		resp["successor"] = result.Successor
	}
	c.JSON(http.StatusOK, resp)
}

// PreviewRecurrence walks the rule forward without persisting anything.
func (h *TaskHandler) PreviewRecurrence(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	n := previewDefault
	if raw := c.Query("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid n"})
			return
		}
		n = parsed
		if n > previewMax {
			n = previewMax
		}
	}

	task, err := h.store.GetTask(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		h.logger.Error("PreviewRecurrence: failed to fetch task",
			zap.String("task_id", id.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch task"})
		return
	}

	if task.Recurrence == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task has no recurrence rule"})
		return
	}
	if task.DueDate == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task has no due date"})
		return
	}

	members, err := h.store.CountChainMembers(c.Request.Context(), task.ChainRoot())
	if err != nil {
		h.logger.Error("PreviewRecurrence: failed to count chain members",
			zap.String("task_id", id.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to preview recurrence"})
		return
	}

	rule := task.Recurrence.Normalized()
	anchor := *task.DueDate
	occurrences := make([]time.Time, 0, n)
	var stop recurrence.StopReason

	for i := 0; i < n; i++ {
		res := recurrence.Next(anchor, rule, members+i)
		if !res.Advanced() {
			stop = res.Stop
			break
		}
		occurrences = append(occurrences, res.Date)
		anchor = res.Date
	}

	resp := gin.H{"occurrences": occurrences}
	if stop != "" {
		resp["stop_reason"] = stop
	}
	c.JSON(http.StatusOK, resp)
}
