package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskplanner/internal/model"
)

const (
	// GroupTag is the constant tag for grouped notifications, so repeats
	// replace rather than stack.
	GroupTag = "task-reminders"

	// taskTagPrefix tags single-task notifications with the task id.
	taskTagPrefix = "task-"

	// groupTitleLimit is how many task titles a grouped body names.
	groupTitleLimit = 3
)

// ClickTarget is where a notification click should navigate: a task's
// detail view, or the unfiltered task list when TaskID is nil.
type ClickTarget struct {
	TaskID *uuid.UUID
}

type ClickHandler func(target ClickTarget)

// Dispatcher turns fired reminder batches into notifications through a
// Port, holding the permission state machine. Every degraded path
// (capability missing, permission not granted) is a silent no-op, never an
// error: a missed visual notification is not a scheduling failure.
type Dispatcher struct {
	port   Port
	logger *zap.Logger

	mu        sync.Mutex
	state     PermissionState
	requested bool
	onClick   ClickHandler
}

func NewDispatcher(port Port, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		port:   port,
		logger: logger,
		state:  PermissionUnrequested,
	}
}

// Permission returns the current permission state.
func (d *Dispatcher) Permission() PermissionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// EnsurePermission runs the single unrequested/default -> granted|denied
// transition. Callers gate it behind a first user interaction; repeat calls
// after the transition return the settled state without re-prompting.
func (d *Dispatcher) EnsurePermission(ctx context.Context) PermissionState {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.port.Available() {
		return d.state
	}
	if d.requested || d.state == PermissionGranted || d.state == PermissionDenied {
		return d.state
	}
	d.requested = true

	state, err := d.port.RequestPermission(ctx)
	if err != nil {
		d.logger.Warn("Permission request failed", zap.Error(err))
		d.state = PermissionDefault
		return d.state
	}

	d.state = state
	d.logger.Info("Notification permission settled", zap.String("state", string(state)))
	return d.state
}

// OnClick registers the handler notification clicks route to.
func (d *Dispatcher) OnClick(h ClickHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onClick = h
}

// RouteClick routes a click event back into the host application: a
// single-task tag navigates to that task, anything else to the task list.
func (d *Dispatcher) RouteClick(tag string, taskID string) {
	d.mu.Lock()
	handler := d.onClick
	d.mu.Unlock()
	if handler == nil {
		return
	}

	if tag != GroupTag && taskID != "" {
		if id, err := uuid.Parse(taskID); err == nil {
			handler(ClickTarget{TaskID: &id})
			return
		}
	}
	handler(ClickTarget{})
}

// Dispatch renders a fired batch: one notification per singleton batch, one
// grouped notification otherwise.
func (d *Dispatcher) Dispatch(ctx context.Context, batch []model.ReminderEvent) error {
	if len(batch) == 0 {
		return nil
	}

	if !d.port.Available() {
		d.logger.Debug("Notification capability unavailable, skipping dispatch")
		return nil
	}
	if d.Permission() != PermissionGranted {
		d.logger.Debug("Notification permission not granted, skipping dispatch",
			zap.String("state", string(d.Permission())),
		)
		return nil
	}

	var n Notification
	if len(batch) == 1 {
		n = singleNotification(batch[0])
	} else {
		n = groupedNotification(batch)
	}

	if err := d.port.Show(ctx, n); err != nil {
		return fmt.Errorf("notify: show failed: %w", err)
	}

	d.logger.Info("Reminder notification delivered",
		zap.String("tag", n.Tag),
		zap.Bool("grouped", n.Grouped),
		zap.Int("tasks", len(batch)),
	)
	return nil
}

func singleNotification(ev model.ReminderEvent) Notification {
	return Notification{
		Title:   ev.Title,
		Body:    fmt.Sprintf("Due at %s", ev.DueDate.Format("15:04")),
		Tag:     taskTagPrefix + ev.TaskID.String(),
		Grouped: false,
		Tasks:   []model.ReminderEvent{ev},
	}
}

func groupedNotification(batch []model.ReminderEvent) Notification {
	titles := make([]string, 0, groupTitleLimit)
	for i, ev := range batch {
		if i == groupTitleLimit {
			break
		}
		titles = append(titles, ev.Title)
	}

	body := strings.Join(titles, ", ")
	if rest := len(batch) - groupTitleLimit; rest > 0 {
		body = fmt.Sprintf("%s ...and %d more", body, rest)
	}

	return Notification{
		Title:   fmt.Sprintf("%d tasks due", len(batch)),
		Body:    body,
		Tag:     GroupTag,
		Grouped: true,
		Tasks:   batch,
	}
}
