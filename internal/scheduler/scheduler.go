package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskplanner/internal/model"
	"taskplanner/pkg/config"
	"taskplanner/pkg/metrics"
	"taskplanner/pkg/util"
)

// Store is the slice of the task storage collaborator the scheduler needs.
type Store interface {
	ListDueCandidates(ctx context.Context, limit int) ([]model.Task, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) (claimed bool, err error)
}

// Dispatcher renders a fired reminder batch. Degraded delivery (permission
// denied, capability missing) returns nil: display failure is not a
// scheduling failure.
type Dispatcher interface {
	Dispatch(ctx context.Context, batch []model.ReminderEvent) error
}

// Claimer arbitrates delivery between concurrent scheduler replicas. May be
// nil (single-replica deployment).
type Claimer interface {
	Claim(ctx context.Context, taskID uuid.UUID) bool
}

// Scheduler polls for due reminders on a fixed cadence. Lifecycle is
// Stopped -> Running -> Stopped; Start fires an immediate check, Stop
// cancels the timer and waits for the loop to exit. Ticks never overlap:
// a tick that would start while the previous one still runs is skipped,
// not queued.
type Scheduler struct {
	store      Store
	dispatcher Dispatcher
	claimer    Claimer
	cfg        config.SchedulerConfig
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	inFlight atomic.Bool

	// fired is the session dedup hint; pendingMarks holds tasks whose
	// durable reminder_sent write has not landed yet. Both are in-memory
	// only: reminder_sent in storage is the authoritative dedup.
	fired        map[uuid.UUID]struct{}
	pendingMarks map[uuid.UUID]struct{}
}

func New(store Store, dispatcher Dispatcher, claimer Claimer, cfg config.SchedulerConfig, logger *zap.Logger) *Scheduler {
	cfg.Normalize()
	return &Scheduler{
		store:        store,
		dispatcher:   dispatcher,
		claimer:      claimer,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
		fired:        make(map[uuid.UUID]struct{}),
		pendingMarks: make(map[uuid.UUID]struct{}),
	}
}

// WithClock overrides the clock source.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Running reports the lifecycle state.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start transitions Stopped -> Running: spawns the poll loop with an
// immediate first check. Starting a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.fired = make(map[uuid.UUID]struct{})
	s.pendingMarks = make(map[uuid.UUID]struct{})

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info("Reminder scheduler starting",
		zap.Duration("poll_interval", s.cfg.PollInterval),
		zap.Duration("grace_window", s.cfg.GraceWindow),
		zap.Int("candidate_limit", s.cfg.CandidateLimit),
	)

	go s.run(ctx)
}

// Stop transitions Running -> Stopped: cancels the pending timer, abandons
// in-flight work at its next timeout, and waits for the loop to exit.
// Fired-but-unmarked tasks are safe to reprocess on the next Start because
// reminder_sent marking is the authoritative dedup.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("Reminder scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	s.RunTick(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunTick(ctx)
		}
	}
}

// RunTick executes one scheduler tick. Skips (never queues) when the
// previous tick is still in flight; recovers panics so one bad tick can
// never kill the loop.
func (s *Scheduler) RunTick(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		metrics.TickSkippedCount.Inc()
		s.logger.Warn("Previous tick still running, skipping")
		return
	}
	defer s.inFlight.Store(false)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Tick panic recovered", zap.Any("panic", r))
		}
	}()

	start := time.Now()
	s.checkDueReminders(ctx)
	metrics.RecordTickDuration(time.Since(start))
}

func (s *Scheduler) checkDueReminders(ctx context.Context) {
	// Durable marking retries come first: these tasks already notified.
	s.retryPendingMarks(ctx)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	tasks, err := s.store.ListDueCandidates(callCtx, s.cfg.CandidateLimit)
	cancel()
	if err != nil {
		retryable, kind := util.IsRetryableError(err)
		s.logger.Error("Failed to list due candidates",
			zap.String("error_type", kind),
			zap.Bool("retryable", retryable),
			zap.Error(err),
		)
		return
	}

	now := s.now()
	var firing []model.ReminderEvent

	// Candidates arrive in due_date ascending order; firing keeps it.
	for _, task := range tasks {
		if task.ReminderSent {
			continue
		}
		if _, seen := s.fired[task.ID]; seen {
			continue
		}
		reminderAt, ok := task.ReminderTime()
		if !ok || reminderAt.After(now) {
			continue
		}

		// Anything past the grace window is late, but a due reminder is
		// more valuable late than never: fire it anyway, once.
		if late := now.Sub(reminderAt); late > s.cfg.GraceWindow {
			s.logger.Info("Firing late reminder",
				zap.String("task_id", task.ID.String()),
				zap.Duration("late_by", late),
			)
		}

		if s.claimer != nil && !s.claimer.Claim(ctx, task.ID) {
			// Another replica owns delivery; the winner also marks.
			s.fired[task.ID] = struct{}{}
			continue
		}

		firing = append(firing, model.ReminderEvent{
			TaskID:  task.ID,
			Title:   task.Title,
			DueDate: *task.DueDate,
		})
	}

	if len(firing) == 0 {
		return
	}

	mode := "single"
	if len(firing) > 1 {
		mode = "grouped"
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	err = s.dispatcher.Dispatch(dispatchCtx, firing)
	cancel()
	if err != nil {
		// Display failed; scheduling still succeeded. Mark processed.
		s.logger.Error("Reminder dispatch failed", zap.Error(err))
	}
	metrics.IncrementReminderFired(mode, len(firing))

	for _, ev := range firing {
		s.fired[ev.TaskID] = struct{}{}
		s.markSent(ctx, ev.TaskID)
	}
}

func (s *Scheduler) retryPendingMarks(ctx context.Context) {
	for id := range s.pendingMarks {
		s.markSent(ctx, id)
	}
}

func (s *Scheduler) markSent(ctx context.Context, id uuid.UUID) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	claimed, err := s.store.MarkReminderSent(callCtx, id)
	cancel()

	if err != nil {
		// Leave the durable flag unset and retry next tick. The session
		// fired set prevents a duplicate notification meanwhile.
		s.pendingMarks[id] = struct{}{}
		s.logger.Warn("Failed to mark reminder sent, will retry",
			zap.String("task_id", id.String()),
			zap.Error(err),
		)
		return
	}

	delete(s.pendingMarks, id)
	if !claimed {
		s.logger.Debug("Reminder was already marked sent",
			zap.String("task_id", id.String()),
		)
	}
}
