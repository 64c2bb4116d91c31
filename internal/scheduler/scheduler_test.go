package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskplanner/internal/model"
	"taskplanner/pkg/config"
)

type fakeStore struct {
	mu       sync.Mutex
	tasks    []*model.Task
	listErr  error
	markErrs map[uuid.UUID]int // remaining failures per task
	marks    int
}

func newFakeStore(tasks ...*model.Task) *fakeStore {
	return &fakeStore{tasks: tasks, markErrs: make(map[uuid.UUID]int)}
}

func (s *fakeStore) ListDueCandidates(_ context.Context, limit int) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []model.Task
	for _, t := range s.tasks {
		if t.Completed || t.DueDate == nil {
			continue
		}
		out = append(out, *t)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) MarkReminderSent(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.markErrs[id]; n > 0 {
		s.markErrs[id] = n - 1
		return false, errors.New("storage unavailable")
	}
	s.marks++
	for _, t := range s.tasks {
		if t.ID == id {
			if t.ReminderSent {
				return false, nil
			}
			t.ReminderSent = true
			return true, nil
		}
	}
	return false, nil
}

type fakeDispatcher struct {
	mu      sync.Mutex
	batches [][]model.ReminderEvent
	err     error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, batch []model.ReminderEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]model.ReminderEvent, len(batch))
	copy(cp, batch)
	d.batches = append(d.batches, cp)
	return d.err
}

func (d *fakeDispatcher) batchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.batches)
}

type fakeClaimer struct {
	deny map[uuid.UUID]bool
}

func (c *fakeClaimer) Claim(_ context.Context, id uuid.UUID) bool {
	return !c.deny[id]
}

func intPtr(v int) *int { return &v }

func dueTask(title string, due time.Time, offsetMinutes int) *model.Task {
	return &model.Task{
		ID:             uuid.New(),
		Title:          title,
		DueDate:        &due,
		ReminderOffset: intPtr(offsetMinutes),
	}
}

func testConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		PollInterval:   time.Minute,
		GraceWindow:    30 * time.Second,
		CandidateLimit: 50,
		CallTimeout:    time.Second,
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestFiresSingletonReminderOnce(t *testing.T) {
	due := time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)
	now := time.Date(2026, 2, 5, 8, 45, 10, 0, time.UTC)

	task := dueTask("file taxes", due, 15)
	store := newFakeStore(task)
	disp := &fakeDispatcher{}

	s := New(store, disp, nil, testConfig(), zap.NewNop()).WithClock(fixedClock(now))

	s.RunTick(context.Background())
	require.Equal(t, 1, disp.batchCount())
	require.Len(t, disp.batches[0], 1)
	assert.Equal(t, task.ID, disp.batches[0][0].TaskID)
	assert.True(t, task.ReminderSent)

	// Second tick: nothing left to fire.
	s.RunTick(context.Background())
	assert.Equal(t, 1, disp.batchCount())
}

func TestReminderNotYetDueDoesNotFire(t *testing.T) {
	due := time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)
	now := time.Date(2026, 2, 5, 8, 30, 0, 0, time.UTC) // reminder at 08:45

	store := newFakeStore(dueTask("early", due, 15))
	disp := &fakeDispatcher{}
	s := New(store, disp, nil, testConfig(), zap.NewNop()).WithClock(fixedClock(now))

	s.RunTick(context.Background())
	assert.Zero(t, disp.batchCount())
}

func TestLateReminderStillFiresExactlyOnce(t *testing.T) {
	due := time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)
	// Client slept for hours past the reminder time.
	now := time.Date(2026, 2, 5, 14, 0, 0, 0, time.UTC)

	task := dueTask("late", due, 15)
	store := newFakeStore(task)
	disp := &fakeDispatcher{}
	s := New(store, disp, nil, testConfig(), zap.NewNop()).WithClock(fixedClock(now))

	s.RunTick(context.Background())
	s.RunTick(context.Background())
	assert.Equal(t, 1, disp.batchCount())
	assert.True(t, task.ReminderSent)
}

func TestThreeDueTasksGroupIntoOneBatch(t *testing.T) {
	now := time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)

	a := dueTask("a", now.Add(5*time.Minute), 10)  // reminder 08:55
	b := dueTask("b", now.Add(10*time.Minute), 10) // reminder 09:00
	c := dueTask("c", now, 0)                      // reminder 09:00

	store := newFakeStore(c, a, b) // repository returns due-date ascending
	disp := &fakeDispatcher{}
	s := New(store, disp, nil, testConfig(), zap.NewNop()).WithClock(fixedClock(now))

	s.RunTick(context.Background())
	require.Equal(t, 1, disp.batchCount())
	batch := disp.batches[0]
	require.Len(t, batch, 3)
	// Due-date ascending order within the tick.
	assert.Equal(t, "c", batch[0].Title)
	assert.True(t, a.ReminderSent)
	assert.True(t, b.ReminderSent)
	assert.True(t, c.ReminderSent)
}

func TestSkipsTasksWithoutOffsetOrAlreadySent(t *testing.T) {
	now := time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)

	noOffset := dueTask("no offset", now, 0)
	noOffset.ReminderOffset = nil
	sent := dueTask("sent", now, 0)
	sent.ReminderSent = true

	store := newFakeStore(noOffset, sent)
	disp := &fakeDispatcher{}
	s := New(store, disp, nil, testConfig(), zap.NewNop()).WithClock(fixedClock(now))

	s.RunTick(context.Background())
	assert.Zero(t, disp.batchCount())
	assert.Zero(t, store.marks)
}

func TestMarkFailureRetriesWithoutRedispatch(t *testing.T) {
	now := time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)

	task := dueTask("flaky mark", now, 0)
	store := newFakeStore(task)
	store.markErrs[task.ID] = 1 // first mark attempt fails
	disp := &fakeDispatcher{}
	s := New(store, disp, nil, testConfig(), zap.NewNop()).WithClock(fixedClock(now))

	s.RunTick(context.Background())
	require.Equal(t, 1, disp.batchCount())
	assert.False(t, task.ReminderSent, "first mark failed")

	// Next tick retries the durable mark but never re-notifies.
	s.RunTick(context.Background())
	assert.Equal(t, 1, disp.batchCount())
	assert.True(t, task.ReminderSent)
}

func TestDispatchErrorStillMarksSent(t *testing.T) {
	now := time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)

	task := dueTask("display broken", now, 0)
	store := newFakeStore(task)
	disp := &fakeDispatcher{err: errors.New("broker unavailable")}
	s := New(store, disp, nil, testConfig(), zap.NewNop()).WithClock(fixedClock(now))

	// Display failure is not a scheduling failure.
	s.RunTick(context.Background())
	assert.True(t, task.ReminderSent)
}

func TestListFailureLeavesEverythingEligible(t *testing.T) {
	now := time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)

	task := dueTask("unlisted", now, 0)
	store := newFakeStore(task)
	store.listErr = errors.New("connection refused")
	disp := &fakeDispatcher{}
	s := New(store, disp, nil, testConfig(), zap.NewNop()).WithClock(fixedClock(now))

	s.RunTick(context.Background())
	assert.Zero(t, disp.batchCount())

	store.mu.Lock()
	store.listErr = nil
	store.mu.Unlock()

	s.RunTick(context.Background())
	assert.Equal(t, 1, disp.batchCount())
}

func TestLostClaimSkipsDispatchAndMark(t *testing.T) {
	now := time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)

	task := dueTask("other replica won", now, 0)
	store := newFakeStore(task)
	disp := &fakeDispatcher{}
	claimer := &fakeClaimer{deny: map[uuid.UUID]bool{task.ID: true}}
	s := New(store, disp, claimer, testConfig(), zap.NewNop()).WithClock(fixedClock(now))

	s.RunTick(context.Background())
	assert.Zero(t, disp.batchCount())
	assert.Zero(t, store.marks, "the winning replica owns the durable mark")
}

func TestOverlappingTickIsSkipped(t *testing.T) {
	now := time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)

	task := dueTask("busy", now, 0)
	store := newFakeStore(task)
	disp := &fakeDispatcher{}
	s := New(store, disp, nil, testConfig(), zap.NewNop()).WithClock(fixedClock(now))

	s.inFlight.Store(true)
	s.RunTick(context.Background())
	assert.Zero(t, disp.batchCount(), "tick skipped while previous one runs")

	s.inFlight.Store(false)
	s.RunTick(context.Background())
	assert.Equal(t, 1, disp.batchCount())
}

func TestStartStopLifecycle(t *testing.T) {
	now := time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)

	task := dueTask("lifecycle", now, 0)
	store := newFakeStore(task)
	disp := &fakeDispatcher{}

	cfg := testConfig()
	cfg.PollInterval = 10 * time.Millisecond
	s := New(store, disp, nil, cfg, zap.NewNop()).WithClock(fixedClock(now))

	assert.False(t, s.Running())
	s.Start()
	assert.True(t, s.Running())
	s.Start() // idempotent

	// The immediate first check fires the due reminder.
	require.Eventually(t, func() bool {
		return disp.batchCount() == 1
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.Running())
	s.Stop() // idempotent

	// No ticks after stop.
	count := disp.batchCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, count, disp.batchCount())
}
