package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskplanner/internal/model"
)

type fakePort struct {
	available    bool
	grantOutcome PermissionState
	requestCount int
	shown        []Notification
	showErr      error
}

func (p *fakePort) Available() bool {
	return p.available
}

func (p *fakePort) RequestPermission(_ context.Context) (PermissionState, error) {
	p.requestCount++
	return p.grantOutcome, nil
}

func (p *fakePort) Show(_ context.Context, n Notification) error {
	if p.showErr != nil {
		return p.showErr
	}
	p.shown = append(p.shown, n)
	return nil
}

func event(title string, due time.Time) model.ReminderEvent {
	return model.ReminderEvent{TaskID: uuid.New(), Title: title, DueDate: due}
}

func grantedDispatcher(t *testing.T, port *fakePort) *Dispatcher {
	t.Helper()
	d := NewDispatcher(port, zap.NewNop())
	require.Equal(t, PermissionGranted, d.EnsurePermission(context.Background()))
	return d
}

func TestSingleBatchRendersSingleNotification(t *testing.T) {
	port := &fakePort{available: true, grantOutcome: PermissionGranted}
	d := grantedDispatcher(t, port)

	due := time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)
	ev := event("file taxes", due)

	err := d.Dispatch(context.Background(), []model.ReminderEvent{ev})
	require.NoError(t, err)
	require.Len(t, port.shown, 1)

	n := port.shown[0]
	assert.Equal(t, "file taxes", n.Title)
	assert.Equal(t, "Due at 09:00", n.Body)
	assert.Equal(t, "task-"+ev.TaskID.String(), n.Tag)
	assert.False(t, n.Grouped)
}

func TestFiveTaskBatchRendersOneGroupedNotification(t *testing.T) {
	port := &fakePort{available: true, grantOutcome: PermissionGranted}
	d := grantedDispatcher(t, port)

	due := time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)
	batch := []model.ReminderEvent{
		event("alpha", due),
		event("bravo", due),
		event("charlie", due),
		event("delta", due),
		event("echo", due),
	}

	err := d.Dispatch(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, port.shown, 1, "exactly one grouped notification")

	n := port.shown[0]
	assert.Equal(t, "5 tasks due", n.Title)
	assert.Equal(t, "alpha, bravo, charlie ...and 2 more", n.Body)
	assert.Equal(t, GroupTag, n.Tag)
	assert.True(t, n.Grouped)
}

func TestThreeTaskBatchNamesAllTitles(t *testing.T) {
	port := &fakePort{available: true, grantOutcome: PermissionGranted}
	d := grantedDispatcher(t, port)

	due := time.Now()
	batch := []model.ReminderEvent{event("a", due), event("b", due), event("c", due)}

	require.NoError(t, d.Dispatch(context.Background(), batch))
	require.Len(t, port.shown, 1)
	assert.Equal(t, "a, b, c", port.shown[0].Body)
}

func TestDispatchNoopsWithoutCapability(t *testing.T) {
	port := &fakePort{available: false}
	d := NewDispatcher(port, zap.NewNop())

	err := d.Dispatch(context.Background(), []model.ReminderEvent{event("x", time.Now())})
	assert.NoError(t, err)
	assert.Empty(t, port.shown)
}

func TestDispatchNoopsWhenDenied(t *testing.T) {
	port := &fakePort{available: true, grantOutcome: PermissionDenied}
	d := NewDispatcher(port, zap.NewNop())
	require.Equal(t, PermissionDenied, d.EnsurePermission(context.Background()))

	err := d.Dispatch(context.Background(), []model.ReminderEvent{event("x", time.Now())})
	assert.NoError(t, err)
	assert.Empty(t, port.shown)
}

func TestDispatchNoopsBeforePermissionRequested(t *testing.T) {
	port := &fakePort{available: true, grantOutcome: PermissionGranted}
	d := NewDispatcher(port, zap.NewNop())

	err := d.Dispatch(context.Background(), []model.ReminderEvent{event("x", time.Now())})
	assert.NoError(t, err)
	assert.Empty(t, port.shown)
}

func TestPermissionRequestedExactlyOnce(t *testing.T) {
	port := &fakePort{available: true, grantOutcome: PermissionDenied}
	d := NewDispatcher(port, zap.NewNop())

	assert.Equal(t, PermissionDenied, d.EnsurePermission(context.Background()))
	assert.Equal(t, PermissionDenied, d.EnsurePermission(context.Background()))
	assert.Equal(t, 1, port.requestCount, "denied is terminal, no re-prompt")
}

func TestShowErrorIsSurfacedNotPanicked(t *testing.T) {
	port := &fakePort{available: true, grantOutcome: PermissionGranted, showErr: errors.New("broker gone")}
	d := grantedDispatcher(t, port)

	err := d.Dispatch(context.Background(), []model.ReminderEvent{event("x", time.Now())})
	assert.Error(t, err)
}

func TestClickRouting(t *testing.T) {
	port := &fakePort{available: true, grantOutcome: PermissionGranted}
	d := NewDispatcher(port, zap.NewNop())

	var got []ClickTarget
	d.OnClick(func(target ClickTarget) {
		got = append(got, target)
	})

	taskID := uuid.New()
	d.RouteClick("task-"+taskID.String(), taskID.String())
	d.RouteClick(GroupTag, "")

	require.Len(t, got, 2)
	require.NotNil(t, got[0].TaskID)
	assert.Equal(t, taskID, *got[0].TaskID)
	assert.Nil(t, got[1].TaskID, "grouped click goes to the unfiltered list")
}
