package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	mqcontracts "taskplanner/contracts/mq"
	"taskplanner/pkg/mq"
)

// MQPort delivers notifications as reminder.due events for push-delivery
// clients to render. A message broker needs no user permission chrome, so
// RequestPermission settles to granted immediately; availability follows
// the connection state.
type MQPort struct {
	publisher *mq.Publisher
	logger    *zap.Logger
}

func NewMQPort(publisher *mq.Publisher, logger *zap.Logger) *MQPort {
	return &MQPort{
		publisher: publisher,
		logger:    logger,
	}
}

func (p *MQPort) Available() bool {
	return p.publisher != nil && p.publisher.IsConnected()
}

func (p *MQPort) RequestPermission(_ context.Context) (PermissionState, error) {
	return PermissionGranted, nil
}

func (p *MQPort) Show(_ context.Context, n Notification) error {
	entries := make([]mqcontracts.ReminderDueEntry, 0, len(n.Tasks))
	for _, ev := range n.Tasks {
		entries = append(entries, mqcontracts.ReminderDueEntry{
			TaskID:  ev.TaskID.String(),
			Title:   ev.Title,
			DueDate: ev.DueDate,
		})
	}

	payload := mqcontracts.ReminderDuePayload{
		Tag:     n.Tag,
		Title:   n.Title,
		Body:    n.Body,
		Grouped: n.Grouped,
		Tasks:   entries,
		FiredAt: time.Now().UTC(),
	}

	if err := p.publisher.Publish("reminder.due", payload); err != nil {
		p.logger.Error("Failed to publish reminder.due", zap.Error(err))
		return err
	}
	return nil
}
