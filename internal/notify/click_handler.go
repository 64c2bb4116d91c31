package notify

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	mqcontracts "taskplanner/contracts/mq"
)

// ReminderClickedHandler consumes reminder.clicked events reported by
// delivery clients and routes them through the dispatcher's click handler.
type ReminderClickedHandler struct {
	dispatcher *Dispatcher
	logger     *zap.Logger
}

func NewReminderClickedHandler(dispatcher *Dispatcher, logger *zap.Logger) *ReminderClickedHandler {
	return &ReminderClickedHandler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (h *ReminderClickedHandler) Handle(_ context.Context, raw json.RawMessage) error {
	var p mqcontracts.ReminderClickedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal ReminderClickedPayload", zap.Error(err))
		return err
	}

	h.logger.Info("Handling reminder.clicked event",
		zap.String("tag", p.Tag),
		zap.String("task_id", p.TaskID),
	)

	h.dispatcher.RouteClick(p.Tag, p.TaskID)
	return nil
}
