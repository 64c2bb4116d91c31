package util

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ReminderClaimer arbitrates which scheduler replica delivers a reminder
// when several poll the same account. It is a fast hint only: the durable
// reminder_sent conditional update remains authoritative.
type ReminderClaimer struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewReminderClaimer(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *ReminderClaimer {
	return &ReminderClaimer{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// Claim returns true if this caller is the first to claim the task's
// reminder. When Redis is unavailable the claim is granted: blocking every
// reminder on a cache outage would be worse than an occasional duplicate.
func (c *ReminderClaimer) Claim(ctx context.Context, taskID uuid.UUID) bool {
	key := fmt.Sprintf("reminder:claim:%s", taskID)

	ok, err := c.rdb.SetNX(ctx, key, 1, c.ttl).Result()
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("Redis reminder claim failed, allowing delivery",
				zap.String("task_id", taskID.String()),
				zap.Error(err),
			)
		}
		return true
	}

	if !ok && c.logger != nil {
		c.logger.Info("Reminder already claimed by another instance",
			zap.String("task_id", taskID.String()),
			zap.String("claim_key", key),
		)
	}

	return ok
}
