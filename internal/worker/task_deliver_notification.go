package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/careloop/careteam-BE/internal/notification"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// PayloadDeliverNotification identifies the notification to push. The record
// itself is re-read at processing time so the push carries current state.
type PayloadDeliverNotification struct {
	NotificationID string `json:"notification_id"`
}

func (distributor *RedisTaskDistributor) DistributeTaskDeliverNotification(
	ctx context.Context,
	payload *PayloadDeliverNotification,
	opts ...asynq.Option,
) error {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(TaskDeliverNotification, jsonPayload, opts...)
	info, err := distributor.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.Info().Str("type", task.Type()).Bytes("payload", task.Payload()).Str("queue", info.Queue).Int("max_retry", info.MaxRetry).Msg("task enqueued")

	return nil
}

func (processor *RedisTaskProcessor) ProcessTaskDeliverNotification(
	ctx context.Context,
	task *asynq.Task,
) error {
	var payload PayloadDeliverNotification
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", asynq.SkipRetry)
	}

	notif, err := processor.notifications.Get(ctx, payload.NotificationID)
	if errors.Is(err, notification.ErrNotFound) {
		// Deleted between enqueue and processing. Nothing to push.
		log.Info().Str("notificationID", payload.NotificationID).Msg("notification gone, push skipped")
		return nil
	}
	if err != nil {
		return err
	}

	if err := processor.pusher.Deliver(ctx, notif); err != nil {
		log.Error().Err(err).Str("notificationID", notif.ID).Msg("push delivery failed")
		return err
	}

	log.Info().Str("type", task.Type()).Str("notificationID", notif.ID).Msg("task processed")

	return nil
}
