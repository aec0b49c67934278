package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/careloop/careteam-BE/internal/notification"
	"github.com/careloop/careteam-BE/internal/team"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// PayloadInviteResponse tells the inviter how their invitation was answered.
type PayloadInviteResponse struct {
	Message team.InviteResponseMessage `json:"message"`
}

func (distributor *RedisTaskDistributor) DistributeTaskInviteResponse(
	ctx context.Context,
	payload *PayloadInviteResponse,
	opts ...asynq.Option,
) error {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(TaskInviteResponse, jsonPayload, opts...)
	info, err := distributor.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.Info().Str("type", task.Type()).Bytes("payload", task.Payload()).Str("queue", info.Queue).Int("max_retry", info.MaxRetry).Msg("task enqueued")

	return nil
}

func (processor *RedisTaskProcessor) ProcessTaskInviteResponse(
	ctx context.Context,
	task *asynq.Task,
) error {
	var payload PayloadInviteResponse
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", asynq.SkipRetry)
	}
	msg := payload.Message

	verb := "declined"
	action := "rejected"
	if msg.Accepted {
		verb = "accepted"
		action = "accepted"
	}

	_, err := processor.notifications.Create(ctx, notification.CreateInput{
		RecipientID: msg.InviterID,
		ActorID:     msg.ResponderID,
		ActorName:   msg.ResponderName,
		Type:        notification.TypeTeamInviteResponse,
		Title:       "Invitation " + action,
		Body:        fmt.Sprintf("%s %s your invitation to the care team %q.", msg.ResponderName, verb, msg.TeamName),
		Href:        "/teams/" + msg.TeamID,
		Metadata: map[string]any{
			"teamId": msg.TeamID,
			"action": action,
		},
	})
	if err != nil {
		log.Error().Err(err).Str("teamID", msg.TeamID).Msg("failed to create invite response notification")
		return err
	}

	log.Info().Str("type", task.Type()).Str("teamID", msg.TeamID).Str("inviterID", msg.InviterID).Msg("task processed")

	return nil
}
