package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/careloop/careteam-BE/internal/docstore"
	"github.com/careloop/careteam-BE/internal/mailer"
	"github.com/careloop/careteam-BE/internal/team"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

const inviteEmailDedupeTTL = 24 * time.Hour

// PayloadInviteEmail carries one invitation email to send.
type PayloadInviteEmail struct {
	Message team.InviteEmailMessage `json:"message"`
}

func (distributor *RedisTaskDistributor) DistributeTaskInviteEmail(
	ctx context.Context,
	payload *PayloadInviteEmail,
	opts ...asynq.Option,
) error {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(TaskInviteEmail, jsonPayload, opts...)
	info, err := distributor.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.Info().Str("type", task.Type()).Bytes("payload", task.Payload()).Str("queue", info.Queue).Int("max_retry", info.MaxRetry).Msg("task enqueued")

	return nil
}

func (processor *RedisTaskProcessor) ProcessTaskInviteEmail(
	ctx context.Context,
	task *asynq.Task,
) error {
	var payload PayloadInviteEmail
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", asynq.SkipRetry)
	}
	msg := payload.Message

	if processor.mailSender == nil {
		log.Info().Str("teamID", msg.TeamID).Msg("no mail sender configured, invite email skipped")
		return nil
	}

	// One email per logical invite. Re-inviting the same account into the
	// same team within the window refreshes the notification only.
	dedupeKey := fmt.Sprintf("invite_email:%s:%s", msg.TeamID, msg.InviteeID)
	fresh, err := processor.redisClient.SetNX(ctx, dedupeKey, 1, inviteEmailDedupeTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to check invite email dedupe key: %w", err)
	}
	if !fresh {
		log.Info().Str("teamID", msg.TeamID).Str("inviteeID", msg.InviteeID).Msg("invite email already sent, skipped")
		return nil
	}

	userDoc, err := processor.store.Get(ctx, team.CollectionUsers, msg.InviteeID)
	if errors.Is(err, docstore.ErrNoSuchDocument) {
		log.Warn().Str("inviteeID", msg.InviteeID).Msg("invitee account gone, invite email skipped")
		return nil
	}
	if err != nil {
		return err
	}

	email, _ := userDoc.Data["email"].(string)
	if email == "" {
		log.Warn().Str("inviteeID", msg.InviteeID).Msg("invitee has no email address, invite email skipped")
		return nil
	}

	if err := processor.mailSender.SendTeamInvite(ctx, mailer.InviteEmail{
		To:          email,
		TeamName:    msg.TeamName,
		InviterName: msg.InviterName,
	}); err != nil {
		return err
	}

	log.Info().Str("type", task.Type()).Str("inviteeID", msg.InviteeID).Msg("task processed")

	return nil
}
