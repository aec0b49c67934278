package worker

import (
	"context"

	"github.com/careloop/careteam-BE/internal/team"
	"github.com/hibiken/asynq"
)

const (
	TaskDeliverNotification = "notification:deliver"
	TaskInviteResponse      = "notification:invite_response"
	TaskInviteEmail         = "email:team_invite"
)

/*
This file contains the code that creates tasks and distributes them to the Redis queue.
*/

type TaskDistributor interface {
	DistributeTaskDeliverNotification(ctx context.Context, payload *PayloadDeliverNotification, opts ...asynq.Option) error
	DistributeTaskInviteResponse(ctx context.Context, payload *PayloadInviteResponse, opts ...asynq.Option) error
	DistributeTaskInviteEmail(ctx context.Context, payload *PayloadInviteEmail, opts ...asynq.Option) error
}

type RedisTaskDistributor struct {
	client *asynq.Client // client sends tasks to redis queue.
}

func NewTaskDistributor(redisOpt asynq.RedisClientOpt) *RedisTaskDistributor {
	client := asynq.NewClient(redisOpt)

	return &RedisTaskDistributor{
		client: client,
	}
}

// DispatchDeliverNotification enqueues push delivery for one notification.
// MaxRetry 0 keeps delivery at-most-once: a transient failure drops the push
// rather than risking a duplicate.
func (distributor *RedisTaskDistributor) DispatchDeliverNotification(ctx context.Context, notificationID string) error {
	return distributor.DistributeTaskDeliverNotification(ctx,
		&PayloadDeliverNotification{NotificationID: notificationID},
		asynq.MaxRetry(0), asynq.Queue(QueueCritical),
	)
}

func (distributor *RedisTaskDistributor) DispatchInviteResponseNotification(ctx context.Context, msg team.InviteResponseMessage) error {
	return distributor.DistributeTaskInviteResponse(ctx,
		&PayloadInviteResponse{Message: msg},
		asynq.Queue(QueueDefault),
	)
}

func (distributor *RedisTaskDistributor) DispatchInviteEmail(ctx context.Context, msg team.InviteEmailMessage) error {
	return distributor.DistributeTaskInviteEmail(ctx,
		&PayloadInviteEmail{Message: msg},
		asynq.Queue(QueueDefault),
	)
}
