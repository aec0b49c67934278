package worker

import (
	"context"

	"github.com/careloop/careteam-BE/internal/docstore"
	"github.com/careloop/careteam-BE/internal/mailer"
	"github.com/careloop/careteam-BE/internal/notification"
	"github.com/careloop/careteam-BE/internal/push"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

/*
This file contains the code that picks up tasks from the Redis queue and processes them.
*/

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

type RedisTaskProcessor struct {
	server        *asynq.Server
	store         docstore.Store
	notifications *notification.Service
	pusher        *push.Service
	mailSender    mailer.EmailSender
	redisClient   *redis.Client
}

func NewRedisTaskProcessor(
	redisOpt asynq.RedisClientOpt,
	store docstore.Store,
	notifications *notification.Service,
	pusher *push.Service,
	mailSender mailer.EmailSender,
	redisClient *redis.Client,
) *RedisTaskProcessor {
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Queues: map[string]int{
				QueueCritical: 10,
				QueueDefault:  5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error().Err(err).Str("type", task.Type()).
					Bytes("payload", task.Payload()).Msg("process task failed")
			}),
			Logger: NewLogger(),
		},
	)

	return &RedisTaskProcessor{
		server:        server,
		store:         store,
		notifications: notifications,
		pusher:        pusher,
		mailSender:    mailSender,
		redisClient:   redisClient,
	}
}

// Start registers the task handlers for the mux, attaches the mux to the asynq server, and starts the server.
func (processor *RedisTaskProcessor) Start() error {
	mux := asynq.NewServeMux()

	mux.HandleFunc(TaskDeliverNotification, processor.ProcessTaskDeliverNotification)
	mux.HandleFunc(TaskInviteResponse, processor.ProcessTaskInviteResponse)
	mux.HandleFunc(TaskInviteEmail, processor.ProcessTaskInviteEmail)

	return processor.server.Start(mux)
}

func (processor *RedisTaskProcessor) Shutdown() {
	processor.server.Shutdown()
}
