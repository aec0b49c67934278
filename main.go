package main

import (
	"context"
	"os"

	firebase "firebase.google.com/go/v4"
	"github.com/careloop/careteam-BE/api"
	"github.com/careloop/careteam-BE/internal/audit"
	"github.com/careloop/careteam-BE/internal/docstore"
	"github.com/careloop/careteam-BE/internal/event"
	"github.com/careloop/careteam-BE/internal/mailer"
	"github.com/careloop/careteam-BE/internal/notification"
	"github.com/careloop/careteam-BE/internal/push"
	"github.com/careloop/careteam-BE/internal/team"
	"github.com/careloop/careteam-BE/internal/util"
	"github.com/careloop/careteam-BE/internal/worker"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx := context.Background()

	// Load configurations
	config, err := util.LoadConfig("./app.env")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config file 😣")
	}

	log.Info().Msg("configurations loaded successfully ✅")

	firebaseApp, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(config.FirebaseCredentialsFile))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize firebase app 😣")
	}

	store, err := docstore.NewFirestoreStore(ctx, firebaseApp)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create document store 😣")
	}
	log.Info().Msg("connected to document store ✅")

	fcmProvider, err := push.NewFCMProvider(ctx, firebaseApp)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create FCM provider 😣")
	}

	// Create connection pool for the audit trail
	connPool, err := pgxpool.New(ctx, config.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to validate db connection string 😣")
	}

	pingErr := connPool.Ping(ctx)
	if pingErr != nil {
		log.Fatal().Err(pingErr).Msg("failed to connect to db 😣")
	}
	log.Info().Msg("connected to db ✅")

	auditRecorder := audit.NewRecorder(connPool)
	if err = auditRecorder.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize audit trail 😣")
	}

	redisDb := redis.NewClient(&redis.Options{
		Addr:     config.RedisServerAddress,
		Password: "", // no password set
		DB:       0,  // use default DB
	})
	if err = redisDb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis 😣")
	}

	var mailService mailer.EmailSender
	if config.GmailSMTPUsername != "" && config.GmailSMTPPassword != "" {
		gmailSender, err := mailer.NewGmailSender(config.GmailSMTPUsername, config.GmailSMTPPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create mailer service 😣")
		}
		mailService = gmailSender
	} else {
		log.Warn().Msg("SMTP credentials not configured, invite emails disabled")
	}

	redisOpt := asynq.RedisClientOpt{Addr: config.RedisServerAddress}
	taskDistributor := worker.NewTaskDistributor(redisOpt)

	eventSender := event.NewSSEServer()
	go eventSender.Run()

	notificationService := notification.NewService(store, taskDistributor, eventSender)
	pushService := push.NewService(store, fcmProvider)
	teamService := team.NewService(store, notificationService, taskDistributor, auditRecorder)

	go runTaskProcessor(redisOpt, store, notificationService, pushService, mailService, redisDb)

	runHTTPServer(&config, store, notificationService, teamService, pushService, auditRecorder, eventSender)
}

func runTaskProcessor(
	redisOpt asynq.RedisClientOpt,
	store docstore.Store,
	notifications *notification.Service,
	pusher *push.Service,
	mailService mailer.EmailSender,
	redisDb *redis.Client,
) {
	taskProcessor := worker.NewRedisTaskProcessor(redisOpt, store, notifications, pusher, mailService, redisDb)

	log.Info().Msg("task processor started ✅")
	if err := taskProcessor.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start task processor 😣")
	}
}

func runHTTPServer(
	config *util.Config,
	store docstore.Store,
	notifications *notification.Service,
	teams *team.Service,
	pusher *push.Service,
	auditRecorder *audit.Recorder,
	eventSender event.EventSender,
) {
	server, err := api.NewServer(store, config, notifications, teams, pusher, auditRecorder, eventSender)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create HTTP server 😣")
	}

	err = server.Start(config.HTTPServerAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start HTTP server 😣")
	}
}
