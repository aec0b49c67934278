package api

import (
	"fmt"

	"github.com/careloop/careteam-BE/internal/audit"
	"github.com/careloop/careteam-BE/internal/docstore"
	"github.com/careloop/careteam-BE/internal/event"
	"github.com/careloop/careteam-BE/internal/notification"
	"github.com/careloop/careteam-BE/internal/push"
	"github.com/careloop/careteam-BE/internal/team"
	"github.com/careloop/careteam-BE/internal/token"
	"github.com/careloop/careteam-BE/internal/util"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Server struct {
	router        *gin.Engine
	store         docstore.Store
	tokenMaker    token.Maker
	config        *util.Config
	notifications *notification.Service
	teams         *team.Service
	pusher        *push.Service
	auditLog      *audit.Recorder
	eventSender   event.EventSender
}

// NewServer creates a new HTTP server and set up routing.
func NewServer(
	store docstore.Store,
	config *util.Config,
	notifications *notification.Service,
	teams *team.Service,
	pusher *push.Service,
	auditLog *audit.Recorder,
	eventSender event.EventSender,
) (*Server, error) {
	tokenMaker, err := token.NewJWTMaker(config.TokenSecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create token maker: %w", err)
	}
	log.Info().Msg("Token maker created successfully ✅")

	server := &Server{
		store:         store,
		tokenMaker:    tokenMaker,
		config:        config,
		notifications: notifications,
		teams:         teams,
		pusher:        pusher,
		auditLog:      auditLog,
		eventSender:   eventSender,
	}

	server.setupRouter()
	return server, nil
}

// setupRouter configures the HTTP server routes.
func (server *Server) setupRouter() {
	gin.ForceConsoleColor()
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     server.config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	v1 := router.Group("/v1")

	v1.POST("/auth/login", server.loginUser)
	v1.POST("/users", server.createUser)

	notificationGroup := v1.Group("/notifications")
	notificationGroup.Use(authMiddleware(server.tokenMaker))
	{
		notificationGroup.GET("", server.listNotifications)
		notificationGroup.GET("/stream", server.streamFeedEvents)
		notificationGroup.POST("/send", requiredProviderRole(server.store), server.sendAppointmentNotification)
		notificationGroup.POST("/push-token", server.registerPushToken)
		notificationGroup.DELETE("/push-token", server.unregisterPushToken)
		notificationGroup.PATCH("/:id", server.updateNotification)
		notificationGroup.DELETE("/:id", server.deleteNotification)
		notificationGroup.POST("/:id/respond", server.respondInvitation)
	}

	teamGroup := v1.Group("/teams")
	teamGroup.Use(authMiddleware(server.tokenMaker), requiredProviderRole(server.store))
	{
		teamGroup.GET("", server.listTeams)
		teamGroup.POST("", server.createTeam)
		teamGroup.PATCH("/:teamID", server.updateTeam)
		teamGroup.DELETE("/:teamID", server.archiveTeam)
		teamGroup.POST("/:teamID/invite", server.inviteDoctor)
		teamGroup.POST("/:teamID/members", server.addTeamMember)
		teamGroup.DELETE("/:teamID/members/:memberID", server.removeTeamMember)
		teamGroup.POST("/:teamID/patients", server.assignPatient)
		teamGroup.DELETE("/:teamID/patients", server.unassignPatient)
	}

	v1.GET("/audit-log", authMiddleware(server.tokenMaker), requiredProviderRole(server.store), server.listAuditLog)

	server.router = router
}

// Start runs the HTTP server on a specific address.
func (server *Server) Start(address string) error {
	return server.router.Run(address)
}
