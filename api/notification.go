package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/careloop/careteam-BE/internal/notification"
	"github.com/careloop/careteam-BE/internal/team"
	"github.com/gin-gonic/gin"
)

type listNotificationsResponse struct {
	Notifications []notification.Notification `json:"notifications"`
	UnreadCount   int                         `json:"unread_count"`
}

func (server *Server) listNotifications(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)

	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse(errors.New("limit must be an integer")))
			return
		}
		limit = parsed
	}

	notifications, err := server.notifications.ListByRecipient(ctx, userID, limit)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	if ctx.Query("unread") == "true" {
		unread := notifications[:0:0]
		for _, item := range notifications {
			if !item.Read {
				unread = append(unread, item)
			}
		}
		notifications = unread
	}

	unreadCount, err := server.notifications.UnreadCount(ctx, userID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, listNotificationsResponse{
		Notifications: notifications,
		UnreadCount:   unreadCount,
	})
}

type updateNotificationRequest struct {
	Action string `json:"action" binding:"required,oneof=mark_read mark_unread"`
}

func (server *Server) updateNotification(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)
	notificationID := ctx.Param("id")

	req := new(updateNotificationRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	updated, err := server.notifications.SetRead(ctx, notificationID, userID, req.Action == "mark_read")
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

func (server *Server) deleteNotification(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)
	notificationID := ctx.Param("id")

	if err := server.notifications.Delete(ctx, notificationID, userID); err != nil {
		handleServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"deleted": notificationID})
}

type respondInvitationRequest struct {
	Decision string `json:"decision" binding:"required"`
}

func (server *Server) respondInvitation(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)
	notificationID := ctx.Param("id")

	req := new(respondInvitationRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	decision, ok := team.ParseDecision(req.Decision)
	if !ok {
		ctx.JSON(http.StatusBadRequest, errorResponse(errors.New("decision must be accept or reject")))
		return
	}

	resolved, err := server.teams.Respond(ctx, notificationID, userID, decision)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"decision": resolved})
}

type sendAppointmentNotificationRequest struct {
	PatientID string    `json:"patient_id" binding:"required"`
	Event     string    `json:"event" binding:"required,oneof=booked rescheduled cancelled"`
	StartsAt  time.Time `json:"starts_at" binding:"required"`
	Href      string    `json:"href"`
}

func (server *Server) sendAppointmentNotification(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)

	req := new(sendAppointmentNotificationRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	providerDoc, err := server.store.Get(ctx, usersCollection, userID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	providerName, _ := providerDoc.Data["name"].(string)

	appointment := notification.AppointmentEvent{
		PatientID:    req.PatientID,
		ProviderName: providerName,
		StartsAt:     req.StartsAt,
		Href:         req.Href,
	}

	var created notification.Notification
	switch req.Event {
	case "booked":
		created, err = server.notifications.CreateAppointmentBooked(ctx, appointment)
	case "rescheduled":
		created, err = server.notifications.CreateAppointmentRescheduled(ctx, appointment)
	case "cancelled":
		created, err = server.notifications.CreateAppointmentCancelled(ctx, appointment)
	}
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, created)
}
