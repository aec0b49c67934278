package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type pushTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

func (server *Server) registerPushToken(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)

	req := new(pushTokenRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	if err := server.pusher.RegisterToken(ctx, userID, req.Token); err != nil {
		handleServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"registered": true})
}

func (server *Server) unregisterPushToken(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)

	req := new(pushTokenRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	if err := server.pusher.UnregisterToken(ctx, userID, req.Token); err != nil {
		handleServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"registered": false})
}
