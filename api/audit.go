package api

import (
	"net/http"
	"strconv"

	"github.com/careloop/careteam-BE/internal/audit"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func (server *Server) listAuditLog(ctx *gin.Context) {
	if server.auditLog == nil {
		ctx.JSON(http.StatusServiceUnavailable, errorResponse(ErrInternalServer))
		return
	}

	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse(err))
			return
		}
		limit = parsed
	}

	entries, err := server.auditLog.List(ctx, limit)
	if err != nil {
		log.Err(err).Msg("failed to list audit log")
		ctx.JSON(http.StatusInternalServerError, errorResponse(ErrInternalServer))
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	ctx.JSON(http.StatusOK, gin.H{"entries": entries})
}
