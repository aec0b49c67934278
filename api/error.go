package api

import (
	"errors"
	"net/http"

	"github.com/careloop/careteam-BE/internal/notification"
	"github.com/careloop/careteam-BE/internal/team"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var (
	ErrInternalServer = errors.New("internal server error")
	ErrProviderOnly   = errors.New("requires a provider account")
)

func errorResponse(err error) gin.H {
	return gin.H{"error": err.Error()}
}

// handleServiceError translates domain sentinel errors into HTTP statuses.
// Anything unrecognized is logged and reported as a 500 without leaking the
// underlying error to the client.
func handleServiceError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, notification.ErrNotFound),
		errors.Is(err, team.ErrTeamNotFound),
		errors.Is(err, team.ErrUserNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse(err))

	case errors.Is(err, notification.ErrForbidden),
		errors.Is(err, team.ErrNotOwner),
		errors.Is(err, team.ErrNotMember),
		errors.Is(err, team.ErrNotEligible),
		errors.Is(err, team.ErrOwnerImmovable):
		ctx.JSON(http.StatusForbidden, errorResponse(err))

	case errors.Is(err, team.ErrAlreadyMember),
		errors.Is(err, team.ErrInviteResolved),
		errors.Is(err, team.ErrTeamGone):
		ctx.JSON(http.StatusConflict, errorResponse(err))

	case errors.Is(err, notification.ErrRecipientRequired),
		errors.Is(err, notification.ErrUnknownType),
		errors.Is(err, team.ErrNameRequired),
		errors.Is(err, team.ErrSelfInvite),
		errors.Is(err, team.ErrNotPatient),
		errors.Is(err, team.ErrNotInvite),
		errors.Is(err, team.ErrInviteCorrupted):
		ctx.JSON(http.StatusBadRequest, errorResponse(err))

	default:
		log.Err(err).Msg("unhandled service error")
		ctx.JSON(http.StatusInternalServerError, errorResponse(ErrInternalServer))
	}
}
