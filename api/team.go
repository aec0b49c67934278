package api

import (
	"net/http"

	"github.com/careloop/careteam-BE/internal/team"
	"github.com/gin-gonic/gin"
)

func (server *Server) listTeams(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)

	teams, err := server.teams.ListTeams(ctx, userID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"teams": teams})
}

type createTeamRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

func (server *Server) createTeam(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)

	req := new(createTeamRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	created, err := server.teams.CreateTeam(ctx, team.CreateTeamInput{
		OwnerID:     userID,
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

type updateTeamRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

func (server *Server) updateTeam(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)
	teamID := ctx.Param("teamID")

	req := new(updateTeamRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	updated, err := server.teams.UpdateTeam(ctx, teamID, userID, team.UpdateTeamInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

func (server *Server) archiveTeam(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)
	teamID := ctx.Param("teamID")

	if err := server.teams.ArchiveTeam(ctx, teamID, userID); err != nil {
		handleServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"archived": teamID})
}

type doctorIDRequest struct {
	DoctorID string `json:"doctor_id" binding:"required"`
}

func (server *Server) inviteDoctor(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)
	teamID := ctx.Param("teamID")

	req := new(doctorIDRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	updated, err := server.teams.Invite(ctx, teamID, userID, req.DoctorID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

func (server *Server) addTeamMember(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)
	teamID := ctx.Param("teamID")

	req := new(doctorIDRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	updated, err := server.teams.AddMember(ctx, teamID, userID, req.DoctorID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

func (server *Server) removeTeamMember(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)
	teamID := ctx.Param("teamID")
	memberID := ctx.Param("memberID")

	updated, err := server.teams.RemoveMember(ctx, teamID, userID, memberID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

type patientIDRequest struct {
	PatientID string `json:"patient_id" binding:"required"`
}

func (server *Server) assignPatient(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)
	teamID := ctx.Param("teamID")

	req := new(patientIDRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	updated, err := server.teams.AssignPatient(ctx, teamID, userID, req.PatientID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

func (server *Server) unassignPatient(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)
	teamID := ctx.Param("teamID")

	req := new(patientIDRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	updated, err := server.teams.UnassignPatient(ctx, teamID, userID, req.PatientID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, updated)
}
