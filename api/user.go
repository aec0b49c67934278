package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/careloop/careteam-BE/internal/docstore"
	"github.com/careloop/careteam-BE/internal/util"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(doc docstore.Document) userResponse {
	resp := userResponse{ID: doc.ID}
	resp.Email, _ = doc.Data["email"].(string)
	resp.Name, _ = doc.Data["name"].(string)
	resp.Role, _ = doc.Data["role"].(string)
	if createdAt, ok := doc.Data["createdAt"].(time.Time); ok {
		resp.CreatedAt = createdAt
	}
	return resp
}

type createUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

func (server *Server) createUser(ctx *gin.Context) {
	req := new(createUserRequest)

	if err := ctx.ShouldBindJSON(req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	existing, err := server.store.GetAll(ctx, docstore.Query{
		Collection: usersCollection,
		Field:      "email",
		Op:         docstore.OpEqual,
		Value:      req.Email,
		Limit:      1,
	})
	if err != nil {
		log.Err(err).Msg("failed to check email uniqueness")
		ctx.JSON(http.StatusInternalServerError, errorResponse(ErrInternalServer))
		return
	}
	if len(existing) > 0 {
		err = fmt.Errorf("email %s already exists", req.Email)
		ctx.JSON(http.StatusConflict, errorResponse(err))
		return
	}

	hashedPassword, err := util.HashPassword(req.Password)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, errorResponse(fmt.Errorf("failed to hash password: %w", err)))
		return
	}

	id := server.store.NewID()
	data := map[string]any{
		"email":          req.Email,
		"name":           req.Name,
		"role":           req.Role,
		"hashedPassword": hashedPassword,
		"fcmTokens":      []string{},
		"createdAt":      time.Now(),
	}
	if err = server.store.Set(ctx, usersCollection, id, data); err != nil {
		log.Err(err).Msg("failed to create user")
		ctx.JSON(http.StatusInternalServerError, errorResponse(ErrInternalServer))
		return
	}

	ctx.JSON(http.StatusOK, newUserResponse(docstore.Document{ID: id, Data: data}))
}

type loginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginUserResponse struct {
	User                 userResponse `json:"user"`
	AccessToken          string       `json:"access_token"`
	AccessTokenExpiresAt time.Time    `json:"access_token_expires_at"`
}

func (server *Server) loginUser(ctx *gin.Context) {
	req := new(loginUserRequest)

	if err := ctx.ShouldBindJSON(req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	docs, err := server.store.GetAll(ctx, docstore.Query{
		Collection: usersCollection,
		Field:      "email",
		Op:         docstore.OpEqual,
		Value:      req.Email,
		Limit:      1,
	})
	if err != nil {
		log.Err(err).Msg("failed to find user")
		ctx.JSON(http.StatusInternalServerError, errorResponse(ErrInternalServer))
		return
	}
	if len(docs) == 0 {
		err = errors.New("email not found")
		ctx.JSON(http.StatusNotFound, errorResponse(err))
		return
	}
	user := docs[0]

	hashedPassword, _ := user.Data["hashedPassword"].(string)
	if err = util.CheckPassword(req.Password, hashedPassword); err != nil {
		err = errors.New("incorrect password")
		ctx.JSON(http.StatusUnauthorized, errorResponse(err))
		return
	}

	accessToken, payload, err := server.tokenMaker.CreateToken(user.ID, server.config.AccessTokenDuration)
	if err != nil {
		log.Err(err).Msg("failed to create access token")
		ctx.JSON(http.StatusInternalServerError, errorResponse(ErrInternalServer))
		return
	}

	ctx.JSON(http.StatusOK, loginUserResponse{
		User:                 newUserResponse(user),
		AccessToken:          accessToken,
		AccessTokenExpiresAt: payload.ExpiresAt.Time,
	})
}
