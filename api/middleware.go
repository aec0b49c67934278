package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/careloop/careteam-BE/internal/docstore"
	"github.com/careloop/careteam-BE/internal/role"
	"github.com/careloop/careteam-BE/internal/token"
	"github.com/gin-gonic/gin"
)

const (
	authorizationHeaderKey  = "Authorization"
	authorizationTypeBearer = "Bearer"
	authorizationPayloadKey = "authPayload"
	accountRoleKey          = "accountRole"

	usersCollection = "users"
)

// authMiddleware authenticates the user.
func authMiddleware(tokenMaker token.Maker) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authorizationHeader := ctx.GetHeader(authorizationHeaderKey)
		if authorizationHeader == "" {
			err := errors.New("authorization header is not provided")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(err))
			return
		}

		fields := strings.Fields(authorizationHeader)
		if len(fields) != 2 {
			err := errors.New("invalid authorization header format")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(err))
			return
		}

		authorizationHeaderType := fields[0]
		if authorizationHeaderType != authorizationTypeBearer {
			err := errors.New("unsupported authorization header type")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(err))
			return
		}

		accessToken := fields[1]
		payload, err := tokenMaker.VerifyToken(accessToken)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(err))
			return
		}

		ctx.Set(authorizationPayloadKey, payload)
		ctx.Next()
	}
}

// requiredProviderRole resolves the account role from the directory and
// rejects anything that is not provider-eligible. Role is read per request,
// never trusted from the token.
func requiredProviderRole(store docstore.Store) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := authenticatedUserID(ctx)

		userDoc, err := store.Get(ctx, usersCollection, userID)
		if err != nil {
			if errors.Is(err, docstore.ErrNoSuchDocument) {
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(errors.New("account no longer exists")))
				return
			}
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse(ErrInternalServer))
			return
		}

		rawRole, _ := userDoc.Data["role"].(string)
		accountRole := role.Parse(rawRole)
		if !accountRole.IsProvider() {
			ctx.AbortWithStatusJSON(http.StatusForbidden, errorResponse(ErrProviderOnly))
			return
		}

		ctx.Set(accountRoleKey, accountRole)
		ctx.Next()
	}
}

func authenticatedUserID(ctx *gin.Context) string {
	authPayload := ctx.MustGet(authorizationPayloadKey).(*token.Payload)
	return authPayload.Subject
}
