package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/careloop/careteam-BE/internal/docstore"
	"github.com/careloop/careteam-BE/internal/token"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const testSecretKey = "0123456789abcdef0123456789abcdef"

func newTestRouter(t *testing.T, store docstore.Store, providerOnly bool) (*gin.Engine, token.Maker) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokenMaker, err := token.NewJWTMaker(testSecretKey)
	require.NoError(t, err)

	router := gin.New()
	handlers := []gin.HandlerFunc{authMiddleware(tokenMaker)}
	if providerOnly {
		handlers = append(handlers, requiredProviderRole(store))
	}
	handlers = append(handlers, func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"user_id": authenticatedUserID(ctx)})
	})
	router.GET("/protected", handlers...)
	return router, tokenMaker
}

func bearerHeader(t *testing.T, tokenMaker token.Maker, userID string) string {
	t.Helper()
	accessToken, _, err := tokenMaker.CreateToken(userID, time.Minute)
	require.NoError(t, err)
	return "Bearer " + accessToken
}

func TestAuthMiddleware(t *testing.T) {
	store := docstore.NewMemoryStore()
	router, tokenMaker := newTestRouter(t, store, false)

	testCases := []struct {
		name       string
		setupAuth  func(t *testing.T, request *http.Request)
		wantStatus int
	}{
		{
			name: "OK",
			setupAuth: func(t *testing.T, request *http.Request) {
				request.Header.Set(authorizationHeaderKey, bearerHeader(t, tokenMaker, "user-1"))
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "NoAuthorizationHeader",
			setupAuth:  func(t *testing.T, request *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "UnsupportedAuthorizationType",
			setupAuth: func(t *testing.T, request *http.Request) {
				request.Header.Set(authorizationHeaderKey, "Basic abc")
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "InvalidToken",
			setupAuth: func(t *testing.T, request *http.Request) {
				request.Header.Set(authorizationHeaderKey, "Bearer not-a-token")
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "ExpiredToken",
			setupAuth: func(t *testing.T, request *http.Request) {
				accessToken, _, err := tokenMaker.CreateToken("user-1", -time.Minute)
				require.NoError(t, err)
				request.Header.Set(authorizationHeaderKey, "Bearer "+accessToken)
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			request := httptest.NewRequest(http.MethodGet, "/protected", nil)
			tc.setupAuth(t, request)

			router.ServeHTTP(recorder, request)
			require.Equal(t, tc.wantStatus, recorder.Code)
		})
	}
}

func TestRequiredProviderRole(t *testing.T) {
	store := docstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, usersCollection, "doctor-1", map[string]any{"role": "doctor"}))
	require.NoError(t, store.Set(ctx, usersCollection, "patient-1", map[string]any{"role": "patient"}))

	router, tokenMaker := newTestRouter(t, store, true)

	testCases := []struct {
		name       string
		userID     string
		wantStatus int
	}{
		{name: "ProviderAllowed", userID: "doctor-1", wantStatus: http.StatusOK},
		{name: "PatientForbidden", userID: "patient-1", wantStatus: http.StatusForbidden},
		{name: "UnknownAccount", userID: "ghost", wantStatus: http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			request := httptest.NewRequest(http.MethodGet, "/protected", nil)
			request.Header.Set(authorizationHeaderKey, bearerHeader(t, tokenMaker, tc.userID))

			router.ServeHTTP(recorder, request)
			require.Equal(t, tc.wantStatus, recorder.Code)
		})
	}
}
