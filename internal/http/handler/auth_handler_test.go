package handler_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/theseyan/418-nits-hacks/internal/adapter/cache"
	"github.com/theseyan/418-nits-hacks/internal/config"
	"github.com/theseyan/418-nits-hacks/internal/domain"
	"github.com/theseyan/418-nits-hacks/internal/http/handler"
	"github.com/theseyan/418-nits-hacks/internal/http/middleware"
	"github.com/theseyan/418-nits-hacks/internal/repository"
	"github.com/theseyan/418-nits-hacks/internal/service"
	"github.com/theseyan/418-nits-hacks/internal/token"
)

func newTestRouter(t *testing.T) (*gin.Engine, *token.Issuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	accessKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	refreshKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	issuer := token.NewIssuer(accessKey, refreshKey, time.Minute, time.Hour)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		AccessTokenTTL:         time.Minute,
		RefreshTokenTTL:        time.Hour,
		AuthCodeTTL:            time.Minute,
		MaxActiveRefreshTokens: 5,
		OAuthClientIDs:         []string{"client-1"},
	}

	users := &stubUserRepo{user: domain.User{ID: "user-1", Email: "user@example.com", FullName: "Test User"}}
	svc := service.NewAuthService(users, nil, cache.NewMemoryCodeStore(), nil, nil, issuer, node, cfg, zap.NewNop())
	h := handler.NewAuthHandler(svc, zap.NewNop())
	authMw := middleware.NewAuth(svc)

	r := gin.New()
	auth := r.Group("/auth")
	auth.POST("/refresh_tokens", h.RefreshTokens)
	auth.POST("/logout", h.Logout)
	auth.GET("/user", authMw.RequireAccessToken, h.User)
	return r, issuer
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestRefreshTokensRejectsMissingBody(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh_tokens", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var body errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "E_BAD_REQUEST", body.Code)
	require.NotEmpty(t, body.Message)
}

func TestRefreshTokensRejectsForgedToken(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh_tokens",
		strings.NewReader(`{"refresh_token":"not.a.token"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)

	var body errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "E_UNAUTHORIZED", body.Code)
}

func TestUserRequiresBearerToken(t *testing.T) {
	r, issuer := newTestRouter(t)

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/auth/user", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)

		var body errorEnvelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Equal(t, "E_UNAUTHORIZED", body.Code)
	}

	signed, err := issuer.IssueAccessToken("user-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/user", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	require.Equal(t, "user-1", user.ID)
	require.Equal(t, "user@example.com", user.Email)
}

type stubUserRepo struct {
	user domain.User
}

func (s *stubUserRepo) GetByGoogleID(context.Context, string) (domain.User, error) {
	return s.user, nil
}

func (s *stubUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	if id != s.user.ID {
		return domain.User{}, repository.ErrUserNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	return user, nil
}
