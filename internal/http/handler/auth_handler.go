// Package handler exposes the authentication flows over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/theseyan/418-nits-hacks/internal/apperr"
	"github.com/theseyan/418-nits-hacks/internal/domain"
	"github.com/theseyan/418-nits-hacks/internal/http/middleware"
	"github.com/theseyan/418-nits-hacks/internal/service"
)

// AuthHandler binds the auth endpoints to the service.
type AuthHandler struct {
	Auth   *service.AuthService
	Logger *zap.Logger
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Logger: logger}
}

type userView struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Picture  string `json:"pfp"`
	JoinedAt int64  `json:"joined_at"`
}

func viewOf(user domain.User) userView {
	return userView{
		ID:       user.ID,
		FullName: user.FullName,
		Email:    user.Email,
		Picture:  user.AvatarURL,
		JoinedAt: user.JoinedAt.Unix(),
	}
}

// Authorize handles POST /auth/authorize.
func (h *AuthHandler) Authorize(c *gin.Context) {
	var req struct {
		IDToken       string `json:"id_token"`
		CodeChallenge string `json:"code_challenge"`
		ClientID      string `json:"client_id"`
		CaptchaToken  string `json:"captcha_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.BadRequest("Malformed request").WithCause(err))
		return
	}

	code, err := h.Auth.Authorize(c.Request.Context(), service.AuthorizeRequest{
		ClientID:      req.ClientID,
		GISToken:      req.IDToken,
		CodeChallenge: req.CodeChallenge,
		CaptchaToken:  req.CaptchaToken,
		RemoteIP:      c.ClientIP(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"auth_code": code})
}

// CreateAccount handles POST /auth/create_account.
func (h *AuthHandler) CreateAccount(c *gin.Context) {
	var req struct {
		IDToken      string `json:"id_token"`
		CaptchaToken string `json:"captcha_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.BadRequest("Malformed request").WithCause(err))
		return
	}

	_, pair, err := h.Auth.CreateAccount(c.Request.Context(), service.CreateAccountRequest{
		GISToken:     req.IDToken,
		CaptchaToken: req.CaptchaToken,
		RemoteIP:     c.ClientIP(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

// Tokens handles POST /auth/tokens, exchanging an authorization code.
func (h *AuthHandler) Tokens(c *gin.Context) {
	var req struct {
		AuthCode     string `json:"auth_code"`
		CodeVerifier string `json:"code_verifier"`
		ClientID     string `json:"client_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.BadRequest("Malformed request").WithCause(err))
		return
	}

	pair, err := h.Auth.Exchange(c.Request.Context(), service.ExchangeRequest{
		Code:         req.AuthCode,
		ClientID:     req.ClientID,
		CodeVerifier: req.CodeVerifier,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

// RefreshTokens handles POST /auth/refresh_tokens, rotating a refresh token.
func (h *AuthHandler) RefreshTokens(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		h.respondError(c, apperr.BadRequest("Malformed request"))
		return
	}

	pair, err := h.Auth.Rotate(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

// Logout handles POST /auth/logout, revoking the token family.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		h.respondError(c, apperr.BadRequest("Malformed request"))
		return
	}

	if err := h.Auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// User handles GET /auth/user for an authenticated caller.
func (h *AuthHandler) User(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		h.respondError(c, apperr.Unauthorized(""))
		return
	}

	user, err := h.Auth.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, viewOf(user))
}

// respondError maps any error to the uniform {code, message} envelope. The
// cause chain stays server-side.
func (h *AuthHandler) respondError(c *gin.Context, err error) {
	appErr := apperr.From(err)
	if appErr.Kind == apperr.KindInternal && h.Logger != nil {
		h.Logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(appErr.Status(), gin.H{"code": appErr.Code(), "message": appErr.Message})
}
