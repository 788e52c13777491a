package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cvbuilder/internal/auth"
	"cvbuilder/internal/validation"
)

const refreshTokenCookieName = "refresh_token"

// AuthHandler 处理注册、登录、刷新、退出与个人资料。
type AuthHandler struct {
	accounts     *auth.Accounts
	validate     *validation.Validator
	cookieDomain string
}

// NewAuthHandler 构造认证处理器。
func NewAuthHandler(accounts *auth.Accounts, v *validation.Validator, cookieDomain string) *AuthHandler {
	return &AuthHandler{accounts: accounts, validate: v, cookieDomain: strings.TrimSpace(cookieDomain)}
}

type registerRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=150"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

// POST /v1/auth/register
// 返回的用户记录不含密码。
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, h.validate, &req); err != nil {
		RespondError(c, err)
		return
	}
	user, err := h.accounts.Register(c.Request.Context(), auth.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken        string `json:"access_token"`
	RefreshToken       string `json:"refresh_token"`
	TokenType          string `json:"token_type"`
	ExpiresIn          int    `json:"expires_in"`
	MustChangePassword bool   `json:"must_change_password"`
}

// POST /v1/auth/token
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, h.validate, &req); err != nil {
		RespondError(c, err)
		return
	}
	session, err := h.accounts.Login(c.Request.Context(), c.ClientIP(), req.Username, req.Password)
	if err != nil {
		RespondError(c, err)
		return
	}
	h.replyWithSession(c, session)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// POST /v1/auth/token/refresh
// 刷新令牌可来自 Cookie 或请求体，旧令牌随即作废。
func (h *AuthHandler) Refresh(c *gin.Context) {
	session, err := h.accounts.Refresh(c.Request.Context(), h.extractRefreshToken(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	h.replyWithSession(c, session)
}

// POST /v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.accounts.Logout(c.Request.Context(), h.extractRefreshToken(c)); err != nil {
		RespondError(c, err)
		return
	}
	h.clearRefreshCookie(c)
	c.Status(http.StatusNoContent)
}

// GET /v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, err := callerID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	user, err := h.accounts.Profile(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type profileRequest struct {
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
}

// PATCH /v1/auth/me
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	userID, err := callerID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	var req profileRequest
	if err := bindJSON(c, h.validate, &req); err != nil {
		RespondError(c, err)
		return
	}
	user, err := h.accounts.UpdateProfile(c.Request.Context(), userID, auth.ProfilePatch{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// POST /v1/auth/password
// 改密后清除强制改密标记，并签发新的令牌对。
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, err := callerID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	var req changePasswordRequest
	if err := bindJSON(c, h.validate, &req); err != nil {
		RespondError(c, err)
		return
	}

	refreshToken, _ := c.Cookie(refreshTokenCookieName)
	session, err := h.accounts.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword, refreshToken)
	if err != nil {
		RespondError(c, err)
		return
	}
	h.replyWithSession(c, session)
}

func (h *AuthHandler) replyWithSession(c *gin.Context, session auth.Session) {
	h.setRefreshCookie(c, session.Tokens.RefreshToken)
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:        session.Tokens.AccessToken,
		RefreshToken:       session.Tokens.RefreshToken,
		TokenType:          "Bearer",
		ExpiresIn:          int(h.accounts.Tokens().AccessTokenTTL().Seconds()),
		MustChangePassword: session.MustChangePassword,
	})
}

func (h *AuthHandler) extractRefreshToken(c *gin.Context) string {
	if token, err := c.Cookie(refreshTokenCookieName); err == nil && token != "" {
		return token
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		return strings.TrimSpace(req.RefreshToken)
	}
	return ""
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, refreshToken string) {
	ttl := h.accounts.Tokens().RefreshTokenTTL()
	if ttl <= 0 {
		ttl = time.Hour
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    refreshToken,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		Path:     "/",
		Domain:   h.cookieDomain,
		Secure:   isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Domain:   h.cookieDomain,
		Secure:   isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func isHTTPSRequest(c *gin.Context) bool {
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(c.Request.Header.Get("X-Forwarded-Proto"), "https")
}
