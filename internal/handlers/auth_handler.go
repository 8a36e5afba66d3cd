package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"projectboard/internal/auth"
	"projectboard/internal/cache"
	"projectboard/internal/middleware"
	"projectboard/internal/models"
	"projectboard/internal/realtime"
	"projectboard/internal/repository"
)

// RegisterRequest represents the sign-up payload
type RegisterRequest struct {
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned by every endpoint that starts a session
type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

type ResetPasswordRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Code            string `json:"code" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

func (h *Handler) startSession(c *gin.Context, status int, user models.User) {
	token, err := h.tokens.GenerateToken(user.ID, user.Name, user.Email)
	if err != nil {
		h.log(c).Error("generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	ttl := h.tokens.TTL()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, int(ttl.Seconds()), "/", "", h.secureCookies, true)
	c.JSON(status, AuthResponse{
		Token:     token,
		ExpiresAt: h.now().Add(ttl).UTC(),
		User:      user,
	})
}

// Register handles POST /api/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bind(c, &req) {
		return
	}
	if err := auth.ValidatePassword(req.Password, req.ConfirmPassword); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.log(c).Error("hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}
	user := models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        req.Email,
		PasswordHash: hash,
		Provider:     "password",
	}
	if err := h.repos.Users.Create(c.Request.Context(), &user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email is already registered"})
			return
		}
		h.fail(c, err, "", "Failed to create account")
		return
	}

	h.changed(c, "user", realtime.Created, user.ID, cache.TagUsers)
	h.startSession(c, http.StatusCreated, user)
}

// Login handles POST /api/auth/login and POST /api/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request. Email and password are required.",
		})
		return
	}

	user, err := h.repos.Users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		h.fail(c, err, "", "Failed to sign in")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	h.startSession(c, http.StatusOK, *user)
}

// Logout handles POST /api/auth/logout
func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.secureCookies, true)
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

// Session handles GET /api/auth/session
func (h *Handler) Session(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	user, err := h.repos.Users.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session user no longer exists"})
			return
		}
		h.fail(c, err, "", "Failed to load session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ForgotPassword handles POST /api/auth/password/forgot. The response is the
// same whether or not the email is registered.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if !bind(c, &req) {
		return
	}
	accepted := gin.H{"message": "If the account exists, a reset code has been sent"}

	user, err := h.repos.Users.GetByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusAccepted, accepted)
		return
	}
	if err != nil {
		h.fail(c, err, "", "Failed to issue reset code")
		return
	}
	code, err := h.otps.Issue(user.Email)
	if err != nil {
		h.log(c).Error("issue otp", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue reset code"})
		return
	}
	// delivery is out of band; the code is only visible at debug level
	h.log(c).Debug("password reset code issued", zap.String("email", user.Email), zap.String("code", code))
	c.JSON(http.StatusAccepted, accepted)
}

func otpStatus(err error) int {
	if errors.Is(err, auth.ErrOTPAttempts) {
		return http.StatusTooManyRequests
	}
	return http.StatusBadRequest
}

// VerifyResetCode handles POST /api/auth/password/verify
func (h *Handler) VerifyResetCode(c *gin.Context) {
	var req VerifyCodeRequest
	if !bind(c, &req) {
		return
	}
	if err := h.otps.Verify(req.Email, req.Code); err != nil {
		c.JSON(otpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// ResetPassword handles POST /api/auth/password/reset
func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bind(c, &req) {
		return
	}
	if err := auth.ValidatePassword(req.Password, req.ConfirmPassword); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.otps.Consume(req.Email, req.Code); err != nil {
		c.JSON(otpStatus(err), gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	user, err := h.repos.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		h.fail(c, err, "Account not found", "Failed to reset password")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.log(c).Error("hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset password"})
		return
	}
	if err := h.repos.Users.UpdatePassword(ctx, user.ID, hash); err != nil {
		h.fail(c, err, "Account not found", "Failed to reset password")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// OAuthStart handles GET /api/auth/oauth/:provider
func (h *Handler) OAuthStart(c *gin.Context) {
	if h.oauth == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "OAuth sign-in is not configured"})
		return
	}
	url, err := h.oauth.AuthCodeURL(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Redirect(http.StatusFound, url)
}

// OAuthCallback handles GET /api/auth/oauth/:provider/callback. Accounts are
// matched by email; unknown emails get a new account without a password.
func (h *Handler) OAuthCallback(c *gin.Context) {
	if h.oauth == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "OAuth sign-in is not configured"})
		return
	}
	ctx := c.Request.Context()
	profile, err := h.oauth.Exchange(ctx, c.Param("provider"), c.Query("state"), c.Query("code"))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUnknownProvider):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, auth.ErrInvalidState), errors.Is(err, auth.ErrNoEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.log(c).Warn("oauth exchange failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "Sign-in with provider failed"})
		}
		return
	}

	user, err := h.repos.Users.GetByEmail(ctx, profile.Email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		user = &models.User{
			ID:        uuid.NewString(),
			Name:      profile.Name,
			Email:     profile.Email,
			AvatarURL: profile.AvatarURL,
			Provider:  profile.Provider,
		}
		if user.Name == "" {
			user.Name = strings.Split(profile.Email, "@")[0]
		}
		if err := h.repos.Users.Create(ctx, user); err != nil {
			h.fail(c, err, "", "Failed to create account")
			return
		}
		h.changed(c, "user", realtime.Created, user.ID, cache.TagUsers)
	case err != nil:
		h.fail(c, err, "", "Failed to sign in")
		return
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Name, user.Email)
	if err != nil {
		h.log(c).Error("generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, int(h.tokens.TTL().Seconds()), "/", "", h.secureCookies, true)
	c.Redirect(http.StatusFound, "/dashboard")
}
