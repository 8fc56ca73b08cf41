// Package httpapi exposes the credential engine over JSON HTTP using gin.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	goCred "github.com/MrEthical07/goCred"
	"github.com/MrEthical07/goCred/internal/logging"
	"github.com/MrEthical07/goCred/middleware"
)

// Pinger is implemented by backends that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse input, call the engine, return JSON.
type Handlers struct {
	Engine *goCred.Engine
	// Directory is pinged by /healthz when set.
	Directory Pinger
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Cookie  middleware.CookieOptions
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Register creates a pending account and mails the verification link.
func (h Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	view, err := h.Engine.Register(c.Request.Context(), goCred.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login sets the access cookie and also returns the token for bearer clients.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Engine.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	middleware.SetAccessCookie(c.Writer, res.AccessToken, time.Duration(res.MaxAge)*time.Second, h.Cookie)
	c.JSON(http.StatusOK, gin.H{
		"access_token": res.AccessToken,
		"token_type":   res.TokenType,
		"expires_at":   res.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Logout revokes the presented token, if any, and clears the cookie.
func (h Handlers) Logout(c *gin.Context) {
	if tok, ok := middleware.AccessTokenFromRequest(c.Request); ok {
		h.Engine.Logout(c.Request.Context(), tok)
	}
	middleware.ClearAccessCookie(c.Writer, h.Cookie)
	c.Status(http.StatusNoContent)
}

// VerifyEmail activates the account named by the token query parameter.
func (h Handlers) VerifyEmail(c *gin.Context) {
	tok := c.Query("token")
	if tok == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "token required"})
		return
	}
	if err := h.Engine.VerifyEmail(c.Request.Context(), tok); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "verified"})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword answers the same way whether or not the account exists.
func (h Handlers) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Engine.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "if the account exists, a reset link has been sent"})
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPassword takes the token from the body, or from ?token= when the form
// posts back to the emailed link.
func (h Handlers) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Token == "" {
		req.Token = c.Query("token")
	}
	if req.Token == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "token required"})
		return
	}
	if err := h.Engine.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password updated"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ChangePassword requires RequireAccess.
func (h Handlers) ChangePassword(c *gin.Context) {
	res, ok := middleware.AuthResultFromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	err := h.Engine.ChangePassword(c.Request.Context(), res.Handle, req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password updated"})
}

// Me returns the authenticated subject.
func (h Handlers) Me(c *gin.Context) {
	res, ok := middleware.AuthResultFromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	view, err := h.Engine.Subject(c.Request.Context(), res.UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Health pings Redis through the engine and the directory when it can be pinged.
func (h Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"redis": "ok"}
	status := http.StatusOK
	if err := h.Engine.Ping(ctx); err != nil {
		logging.FromGin(c).Error("health check failed", "component", "redis", "error", err)
		checks["redis"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if h.Directory != nil {
		checks["directory"] = "ok"
		if err := h.Directory.Ping(ctx); err != nil {
			logging.FromGin(c).Error("health check failed", "component", "directory", "error", err)
			checks["directory"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	if status == http.StatusOK {
		checks["status"] = "ok"
	} else {
		checks["status"] = "degraded"
	}
	c.JSON(status, checks)
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(goCred.KindOf(err))
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": goCred.PublicMessage(err),
		"code":  goCred.PublicCode(err),
	})
}

func statusFor(kind goCred.Kind) int {
	switch kind {
	case goCred.KindInvalidRequest, goCred.KindWeakPassword, goCred.KindPasswordMismatch,
		goCred.KindTokenInvalid, goCred.KindTokenExpired, goCred.KindTokenRevoked,
		goCred.KindEmailVerification:
		return http.StatusBadRequest
	case goCred.KindInvalidCredentials:
		return http.StatusUnauthorized
	case goCred.KindEmailNotVerified:
		return http.StatusForbidden
	case goCred.KindNotFound:
		return http.StatusNotFound
	case goCred.KindAlreadyExists:
		return http.StatusConflict
	case goCred.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
