package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	goCred "github.com/MrEthical07/goCred"
	"github.com/MrEthical07/goCred/internal/logging"
	"github.com/MrEthical07/goCred/middleware"
)

// NewRouter wires every route onto a fresh gin engine with recovery and
// request logging.
func NewRouter(h Handlers, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.Middleware(log))

	r.GET("/healthz", h.Health)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}

	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)
	r.GET("/verify-email", h.VerifyEmail)
	r.POST("/forgot-password", h.ForgotPassword)
	r.POST("/reset-password", h.ResetPassword)

	authed := r.Group("/", RequireAccess(h.Engine))
	authed.GET("/me", h.Me)
	authed.POST("/change-password", h.ChangePassword)

	return r
}

// RequireAccess is the gin form of middleware.Guard: 401 without a valid
// access token, 503 when revocation cannot be checked.
func RequireAccess(v middleware.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := middleware.AccessTokenFromRequest(c.Request)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		res, err := v.ValidateAccess(c.Request.Context(), tok)
		if err != nil {
			if goCred.KindOf(err) == goCred.KindUnavailable {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": goCred.PublicMessage(err)})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Request = c.Request.WithContext(middleware.WithAuthResult(c.Request.Context(), res))
		c.Next()
	}
}
