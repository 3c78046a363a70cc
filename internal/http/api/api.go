// Package api wires the REST routes of the transparency service.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	handlers "github.com/clearlabel/transparency/internal/http/api/handlers"
	"github.com/clearlabel/transparency/internal/ratelimit"
	"github.com/clearlabel/transparency/internal/security"
	"github.com/clearlabel/transparency/internal/service"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Dependencies are the components the routes are served from.
type Dependencies struct {
	Auth     *service.AuthService
	OTP      *service.OTPService
	Products *service.ProductService
	// Archive is optional; nil serves report downloads directly.
	Archive handlers.ReportPublisher
	// Limiter is optional; nil disables rate limiting.
	Limiter *ratelimit.Manager
	Health  handlers.Pinger
	// ProtectProducts requires a session token on product routes.
	ProtectProducts bool
}

// RegisterRoutes registers API routes, middleware, and handlers.
func RegisterRoutes(r *gin.Engine, deps Dependencies) {
	if r == nil || deps.Auth == nil || deps.OTP == nil || deps.Products == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.Health)
	r.GET("/healthz", healthHandler.Healthz)

	apiGroup := r.Group("/api")

	authHandler := handlers.NewAuthHandler(deps.Auth)
	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/signup", rateLimitMiddleware(deps.Limiter, ratelimit.ScopeAuth), authHandler.Signup)
	authGroup.POST("/login", rateLimitMiddleware(deps.Limiter, ratelimit.ScopeAuth), authHandler.Login)
	authGroup.GET("/me", authMiddleware(deps.Auth), authHandler.Me)

	otpHandler := handlers.NewOTPHandler(deps.OTP)
	otpGroup := apiGroup.Group("/otp")
	otpGroup.Use(rateLimitMiddleware(deps.Limiter, ratelimit.ScopeOTP))
	otpGroup.POST("/verify-otp", otpHandler.Verify)
	otpGroup.POST("/send-otp", otpHandler.Send)

	productHandler := handlers.NewProductHandler(deps.Products, deps.Archive)
	productGroup := apiGroup.Group("/products")
	if deps.ProtectProducts {
		productGroup.Use(authMiddleware(deps.Auth))
	}
	productGroup.GET("", productHandler.List)
	productGroup.GET("/stats", productHandler.Stats)
	productGroup.POST("/basic", rateLimitMiddleware(deps.Limiter, ratelimit.ScopeProducts), productHandler.CreateBasic)
	productGroup.GET("/:id", productHandler.Get)
	productGroup.PUT("/:id", productHandler.UpdateAnswers)
	productGroup.GET("/:id/pdf", productHandler.PDF)
}

// authMiddleware validates bearer session tokens and loads the user.
func authMiddleware(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, security.ErrInvalidToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			case errors.Is(err, service.ErrUserNotFound):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			default:
				log.WithError(err).Error("authenticate request failed")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
			}
			return
		}

		c.Set(handlers.ContextUserKey, user)
		c.Next()
	}
}

// rateLimitMiddleware enforces the per-client request budget for a scope.
func rateLimitMiddleware(limiter *ratelimit.Manager, scope ratelimit.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		result, err := limiter.Allow(c.Request.Context(), ratelimit.KeyFor(scope, c.ClientIP()))
		if err != nil {
			log.WithError(err).Warn("rate limit check failed")
			c.Next()
			return
		}
		if limit := limiter.Limit(); limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			if !result.Reset.IsZero() {
				c.Header("X-RateLimit-Reset", strconv.FormatInt(result.Reset.Unix(), 10))
			}
		}
		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// CORSMiddleware allows the browser client to call the API from another origin.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Expose-Headers", "Content-Disposition")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
