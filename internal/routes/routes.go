package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"omnivault/internal/handlers"
	"omnivault/internal/middleware"
)

type Options struct {
	AllowedOrigins []string
	RateLimit      middleware.RateLimiterConfig
	Gatherer       prometheus.Gatherer
	Signature      middleware.SignatureConfig
	// Relayers may deliver cross-chain messages.
	Relayers []string
}

// SetupRouter initializes and returns the Gin router with all routes configured
func SetupRouter(h *handlers.Handler, opts Options) *gin.Engine {
	r := gin.Default()

	r.GET("/health", h.Health)
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	r.Use(corsMiddleware(opts.AllowedOrigins))
	if opts.RateLimit.RequestsPerSecond > 0 {
		r.Use(middleware.RateLimiterMiddleware(opts.RateLimit))
	}

	auth := middleware.SignatureAuth(opts.Signature)

	// Setup routes for each module
	SetupVaultRoutes(r, h, auth)
	SetupStrategyRoutes(r, h, auth)
	SetupPositionRoutes(r, h, auth)
	SetupYieldDataRoutes(r, h, auth)
	SetupPeerRoutes(r, h, auth)
	SetupMessageRoutes(r, h, auth, opts.Relayers)

	return r
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, Origin, Cache-Control, X-Requested-With, "+middleware.HeaderAuthority+", "+middleware.HeaderSignature+", "+middleware.HeaderTimestamp)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		// Handle preflight requests
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
