package handler

import (
	"balance-ledger/internal/adapter/http/middleware"
	redisStore "balance-ledger/internal/adapter/storage/redis"
	"balance-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20 // 1 MB

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc             ports.AuthService
	LedgerSvc           ports.LedgerService
	HistorySvc          ports.HistoryService
	TokenSvc            ports.TokenService
	RateLimitStore      *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers      []ports.HealthChecker
	AuditSvc            ports.AuditService // nil = audit logging disabled
	HistoryDefaultLimit int
	Logger              zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/signup", rl("auth_signup"), authHandler.Signup)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	txHandler := NewTransactionHandler(deps.LedgerSvc, deps.HistorySvc, deps.HistoryDefaultLimit)
	transactions := v1.Group("/transactions", jwtAuth)
	{
		transactions.POST("", rl("apply"), txHandler.Apply)
		transactions.GET("", rl("history"), txHandler.History)
	}

	return r
}
