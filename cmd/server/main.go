package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/devtrack/github-activity-tracker/internal/analysis"
	"github.com/devtrack/github-activity-tracker/internal/cache"
	"github.com/devtrack/github-activity-tracker/internal/config"
	"github.com/devtrack/github-activity-tracker/internal/errors"
	"github.com/devtrack/github-activity-tracker/internal/github"
	"github.com/devtrack/github-activity-tracker/internal/monitoring"
	"github.com/devtrack/github-activity-tracker/internal/ratelimit"
	"github.com/devtrack/github-activity-tracker/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	appLogger := monitoring.NewLogger(cfg.LogLevel)
	slog.SetDefault(appLogger.Logger)

	appMetrics := monitoring.NewMetrics()

	eventCache, err := cache.New[[]github.Event](cfg.CacheTTL, cfg.CacheMaxSize)
	if err != nil {
		slog.Error("Failed to initialize cache", "error", err)
		os.Exit(1)
	}

	githubClient := github.NewClient(cfg.GitHubBaseURL, cfg.RequestTimeout, eventCache, appMetrics)

	redisClient, err := ratelimit.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		// The limiter degrades to in-memory limiting when Redis is unreachable
		slog.Warn("Redis unavailable, continuing with in-memory rate limiting", "error", err)
	}

	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.Config{
		IPLimitPerMin:   cfg.IPRateLimit,
		BurstMultiplier: cfg.RateLimitBurst,
	}, appMetrics)

	r := setupRouter(cfg, appMetrics, appLogger, eventCache, githubClient, limiter)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := limiter.Close(); err != nil {
		slog.Error("Failed to close rate limiter", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}

func setupRouter(
	cfg *config.Config,
	appMetrics *monitoring.Metrics,
	appLogger *monitoring.Logger,
	eventCache *cache.Cache[[]github.Event],
	githubClient *github.Client,
	limiter *ratelimit.RateLimiter,
) *gin.Engine {
	r := gin.New()

	r.Use(monitoring.MonitoringMiddleware(appMetrics, appLogger))
	r.Use(errors.ErrorHandler())
	r.Use(errors.RecoveryHandler())
	r.Use(security.SecurityHeadersMiddleware())
	r.Use(security.RequestTimeoutMiddleware(cfg.RequestTimeout))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   "1.0.0",
			"metrics":   appMetrics.GetStats(),
		})
	})

	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, appMetrics.GetStats())
	})

	r.GET("/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, eventCache.Stats())
	})

	r.GET("/ratelimit/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, limiter.GetStats())
	})

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	api.Use(limiter.IPRateLimitMiddleware())
	api.GET("/users/:username/activity", activityHandler(githubClient, appLogger))

	return r
}

// activityHandler fetches a user's recent public events and returns the
// per-repository activity report.
func activityHandler(githubClient *github.Client, appLogger *monitoring.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := strings.TrimSpace(c.Param("username"))
		if err := security.ValidateUsername(username); err != nil {
			appErr := errors.NewValidationError(err.Error())
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		start := time.Now()

		events, err := githubClient.FetchEvents(c.Request.Context(), username)
		if err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			if appErr.Category == errors.CategoryRateLimit && appErr.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(appErr.RetryAfter))
			}
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		report := analysis.Analyze(events, username)

		appLogger.AnalysisLogger(username, report.TotalEvents, report.TotalRepositories, time.Since(start))

		c.JSON(http.StatusOK, report)
	}
}
