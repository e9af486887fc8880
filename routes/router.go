package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/podstreak/config"
	"github.com/cppla/podstreak/controllers"
	"github.com/cppla/podstreak/metrics"
	"github.com/cppla/podstreak/middleware"
	"github.com/cppla/podstreak/streak"
	"github.com/cppla/podstreak/utils"
)

// NewEngine builds the streak engine from the loaded configuration.
func NewEngine(db *gorm.DB) *streak.Engine {
	cfg := config.Get()
	backoff := make([]time.Duration, 0, len(cfg.RetryBackoffMS))
	for _, ms := range cfg.RetryBackoffMS {
		backoff = append(backoff, time.Duration(ms)*time.Millisecond)
	}
	return streak.NewEngine(db, streak.Options{
		Backoff:        backoff,
		SweepBatchSize: cfg.SweepBatchSize,
		HistoryLimit:   cfg.RestoreHistoryLimit,
		Logger:         utils.Logger.Named("streak"),
	})
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	return SetupRouterWithEngine(NewEngine(db))
}

// SetupRouterWithEngine wires the HTTP surface around an existing engine.
func SetupRouterWithEngine(engine *streak.Engine) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log on its own rolling file, separate from the application log
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(ginzap.Ginzap(gl, time.RFC3339, true))
		r.Use(ginzap.RecoveryWithZap(gl, true))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}

	r.Use(cors.New(corsCfg))
	r.Use(middleware.RequestID())
	r.Use(metrics.Middleware())

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	streakController := controllers.NewStreakController(engine, time.Duration(cfg.StatusCacheTTLSeconds)*time.Second)
	cronController := controllers.NewCronController(engine)

	api := r.Group("/api/v1")

	streakGroup := api.Group("/streak")
	streakGroup.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	streakGroup.POST("/check-in", streakController.CheckIn)
	streakGroup.GET("/status", streakController.Status)
	streakGroup.POST("/restore", streakController.Restore)
	streakGroup.GET("/restores", streakController.History)

	cronGroup := api.Group("/cron")
	cronGroup.Use(middleware.CronSecretRequired())
	cronGroup.POST("/expire-streaks", cronController.ExpireStreaks)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
