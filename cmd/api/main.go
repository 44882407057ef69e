// Package main is the entry point of the middleware API server.
package main

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/TGU-IT/middleware/internal/backend"
	"github.com/TGU-IT/middleware/internal/config"
	"github.com/TGU-IT/middleware/internal/jobs"
	"github.com/TGU-IT/middleware/internal/storage"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	gin.SetMode(cfg.GinMode)

	store, err := storage.NewLocal(cfg.UploadsDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}

	recorder, err := setupRecorder(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize job record store")
	}

	client := backend.NewClient(backend.Options{
		BaseURL:      cfg.BackendBaseURL,
		Username:     cfg.BackendUsername,
		Password:     cfg.BackendPassword,
		Tenant:       cfg.BackendTenant,
		MaxAttempts:  cfg.PollMaxAttempts,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	})

	orch, err := jobs.NewOrchestrator(
		jobs.NewRegistry(),
		jobs.NewSubscriberRegistry(),
		jobs.NewWorkerPool(cfg.WorkerPoolSize),
		client,
		store,
		recorder,
		"/uploads",
		logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to wire orchestrator")
	}

	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	if cfg.CORSAllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))

	setupRoutes(router, cfg, orch, store, logger)

	addr := ":" + cfg.Port
	logger.Info().Str("addr", addr).Str("mode", cfg.GinMode).Msg("starting middleware API server")
	if err := router.Run(addr); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

// setupRecorder picks the job record store: Redis when configured, otherwise
// in-memory records for the process lifetime.
func setupRecorder(cfg *config.Config) (jobs.Recorder, error) {
	if cfg.RedisURL == "" {
		return jobs.NewMemStore(), nil
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	ttl := time.Duration(cfg.JobExpireMinutes) * time.Minute
	return jobs.NewStore(redis.NewClient(opt), ttl), nil
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "peppol-middleware",
	})
}

func setupRoutes(router *gin.Engine, cfg *config.Config, orch *jobs.Orchestrator, store *storage.Local, logger zerolog.Logger) {
	router.GET("/health", handleHealth)

	// Generated artifacts are served straight from the uploads directory,
	// which is where FINISHED events point subscribers to.
	router.Static("/uploads", cfg.UploadsDir)

	router.GET("/ws", jobs.SubscribeHandler(orch, logger))

	api := router.Group("/api")
	{
		api.POST("/documents", jobs.UploadHandler(orch, store, jobs.UploadOptions{
			TemplatePath: cfg.TemplatePath(),
			MaxFileSize:  cfg.MaxFileSizeMB * 1024 * 1024,
		}))
		api.GET("/jobs/:id", jobs.StatusHandler(orch))
	}
}
