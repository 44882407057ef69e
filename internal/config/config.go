// Package config loads environment-based configuration for the middleware.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration of the middleware.
type Config struct {
	// Server settings
	Port    string
	GinMode string

	// CORS settings (comma-separated origins, "*" allows everything)
	CORSAllowedOrigins string

	// Upload limits and storage
	UploadsDir    string
	MaxFileSizeMB int64

	// Generation backend
	BackendBaseURL  string
	BackendUsername string
	BackendPassword string
	BackendTenant   string

	// Template routing segments composed into the backend template path
	TemplateSpace    string
	TemplateStage    string
	TemplateUnit     string
	TemplateName     string
	TemplateLanguage string

	// Polling budget for the backend status endpoint
	PollMaxAttempts int
	PollInterval    time.Duration

	// Worker pool bound
	WorkerPoolSize int

	// Job record store (optional; in-memory records when empty)
	RedisURL         string
	JobExpireMinutes int
}

// Load reads configuration from the environment.
// A .env file in the working directory or its parent is honored when present.
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		Port:    getEnv("PORT", "3000"),
		GinMode: getEnv("GIN_MODE", "debug"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),

		UploadsDir:    getEnv("UPLOADS_DIR", "uploads"),
		MaxFileSizeMB: getEnvAsInt64("MAX_FILE_SIZE_MB", 2),

		BackendBaseURL:  getEnv("BACKEND_API_URL", ""),
		BackendUsername: getEnv("BACKEND_USERNAME", ""),
		BackendPassword: getEnv("BACKEND_PASSWORD", ""),
		BackendTenant:   getEnv("BACKEND_TENANT", ""),

		TemplateSpace:    getEnv("TEMPLATE_SPACE", ""),
		TemplateStage:    getEnv("TEMPLATE_STAGE", ""),
		TemplateUnit:     getEnv("TEMPLATE_UNIT", ""),
		TemplateName:     getEnv("TEMPLATE_NAME", ""),
		TemplateLanguage: getEnv("TEMPLATE_LANGUAGE", ""),

		PollMaxAttempts: getEnvAsInt("POLL_MAX_ATTEMPTS", 20),
		PollInterval:    time.Duration(getEnvAsInt("POLL_INTERVAL_MS", 3000)) * time.Millisecond,

		WorkerPoolSize: getEnvAsInt("WORKER_POOL_SIZE", 20),

		RedisURL:         getEnv("QUEUE_REDIS_URL", ""),
		JobExpireMinutes: getEnvAsInt("JOB_EXPIRE_MINUTES", 60),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env"))
}

// Validate checks the configuration for consistency.
// Backend settings are optional in debug mode so the API surface can be
// exercised locally, but a release build requires a reachable backend.
func (c *Config) Validate() error {
	if c.PollMaxAttempts <= 0 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("WORKER_POOL_SIZE must be positive")
	}

	if c.GinMode == "release" {
		if c.BackendBaseURL == "" {
			return fmt.Errorf("BACKEND_API_URL is required in release mode")
		}
		if c.BackendUsername == "" || c.BackendPassword == "" {
			return fmt.Errorf("BACKEND_USERNAME and BACKEND_PASSWORD are required in release mode")
		}
		if c.BackendTenant == "" {
			return fmt.Errorf("BACKEND_TENANT is required in release mode")
		}
	}

	return nil
}

// TemplatePath composes the backend template path from the configured
// space/stage/unit/template/language segments.
func (c *Config) TemplatePath() string {
	segments := []string{
		c.TemplateSpace,
		c.TemplateStage,
		c.TemplateUnit,
		c.TemplateName,
		c.TemplateLanguage,
	}
	return "/" + strings.Join(segments, "/")
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt returns an environment variable parsed as int.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 returns an environment variable parsed as int64.
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
