package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "3000", cfg.Port)
	require.Equal(t, "uploads", cfg.UploadsDir)
	require.Equal(t, int64(2), cfg.MaxFileSizeMB)
	require.Equal(t, 20, cfg.PollMaxAttempts)
	require.Equal(t, 3*time.Second, cfg.PollInterval)
	require.Equal(t, 20, cfg.WorkerPoolSize)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("POLL_MAX_ATTEMPTS", "5")
	t.Setenv("POLL_INTERVAL_MS", "100")
	t.Setenv("WORKER_POOL_SIZE", "3")
	t.Setenv("MAX_FILE_SIZE_MB", "10")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "8081", cfg.Port)
	require.Equal(t, 5, cfg.PollMaxAttempts)
	require.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	require.Equal(t, 3, cfg.WorkerPoolSize)
	require.Equal(t, int64(10), cfg.MaxFileSizeMB)
}

func TestLoadIgnoresUnparsableNumbers(t *testing.T) {
	t.Setenv("POLL_MAX_ATTEMPTS", "many")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 20, cfg.PollMaxAttempts)
}

func TestValidateRejectsBadPollSettings(t *testing.T) {
	cfg := &Config{PollMaxAttempts: 0, PollInterval: time.Second, WorkerPoolSize: 1}
	require.Error(t, cfg.Validate())

	cfg = &Config{PollMaxAttempts: 1, PollInterval: 0, WorkerPoolSize: 1}
	require.Error(t, cfg.Validate())

	cfg = &Config{PollMaxAttempts: 1, PollInterval: time.Second, WorkerPoolSize: 0}
	require.Error(t, cfg.Validate())
}

func TestValidateReleaseModeRequiresBackend(t *testing.T) {
	cfg := &Config{
		GinMode:         "release",
		PollMaxAttempts: 1,
		PollInterval:    time.Second,
		WorkerPoolSize:  1,
	}
	require.Error(t, cfg.Validate())

	cfg.BackendBaseURL = "https://backend.example.com"
	cfg.BackendUsername = "svc"
	cfg.BackendPassword = "secret"
	cfg.BackendTenant = "tgu"
	require.NoError(t, cfg.Validate())
}

func TestTemplatePathComposition(t *testing.T) {
	cfg := &Config{
		TemplateSpace:    "peppol",
		TemplateStage:    "production",
		TemplateUnit:     "billing",
		TemplateName:     "invoice",
		TemplateLanguage: "en",
	}
	require.Equal(t, "/peppol/production/billing/invoice/en", cfg.TemplatePath())
}
