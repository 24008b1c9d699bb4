package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "")
	t.Setenv("STORAGE", "")
	t.Setenv("EMAIL_PROVIDER", "")
	t.Setenv("BNPL_PENALTY_RATE", "")
	t.Setenv("BNPL_SWEEP_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, StorageMongo, cfg.Storage)
	assert.Equal(t, EmailNone, cfg.EmailProvider)
	assert.Equal(t, "2", cfg.PenaltyRate.String())
	assert.Equal(t, time.Hour, cfg.SweepInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE", "Memory")
	t.Setenv("EMAIL_PROVIDER", "sendgrid")
	t.Setenv("SENDGRID_API_KEY", "SG.key")
	t.Setenv("BNPL_PENALTY_RATE", "1.5")
	t.Setenv("BNPL_SWEEP_INTERVAL", "15m")
	t.Setenv("ADMIN_EMAILS", " Ops@Example.com, ,finance@example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "http://localhost:9090", cfg.PublicURL)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, EmailSendGrid, cfg.EmailProvider)
	assert.Equal(t, "1.5", cfg.PenaltyRate.String())
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
	assert.Equal(t, []string{"ops@example.com", "finance@example.com"}, cfg.AdminEmails)
	assert.True(t, cfg.IsAdminEmail("OPS@example.com"))
	assert.False(t, cfg.IsAdminEmail("someone@example.com"))
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing jwt secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("postmark without token", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("EMAIL_PROVIDER", "postmark")
		t.Setenv("POSTMARK_API_TOKEN", "")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bad penalty rate", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("EMAIL_PROVIDER", "")
		t.Setenv("BNPL_PENALTY_RATE", "two")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bad interval", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("EMAIL_PROVIDER", "")
		t.Setenv("BNPL_PENALTY_RATE", "")
		t.Setenv("BNPL_SWEEP_INTERVAL", "hourly")
		_, err := Load()
		assert.Error(t, err)
	})
}
