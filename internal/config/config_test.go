// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "easyapply", cfg.Logger().ServiceName)
	assert.False(t, cfg.Browser().Headless, "the assistant browser must be visible for manual login")
	assert.Equal(t, "https://www.linkedin.com/login", cfg.Browser().LoginURL)
	assert.Equal(t, 12, cfg.Rate().ActionsPerWindow)
	assert.Equal(t, 60*time.Second, cfg.Rate().Window)
	assert.Equal(t, 50, cfg.Rate().MaxDaily)
	assert.Equal(t, 10, cfg.Engine().MaxSteps)
	assert.Equal(t, 2500*time.Millisecond, cfg.Engine().NextDelayMin)
	assert.Equal(t, 4*time.Second, cfg.Engine().NextDelayMax)
	assert.Equal(t, 60*time.Second, cfg.Engine().HumanWaitTimeout)
	assert.Equal(t, 2*time.Second, cfg.Engine().HumanPollInterval)
	assert.Equal(t, "authenticated", cfg.Auth().Audience)
	assert.True(t, cfg.Browser().Humanoid.Enabled)
	assert.Equal(t, ".tmp/logs/applications", cfg.Artifacts().Dir)
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetBrowserHeadless(true)
	cfg.SetEngineMaxSteps(4)

	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 4, cfg.Engine().MaxSteps)
}

// -- Validation Logic Tests --

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.AuthCfg.JWTSecret = "super-secret"
	return cfg
}

func TestConfigValidation(t *testing.T) {
	t.Run("Defaults with secret are valid", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("Rate limits", func(t *testing.T) {
		cfg := validConfig()
		cfg.RateCfg.MaxDaily = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_daily must be a positive integer")

		cfg = validConfig()
		cfg.RateCfg.ActionsPerWindow = -1
		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "actions_per_window must be a positive integer")
	})

	t.Run("Engine bounds", func(t *testing.T) {
		cfg := validConfig()
		cfg.EngineCfg.MaxSteps = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_steps must be between 1 and 50")

		cfg = validConfig()
		cfg.EngineCfg.NextDelayMin = 5 * time.Second
		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "next_delay_min must not exceed next_delay_max")

		cfg = validConfig()
		cfg.EngineCfg.HumanPollInterval = cfg.EngineCfg.HumanWaitTimeout + time.Second
		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "human_poll_interval must not exceed human_wait_timeout")
	})

	t.Run("Auth is not checked at load", func(t *testing.T) {
		// Commands that never see a token must work without a secret.
		cfg := NewDefaultConfig()
		cfg.AuthCfg.JWTSecret = ""
		assert.NoError(t, cfg.Validate())

		cfg.AuthCfg.Mode = "guess"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("S3 requires a bucket", func(t *testing.T) {
		cfg := validConfig()
		cfg.ArtifactsCfg.S3.Enabled = true
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "artifacts.s3.bucket is required")
	})
}

func TestNewConfigFromViper(t *testing.T) {
	t.Run("legacy environment aliases", func(t *testing.T) {
		t.Setenv("ENCRYPTION_KEY", "legacy-key")
		t.Setenv("SUPABASE_JWT_SECRET", "legacy-secret")

		v := viper.New()
		SetDefaults(v)
		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "legacy-key", cfg.Crypto().EncryptionKey)
		assert.Equal(t, "legacy-secret", cfg.Auth().JWTSecret)
	})

	t.Run("expands the profile directory", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("auth.mode", AuthModeUnverified)
		v.Set("browser.user_data_dir", "~/profiles/linkedin")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.NotContains(t, cfg.Browser().UserDataDir, "~")
		assert.Contains(t, cfg.Browser().UserDataDir, "profiles/linkedin")
	})

	t.Run("invalid configuration is rejected", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("auth.mode", AuthModeUnverified)
		v.Set("rate.max_daily", 0)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}
