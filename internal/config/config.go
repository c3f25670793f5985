// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Redis() RedisConfig
	Browser() BrowserConfig
	Rate() RateConfig
	Engine() EngineConfig
	Crypto() CryptoConfig
	Auth() AuthConfig
	Artifacts() ArtifactsConfig

	SetBrowserHeadless(bool)
	SetEngineMaxSteps(int)
}

// Config holds the entire application configuration. Sections are exported so
// viper can unmarshal into them; callers go through the getters.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	RedisCfg     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	BrowserCfg   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	RateCfg      RateConfig      `mapstructure:"rate" yaml:"rate"`
	EngineCfg    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	CryptoCfg    CryptoConfig    `mapstructure:"crypto" yaml:"crypto"`
	AuthCfg      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	ArtifactsCfg ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig   { return c.DatabaseCfg }
func (c *Config) Redis() RedisConfig         { return c.RedisCfg }
func (c *Config) Browser() BrowserConfig     { return c.BrowserCfg }
func (c *Config) Rate() RateConfig           { return c.RateCfg }
func (c *Config) Engine() EngineConfig       { return c.EngineCfg }
func (c *Config) Crypto() CryptoConfig       { return c.CryptoCfg }
func (c *Config) Auth() AuthConfig           { return c.AuthCfg }
func (c *Config) Artifacts() ArtifactsConfig { return c.ArtifactsCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }
func (c *Config) SetEngineMaxSteps(n int)   { c.EngineCfg.MaxSteps = n }

type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// RedisConfig points the daily submission counter at a Redis instance so the
// count survives process restarts. When disabled the counter lives in memory.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"-"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

type BrowserConfig struct {
	Headless    bool           `mapstructure:"headless" yaml:"headless"`
	UserDataDir string         `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	LoginURL    string         `mapstructure:"login_url" yaml:"login_url"`
	Args        []string       `mapstructure:"args" yaml:"args"`
	Viewport    map[string]int `mapstructure:"viewport" yaml:"viewport"`
	Proxy       ProxyConfig    `mapstructure:"proxy" yaml:"proxy"`
	Humanoid    HumanoidConfig `mapstructure:"humanoid" yaml:"humanoid"`
	Debug       bool           `mapstructure:"debug" yaml:"debug"`
}

type ProxyConfig struct {
	Server   string `mapstructure:"server" yaml:"server"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"-"`
}

// RateConfig holds the action throttle and the daily submission ceiling.
type RateConfig struct {
	ActionsPerWindow int           `mapstructure:"actions_per_window" yaml:"actions_per_window"`
	Window           time.Duration `mapstructure:"window" yaml:"window"`
	MaxDaily         int           `mapstructure:"max_daily" yaml:"max_daily"`
}

// EngineConfig tunes the application state machine.
type EngineConfig struct {
	MaxSteps            int           `mapstructure:"max_steps" yaml:"max_steps"`
	NextDelayMin        time.Duration `mapstructure:"next_delay_min" yaml:"next_delay_min"`
	NextDelayMax        time.Duration `mapstructure:"next_delay_max" yaml:"next_delay_max"`
	FieldDelayMin       time.Duration `mapstructure:"field_delay_min" yaml:"field_delay_min"`
	FieldDelayMax       time.Duration `mapstructure:"field_delay_max" yaml:"field_delay_max"`
	ClickSettle         time.Duration `mapstructure:"click_settle" yaml:"click_settle"`
	NavigationSettle    time.Duration `mapstructure:"navigation_settle" yaml:"navigation_settle"`
	NavigationTimeout   time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ModalTimeout        time.Duration `mapstructure:"modal_timeout" yaml:"modal_timeout"`
	HumanWaitTimeout    time.Duration `mapstructure:"human_wait_timeout" yaml:"human_wait_timeout"`
	HumanPollInterval   time.Duration `mapstructure:"human_poll_interval" yaml:"human_poll_interval"`
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout" yaml:"confirmation_timeout"`
	DocumentsDir        string        `mapstructure:"documents_dir" yaml:"documents_dir"`
}

type CryptoConfig struct {
	EncryptionKey string `mapstructure:"encryption_key" yaml:"-"`
}

// AuthConfig selects how bearer tokens are turned into user ids. The mode is
// never inferred from the presence of a secret, and it is only checked when a
// token is presented (see auth.ModeFromConfig).
type AuthConfig struct {
	Mode      string `mapstructure:"mode" yaml:"mode"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"-"`
	Audience  string `mapstructure:"audience" yaml:"audience"`
}

const (
	AuthModeVerified   = "verified"
	AuthModeUnverified = "unverified"
)

type ArtifactsConfig struct {
	Dir string   `mapstructure:"dir" yaml:"dir"`
	S3  S3Config `mapstructure:"s3" yaml:"s3"`
}

type S3Config struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Bucket  string `mapstructure:"bucket" yaml:"bucket"`
	Region  string `mapstructure:"region" yaml:"region"`
	Prefix  string `mapstructure:"prefix" yaml:"prefix"`
}

// NewDefaultConfig creates a configuration populated purely from defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults registers every default value on the given viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "easyapply")
	v.SetDefault("logger.log_file", ".tmp/easyapply.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Redis --
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.user_data_dir", "~/.easyapply/linkedin_session")
	v.SetDefault("browser.login_url", "https://www.linkedin.com/login")
	v.SetDefault("browser.viewport", map[string]int{"width": 1366, "height": 900})
	v.SetDefault("browser.debug", false)
	setHumanoidDefaults(v)

	// -- Rate --
	v.SetDefault("rate.actions_per_window", 12)
	v.SetDefault("rate.window", "60s")
	v.SetDefault("rate.max_daily", 50)

	// -- Engine --
	v.SetDefault("engine.max_steps", 10)
	v.SetDefault("engine.next_delay_min", "2500ms")
	v.SetDefault("engine.next_delay_max", "4s")
	v.SetDefault("engine.field_delay_min", "300ms")
	v.SetDefault("engine.field_delay_max", "800ms")
	v.SetDefault("engine.click_settle", "2s")
	v.SetDefault("engine.navigation_settle", "3s")
	v.SetDefault("engine.navigation_timeout", "60s")
	v.SetDefault("engine.modal_timeout", "10s")
	v.SetDefault("engine.human_wait_timeout", "60s")
	v.SetDefault("engine.human_poll_interval", "2s")
	v.SetDefault("engine.confirmation_timeout", "10s")
	v.SetDefault("engine.documents_dir", ".tmp")

	// -- Auth --
	v.SetDefault("auth.mode", AuthModeVerified)
	v.SetDefault("auth.audience", "authenticated")

	// -- Artifacts --
	v.SetDefault("artifacts.dir", ".tmp/logs/applications")
	v.SetDefault("artifacts.s3.enabled", false)
	v.SetDefault("artifacts.s3.prefix", "applications")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Legacy variable names still used by deployments of the web backend.
	_ = v.BindEnv("crypto.encryption_key", "EASYAPPLY_CRYPTO_ENCRYPTION_KEY", "ENCRYPTION_KEY")
	_ = v.BindEnv("auth.jwt_secret", "EASYAPPLY_AUTH_JWT_SECRET", "SUPABASE_JWT_SECRET")
	_ = v.BindEnv("database.url", "EASYAPPLY_DATABASE_URL", "DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	dir, err := homedir.Expand(c.BrowserCfg.UserDataDir)
	if err != nil {
		return fmt.Errorf("failed to expand browser.user_data_dir: %w", err)
	}
	c.BrowserCfg.UserDataDir = dir
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.RateCfg.Validate(); err != nil {
		return fmt.Errorf("rate configuration invalid: %w", err)
	}
	if err := c.EngineCfg.Validate(); err != nil {
		return fmt.Errorf("engine configuration invalid: %w", err)
	}
	if c.ArtifactsCfg.S3.Enabled && c.ArtifactsCfg.S3.Bucket == "" {
		return fmt.Errorf("artifacts.s3.bucket is required when artifacts.s3.enabled is true")
	}
	if c.RedisCfg.Enabled && c.RedisCfg.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis.enabled is true")
	}
	return nil
}

// Validate checks the rate limits.
func (r *RateConfig) Validate() error {
	if r.ActionsPerWindow <= 0 {
		return fmt.Errorf("actions_per_window must be a positive integer")
	}
	if r.Window <= 0 {
		return fmt.Errorf("window must be a positive duration")
	}
	if r.MaxDaily <= 0 {
		return fmt.Errorf("max_daily must be a positive integer")
	}
	return nil
}

// Validate checks the engine bounds and delay ranges.
func (e *EngineConfig) Validate() error {
	if e.MaxSteps < 1 || e.MaxSteps > 50 {
		return fmt.Errorf("max_steps must be between 1 and 50")
	}
	if e.NextDelayMin > e.NextDelayMax {
		return fmt.Errorf("next_delay_min must not exceed next_delay_max")
	}
	if e.FieldDelayMin > e.FieldDelayMax {
		return fmt.Errorf("field_delay_min must not exceed field_delay_max")
	}
	if e.HumanWaitTimeout <= 0 || e.HumanPollInterval <= 0 {
		return fmt.Errorf("human_wait_timeout and human_poll_interval must be positive durations")
	}
	if e.HumanPollInterval > e.HumanWaitTimeout {
		return fmt.Errorf("human_poll_interval must not exceed human_wait_timeout")
	}
	if e.ConfirmationTimeout <= 0 {
		return fmt.Errorf("confirmation_timeout must be a positive duration")
	}
	return nil
}
