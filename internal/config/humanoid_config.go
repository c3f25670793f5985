// File: internal/config/humanoid_config.go
// HumanoidConfig tunes the keystroke cadence used when the browser types into
// form fields. Pauses between form actions live in EngineConfig.
package config

import "github.com/spf13/viper"

type HumanoidConfig struct {
	Enabled          bool    `mapstructure:"enabled" yaml:"enabled"`
	KeyHoldMeanMs    float64 `mapstructure:"key_hold_mean_ms" yaml:"key_hold_mean_ms"`
	KeyHoldStdDevMs  float64 `mapstructure:"key_hold_stddev_ms" yaml:"key_hold_stddev_ms"`
	KeyPauseMeanMs   float64 `mapstructure:"key_pause_mean_ms" yaml:"key_pause_mean_ms"`
	KeyPauseStdDevMs float64 `mapstructure:"key_pause_stddev_ms" yaml:"key_pause_stddev_ms"`
	KeyPauseMinMs    float64 `mapstructure:"key_pause_min_ms" yaml:"key_pause_min_ms"`
}

func setHumanoidDefaults(v *viper.Viper) {
	v.SetDefault("browser.humanoid.enabled", true)
	v.SetDefault("browser.humanoid.key_hold_mean_ms", 65.0)
	v.SetDefault("browser.humanoid.key_hold_stddev_ms", 18.0)
	v.SetDefault("browser.humanoid.key_pause_mean_ms", 90.0)
	v.SetDefault("browser.humanoid.key_pause_stddev_ms", 35.0)
	v.SetDefault("browser.humanoid.key_pause_min_ms", 30.0)
}
