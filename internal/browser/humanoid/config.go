// internal/browser/humanoid/config.go
package humanoid

import (
	"math/rand"

	"github.com/xkilldash9x/easyapply/internal/config"
)

// Config holds the parameters of the simulated typist.
type Config struct {
	Enabled bool
	Rng     *rand.Rand

	// Key hold (dwell) time.
	KeyHoldMeanMs, KeyHoldStdDevMs float64

	// Inter-key delay.
	KeyPauseMean, KeyPauseStdDev, KeyPauseMin float64
	KeyPauseNgramFactor2                      float64
	KeyPauseNgramFactor3                      float64

	// Extra pause between words, as a multiple of KeyPauseMean.
	WordPauseScale float64

	// Fitts's law coefficients for pointer movement time, in milliseconds.
	FittsA, FittsB float64
}

// DefaultConfig returns a configuration representing an average typist.
func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		KeyHoldMeanMs:        65.0,
		KeyHoldStdDevMs:      18.0,
		KeyPauseMean:         90.0,
		KeyPauseStdDev:       35.0,
		KeyPauseMin:          30.0,
		KeyPauseNgramFactor2: 0.7,
		KeyPauseNgramFactor3: 0.55,
		WordPauseScale:       2.2,
		FittsA:               80.0,
		FittsB:               120.0,
	}
}

// FromSettings overlays user settings on the defaults.
func FromSettings(s config.HumanoidConfig) Config {
	c := DefaultConfig()
	c.Enabled = s.Enabled
	if s.KeyHoldMeanMs > 0 {
		c.KeyHoldMeanMs = s.KeyHoldMeanMs
	}
	if s.KeyHoldStdDevMs > 0 {
		c.KeyHoldStdDevMs = s.KeyHoldStdDevMs
	}
	if s.KeyPauseMeanMs > 0 {
		c.KeyPauseMean = s.KeyPauseMeanMs
	}
	if s.KeyPauseStdDevMs > 0 {
		c.KeyPauseStdDev = s.KeyPauseStdDevMs
	}
	if s.KeyPauseMinMs > 0 {
		c.KeyPauseMin = s.KeyPauseMinMs
	}
	return c
}
