// internal/browser/humanoid/keyboard.go
package humanoid

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode"
)

// commonNgrams are typed faster than arbitrary pairs.
var commonNgrams = map[string]bool{
	"th": true, "he": true, "in": true, "er": true, "an": true, "re": true,
	"es": true, "on": true, "st": true, "nt": true,
	"the": true, "and": true, "ing": true, "ion": true, "tio": true,
}

// Type sends text one rune at a time with key-hold and inter-key delays.
// When the humanoid is disabled the whole string is sent at once.
func (h *Humanoid) Type(ctx context.Context, keys KeySender, text string) error {
	if !h.cfg.Enabled {
		return keys.SendKeys(ctx, text)
	}

	runes := []rune(text)
	for i, r := range runes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := keys.SendKeys(ctx, string(r)); err != nil {
			return err
		}
		if err := h.executor.Sleep(ctx, h.keyHoldDuration()); err != nil {
			return err
		}
		if i == len(runes)-1 {
			break
		}
		scale := 1.0
		if unicode.IsSpace(r) {
			scale = h.cfg.WordPauseScale
		}
		if err := h.executor.Sleep(ctx, h.keyPause(scale, runes, i+1)); err != nil {
			return err
		}
	}
	return nil
}

// keyHoldDuration is how long a key stays down.
func (h *Humanoid) keyHoldDuration() time.Duration {
	h.mu.Lock()
	norm := h.rng.NormFloat64()
	h.mu.Unlock()

	delay := norm*h.cfg.KeyHoldStdDevMs + h.cfg.KeyHoldMeanMs
	if delay < 20.0 {
		delay = 20.0
	}
	return time.Duration(delay * float64(time.Millisecond))
}

// keyPause is the delay before typing runes[index].
func (h *Humanoid) keyPause(meanScale float64, runes []rune, index int) time.Duration {
	h.mu.Lock()
	norm := h.rng.NormFloat64()
	h.mu.Unlock()

	cfg := h.cfg
	ngramFactor := 1.0
	if index > 1 && index < len(runes) {
		if commonNgrams[strings.ToLower(string(runes[index-2:index+1]))] {
			ngramFactor = cfg.KeyPauseNgramFactor3
		} else if commonNgrams[strings.ToLower(string(runes[index-1:index+1]))] {
			ngramFactor = cfg.KeyPauseNgramFactor2
		}
	}

	mean := cfg.KeyPauseMean * meanScale * ngramFactor
	minDelay := cfg.KeyPauseMin * meanScale * ngramFactor
	delay := math.Max(minDelay, norm*cfg.KeyPauseStdDev+mean)
	return time.Duration(delay * float64(time.Millisecond))
}
