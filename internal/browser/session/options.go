// internal/browser/session/options.go
package session

import (
	"runtime"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/easyapply/internal/browser/stealth"
	"github.com/xkilldash9x/easyapply/internal/config"
)

const (
	defaultWidth  = 1366
	defaultHeight = 900
)

// buildFlags returns the Chrome switches for cfg, keyed by name. Kept apart
// from the allocator options so tests can inspect them.
func buildFlags(cfg config.BrowserConfig, persona stealth.Persona) map[string]interface{} {
	flags := make(map[string]interface{})
	flags["headless"] = cfg.Headless
	// Hides navigator.webdriver from the Blink side.
	flags["disable-blink-features"] = "AutomationControlled"
	flags["disable-extensions"] = true
	flags["disable-gpu"] = cfg.Headless
	flags["user-agent"] = persona.UserAgent

	if cfg.Proxy.Server != "" {
		flags["proxy-server"] = cfg.Proxy.Server
	}

	// Args from config.yaml, "--name=value" or "--name".
	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			flags[name] = parts[1]
		} else {
			flags[name] = true
		}
	}

	if runtime.GOOS == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
	}
	return flags
}

// buildAllocatorOptions assembles the allocator options: chromedp's defaults
// without enable-automation and headless, the persistent profile directory,
// the window size and the flags above.
func buildAllocatorOptions(cfg config.BrowserConfig, persona stealth.Persona) []chromedp.ExecAllocatorOption {
	var opts []chromedp.ExecAllocatorOption
	for _, opt := range chromedp.DefaultExecAllocatorOptions {
		opts = append(opts, opt)
	}
	// Later options win, so the overrides below replace the defaults.
	opts = append(opts,
		chromedp.Flag("enable-automation", false),
		chromedp.UserDataDir(cfg.UserDataDir),
		chromedp.WindowSize(viewport(cfg)),
	)
	for name, value := range buildFlags(cfg, persona) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

func viewport(cfg config.BrowserConfig) (int, int) {
	w, h := cfg.Viewport["width"], cfg.Viewport["height"]
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	return w, h
}
