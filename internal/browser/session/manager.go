// internal/browser/session/manager.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/easyapply/internal/browser"
	"github.com/xkilldash9x/easyapply/internal/browser/humanoid"
	"github.com/xkilldash9x/easyapply/internal/browser/stealth"
	"github.com/xkilldash9x/easyapply/internal/config"
)

// ErrNotRunning is returned when a page is requested before Launch.
var ErrNotRunning = errors.New("browser session is not running")

const (
	defaultLoginURL      = "https://www.linkedin.com/login"
	defaultLaunchTimeout = 60 * time.Second
	healthCheckTimeout   = 5 * time.Second
)

// Manager owns one persistent Chrome profile and the tab the engine drives.
// The profile directory keeps the LinkedIn login across runs.
type Manager struct {
	cfg      config.BrowserConfig
	persona  stealth.Persona
	humanoid *humanoid.Humanoid
	logger   *zap.Logger

	mu          sync.Mutex
	allocCancel context.CancelFunc
	rootCtx     context.Context
	rootCancel  context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	page        *ChromePage
}

// NewManager builds a manager; the browser starts on Launch.
func NewManager(cfg config.BrowserConfig, h *humanoid.Humanoid, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		persona:  stealth.DefaultPersona,
		humanoid: h,
		logger:   logger.Named("browser_manager"),
	}
}

// IsRunning reports whether a browser is up.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rootCtx != nil
}

// Launch starts Chrome with the persistent profile and opens the login page
// so the user can sign in by hand. Calling it on a running manager is a no-op.
func (m *Manager) Launch(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rootCtx != nil {
		m.logger.Info("Browser already running.")
		return nil
	}

	m.logger.Info("Launching browser.",
		zap.String("user_data_dir", m.cfg.UserDataDir),
		zap.Bool("headless", m.cfg.Headless),
	)

	// The browser outlives the command that launched it, so it is rooted in
	// Background rather than ctx.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), buildAllocatorOptions(m.cfg, m.persona)...)
	rootCtx, rootCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the process. It must not carry a timeout or the
	// browser dies with it.
	if err := chromedp.Run(rootCtx); err != nil {
		rootCancel()
		allocCancel()
		return fmt.Errorf("browser failed to start: %w", err)
	}

	m.allocCancel = allocCancel
	m.rootCtx = rootCtx
	m.rootCancel = rootCancel
	m.tabCtx = rootCtx
	m.tabCancel = func() {}

	if err := m.prepareTab(ctx); err != nil {
		m.shutdownLocked()
		return err
	}

	loginURL := m.cfg.LoginURL
	if loginURL == "" {
		loginURL = defaultLoginURL
	}
	navCtx, cancel := context.WithTimeout(ctx, defaultLaunchTimeout)
	defer cancel()
	if err := m.page.Navigate(navCtx, loginURL); err != nil {
		m.shutdownLocked()
		return err
	}

	m.logger.Info("Browser launched. Sign in manually if needed.", zap.String("url", loginURL))
	return nil
}

// prepareTab applies the persona and proxy auth to the current tab.
func (m *Manager) prepareTab(ctx context.Context) error {
	tasks := chromedp.Tasks{stealth.Apply(m.persona, m.logger)}
	if m.cfg.Proxy.Username != "" {
		m.listenForProxyAuth(m.tabCtx)
		tasks = append(tasks, fetch.Enable().WithHandleAuthRequests(true))
	}

	runCtx, cancel := CombineContext(m.tabCtx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, tasks); err != nil {
		return fmt.Errorf("failed to prepare browser tab: %w", err)
	}
	m.page = newChromePage(m.tabCtx, m.humanoid, m.logger)
	return nil
}

// listenForProxyAuth answers proxy credential challenges on the tab. Paused
// requests must be resumed from a goroutine, not from the listener itself.
func (m *Manager) listenForProxyAuth(tabCtx context.Context) {
	creds := &fetch.AuthChallengeResponse{
		Response: fetch.AuthChallengeResponseResponseProvideCredentials,
		Username: m.cfg.Proxy.Username,
		Password: m.cfg.Proxy.Password,
	}
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *fetch.EventRequestPaused:
			go func() {
				if err := chromedp.Run(tabCtx, fetch.ContinueRequest(e.RequestID)); err != nil {
					m.logger.Debug("Failed to continue paused request.", zap.Error(err))
				}
			}()
		case *fetch.EventAuthRequired:
			go func() {
				if err := chromedp.Run(tabCtx, fetch.ContinueWithAuth(e.RequestID, creds)); err != nil {
					m.logger.Warn("Failed to answer proxy auth challenge.", zap.Error(err))
				}
			}()
		}
	})
}

// Page returns the live tab. A tab that stopped answering is replaced with
// a fresh one in the same browser, which keeps the session cookies.
func (m *Manager) Page(ctx context.Context) (browser.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rootCtx == nil {
		return nil, ErrNotRunning
	}
	if m.healthy(ctx) {
		return m.page, nil
	}

	m.logger.Warn("Browser tab unresponsive; opening a new one.")
	m.tabCancel()
	tabCtx, tabCancel := chromedp.NewContext(m.rootCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open a new tab: %w", err)
	}
	m.tabCtx, m.tabCancel = tabCtx, tabCancel
	if err := m.prepareTab(ctx); err != nil {
		return nil, err
	}
	return m.page, nil
}

func (m *Manager) healthy(ctx context.Context) bool {
	if m.page == nil || m.tabCtx.Err() != nil {
		return false
	}
	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	runCtx, cancelRun := CombineContext(m.tabCtx, checkCtx)
	defer cancelRun()
	var one int
	return chromedp.Run(runCtx, chromedp.Evaluate("1", &one)) == nil && one == 1
}

// Stop closes the browser. Stopping a stopped manager is a no-op.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rootCtx == nil {
		return nil
	}
	m.logger.Info("Stopping browser.")
	m.shutdownLocked()
	return nil
}

func (m *Manager) shutdownLocked() {
	if m.tabCancel != nil {
		m.tabCancel()
	}
	if m.rootCancel != nil {
		m.rootCancel()
	}
	if m.allocCancel != nil {
		m.allocCancel()
	}
	m.allocCancel, m.rootCtx, m.rootCancel = nil, nil, nil
	m.tabCtx, m.tabCancel, m.page = nil, nil, nil
}
