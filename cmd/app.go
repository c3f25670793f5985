// File: cmd/app.go
package cmd

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/easyapply/api/schemas"
	"github.com/xkilldash9x/easyapply/internal/config"
	"github.com/xkilldash9x/easyapply/internal/service"
)

// bankStore is the slice of storage used by commands that run without a browser.
type bankStore interface {
	GetProfile(ctx context.Context, userID string) (*schemas.Profile, error)
	LoadQuestionBank(ctx context.Context, userID string) ([]schemas.BankEntry, error)
	UpsertAnswer(ctx context.Context, entry schemas.BankEntry) error
	ListUnencryptedSensitive(ctx context.Context) ([]schemas.BankEntry, error)
	UpdateAnswerCiphertext(ctx context.Context, userID, question, ciphertext string) error
}

type storeOpener func(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (bankStore, func(), error)

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (bankStore, func(), error) {
	st, cleanup, err := service.InitializeStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return st, cleanup, nil
}

// App carries what outlives a single command: the loaded configuration and
// the component graph. In the interactive shell the browser stays open
// between commands because the same App serves all of them.
type App struct {
	mu         sync.Mutex
	factory    service.ComponentFactory
	openStore  storeOpener
	cfg        config.Interface
	components *service.Components
	// oneShot is set when the process exits after a single command.
	oneShot bool
}

// NewApp creates an App backed by the production component factory.
func NewApp() *App {
	return &App{
		factory:   service.NewComponentFactory(),
		openStore: openStore,
	}
}

// Config returns the loaded configuration, or nil before the first command.
func (a *App) Config() config.Interface {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

func (a *App) setConfig(cfg config.Interface) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg
}

func (a *App) setOneShot() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.oneShot = true
}

func (a *App) isOneShot() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.oneShot
}

// Components builds the runtime graph on first use.
func (a *App) Components(ctx context.Context, logger *zap.Logger) (*service.Components, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.components != nil {
		return a.components, nil
	}
	if a.cfg == nil {
		return nil, fmt.Errorf("configuration has not been loaded")
	}
	components, err := a.factory.Create(ctx, a.cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}
	a.components = components
	return components, nil
}

// Close shuts the component graph down. The App can be reused afterwards.
func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.components != nil {
		a.components.Shutdown()
		a.components = nil
	}
}
