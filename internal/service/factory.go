// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/easyapply/internal/artifacts"
	"github.com/xkilldash9x/easyapply/internal/browser/humanoid"
	"github.com/xkilldash9x/easyapply/internal/browser/session"
	"github.com/xkilldash9x/easyapply/internal/config"
	"github.com/xkilldash9x/easyapply/internal/engine"
	"github.com/xkilldash9x/easyapply/internal/learning"
	"github.com/xkilldash9x/easyapply/internal/ratelimit"
	"github.com/xkilldash9x/easyapply/internal/store"
)

// ComponentFactory builds the runtime graph. It is an interface so commands
// can be tested without a database or a browser.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error)
}

type concreteFactory struct{}

// NewComponentFactory creates the production factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create wires every component. The browser is not launched here; that is
// the launch command's job.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error) {
	components := &Components{}

	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	// 1. Database
	pool, err := NewPool(ctx, cfg.Database())
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.DBPool = pool

	st, err := store.New(ctx, pool, logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to initialize database store: %w", err)
		return nil, initializationErr
	}
	components.Store = st
	logger.Debug("Store initialized.")

	// 2. Encryption at rest
	cipher, err := InitializeCipher(cfg.Crypto(), logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.Cipher = cipher

	// 3. Rate governor
	counter, redisClient := InitializeCounter(ctx, cfg.Redis(), logger)
	components.Redis = redisClient
	components.Governor = ratelimit.NewGovernor(LimitsFrom(cfg.Rate()), counter, logger)

	// 4. Browser session
	h := humanoid.New(humanoid.FromSettings(cfg.Browser().Humanoid), logger, nil)
	components.Session = session.NewManager(cfg.Browser(), h, logger)
	components.State = engine.NewEngineState(components.Session, components.Governor, logger)

	// 5. Artifacts
	mirror, err := InitializeMirror(ctx, cfg.Artifacts().S3, logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.Mirror = mirror

	// 6. Engine. Optional collaborators stay nil interfaces when absent.
	deps := engine.Dependencies{
		State:     components.State,
		Repo:      st,
		Artifacts: artifacts.Local{Root: cfg.Artifacts().Dir},
		Humanoid:  h,
		Logger:    logger,
	}
	var enc learning.Encrypter
	if cipher != nil {
		deps.Decrypter = cipher
		enc = cipher
	}
	if mirror != nil {
		deps.Mirror = mirror
	}
	deps.Learner = learning.New(st, enc, logger)
	components.Engine = engine.New(cfg.Engine(), deps)

	logger.Info("All components initialized.")
	return components, nil
}
