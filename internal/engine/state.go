// internal/engine/state.go
package engine

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/xkilldash9x/easyapply/api/schemas"
	"github.com/xkilldash9x/easyapply/internal/browser"
)

// Session is the browser lifecycle the engine depends on.
type Session interface {
	Launch(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
	Page(ctx context.Context) (browser.Page, error)
}

// Governor throttles browser actions and counts submissions.
type Governor interface {
	CheckAndWait(ctx context.Context) error
	RecordSubmission(ctx context.Context) error
	State() schemas.RateState
}

// EngineState is the process-wide state shared by every attempt: the one
// browser session, the rate counters and the cooperative stop flag. It is the
// only handle through which they are mutated.
type EngineState struct {
	session  Session
	governor Governor
	logger   *zap.Logger
	stop     atomic.Bool
}

func NewEngineState(session Session, governor Governor, logger *zap.Logger) *EngineState {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EngineState{session: session, governor: governor, logger: logger.Named("engine_state")}
}

// Launch opens the browser. It clears a stop left over from a previous Stop.
func (s *EngineState) Launch(ctx context.Context) error {
	s.stop.Store(false)
	return s.session.Launch(ctx)
}

// Stop raises the stop flag, so an attempt in flight observes it, then
// tears down the browser.
func (s *EngineState) Stop(ctx context.Context) error {
	s.stop.Store(true)
	return s.session.Stop(ctx)
}

// RequestStop aborts the attempt in flight at its next loop boundary and
// leaves the browser open.
func (s *EngineState) RequestStop() {
	s.logger.Info("Stop requested.")
	s.stop.Store(true)
}

func (s *EngineState) StopRequested() bool { return s.stop.Load() }

func (s *EngineState) Running() bool { return s.session.IsRunning() }

func (s *EngineState) CheckAndWait(ctx context.Context) error { return s.governor.CheckAndWait(ctx) }

func (s *EngineState) RecordSubmission(ctx context.Context) error {
	return s.governor.RecordSubmission(ctx)
}

// Rate returns a snapshot of the governor's counters.
func (s *EngineState) Rate() schemas.RateState { return s.governor.State() }

// beginAttempt clears the stop flag for a fresh attempt.
func (s *EngineState) beginAttempt() { s.stop.Store(false) }

// page hands out the live tab, wrapped so every action is rate checked.
func (s *EngineState) page(ctx context.Context) (browser.Page, error) {
	if !s.session.IsRunning() {
		return nil, ErrSessionNotRunning
	}
	p, err := s.session.Page(ctx)
	if err != nil {
		return nil, err
	}
	return &governedPage{Page: p, state: s}, nil
}

// governedPage passes every externally visible action through the governor
// first. Reads and screenshots are not rate checked.
type governedPage struct {
	browser.Page
	state *EngineState
}

func (g *governedPage) Navigate(ctx context.Context, url string) error {
	if err := g.state.CheckAndWait(ctx); err != nil {
		return err
	}
	return g.Page.Navigate(ctx, url)
}

func (g *governedPage) Click(ctx context.Context, selector string) error {
	if err := g.state.CheckAndWait(ctx); err != nil {
		return err
	}
	return g.Page.Click(ctx, selector)
}

func (g *governedPage) Fill(ctx context.Context, selector, value string) error {
	if err := g.state.CheckAndWait(ctx); err != nil {
		return err
	}
	return g.Page.Fill(ctx, selector, value)
}

func (g *governedPage) SelectOption(ctx context.Context, selector, option string) error {
	if err := g.state.CheckAndWait(ctx); err != nil {
		return err
	}
	return g.Page.SelectOption(ctx, selector, option)
}

func (g *governedPage) SetFiles(ctx context.Context, selector string, paths []string) error {
	if err := g.state.CheckAndWait(ctx); err != nil {
		return err
	}
	return g.Page.SetFiles(ctx, selector, paths)
}
