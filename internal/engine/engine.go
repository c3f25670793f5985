// internal/engine/engine.go
package engine

import (
	"context"
	"fmt"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/easyapply/api/schemas"
	"github.com/xkilldash9x/easyapply/internal/answers"
	"github.com/xkilldash9x/easyapply/internal/artifacts"
	"github.com/xkilldash9x/easyapply/internal/browser/humanoid"
	"github.com/xkilldash9x/easyapply/internal/config"
	"github.com/xkilldash9x/easyapply/internal/form"
	"github.com/xkilldash9x/easyapply/internal/learning"
	"github.com/xkilldash9x/easyapply/internal/observability"
)

// Request is one invocation of the engine.
type Request struct {
	JobID  string
	UserID string
	DryRun bool
}

// Learner stores answers a human typed while the engine waited.
type Learner interface {
	Learn(ctx context.Context, owner string, before, after []form.Field) (learning.Result, error)
}

// Mirror copies proof screenshots somewhere durable and returns its URI.
type Mirror interface {
	Mirror(ctx context.Context, jobID, localPath string) string
}

// Dependencies are the collaborators an Engine drives.
type Dependencies struct {
	State     *EngineState
	Repo      schemas.Repository
	Learner   Learner
	Decrypter answers.Decrypter
	Artifacts artifacts.Local
	// Mirror is optional.
	Mirror   Mirror
	Humanoid *humanoid.Humanoid
	Logger   *zap.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithSelectors replaces the LinkedIn selectors.
func WithSelectors(s Selectors) Option {
	return func(e *Engine) { e.selectors = s }
}

// WithClock replaces time.Now for derived answers.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine runs application attempts, one at a time.
type Engine struct {
	cfg       config.EngineConfig
	state     *EngineState
	repo      schemas.Repository
	learner   Learner
	decrypter answers.Decrypter
	artifacts artifacts.Local
	mirror    Mirror
	humanoid  *humanoid.Humanoid
	selectors Selectors
	logger    *zap.Logger
	now       func() time.Time

	// slot admits a single attempt; the browser page is not shareable.
	slot    *semaphore.Weighted
	waitLog rate.Sometimes
}

// New creates an Engine. Zero durations in cfg fall back to the defaults.
func New(cfg config.EngineConfig, deps Dependencies, opts ...Option) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := deps.Humanoid
	if h == nil {
		h = humanoid.New(humanoid.DefaultConfig(), logger, nil)
	}
	e := &Engine{
		cfg:       withDefaults(cfg),
		state:     deps.State,
		repo:      deps.Repo,
		learner:   deps.Learner,
		decrypter: deps.Decrypter,
		artifacts: deps.Artifacts,
		mirror:    deps.Mirror,
		humanoid:  h,
		selectors: LinkedInSelectors(),
		logger:    logger.Named("engine"),
		now:       time.Now,
		slot:      semaphore.NewWeighted(1),
		waitLog:   rate.Sometimes{Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.selectors.Validate(); err != nil {
		e.logger.Error("Custom selectors rejected, using LinkedIn defaults.", zap.Error(err))
		e.selectors = LinkedInSelectors()
	}
	return e
}

func withDefaults(cfg config.EngineConfig) config.EngineConfig {
	setDur := func(d *time.Duration, def time.Duration) {
		if *d <= 0 {
			*d = def
		}
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 10
	}
	setDur(&cfg.NavigationTimeout, 60*time.Second)
	setDur(&cfg.HumanWaitTimeout, 60*time.Second)
	setDur(&cfg.HumanPollInterval, 2*time.Second)
	setDur(&cfg.ModalTimeout, 10*time.Second)
	setDur(&cfg.ConfirmationTimeout, 10*time.Second)
	return cfg
}

// State returns the shared engine state.
func (e *Engine) State() *EngineState { return e.state }

// Apply runs one attempt and always returns an Outcome; errors and panics
// are folded into it.
func (e *Engine) Apply(ctx context.Context, req Request) (out schemas.Outcome) {
	attemptID := uuid.NewString()
	logger := e.logger.With(observability.AttemptFields(attemptID, req.JobID, req.DryRun)...)
	failed := func(msg string) schemas.Outcome {
		return schemas.Outcome{
			AttemptID:     attemptID,
			JobID:         req.JobID,
			Status:        schemas.StatusError,
			Message:       msg,
			SkippedFields: []string{},
		}
	}

	if !e.slot.TryAcquire(1) {
		logger.Warn("Rejected concurrent attempt.")
		return failed(ErrAttemptInProgress.Error())
	}
	defer e.slot.Release(1)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Attempt panicked.", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			out = failed(fmt.Sprintf("internal error: %v", r))
		}
	}()

	e.state.beginAttempt()
	logger.Info("Starting application attempt.")

	job, err := e.repo.GetJob(ctx, req.UserID, req.JobID)
	if err != nil {
		logger.Error("Failed to load job.", zap.Error(err))
		return failed(fmt.Sprintf("Job data missing: %v", err))
	}
	if strings.TrimSpace(job.URL) == "" {
		return failed("Job URL not found.")
	}
	if err := CheckDomain(job.URL); err != nil {
		logger.Warn("Refusing job outside LinkedIn.", zap.String("url", job.URL))
		return failed(err.Error())
	}

	profile, err := e.repo.GetProfile(ctx, req.UserID)
	if err != nil {
		logger.Error("Failed to load profile.", zap.Error(err))
		return failed(fmt.Sprintf("Profile data missing: %v", err))
	}
	// The bank is read once; learning during this attempt does not feed back
	// into it.
	bank, err := e.repo.LoadQuestionBank(ctx, req.UserID)
	if err != nil {
		logger.Error("Failed to load question bank.", zap.Error(err))
		return failed(fmt.Sprintf("Question bank unavailable: %v", err))
	}

	a := &attempt{
		e:        e,
		id:       attemptID,
		req:      req,
		job:      job,
		resolver: answers.NewResolver(*profile, bank, e.decrypter, logger, answers.WithClock(e.now)),
		logger:   logger,
	}
	return a.run(ctx)
}

// CheckDomain accepts http(s) URLs on linkedin.com and its subdomains.
func CheckDomain(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedDomain, err)
	}
	host := strings.ToLower(u.Hostname())
	if (u.Scheme != "https" && u.Scheme != "http") ||
		(host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com")) {
		return fmt.Errorf("%w; this job links to %q", ErrUnsupportedDomain, raw)
	}
	return nil
}

// ProbeResult reports whether a job page offers Easy Apply.
type ProbeResult struct {
	JobID     string `json:"job_id"`
	URL       string `json:"url"`
	EasyApply bool   `json:"easy_apply"`
	Selector  string `json:"selector,omitempty"`
}

// Probe opens the job page and looks for an apply trigger without clicking.
func (e *Engine) Probe(ctx context.Context, userID, jobID string) (ProbeResult, error) {
	if !e.slot.TryAcquire(1) {
		return ProbeResult{}, ErrAttemptInProgress
	}
	defer e.slot.Release(1)

	job, err := e.repo.GetJob(ctx, userID, jobID)
	if err != nil {
		return ProbeResult{}, err
	}
	res := ProbeResult{JobID: job.ID, URL: job.URL}
	if err := CheckDomain(job.URL); err != nil {
		return res, err
	}

	page, err := e.state.page(ctx)
	if err != nil {
		return res, err
	}
	if current, err := page.URL(ctx); err != nil || current != job.URL {
		navCtx, cancel := context.WithTimeout(ctx, e.cfg.NavigationTimeout)
		err = page.Navigate(navCtx, job.URL)
		cancel()
		if err != nil {
			return res, fmt.Errorf("failed to navigate to job: %w", err)
		}
		if err := e.humanoid.Pause(ctx, e.cfg.NavigationSettle, e.cfg.NavigationSettle); err != nil {
			return res, err
		}
	}

	for _, sel := range e.selectors.ApplyTriggers {
		found, err := page.Exists(ctx, sel)
		if err != nil {
			return res, err
		}
		if found {
			res.EasyApply, res.Selector = true, sel
			break
		}
	}
	e.logger.Info("Probed job.", zap.String("job_id", jobID), zap.Bool("easy_apply", res.EasyApply))
	return res, nil
}
