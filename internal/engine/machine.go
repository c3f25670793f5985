// internal/engine/machine.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/easyapply/api/schemas"
	"github.com/xkilldash9x/easyapply/internal/answers"
	"github.com/xkilldash9x/easyapply/internal/browser"
	"github.com/xkilldash9x/easyapply/internal/browser/session"
	"github.com/xkilldash9x/easyapply/internal/form"
	"github.com/xkilldash9x/easyapply/internal/ratelimit"
)

// Phase is a named state of one application attempt.
type Phase string

const (
	Idle          Phase = "idle"
	Navigating    Phase = "navigating"
	OpeningForm   Phase = "opening_form"
	FillingStep   Phase = "filling_step"
	AwaitingHuman Phase = "awaiting_human"
	Submitting    Phase = "submitting"
	Succeeded     Phase = "succeeded"
	Warning       Phase = "warning"
	Failed        Phase = "failed"
	Cancelled     Phase = "cancelled"
	DryRunStopped Phase = "dry_run_stopped"
)

// transitions enumerates every legal move. Submitting cannot be cancelled:
// the click has happened and the record must follow.
var transitions = map[Phase][]Phase{
	Idle:          {Navigating, Failed, Cancelled},
	Navigating:    {OpeningForm, Failed, Cancelled},
	OpeningForm:   {FillingStep, Failed, Cancelled},
	FillingStep:   {FillingStep, AwaitingHuman, Submitting, DryRunStopped, Succeeded, Failed, Cancelled},
	AwaitingHuman: {FillingStep, Failed, Cancelled},
	Submitting:    {Succeeded, Warning, Failed},
}

// Terminal reports whether the attempt ends in p.
func (p Phase) Terminal() bool {
	_, ok := transitions[p]
	return !ok
}

// Status maps a terminal phase to the status reported to callers.
func (p Phase) Status() schemas.Status {
	switch p {
	case Succeeded:
		return schemas.StatusSuccess
	case Warning:
		return schemas.StatusWarning
	case Cancelled:
		return schemas.StatusCancelled
	case DryRunStopped:
		return schemas.StatusDryRunStop
	default:
		return schemas.StatusError
	}
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

const (
	caveatMessage           = "Assistant finished filling known fields. Please complete any remaining steps."
	presencePollEvery       = 500 * time.Millisecond
	recordTimeout           = 15 * time.Second
	messageSubmitted        = "Application submitted automatically."
	messageUnconfirmed      = "Clicked Submit, but verification timed out. Record saved anyway."
	messageHumanWaitTimeout = "Timed out waiting for human intervention."
	messageModalNotOpened   = "Easy Apply form did not open."
)

// attempt is one run of the machine. It is owned by a single goroutine.
type attempt struct {
	e        *Engine
	id       string
	req      Request
	job      *schemas.Job
	page     browser.Page
	resolver *answers.Resolver
	logger   *zap.Logger

	phase   Phase
	history []Phase
	step    int
	message string
	proof   string
	// proofURI is where the proof was mirrored, if anywhere.
	proofURI string
	// before is the field state when validation errors appeared.
	before []form.Field
}

// run drives the attempt from Idle to a terminal phase.
func (a *attempt) run(ctx context.Context) schemas.Outcome {
	a.phase = Idle
	a.history = []Phase{Idle}

	for !a.phase.Terminal() {
		if a.phase != Submitting && a.cancelled(ctx) {
			a.moveTo(Cancelled, ErrStopRequested.Error())
			break
		}

		next, msg := a.handle(ctx)
		a.moveTo(next, msg)
	}

	a.logger.Info("Attempt finished.",
		zap.String("phase", string(a.phase)),
		zap.Int("steps", a.step),
		zap.String("message", a.message),
	)
	return schemas.Outcome{
		AttemptID:      a.id,
		JobID:          a.req.JobID,
		Status:         a.phase.Status(),
		Message:        a.message,
		SkippedFields:  a.skipped(),
		ScreenshotPath: a.proof,
		ProofURI:       a.proofURI,
		Steps:          a.step,
	}
}

func (a *attempt) moveTo(next Phase, msg string) {
	if !CanTransition(a.phase, next) {
		err := fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.phase, next)
		a.logger.Error("State machine rejected a transition.", zap.Error(err))
		next, msg = Failed, err.Error()
	}
	a.logger.Debug("Transition.", zap.String("from", string(a.phase)), zap.String("to", string(next)))
	a.phase = next
	a.history = append(a.history, next)
	if msg != "" {
		a.message = msg
	}
}

func (a *attempt) cancelled(ctx context.Context) bool {
	return a.e.state.StopRequested() || ctx.Err() != nil
}

func (a *attempt) skipped() []string {
	if a.resolver == nil {
		return []string{}
	}
	return a.resolver.Skipped()
}

func (a *attempt) handle(ctx context.Context) (Phase, string) {
	switch a.phase {
	case Idle:
		return a.idle(ctx)
	case Navigating:
		return a.navigate(ctx)
	case OpeningForm:
		return a.openForm(ctx)
	case FillingStep:
		return a.fillStep(ctx)
	case AwaitingHuman:
		return a.awaitHuman(ctx)
	case Submitting:
		return a.submit(ctx)
	}
	return Failed, fmt.Sprintf("no handler for phase %s", a.phase)
}

// fail converts an error into the terminal phase it implies.
func (a *attempt) fail(ctx context.Context, err error) (Phase, string) {
	if errors.Is(err, ErrStopRequested) || errors.Is(err, context.Canceled) || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
		return Cancelled, ErrStopRequested.Error()
	}
	if errors.Is(err, ratelimit.ErrDailyLimitExceeded) {
		a.logger.Warn("Daily limit reached.", zap.Error(err))
	} else {
		a.logger.Error("Attempt failed.", zap.Error(err))
	}
	return Failed, err.Error()
}

func (a *attempt) idle(ctx context.Context) (Phase, string) {
	if err := a.e.state.CheckAndWait(ctx); err != nil {
		return a.fail(ctx, err)
	}
	page, err := a.e.state.page(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	a.page = page
	return Navigating, ""
}

func (a *attempt) navigate(ctx context.Context) (Phase, string) {
	current, err := a.page.URL(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	if current == a.job.URL {
		return OpeningForm, ""
	}

	a.logger.Info("Navigating to job.", zap.String("url", a.job.URL))
	navCtx, cancel := context.WithTimeout(ctx, a.e.cfg.NavigationTimeout)
	err = a.page.Navigate(navCtx, a.job.URL)
	cancel()
	if err != nil {
		a.screenshot(ctx, "error_navigation_failed.png")
		return a.fail(ctx, fmt.Errorf("failed to navigate to job: %w", err))
	}
	if err := a.e.humanoid.Pause(ctx, a.e.cfg.NavigationSettle, a.e.cfg.NavigationSettle); err != nil {
		return a.fail(ctx, err)
	}
	return OpeningForm, ""
}

func (a *attempt) openForm(ctx context.Context) (Phase, string) {
	for _, sel := range a.e.selectors.ApplyTriggers {
		found, err := a.page.Exists(ctx, sel)
		if err != nil {
			return a.fail(ctx, err)
		}
		if !found {
			continue
		}
		a.logger.Info("Found apply button.", zap.String("selector", sel))
		if err := a.page.Click(ctx, sel); err != nil {
			return a.fail(ctx, fmt.Errorf("failed to click apply button: %w", err))
		}
		if err := a.e.humanoid.Pause(ctx, a.e.cfg.ClickSettle, a.e.cfg.ClickSettle); err != nil {
			return a.fail(ctx, err)
		}
		if !a.waitFor(ctx, a.e.selectors.Modal, a.e.cfg.ModalTimeout) {
			if a.cancelled(ctx) {
				return Cancelled, ErrStopRequested.Error()
			}
			a.screenshot(ctx, "error_modal_not_opened.png")
			return Failed, messageModalNotOpened
		}
		return FillingStep, ""
	}

	open, err := a.page.Exists(ctx, a.e.selectors.Modal)
	if err != nil {
		return a.fail(ctx, err)
	}
	if !open {
		a.screenshot(ctx, "error_button_not_found.png")
		return Failed, "Easy Apply button not found on page."
	}
	return FillingStep, ""
}

// fillStep handles one rendered step of the modal.
func (a *attempt) fillStep(ctx context.Context) (Phase, string) {
	if a.step >= a.e.cfg.MaxSteps {
		a.logger.Warn("Step ceiling reached.", zap.Int("max_steps", a.e.cfg.MaxSteps))
		return Succeeded, caveatMessage
	}
	a.step++
	logger := a.logger.With(zap.Int("step", a.step))

	if path, err := a.e.artifacts.StepPath(a.job.ID, a.step); err == nil {
		a.capture(ctx, path)
	} else {
		logger.Warn("Failed to prepare step screenshot.", zap.Error(err))
	}

	open, err := a.page.Exists(ctx, a.e.selectors.Modal)
	if err != nil {
		return a.fail(ctx, err)
	}
	if !open {
		logger.Info("Modal closed.")
		return Succeeded, caveatMessage
	}

	submit, err := a.page.Exists(ctx, a.e.selectors.Submit)
	if err != nil {
		return a.fail(ctx, err)
	}
	if submit {
		if a.req.DryRun {
			logger.Info("Dry run reached the submit button.")
			return DryRunStopped, "Dry run: reached the submit button without submitting."
		}
		return Submitting, ""
	}

	fields, err := a.extract(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	if err := a.fill(ctx, fields); err != nil {
		return a.fail(ctx, err)
	}

	next, err := a.page.Exists(ctx, a.e.selectors.Next)
	if err != nil {
		return a.fail(ctx, err)
	}
	if !next {
		logger.Info("No next or submit control; leaving the rest to the user.")
		return Succeeded, caveatMessage
	}

	if err := a.e.humanoid.Pause(ctx, a.e.cfg.NextDelayMin, a.e.cfg.NextDelayMax); err != nil {
		return a.fail(ctx, err)
	}
	if err := a.page.Click(ctx, a.e.selectors.Next); err != nil {
		return a.fail(ctx, fmt.Errorf("failed to advance the form: %w", err))
	}
	if err := a.e.humanoid.Pause(ctx, a.e.cfg.ClickSettle, a.e.cfg.ClickSettle); err != nil {
		return a.fail(ctx, err)
	}

	invalid, err := a.page.Exists(ctx, a.e.selectors.InlineError)
	if err != nil {
		return a.fail(ctx, err)
	}
	if !invalid {
		return FillingStep, ""
	}

	// Snapshot now so only what the human changes afterwards is learned.
	a.before, err = a.extract(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	logger.Warn("Form errors detected; waiting for the user to fix them.")
	return AwaitingHuman, ""
}

// awaitHuman polls until the inline errors disappear, then learns the answers
// the user typed.
func (a *attempt) awaitHuman(ctx context.Context) (Phase, string) {
	interval := a.e.cfg.HumanPollInterval
	// Round up so the page is checked at least once.
	polls := int((a.e.cfg.HumanWaitTimeout + interval - 1) / interval)
	after := a.before

	for i := 0; i < polls; i++ {
		if a.cancelled(ctx) {
			return Cancelled, ErrStopRequested.Error()
		}

		if fields, err := a.extract(ctx); err == nil && len(fields) > 0 {
			after = fields
		}

		invalid, err := a.page.Exists(ctx, a.e.selectors.InlineError)
		if err != nil {
			return a.fail(ctx, err)
		}
		if !invalid {
			a.logger.Info("User resolved the form errors.")
			a.learn(ctx, after)
			if err := a.e.humanoid.Pause(ctx, a.e.cfg.ClickSettle, a.e.cfg.ClickSettle); err != nil {
				return a.fail(ctx, err)
			}
			return FillingStep, ""
		}

		a.e.waitLog.Do(func() {
			a.logger.Info("Still waiting for the user.", zap.Int("poll", i+1), zap.Int("of", polls))
		})
		if err := a.e.humanoid.Pause(ctx, interval, interval); err != nil {
			return a.fail(ctx, err)
		}
	}
	return Failed, messageHumanWaitTimeout
}

func (a *attempt) learn(ctx context.Context, after []form.Field) {
	if a.e.learner == nil {
		return
	}
	res, err := a.e.learner.Learn(ctx, a.req.UserID, a.before, after)
	if err != nil {
		a.logger.Error("Failed to store learned answers.", zap.Error(err))
	}
	if len(res.Learned) > 0 || len(res.Dropped) > 0 {
		a.logger.Info("Learned answers from the user.",
			zap.Int("learned", len(res.Learned)),
			zap.Strings("dropped", res.Dropped),
		)
	}
}

// submit clicks the irreversible submit button. Once the click lands the
// submission is counted and recorded whatever happens next.
func (a *attempt) submit(ctx context.Context) (Phase, string) {
	a.logger.Info("Final step reached; submitting.")
	if err := a.page.Click(ctx, a.e.selectors.Submit); err != nil {
		return a.fail(ctx, fmt.Errorf("failed to click submit: %w", err))
	}

	// From here on the caller's cancellation no longer applies.
	bg := session.Detach(ctx)
	if err := a.e.state.RecordSubmission(bg); err != nil {
		a.logger.Error("Failed to count submission.", zap.Error(err))
	}

	confirmed := a.awaitConfirmation(bg)

	stepShot := ""
	if path, err := a.e.artifacts.StepPath(a.job.ID, a.step); err == nil {
		stepShot = path
	}

	shot := stepShot
	if confirmed {
		if path, err := a.e.artifacts.ProofPath(a.job.ID); err == nil && a.capture(bg, path) {
			shot = path
			if a.e.mirror != nil {
				a.proofURI = a.e.mirror.Mirror(bg, a.job.ID, path)
			}
		}
	}
	a.proof = shot

	recCtx, cancel := context.WithTimeout(bg, recordTimeout)
	defer cancel()
	err := a.e.repo.RecordApplication(recCtx, schemas.ApplicationRecord{
		UserID:         a.req.UserID,
		JobID:          a.job.ID,
		Company:        orUnknown(a.job.Company),
		RoleTitle:      orUnknown(a.job.Title),
		Status:         schemas.ApplicationStatusApplied,
		MatchScore:     a.job.MatchScore,
		ScreenshotPath: shot,
	})
	if err != nil {
		a.logger.Error("Failed to record submitted application.", zap.Error(err))
		return Warning, fmt.Sprintf("Clicked Submit, but recording the application failed: %v", err)
	}

	if !confirmed {
		a.logger.Warn("Submission confirmation timed out.")
		return Warning, messageUnconfirmed
	}

	if ok, _ := a.page.Exists(bg, a.e.selectors.Dismiss); ok {
		if err := a.page.Click(bg, a.e.selectors.Dismiss); err != nil {
			a.logger.Debug("Failed to dismiss confirmation.", zap.Error(err))
		}
	}
	a.logger.Info("Application submitted.", zap.String("proof", shot))
	return Succeeded, messageSubmitted
}

func (a *attempt) awaitConfirmation(ctx context.Context) bool {
	return a.waitFor(ctx, a.e.selectors.Confirmation, a.e.cfg.ConfirmationTimeout)
}

// waitFor polls until selector exists or timeout has been spent pausing.
func (a *attempt) waitFor(ctx context.Context, selector string, timeout time.Duration) bool {
	polls := int(timeout / presencePollEvery)
	if polls < 1 {
		polls = 1
	}
	for i := 0; i < polls; i++ {
		if ok, err := a.page.Exists(ctx, selector); err == nil && ok {
			return true
		}
		if err := a.e.humanoid.Pause(ctx, presencePollEvery, presencePollEvery); err != nil {
			return false
		}
	}
	return false
}

func (a *attempt) extract(ctx context.Context) ([]form.Field, error) {
	markup, err := a.page.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return form.Extract(markup)
}

// capture writes a screenshot and reports whether it landed. Screenshots are
// for audit; failing to take one never changes the outcome.
func (a *attempt) capture(ctx context.Context, path string) bool {
	if err := a.page.Screenshot(ctx, path); err != nil {
		a.logger.Warn("Failed to capture screenshot.", zap.String("path", path), zap.Error(err))
		return false
	}
	return true
}

func (a *attempt) screenshot(ctx context.Context, name string) {
	path, err := a.e.artifacts.File(a.job.ID, name)
	if err != nil {
		return
	}
	a.capture(ctx, path)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
