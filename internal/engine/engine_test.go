// internal/engine/engine_test.go
package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/easyapply/api/schemas"
	"github.com/xkilldash9x/easyapply/internal/artifacts"
	"github.com/xkilldash9x/easyapply/internal/browser"
	"github.com/xkilldash9x/easyapply/internal/browser/htmlpage"
	"github.com/xkilldash9x/easyapply/internal/browser/humanoid"
	"github.com/xkilldash9x/easyapply/internal/config"
	"github.com/xkilldash9x/easyapply/internal/learning"
	"github.com/xkilldash9x/easyapply/internal/ratelimit"
	"github.com/xkilldash9x/easyapply/internal/secrets"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	jobURL       = "https://www.linkedin.com/jobs/view/4242"
	pollInterval = 1500 * time.Millisecond
)

var fixedNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

// -- Fakes --

// scriptedSleeper returns immediately and lets a test react to specific waits.
type scriptedSleeper struct {
	mu     sync.Mutex
	slept  []time.Duration
	onWait func(d time.Duration)
}

func (s *scriptedSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.slept = append(s.slept, d)
	hook := s.onWait
	s.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return nil
}

type fakeSession struct {
	mu        sync.Mutex
	page      browser.Page
	running   bool
	pageCalls int
}

func (f *fakeSession) Launch(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
	return nil
}

func (f *fakeSession) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	return nil
}

func (f *fakeSession) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeSession) Page(context.Context) (browser.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls++
	return f.page, nil
}

type fakeRepo struct {
	mu      sync.Mutex
	job     *schemas.Job
	profile *schemas.Profile
	bank    []schemas.BankEntry
	records []schemas.ApplicationRecord
	upserts []schemas.BankEntry
	onGet   func()
}

func (r *fakeRepo) GetJob(_ context.Context, _, _ string) (*schemas.Job, error) {
	if r.onGet != nil {
		r.onGet()
	}
	j := *r.job
	return &j, nil
}

func (r *fakeRepo) GetProfile(context.Context, string) (*schemas.Profile, error) {
	p := *r.profile
	return &p, nil
}

func (r *fakeRepo) LoadQuestionBank(context.Context, string) ([]schemas.BankEntry, error) {
	return append([]schemas.BankEntry(nil), r.bank...), nil
}

func (r *fakeRepo) UpsertAnswer(_ context.Context, e schemas.BankEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts = append(r.upserts, e)
	return nil
}

func (r *fakeRepo) RecordApplication(_ context.Context, rec schemas.ApplicationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

// -- Fixtures --

const jobPageHTML = `<html><body>
<h1>Senior Go Engineer</h1>
<button data-view-name="job-apply-button" aria-label="Easy Apply to Acme">Easy Apply</button>
</body></html>`

const contactStepHTML = `<html><body><div class="jobs-easy-apply-modal" role="dialog"><form>
<label for="first">First name</label><input id="first" type="text">
<label for="last">Last name</label><input id="last" type="text">
<label for="phone">Mobile phone number</label><input id="phone" type="text">
<label for="salary">Expected salary (EUR)</label><input id="salary" type="text">
<label for="exp">How many years of work experience do you have with Go?</label><input id="exp" type="text">
<label for="country">Country</label>
<select id="country"><option value="">Select an option</option><option>Germany</option><option>France</option></select>
<fieldset><legend>Are you comfortable working remotely?</legend>
<input id="r-yes" type="radio" name="remote" value="Yes"><label for="r-yes">Yes</label>
<input id="r-no" type="radio" name="remote" value="No"><label for="r-no">No</label>
</fieldset>
<input id="terms" type="checkbox"><label for="terms">I agree to the terms of service</label>
<label for="resume">Upload resume</label><input id="resume" type="file" accept=".pdf,.doc,.docx">
<button aria-label="Continue to Next step">Next</button>
</form></div></body></html>`

const reviewStepHTML = `<html><body><div class="jobs-easy-apply-modal" role="dialog">
<h3>Review your application</h3>
<button aria-label="Submit application">Submit application</button>
</div></body></html>`

const confirmedHTML = `<html><body><div class="artdeco-modal" data-test-modal-id="postApplyModal">
<h3>Application submitted</h3>
<button aria-label="Dismiss">Done</button>
</div></body></html>`

const questionStepHTML = `<html><body><div class="jobs-easy-apply-modal" role="dialog"><form>
<label for="hear">How did you hear about us?</label><input id="hear" type="text" value="%s">
%s
<button aria-label="Continue to Next step">Next</button>
</form></div></body></html>`

const inlineError = `<div class="artdeco-inline-feedback artdeco-inline-feedback--error">Enter a valid answer</div>`

func questionStep(value string, withError bool) string {
	errHTML := ""
	if withError {
		errHTML = inlineError
	}
	return strings.Replace(strings.Replace(questionStepHTML, "%s", value, 1), "%s", errHTML, 1)
}

func sel(id string) string { return "//*[@id='" + id + "']" }

type harness struct {
	t        *testing.T
	engine   *Engine
	state    *EngineState
	session  *fakeSession
	page     *htmlpage.Page
	repo     *fakeRepo
	governor *ratelimit.Governor
	counter  *ratelimit.MemoryCounter
	sleeper  *scriptedSleeper
	logs     *observer.ObservedLogs
	dir      string
	docs     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	page, err := htmlpage.New("about:blank", "<html><body></body></html>")
	require.NoError(t, err)
	page.Route(jobURL, jobPageHTML)

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	counter := ratelimit.NewMemoryCounter()
	governor := ratelimit.NewGovernor(
		ratelimit.Limits{ActionsPerWindow: 1000, Window: time.Minute, MaxDaily: 50},
		counter, logger,
		ratelimit.WithClock(func() time.Time { return fixedNow }),
		ratelimit.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)

	session := &fakeSession{page: page, running: true}
	state := NewEngineState(session, governor, logger)

	key, err := secrets.GenerateKey()
	require.NoError(t, err)
	cipher, err := secrets.New(key)
	require.NoError(t, err)

	repo := &fakeRepo{
		job: &schemas.Job{ID: "job-1", UserID: "user-1", URL: jobURL, Company: "Acme GmbH", Title: "Senior Go Engineer", MatchScore: 87},
		profile: &schemas.Profile{
			UserID:         "user-1",
			FullName:       "Jane Doe",
			Phone:          "+49123",
			Email:          "j@d.com",
			WorkExperience: []schemas.WorkExperience{{Title: "Engineer", StartDate: "2019-03"}},
		},
		bank: []schemas.BankEntry{
			{UserID: "user-1", Question: "Country", Answer: "Germany", Category: schemas.CategoryGeneral},
			{UserID: "user-1", Question: "Are you comfortable working remotely?", Answer: "Yes", Category: schemas.CategoryGeneral},
			{UserID: "user-1", Question: "Expected salary (EUR)", Answer: "90000", Category: schemas.CategorySensitive},
		},
	}

	dir := t.TempDir()
	docs := filepath.Join(dir, "documents")
	require.NoError(t, os.MkdirAll(docs, 0o755))

	sleeper := &scriptedSleeper{}
	cfg := config.EngineConfig{
		MaxSteps:            10,
		NextDelayMin:        2500 * time.Millisecond,
		NextDelayMax:        4 * time.Second,
		FieldDelayMin:       300 * time.Millisecond,
		FieldDelayMax:       800 * time.Millisecond,
		ClickSettle:         2 * time.Second,
		NavigationSettle:    3 * time.Second,
		NavigationTimeout:   time.Minute,
		HumanWaitTimeout:    6 * time.Second,
		HumanPollInterval:   pollInterval,
		ConfirmationTimeout: 2 * time.Second,
		DocumentsDir:        docs,
	}
	eng := New(cfg, Dependencies{
		State:     state,
		Repo:      repo,
		Learner:   learning.New(repo, cipher, logger),
		Decrypter: cipher,
		Artifacts: artifacts.Local{Root: filepath.Join(dir, "applications")},
		Humanoid:  humanoid.NewTestHumanoid(sleeper, 7),
		Logger:    logger,
	}, WithClock(func() time.Time { return fixedNow }))

	return &harness{
		t: t, engine: eng, state: state, session: session, page: page, repo: repo,
		governor: governor, counter: counter, sleeper: sleeper, logs: logs, dir: dir, docs: docs,
	}
}

// scriptHappyPath wires the job page -> contact step -> review -> confirmation.
func (h *harness) scriptHappyPath(confirm bool) {
	s := LinkedInSelectors()
	h.page.OnClick(s.ApplyTriggers[0], func(p *htmlpage.Page) error { return p.SetHTML(contactStepHTML) })
	h.page.OnClick(s.Next, func(p *htmlpage.Page) error { return p.SetHTML(reviewStepHTML) })
	h.page.OnClick(s.Submit, func(p *htmlpage.Page) error {
		if confirm {
			return p.SetHTML(confirmedHTML)
		}
		return p.SetHTML(`<html><body><div class="jobs-easy-apply-modal"><p>Submitting…</p></div></body></html>`)
	})
}

func (h *harness) writeDefaultCV() string {
	path := filepath.Join(h.docs, "default_cv.pdf")
	require.NoError(h.t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	abs, err := filepath.Abs(path)
	require.NoError(h.t, err)
	return abs
}

func (h *harness) apply(dryRun bool) schemas.Outcome {
	return h.engine.Apply(context.Background(), Request{JobID: "job-1", UserID: "user-1", DryRun: dryRun})
}

func actionsOf(p *htmlpage.Page, kind string) []htmlpage.Action {
	var out []htmlpage.Action
	for _, a := range p.Actions() {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

func fills(p *htmlpage.Page) map[string]string {
	out := make(map[string]string)
	for _, a := range actionsOf(p, "fill") {
		out[a.Selector] = a.Value
	}
	return out
}

func clicked(p *htmlpage.Page, selector string) bool {
	for _, a := range actionsOf(p, "click") {
		if a.Selector == selector {
			return true
		}
	}
	return false
}

// -- Tests --

func TestApply_SubmitsAndRecords(t *testing.T) {
	h := newHarness(t)
	h.scriptHappyPath(true)
	cv := h.writeDefaultCV()

	out := h.apply(false)

	require.Equal(t, schemas.StatusSuccess, out.Status, out.Message)
	assert.Equal(t, messageSubmitted, out.Message)
	assert.Equal(t, []string{"Expected salary (EUR)"}, out.SkippedFields)
	assert.Equal(t, 2, out.Steps)
	assert.NotEmpty(t, out.AttemptID)

	assert.Equal(t, map[string]string{
		sel("first"): "Jane",
		sel("last"):  "Doe",
		sel("phone"): "+49123",
		sel("exp"):   "7",
	}, fills(h.page))
	assert.NotContains(t, fills(h.page), sel("salary"), "sensitive fields are never filled")

	selects := actionsOf(h.page, "select")
	require.Len(t, selects, 1)
	assert.Equal(t, htmlpage.Action{Kind: "select", Selector: sel("country"), Value: "Germany"}, selects[0])

	assert.True(t, clicked(h.page, sel("r-yes")))
	assert.False(t, clicked(h.page, sel("r-no")))
	assert.True(t, clicked(h.page, sel("terms")))
	assert.Equal(t, []string{cv}, h.page.Uploads(sel("resume")))
	assert.True(t, clicked(h.page, LinkedInSelectors().Dismiss))

	require.Len(t, h.repo.records, 1)
	rec := h.repo.records[0]
	assert.Equal(t, schemas.ApplicationRecord{
		UserID:         "user-1",
		JobID:          "job-1",
		Company:        "Acme GmbH",
		RoleTitle:      "Senior Go Engineer",
		Status:         schemas.ApplicationStatusApplied,
		MatchScore:     87,
		ScreenshotPath: filepath.Join(h.dir, "applications", "job-1", artifacts.ProofFile),
	}, rec)
	assert.Equal(t, rec.ScreenshotPath, out.ScreenshotPath)
	assert.FileExists(t, rec.ScreenshotPath)
	assert.FileExists(t, filepath.Join(h.dir, "applications", "job-1", "step_1.png"))
	assert.FileExists(t, filepath.Join(h.dir, "applications", "job-1", "step_2.png"))

	assert.Equal(t, 1, h.governor.State().AppliesToday)
}

type recordingMirror struct {
	paths []string
	uri   string
}

func (m *recordingMirror) Mirror(_ context.Context, jobID, localPath string) string {
	m.paths = append(m.paths, localPath)
	return m.uri
}

func TestApply_MirroredProofIsReported(t *testing.T) {
	h := newHarness(t)
	mirror := &recordingMirror{uri: "s3://audit/applications/job-1/" + artifacts.ProofFile}
	h.engine.mirror = mirror
	h.scriptHappyPath(true)

	out := h.apply(false)

	require.Equal(t, schemas.StatusSuccess, out.Status, out.Message)
	assert.Equal(t, []string{out.ScreenshotPath}, mirror.paths)
	assert.Equal(t, mirror.uri, out.ProofURI)

	failing := newHarness(t)
	failing.engine.mirror = &recordingMirror{}
	failing.scriptHappyPath(true)
	out = failing.apply(false)
	require.Equal(t, schemas.StatusSuccess, out.Status, "a failed upload never changes the outcome")
	assert.Empty(t, out.ProofURI)
}

func TestApply_WaitsStayWithinConfiguredBounds(t *testing.T) {
	h := newHarness(t)
	h.scriptHappyPath(true)

	out := h.apply(false)
	require.Equal(t, schemas.StatusSuccess, out.Status, out.Message)

	inRange := func(d, lo, hi time.Duration) bool { return d >= lo && d <= hi }
	for _, d := range h.sleeper.slept {
		ok := d == 3*time.Second || d == 2*time.Second || d == presencePollEvery ||
			inRange(d, 2500*time.Millisecond, 4*time.Second) ||
			inRange(d, 300*time.Millisecond, 800*time.Millisecond)
		assert.True(t, ok, "unexpected wait %s", d)
	}
	assert.Contains(t, h.sleeper.slept, 3*time.Second, "navigation settle")
	assert.Contains(t, h.sleeper.slept, 2*time.Second, "click settle")
}

func TestApply_ConfirmationTimeoutIsWarning(t *testing.T) {
	h := newHarness(t)
	h.scriptHappyPath(false)

	out := h.apply(false)

	assert.Equal(t, schemas.StatusWarning, out.Status)
	assert.Equal(t, messageUnconfirmed, out.Message)
	require.Len(t, h.repo.records, 1)
	assert.Equal(t, filepath.Join(h.dir, "applications", "job-1", "step_2.png"), h.repo.records[0].ScreenshotPath)
	assert.Equal(t, 1, h.governor.State().AppliesToday, "the click counts even without confirmation")
	assert.False(t, clicked(h.page, LinkedInSelectors().Dismiss))
}

func TestApply_DryRunNeverSubmits(t *testing.T) {
	h := newHarness(t)
	h.scriptHappyPath(true)
	for i := 0; i < 49; i++ {
		_, err := h.counter.Increment(context.Background(), fixedNow.Format("2006-01-02"))
		require.NoError(t, err)
	}

	out := h.apply(true)

	assert.Equal(t, schemas.StatusDryRunStop, out.Status)
	assert.False(t, clicked(h.page, LinkedInSelectors().Submit))
	assert.Empty(t, h.repo.records)
	assert.Equal(t, 49, h.governor.State().AppliesToday)
	assert.Equal(t, "Jane", fills(h.page)[sel("first")], "dry runs still fill")
}

func TestApply_DailyLimitStopsBeforeAnyAction(t *testing.T) {
	h := newHarness(t)
	h.scriptHappyPath(true)
	for i := 0; i < 50; i++ {
		_, err := h.counter.Increment(context.Background(), fixedNow.Format("2006-01-02"))
		require.NoError(t, err)
	}

	out := h.apply(false)

	assert.Equal(t, schemas.StatusError, out.Status)
	assert.Contains(t, out.Message, ratelimit.ErrDailyLimitExceeded.Error())
	assert.Empty(t, h.page.Actions())
	assert.Zero(t, h.session.pageCalls)
}

func TestApply_DomainGuard(t *testing.T) {
	for _, u := range []string{
		"https://www.indeed.com/viewjob?jk=1",
		"https://linkedin.com.evil.example/jobs/view/1",
		"ftp://www.linkedin.com/jobs/view/1",
	} {
		t.Run(u, func(t *testing.T) {
			h := newHarness(t)
			h.repo.job.URL = u

			out := h.apply(false)

			assert.Equal(t, schemas.StatusError, out.Status)
			assert.Contains(t, out.Message, ErrUnsupportedDomain.Error())
			assert.Zero(t, h.session.pageCalls, "the session manager is never consulted")
			assert.Zero(t, h.governor.State().ActionsInWindow)
		})
	}
}

func TestApply_SessionNotRunning(t *testing.T) {
	h := newHarness(t)
	h.session.running = false

	out := h.apply(false)

	assert.Equal(t, schemas.StatusError, out.Status)
	assert.Equal(t, ErrSessionNotRunning.Error(), out.Message)
	assert.Zero(t, h.session.pageCalls)
}

func TestApply_ApplyButtonMissing(t *testing.T) {
	h := newHarness(t)
	h.page.Route(jobURL, `<html><body><h1>External application</h1></body></html>`)

	out := h.apply(false)

	assert.Equal(t, schemas.StatusError, out.Status)
	assert.Equal(t, "Easy Apply button not found on page.", out.Message)
	assert.FileExists(t, filepath.Join(h.dir, "applications", "job-1", "error_button_not_found.png"))
}

func TestApply_ModalAlreadyOpen(t *testing.T) {
	h := newHarness(t)
	h.page.Route(jobURL, reviewStepHTML)

	out := h.apply(true)

	assert.Equal(t, schemas.StatusDryRunStop, out.Status)
	assert.Empty(t, actionsOf(h.page, "click"))
}

func TestApply_ModalNeverOpens(t *testing.T) {
	h := newHarness(t)
	h.engine.cfg.ModalTimeout = 2 * time.Second

	out := h.apply(false)

	assert.Equal(t, schemas.StatusError, out.Status)
	assert.Equal(t, messageModalNotOpened, out.Message)
	assert.True(t, clicked(h.page, LinkedInSelectors().ApplyTriggers[0]))
	assert.Empty(t, fills(h.page))
	polls := 0
	for _, d := range h.sleeper.slept {
		if d == presencePollEvery {
			polls++
		}
	}
	assert.Equal(t, 4, polls)
}

func TestApply_UnrecognizedStepIsSuccessWithCaveat(t *testing.T) {
	h := newHarness(t)
	h.page.OnClick(LinkedInSelectors().ApplyTriggers[0], func(p *htmlpage.Page) error {
		return p.SetHTML(`<html><body><div class="jobs-easy-apply-modal">
<label for="first">First name</label><input id="first" type="text">
<button aria-label="Upload a video answer">Record</button></div></body></html>`)
	})

	out := h.apply(false)

	assert.Equal(t, schemas.StatusSuccess, out.Status)
	assert.Equal(t, caveatMessage, out.Message)
	assert.Equal(t, "Jane", fills(h.page)[sel("first")])
	assert.Empty(t, h.repo.records)
}

func TestApply_StepCeiling(t *testing.T) {
	h := newHarness(t)
	h.engine.cfg.MaxSteps = 3
	s := LinkedInSelectors()
	h.page.OnClick(s.ApplyTriggers[0], func(p *htmlpage.Page) error { return p.SetHTML(questionStep("", false)) })
	h.page.OnClick(s.Next, func(p *htmlpage.Page) error { return p.SetHTML(questionStep("", false)) })

	out := h.apply(false)

	assert.Equal(t, schemas.StatusSuccess, out.Status)
	assert.Equal(t, caveatMessage, out.Message)
	assert.Equal(t, 3, out.Steps)
	assert.Len(t, actionsOf(h.page, "click"), 4, "apply button plus one next per step")
}

func TestApply_HumanFixesErrorAndAnswerIsLearned(t *testing.T) {
	h := newHarness(t)
	s := LinkedInSelectors()
	nextClicks := 0
	h.page.OnClick(s.ApplyTriggers[0], func(p *htmlpage.Page) error { return p.SetHTML(questionStep("", false)) })
	h.page.OnClick(s.Next, func(p *htmlpage.Page) error {
		nextClicks++
		if nextClicks == 1 {
			return p.SetHTML(questionStep("", true))
		}
		return p.SetHTML(reviewStepHTML)
	})
	fixed := false
	h.sleeper.onWait = func(d time.Duration) {
		if d == pollInterval && !fixed {
			fixed = true
			// The user types an answer and the validation message clears.
			require.NoError(t, h.page.SetHTML(questionStep("A friend", false)))
		}
	}

	out := h.apply(true)

	assert.Equal(t, schemas.StatusDryRunStop, out.Status, out.Message)
	require.Len(t, h.repo.upserts, 1)
	assert.Equal(t, schemas.BankEntry{
		UserID:   "user-1",
		Question: "How did you hear about us?",
		Answer:   "A friend",
		Category: schemas.CategoryGeneral,
	}, h.repo.upserts[0])
	assert.Equal(t, 2, nextClicks)
}

func TestApply_HumanWaitTimesOut(t *testing.T) {
	h := newHarness(t)
	s := LinkedInSelectors()
	h.page.OnClick(s.ApplyTriggers[0], func(p *htmlpage.Page) error { return p.SetHTML(questionStep("", false)) })
	h.page.OnClick(s.Next, func(p *htmlpage.Page) error { return p.SetHTML(questionStep("", true)) })

	out := h.apply(false)

	assert.Equal(t, schemas.StatusError, out.Status)
	assert.Equal(t, messageHumanWaitTimeout, out.Message)
	assert.Empty(t, h.repo.upserts)

	polls := 0
	for _, d := range h.sleeper.slept {
		if d == pollInterval {
			polls++
		}
	}
	assert.Equal(t, 4, polls)
}

func TestApply_HumanWaitChecksAtLeastOnce(t *testing.T) {
	h := newHarness(t)
	h.engine.cfg.HumanWaitTimeout = 6 * time.Second
	h.engine.cfg.HumanPollInterval = 10 * time.Second
	s := LinkedInSelectors()
	h.page.OnClick(s.ApplyTriggers[0], func(p *htmlpage.Page) error { return p.SetHTML(questionStep("", false)) })
	h.page.OnClick(s.Next, func(p *htmlpage.Page) error { return p.SetHTML(questionStep("", true)) })

	out := h.apply(false)

	assert.Equal(t, messageHumanWaitTimeout, out.Message)
	polls := 0
	for _, d := range h.sleeper.slept {
		if d == 10*time.Second {
			polls++
		}
	}
	assert.Equal(t, 1, polls)
}

func TestApply_RequestStopCancels(t *testing.T) {
	h := newHarness(t)
	s := LinkedInSelectors()
	h.page.OnClick(s.ApplyTriggers[0], func(p *htmlpage.Page) error { return p.SetHTML(questionStep("", false)) })
	h.page.OnClick(s.Next, func(p *htmlpage.Page) error { return p.SetHTML(questionStep("", true)) })
	h.sleeper.onWait = func(d time.Duration) {
		if d == pollInterval {
			h.state.RequestStop()
		}
	}

	out := h.apply(false)

	assert.Equal(t, schemas.StatusCancelled, out.Status)
	assert.Equal(t, ErrStopRequested.Error(), out.Message)
	assert.Empty(t, h.repo.records)
	assert.True(t, h.session.IsRunning(), "request_stop leaves the browser open")
}

func TestApply_StopFlagResetsForNextAttempt(t *testing.T) {
	h := newHarness(t)
	h.scriptHappyPath(true)
	h.state.RequestStop()

	out := h.apply(true)
	assert.Equal(t, schemas.StatusDryRunStop, out.Status)
}

func TestApply_ContextCancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := h.engine.Apply(ctx, Request{JobID: "job-1", UserID: "user-1"})

	assert.Equal(t, schemas.StatusCancelled, out.Status)
	assert.Empty(t, h.page.Actions())
}

func TestApply_RejectsConcurrentAttempt(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.engine.slot.TryAcquire(1))

	out := h.apply(false)
	h.engine.slot.Release(1)

	assert.Equal(t, schemas.StatusError, out.Status)
	assert.Equal(t, ErrAttemptInProgress.Error(), out.Message)
	assert.Zero(t, h.session.pageCalls)
}

func TestApply_RecoversFromPanic(t *testing.T) {
	h := newHarness(t)
	h.repo.onGet = func() { panic("boom") }

	out := h.apply(false)

	assert.Equal(t, schemas.StatusError, out.Status)
	assert.Contains(t, out.Message, "boom")
	assert.Equal(t, 1, h.logs.FilterMessage("Attempt panicked.").Len())

	// The slot was released.
	h.repo.onGet = nil
	h.scriptHappyPath(true)
	assert.Equal(t, schemas.StatusDryRunStop, h.apply(true).Status)
}

func TestProbe(t *testing.T) {
	h := newHarness(t)

	res, err := h.engine.Probe(context.Background(), "user-1", "job-1")
	require.NoError(t, err)
	assert.True(t, res.EasyApply)
	assert.Equal(t, LinkedInSelectors().ApplyTriggers[0], res.Selector)
	assert.Empty(t, actionsOf(h.page, "click"), "probing never clicks")

	h.page.Route(jobURL, `<html><body><a href="https://acme.example/careers">Apply on company site</a></body></html>`)
	require.NoError(t, h.page.Navigate(context.Background(), "about:blank"))
	res, err = h.engine.Probe(context.Background(), "user-1", "job-1")
	require.NoError(t, err)
	assert.False(t, res.EasyApply)

	h.repo.job.URL = "https://jobs.example.com/1"
	_, err = h.engine.Probe(context.Background(), "user-1", "job-1")
	assert.ErrorIs(t, err, ErrUnsupportedDomain)
}

func TestEngineState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.state.RequestStop()
	assert.True(t, h.state.StopRequested())

	require.NoError(t, h.state.Launch(ctx))
	assert.False(t, h.state.StopRequested(), "launch clears a previous stop")
	assert.True(t, h.state.Running())

	require.NoError(t, h.state.Stop(ctx))
	assert.True(t, h.state.StopRequested())
	assert.False(t, h.state.Running())

	_, err := h.state.page(ctx)
	assert.ErrorIs(t, err, ErrSessionNotRunning)
}
