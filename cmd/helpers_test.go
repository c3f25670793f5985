// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/easyapply/api/schemas"
	"github.com/xkilldash9x/easyapply/internal/answers"
	"github.com/xkilldash9x/easyapply/internal/browser"
	"github.com/xkilldash9x/easyapply/internal/browser/htmlpage"
	"github.com/xkilldash9x/easyapply/internal/browser/humanoid"
	"github.com/xkilldash9x/easyapply/internal/config"
	"github.com/xkilldash9x/easyapply/internal/engine"
	"github.com/xkilldash9x/easyapply/internal/ratelimit"
	"github.com/xkilldash9x/easyapply/internal/secrets"
	"github.com/xkilldash9x/easyapply/internal/service"
	"github.com/xkilldash9x/easyapply/internal/store"
)

const testJobURL = "https://www.linkedin.com/jobs/view/777"

const testJobPage = `<html><body>
<h1>Platform Engineer</h1>
<button data-view-name="job-apply-button" aria-label="Easy Apply to Initech">Easy Apply</button>
</body></html>`

type noSleep struct{}

func (noSleep) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

type fakeSession struct {
	mu      sync.Mutex
	page    browser.Page
	running bool
	stops   int
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
	f.stops++
	return nil
}

func (f *fakeSession) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeSession) Page(context.Context) (browser.Page, error) { return f.page, nil }

// fakeStore backs both the engine repository and the bank commands.
type fakeStore struct {
	mu      sync.Mutex
	job     schemas.Job
	profile schemas.Profile
	bank    map[string]schemas.BankEntry
	records []schemas.ApplicationRecord
	closed  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		job: schemas.Job{ID: "job-1", UserID: "user-1", URL: testJobURL, Company: "Initech", Title: "Platform Engineer"},
		profile: schemas.Profile{
			UserID:   "user-1",
			FullName: "Ada Lovelace",
			Email:    "ada@example.com",
			Phone:    "+44 20 7946 0000",
		},
		bank: map[string]schemas.BankEntry{},
	}
}

func (s *fakeStore) GetJob(context.Context, string, string) (*schemas.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.job
	return &j, nil
}

func (s *fakeStore) GetProfile(context.Context, string) (*schemas.Profile, error) {
	p := s.profile
	return &p, nil
}

func (s *fakeStore) LoadQuestionBank(_ context.Context, userID string) ([]schemas.BankEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schemas.BankEntry
	for _, e := range s.bank {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) UpsertAnswer(_ context.Context, e schemas.BankEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bank[e.UserID+"|"+answers.Normalize(e.Question)] = e
	return nil
}

func (s *fakeStore) RecordApplication(_ context.Context, rec schemas.ApplicationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeStore) ListUnencryptedSensitive(context.Context) ([]schemas.BankEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schemas.BankEntry
	for _, e := range s.bank {
		if e.Category.RequiresEncryption() && !secrets.IsCiphertext(e.Answer) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateAnswerCiphertext(_ context.Context, userID, question, ciphertext string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "|" + answers.Normalize(question)
	e, ok := s.bank[key]
	if !ok {
		return store.ErrNotFound
	}
	e.Answer = ciphertext
	s.bank[key] = e
	return nil
}

func (s *fakeStore) entry(userID, question string) (schemas.BankEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.bank[userID+"|"+answers.Normalize(question)]
	return e, ok
}

// fakeFactory hands out a prebuilt component graph.
type fakeFactory struct {
	components *service.Components
	err        error
	calls      int
}

func (f *fakeFactory) Create(context.Context, config.Interface, *zap.Logger) (*service.Components, error) {
	f.calls++
	return f.components, f.err
}

type testEnv struct {
	app     *App
	cfg     *config.Config
	store   *fakeStore
	session *fakeSession
	page    *htmlpage.Page
	factory *fakeFactory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	cfg := config.NewDefaultConfig()
	cfg.AuthCfg.Mode = config.AuthModeUnverified
	cfg.DatabaseCfg.URL = "postgres://localhost/easyapply"
	cfg.ArtifactsCfg.Dir = t.TempDir()
	cfg.EngineCfg.DocumentsDir = t.TempDir()

	page, err := htmlpage.New(testJobURL, testJobPage)
	require.NoError(t, err)

	st := newFakeStore()
	sess := &fakeSession{page: page}
	noWait := func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	gov := ratelimit.NewGovernor(ratelimit.DefaultLimits(), ratelimit.NewMemoryCounter(), logger, ratelimit.WithSleeper(noWait))
	state := engine.NewEngineState(sess, gov, logger)
	eng := engine.New(cfg.Engine(), engine.Dependencies{
		State:    state,
		Repo:     st,
		Humanoid: humanoid.NewTestHumanoid(noSleep{}, 7),
		Logger:   logger,
	})

	factory := &fakeFactory{components: &service.Components{Governor: gov, State: state, Engine: eng}}
	app := &App{
		factory: factory,
		openStore: func(context.Context, config.DatabaseConfig, *zap.Logger) (bankStore, func(), error) {
			return st, func() { st.closed++ }, nil
		},
	}
	app.setConfig(cfg)
	return &testEnv{app: app, cfg: cfg, store: st, session: sess, page: page, factory: factory}
}

// run executes one command line against the environment's App.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(e.app)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}
