// internal/engine/fill.go
package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/xkilldash9x/easyapply/internal/answers"
	"github.com/xkilldash9x/easyapply/internal/browser"
	"github.com/xkilldash9x/easyapply/internal/form"
)

var consentWords = []string{"terms", "agree", "acknowledge"}

// fill resolves and fills every field of the current step. Missing elements
// and unknown options are logged and skipped; anything else aborts the step.
func (a *attempt) fill(ctx context.Context, fields []form.Field) error {
	for _, f := range fields {
		acted, err := a.fillField(ctx, f)
		if err != nil {
			if errors.Is(err, browser.ErrElementNotFound) || errors.Is(err, browser.ErrOptionNotFound) {
				a.logger.Debug("Could not fill field.", zap.String("label", f.Label), zap.Error(err))
				continue
			}
			return err
		}
		if acted {
			if err := a.e.humanoid.Pause(ctx, a.e.cfg.FieldDelayMin, a.e.cfg.FieldDelayMax); err != nil {
				return err
			}
		}
	}
	return nil
}

// fillField reports whether it touched the page.
func (a *attempt) fillField(ctx context.Context, f form.Field) (bool, error) {
	if f.Kind == form.KindFile {
		return a.fillFile(ctx, f)
	}
	if !f.Labeled() {
		return false, nil
	}

	if f.Kind == form.KindCheckbox {
		return a.fillCheckbox(ctx, f)
	}

	ans, ok := a.resolver.Resolve(f.Label)
	if !ok {
		return false, nil
	}
	a.logger.Debug("Resolved field.",
		zap.String("label", f.Label),
		zap.String("source", string(ans.Source)),
		zap.Int("score", ans.Score),
	)

	switch f.Kind {
	case form.KindText:
		if f.Value == ans.Value {
			return false, nil
		}
		return true, a.page.Fill(ctx, f.Selector, ans.Value)
	case form.KindSelect:
		if strings.EqualFold(f.Value, ans.Value) {
			return false, nil
		}
		return true, a.page.SelectOption(ctx, f.Selector, ans.Value)
	case form.KindRadio:
		opt, found := matchOption(f.Options, ans.Value)
		if !found {
			a.logger.Debug("No radio option matches the answer.", zap.String("label", f.Label))
			return false, nil
		}
		if strings.EqualFold(f.Value, opt.Label) {
			return false, nil
		}
		return true, a.page.Click(ctx, opt.Selector)
	}
	return false, nil
}

// matchOption prefers an option whose label equals the answer, then one
// whose label contains the answer as whole words or is contained in it.
func matchOption(opts []form.Option, answer string) (form.Option, bool) {
	want := answers.Normalize(answer)
	if want == "" {
		return form.Option{}, false
	}
	for _, o := range opts {
		if answers.Normalize(o.Label) == want {
			return o, true
		}
	}
	padded := " " + want + " "
	for _, o := range opts {
		label := answers.Normalize(o.Label)
		if label == "" {
			continue
		}
		if strings.Contains(" "+label+" ", padded) || strings.Contains(padded, " "+label+" ") {
			return o, true
		}
	}
	return form.Option{}, false
}

// fillCheckbox ticks consent boxes and boxes whose resolved answer is yes.
func (a *attempt) fillCheckbox(ctx context.Context, f form.Field) (bool, error) {
	if f.Value == form.CheckedValue {
		return false, nil
	}
	label := strings.ToLower(f.Label)
	tick := false
	for _, w := range consentWords {
		if strings.Contains(label, w) {
			tick = true
			break
		}
	}
	if !tick {
		if ans, ok := a.resolver.Resolve(f.Label); ok && affirmative(ans.Value) {
			tick = true
		}
	}
	if !tick {
		return false, nil
	}
	return true, a.page.Click(ctx, f.Selector)
}

func affirmative(v string) bool {
	switch answers.Normalize(v) {
	case "yes", "y", "true", "1", "checked", "agree", "i agree":
		return true
	}
	return false
}

// fillFile uploads the tailored CV for this company when one exists, else
// the default CV. Non-resume uploads are left alone.
func (a *attempt) fillFile(ctx context.Context, f form.Field) (bool, error) {
	if f.Value != "" || !looksLikeResume(f) {
		return false, nil
	}
	path := a.resumePath()
	if path == "" {
		a.logger.Info("No CV on disk to upload.", zap.String("documents_dir", a.e.cfg.DocumentsDir))
		return false, nil
	}
	a.logger.Info("Uploading CV.", zap.String("path", path))
	return true, a.page.SetFiles(ctx, f.Selector, []string{path})
}

func looksLikeResume(f form.Field) bool {
	label := strings.ToLower(f.Label)
	accept := strings.ToLower(f.Accept)
	return strings.Contains(label, "resume") || strings.Contains(label, "cv") ||
		strings.Contains(accept, "pdf") || strings.Contains(accept, "doc")
}

func (a *attempt) resumePath() string {
	dir := a.e.cfg.DocumentsDir
	candidates := []string{
		filepath.Join(dir, "applications", SafeCompanyName(a.job.Company), "tailored_cv.pdf"),
		filepath.Join(dir, "default_cv.pdf"),
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			abs, err := filepath.Abs(p)
			if err != nil {
				return p
			}
			return abs
		}
	}
	return ""
}

// SafeCompanyName keeps letters, digits and spaces, the directory naming
// used for tailored documents.
func SafeCompanyName(company string) string {
	var b strings.Builder
	for _, r := range company {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.TrimRight(b.String(), " ")
}
