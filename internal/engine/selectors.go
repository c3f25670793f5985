// internal/engine/selectors.go
package engine

import (
	"fmt"

	"github.com/xkilldash9x/easyapply/internal/browser/dom"
)

// Selectors are the XPath expressions the state machine looks for. They track
// LinkedIn's markup and change with it, so they are data, not code.
type Selectors struct {
	// ApplyTriggers are tried in order, most specific first.
	ApplyTriggers []string
	Modal         string
	Submit        string
	Next          string
	InlineError   string
	Confirmation  string
	Dismiss       string
}

// LinkedInSelectors returns the selectors for the current Easy Apply markup.
func LinkedInSelectors() Selectors {
	return Selectors{
		ApplyTriggers: []string{
			`//button[@data-view-name='job-apply-button']`,
			`//*[contains(@class,'jobs-apply-button--top-card')]//button[contains(@aria-label,'Easy Apply')]`,
			`//*[contains(@class,'jobs-apply-button--top-card')]//button[contains(., 'Easy Apply')]`,
			`//button[contains(@class,'jobs-apply-button') and contains(@aria-label,'Easy Apply')]`,
			`//button[contains(@class,'jobs-apply-button') and contains(., 'Easy Apply')]`,
			`//*[contains(@class,'jobs-s-apply')]//button[contains(@aria-label,'Easy Apply')]`,
			`//*[contains(@class,'jobs-s-apply')]//button[contains(., 'Easy Apply')]`,
			// "Apply to <Company>"
			`//button[contains(@aria-label,'Apply to')]`,
			`//button[contains(., 'Apply')]`,
		},
		Modal:       `//div[contains(@class,'jobs-easy-apply-modal')]`,
		Submit:      `//button[@aria-label='Submit application']`,
		Next:        `//button[contains(@aria-label,'Next') or contains(@aria-label,'Review')]`,
		InlineError: `//*[contains(@class,'artdeco-inline-feedback--error')]`,
		Confirmation: `//h3[contains(., 'Application submitted')]` +
			` | //*[contains(@class,'artdeco-modal__header') and contains(., 'Application submitted')]` +
			` | //*[@data-test-modal-id='postApplyModal']`,
		Dismiss: `//button[@aria-label='Dismiss']`,
	}
}

// Validate compiles every expression.
func (s Selectors) Validate() error {
	if len(s.ApplyTriggers) == 0 {
		return fmt.Errorf("no apply triggers")
	}
	named := map[string]string{
		"modal":        s.Modal,
		"submit":       s.Submit,
		"next":         s.Next,
		"inline_error": s.InlineError,
		"confirmation": s.Confirmation,
		"dismiss":      s.Dismiss,
	}
	for i, t := range s.ApplyTriggers {
		named[fmt.Sprintf("apply_trigger[%d]", i)] = t
	}
	for name, expr := range named {
		if _, err := dom.Compile(expr); err != nil {
			return fmt.Errorf("selector %s: %w", name, err)
		}
	}
	return nil
}
