// internal/browser/page.go
package browser

import (
	"context"
	"errors"
)

var (
	// ErrElementNotFound is returned when a selector matches nothing.
	ErrElementNotFound = errors.New("element not found")
	// ErrOptionNotFound is returned when a select has no option with the requested label.
	ErrOptionNotFound = errors.New("option not found")
)

// Page is the surface the application engine drives. Selectors are XPath
// expressions. Implementations must be safe for sequential use by a single
// caller; concurrent callers are not expected.
type Page interface {
	// URL returns the address of the current document.
	URL(ctx context.Context) (string, error)
	// Navigate loads url and returns once the document is ready.
	Navigate(ctx context.Context, url string) error
	// Exists reports whether at least one element matches selector.
	Exists(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	// Fill replaces the value of a text input or textarea.
	Fill(ctx context.Context, selector, value string) error
	// SelectOption picks the option whose visible text or value matches option.
	SelectOption(ctx context.Context, selector, option string) error
	SetFiles(ctx context.Context, selector string, paths []string) error
	// Snapshot serializes the current DOM, including live control state.
	Snapshot(ctx context.Context) (string, error)
	// Screenshot writes a PNG of the viewport to path.
	Screenshot(ctx context.Context, path string) error
}
