// internal/browser/session/chrome_page.go
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/easyapply/internal/browser"
	"github.com/xkilldash9x/easyapply/internal/browser/humanoid"
)

// findFn resolves an XPath to its first node inside page scripts.
const findFn = `const __find = (xp) => document.evaluate(xp, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;`

// snapshotScript mirrors live control state into attributes, marks controls
// the user cannot see, and serializes the document.
const snapshotScript = `(() => {
  const HIDDEN = 'data-easyapply-hidden';
  for (const el of document.querySelectorAll('input, textarea, select')) {
    const type = (el.getAttribute('type') || '').toLowerCase();
    if (el.tagName === 'TEXTAREA') {
      el.textContent = el.value;
    } else if (el.tagName === 'SELECT') {
      for (const o of el.options) {
        if (o.selected) { o.setAttribute('selected', 'selected'); } else { o.removeAttribute('selected'); }
      }
    } else if (type === 'checkbox' || type === 'radio') {
      if (el.checked) { el.setAttribute('checked', 'checked'); } else { el.removeAttribute('checked'); }
    } else if (type === 'file') {
      if (el.files && el.files.length) { el.setAttribute('value', el.files[0].name); }
    } else {
      el.setAttribute('value', el.value);
    }
    const visible = !!(el.offsetWidth || el.offsetHeight || el.getClientRects().length);
    if (!visible && type !== 'file' && type !== 'checkbox' && type !== 'radio') {
      el.setAttribute(HIDDEN, 'true');
    } else {
      el.removeAttribute(HIDDEN);
    }
  }
  return document.documentElement.outerHTML;
})()`

// ChromePage drives one browser tab.
type ChromePage struct {
	tabCtx   context.Context
	humanoid *humanoid.Humanoid
	logger   *zap.Logger
	// mouse is where the last pointer move ended.
	mouse humanoid.Vector2D
}

var _ browser.Page = (*ChromePage)(nil)

func newChromePage(tabCtx context.Context, h *humanoid.Humanoid, logger *zap.Logger) *ChromePage {
	return &ChromePage{tabCtx: tabCtx, humanoid: h, logger: logger.Named("page")}
}

func (p *ChromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(p.tabCtx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func jsString(s string) string {
	b, err := jsoniter.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

func (p *ChromePage) URL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return url, nil
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *ChromePage) Exists(ctx context.Context, selector string) (bool, error) {
	var ok bool
	script := fmt.Sprintf(`(() => { %s return __find(%s) !== null; })()`, findFn, jsString(selector))
	if err := p.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return false, fmt.Errorf("failed to query '%s': %w", selector, err)
	}
	return ok, nil
}

// Click glides the pointer to the element and clicks it. Elements without a
// box, such as LinkedIn's visually hidden radio inputs, get a DOM click.
func (p *ChromePage) Click(ctx context.Context, selector string) error {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil {
		return fmt.Errorf("failed to locate '%s': %w", selector, err)
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w: '%s'", browser.ErrElementNotFound, selector)
	}

	if target, ok := p.center(ctx, nodes[0]); ok {
		pos, err := p.humanoid.MoveTo(ctx, mouseMover{page: p}, p.mouse, target)
		p.mouse = pos
		if err == nil {
			err = p.run(ctx, chromedp.MouseClickXY(target.X, target.Y))
		}
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Debug("Mouse click failed, using DOM click.", zap.String("selector", selector), zap.Error(err))
	}

	var clicked bool
	script := fmt.Sprintf(`(() => { %s const el = __find(%s); if (!el) return false; el.click(); return true; })()`, findFn, jsString(selector))
	if err := p.run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return fmt.Errorf("failed to click '%s': %w", selector, err)
	}
	if !clicked {
		return fmt.Errorf("%w: '%s'", browser.ErrElementNotFound, selector)
	}
	return nil
}

// center scrolls node into view and returns the middle of its first content quad.
func (p *ChromePage) center(ctx context.Context, node *cdp.Node) (humanoid.Vector2D, bool) {
	var quads []dom.Quad
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := dom.ScrollIntoViewIfNeeded().WithNodeID(node.NodeID).Do(ctx); err != nil {
			return err
		}
		var err error
		quads, err = dom.GetContentQuads().WithNodeID(node.NodeID).Do(ctx)
		return err
	}))
	if err != nil || len(quads) == 0 || len(quads[0]) < 8 {
		return humanoid.Vector2D{}, false
	}
	q := quads[0]
	return humanoid.Vector2D{X: (q[0] + q[2] + q[4] + q[6]) / 4, Y: (q[1] + q[3] + q[5] + q[7]) / 4}, true
}

type mouseMover struct {
	page *ChromePage
}

func (m mouseMover) MoveMouse(ctx context.Context, x, y float64) error {
	return m.page.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
	}))
}

// Fill focuses the control, clears it and types value with human cadence.
func (p *ChromePage) Fill(ctx context.Context, selector, value string) error {
	var found bool
	script := fmt.Sprintf(`(() => { %s
  const el = __find(%s);
  if (!el) return false;
  el.focus();
  el.value = '';
  el.dispatchEvent(new Event('input', { bubbles: true }));
  return true;
})()`, findFn, jsString(selector))
	if err := p.run(ctx, chromedp.Evaluate(script, &found)); err != nil {
		return fmt.Errorf("failed to focus '%s': %w", selector, err)
	}
	if !found {
		return fmt.Errorf("%w: '%s'", browser.ErrElementNotFound, selector)
	}

	if err := p.humanoid.Type(ctx, keySender{page: p}, value); err != nil {
		return fmt.Errorf("failed to type into '%s': %w", selector, err)
	}

	blur := fmt.Sprintf(`(() => { %s const el = __find(%s); if (el) { el.dispatchEvent(new Event('change', { bubbles: true })); el.blur(); } return true; })()`, findFn, jsString(selector))
	var ignored bool
	return p.run(ctx, chromedp.Evaluate(blur, &ignored))
}

// keySender types into the focused element of a page.
type keySender struct {
	page *ChromePage
}

func (k keySender) SendKeys(ctx context.Context, keys string) error {
	return k.page.run(ctx, chromedp.KeyEvent(keys))
}

func (p *ChromePage) SelectOption(ctx context.Context, selector, option string) error {
	var result string
	script := fmt.Sprintf(`(() => { %s
  const el = __find(%s);
  if (!el) return 'missing';
  const want = %s.trim().toLowerCase();
  for (const o of el.options) {
    if (o.text.trim().toLowerCase() === want || o.value === %s) {
      el.value = o.value;
      el.dispatchEvent(new Event('input', { bubbles: true }));
      el.dispatchEvent(new Event('change', { bubbles: true }));
      return 'ok';
    }
  }
  return 'no-option';
})()`, findFn, jsString(selector), jsString(option), jsString(option))
	if err := p.run(ctx, chromedp.Evaluate(script, &result)); err != nil {
		return fmt.Errorf("failed to select in '%s': %w", selector, err)
	}
	switch result {
	case "ok":
		return nil
	case "missing":
		return fmt.Errorf("%w: '%s'", browser.ErrElementNotFound, selector)
	default:
		return fmt.Errorf("%w: '%s' in '%s'", browser.ErrOptionNotFound, option, selector)
	}
}

func (p *ChromePage) SetFiles(ctx context.Context, selector string, paths []string) error {
	ok, err := p.Exists(ctx, selector)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: '%s'", browser.ErrElementNotFound, selector)
	}
	if err := p.run(ctx, chromedp.SetUploadFiles(selector, paths, chromedp.BySearch)); err != nil {
		return fmt.Errorf("failed to set files on '%s': %w", selector, err)
	}
	return nil
}

func (p *ChromePage) Snapshot(ctx context.Context) (string, error) {
	var markup string
	if err := p.run(ctx, chromedp.Evaluate(snapshotScript, &markup)); err != nil {
		return "", fmt.Errorf("failed to snapshot page: %w", err)
	}
	return markup, nil
}

func (p *ChromePage) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	return nil
}
