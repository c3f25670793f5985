// internal/browser/htmlpage/page.go
package htmlpage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/easyapply/internal/browser"
	"github.com/xkilldash9x/easyapply/internal/browser/dom"
)

// Handler reacts to a click. It runs without the page lock held, so it may
// call any Page method, including SetHTML.
type Handler func(p *Page) error

// Action is one recorded page operation.
type Action struct {
	Kind     string
	Selector string
	Value    string
}

// Page is an in-memory browser.Page backed by a parsed HTML document. Control
// state lives in attributes, so Snapshot reflects every Fill and Click.
type Page struct {
	mu       sync.Mutex
	doc      *html.Node
	url      string
	routes   map[string]string
	handlers map[string]Handler
	uploads  map[string][]string
	actions  []Action
}

var _ browser.Page = (*Page)(nil)

// New returns a page showing markup at url.
func New(url, markup string) (*Page, error) {
	p := &Page{
		url:      url,
		routes:   make(map[string]string),
		handlers: make(map[string]Handler),
		uploads:  make(map[string][]string),
	}
	if err := p.SetHTML(markup); err != nil {
		return nil, err
	}
	return p, nil
}

// Route registers the document Navigate loads for url.
func (p *Page) Route(url, markup string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[url] = markup
}

// OnClick registers a handler run after a click on selector. The selector is
// matched literally against the one passed to Click.
func (p *Page) OnClick(selector string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[selector] = h
}

// SetHTML replaces the current document.
func (p *Page) SetHTML(markup string) error {
	doc, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}
	p.mu.Lock()
	p.doc = doc
	p.mu.Unlock()
	return nil
}

// Actions returns a copy of the operations performed so far.
func (p *Page) Actions() []Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Action(nil), p.actions...)
}

// Uploads returns the files set on selector.
func (p *Page) Uploads(selector string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.uploads[selector]...)
}

// Value returns the current value of the control at selector.
func (p *Page) Value(selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.find(selector)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(el.Data, "textarea") {
		return htmlquery.InnerText(el), nil
	}
	if strings.EqualFold(el.Data, "select") {
		if opt := htmlquery.FindOne(el, ".//option[@selected]"); opt != nil {
			return dom.Text(opt), nil
		}
		return "", nil
	}
	return dom.Attr(el, "value"), nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.actions = append(p.actions, Action{Kind: "navigate", Value: url})
	markup, ok := p.routes[url]
	p.url = url
	p.mu.Unlock()

	if !ok {
		return nil
	}
	return p.SetHTML(markup)
}

func (p *Page) Exists(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := htmlquery.Query(p.doc, selector)
	if err != nil {
		return false, fmt.Errorf("invalid XPath selector '%s': %w", selector, err)
	}
	return n != nil, nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	el, err := p.find(selector)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.actions = append(p.actions, Action{Kind: "click", Selector: selector})
	p.applyClick(el)
	h := p.handlers[selector]
	p.mu.Unlock()

	if h != nil {
		return h(p)
	}
	return nil
}

func (p *Page) Fill(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	el, err := p.find(selector)
	if err != nil {
		return err
	}
	switch strings.ToLower(el.Data) {
	case "textarea":
		dom.SetTextContent(el, value)
	case "input":
		dom.SetAttr(el, "value", value)
	default:
		return fmt.Errorf("element '%s' is not a supported text input type", selector)
	}
	p.actions = append(p.actions, Action{Kind: "fill", Selector: selector, Value: value})
	return nil
}

func (p *Page) SelectOption(ctx context.Context, selector, option string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	el, err := p.find(selector)
	if err != nil {
		return err
	}
	if !strings.EqualFold(el.Data, "select") {
		return fmt.Errorf("element '%s' is not a select element", selector)
	}

	var match *html.Node
	options := htmlquery.Find(el, ".//option")
	for _, opt := range options {
		if strings.EqualFold(dom.Text(opt), strings.TrimSpace(option)) || dom.Attr(opt, "value") == option {
			match = opt
			break
		}
	}
	if match == nil {
		return fmt.Errorf("%w: '%s' in '%s'", browser.ErrOptionNotFound, option, selector)
	}
	for _, opt := range options {
		if opt == match {
			dom.SetAttr(opt, "selected", "selected")
		} else {
			dom.RemoveAttr(opt, "selected")
		}
	}
	p.actions = append(p.actions, Action{Kind: "select", Selector: selector, Value: option})
	return nil
}

func (p *Page) SetFiles(ctx context.Context, selector string, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	el, err := p.find(selector)
	if err != nil {
		return err
	}
	if !strings.EqualFold(dom.Attr(el, "type"), "file") {
		return fmt.Errorf("element '%s' is not a file input", selector)
	}
	p.uploads[selector] = append([]string(nil), paths...)
	if len(paths) > 0 {
		dom.SetAttr(el, "value", filepath.Base(paths[0]))
	}
	p.actions = append(p.actions, Action{Kind: "upload", Selector: selector, Value: strings.Join(paths, ",")})
	return nil
}

func (p *Page) Snapshot(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, p.doc); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return buf.String(), nil
}

// Screenshot writes a blank single-pixel PNG.
func (p *Page) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create screenshot file: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		return fmt.Errorf("failed to encode screenshot: %w", err)
	}

	p.mu.Lock()
	p.actions = append(p.actions, Action{Kind: "screenshot", Value: path})
	p.mu.Unlock()
	return nil
}

// find must be called with mu held.
func (p *Page) find(selector string) (*html.Node, error) {
	if p.doc == nil {
		return nil, fmt.Errorf("%w: DOM is empty, cannot find '%s'", browser.ErrElementNotFound, selector)
	}
	el, err := htmlquery.Query(p.doc, selector)
	if err != nil {
		return nil, fmt.Errorf("invalid XPath selector '%s': %w", selector, err)
	}
	if el == nil {
		return nil, fmt.Errorf("%w: '%s'", browser.ErrElementNotFound, selector)
	}
	return el, nil
}

// applyClick mirrors the default activation behavior of form controls. Must
// be called with mu held.
func (p *Page) applyClick(el *html.Node) {
	if strings.EqualFold(el.Data, "label") {
		id := dom.Attr(el, "for")
		if id == "" {
			if nested := htmlquery.FindOne(el, ".//input"); nested != nil {
				p.applyClick(nested)
			}
			return
		}
		if target := htmlquery.FindOne(p.doc, "//*[@id="+dom.Literal(id)+"]"); target != nil {
			p.applyClick(target)
		}
		return
	}
	if !strings.EqualFold(el.Data, "input") {
		return
	}

	switch strings.ToLower(dom.Attr(el, "type")) {
	case "checkbox":
		if dom.HasAttr(el, "checked") {
			dom.RemoveAttr(el, "checked")
		} else {
			dom.SetAttr(el, "checked", "checked")
		}
	case "radio":
		selectRadio(el)
	}
}

// selectRadio checks el and clears the rest of its named group.
func selectRadio(el *html.Node) {
	name := dom.Attr(el, "name")
	if name == "" {
		dom.SetAttr(el, "checked", "checked")
		return
	}

	root := el
	for cur := el.Parent; cur != nil; cur = cur.Parent {
		root = cur
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, "form") {
			break
		}
	}

	for _, radio := range htmlquery.Find(root, ".//input[@type='radio' and @name="+dom.Literal(name)+"]") {
		if radio == el {
			dom.SetAttr(radio, "checked", "checked")
		} else {
			dom.RemoveAttr(radio, "checked")
		}
	}
}
