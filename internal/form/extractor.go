// internal/form/extractor.go
package form

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/easyapply/internal/browser/dom"
)

// ModalScope selects the Easy Apply dialog.
const ModalScope = "//div[contains(@class,'jobs-easy-apply-modal')]"

// CheckedValue is the value reported for a checked checkbox.
const CheckedValue = "Yes"

var textInputTypes = map[string]bool{
	"":       true,
	"text":   true,
	"email":  true,
	"tel":    true,
	"number": true,
	"url":    true,
	"search": true,
	"date":   true,
}

// Extract returns the visible controls of the Easy Apply modal, or of the
// whole document when no modal is open, in document order.
func Extract(markup string) ([]Field, error) {
	return ExtractWithin(markup, ModalScope)
}

// ExtractWithin is Extract with a custom scope XPath. An empty scope, or one
// that matches nothing, means the whole document.
func ExtractWithin(markup, scope string) ([]Field, error) {
	doc, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse form markup: %w", err)
	}

	root := doc
	if scope != "" {
		found, err := htmlquery.Query(doc, scope)
		if err != nil {
			return nil, fmt.Errorf("invalid scope selector '%s': %w", scope, err)
		}
		if found != nil {
			root = found
		}
	}

	x := &extraction{doc: doc, groups: make(map[*html.Node]int)}
	x.walk(root)
	return x.fields, nil
}

type extraction struct {
	doc    *html.Node
	fields []Field
	// groups maps a fieldset to the index of its radio group field.
	groups map[*html.Node]int
}

func (x *extraction) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "input":
			x.input(n)
		case "textarea":
			x.textarea(n)
		case "select":
			x.selectBox(n)
			// Options are read by selectBox.
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		x.walk(c)
	}
}

func (x *extraction) input(n *html.Node) {
	typ := strings.ToLower(strings.TrimSpace(dom.Attr(n, "type")))
	switch typ {
	case "hidden", "submit", "button", "image", "reset", "password":
		return
	}
	if dom.IsHidden(n) && typ != "radio" && typ != "checkbox" {
		return
	}

	switch {
	case typ == "radio":
		x.radio(n)
	case typ == "checkbox":
		// LinkedIn styles checkboxes as visually hidden inputs behind their
		// labels; only an explicitly hidden container removes them.
		if hiddenContainer(n) {
			return
		}
		value := ""
		if dom.HasAttr(n, "checked") {
			value = CheckedValue
		}
		x.fields = append(x.fields, Field{
			Label:    x.labelFor(n),
			Kind:     KindCheckbox,
			Value:    value,
			Selector: dom.GenerateUniqueXPath(n),
			Required: isRequired(n),
		})
	case typ == "file":
		x.fields = append(x.fields, Field{
			Label:    x.labelFor(n),
			Kind:     KindFile,
			Value:    dom.Attr(n, "value"),
			Selector: dom.GenerateUniqueXPath(n),
			Accept:   dom.Attr(n, "accept"),
			Required: isRequired(n),
		})
	case textInputTypes[typ]:
		x.fields = append(x.fields, Field{
			Label:    x.labelFor(n),
			Kind:     KindText,
			Value:    dom.Attr(n, "value"),
			Selector: dom.GenerateUniqueXPath(n),
			Required: isRequired(n),
		})
	}
}

func (x *extraction) textarea(n *html.Node) {
	if dom.IsHidden(n) {
		return
	}
	x.fields = append(x.fields, Field{
		Label:    x.labelFor(n),
		Kind:     KindText,
		Value:    strings.TrimSpace(htmlquery.InnerText(n)),
		Selector: dom.GenerateUniqueXPath(n),
		Required: isRequired(n),
	})
}

func (x *extraction) selectBox(n *html.Node) {
	if dom.IsHidden(n) {
		return
	}
	f := Field{
		Label:    x.labelFor(n),
		Kind:     KindSelect,
		Selector: dom.GenerateUniqueXPath(n),
		Required: isRequired(n),
	}
	for _, opt := range htmlquery.Find(n, ".//option") {
		label := dom.Text(opt)
		value := label
		if dom.HasAttr(opt, "value") {
			value = dom.Attr(opt, "value")
		}
		f.Options = append(f.Options, Option{Label: label, Value: value, Selector: dom.GenerateUniqueXPath(opt)})
		if dom.HasAttr(opt, "selected") && !isPlaceholder(opt) {
			f.Value = label
		}
	}
	x.fields = append(x.fields, f)
}

// radio folds the input into the field of its enclosing fieldset.
func (x *extraction) radio(n *html.Node) {
	fieldset := ancestor(n, "fieldset")
	if fieldset == nil || hiddenContainer(n) {
		return
	}

	idx, ok := x.groups[fieldset]
	if !ok {
		x.fields = append(x.fields, Field{
			Label:    legendText(fieldset),
			Kind:     KindRadio,
			Selector: dom.GenerateUniqueXPath(fieldset),
			Required: isRequired(n) || dom.Attr(fieldset, "aria-required") == "true",
		})
		idx = len(x.fields) - 1
		x.groups[fieldset] = idx
	}

	label := x.labelFor(n)
	if label == "" {
		label = dom.Attr(n, "value")
	}
	f := &x.fields[idx]
	f.Options = append(f.Options, Option{Label: label, Value: dom.Attr(n, "value"), Selector: dom.GenerateUniqueXPath(n)})
	if dom.HasAttr(n, "checked") {
		f.Value = label
	}
}

// labelFor resolves the explicit label, then aria-label, then "".
func (x *extraction) labelFor(n *html.Node) string {
	if id := dom.Attr(n, "id"); id != "" {
		if lbl := htmlquery.FindOne(x.doc, "//label[@for="+dom.Literal(id)+"]"); lbl != nil {
			if text := visibleText(lbl); text != "" {
				return text
			}
		}
	}
	return strings.TrimSpace(dom.Attr(n, "aria-label"))
}

func legendText(fieldset *html.Node) string {
	if legend := htmlquery.FindOne(fieldset, "./legend"); legend != nil {
		if text := visibleText(legend); text != "" {
			return text
		}
	}
	return strings.TrimSpace(dom.Attr(fieldset, "aria-label"))
}

// visibleText is the collapsed text of n without aria-hidden subtrees, which
// LinkedIn uses to duplicate label text for sighted users.
func visibleText(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			sb.WriteString(c.Data)
			sb.WriteByte(' ')
		case html.ElementNode:
			if dom.Attr(c, "aria-hidden") == "true" && c != n {
				return
			}
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			collect(k)
		}
	}
	collect(n)
	text := strings.Join(strings.Fields(sb.String()), " ")
	if text == "" {
		return dom.Text(n)
	}
	return text
}

// hiddenContainer reports whether an ancestor, not the element itself, hides it.
func hiddenContainer(n *html.Node) bool {
	if dom.Attr(n, "type") == "hidden" || dom.HasAttr(n, "hidden") {
		return true
	}
	return n.Parent != nil && dom.IsHidden(n.Parent)
}

func isRequired(n *html.Node) bool {
	return dom.HasAttr(n, "required") || dom.Attr(n, "aria-required") == "true"
}

func isPlaceholder(opt *html.Node) bool {
	if dom.HasAttr(opt, "value") && dom.Attr(opt, "value") == "" {
		return true
	}
	return strings.EqualFold(dom.Text(opt), "Select an option")
}

func ancestor(n *html.Node, tag string) *html.Node {
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, tag) {
			return cur
		}
	}
	return nil
}
