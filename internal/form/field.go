// internal/form/field.go
package form

// Kind classifies a form control.
type Kind string

const (
	KindText     Kind = "text"
	KindSelect   Kind = "select"
	KindRadio    Kind = "radio"
	KindCheckbox Kind = "checkbox"
	KindFile     Kind = "file"
)

// Option is one choice of a select or radio group.
type Option struct {
	Label string
	Value string
	// Selector addresses the option element for selects and the input for radios.
	Selector string
}

// Field is one labeled control in a form step.
type Field struct {
	Label string
	Kind  Kind
	// Value is the current value: typed text, the selected option's label,
	// the checked radio's label, "Yes" for a checked checkbox, or the chosen file name.
	Value    string
	Selector string
	Options  []Option
	// Accept carries the accept attribute of file inputs.
	Accept   string
	Required bool
}

// Labeled reports whether the field has a usable label.
func (f Field) Labeled() bool { return f.Label != "" }

// OptionLabels returns the labels of the field's options.
func (f Field) OptionLabels() []string {
	labels := make([]string, 0, len(f.Options))
	for _, o := range f.Options {
		labels = append(labels, o.Label)
	}
	return labels
}

// Values maps each label to its value. The first field with a given label wins.
func Values(fields []Field) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if !f.Labeled() {
			continue
		}
		if _, seen := out[f.Label]; seen {
			continue
		}
		out[f.Label] = f.Value
	}
	return out
}
