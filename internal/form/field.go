// Package form resolves the polymorphic field sets of settings screens and
// validates form values against the rules of the fields currently rendered.
package form

import (
	"github.com/autobrr/autobrr-sub001/model"
)

// FieldSet renders the sections of a sub-form for the given values. Values
// drive conditional fields but are never modified.
type FieldSet interface {
	Sections(values model.Values) []model.SectionDescriptor
}

// RuleSet exposes the validation rules of the fields visible for values.
type RuleSet interface {
	Rules(values model.Values) []Rule
}

// Rule is a validator tag applied to the value at Path.
type Rule struct {
	Path string
	Tag  string
}

// Field is a declarative field of a static field set. Build with the
// constructors below and refine with the chained setters.
type Field struct {
	path        string
	label       string
	typ         string
	rules       string
	required    bool
	placeholder string
	help        string
	options     []model.OptionDescriptor
	min, max    *float64
	visible     func(model.Values) bool
	deps        []model.FieldDependencyDescriptor
}

func newField(typ, path, label string) Field {
	return Field{path: path, label: label, typ: typ}
}

// Text is a single-line text input.
func Text(path, label string) Field { return newField(model.FieldText, path, label) }

// Password is a masked text input.
func Password(path, label string) Field { return newField(model.FieldPassword, path, label) }

// Number is a numeric input.
func Number(path, label string) Field { return newField(model.FieldNumber, path, label) }

// Switch is a boolean toggle.
func Switch(path, label string) Field { return newField(model.FieldSwitch, path, label) }

// TextArea is a multi-line text input.
func TextArea(path, label string) Field { return newField(model.FieldTextArea, path, label) }

// Select is a single choice from options.
func Select(path, label string, options ...model.OptionDescriptor) Field {
	f := newField(model.FieldSelect, path, label)
	f.options = options
	return f
}

// MultiSelect is a multiple choice from options.
func MultiSelect(path, label string, options ...model.OptionDescriptor) Field {
	f := newField(model.FieldMultiSelect, path, label)
	f.options = options
	return f
}

// Option is shorthand for an option descriptor.
func Option(value, label string) model.OptionDescriptor {
	return model.OptionDescriptor{Value: value, Label: label}
}

// Required marks the field as required.
func (f Field) Required() Field {
	f.required = true
	return f
}

// Validate adds validator tags (e.g. "url", "min=1,max=65535").
func (f Field) Validate(tags string) Field {
	f.rules = tags
	return f
}

// Between sets client-side numeric bounds and the matching server rule.
func (f Field) Between(lo, hi float64) Field {
	f.min, f.max = &lo, &hi
	return f
}

// Help sets the help text.
func (f Field) Help(text string) Field {
	f.help = text
	return f
}

// Placeholder sets the placeholder text.
func (f Field) Placeholder(text string) Field {
	f.placeholder = text
	return f
}

// When renders the field only while pred holds for the current values.
func (f Field) When(pred func(model.Values) bool) Field {
	f.visible = pred
	return f
}

// WhenTrue renders the field only while the boolean at path is true, and
// tells the client about the dependency.
func (f Field) WhenTrue(path string) Field {
	f.visible = func(v model.Values) bool { return v.Bool(path) }
	f.deps = append(f.deps, model.FieldDependencyDescriptor{Field: path, Condition: "equals", Value: "true"})
	return f
}

// Path returns the dotted value path.
func (f Field) Path() string { return f.path }

func (f Field) shown(values model.Values) bool {
	return f.visible == nil || f.visible(values)
}

func (f Field) tag() string {
	tag := f.rules
	if f.min != nil && f.max != nil {
		tag = join(tag, "min="+formatBound(*f.min)+",max="+formatBound(*f.max))
	}
	if f.required {
		return join("required", tag)
	}
	return tag
}

func (f Field) descriptor(values model.Values) model.FieldDescriptor {
	fd := model.FieldDescriptor{
		Field:       f.path,
		Label:       f.label,
		Type:        f.typ,
		Required:    f.required,
		Options:     f.options,
		Placeholder: f.placeholder,
		HelpText:    f.help,
		DependsOn:   f.deps,
	}
	if f.min != nil || f.max != nil {
		fd.Validation = &model.ValidationDescriptor{Min: f.min, Max: f.max}
	}
	if v, ok := values.Get(f.path); ok {
		fd.Value = v
	}
	return fd
}

// Section groups fields under a heading.
type Section struct {
	ID          string
	Title       string
	Description string
	Fields      []Field
}

// Fields is a static FieldSet built from sections. Empty sections (all fields
// hidden) are omitted.
type Fields []Section

// Sections implements FieldSet.
func (fs Fields) Sections(values model.Values) []model.SectionDescriptor {
	out := make([]model.SectionDescriptor, 0, len(fs))
	for _, sec := range fs {
		sd := model.SectionDescriptor{ID: sec.ID, Title: sec.Title, Description: sec.Description}
		for _, f := range sec.Fields {
			if f.shown(values) {
				sd.Fields = append(sd.Fields, f.descriptor(values))
			}
		}
		if len(sd.Fields) > 0 {
			out = append(out, sd)
		}
	}
	return out
}

// Rules implements RuleSet.
func (fs Fields) Rules(values model.Values) []Rule {
	var out []Rule
	for _, sec := range fs {
		for _, f := range sec.Fields {
			if tag := f.tag(); tag != "" && f.shown(values) {
				out = append(out, Rule{Path: f.path, Tag: tag})
			}
		}
	}
	return out
}

// Group is shorthand for a single-section field set.
func Group(id, title string, fields ...Field) Fields {
	return Fields{{ID: id, Title: title, Fields: fields}}
}

// Concat joins field sets into one, preserving order.
func Concat(sets ...Fields) Fields {
	var out Fields
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

// FieldSetFunc adapts a function to a FieldSet. It contributes no rules.
type FieldSetFunc func(values model.Values) []model.SectionDescriptor

// Sections implements FieldSet.
func (f FieldSetFunc) Sections(values model.Values) []model.SectionDescriptor { return f(values) }

// AttachErrors copies field errors onto the matching rendered fields.
func AttachErrors(sections []model.SectionDescriptor, errs []model.FieldError) {
	if len(errs) == 0 {
		return
	}
	byPath := make(map[string]string, len(errs))
	for _, e := range errs {
		if _, dup := byPath[e.Field]; !dup {
			byPath[e.Field] = e.Message
		}
	}
	for i := range sections {
		for j := range sections[i].Fields {
			if msg, ok := byPath[sections[i].Fields[j].Field]; ok {
				sections[i].Fields[j].Error = msg
			}
		}
	}
}

func join(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "," + b
}
