package form

import (
	"fmt"

	"github.com/autobrr/autobrr-sub001/model"
)

// Entry registers the field set rendered for one discriminant value.
type Entry[D ~string] struct {
	Value  D
	Fields FieldSet
}

// Registry maps discriminant values to field sets. It is immutable once
// built and safe for concurrent use.
type Registry[D ~string] struct {
	entries map[D]FieldSet
	order   []D
}

// NewRegistry builds a registry. Registering the same value twice panics:
// the registries are package-level tables and a duplicate is a programming
// error.
func NewRegistry[D ~string](entries ...Entry[D]) *Registry[D] {
	r := &Registry[D]{entries: make(map[D]FieldSet, len(entries))}
	for _, e := range entries {
		if _, dup := r.entries[e.Value]; dup {
			panic(fmt.Sprintf("form: duplicate registration for %q", string(e.Value)))
		}
		if e.Fields == nil {
			panic(fmt.Sprintf("form: nil field set for %q", string(e.Value)))
		}
		r.entries[e.Value] = e.Fields
		r.order = append(r.order, e.Value)
	}
	return r
}

// Resolve returns the field set registered for d.
func (r *Registry[D]) Resolve(d D) (FieldSet, bool) {
	fs, ok := r.entries[d]
	return fs, ok
}

// Values returns the registered discriminants in registration order.
func (r *Registry[D]) Values() []D {
	return append([]D(nil), r.order...)
}

// Lookup implements Resolver.
func (r *Registry[D]) Lookup(d string) (FieldSet, bool) {
	return r.Resolve(D(d))
}

// Discriminants implements Resolver.
func (r *Registry[D]) Discriminants() []string {
	out := make([]string, len(r.order))
	for i, d := range r.order {
		out[i] = string(d)
	}
	return out
}

// Resolver is the untyped view of a Registry used by screens.
type Resolver interface {
	Lookup(d string) (FieldSet, bool)
	Discriminants() []string
}

// Render returns the sections for discriminant d, or an empty slice when
// nothing is registered for it.
func Render(r Resolver, d string, values model.Values) []model.SectionDescriptor {
	if r == nil {
		return []model.SectionDescriptor{}
	}
	fs, ok := r.Lookup(d)
	if !ok {
		return []model.SectionDescriptor{}
	}
	return fs.Sections(values)
}

// RulesFor returns the rules of the field set registered for d, if it has any.
func RulesFor(r Resolver, d string, values model.Values) []Rule {
	if r == nil {
		return nil
	}
	fs, ok := r.Lookup(d)
	if !ok {
		return nil
	}
	if rs, ok := fs.(RuleSet); ok {
		return rs.Rules(values)
	}
	return nil
}

// On returns a field set that renders whatever r resolves for the string
// value at path.
func On(path string, r Resolver) FieldSet {
	return switchSet{path: path, r: r}
}

type switchSet struct {
	path string
	r    Resolver
}

func (s switchSet) Sections(values model.Values) []model.SectionDescriptor {
	return Render(s.r, values.String(s.path), values)
}

func (s switchSet) Rules(values model.Values) []Rule {
	return RulesFor(s.r, values.String(s.path), values)
}

// Form is a complete screen form: it renders and it validates.
type Form interface {
	FieldSet
	RuleSet
}

// Compose stacks field sets in order. Sets that are not RuleSets contribute
// no rules.
func Compose(sets ...FieldSet) Form {
	return composite(sets)
}

type composite []FieldSet

func (c composite) Sections(values model.Values) []model.SectionDescriptor {
	out := []model.SectionDescriptor{}
	for _, fs := range c {
		out = append(out, fs.Sections(values)...)
	}
	return out
}

func (c composite) Rules(values model.Values) []Rule {
	var out []Rule
	for _, fs := range c {
		if rs, ok := fs.(RuleSet); ok {
			out = append(out, rs.Rules(values)...)
		}
	}
	return out
}
