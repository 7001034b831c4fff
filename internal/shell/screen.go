package shell

import (
	"context"
	"fmt"

	"github.com/autobrr/autobrr-sub001/internal/form"
	"github.com/autobrr/autobrr-sub001/internal/mutation"
	"github.com/autobrr/autobrr-sub001/model"
)

// OpenRequest opens a shell. ParentID scopes child entities (the filter an
// action belongs to).
type OpenRequest struct {
	Screen   string         `json:"-"`
	Mode     model.FormMode `json:"mode"`
	EntityID string         `json:"id,omitempty"`
	ParentID string         `json:"parent_id,omitempty"`
}

// Screen composes a form, its API bindings and its policies. Screens are
// immutable once registered in a Catalog.
type Screen struct {
	ID         string
	Title      string
	EntityName string
	// Label names the screen in the navigation.
	Label string
	Icon  string
	// Parent names the screen owning this one's entities. Child screens
	// are opened with a ParentID and are left out of the navigation.
	Parent string

	// Discriminant is the value path selecting the sub-form, empty for
	// screens with a single field set.
	Discriminant string
	Policy       form.TypeChangePolicy
	Form         form.Form

	// Validate adds cross-field checks to the field rules. Optional.
	Validate func(values model.Values) []model.FieldError

	// Defaults returns the initial values of a CREATE session.
	Defaults func(req OpenRequest) model.Values
	// Fetch loads the entity of an UPDATE session.
	Fetch func(ctx context.Context, req OpenRequest) (model.Values, error)
	// List loads the screen's table. parentID scopes child collections and
	// is empty for top-level screens.
	List func(ctx context.Context, parentID string) ([]model.Values, error)

	Binding mutation.Binding

	// TestNeedsEntity restricts the test action to UPDATE sessions, for
	// backends that test a saved entity by id.
	TestNeedsEntity bool
}

// CanDelete reports whether the screen binds a delete operation.
func (s *Screen) CanDelete() bool { return s.Binding.Delete != nil }

// SensitiveFields returns the paths of the password inputs shown for values.
func (s *Screen) SensitiveFields(values model.Values) []string {
	var paths []string
	for _, sec := range s.Form.Sections(values) {
		for _, f := range sec.Fields {
			if f.Type == model.FieldPassword {
				paths = append(paths, f.Field)
			}
		}
	}
	return paths
}

// Catalog is the immutable set of screens.
type Catalog struct {
	screens map[string]*Screen
	order   []string
}

// NewCatalog builds a catalog. A duplicate or incomplete screen panics.
func NewCatalog(screens ...*Screen) *Catalog {
	c := &Catalog{screens: make(map[string]*Screen, len(screens))}
	for _, s := range screens {
		if _, dup := c.screens[s.ID]; dup {
			panic(fmt.Sprintf("shell: duplicate screen %q", s.ID))
		}
		if s.Form == nil || s.Defaults == nil {
			panic(fmt.Sprintf("shell: screen %q needs a form and defaults", s.ID))
		}
		c.screens[s.ID] = s
		c.order = append(c.order, s.ID)
	}
	return c
}

// Get returns the screen with id.
func (c *Catalog) Get(id string) (*Screen, bool) {
	s, ok := c.screens[id]
	return s, ok
}

// All returns the screens in registration order.
func (c *Catalog) All() []*Screen {
	out := make([]*Screen, len(c.order))
	for i, id := range c.order {
		out[i] = c.screens[id]
	}
	return out
}

// Len returns the number of screens.
func (c *Catalog) Len() int { return len(c.order) }
