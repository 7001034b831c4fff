// Package mutation runs create, update, delete and test operations against
// autobrr on behalf of a form session, then invalidates the query cache and
// emits the user-facing toast for the outcome.
package mutation

import (
	"context"
	"errors"

	"github.com/autobrr/autobrr-sub001/internal/apiclient"
	"github.com/autobrr/autobrr-sub001/internal/querycache"
	"github.com/autobrr/autobrr-sub001/model"
)

// Kind identifies the operation.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
	KindTest   Kind = "test"
)

// pastTense is the verb used in messages.
func (k Kind) pastTense() string {
	switch k {
	case KindCreate:
		return "created"
	case KindUpdate:
		return "updated"
	case KindDelete:
		return "deleted"
	}
	return "tested"
}

// ErrNotBound is returned when a binding has no handler for the operation.
var ErrNotBound = errors.New("mutation: operation not bound")

// Binding connects a screen to the API operations it mutates through. Nil
// handlers are unsupported operations.
type Binding struct {
	// Resource is the query cache resource invalidated on success.
	Resource string
	// EntityName is the human name used in messages, e.g. "Download client".
	EntityName string

	Create func(ctx context.Context, values model.Values) (model.Values, error)
	Update func(ctx context.Context, id string, values model.Values) (model.Values, error)
	Delete func(ctx context.Context, id string) error
	Test   func(ctx context.Context, values model.Values) error

	// Invalidates names further cache keys dropped after a successful
	// create, update or delete, for resources embedded in another one.
	// values is the request payload and is nil for deletes.
	Invalidates func(out Outcome, values model.Values) []querycache.Key

	// SuccessMessages overrides the default success message per kind.
	SuccessMessages map[Kind]string
}

// CanTest reports whether the binding has a test handler.
func (b Binding) CanTest() bool { return b.Test != nil }

// FromResource binds the CRUD and test operations of an API resource.
func FromResource(r *apiclient.Resource[model.Values], entityName string) Binding {
	b := Binding{
		Resource:   r.Name(),
		EntityName: entityName,
		Create:     r.Create,
		Update:     r.Update,
		Delete:     r.Delete,
	}
	if r.CanTest() {
		b.Test = r.Test
	}
	return b
}

func (b Binding) successMessage(kind Kind) string {
	if msg, ok := b.SuccessMessages[kind]; ok {
		return msg
	}
	if kind == KindTest {
		return "Test successful"
	}
	return b.EntityName + " was " + kind.pastTense() + " successfully"
}

func (b Binding) failureMessage(kind Kind, err error) string {
	reason := reasonOf(err)
	if kind == KindTest {
		return "Test failed: " + reason
	}
	return b.EntityName + " could not be " + kind.pastTense() + ": " + reason
}

// reasonOf extracts the user-facing reason from an API or envelope error.
func reasonOf(err error) string {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	var env *model.ErrorEnvelope
	if errors.As(err, &env) {
		return env.Message
	}
	return err.Error()
}
