package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrUnsupported is returned for operations a resource does not expose.
var ErrUnsupported = errors.New("apiclient: operation not supported by resource")

// Endpoints lists the paths of a resource's operations. Paths may contain
// an {id} placeholder. An empty Detail means the entity is looked up in the
// list, as autobrr has no single-entity endpoint for most resources.
type Endpoints struct {
	List   string
	Detail string
	Create string
	Update string
	Delete string
	Test   string
}

// Resource is a typed view over one autobrr collection.
type Resource[T any] struct {
	client *Client
	name   string
	ep     Endpoints
	idOf   func(T) string
}

// NewResource binds endpoints to a client. idOf extracts the entity id and
// is used for list lookups and for {id} substitution on update.
func NewResource[T any](c *Client, name string, ep Endpoints, idOf func(T) string) *Resource[T] {
	return &Resource[T]{client: c, name: name, ep: ep, idOf: idOf}
}

// Name returns the resource name used for cache keys and metrics.
func (r *Resource[T]) Name() string { return r.name }

// CanTest reports whether the resource has a test endpoint.
func (r *Resource[T]) CanTest() bool { return r.ep.Test != "" }

// GetAll fetches the whole collection.
func (r *Resource[T]) GetAll(ctx context.Context) ([]T, error) {
	if r.ep.List == "" {
		return nil, ErrUnsupported
	}
	var items []T
	if err := r.client.Do(ctx, r.request(http.MethodGet, r.ep.List, "", nil), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetByID fetches one entity, falling back to a list lookup when the
// resource has no detail endpoint.
func (r *Resource[T]) GetByID(ctx context.Context, id string) (T, error) {
	var item T
	if r.ep.Detail != "" {
		err := r.client.Do(ctx, r.request(http.MethodGet, r.ep.Detail, id, nil), &item)
		return item, err
	}

	items, err := r.GetAll(ctx)
	if err != nil {
		return item, err
	}
	for _, it := range items {
		if r.idOf(it) == id {
			return it, nil
		}
	}
	return item, &Error{StatusCode: http.StatusNotFound, Message: "Not found"}
}

// Create posts a new entity. The returned value is the entity echoed by
// autobrr, or the zero value when the answer had no body.
func (r *Resource[T]) Create(ctx context.Context, v T) (T, error) {
	var out T
	if r.ep.Create == "" {
		return out, ErrUnsupported
	}
	err := r.client.Do(ctx, r.request(http.MethodPost, r.ep.Create, "", v), &out)
	return out, err
}

// Update replaces the entity with the given id.
func (r *Resource[T]) Update(ctx context.Context, id string, v T) (T, error) {
	var out T
	if r.ep.Update == "" {
		return out, ErrUnsupported
	}
	err := r.client.Do(ctx, r.request(http.MethodPut, r.ep.Update, id, v), &out)
	return out, err
}

// Delete removes the entity with the given id.
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	if r.ep.Delete == "" {
		return ErrUnsupported
	}
	return r.client.Do(ctx, r.request(http.MethodDelete, r.ep.Delete, id, nil), nil)
}

// Test asks autobrr to check connectivity with the given, unsaved values.
func (r *Resource[T]) Test(ctx context.Context, v T) error {
	if r.ep.Test == "" {
		return ErrUnsupported
	}
	id := ""
	if strings.Contains(r.ep.Test, "{id}") {
		id = r.idOf(v)
	}
	return r.client.Do(ctx, r.request(http.MethodPost, r.ep.Test, id, v), nil)
}

func (r *Resource[T]) request(method, path, id string, body any) Request {
	return Request{
		Resource: r.name,
		Method:   method,
		Path:     expand(path, id),
		Body:     body,
	}
}

func expand(path, id string) string {
	if !strings.Contains(path, "{id}") {
		return path
	}
	return strings.ReplaceAll(path, "{id}", url.PathEscape(id))
}

// formatID renders numeric and string ids the way autobrr paths expect.
func formatID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return fmt.Sprintf("%d", int64(id))
	case int:
		return fmt.Sprintf("%d", id)
	case int64:
		return fmt.Sprintf("%d", id)
	default:
		return fmt.Sprint(id)
	}
}
