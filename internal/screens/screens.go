// Package screens declares the autobrr settings screens: their forms,
// defaults, validation, type change policies and API bindings.
package screens

import (
	"context"

	"github.com/autobrr/autobrr-sub001/internal/apiclient"
	"github.com/autobrr/autobrr-sub001/internal/querycache"
	"github.com/autobrr/autobrr-sub001/internal/shell"
	"github.com/autobrr/autobrr-sub001/model"
)

// Deps are the collaborators every screen reads through.
type Deps struct {
	API   *apiclient.API
	Cache *querycache.Cache
}

// Catalog builds the catalog of every settings screen, in navigation order.
func Catalog(d Deps) *shell.Catalog {
	return shell.NewCatalog(
		Filters(d),
		Actions(d),
		IrcNetworks(d),
		Feeds(d),
		Indexers(d),
		DownloadClients(d),
		Notifications(d),
		Lists(d),
	)
}

// cachedList reads a resource's collection through the query cache.
func cachedList(d Deps, r *apiclient.Resource[model.Values]) func(context.Context, string) ([]model.Values, error) {
	return func(ctx context.Context, _ string) ([]model.Values, error) {
		return querycache.Fetch(ctx, d.Cache, querycache.ListKey(r.Name()), r.GetAll)
	}
}

// fetchFromList finds the entity of an UPDATE session in the cached
// collection, for resources autobrr only serves as a whole.
func fetchFromList(d Deps, r *apiclient.Resource[model.Values]) func(context.Context, shell.OpenRequest) (model.Values, error) {
	list := cachedList(d, r)
	return func(ctx context.Context, req shell.OpenRequest) (model.Values, error) {
		items, err := list(ctx, "")
		if err != nil {
			return nil, err
		}
		return findByID(items, req.EntityID)
	}
}

// fetchDetail reads one entity through the query cache.
func fetchDetail(d Deps, r *apiclient.Resource[model.Values]) func(context.Context, shell.OpenRequest) (model.Values, error) {
	return func(ctx context.Context, req shell.OpenRequest) (model.Values, error) {
		return querycache.Fetch(ctx, d.Cache, querycache.DetailKey(r.Name(), req.EntityID), func(ctx context.Context) (model.Values, error) {
			return r.GetByID(ctx, req.EntityID)
		})
	}
}

func findByID(items []model.Values, id string) (model.Values, error) {
	for _, item := range items {
		if apiclient.EntityID(item) == id {
			return item, nil
		}
	}
	return nil, model.NewNotFoundError("Not found")
}

// isOneOf reports whether the string at path is one of values.
func isOneOf[D ~string](path string, values ...D) func(model.Values) bool {
	return func(v model.Values) bool {
		got := v.String(path)
		for _, want := range values {
			if got == string(want) {
				return true
			}
		}
		return false
	}
}

func isPositive(path string) func(model.Values) bool {
	return func(v model.Values) bool { return v.Number(path) > 0 }
}
