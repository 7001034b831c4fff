package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/autobrr/autobrr-sub001/model"
)

// Resource names. They double as the first element of query cache keys.
const (
	DownloadClients = "download_clients"
	Indexers        = "indexers"
	IrcNetworks     = "irc_networks"
	Feeds           = "feeds"
	Notifications   = "notifications"
	Lists           = "lists"
	Filters         = "filters"
	Actions         = "actions"
)

// API groups the settings resources of one autobrr instance. Entities are
// carried as model.Values so that form payloads reach autobrr unchanged.
type API struct {
	client *Client

	DownloadClients *Resource[model.Values]
	Indexers        *Resource[model.Values]
	IrcNetworks     *Resource[model.Values]
	Feeds           *Resource[model.Values]
	Notifications   *Resource[model.Values]
	Lists           *Resource[model.Values]
	Filters         *Resource[model.Values]
	Actions         *Resource[model.Values]
}

// EntityID returns the "id" of an entity as a path segment.
func EntityID(v model.Values) string {
	id, _ := v.Get("id")
	return formatID(id)
}

// NewAPI wires every settings resource to c.
func NewAPI(c *Client) *API {
	res := func(name string, ep Endpoints) *Resource[model.Values] {
		return NewResource(c, name, ep, EntityID)
	}
	return &API{
		client: c,
		DownloadClients: res(DownloadClients, Endpoints{
			List:   "api/download_clients",
			Create: "api/download_clients",
			Update: "api/download_clients",
			Delete: "api/download_clients/{id}",
			Test:   "api/download_clients/test",
		}),
		Indexers: res(Indexers, Endpoints{
			List:   "api/indexer",
			Create: "api/indexer",
			Update: "api/indexer",
			Delete: "api/indexer/{id}",
			Test:   "api/indexer/{id}/api/test",
		}),
		IrcNetworks: res(IrcNetworks, Endpoints{
			List:   "api/irc",
			Create: "api/irc",
			Update: "api/irc/network/{id}",
			Delete: "api/irc/network/{id}",
		}),
		Feeds: res(Feeds, Endpoints{
			List:   "api/feeds",
			Create: "api/feeds",
			Update: "api/feeds/{id}",
			Delete: "api/feeds/{id}",
			Test:   "api/feeds/test",
		}),
		Notifications: res(Notifications, Endpoints{
			List:   "api/notification",
			Create: "api/notification",
			Update: "api/notification/{id}",
			Delete: "api/notification/{id}",
			Test:   "api/notification/test",
		}),
		Lists: res(Lists, Endpoints{
			List:   "api/lists",
			Detail: "api/lists/{id}",
			Create: "api/lists",
			Update: "api/lists/{id}",
			Delete: "api/lists/{id}",
		}),
		Filters: res(Filters, Endpoints{
			List:   "api/filters",
			Detail: "api/filters/{id}",
			Create: "api/filters",
			Update: "api/filters/{id}",
			Delete: "api/filters/{id}",
		}),
		Actions: res(Actions, Endpoints{
			Create: "api/actions",
			Update: "api/actions/{id}",
			Delete: "api/actions/{id}",
		}),
	}
}

// Client returns the underlying HTTP client.
func (a *API) Client() *Client { return a.client }

// ActionsForFilter returns the actions embedded in a filter.
func (a *API) ActionsForFilter(ctx context.Context, filterID string) ([]model.Values, error) {
	filter, err := a.Filters.GetByID(ctx, filterID)
	if err != nil {
		return nil, err
	}
	raw, ok := filter.Get("actions")
	if !ok || raw == nil {
		return []model.Values{}, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("apiclient: filter %s: actions is %T", filterID, raw)
	}
	actions := make([]model.Values, 0, len(list))
	for _, item := range list {
		switch m := item.(type) {
		case model.Values:
			actions = append(actions, m.Clone())
		case map[string]any:
			actions = append(actions, model.NewValues(m))
		}
	}
	return actions, nil
}

// ToggleFeed enables or disables a feed.
func (a *API) ToggleFeed(ctx context.Context, id string, enabled bool) error {
	return a.client.Do(ctx, Request{
		Resource: Feeds,
		Method:   http.MethodPatch,
		Path:     expand("api/feeds/{id}/enabled", id),
		Body:     map[string]bool{"enabled": enabled},
	}, nil)
}

// ToggleFilter enables or disables a filter.
func (a *API) ToggleFilter(ctx context.Context, id string, enabled bool) error {
	return a.client.Do(ctx, Request{
		Resource: Filters,
		Method:   http.MethodPut,
		Path:     expand("api/filters/{id}/enabled", id),
		Body:     map[string]bool{"enabled": enabled},
	}, nil)
}

// DuplicateFilter clones a filter and returns the copy.
func (a *API) DuplicateFilter(ctx context.Context, id string) (model.Values, error) {
	var out model.Values
	err := a.client.Do(ctx, Request{
		Resource: Filters,
		Method:   http.MethodGet,
		Path:     expand("api/filters/{id}/duplicate", id),
	}, &out)
	return out, err
}

// ToggleAction flips an action's enabled flag.
func (a *API) ToggleAction(ctx context.Context, id string) error {
	return a.client.Do(ctx, Request{
		Resource: Actions,
		Method:   http.MethodPatch,
		Path:     expand("api/actions/{id}/toggleEnabled", id),
	}, nil)
}

// RestartIrcNetwork reconnects an IRC network.
func (a *API) RestartIrcNetwork(ctx context.Context, id string) error {
	return a.client.Do(ctx, Request{
		Resource: IrcNetworks,
		Method:   http.MethodGet,
		Path:     expand("api/irc/network/{id}/restart", id),
	}, nil)
}

// RefreshLists asks autobrr to refresh every list.
func (a *API) RefreshLists(ctx context.Context) error {
	return a.client.Do(ctx, Request{
		Resource: Lists,
		Method:   http.MethodPost,
		Path:     "api/lists/refresh",
	}, nil)
}

// IndexerSchema returns every indexer definition autobrr knows about.
func (a *API) IndexerSchema(ctx context.Context) ([]IndexerDefinition, error) {
	var defs []IndexerDefinition
	err := a.client.Do(ctx, Request{
		Resource: Indexers,
		Method:   http.MethodGet,
		Path:     "api/indexer/schema",
	}, &defs)
	return defs, err
}

// IndexerOptions returns the configured indexers as select options.
func (a *API) IndexerOptions(ctx context.Context) ([]IndexerOption, error) {
	var opts []IndexerOption
	err := a.client.Do(ctx, Request{
		Resource: Indexers,
		Method:   http.MethodGet,
		Path:     "api/indexer/options",
	}, &opts)
	return opts, err
}
