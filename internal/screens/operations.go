package screens

import (
	"context"
	"fmt"

	"github.com/autobrr/autobrr-sub001/internal/apiclient"
	"github.com/autobrr/autobrr-sub001/internal/mutation"
	"github.com/autobrr/autobrr-sub001/model"
)

// Row operations run from a screen's table rather than from a form.
const (
	OpToggle    = "toggle"
	OpRestart   = "restart"
	OpDuplicate = "duplicate"
	OpRefresh   = "refresh"
)

// OperationRequest names a row operation. Name is the entity's display name
// used in the toast; Enabled is the target state of a toggle.
type OperationRequest struct {
	Screen    string `json:"-"`
	Operation string `json:"-"`
	EntityID  string `json:"-"`
	Name      string `json:"name"`
	Enabled   bool   `json:"enabled"`
}

// RunOperation runs a row operation through exec, so it invalidates the
// resource and toasts like a form mutation.
func RunOperation(ctx context.Context, d Deps, exec *mutation.Executor, req OperationRequest) (mutation.Outcome, error) {
	b, kind, err := operationBinding(d, req)
	if err != nil {
		return mutation.Outcome{}, err
	}
	return exec.Run(ctx, b, mutation.Request{
		Kind:     kind,
		EntityID: req.EntityID,
		Values:   model.NewValues(map[string]any{"enabled": req.Enabled}),
	})
}

func operationBinding(d Deps, req OperationRequest) (mutation.Binding, mutation.Kind, error) {
	name := req.Name
	state := "disabled"
	if req.Enabled {
		state = "enabled"
	}
	needsID := req.Operation != OpRefresh
	if needsID && req.EntityID == "" {
		return mutation.Binding{}, "", model.NewBadRequestError("id is required")
	}

	toggle := func(resource, entity string, fn func(ctx context.Context, id string, enabled bool) error) mutation.Binding {
		if name == "" {
			name = entity
		}
		return mutation.Binding{
			Resource:   resource,
			EntityName: entity,
			Update: func(ctx context.Context, id string, v model.Values) (model.Values, error) {
				return nil, fn(ctx, id, v.Bool("enabled"))
			},
			SuccessMessages: map[mutation.Kind]string{
				mutation.KindUpdate: fmt.Sprintf("%s was %s successfully.", name, state),
			},
		}
	}

	switch req.Screen + "/" + req.Operation {
	case "feeds/" + OpToggle:
		return toggle(apiclient.Feeds, "Feed", d.API.ToggleFeed), mutation.KindUpdate, nil
	case "filters/" + OpToggle:
		return toggle(apiclient.Filters, "Filter", d.API.ToggleFilter), mutation.KindUpdate, nil
	case "actions/" + OpToggle:
		return actionBinding(toggle(apiclient.Actions, "Action", func(ctx context.Context, id string, _ bool) error {
			return d.API.ToggleAction(ctx, id)
		})), mutation.KindUpdate, nil
	case "filters/" + OpDuplicate:
		return mutation.Binding{
			Resource:   apiclient.Filters,
			EntityName: "Filter",
			Create: func(ctx context.Context, _ model.Values) (model.Values, error) {
				return d.API.DuplicateFilter(ctx, req.EntityID)
			},
		}, mutation.KindCreate, nil
	case "irc_networks/" + OpRestart:
		if name == "" {
			name = "Network"
		}
		return mutation.Binding{
			Resource:   apiclient.IrcNetworks,
			EntityName: "Network",
			Update: func(ctx context.Context, id string, _ model.Values) (model.Values, error) {
				return nil, d.API.RestartIrcNetwork(ctx, id)
			},
			SuccessMessages: map[mutation.Kind]string{
				mutation.KindUpdate: name + " was successfully restarted",
			},
		}, mutation.KindUpdate, nil
	case "lists/" + OpRefresh:
		return mutation.Binding{
			Resource:   apiclient.Lists,
			EntityName: "Lists",
			Update: func(ctx context.Context, _ string, _ model.Values) (model.Values, error) {
				return nil, d.API.RefreshLists(ctx)
			},
			SuccessMessages: map[mutation.Kind]string{
				mutation.KindUpdate: "All lists are refreshing",
			},
		}, mutation.KindUpdate, nil
	}
	return mutation.Binding{}, "", model.NewNotFoundError(fmt.Sprintf("%s has no operation %q", req.Screen, req.Operation))
}
