package screens

import (
	"context"
	"strconv"

	"github.com/autobrr/autobrr-sub001/internal/apiclient"
	"github.com/autobrr/autobrr-sub001/internal/form"
	"github.com/autobrr/autobrr-sub001/internal/mutation"
	"github.com/autobrr/autobrr-sub001/internal/querycache"
	"github.com/autobrr/autobrr-sub001/internal/shell"
	"github.com/autobrr/autobrr-sub001/model"
)

var (
	actionClient   = form.Number("client_id", "Client").Help("Id of the download client to send the release to")
	actionSavePath = form.Text("save_path", "Save path").Help("If left empty then the default save path for the client is used.")
	actionLabel    = form.Text("label", "Label").Help("Label to apply to the torrent.")
	actionPaused   = form.Switch("paused", "Add paused").Help("Add torrent as paused")
	actionLimits   = []form.Field{
		form.Number("limit_download_speed", "Limit download speed (KiB/s)").Between(0, 1_000_000),
		form.Number("limit_upload_speed", "Limit upload speed (KiB/s)").Between(0, 1_000_000),
	}
)

func actionSection(title string, fields ...form.Field) form.Fields {
	return form.Group("action", title, fields...)
}

var (
	delugeAction = actionSection("Deluge", append([]form.Field{actionClient, actionLabel, actionSavePath, actionPaused}, actionLimits...)...)

	arrAction = actionSection("Arr",
		actionClient,
		form.Text("external_download_client", "Override download client").Help("Override the download client the arr uses for this release."),
		form.Number("external_download_client_id", "Override client id DEPRECATED"),
	)
)

// ActionRegistry maps each action type to its fields.
var ActionRegistry = form.NewRegistry(
	form.Entry[ActionType]{Value: ActionTest, Fields: form.Fields{}},
	form.Entry[ActionType]{Value: ActionWatchFolder, Fields: actionSection("Watch dir",
		form.Text("watch_folder", "Watch folder").Required().Help("Full path to watch dir. Eg. /home/user/rwatch"),
	)},
	form.Entry[ActionType]{Value: ActionWebhook, Fields: actionSection("Webhook",
		form.Text("webhook_host", "Host").Required().Validate("url").Help("Full url http(s)://domain.ltd/endpoint"),
		form.Select("webhook_method", "Method",
			form.Option("POST", "POST"),
			form.Option("GET", "GET"),
			form.Option("PUT", "PUT"),
			form.Option("PATCH", "PATCH"),
			form.Option("DELETE", "DELETE"),
		),
		form.TextArea("webhook_data", "Data (json)").Help("Request body. Supports macros."),
	)},
	form.Entry[ActionType]{Value: ActionExec, Fields: actionSection("Exec",
		form.Text("exec_cmd", "Command").Required().Help("Path to program eg. /bin/test"),
		form.Text("exec_args", "Arguments").Help("Arguments eg. --test"),
	)},
	form.Entry[ActionType]{Value: ActionQBittorrent, Fields: actionSection("qBittorrent", append([]form.Field{
		actionClient,
		actionSavePath,
		form.Text("category", "Category"),
		form.Text("tags", "Tags").Help("Comma separated eg. tag1,tag2"),
		form.Select("content_layout", "Content Layout",
			form.Option("ORIGINAL", "Original"),
			form.Option("SUBFOLDER_CREATE", "Create subfolder"),
			form.Option("SUBFOLDER_NONE", "Don't create subfolder"),
		),
		form.Select("priority", "Priority",
			form.Option("", "Disabled"),
			form.Option("MAX", "Top of queue"),
			form.Option("MIN", "Bottom of queue"),
		),
		actionPaused,
		form.Switch("ignore_rules", "Ignore client rules").Help("Download if max active reached"),
		form.Switch("skip_hash_check", "Skip hash check"),
	}, actionLimits...)...)},
	form.Entry[ActionType]{Value: ActionDelugeV1, Fields: delugeAction},
	form.Entry[ActionType]{Value: ActionDelugeV2, Fields: delugeAction},
	form.Entry[ActionType]{Value: ActionRTorrent, Fields: actionSection("rTorrent",
		actionClient,
		actionLabel,
		actionSavePath,
		form.Select("content_layout", "Don't add torrent's name to path",
			form.Option("ORIGINAL", "No"),
			form.Option("SUBFOLDER_NONE", "Yes"),
		),
		form.Switch("paused", "Don't start download"),
	)},
	form.Entry[ActionType]{Value: ActionTransmission, Fields: actionSection("Transmission", append([]form.Field{
		actionClient, actionLabel, actionSavePath, actionPaused,
		form.Number("limit_ratio", "Ratio limit"),
		form.Number("limit_seed_time", "Seed time limit (minutes)"),
	}, actionLimits...)...)},
	form.Entry[ActionType]{Value: ActionPorla, Fields: actionSection("Porla", append([]form.Field{
		actionClient, actionSavePath, actionLabel.Help("Porla preset"),
	}, actionLimits...)...)},
	form.Entry[ActionType]{Value: ActionRadarr, Fields: arrAction},
	form.Entry[ActionType]{Value: ActionSonarr, Fields: arrAction},
	form.Entry[ActionType]{Value: ActionLidarr, Fields: arrAction},
	form.Entry[ActionType]{Value: ActionWhisparr, Fields: arrAction},
	form.Entry[ActionType]{Value: ActionReadarr, Fields: arrAction},
	form.Entry[ActionType]{Value: ActionSabnzbd, Fields: actionSection("SABnzbd",
		actionClient,
		form.Text("category", "Category"),
	)},
)

// needsClient reports whether the action type sends releases to a
// configured download client.
func needsClient(t ActionType) bool {
	switch t {
	case ActionTest, ActionWatchFolder, ActionWebhook, ActionExec:
		return false
	}
	return true
}

// Actions is the filter action screen. Actions belong to a filter: sessions
// are opened with the filter id as parent.
func Actions(d Deps) *shell.Screen {
	list := func(ctx context.Context, filterID string) ([]model.Values, error) {
		if filterID == "" {
			return nil, model.NewBadRequestError("parent_id (the filter id) is required for actions")
		}
		return querycache.Fetch(ctx, d.Cache, querycache.ListKey(apiclient.Actions, filterID), func(ctx context.Context) ([]model.Values, error) {
			return d.API.ActionsForFilter(ctx, filterID)
		})
	}

	return &shell.Screen{
		ID:           "actions",
		Title:        "Action",
		EntityName:   "Action",
		Label:        "Actions",
		Icon:         "bolt",
		Parent:       "filters",
		Discriminant: "type",
		Policy:       form.KeepValues,
		Form: form.Compose(
			form.Group("general", "General",
				form.Text("name", "Name").Required(),
				form.Select("type", "Type", options(AllActionTypes(), actionLabels)...).Required(),
				form.Switch("enabled", "Enabled"),
			),
			form.On("type", ActionRegistry),
		),
		Validate: validateAction,
		Defaults: func(req shell.OpenRequest) model.Values {
			filterID, _ := strconv.Atoi(req.ParentID)
			return model.NewValues(map[string]any{
				"name":      "",
				"type":      string(ActionTest),
				"enabled":   true,
				"filter_id": filterID,
			})
		},
		Fetch: func(ctx context.Context, req shell.OpenRequest) (model.Values, error) {
			items, err := list(ctx, req.ParentID)
			if err != nil {
				return nil, err
			}
			return findByID(items, req.EntityID)
		},
		List:    list,
		Binding: actionBinding(mutation.FromResource(d.API.Actions, "Action")),
	}
}

// actionBinding makes b drop the cached filters on success. autobrr embeds
// actions in their filter, so a cached filter list or detail would still
// show the old actions.
func actionBinding(b mutation.Binding) mutation.Binding {
	b.Invalidates = func(out mutation.Outcome, values model.Values) []querycache.Key {
		id := values.Number("filter_id")
		if id == 0 {
			id = out.Result.Number("filter_id")
		}
		if id == 0 {
			return []querycache.Key{querycache.All(apiclient.Filters)}
		}
		filterID := strconv.FormatFloat(id, 'f', -1, 64)
		return []querycache.Key{
			querycache.ListKey(apiclient.Filters),
			querycache.DetailKey(apiclient.Filters, filterID),
		}
	}
	return b
}

// validateAction rejects client actions without a selected client.
func validateAction(v model.Values) []model.FieldError {
	if needsClient(ActionType(v.String("type"))) && v.Number("client_id") == 0 {
		return []model.FieldError{{Field: "client_id", Code: model.FieldRequired, Message: "Must select client"}}
	}
	return nil
}
