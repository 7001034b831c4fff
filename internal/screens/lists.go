package screens

import (
	"github.com/autobrr/autobrr-sub001/internal/form"
	"github.com/autobrr/autobrr-sub001/internal/mutation"
	"github.com/autobrr/autobrr-sub001/internal/shell"
	"github.com/autobrr/autobrr-sub001/model"
)

var (
	listClient       = form.Number("client_id", "Download client").Help("Id of the *arr download client to read the list from")
	listMatchRelease = form.Switch("match_release", "Match Release").Help("Use Match Releases field. Uses Movies/Shows field by default.")
	listURL          = form.Text("url", "List URL").Validate("omitempty,url")
	listArrCommon    = []form.Field{
		listClient,
		listMatchRelease,
		form.Switch("include_unmonitored", "Include Unmonitored").Help("By default only monitored titles are filtered."),
		form.MultiSelect("tags_included", "Tags Included"),
		form.MultiSelect("tags_excluded", "Tags Excluded"),
	}
)

func source(fields ...form.Field) form.Fields {
	return form.Group("source", "Source", fields...)
}

var (
	sonarrList = source(append(listArrCommon[:len(listArrCommon):len(listArrCommon)],
		form.Switch("exclude_alternate_titles", "Exclude Alternate Titles").Help("Exclude alternate titles from the list."),
	)...)
	arrList = source(listArrCommon...)
)

// ListRegistry maps each list type to its source fields.
var ListRegistry = form.NewRegistry(
	form.Entry[ListType]{Value: ListSonarr, Fields: sonarrList},
	form.Entry[ListType]{Value: ListRadarr, Fields: arrList},
	form.Entry[ListType]{Value: ListLidarr, Fields: arrList},
	form.Entry[ListType]{Value: ListReadarr, Fields: arrList},
	form.Entry[ListType]{Value: ListWhisparr, Fields: arrList},
	form.Entry[ListType]{Value: ListMDBList, Fields: source(listURL.Help("MDBList json url, e.g. https://mdblist.com/lists/user/list/json"), listMatchRelease)},
	form.Entry[ListType]{Value: ListTrakt, Fields: source(
		listURL.Help("Trakt list url or one of the built-in lists"),
		form.Password("api_key", "API Key").Help("Trakt API Key. Required for private lists."),
		listMatchRelease,
	)},
	form.Entry[ListType]{Value: ListPlaintext, Fields: source(listURL.Help("Plaintext list, one title per line"), listMatchRelease)},
	form.Entry[ListType]{Value: ListSteam, Fields: source(listURL.Help("Steam wishlist url"))},
	form.Entry[ListType]{Value: ListMetacritic, Fields: source(listURL.Help("Metacritic list url"), listMatchRelease)},
)

// Lists is the list screen.
func Lists(d Deps) *shell.Screen {
	return &shell.Screen{
		ID:           "lists",
		Title:        "List",
		EntityName:   "List",
		Label:        "Lists",
		Icon:         "list",
		Discriminant: "type",
		Policy:       form.KeepValues,
		Form: form.Compose(
			form.Group("general", "General",
				form.Text("name", "Name").Required(),
				form.Select("type", "Type", options(AllListTypes(), listLabels)...),
				form.Switch("enabled", "Enabled"),
				form.MultiSelect("filters", "Filters").Help("Filters to update with the list's titles"),
			),
			form.On("type", ListRegistry),
		),
		Defaults: func(shell.OpenRequest) model.Values {
			return model.NewValues(map[string]any{
				"enabled":                  true,
				"type":                     "",
				"name":                     "",
				"client_id":                0,
				"url":                      "",
				"headers":                  []any{},
				"api_key":                  "",
				"filters":                  []any{},
				"match_release":            false,
				"tags_included":            []any{},
				"tags_excluded":            []any{},
				"include_unmonitored":      false,
				"include_alternate_titles": false,
			})
		},
		Fetch:   fetchDetail(d, d.API.Lists),
		List:    cachedList(d, d.API.Lists),
		Binding: mutation.FromResource(d.API.Lists, "List"),
	}
}
