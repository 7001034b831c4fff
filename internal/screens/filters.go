package screens

import (
	"context"

	"github.com/autobrr/autobrr-sub001/internal/form"
	"github.com/autobrr/autobrr-sub001/internal/mutation"
	"github.com/autobrr/autobrr-sub001/internal/shell"
	"github.com/autobrr/autobrr-sub001/model"
)

var downloadsPerUnit = []model.OptionDescriptor{
	form.Option("", "Select unit"),
	form.Option("HOUR", "Hour"),
	form.Option("DAY", "Day"),
	form.Option("WEEK", "Week"),
	form.Option("MONTH", "Month"),
	form.Option("EVER", "Ever"),
}

// Filters is the filter screen. Filters have a single field set; their
// actions are edited on the actions screen.
func Filters(d Deps) *shell.Screen {
	return &shell.Screen{
		ID:         "filters",
		Title:      "Filter",
		EntityName: "Filter",
		Label:      "Filters",
		Icon:       "filter",
		Form: form.Compose(
			form.Fields{
				{ID: "general", Title: "General", Fields: []form.Field{
					form.Text("name", "Filter name").Required(),
					form.Switch("enabled", "Enabled").Help("Enable or disable this filter."),
				}},
				{ID: "rules", Title: "Rules", Description: "Specify rules to match releases.", Fields: []form.Field{
					form.Text("min_size", "Min size").Help("Supports units such as MB, MiB, GB, etc."),
					form.Text("max_size", "Max size").Help("Supports units such as MB, MiB, GB, etc."),
					form.Number("delay", "Delay").Between(0, 86400).Help("Number of seconds to wait before running actions."),
					form.Number("priority", "Priority").Help("Filters are checked in order of priority. Higher number = higher priority."),
					form.Number("max_downloads", "Max downloads").Between(0, 1_000_000).Placeholder("Takes any number (0 is infinite)"),
					form.Select("max_downloads_unit", "Max downloads per", downloadsPerUnit...).
						Help("The unit of time for counting the maximum downloads per filter.").
						When(isPositive("max_downloads")),
				}},
			},
		),
		Validate: validateFilter,
		Defaults: func(shell.OpenRequest) model.Values {
			return model.NewValues(map[string]any{
				"name":               "",
				"enabled":            true,
				"min_size":           "",
				"max_size":           "",
				"delay":              0,
				"priority":           0,
				"max_downloads":      0,
				"max_downloads_unit": "",
				"indexers":           []any{},
			})
		},
		// Filters embed their actions, which the actions screen mutates
		// under its own keys, so an edit always starts from autobrr.
		Fetch: func(ctx context.Context, req shell.OpenRequest) (model.Values, error) {
			return d.API.Filters.GetByID(ctx, req.EntityID)
		},
		List:    cachedList(d, d.API.Filters),
		Binding: mutation.FromResource(d.API.Filters, "Filter"),
	}
}

// validateFilter requires a unit once a download limit is set.
func validateFilter(v model.Values) []model.FieldError {
	if v.Number("max_downloads") > 0 && v.String("max_downloads_unit") == "" {
		return []model.FieldError{{Field: "max_downloads_unit", Code: model.FieldRequired, Message: "Required"}}
	}
	return nil
}
