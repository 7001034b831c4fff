package screens

import (
	"context"

	"github.com/autobrr/autobrr-sub001/internal/apiclient"
	"github.com/autobrr/autobrr-sub001/internal/form"
	"github.com/autobrr/autobrr-sub001/internal/mutation"
	"github.com/autobrr/autobrr-sub001/internal/querycache"
	"github.com/autobrr/autobrr-sub001/internal/shell"
	"github.com/autobrr/autobrr-sub001/model"
)

var feedDownloadType = form.Select("feed.settings.download_type", "Download type",
	form.Option("TORRENT", "Torrent"),
	form.Option("MAGNET", "Magnet"),
)

// IndexerRegistry maps each implementation to its connection fields.
var IndexerRegistry = form.NewRegistry(
	form.Entry[IndexerImplementation]{Value: ImplementationIRC, Fields: form.Group("irc", "IRC",
		form.Text("irc.nick", "Nick").Required().Help("Bot nick. Eg. user_bot"),
		form.Text("irc.auth.account", "NickServ Account").Help("NickServ account. Make sure to group your user and bot."),
		form.Password("irc.auth.password", "NickServ Password"),
		form.Text("irc.invite_command", "Invite command").Help("Invite command. Eg. !invite"),
	)},
	form.Entry[IndexerImplementation]{Value: ImplementationTorznab, Fields: form.Group("feed", "Torznab",
		form.Text("base_url", "URL").Required().Validate("url"),
		form.Password("feed.api_key", "API key"),
		feedDownloadType,
		form.Number("feed.interval", "Refresh interval").Between(0, 10080).Help("Minutes"),
	)},
	form.Entry[IndexerImplementation]{Value: ImplementationNewznab, Fields: form.Group("feed", "Newznab",
		form.Text("base_url", "URL").Required().Validate("url"),
		form.Password("feed.api_key", "API key"),
		form.Number("feed.interval", "Refresh interval").Between(0, 10080).Help("Minutes"),
	)},
	form.Entry[IndexerImplementation]{Value: ImplementationRSS, Fields: form.Group("feed", "RSS",
		form.Text("base_url", "URL").Required().Validate("url"),
		feedDownloadType,
		form.Number("feed.interval", "Refresh interval").Between(0, 10080).Help("Minutes"),
		form.Password("feed.cookie", "Cookie"),
	)},
)

// Indexers is the indexer screen. autobrr tests a saved indexer by id, so
// the test action needs an UPDATE session.
func Indexers(d Deps) *shell.Screen {
	return &shell.Screen{
		ID:           "indexers",
		Title:        "Indexer",
		EntityName:   "Indexer",
		Label:        "Indexers",
		Icon:         "rss",
		Discriminant: "implementation",
		Policy:       form.ResetToDefaults,
		Form: form.Compose(
			form.Group("general", "General",
				form.Text("name", "Name").Required(),
				form.Text("identifier", "Identifier").Required().Help("Indexer definition identifier. Eg. torrentleech"),
				form.Select("implementation", "Implementation", options(AllIndexerImplementations(), nil)...),
				form.Switch("enabled", "Enabled"),
			),
			form.On("implementation", IndexerRegistry),
		),
		Defaults: func(shell.OpenRequest) model.Values {
			return model.NewValues(map[string]any{
				"name":           "",
				"identifier":     "",
				"implementation": string(ImplementationIRC),
				"enabled":        true,
				"base_url":       "",
				"settings":       map[string]any{},
			})
		},
		Fetch:           fetchFromList(d, d.API.Indexers),
		List:            cachedList(d, d.API.Indexers),
		Binding:         mutation.FromResource(d.API.Indexers, "Indexer"),
		TestNeedsEntity: true,
	}
}

// IndexerSchema returns the indexer definitions autobrr ships, through the
// query cache.
func IndexerSchema(ctx context.Context, d Deps) ([]apiclient.IndexerDefinition, error) {
	return querycache.Fetch(ctx, d.Cache, querycache.Key{apiclient.Indexers, "schema"}, d.API.IndexerSchema)
}

// IndexerOptions returns the configured indexers as select options.
func IndexerOptions(ctx context.Context, d Deps) ([]apiclient.IndexerOption, error) {
	return querycache.Fetch(ctx, d.Cache, querycache.ListKey(apiclient.Indexers, "options"), d.API.IndexerOptions)
}
