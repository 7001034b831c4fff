package screens

import (
	"github.com/autobrr/autobrr-sub001/internal/form"
	"github.com/autobrr/autobrr-sub001/internal/mutation"
	"github.com/autobrr/autobrr-sub001/internal/shell"
	"github.com/autobrr/autobrr-sub001/model"
)

var (
	feedURL      = form.Text("url", "URL").Required().Validate("url")
	feedSkip     = form.Switch("tls_skip_verify", "Skip TLS verification (insecure)")
	feedType     = form.Select("settings.download_type", "Download type", form.Option("TORRENT", "Torrent"), form.Option("MAGNET", "Magnet"))
	feedInterval = form.Number("interval", "Refresh interval").Between(0, 10080).Help("Minutes. Recommended 15-30. Too low and risk ban.")
	feedTimeout  = form.Number("timeout", "Refresh timeout").Between(0, 3600).Help("Seconds to wait before cancelling refresh.")
	feedMaxAge   = form.Number("max_age", "Max age").Help("Seconds. Will not grab older than this value.")
)

// FeedRegistry maps each feed type to its settings.
var FeedRegistry = form.NewRegistry(
	form.Entry[FeedType]{Value: FeedTorznab, Fields: settings(
		feedURL.Help("Torznab url"),
		feedType,
		form.Password("api_key", "API key"),
		feedSkip, feedInterval, feedTimeout, feedMaxAge,
	)},
	form.Entry[FeedType]{Value: FeedNewznab, Fields: settings(
		feedURL.Help("Newznab url"),
		form.Password("api_key", "API key"),
		feedSkip, feedInterval, feedTimeout, feedMaxAge,
	)},
	form.Entry[FeedType]{Value: FeedRSS, Fields: settings(
		feedURL.Help("RSS url"),
		feedType,
		feedSkip, feedInterval, feedTimeout, feedMaxAge,
		form.Password("cookie", "Cookie").Help("Not commonly used"),
	)},
)

// Feeds is the feed screen.
func Feeds(d Deps) *shell.Screen {
	b := mutation.FromResource(d.API.Feeds, "Feed")
	b.SuccessMessages = map[mutation.Kind]string{
		mutation.KindTest: "Connection successful",
	}
	return &shell.Screen{
		ID:           "feeds",
		Title:        "Feed",
		EntityName:   "Feed",
		Label:        "Feeds",
		Icon:         "rss",
		Discriminant: "type",
		Policy:       form.KeepValues,
		Form: form.Compose(
			form.Group("general", "General",
				form.Text("name", "Name").Required(),
				form.Select("type", "Type", options(AllFeedTypes(), map[FeedType]string{
					FeedTorznab: "Torznab",
					FeedNewznab: "Newznab",
					FeedRSS:     "RSS",
				})...),
				form.Switch("enabled", "Enabled"),
			),
			form.On("type", FeedRegistry),
		),
		Defaults: func(shell.OpenRequest) model.Values {
			return model.NewValues(map[string]any{
				"name":     "",
				"type":     string(FeedTorznab),
				"enabled":  true,
				"url":      "",
				"interval": 30,
				"timeout":  60,
				"max_age":  0,
				"settings": map[string]any{"download_type": "TORRENT"},
			})
		},
		Fetch:   fetchFromList(d, d.API.Feeds),
		List:    cachedList(d, d.API.Feeds),
		Binding: b,
	}
}
