package apiclient

// IndexerDefinition describes an indexer autobrr can be configured for.
type IndexerDefinition struct {
	ID             int              `json:"id,omitempty"`
	Name           string           `json:"name"`
	Identifier     string           `json:"identifier"`
	Implementation string           `json:"implementation"`
	BaseURL        string           `json:"base_url,omitempty"`
	Enabled        bool             `json:"enabled,omitempty"`
	Description    string           `json:"description"`
	Language       string           `json:"language"`
	Privacy        string           `json:"privacy"`
	Protocol       string           `json:"protocol"`
	URLs           []string         `json:"urls"`
	Supports       []string         `json:"supports"`
	Settings       []IndexerSetting `json:"settings,omitempty"`
	IRC            *IndexerIRC      `json:"irc,omitempty"`
	Torznab        *FeedDefinition  `json:"torznab,omitempty"`
	Newznab        *FeedDefinition  `json:"newznab,omitempty"`
	RSS            *FeedDefinition  `json:"rss,omitempty"`
}

// IndexerSetting is one configurable value of an indexer definition.
type IndexerSetting struct {
	Name        string `json:"name"`
	Required    bool   `json:"required,omitempty"`
	Type        string `json:"type"`
	Value       string `json:"value,omitempty"`
	Label       string `json:"label"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
	Help        string `json:"help,omitempty"`
	Regex       string `json:"regex,omitempty"`
}

// IndexerIRC holds the announce network of an IRC indexer.
type IndexerIRC struct {
	Network    string           `json:"network"`
	Server     string           `json:"server"`
	Port       int              `json:"port"`
	TLS        bool             `json:"tls"`
	Channels   []string         `json:"channels"`
	Announcers []string         `json:"announcers"`
	Settings   []IndexerSetting `json:"settings"`
}

// FeedDefinition holds torznab, newznab and rss defaults.
type FeedDefinition struct {
	MinInterval int              `json:"minInterval"`
	Settings    []IndexerSetting `json:"settings"`
}

// IndexerOption is a configured indexer as offered in select inputs.
type IndexerOption struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

// Find returns the definition with the given identifier.
func Find(defs []IndexerDefinition, identifier string) (IndexerDefinition, bool) {
	for _, d := range defs {
		if d.Identifier == identifier {
			return d, true
		}
	}
	return IndexerDefinition{}, false
}
