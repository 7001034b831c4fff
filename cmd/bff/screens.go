package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/autobrr/autobrr-sub001/internal/apiclient"
	"github.com/autobrr/autobrr-sub001/internal/config"
	"github.com/autobrr/autobrr-sub001/internal/form"
	"github.com/autobrr/autobrr-sub001/internal/querycache"
	"github.com/autobrr/autobrr-sub001/internal/screens"
)

// typeRegistries are the sub-form registries keyed by screen id.
var typeRegistries = map[string]form.Resolver{
	"actions":          screens.ActionRegistry,
	"irc_networks":     screens.IrcAuthRegistry,
	"feeds":            screens.FeedRegistry,
	"indexers":         screens.IndexerRegistry,
	"download_clients": screens.DownloadClientRegistry,
	"notifications":    screens.NotificationRegistry,
	"lists":            screens.ListRegistry,
}

// printScreens writes the catalog as a table. Nothing is contacted; the
// client only exists to satisfy the screen constructors.
func printScreens(w io.Writer) error {
	client, err := apiclient.New(config.Defaults().Backend, nil)
	if err != nil {
		return err
	}
	catalog := screens.Catalog(screens.Deps{
		API:   apiclient.NewAPI(client),
		Cache: querycache.New(querycache.NewMemoryStore(0), 0, nil, nil),
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCREEN\tLABEL\tPARENT\tDISCRIMINANT\tTYPES")
	for _, s := range catalog.All() {
		parent := s.Parent
		if parent == "" {
			parent = "-"
		}
		disc, types := "-", "-"
		if s.Discriminant != "" {
			disc = s.Discriminant
		}
		if r, ok := typeRegistries[s.ID]; ok {
			types = strings.Join(r.Discriminants(), ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Label, parent, disc, types)
	}
	return tw.Flush()
}
