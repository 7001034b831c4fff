// Package main is the entry point for the autobrr settings BFF.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/autobrr/autobrr-sub001/internal/config"
	"github.com/autobrr/autobrr-sub001/internal/observability"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("configuration error: %w", err)
		}
		return cfg, nil
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the BFF HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	root := &cobra.Command{
		Use:           "autobrr-bff",
		Short:         "Backend for the autobrr settings screens",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		RunE:          serve.RunE,
		PersistentPreRun: func(*cobra.Command, []string) {
			observability.Version = version
			observability.Commit = commit
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")

	root.AddCommand(
		serve,
		&cobra.Command{
			Use:   "validate-config",
			Short: "Load and validate the configuration, then exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := load(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "configuration ok")
				return nil
			},
		},
		&cobra.Command{
			Use:   "screens",
			Short: "List the settings screens and their form types",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printScreens(cmd.OutOrStdout())
			},
		},
	)
	return root
}
