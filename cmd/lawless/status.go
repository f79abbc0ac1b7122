package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the configured backends and whether the remote store answers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		sync := "local-only"
		if a.store.CheckAvailability(cmd.Context()) {
			sync = "synced"
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "mode:        %s\n", cfg.Mode)
		fmt.Fprintf(out, "storage:     %s\n", cfg.Storage.Backend)
		fmt.Fprintf(out, "local cache: %s\n", cfg.Cache.Path)
		fmt.Fprintf(out, "completion:  %s (%s)\n", cfg.Completion.Backend, cfg.Completion.Model)
		fmt.Fprintf(out, "sync:        %s\n", sync)
		return nil
	},
}
