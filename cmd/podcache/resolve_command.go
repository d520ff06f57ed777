package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"podcache/internal/cache"
	"podcache/internal/store"
)

func newResolveCommand(cmdCtx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "resolve <episode-id>",
		Short: "Look up the cached file for an episode",
		Long: "Resolve prints the local path of a validated cached copy, or reports a miss.\n" +
			"Stale or corrupt copies are evicted during the lookup.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			episodeID := strings.TrimSpace(args[0])
			if episodeID == "" {
				return fmt.Errorf("episode id is required")
			}
			return cmdCtx.withManager(cmd.Context(), func(ctx context.Context, m *cache.Manager, _ *store.Store) error {
				path, err := m.Resolve(ctx, episodeID)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, map[string]any{
						"episode_id": episodeID,
						"hit":        path != "",
						"path":       path,
					})
				}
				out := cmd.OutOrStdout()
				if path == "" {
					fmt.Fprintf(out, "miss: no cached copy for %s\n", episodeID)
					return nil
				}
				fmt.Fprintln(out, path)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}
