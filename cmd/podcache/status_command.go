package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"podcache/internal/cache"
	"podcache/internal/store"
)

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show metadata database health and cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withManager(cmd.Context(), func(ctx context.Context, m *cache.Manager, st *store.Store) error {
				health, healthErr := st.CheckHealth(ctx)
				stats, statsErr := m.CacheStats(ctx)

				if jsonOut {
					payload := map[string]any{
						"database": health,
						"cache":    stats,
					}
					if healthErr != nil {
						payload["database_error"] = healthErr.Error()
					}
					if statsErr != nil {
						payload["cache_error"] = statsErr.Error()
					}
					return writeJSON(cmd, payload)
				}

				rows := [][]string{
					{"Database path", health.DBPath},
					{"Database exists", yesNo(health.DatabaseExists)},
					{"Database readable", yesNo(health.DatabaseReadable)},
					{"Tables present", yesNo(health.TablesExist)},
				}
				if healthErr != nil {
					rows = append(rows, []string{"Database error", healthErr.Error()})
				}
				if statsErr != nil {
					rows = append(rows, []string{"Cache error", statsErr.Error()})
				} else {
					rows = append(rows,
						[]string{"Cached episodes", statsPrinter.Sprintf("%d", stats.TotalFiles)},
						[]string{"Cache size", statsPrinter.Sprintf("%.1f MB", stats.TotalSizeMB)},
						[]string{"Free ratio", fmt.Sprintf("%.1f%%", stats.FreeRatio*100)},
					)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
