package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"podcache/internal/cache"
	"podcache/internal/store"
)

var statsPrinter = message.NewPrinter(language.English)

func newCacheCommand(cmdCtx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Cache maintenance",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(cmdCtx))
	cacheCmd.AddCommand(newCacheSweepCommand(cmdCtx))

	return cacheCmd
}

func newCacheStatsCommand(cmdCtx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache usage and free space",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withManager(cmd.Context(), func(ctx context.Context, m *cache.Manager, _ *store.Store) error {
				stats, err := m.CacheStats(ctx)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, stats)
				}

				oldest := "-"
				if stats.OldestDownload != nil {
					oldest = stats.OldestDownload.UTC().Format(time.RFC3339)
				}
				rows := [][]string{
					{"Cached episodes", statsPrinter.Sprintf("%d", stats.TotalFiles)},
					{"Total size", statsPrinter.Sprintf("%.1f MB", stats.TotalSizeMB)},
					{"Oldest download", oldest},
					{"Free space", statsPrinter.Sprintf("%.1f MB", float64(stats.FreeBytes)/1024/1024)},
					{"Filesystem size", statsPrinter.Sprintf("%.1f MB", float64(stats.TotalFSBytes)/1024/1024)},
					{"Free ratio", fmt.Sprintf("%.1f%%", stats.FreeRatio*100)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newCacheSweepCommand(cmdCtx *commandContext) *cobra.Command {
	var jsonOut bool
	var days int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete cached episodes past the retention horizon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withManager(cmd.Context(), func(ctx context.Context, m *cache.Manager, _ *store.Store) error {
				result, err := m.SweepExpired(ctx, days)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d cached episode(s), freed %s MB\n",
					result.Deleted, statsPrinter.Sprintf("%.1f", result.FreedMB))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	cmd.Flags().IntVar(&days, "days", 0, "Retention horizon in days (defaults to the configured value)")
	return cmd
}
