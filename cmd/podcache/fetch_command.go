package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"podcache/internal/cache"
	"podcache/internal/store"
)

func newFetchCommand(cmdCtx *commandContext) *cobra.Command {
	var ownerID string

	cmd := &cobra.Command{
		Use:   "fetch <episode-id> <url>",
		Short: "Download an episode into the cache and wait for it",
		Long: "Fetch resolves the episode against the cache first; a valid cached copy\n" +
			"returns immediately. Otherwise the episode is downloaded from the URL and\n" +
			"the command waits until the transfer finishes.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			episodeID := strings.TrimSpace(args[0])
			remoteURL := strings.TrimSpace(args[1])
			if episodeID == "" || remoteURL == "" {
				return fmt.Errorf("episode id and url are required")
			}
			owner := strings.TrimSpace(ownerID)
			if owner == "" {
				owner = "cli"
			}
			return cmdCtx.withManager(cmd.Context(), func(ctx context.Context, m *cache.Manager, _ *store.Store) error {
				out := cmd.OutOrStdout()

				path, err := m.Resolve(ctx, episodeID)
				if err != nil {
					return err
				}
				if path != "" {
					fmt.Fprintln(out, path)
					return nil
				}

				m.Trigger(episodeID, remoteURL, owner)
				if err := waitForTransfer(ctx, m, episodeID, out); err != nil {
					return err
				}

				path, err = m.Resolve(ctx, episodeID)
				if err != nil {
					return err
				}
				if path == "" {
					return fmt.Errorf("download of %s failed; see the log for details", episodeID)
				}
				fmt.Fprintln(out, path)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "", "Owner recorded against the download (defaults to \"cli\")")
	return cmd
}

// waitForTransfer polls the transfer until it leaves the single-flight set,
// painting a progress line when stdout is a terminal.
func waitForTransfer(ctx context.Context, m *cache.Manager, episodeID string, out io.Writer) error {
	interactive := isInteractive(out)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		progress := m.ProgressOf(episodeID)
		if progress == nil {
			if interactive {
				fmt.Fprint(out, "\r\033[K")
			}
			return nil
		}
		if interactive {
			fmt.Fprintf(out, "\rdownloading %s: %d%%", episodeID, progress.Percent)
		}
	}
}

func isInteractive(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
