package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/emotion-check/internal/config"
	"github.com/kozaktomas/emotion-check/internal/constants"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored analysis sessions",
}

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete sessions older than a cutoff",
	Long: `Delete stored sessions, including their frames and analysis, that were
created before the cutoff. The store is selected the same way as for
"serve": DATABASE_URL, then REDIS_URL, then SESSION_DIR.

Examples:
  emotion-check sessions prune
  emotion-check sessions prune --older-than 24h
  emotion-check sessions prune --older-than 0s --dry-run`,
	RunE: runSessionsPrune,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsPruneCmd)

	sessionsPruneCmd.Flags().Duration("older-than", constants.DefaultPruneAge, "Delete sessions created longer ago than this")
	sessionsPruneCmd.Flags().Bool("dry-run", false, "Only print the cutoff")
}

func runSessionsPrune(cmd *cobra.Command, args []string) error {
	olderThan := mustGetDuration(cmd, "older-than")
	if olderThan < 0 {
		return fmt.Errorf("--older-than must not be negative, got %s", olderThan)
	}
	cutoff := time.Now().Add(-olderThan)

	if mustGetBool(cmd, "dry-run") {
		fmt.Printf("Would delete sessions created before %s\n", cutoff.Format(time.RFC3339))
		return nil
	}

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, config.Load())
	if err != nil {
		return err
	}
	defer closeStore()

	removed, err := store.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pruning sessions: %w", err)
	}
	fmt.Printf("Deleted %d sessions created before %s\n", removed, cutoff.Format(time.RFC3339))
	return nil
}
