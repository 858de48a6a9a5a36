package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crossrepo/crossrepo/pkg/mapping"
)

// recordCmd represents the record command
var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record the outcome of synchronizing one commit",
}

var recordMappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Record an exact commit mapping",
	Run: func(cmd *cobra.Command, args []string) {
		pair := parseRepoPair(cmd)
		m := mapping.Mapping{
			SmallRepo:   pair.Small,
			SmallCommit: mustParseCommitFlag(cmd, "small-commit"),
			LargeRepo:   pair.Large,
			LargeCommit: mustParseCommitFlag(cmd, "large-commit"),
		}
		if versionFlag, _ := cmd.Flags().GetString("sync-version"); versionFlag != "" {
			v := mapping.SyncVersion(versionFlag)
			m.Version = &v
		}

		store, database := connectStore(cmd)
		defer database.Close()

		coordinator := mapping.NewCoordinator(store)
		outcome, err := coordinator.Commit(cmd.Context(), mapping.Rewritten(m))
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to record mapping: %s\n", err)
			os.Exit(1)
		}
		fmt.Println(outcome)
	},
}

var recordEquivalenceCmd = &cobra.Command{
	Use:   "equivalence",
	Short: "Record a working copy equivalence",
	Run: func(cmd *cobra.Command, args []string) {
		pair := parseRepoPair(cmd)
		e := mapping.Equivalence{
			SmallRepo:   pair.Small,
			LargeRepo:   pair.Large,
			LargeCommit: mustParseCommitFlag(cmd, "large-commit"),
		}
		if smallFlag, _ := cmd.Flags().GetString("small-commit"); smallFlag != "" {
			id, err := mapping.ParseCommitID(smallFlag)
			if err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Invalid --small-commit: %s\n", err)
				os.Exit(1)
			}
			e.SmallCommit = &id
		}

		store, database := connectStore(cmd)
		defer database.Close()

		coordinator := mapping.NewCoordinator(store)
		outcome, err := coordinator.Commit(cmd.Context(), mapping.EquivalentWorkingCopy(e))
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to record equivalence: %s\n", err)
			os.Exit(1)
		}
		fmt.Println(outcome)
	},
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.AddCommand(recordMappingCmd)
	recordCmd.AddCommand(recordEquivalenceCmd)

	addRepoPairFlags(recordMappingCmd)
	recordMappingCmd.Flags().String("small-commit", "", "small repo commit id (64 hex characters)")
	recordMappingCmd.Flags().String("large-commit", "", "large repo commit id (64 hex characters)")
	recordMappingCmd.Flags().String("sync-version", "", "sync version the mapping was produced under")
	_ = recordMappingCmd.MarkFlagRequired("small-commit")
	_ = recordMappingCmd.MarkFlagRequired("large-commit")

	addRepoPairFlags(recordEquivalenceCmd)
	recordEquivalenceCmd.Flags().String("small-commit", "", "small repo commit id, omit for an empty projection")
	recordEquivalenceCmd.Flags().String("large-commit", "", "large repo commit id (64 hex characters)")
	_ = recordEquivalenceCmd.MarkFlagRequired("large-commit")
}
