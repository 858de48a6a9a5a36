package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crossrepo/crossrepo/pkg/mapping"
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a commit to its counterparts on the other side of a repo pair",
	Run: func(cmd *cobra.Command, args []string) {
		directionFlag, _ := cmd.Flags().GetString("direction")
		direction, err := mapping.ParseDirection(directionFlag)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Invalid --direction: %s\n", err)
			os.Exit(1)
		}
		pair := parseRepoPair(cmd)
		commit := mustParseCommitFlag(cmd, "commit")

		cfg := loadConfig()
		store, database := connectStore(cmd)
		defer database.Close()

		registry, err := mapping.NewCachedRegistry(store, cfg.GetVersionCacheSize(), cfg.GetVersionCacheExpiry())
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to build version cache: %s\n", err)
			os.Exit(1)
		}
		resolver := mapping.NewResolver(store, mapping.WithRegistry(registry))
		resolutions, err := resolver.Resolve(cmd.Context(), direction, pair, commit)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to resolve: %s\n", err)
			os.Exit(1)
		}
		for _, res := range resolutions {
			fmt.Println(resolver.Explain(cmd.Context(), res))
		}
	},
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(resolveCmd)
	addRepoPairFlags(resolveCmd)
	resolveCmd.Flags().String("direction", "large-to-small", "resolution direction: small-to-large or large-to-small")
	resolveCmd.Flags().String("commit", "", "commit id to resolve (64 hex characters)")
	_ = resolveCmd.MarkFlagRequired("commit")
}
