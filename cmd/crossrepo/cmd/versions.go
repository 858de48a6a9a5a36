package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crossrepo/crossrepo/pkg/mapping"
)

// versionsCmd represents the versions command
var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Manage sync version configurations",
}

var versionsRegisterCmd = &cobra.Command{
	Use:   "register <name> <config-file>",
	Short: "Register a sync version configuration",
	Args:  cobra.ExactArgs(2), //nolint:gomnd
	Run: func(cmd *cobra.Command, args []string) {
		name := mapping.SyncVersion(args[0])
		payload, err := os.ReadFile(args[1])
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to read config file: %s\n", err)
			os.Exit(1)
		}

		store, database := connectStore(cmd)
		defer database.Close()

		err = store.Register(cmd.Context(), name, payload)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to register version: %s\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registered sync version %s\n", name)
	},
}

var versionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sync versions",
	Run: func(cmd *cobra.Command, args []string) {
		store, database := connectStore(cmd)
		defer database.Close()

		names, err := store.ListVersions(cmd.Context())
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to list versions: %s\n", err)
			os.Exit(1)
		}
		for _, name := range names {
			fmt.Println(name)
		}
	},
}

var versionsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a sync version configuration",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, database := connectStore(cmd)
		defer database.Close()

		cfg, err := store.Resolve(cmd.Context(), mapping.SyncVersion(args[0]))
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to resolve version: %s\n", err)
			os.Exit(1)
		}
		fmt.Printf("Name: %s\nChecksum: %x\nPayload (%d bytes):\n", cfg.Name, cfg.Checksum, len(cfg.Payload))
		_, _ = os.Stdout.Write(cfg.Payload)
		fmt.Println()
	},
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(versionsCmd)
	versionsCmd.AddCommand(versionsRegisterCmd)
	versionsCmd.AddCommand(versionsListCmd)
	versionsCmd.AddCommand(versionsShowCmd)
}
