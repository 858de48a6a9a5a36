package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crossrepo/crossrepo/pkg/db"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage schema migrations",
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		version, dirty, err := db.MigrateVersion(cfg.GetDatabaseParams())
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to get schema version: %s\n", err)
			os.Exit(1)
		}
		fmt.Printf("Database schema version: %d, dirty: %t\n", version, dirty)
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		err := db.MigrateUp(cfg.GetDatabaseParams())
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to migrate up: %s\n", err)
			os.Exit(1)
		}
		fmt.Println("Schema is up to date")
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Apply all down migrations",
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			fmt.Println("Migrating down drops all mapping data. Re-run with --force to proceed.")
			return
		}
		cfg := loadConfig()
		err := db.MigrateDown(cfg.GetDatabaseParams())
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to migrate down: %s\n", err)
			os.Exit(1)
		}
		fmt.Println("Schema removed")
	},
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	_ = migrateDownCmd.Flags().Bool("force", false, "actually drop the schema")
}
