package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crossrepo/crossrepo/pkg/config"
	"github.com/crossrepo/crossrepo/pkg/db"
	"github.com/crossrepo/crossrepo/pkg/mapping"
	"github.com/crossrepo/crossrepo/pkg/mapping/postgres"
)

var cfgFile string

// rootCmd represents the base command when called without any sub-commands
var rootCmd = &cobra.Command{
	Use:   "crossrepo",
	Short: "Query and manage cross-repository commit sync mappings.",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

//nolint:gochecknoinits
func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default is $HOME/.crossrepo.yaml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".crossrepo")
	}

	viper.SetEnvPrefix("CROSSREPO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // support nested config
	viper.AutomaticEnv()                                   // read in environment variables that match
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Println("Error while reading config file:", viper.ConfigFileUsed(), "-", err)
		}
	}
}

func loadConfig() *config.Config {
	return config.NewConfig()
}

// connectStore connects to the configured database and returns the SQL store.
// The caller closes the database.
func connectStore(cmd *cobra.Command) (*postgres.Store, db.Database) {
	cfg := loadConfig()
	database, err := db.ConnectDB(cmd.Context(), cfg.GetDatabaseParams())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to connect to the database: %s\n", err)
		os.Exit(1)
	}
	return postgres.NewStore(database), database
}

func parseRepoPair(cmd *cobra.Command) mapping.RepoPair {
	small, _ := cmd.Flags().GetInt64("small-repo")
	large, _ := cmd.Flags().GetInt64("large-repo")
	return mapping.RepoPair{
		Small: mapping.RepoID(small),
		Large: mapping.RepoID(large),
	}
}

func addRepoPairFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("small-repo", 0, "small repository id")
	cmd.Flags().Int64("large-repo", 0, "large repository id")
	_ = cmd.MarkFlagRequired("small-repo")
	_ = cmd.MarkFlagRequired("large-repo")
}

func mustParseCommitFlag(cmd *cobra.Command, name string) mapping.CommitID {
	value, _ := cmd.Flags().GetString(name)
	id, err := mapping.ParseCommitID(value)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Invalid --%s: %s\n", name, err)
		os.Exit(1)
	}
	return id
}
