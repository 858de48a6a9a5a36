// Package config reads and validates process configuration, with viper.
// Configuration keys map to CROSSREPO_ environment variables; a config file
// is optional.
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/crossrepo/crossrepo/pkg/db/params"
	"github.com/crossrepo/crossrepo/pkg/logging"
)

const (
	LoggingFormatKey        = "logging.format"
	LoggingLevelKey         = "logging.level"
	LoggingOutputKey        = "logging.output"
	LoggingFileMaxSizeMBKey = "logging.file_max_size_mb"
	LoggingFilesKeepKey     = "logging.files_keep"

	DatabaseConnectionStringKey      = "database.connection_string"
	DatabaseMaxOpenConnectionsKey    = "database.max_open_connections"
	DatabaseMaxIdleConnectionsKey    = "database.max_idle_connections"
	DatabaseConnectionMaxLifetimeKey = "database.connection_max_lifetime"

	VersionCacheSizeKey   = "cache.size"
	VersionCacheExpiryKey = "cache.expiry"
)

const (
	DefaultLoggingFormat        = "text"
	DefaultLoggingLevel         = "INFO"
	DefaultLoggingOutput        = "-"
	DefaultLoggingFileMaxSizeMB = 100
	DefaultLoggingFilesKeep     = 100

	DefaultDatabaseConnectionString = "postgres://localhost:5432/postgres?search_path=crossrepo&sslmode=disable"
	DefaultMaxOpenConnections       = 25
	DefaultMaxIdleConnections       = 25
	DefaultConnectionMaxLifetime    = 5 * time.Minute

	DefaultVersionCacheSize   = 1024
	DefaultVersionCacheExpiry = 20 * time.Second
)

type Config struct{}

func NewConfig() *Config {
	setDefaults()
	setupLogger()
	return &Config{}
}

func setDefaults() {
	viper.SetDefault(LoggingFormatKey, DefaultLoggingFormat)
	viper.SetDefault(LoggingLevelKey, DefaultLoggingLevel)
	viper.SetDefault(LoggingOutputKey, DefaultLoggingOutput)
	viper.SetDefault(LoggingFileMaxSizeMBKey, DefaultLoggingFileMaxSizeMB)
	viper.SetDefault(LoggingFilesKeepKey, DefaultLoggingFilesKeep)

	viper.SetDefault(DatabaseConnectionStringKey, DefaultDatabaseConnectionString)
	viper.SetDefault(DatabaseMaxOpenConnectionsKey, DefaultMaxOpenConnections)
	viper.SetDefault(DatabaseMaxIdleConnectionsKey, DefaultMaxIdleConnections)
	viper.SetDefault(DatabaseConnectionMaxLifetimeKey, DefaultConnectionMaxLifetime)

	viper.SetDefault(VersionCacheSizeKey, DefaultVersionCacheSize)
	viper.SetDefault(VersionCacheExpiryKey, DefaultVersionCacheExpiry)
}

func setupLogger() {
	logging.SetOutputFormat(viper.GetString(LoggingFormatKey))
	logging.SetOutputs(viper.GetStringSlice(LoggingOutputKey),
		viper.GetInt(LoggingFileMaxSizeMBKey), viper.GetInt(LoggingFilesKeepKey))
	logging.SetLevel(viper.GetString(LoggingLevelKey))
}

func (c *Config) GetDatabaseParams() params.Database {
	return params.Database{
		ConnectionString:      viper.GetString(DatabaseConnectionStringKey),
		MaxOpenConnections:    viper.GetInt32(DatabaseMaxOpenConnectionsKey),
		MaxIdleConnections:    viper.GetInt32(DatabaseMaxIdleConnectionsKey),
		ConnectionMaxLifetime: viper.GetDuration(DatabaseConnectionMaxLifetimeKey),
	}
}

func (c *Config) GetVersionCacheSize() int {
	return viper.GetInt(VersionCacheSizeKey)
}

func (c *Config) GetVersionCacheExpiry() time.Duration {
	return viper.GetDuration(VersionCacheExpiryKey)
}
