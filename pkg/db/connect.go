package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crossrepo/crossrepo/pkg/db/params"
	"github.com/crossrepo/crossrepo/pkg/logging"
)

const (
	DefaultMaxOpenConnections    = 25
	DefaultMaxIdleConnections    = 25
	DefaultConnectionMaxLifetime = 5 * time.Minute

	connectFirstWait = 50 * time.Millisecond
	connectMaxWait   = 3 * time.Second
)

// BuildDatabaseConnection returns a database connection based on a pool for the configuration
// in dbParams. It panics on connection failure - used only during startup.
func BuildDatabaseConnection(ctx context.Context, dbParams params.Database) Database {
	database, err := ConnectDB(ctx, dbParams)
	if err != nil {
		panic(err)
	}
	return database
}

// ConnectDBPool connects to a database using the database params and returns a connection pool
func ConnectDBPool(ctx context.Context, p params.Database) (*pgxpool.Pool, error) {
	normalizeDBParams(&p)
	config, err := pgxpool.ParseConfig(p.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	config.MaxConns = p.MaxOpenConnections
	config.MinConns = p.MaxIdleConnections
	config.MaxConnLifetime = p.ConnectionMaxLifetime

	log := logging.Default().WithFields(logging.Fields{
		"max_open_conns":    p.MaxOpenConnections,
		"max_idle_conns":    p.MaxIdleConnections,
		"db":                config.ConnConfig.Database,
		"user":              config.ConnConfig.User,
		"host":              config.ConnConfig.Host,
		"port":              config.ConnConfig.Port,
		"conn_max_lifetime": p.ConnectionMaxLifetime,
	})
	log.Info("Connecting to the DB")

	pool, err := tryConnectConfig(ctx, config, log)
	if err != nil {
		return nil, err
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	log.Info("DB connection established")
	return pool, nil
}

// ConnectDB connects to a database using the database params and returns Database
func ConnectDB(ctx context.Context, p params.Database) (Database, error) {
	pool, err := ConnectDBPool(ctx, p)
	if err != nil {
		return nil, err
	}
	return NewPgxDatabase(pool), nil
}

func normalizeDBParams(p *params.Database) {
	if p.MaxOpenConnections == 0 {
		p.MaxOpenConnections = DefaultMaxOpenConnections
	}

	if p.MaxIdleConnections == 0 {
		p.MaxIdleConnections = DefaultMaxIdleConnections
	}

	if p.ConnectionMaxLifetime == 0 {
		p.ConnectionMaxLifetime = DefaultConnectionMaxLifetime
	}
}

func tryConnectConfig(ctx context.Context, config *pgxpool.Config, log logging.Logger) (*pgxpool.Pool, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = connectFirstWait
	bo.MaxElapsedTime = connectMaxWait
	pool, err := backoff.RetryWithData(func() (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("error while connecting to DB: %w", err))
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			if !isDialError(err) {
				return nil, backoff.Permanent(fmt.Errorf("error while connecting to DB: %w", err))
			}
			log.WithError(err).Info("Could not connect to DB: Trying again")
			return nil, err
		}
		return pool, nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, fmt.Errorf("could not connect to DB: %w", err)
	}
	return pool, nil
}
