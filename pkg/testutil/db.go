package testutil

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"

	"github.com/crossrepo/crossrepo/pkg/db"
	"github.com/crossrepo/crossrepo/pkg/db/params"
)

const (
	DBContainerTimeoutSeconds = 60 * 30 // 30 minutes

	dbUser     = "crossrepo"
	dbPassword = "crossrepo"
	dbName     = "crossrepo_db"
)

var keepDB = flag.Bool("keep-db", false, "keep test DB instance running")
var addrDB = flag.String("db", "", "DB address to use")

// GetDBInstance returns a connection string for a running postgres, starting
// a container unless -db supplied one, and a closer to tear it down.
func GetDBInstance(pool *dockertest.Pool) (string, func()) {
	if len(*addrDB) > 0 {
		// use supplied DB connection for testing
		if err := verifyDBConnectionString(*addrDB); err != nil {
			log.Fatalf("could not connect to postgres: %s", err)
		}
		return *addrDB, func() {}
	}
	resource, err := pool.Run("postgres", "15", []string{
		"POSTGRES_USER=" + dbUser,
		"POSTGRES_PASSWORD=" + dbPassword,
		"POSTGRES_DB=" + dbName,
	})
	if err != nil {
		log.Fatalf("could not start postgresql: %s", err)
	}

	// expire the container, just to be on the safe side
	if !*keepDB {
		err = resource.Expire(DBContainerTimeoutSeconds)
		if err != nil {
			log.Fatalf("could not expire postgres container")
		}
	}

	uri := fmt.Sprintf("postgres://%s:%s@localhost:%s/%s?sslmode=disable",
		dbUser, dbPassword, resource.GetPort("5432/tcp"), dbName)

	// wait for container to start and connect to db
	if err = pool.Retry(func() error {
		return verifyDBConnectionString(uri)
	}); err != nil {
		log.Fatalf("could not connect to postgres: %s", err)
	}

	closer := func() {
		if *keepDB {
			return
		}
		err := pool.Purge(resource)
		if err != nil {
			log.Fatalf("could not kill postgres container")
		}
	}
	return uri, closer
}

func verifyDBConnectionString(uri string) error {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, uri)
	if err != nil {
		return err
	}
	defer pool.Close()
	return pool.Ping(ctx)
}

type GetDBOptions struct {
	ApplyDDL bool
}

type GetDBOption func(options *GetDBOptions)

func WithGetDBApplyDDL(apply bool) GetDBOption {
	return func(options *GetDBOptions) {
		options.ApplyDDL = apply
	}
}

// GetDB connects to the shared postgres under a fresh schema, so tests stay
// isolated from one another, and applies migrations unless told otherwise.
func GetDB(t testing.TB, uri string, opts ...GetDBOption) (db.Database, string) {
	options := &GetDBOptions{
		ApplyDDL: true,
	}
	for _, opt := range opts {
		opt(options)
	}
	ctx := context.Background()

	generatedSchema := fmt.Sprintf("schema_%s",
		strings.ReplaceAll(uuid.New().String(), "-", ""))

	connURI := fmt.Sprintf("%s&search_path=%s", uri, generatedSchema)
	database, err := db.ConnectDB(ctx, params.Database{ConnectionString: connURI})
	if err != nil {
		t.Fatalf("could not connect to PostgreSQL: %s", err)
	}
	t.Cleanup(database.Close)

	_, err = database.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+generatedSchema)
	if err != nil {
		t.Fatalf("could not create schema: %v", err)
	}

	if options.ApplyDDL {
		err := db.MigrateUp(params.Database{ConnectionString: connURI})
		if err != nil {
			t.Fatal("could not migrate schema:", err)
		}
	}

	return database, connURI
}

func Must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("error returned for operation: %v", err)
	}
}

func MustDo(t testing.TB, what string, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s, expected no error, got err=%s", what, err)
	}
}
