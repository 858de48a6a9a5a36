package postgres_test

import (
	"log"
	"os"
	"testing"

	"github.com/ory/dockertest/v3"

	"github.com/crossrepo/crossrepo/pkg/mapping/postgres"
	"github.com/crossrepo/crossrepo/pkg/mapping/storetest"
	"github.com/crossrepo/crossrepo/pkg/testutil"
)

var databaseURI string

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("could not connect to Docker: %s", err)
	}
	var closer func()
	databaseURI, closer = testutil.GetDBInstance(pool)
	code := m.Run()
	closer()
	os.Exit(code)
}

func TestPostgresSyncStore(t *testing.T) {
	storetest.TestSyncStore(t, func(t testing.TB) storetest.SyncStore {
		database, _ := testutil.GetDB(t, databaseURI)
		return postgres.NewStore(database)
	})
}
