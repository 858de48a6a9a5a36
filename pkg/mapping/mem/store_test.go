package mem_test

import (
	"testing"

	"github.com/crossrepo/crossrepo/pkg/mapping/mem"
	"github.com/crossrepo/crossrepo/pkg/mapping/storetest"
)

func TestMemSyncStore(t *testing.T) {
	storetest.TestSyncStore(t, func(t testing.TB) storetest.SyncStore {
		return mem.New()
	})
}
