// Package storetest holds a conformance suite that every mapping store
// driver must pass. Driver packages call TestSyncStore from their own tests.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/crossrepo/crossrepo/pkg/mapping"
)

// SyncStore is what a driver provides: record storage plus the version
// registry, backed by the same medium.
type SyncStore interface {
	mapping.Store
	mapping.VersionRegistry
}

// MakeStore returns a fresh, empty store for a single subtest.
type MakeStore func(t testing.TB) SyncStore

func commitID(b byte) mapping.CommitID {
	var id mapping.CommitID
	for i := range id {
		id[i] = b
	}
	return id
}

func versionPtr(name string) *mapping.SyncVersion {
	v := mapping.SyncVersion(name)
	return &v
}

// TestSyncStore runs the full conformance suite against the given driver.
func TestSyncStore(t *testing.T, ms MakeStore) {
	t.Run("MappingRoundTrip", func(t *testing.T) { testMappingRoundTrip(t, ms) })
	t.Run("MappingIdempotentReplay", func(t *testing.T) { testMappingIdempotentReplay(t, ms) })
	t.Run("MappingConflict", func(t *testing.T) { testMappingConflict(t, ms) })
	t.Run("MappingMultiValuedBySmall", func(t *testing.T) { testMappingMultiValuedBySmall(t, ms) })
	t.Run("MappingBulkInsert", func(t *testing.T) { testMappingBulkInsert(t, ms) })
	t.Run("MappingValidation", func(t *testing.T) { testMappingValidation(t, ms) })
	t.Run("EquivalenceRoundTrip", func(t *testing.T) { testEquivalenceRoundTrip(t, ms) })
	t.Run("EquivalenceEmptyProjection", func(t *testing.T) { testEquivalenceEmptyProjection(t, ms) })
	t.Run("EquivalenceConflict", func(t *testing.T) { testEquivalenceConflict(t, ms) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, ms) })
	t.Run("VersionRegistry", func(t *testing.T) { testVersionRegistry(t, ms) })
	t.Run("ConcurrentIdenticalInserts", func(t *testing.T) { testConcurrentIdenticalInserts(t, ms) })
}

func testMappingRoundTrip(t *testing.T, ms MakeStore) {
	ctx := context.Background()
	store := ms(t)
	m := mapping.Mapping{
		SmallRepo:   1,
		SmallCommit: commitID(0xaa),
		LargeRepo:   2,
		LargeCommit: commitID(0xbb),
		Version:     versionPtr("v1"),
	}

	outcome, err := store.InsertMapping(ctx, m)
	require.NoError(t, err)
	require.Equal(t, mapping.OutcomeCreated, outcome)

	got, err := store.GetMappingByLarge(ctx, m.Pair(), m.LargeCommit)
	require.NoError(t, err)
	require.True(t, got.Equal(m), "read back a different mapping: %+v", got)

	bySmall, err := store.ListMappingsBySmall(ctx, m.Pair(), m.SmallCommit)
	require.NoError(t, err)
	require.Len(t, bySmall, 1)
	require.True(t, bySmall[0].Equal(m))
}

func testMappingIdempotentReplay(t *testing.T, ms MakeStore) {
	ctx := context.Background()
	store := ms(t)
	m := mapping.Mapping{
		SmallRepo:   1,
		SmallCommit: commitID(0x01),
		LargeRepo:   2,
		LargeCommit: commitID(0x02),
	}

	outcome, err := store.InsertMapping(ctx, m)
	require.NoError(t, err)
	require.Equal(t, mapping.OutcomeCreated, outcome)

	// at-least-once delivery replays the exact same record
	outcome, err = store.InsertMapping(ctx, m)
	require.NoError(t, err)
	require.Equal(t, mapping.OutcomeAlreadyExists, outcome)
}

func testMappingConflict(t *testing.T, ms MakeStore) {
	ctx := context.Background()
	store := ms(t)
	m := mapping.Mapping{
		SmallRepo:   1,
		SmallCommit: commitID(0x01),
		LargeRepo:   2,
		LargeCommit: commitID(0x02),
		Version:     versionPtr("v1"),
	}
	_, err := store.InsertMapping(ctx, m)
	require.NoError(t, err)

	conflicting := m
	conflicting.SmallCommit = commitID(0x03)
	_, err = store.InsertMapping(ctx, conflicting)
	require.ErrorIs(t, err, mapping.ErrConflictingMapping)

	// a differing version on the same key also conflicts
	reversioned := m
	reversioned.Version = versionPtr("v2")
	_, err = store.InsertMapping(ctx, reversioned)
	require.ErrorIs(t, err, mapping.ErrConflictingMapping)

	// the original row is untouched
	got, err := store.GetMappingByLarge(ctx, m.Pair(), m.LargeCommit)
	require.NoError(t, err)
	require.True(t, got.Equal(m))
}

func testMappingMultiValuedBySmall(t *testing.T, ms MakeStore) {
	ctx := context.Background()
	store := ms(t)
	pair := mapping.RepoPair{Small: 1, Large: 2}
	small := commitID(0xaa)

	// one small commit legitimately remapped to two large commits, e.g.
	// after a megarepo history rewrite
	for _, largeByte := range []byte{0x10, 0x20} {
		_, err := store.InsertMapping(ctx, mapping.Mapping{
			SmallRepo:   pair.Small,
			SmallCommit: small,
			LargeRepo:   pair.Large,
			LargeCommit: commitID(largeByte),
		})
		require.NoError(t, err)
	}

	got, err := store.ListMappingsBySmall(ctx, pair, small)
	require.NoError(t, err)
	require.Len(t, got, 2)
	larges := map[mapping.CommitID]bool{}
	for _, m := range got {
		larges[m.LargeCommit] = true
	}
	require.True(t, larges[commitID(0x10)])
	require.True(t, larges[commitID(0x20)])
}

func testMappingBulkInsert(t *testing.T, ms MakeStore) {
	ctx := context.Background()
	store := ms(t)
	batch := []mapping.Mapping{
		{SmallRepo: 1, SmallCommit: commitID(0x01), LargeRepo: 2, LargeCommit: commitID(0x11)},
		{SmallRepo: 1, SmallCommit: commitID(0x02), LargeRepo: 2, LargeCommit: commitID(0x12)},
		{SmallRepo: 1, SmallCommit: commitID(0x03), LargeRepo: 2, LargeCommit: commitID(0x13)},
	}

	created, err := store.InsertMappings(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 3, created)

	// replaying the batch plus one new record creates only the new one
	batch = append(batch, mapping.Mapping{
		SmallRepo: 1, SmallCommit: commitID(0x04), LargeRepo: 2, LargeCommit: commitID(0x14),
	})
	created, err = store.InsertMappings(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	// a batch with a conflicting record fails whole
	bad := []mapping.Mapping{
		{SmallRepo: 1, SmallCommit: commitID(0x05), LargeRepo: 2, LargeCommit: commitID(0x15)},
		{SmallRepo: 1, SmallCommit: commitID(0x99), LargeRepo: 2, LargeCommit: commitID(0x11)},
	}
	_, err = store.InsertMappings(ctx, bad)
	require.ErrorIs(t, err, mapping.ErrConflictingMapping)
}

func testMappingValidation(t *testing.T, ms MakeStore) {
	ctx := context.Background()
	store := ms(t)

	_, err := store.InsertMapping(ctx, mapping.Mapping{
		SmallRepo: 1, LargeRepo: 2, LargeCommit: commitID(0x01),
	})
	require.ErrorIs(t, err, mapping.ErrMalformedIdentifier, "zero small commit must be rejected")

	_, err = store.InsertMapping(ctx, mapping.Mapping{
		SmallRepo: 1, SmallCommit: commitID(0x01), LargeRepo: 2,
	})
	require.ErrorIs(t, err, mapping.ErrMalformedIdentifier, "zero large commit must be rejected")
}

func testEquivalenceRoundTrip(t *testing.T, ms MakeStore) {
	ctx := context.Background()
	store := ms(t)
	small := commitID(0xcc)
	e := mapping.Equivalence{
		SmallRepo:   1,
		SmallCommit: &small,
		LargeRepo:   2,
		LargeCommit: commitID(0xdd),
	}

	outcome, err := store.InsertEquivalence(ctx, e)
	require.NoError(t, err)
	require.Equal(t, mapping.OutcomeCreated, outcome)

	got, err := store.GetEquivalenceByLarge(ctx, e.Pair(), e.LargeCommit)
	require.NoError(t, err)
	require.True(t, got.Equal(e))

	bySmall, err := store.ListEquivalencesBySmall(ctx, e.Pair(), small)
	require.NoError(t, err)
	require.Len(t, bySmall, 1)
	require.True(t, bySmall[0].Equal(e))

	outcome, err = store.InsertEquivalence(ctx, e)
	require.NoError(t, err)
	require.Equal(t, mapping.OutcomeAlreadyExists, outcome)
}

func testEquivalenceEmptyProjection(t *testing.T, ms MakeStore) {
	ctx := context.Background()
	store := ms(t)
	// nil small commit: the large commit projects to an empty working copy
	e := mapping.Equivalence{
		SmallRepo:   1,
		SmallCommit: nil,
		LargeRepo:   2,
		LargeCommit: commitID(0xee),
	}

	outcome, err := store.InsertEquivalence(ctx, e)
	require.NoError(t, err)
	require.Equal(t, mapping.OutcomeCreated, outcome)

	got, err := store.GetEquivalenceByLarge(ctx, e.Pair(), e.LargeCommit)
	require.NoError(t, err)
	require.Nil(t, got.SmallCommit)
	require.True(t, got.Equal(e))
}

func testEquivalenceConflict(t *testing.T, ms MakeStore) {
	ctx := context.Background()
	store := ms(t)
	small := commitID(0x01)
	e := mapping.Equivalence{
		SmallRepo:   1,
		SmallCommit: &small,
		LargeRepo:   2,
		LargeCommit: commitID(0x02),
	}
	_, err := store.InsertEquivalence(ctx, e)
	require.NoError(t, err)

	otherSmall := commitID(0x03)
	conflicting := e
	conflicting.SmallCommit = &otherSmall
	_, err = store.InsertEquivalence(ctx, conflicting)
	require.ErrorIs(t, err, mapping.ErrConflictingEquivalence)

	// nil vs non-nil small commit is also a conflict
	conflicting.SmallCommit = nil
	_, err = store.InsertEquivalence(ctx, conflicting)
	require.ErrorIs(t, err, mapping.ErrConflictingEquivalence)

	got, err := store.GetEquivalenceByLarge(ctx, e.Pair(), e.LargeCommit)
	require.NoError(t, err)
	require.True(t, got.Equal(e))
}

func testNotFound(t *testing.T, ms MakeStore) {
	ctx := context.Background()
	store := ms(t)
	pair := mapping.RepoPair{Small: 1, Large: 2}

	_, err := store.GetMappingByLarge(ctx, pair, commitID(0x42))
	require.ErrorIs(t, err, mapping.ErrNotFound)

	_, err = store.GetEquivalenceByLarge(ctx, pair, commitID(0x42))
	require.ErrorIs(t, err, mapping.ErrNotFound)

	got, err := store.ListMappingsBySmall(ctx, pair, commitID(0x42))
	require.NoError(t, err)
	require.Empty(t, got)

	eqs, err := store.ListEquivalencesBySmall(ctx, pair, commitID(0x42))
	require.NoError(t, err)
	require.Empty(t, eqs)
}

func testVersionRegistry(t *testing.T, ms MakeStore) {
	ctx := context.Background()
	store := ms(t)
	payload := []byte(`{"small_repo": 1, "default_action": "preserve"}`)

	require.NoError(t, store.Register(ctx, "v1", payload))

	cfg, err := store.Resolve(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, mapping.SyncVersion("v1"), cfg.Name)
	require.Equal(t, payload, cfg.Payload)

	// identical re-registration is a no-op
	require.NoError(t, store.Register(ctx, "v1", payload))

	// a different payload under the same name is a configuration error
	err = store.Register(ctx, "v1", []byte(`{"small_repo": 1, "default_action": "drop"}`))
	require.ErrorIs(t, err, mapping.ErrVersionRedefined)

	_, err = store.Resolve(ctx, "v2")
	require.ErrorIs(t, err, mapping.ErrUnknownVersion)

	require.NoError(t, store.Register(ctx, "v0", nil))
	names, err := store.ListVersions(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []mapping.SyncVersion{"v0", "v1"}, names)
}

func testConcurrentIdenticalInserts(t *testing.T, ms MakeStore) {
	ctx := context.Background()
	store := ms(t)
	m := mapping.Mapping{
		SmallRepo:   1,
		SmallCommit: commitID(0x07),
		LargeRepo:   2,
		LargeCommit: commitID(0x08),
	}

	const writers = 8
	outcomes := make([]mapping.InsertOutcome, writers)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < writers; i++ {
		i := i
		g.Go(func() error {
			outcome, err := store.InsertMapping(gctx, m)
			outcomes[i] = outcome
			return err
		})
	}
	require.NoError(t, g.Wait())

	created := 0
	for _, outcome := range outcomes {
		if outcome == mapping.OutcomeCreated {
			created++
		}
	}
	require.Equal(t, 1, created, "exactly one concurrent writer must observe the create")
}
