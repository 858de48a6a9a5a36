package mapping_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crossrepo/crossrepo/pkg/mapping"
	"github.com/crossrepo/crossrepo/pkg/mapping/mem"
)

func TestCoordinatorCommitRewritten(t *testing.T) {
	ctx := context.Background()
	store := mem.New()
	coordinator := mapping.NewCoordinator(store)

	m := mapping.Mapping{
		SmallRepo:   1,
		SmallCommit: commitOf(0xaa),
		LargeRepo:   2,
		LargeCommit: commitOf(0xbb),
		Version:     versionOf("v1"),
	}

	outcome, err := coordinator.Commit(ctx, mapping.Rewritten(m))
	require.NoError(t, err)
	require.Equal(t, mapping.OutcomeCreated, outcome)

	got, err := store.GetMappingByLarge(ctx, m.Pair(), m.LargeCommit)
	require.NoError(t, err)
	require.True(t, got.Equal(m))

	// the job queue redelivers: identical replay resolves quietly
	outcome, err = coordinator.Commit(ctx, mapping.Rewritten(m))
	require.NoError(t, err)
	require.Equal(t, mapping.OutcomeAlreadyExists, outcome)

	// a different small commit for the same large commit never overwrites
	conflicting := m
	conflicting.SmallCommit = commitOf(0xcc)
	_, err = coordinator.Commit(ctx, mapping.Rewritten(conflicting))
	require.ErrorIs(t, err, mapping.ErrConflictingMapping)

	got, err = store.GetMappingByLarge(ctx, m.Pair(), m.LargeCommit)
	require.NoError(t, err)
	require.True(t, got.Equal(m), "conflicting commit must leave the original row intact")
}

func TestCoordinatorCommitEquivalence(t *testing.T) {
	ctx := context.Background()
	store := mem.New()
	coordinator := mapping.NewCoordinator(store)

	small := commitOf(0xaa)
	e := mapping.Equivalence{
		SmallRepo:   1,
		SmallCommit: &small,
		LargeRepo:   2,
		LargeCommit: commitOf(0xbb),
	}

	outcome, err := coordinator.Commit(ctx, mapping.EquivalentWorkingCopy(e))
	require.NoError(t, err)
	require.Equal(t, mapping.OutcomeCreated, outcome)

	outcome, err = coordinator.Commit(ctx, mapping.EquivalentWorkingCopy(e))
	require.NoError(t, err)
	require.Equal(t, mapping.OutcomeAlreadyExists, outcome)

	conflicting := e
	conflicting.SmallCommit = nil
	_, err = coordinator.Commit(ctx, mapping.EquivalentWorkingCopy(conflicting))
	require.ErrorIs(t, err, mapping.ErrConflictingEquivalence)
}

func TestCoordinatorCommitNoOp(t *testing.T) {
	ctx := context.Background()
	coordinator := mapping.NewCoordinator(mem.New())

	outcome, err := coordinator.Commit(ctx, mapping.NoOp())
	require.NoError(t, err)
	require.Equal(t, mapping.OutcomeAlreadyExists, outcome)
}

func TestCoordinatorCommitValidation(t *testing.T) {
	ctx := context.Background()
	coordinator := mapping.NewCoordinator(mem.New())

	_, err := coordinator.Commit(ctx, mapping.Rewritten(mapping.Mapping{
		SmallRepo: 1, LargeRepo: 2, LargeCommit: commitOf(0x01),
	}))
	require.ErrorIs(t, err, mapping.ErrMalformedIdentifier)
}

func TestCoordinatorCommitAll(t *testing.T) {
	ctx := context.Background()
	store := mem.New()
	coordinator := mapping.NewCoordinator(store)

	blocker := mapping.Mapping{
		SmallRepo: 1, SmallCommit: commitOf(0x01),
		LargeRepo: 2, LargeCommit: commitOf(0x02),
	}
	_, err := store.InsertMapping(ctx, blocker)
	require.NoError(t, err)

	conflicting := blocker
	conflicting.SmallCommit = commitOf(0x03)
	fresh := mapping.Mapping{
		SmallRepo: 1, SmallCommit: commitOf(0x04),
		LargeRepo: 2, LargeCommit: commitOf(0x05),
	}

	err = coordinator.CommitAll(ctx, []mapping.SyncOutcome{
		mapping.Rewritten(conflicting),
		mapping.Rewritten(fresh),
		mapping.NoOp(),
	})
	require.ErrorIs(t, err, mapping.ErrConflictingMapping)

	// the conflict did not block the rest of the batch
	got, err := store.GetMappingByLarge(ctx, fresh.Pair(), fresh.LargeCommit)
	require.NoError(t, err)
	require.True(t, got.Equal(fresh))

	// untouched original
	got, err = store.GetMappingByLarge(ctx, blocker.Pair(), blocker.LargeCommit)
	require.NoError(t, err)
	require.True(t, got.Equal(blocker))
}
