package mapping_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crossrepo/crossrepo/pkg/mapping"
	"github.com/crossrepo/crossrepo/pkg/mapping/mem"
)

func TestResolveLargeToSmall(t *testing.T) {
	ctx := context.Background()
	store := mem.New()
	pair := mapping.RepoPair{Small: 10, Large: 20}

	mapped := mapping.Mapping{
		SmallRepo:   pair.Small,
		SmallCommit: commitOf(0xaa),
		LargeRepo:   pair.Large,
		LargeCommit: commitOf(0xbb),
		Version:     versionOf("v1"),
	}
	_, err := store.InsertMapping(ctx, mapped)
	require.NoError(t, err)

	equivSmall := commitOf(0xcc)
	_, err = store.InsertEquivalence(ctx, mapping.Equivalence{
		SmallRepo:   pair.Small,
		SmallCommit: &equivSmall,
		LargeRepo:   pair.Large,
		LargeCommit: commitOf(0xdd),
	})
	require.NoError(t, err)

	resolver := mapping.NewResolver(store)

	// exact mapping wins
	res, err := resolver.Resolve(ctx, mapping.LargeToSmall, pair, commitOf(0xbb))
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, mapping.ResolutionExact, res[0].Kind)
	require.NotNil(t, res[0].Commit)
	require.Equal(t, commitOf(0xaa), *res[0].Commit)
	require.NotNil(t, res[0].Version)
	require.Equal(t, mapping.SyncVersion("v1"), *res[0].Version)

	// equivalence answers when no exact mapping exists
	res, err = resolver.Resolve(ctx, mapping.LargeToSmall, pair, commitOf(0xdd))
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, mapping.ResolutionEquivalent, res[0].Kind)
	require.NotNil(t, res[0].Commit)
	require.Equal(t, commitOf(0xcc), *res[0].Commit)

	// no record at all: a single unknown, never an empty slice
	res, err = resolver.Resolve(ctx, mapping.LargeToSmall, pair, commitOf(0xee))
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, mapping.ResolutionUnknown, res[0].Kind)
	require.Nil(t, res[0].Commit)
}

func TestResolveExactBeatsEquivalent(t *testing.T) {
	ctx := context.Background()
	store := mem.New()
	pair := mapping.RepoPair{Small: 10, Large: 20}
	small := commitOf(0xaa)
	large := commitOf(0xbb)

	// both records for the same large commit, e.g. equivalence recorded
	// before a later backfill produced the exact mapping
	_, err := store.InsertEquivalence(ctx, mapping.Equivalence{
		SmallRepo: pair.Small, SmallCommit: &small,
		LargeRepo: pair.Large, LargeCommit: large,
	})
	require.NoError(t, err)
	_, err = store.InsertMapping(ctx, mapping.Mapping{
		SmallRepo: pair.Small, SmallCommit: small,
		LargeRepo: pair.Large, LargeCommit: large,
	})
	require.NoError(t, err)

	resolver := mapping.NewResolver(store)

	res, err := resolver.Resolve(ctx, mapping.LargeToSmall, pair, large)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, mapping.ResolutionExact, res[0].Kind)

	res, err = resolver.Resolve(ctx, mapping.SmallToLarge, pair, small)
	require.NoError(t, err)
	require.Len(t, res, 1, "the same large commit must not appear as both exact and equivalent")
	require.Equal(t, mapping.ResolutionExact, res[0].Kind)
}

func TestResolveSmallToLargeMultiValued(t *testing.T) {
	ctx := context.Background()
	store := mem.New()
	pair := mapping.RepoPair{Small: 10, Large: 20}
	small := commitOf(0xaa)

	for _, largeByte := range []byte{0x01, 0x02} {
		_, err := store.InsertMapping(ctx, mapping.Mapping{
			SmallRepo: pair.Small, SmallCommit: small,
			LargeRepo: pair.Large, LargeCommit: commitOf(largeByte),
		})
		require.NoError(t, err)
	}
	equivLarge := commitOf(0x03)
	_, err := store.InsertEquivalence(ctx, mapping.Equivalence{
		SmallRepo: pair.Small, SmallCommit: &small,
		LargeRepo: pair.Large, LargeCommit: equivLarge,
	})
	require.NoError(t, err)

	resolver := mapping.NewResolver(store)
	res, err := resolver.Resolve(ctx, mapping.SmallToLarge, pair, small)
	require.NoError(t, err)
	require.Len(t, res, 3)

	kinds := map[mapping.ResolutionKind]int{}
	for _, r := range res {
		kinds[r.Kind]++
		require.NotNil(t, r.Commit)
	}
	require.Equal(t, 2, kinds[mapping.ResolutionExact])
	require.Equal(t, 1, kinds[mapping.ResolutionEquivalent])
}

func TestResolveEmptyProjection(t *testing.T) {
	ctx := context.Background()
	store := mem.New()
	pair := mapping.RepoPair{Small: 10, Large: 20}
	large := commitOf(0x01)

	_, err := store.InsertEquivalence(ctx, mapping.Equivalence{
		SmallRepo: pair.Small, SmallCommit: nil,
		LargeRepo: pair.Large, LargeCommit: large,
	})
	require.NoError(t, err)

	resolver := mapping.NewResolver(store)
	res, err := resolver.Resolve(ctx, mapping.LargeToSmall, pair, large)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, mapping.ResolutionEquivalent, res[0].Kind)
	require.Nil(t, res[0].Commit, "empty projection carries no small commit")
	require.Equal(t, "equivalent(empty projection)", res[0].String())
}

func TestExplain(t *testing.T) {
	ctx := context.Background()
	store := mem.New()
	require.NoError(t, store.Register(ctx, "v1", []byte(`{"default_action": "preserve"}`)))

	resolver := mapping.NewResolver(store, mapping.WithRegistry(store))

	small := commitOf(0xaa)
	registered := mapping.Resolution{
		Kind:    mapping.ResolutionExact,
		Commit:  &small,
		Version: versionOf("v1"),
	}
	explained := resolver.Explain(ctx, registered)
	require.Contains(t, explained, "config checksum")

	// an unregistered version degrades to the plain description
	unregistered := registered
	unregistered.Version = versionOf("v9")
	explained = resolver.Explain(ctx, unregistered)
	require.Equal(t, unregistered.String(), explained)
	require.True(t, strings.HasPrefix(explained, "exact("))

	// no version, nothing to look up
	plain := registered
	plain.Version = nil
	require.Equal(t, plain.String(), resolver.Explain(ctx, plain))
}
