package mapping

import "context"

// Store is the durable record of mappings and equivalences. Implementations
// must make inserts atomic conditional writes against the backing store:
// concurrent inserts racing for the same key resolve to exactly one
// OutcomeCreated, with identical replays reporting OutcomeAlreadyExists and
// divergent writes failing with the matching conflict error. Rows are
// immutable once written.
type Store interface {
	// InsertMapping records an exact correspondence. Keyed on
	// (SmallRepo, LargeRepo, LargeCommit).
	InsertMapping(ctx context.Context, m Mapping) (InsertOutcome, error)

	// InsertMappings records a batch of mappings in one transaction with
	// per-row InsertMapping semantics, returning the number of fresh rows.
	// A conflict on any row fails the whole batch.
	InsertMappings(ctx context.Context, ms []Mapping) (int, error)

	// GetMappingByLarge returns the unique mapping for a large commit under
	// the repo pair, or ErrNotFound.
	GetMappingByLarge(ctx context.Context, pair RepoPair, largeCommit CommitID) (*Mapping, error)

	// ListMappingsBySmall returns all mappings for a small commit under the
	// repo pair. Unordered; empty when none exist.
	ListMappingsBySmall(ctx context.Context, pair RepoPair, smallCommit CommitID) ([]Mapping, error)

	// InsertEquivalence records a working copy equivalence. Keyed on
	// (LargeRepo, SmallRepo, LargeCommit).
	InsertEquivalence(ctx context.Context, e Equivalence) (InsertOutcome, error)

	// GetEquivalenceByLarge returns the unique equivalence for a large commit
	// under the repo pair, or ErrNotFound.
	GetEquivalenceByLarge(ctx context.Context, pair RepoPair, largeCommit CommitID) (*Equivalence, error)

	// ListEquivalencesBySmall returns all equivalences recorded for a small
	// commit under the repo pair.
	ListEquivalencesBySmall(ctx context.Context, pair RepoPair, smallCommit CommitID) ([]Equivalence, error)
}
