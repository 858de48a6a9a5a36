package mapping

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/crossrepo/crossrepo/pkg/logging"
)

type SyncOutcomeKind int

const (
	// SyncNoOp - the commit was found already synced; nothing to record.
	SyncNoOp SyncOutcomeKind = iota
	// SyncRewritten - the rewrite produced a target commit; record an exact
	// mapping.
	SyncRewritten
	// SyncEquivalentWorkingCopy - no target commit exists but the working
	// copies are identical; record an equivalence.
	SyncEquivalentWorkingCopy
)

func (k SyncOutcomeKind) String() string {
	switch k {
	case SyncNoOp:
		return "no-op"
	case SyncRewritten:
		return "rewritten"
	case SyncEquivalentWorkingCopy:
		return "equivalent-working-copy"
	default:
		return fmt.Sprintf("SyncOutcomeKind(%d)", int(k))
	}
}

// SyncOutcome is what the rewrite engine reports for one commit: rewritten,
// equivalent working copy, or nothing to do.
type SyncOutcome struct {
	kind        SyncOutcomeKind
	mapping     *Mapping
	equivalence *Equivalence
}

func Rewritten(m Mapping) SyncOutcome {
	return SyncOutcome{kind: SyncRewritten, mapping: &m}
}

func EquivalentWorkingCopy(e Equivalence) SyncOutcome {
	return SyncOutcome{kind: SyncEquivalentWorkingCopy, equivalence: &e}
}

func NoOp() SyncOutcome {
	return SyncOutcome{kind: SyncNoOp}
}

func (o SyncOutcome) Kind() SyncOutcomeKind {
	return o.kind
}

// Coordinator is the single write entry point used by the rewrite engine to
// persist the outcome of synchronizing one commit. Repeated delivery of the
// same outcome is always safe: identical replays resolve as
// OutcomeAlreadyExists, so at-least-once job scheduling needs no
// deduplication.
type Coordinator struct {
	store Store
	log   logging.Logger
}

type CoordinatorOption func(*Coordinator)

func WithCoordinatorLogger(log logging.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.log = log
	}
}

func NewCoordinator(store Store, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store: store,
		log:   logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Commit validates and persists a sync outcome. The read-before-write
// pre-check only produces a cheaper, more specific answer; the store's own
// atomic conditional insert remains authoritative for races the pre-check
// cannot see.
func (c *Coordinator) Commit(ctx context.Context, outcome SyncOutcome) (InsertOutcome, error) {
	log := c.log.WithContext(ctx).WithField(logging.OutcomeFieldKey, outcome.kind.String())
	switch outcome.kind {
	case SyncNoOp:
		log.Trace("commit short-circuited")
		return OutcomeAlreadyExists, nil
	case SyncRewritten:
		return c.commitMapping(ctx, log, *outcome.mapping)
	case SyncEquivalentWorkingCopy:
		return c.commitEquivalence(ctx, log, *outcome.equivalence)
	default:
		return 0, fmt.Errorf("sync outcome kind %d: %w", outcome.kind, ErrMalformedIdentifier)
	}
}

func (c *Coordinator) commitMapping(ctx context.Context, log logging.Logger, m Mapping) (InsertOutcome, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	log = log.WithFields(logging.Fields{
		logging.SmallRepoFieldKey: m.SmallRepo,
		logging.LargeRepoFieldKey: m.LargeRepo,
		logging.CommitFieldKey:    m.LargeCommit.String(),
	})

	existing, err := c.store.GetMappingByLarge(ctx, m.Pair(), m.LargeCommit)
	switch {
	case err == nil && existing.Equal(m):
		log.Debug("identical mapping already recorded")
		return OutcomeAlreadyExists, nil
	case err == nil:
		return 0, fmt.Errorf("large commit %s in %s already mapped to small commit %s, refusing %s: %w",
			m.LargeCommit, m.Pair(), existing.SmallCommit, m.SmallCommit, ErrConflictingMapping)
	case !isNotFound(err):
		return 0, err
	}

	outcome, err := c.store.InsertMapping(ctx, m)
	if err != nil {
		return 0, err
	}
	log.WithField("insert_outcome", outcome.String()).Debug("mapping recorded")
	return outcome, nil
}

func (c *Coordinator) commitEquivalence(ctx context.Context, log logging.Logger, e Equivalence) (InsertOutcome, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	log = log.WithFields(logging.Fields{
		logging.SmallRepoFieldKey: e.SmallRepo,
		logging.LargeRepoFieldKey: e.LargeRepo,
		logging.CommitFieldKey:    e.LargeCommit.String(),
	})

	existing, err := c.store.GetEquivalenceByLarge(ctx, e.Pair(), e.LargeCommit)
	switch {
	case err == nil && existing.Equal(e):
		log.Debug("identical equivalence already recorded")
		return OutcomeAlreadyExists, nil
	case err == nil:
		return 0, fmt.Errorf("large commit %s in %s already has an equivalence, refusing a different one: %w",
			e.LargeCommit, e.Pair(), ErrConflictingEquivalence)
	case !isNotFound(err):
		return 0, err
	}

	outcome, err := c.store.InsertEquivalence(ctx, e)
	if err != nil {
		return 0, err
	}
	log.WithField("insert_outcome", outcome.String()).Debug("equivalence recorded")
	return outcome, nil
}

// CommitAll applies each outcome independently and reports every failure.
// Outcomes are independent units of at-least-once work - one conflict must
// not block recording the rest.
func (c *Coordinator) CommitAll(ctx context.Context, outcomes []SyncOutcome) error {
	var merr *multierror.Error
	for i, outcome := range outcomes {
		if _, err := c.Commit(ctx, outcome); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("outcome %d (%s): %w", i, outcome.kind, err))
		}
	}
	return merr.ErrorOrNil()
}
