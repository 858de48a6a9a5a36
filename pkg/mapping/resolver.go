package mapping

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/crossrepo/crossrepo/pkg/logging"
)

// Direction selects which side of the repo pair the queried commit lives on.
type Direction int

const (
	// SmallToLarge resolves a small-repo commit into the large repo
	// ("forward"). Possibly multi-valued.
	SmallToLarge Direction = iota
	// LargeToSmall resolves a large-repo commit into the small repo
	// ("backward"). At most one result.
	LargeToSmall
)

func (d Direction) String() string {
	switch d {
	case SmallToLarge:
		return "small-to-large"
	case LargeToSmall:
		return "large-to-small"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection accepts both the side-based and the forward/backward
// vocabulary.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "small-to-large", "forward":
		return SmallToLarge, nil
	case "large-to-small", "backward":
		return LargeToSmall, nil
	default:
		return 0, fmt.Errorf("direction %q: %w", s, ErrMalformedIdentifier)
	}
}

type ResolutionKind int

const (
	// ResolutionUnknown - no record exists. The commit may simply not be
	// synced yet; callers must not read this as "provably unsyncable".
	ResolutionUnknown ResolutionKind = iota
	// ResolutionExact - an exact commit mapping exists.
	ResolutionExact
	// ResolutionEquivalent - no exact mapping, but the working copies match.
	// A nil commit means the projection onto the small repo is empty; unlike
	// Unknown, that answer is final for this commit.
	ResolutionEquivalent
)

func (k ResolutionKind) String() string {
	switch k {
	case ResolutionUnknown:
		return "unknown"
	case ResolutionExact:
		return "exact"
	case ResolutionEquivalent:
		return "equivalent"
	default:
		return fmt.Sprintf("ResolutionKind(%d)", int(k))
	}
}

// Resolution is one candidate answer to "what does this commit correspond to
// on the other side".
type Resolution struct {
	Kind   ResolutionKind
	Commit *CommitID
	// Version is set only for exact resolutions, and only when the mapping
	// recorded one.
	Version *SyncVersion
}

func (r Resolution) String() string {
	switch r.Kind {
	case ResolutionExact:
		if r.Version != nil {
			return fmt.Sprintf("exact(%s, version=%s)", r.Commit, *r.Version)
		}
		return fmt.Sprintf("exact(%s)", r.Commit)
	case ResolutionEquivalent:
		if r.Commit == nil {
			return "equivalent(empty projection)"
		}
		return fmt.Sprintf("equivalent(%s)", r.Commit)
	default:
		return "unknown"
	}
}

// Resolver answers directional correspondence queries over a Store, hiding
// the exact/equivalence distinction behind a single resolution policy: an
// exact mapping always beats an equivalence for the same candidate.
type Resolver struct {
	store    Store
	registry VersionRegistry
	log      logging.Logger
}

type ResolverOption func(*Resolver)

// WithRegistry attaches a version registry used only to explain resolutions.
func WithRegistry(registry VersionRegistry) ResolverOption {
	return func(r *Resolver) {
		r.registry = registry
	}
}

func WithResolverLogger(log logging.Logger) ResolverOption {
	return func(r *Resolver) {
		r.log = log
	}
}

func NewResolver(store Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store: store,
		log:   logging.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns all candidate correspondences for commit on the given side
// of the repo pair. The result is never empty: with no record it holds a
// single unknown resolution. Multi-valued answers are possible only in the
// SmallToLarge direction; tie-breaking between them is the caller's business.
func (r *Resolver) Resolve(ctx context.Context, direction Direction, pair RepoPair, commit CommitID) ([]Resolution, error) {
	log := r.log.WithContext(ctx).WithFields(logging.Fields{
		logging.DirectionFieldKey: direction.String(),
		logging.SmallRepoFieldKey: pair.Small,
		logging.LargeRepoFieldKey: pair.Large,
		logging.CommitFieldKey:    commit.String(),
	})
	var (
		resolutions []Resolution
		err         error
	)
	switch direction {
	case LargeToSmall:
		resolutions, err = r.resolveLarge(ctx, pair, commit)
	case SmallToLarge:
		resolutions, err = r.resolveSmall(ctx, pair, commit)
	default:
		return nil, fmt.Errorf("direction %d: %w", direction, ErrMalformedIdentifier)
	}
	if err != nil {
		return nil, err
	}
	if len(resolutions) == 0 {
		resolutions = []Resolution{{Kind: ResolutionUnknown}}
	}
	log.WithField("candidates", len(resolutions)).Trace("resolved commit")
	return resolutions, nil
}

func (r *Resolver) resolveLarge(ctx context.Context, pair RepoPair, largeCommit CommitID) ([]Resolution, error) {
	m, err := r.store.GetMappingByLarge(ctx, pair, largeCommit)
	if err == nil {
		small := m.SmallCommit
		return []Resolution{{Kind: ResolutionExact, Commit: &small, Version: m.Version}}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	eq, err := r.store.GetEquivalenceByLarge(ctx, pair, largeCommit)
	if err == nil {
		return []Resolution{{Kind: ResolutionEquivalent, Commit: eq.SmallCommit}}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return nil, nil
}

func (r *Resolver) resolveSmall(ctx context.Context, pair RepoPair, smallCommit CommitID) ([]Resolution, error) {
	mappings, err := r.store.ListMappingsBySmall(ctx, pair, smallCommit)
	if err != nil {
		return nil, err
	}
	resolutions := make([]Resolution, 0, len(mappings))
	exact := make(map[CommitID]struct{}, len(mappings))
	for _, m := range mappings {
		large := m.LargeCommit
		exact[large] = struct{}{}
		resolutions = append(resolutions, Resolution{Kind: ResolutionExact, Commit: &large, Version: m.Version})
	}
	equivalences, err := r.store.ListEquivalencesBySmall(ctx, pair, smallCommit)
	if err != nil {
		return nil, err
	}
	for _, eq := range equivalences {
		// exact beats equivalent for the same large commit
		if _, ok := exact[eq.LargeCommit]; ok {
			continue
		}
		large := eq.LargeCommit
		resolutions = append(resolutions, Resolution{Kind: ResolutionEquivalent, Commit: &large})
	}
	return resolutions, nil
}

// Explain describes a resolution for humans, consulting the version registry
// when one is attached. A registry miss degrades to the plain description -
// missing diagnostic metadata never fails a lookup.
func (r *Resolver) Explain(ctx context.Context, res Resolution) string {
	if res.Kind != ResolutionExact || res.Version == nil || r.registry == nil {
		return res.String()
	}
	cfg, err := r.registry.Resolve(ctx, *res.Version)
	if err != nil {
		if errors.Is(err, ErrUnknownVersion) {
			r.log.WithContext(ctx).
				WithField(logging.VersionFieldKey, string(*res.Version)).
				Warn("resolution refers to an unregistered sync version")
		} else {
			r.log.WithContext(ctx).WithError(err).Warn("version registry lookup failed")
		}
		return res.String()
	}
	return fmt.Sprintf("%s, config checksum %x (%d bytes)", res, cfg.Checksum[:8], len(cfg.Payload))
}
