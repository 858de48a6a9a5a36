// Package mapping records how commits in a small repository correspond to
// commits in a large (mega) repository, and answers directional lookups over
// those records.
//
// Two kinds of records exist: an exact Mapping, produced when a deterministic
// rewrite of a small commit exists in the large repo, and a working copy
// Equivalence, recorded when no commit-level rewrite exists but the
// materialized trees match. Both are immutable once written.
package mapping

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// CommitIDLength is the length in bytes of a canonical commit hash.
const CommitIDLength = 32

// RepoID identifies a repository. Commit ids are only meaningful within the
// scope of their repository.
type RepoID int64

// CommitID is a fixed-width commit hash. The all-zero value is not a valid
// commit - absence is expressed with a nil *CommitID, never a zero hash.
type CommitID [CommitIDLength]byte

func (id CommitID) String() string {
	return hex.EncodeToString(id[:])
}

func (id CommitID) Bytes() []byte {
	b := make([]byte, CommitIDLength)
	copy(b, id[:])
	return b
}

func (id CommitID) IsZero() bool {
	return id == CommitID{}
}

// ParseCommitID parses a 64-character hex string into a CommitID.
func ParseCommitID(s string) (CommitID, error) {
	var id CommitID
	if len(s) != hex.EncodedLen(CommitIDLength) {
		return id, fmt.Errorf("commit id %q: expected %d hex characters: %w",
			s, hex.EncodedLen(CommitIDLength), ErrMalformedIdentifier)
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("commit id %q: %w", s, ErrMalformedIdentifier)
	}
	return id, nil
}

// MustParseCommitID is ParseCommitID for static values, mostly in tests and
// command line handling.
func MustParseCommitID(s string) CommitID {
	id, err := ParseCommitID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// CommitIDFromBytes converts a raw hash as stored to a CommitID.
func CommitIDFromBytes(b []byte) (CommitID, error) {
	var id CommitID
	if len(b) != CommitIDLength {
		return id, fmt.Errorf("commit id of %d bytes: %w", len(b), ErrMalformedIdentifier)
	}
	copy(id[:], b)
	return id, nil
}

// SyncVersion names the rewrite-rule configuration under which a mapping was
// produced. Mappings created before versioning existed carry none.
type SyncVersion string

// RepoPair scopes every query and write to one small/large repository pair.
type RepoPair struct {
	Small RepoID
	Large RepoID
}

func (p RepoPair) String() string {
	return fmt.Sprintf("(small=%d, large=%d)", p.Small, p.Large)
}

// Mapping is an exact commit correspondence. Unique per
// (SmallRepo, LargeRepo, LargeCommit); the reverse direction is not unique.
type Mapping struct {
	SmallRepo   RepoID
	SmallCommit CommitID
	LargeRepo   RepoID
	LargeCommit CommitID
	Version     *SyncVersion
}

func (m Mapping) Pair() RepoPair {
	return RepoPair{Small: m.SmallRepo, Large: m.LargeRepo}
}

func (m Mapping) Equal(other Mapping) bool {
	return m.SmallRepo == other.SmallRepo &&
		m.SmallCommit == other.SmallCommit &&
		m.LargeRepo == other.LargeRepo &&
		m.LargeCommit == other.LargeCommit &&
		syncVersionEqual(m.Version, other.Version)
}

func (m Mapping) Validate() error {
	if m.LargeCommit.IsZero() {
		return fmt.Errorf("large commit: %w", ErrMalformedIdentifier)
	}
	if m.SmallCommit.IsZero() {
		return fmt.Errorf("small commit: %w", ErrMalformedIdentifier)
	}
	if m.Version != nil && *m.Version == "" {
		return fmt.Errorf("version name: %w", ErrMalformedIdentifier)
	}
	return nil
}

// Equivalence records that the large commit's working copy, projected onto the
// small repo's path space, is identical to the small commit's working copy.
// A nil SmallCommit means the projection is empty - the large commit touches
// none of the small repo's paths. Unique per (LargeRepo, SmallRepo,
// LargeCommit); many small commits may equate to one large commit.
type Equivalence struct {
	SmallRepo   RepoID
	SmallCommit *CommitID
	LargeRepo   RepoID
	LargeCommit CommitID
}

func (e Equivalence) Pair() RepoPair {
	return RepoPair{Small: e.SmallRepo, Large: e.LargeRepo}
}

func (e Equivalence) Equal(other Equivalence) bool {
	return e.SmallRepo == other.SmallRepo &&
		e.LargeRepo == other.LargeRepo &&
		e.LargeCommit == other.LargeCommit &&
		commitIDEqual(e.SmallCommit, other.SmallCommit)
}

func (e Equivalence) Validate() error {
	if e.LargeCommit.IsZero() {
		return fmt.Errorf("large commit: %w", ErrMalformedIdentifier)
	}
	if e.SmallCommit != nil && e.SmallCommit.IsZero() {
		return fmt.Errorf("small commit: %w", ErrMalformedIdentifier)
	}
	return nil
}

// InsertOutcome reports how an insert resolved: a fresh row, or an identical
// row that was already there (idempotent replay).
type InsertOutcome int

const (
	OutcomeCreated InsertOutcome = iota
	OutcomeAlreadyExists
)

func (o InsertOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeAlreadyExists:
		return "already-exists"
	default:
		return fmt.Sprintf("InsertOutcome(%d)", int(o))
	}
}

func syncVersionEqual(a, b *SyncVersion) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func commitIDEqual(a, b *CommitID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return bytes.Equal(a[:], b[:])
}
