package mapping

import "errors"

var (
	// ErrConflictingMapping - the key already holds a mapping with different
	// fields. Fatal to the calling sync attempt, never auto-resolved.
	ErrConflictingMapping = errors.New("conflicting mapping")

	// ErrConflictingEquivalence - same, for working copy equivalences.
	ErrConflictingEquivalence = errors.New("conflicting working copy equivalence")

	// ErrMalformedIdentifier - caller error, rejected before any persistence
	// attempt.
	ErrMalformedIdentifier = errors.New("malformed identifier")

	// ErrNotFound - no record for the queried key.
	ErrNotFound = errors.New("mapping not found")

	// ErrUnknownVersion - registry miss. Recoverable: proceed without the
	// diagnostic metadata.
	ErrUnknownVersion = errors.New("unknown sync version")

	// ErrVersionRedefined - re-registering a version name with a different
	// payload. A configuration error, not reconciled.
	ErrVersionRedefined = errors.New("sync version redefined")
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
