// Package mem provides an in-process mapping store with the same insert
// semantics as the SQL driver. Used in tests and by embedders that do not
// need durability.
package mem

import (
	"context"
	"fmt"
	"sync"

	"github.com/crossrepo/crossrepo/pkg/mapping"
)

type mappingKey struct {
	small       mapping.RepoID
	large       mapping.RepoID
	largeCommit mapping.CommitID
}

type Store struct {
	mu           sync.RWMutex
	mappings     map[mappingKey]mapping.Mapping
	equivalences map[mappingKey]mapping.Equivalence
	versions     map[mapping.SyncVersion]mapping.VersionConfig
}

func New() *Store {
	return &Store{
		mappings:     make(map[mappingKey]mapping.Mapping),
		equivalences: make(map[mappingKey]mapping.Equivalence),
		versions:     make(map[mapping.SyncVersion]mapping.VersionConfig),
	}
}

func (s *Store) InsertMapping(_ context.Context, m mapping.Mapping) (mapping.InsertOutcome, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	key := mappingKey{small: m.SmallRepo, large: m.LargeRepo, largeCommit: m.LargeCommit}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertMappingLocked(key, m)
}

func (s *Store) insertMappingLocked(key mappingKey, m mapping.Mapping) (mapping.InsertOutcome, error) {
	if existing, ok := s.mappings[key]; ok {
		if existing.Equal(m) {
			return mapping.OutcomeAlreadyExists, nil
		}
		return 0, fmt.Errorf("large commit %s in %s: %w",
			m.LargeCommit, m.Pair(), mapping.ErrConflictingMapping)
	}
	s.mappings[key] = m
	return mapping.OutcomeCreated, nil
}

func (s *Store) InsertMappings(_ context.Context, ms []mapping.Mapping) (int, error) {
	for _, m := range ms {
		if err := m.Validate(); err != nil {
			return 0, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// validate the whole batch for conflicts before writing anything, so a
	// failed batch leaves no partial state
	for _, m := range ms {
		key := mappingKey{small: m.SmallRepo, large: m.LargeRepo, largeCommit: m.LargeCommit}
		if existing, ok := s.mappings[key]; ok && !existing.Equal(m) {
			return 0, fmt.Errorf("large commit %s in %s: %w",
				m.LargeCommit, m.Pair(), mapping.ErrConflictingMapping)
		}
	}
	created := 0
	for _, m := range ms {
		key := mappingKey{small: m.SmallRepo, large: m.LargeRepo, largeCommit: m.LargeCommit}
		outcome, err := s.insertMappingLocked(key, m)
		if err != nil {
			return 0, err
		}
		if outcome == mapping.OutcomeCreated {
			created++
		}
	}
	return created, nil
}

func (s *Store) GetMappingByLarge(_ context.Context, pair mapping.RepoPair, largeCommit mapping.CommitID) (*mapping.Mapping, error) {
	key := mappingKey{small: pair.Small, large: pair.Large, largeCommit: largeCommit}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mappings[key]
	if !ok {
		return nil, mapping.ErrNotFound
	}
	return &m, nil
}

func (s *Store) ListMappingsBySmall(_ context.Context, pair mapping.RepoPair, smallCommit mapping.CommitID) ([]mapping.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []mapping.Mapping
	for _, m := range s.mappings {
		if m.SmallRepo == pair.Small && m.LargeRepo == pair.Large && m.SmallCommit == smallCommit {
			result = append(result, m)
		}
	}
	return result, nil
}

func (s *Store) InsertEquivalence(_ context.Context, e mapping.Equivalence) (mapping.InsertOutcome, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	key := mappingKey{small: e.SmallRepo, large: e.LargeRepo, largeCommit: e.LargeCommit}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.equivalences[key]; ok {
		if existing.Equal(e) {
			return mapping.OutcomeAlreadyExists, nil
		}
		return 0, fmt.Errorf("large commit %s in %s: %w",
			e.LargeCommit, e.Pair(), mapping.ErrConflictingEquivalence)
	}
	s.equivalences[key] = e
	return mapping.OutcomeCreated, nil
}

func (s *Store) GetEquivalenceByLarge(_ context.Context, pair mapping.RepoPair, largeCommit mapping.CommitID) (*mapping.Equivalence, error) {
	key := mappingKey{small: pair.Small, large: pair.Large, largeCommit: largeCommit}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.equivalences[key]
	if !ok {
		return nil, mapping.ErrNotFound
	}
	return &e, nil
}

func (s *Store) ListEquivalencesBySmall(_ context.Context, pair mapping.RepoPair, smallCommit mapping.CommitID) ([]mapping.Equivalence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []mapping.Equivalence
	for _, e := range s.equivalences {
		if e.SmallRepo != pair.Small || e.LargeRepo != pair.Large {
			continue
		}
		if e.SmallCommit != nil && *e.SmallCommit == smallCommit {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *Store) Register(_ context.Context, name mapping.SyncVersion, payload []byte) error {
	if name == "" {
		return fmt.Errorf("version name: %w", mapping.ErrMalformedIdentifier)
	}
	cfg := mapping.NewVersionConfig(name, payload)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.versions[name]; ok {
		if existing.Equal(cfg) {
			return nil
		}
		return fmt.Errorf("version %s: %w", name, mapping.ErrVersionRedefined)
	}
	s.versions[name] = cfg
	return nil
}

func (s *Store) Resolve(_ context.Context, name mapping.SyncVersion) (*mapping.VersionConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.versions[name]
	if !ok {
		return nil, fmt.Errorf("version %s: %w", name, mapping.ErrUnknownVersion)
	}
	return &cfg, nil
}

func (s *Store) ListVersions(_ context.Context) ([]mapping.SyncVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]mapping.SyncVersion, 0, len(s.versions))
	for name := range s.versions {
		names = append(names, name)
	}
	return names, nil
}

var (
	_ mapping.Store           = (*Store)(nil)
	_ mapping.VersionRegistry = (*Store)(nil)
)
