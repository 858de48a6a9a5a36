// Package postgres implements the mapping store and version registry on
// PostgreSQL. Inserts are single conditional statements - uniqueness is
// enforced by the database, never by application locking, so any number of
// processes can write concurrently.
package postgres

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/crossrepo/crossrepo/pkg/db"
	"github.com/crossrepo/crossrepo/pkg/logging"
	"github.com/crossrepo/crossrepo/pkg/mapping"
)

const (
	insertMappingSQL = `INSERT INTO commit_mapping (small_repo_id, small_commit, large_repo_id, large_commit, version_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (small_repo_id, large_repo_id, large_commit) DO NOTHING`

	selectMappingByLargeSQL = `SELECT small_repo_id, small_commit, large_repo_id, large_commit, version_name
		FROM commit_mapping
		WHERE small_repo_id = $1 AND large_repo_id = $2 AND large_commit = $3`

	selectMappingsBySmallSQL = `SELECT small_repo_id, small_commit, large_repo_id, large_commit, version_name
		FROM commit_mapping
		WHERE small_repo_id = $1 AND large_repo_id = $2 AND small_commit = $3`

	insertEquivalenceSQL = `INSERT INTO working_copy_equivalence (large_repo_id, small_repo_id, large_commit, small_commit)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (large_repo_id, small_repo_id, large_commit) DO NOTHING`

	selectEquivalenceByLargeSQL = `SELECT large_repo_id, small_repo_id, large_commit, small_commit
		FROM working_copy_equivalence
		WHERE large_repo_id = $1 AND small_repo_id = $2 AND large_commit = $3`

	selectEquivalencesBySmallSQL = `SELECT large_repo_id, small_repo_id, large_commit, small_commit
		FROM working_copy_equivalence
		WHERE large_repo_id = $1 AND small_repo_id = $2 AND small_commit = $3`
)

type Store struct {
	db  db.Database
	log logging.Logger
}

func NewStore(database db.Database) *Store {
	return &Store{
		db:  database,
		log: logging.Default(),
	}
}

type mappingRow struct {
	SmallRepoID int64   `db:"small_repo_id"`
	SmallCommit []byte  `db:"small_commit"`
	LargeRepoID int64   `db:"large_repo_id"`
	LargeCommit []byte  `db:"large_commit"`
	VersionName *string `db:"version_name"`
}

func (r mappingRow) toMapping() (mapping.Mapping, error) {
	smallCommit, err := mapping.CommitIDFromBytes(r.SmallCommit)
	if err != nil {
		return mapping.Mapping{}, fmt.Errorf("small commit: %w", err)
	}
	largeCommit, err := mapping.CommitIDFromBytes(r.LargeCommit)
	if err != nil {
		return mapping.Mapping{}, fmt.Errorf("large commit: %w", err)
	}
	var version *mapping.SyncVersion
	if r.VersionName != nil {
		v := mapping.SyncVersion(*r.VersionName)
		version = &v
	}
	return mapping.Mapping{
		SmallRepo:   mapping.RepoID(r.SmallRepoID),
		SmallCommit: smallCommit,
		LargeRepo:   mapping.RepoID(r.LargeRepoID),
		LargeCommit: largeCommit,
		Version:     version,
	}, nil
}

type equivalenceRow struct {
	LargeRepoID int64  `db:"large_repo_id"`
	SmallRepoID int64  `db:"small_repo_id"`
	LargeCommit []byte `db:"large_commit"`
	SmallCommit []byte `db:"small_commit"`
}

func (r equivalenceRow) toEquivalence() (mapping.Equivalence, error) {
	largeCommit, err := mapping.CommitIDFromBytes(r.LargeCommit)
	if err != nil {
		return mapping.Equivalence{}, fmt.Errorf("large commit: %w", err)
	}
	var smallCommit *mapping.CommitID
	if r.SmallCommit != nil {
		id, err := mapping.CommitIDFromBytes(r.SmallCommit)
		if err != nil {
			return mapping.Equivalence{}, fmt.Errorf("small commit: %w", err)
		}
		smallCommit = &id
	}
	return mapping.Equivalence{
		SmallRepo:   mapping.RepoID(r.SmallRepoID),
		SmallCommit: smallCommit,
		LargeRepo:   mapping.RepoID(r.LargeRepoID),
		LargeCommit: largeCommit,
	}, nil
}

func versionArg(v *mapping.SyncVersion) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func smallCommitArg(id *mapping.CommitID) []byte {
	if id == nil {
		return nil
	}
	return id.Bytes()
}

func (s *Store) InsertMapping(ctx context.Context, m mapping.Mapping) (mapping.InsertOutcome, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	tag, err := s.db.Exec(ctx, insertMappingSQL,
		int64(m.SmallRepo), m.SmallCommit.Bytes(), int64(m.LargeRepo), m.LargeCommit.Bytes(), versionArg(m.Version))
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 1 {
		return mapping.OutcomeCreated, nil
	}
	// the key is taken - rows are immutable, so reading back classifies
	// the collision exactly
	existing, err := s.GetMappingByLarge(ctx, m.Pair(), m.LargeCommit)
	if err != nil {
		return 0, err
	}
	if existing.Equal(m) {
		return mapping.OutcomeAlreadyExists, nil
	}
	return 0, fmt.Errorf("large commit %s in %s already mapped to small commit %s, refusing %s: %w",
		m.LargeCommit, m.Pair(), existing.SmallCommit, m.SmallCommit, mapping.ErrConflictingMapping)
}

func (s *Store) InsertMappings(ctx context.Context, ms []mapping.Mapping) (int, error) {
	for _, m := range ms {
		if err := m.Validate(); err != nil {
			return 0, err
		}
	}
	// read committed: each statement sees rows committed by concurrent
	// writers, so the classifying read after a conflicting insert is exact
	res, err := s.db.Transact(ctx, func(tx db.Tx) (interface{}, error) {
		created := 0
		for _, m := range ms {
			tag, err := tx.Exec(insertMappingSQL,
				int64(m.SmallRepo), m.SmallCommit.Bytes(), int64(m.LargeRepo), m.LargeCommit.Bytes(), versionArg(m.Version))
			if err != nil {
				return nil, err
			}
			if tag.RowsAffected() == 1 {
				created++
				continue
			}
			var row mappingRow
			err = tx.Get(&row, selectMappingByLargeSQL,
				int64(m.SmallRepo), int64(m.LargeRepo), m.LargeCommit.Bytes())
			if err != nil {
				return nil, err
			}
			existing, err := row.toMapping()
			if err != nil {
				return nil, err
			}
			if !existing.Equal(m) {
				return nil, fmt.Errorf("large commit %s in %s already mapped to small commit %s, refusing %s: %w",
					m.LargeCommit, m.Pair(), existing.SmallCommit, m.SmallCommit, mapping.ErrConflictingMapping)
			}
		}
		return created, nil
	}, db.ReadCommitted())
	if err != nil {
		return 0, err
	}
	return res.(int), nil
}

func (s *Store) GetMappingByLarge(ctx context.Context, pair mapping.RepoPair, largeCommit mapping.CommitID) (*mapping.Mapping, error) {
	var row mappingRow
	err := s.db.Get(ctx, &row, selectMappingByLargeSQL,
		int64(pair.Small), int64(pair.Large), largeCommit.Bytes())
	if errors.Is(err, db.ErrNotFound) {
		return nil, mapping.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m, err := row.toMapping()
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListMappingsBySmall(ctx context.Context, pair mapping.RepoPair, smallCommit mapping.CommitID) ([]mapping.Mapping, error) {
	var rows []mappingRow
	err := s.db.Select(ctx, &rows, selectMappingsBySmallSQL,
		int64(pair.Small), int64(pair.Large), smallCommit.Bytes())
	if err != nil {
		return nil, err
	}
	result := make([]mapping.Mapping, 0, len(rows))
	for _, row := range rows {
		m, err := row.toMapping()
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, nil
}

func (s *Store) InsertEquivalence(ctx context.Context, e mapping.Equivalence) (mapping.InsertOutcome, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	tag, err := s.db.Exec(ctx, insertEquivalenceSQL,
		int64(e.LargeRepo), int64(e.SmallRepo), e.LargeCommit.Bytes(), smallCommitArg(e.SmallCommit))
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 1 {
		return mapping.OutcomeCreated, nil
	}
	existing, err := s.GetEquivalenceByLarge(ctx, e.Pair(), e.LargeCommit)
	if err != nil {
		return 0, err
	}
	if existing.Equal(e) {
		return mapping.OutcomeAlreadyExists, nil
	}
	return 0, fmt.Errorf("large commit %s in %s already has a recorded equivalence: %w",
		e.LargeCommit, e.Pair(), mapping.ErrConflictingEquivalence)
}

func (s *Store) GetEquivalenceByLarge(ctx context.Context, pair mapping.RepoPair, largeCommit mapping.CommitID) (*mapping.Equivalence, error) {
	var row equivalenceRow
	err := s.db.Get(ctx, &row, selectEquivalenceByLargeSQL,
		int64(pair.Large), int64(pair.Small), largeCommit.Bytes())
	if errors.Is(err, db.ErrNotFound) {
		return nil, mapping.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e, err := row.toEquivalence()
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) ListEquivalencesBySmall(ctx context.Context, pair mapping.RepoPair, smallCommit mapping.CommitID) ([]mapping.Equivalence, error) {
	var rows []equivalenceRow
	err := s.db.Select(ctx, &rows, selectEquivalencesBySmallSQL,
		int64(pair.Large), int64(pair.Small), smallCommit.Bytes())
	if err != nil {
		return nil, err
	}
	result := make([]mapping.Equivalence, 0, len(rows))
	for _, row := range rows {
		e, err := row.toEquivalence()
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

var (
	_ mapping.Store           = (*Store)(nil)
	_ mapping.VersionRegistry = (*Store)(nil)
)

const (
	insertVersionSQL = `INSERT INTO sync_version_config (version_name, payload, checksum)
		VALUES ($1, $2, $3)
		ON CONFLICT (version_name) DO NOTHING`

	selectVersionSQL = `SELECT version_name, payload, checksum
		FROM sync_version_config
		WHERE version_name = $1`

	selectVersionNamesSQL = `SELECT version_name FROM sync_version_config ORDER BY version_name`
)

type versionRow struct {
	VersionName string `db:"version_name"`
	Payload     []byte `db:"payload"`
	Checksum    []byte `db:"checksum"`
}

func (r versionRow) toConfig() (mapping.VersionConfig, error) {
	cfg := mapping.VersionConfig{
		Name:    mapping.SyncVersion(r.VersionName),
		Payload: r.Payload,
	}
	if len(r.Checksum) != sha256.Size {
		return mapping.VersionConfig{}, fmt.Errorf("version %s checksum of %d bytes: %w",
			r.VersionName, len(r.Checksum), mapping.ErrMalformedIdentifier)
	}
	copy(cfg.Checksum[:], r.Checksum)
	return cfg, nil
}

func (s *Store) Register(ctx context.Context, name mapping.SyncVersion, payload []byte) error {
	if name == "" {
		return fmt.Errorf("version name: %w", mapping.ErrMalformedIdentifier)
	}
	cfg := mapping.NewVersionConfig(name, payload)
	tag, err := s.db.Exec(ctx, insertVersionSQL, string(name), payload, cfg.Checksum[:])
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		s.log.WithContext(ctx).
			WithField(logging.VersionFieldKey, string(name)).
			Info("registered sync version")
		return nil
	}
	existing, err := s.Resolve(ctx, name)
	if err != nil {
		return err
	}
	if bytes.Equal(existing.Checksum[:], cfg.Checksum[:]) {
		return nil
	}
	return fmt.Errorf("version %s exists with a different payload: %w", name, mapping.ErrVersionRedefined)
}

func (s *Store) Resolve(ctx context.Context, name mapping.SyncVersion) (*mapping.VersionConfig, error) {
	var row versionRow
	err := s.db.Get(ctx, &row, selectVersionSQL, string(name))
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("version %s: %w", name, mapping.ErrUnknownVersion)
	}
	if err != nil {
		return nil, err
	}
	cfg, err := row.toConfig()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Store) ListVersions(ctx context.Context) ([]mapping.SyncVersion, error) {
	var names []string
	err := s.db.Select(ctx, &names, selectVersionNamesSQL)
	if err != nil {
		return nil, err
	}
	result := make([]mapping.SyncVersion, 0, len(names))
	for _, name := range names {
		result = append(result, mapping.SyncVersion(name))
	}
	return result, nil
}
