package mapping

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	lru "github.com/hnlq715/golang-lru"
)

// VersionConfig is a named, immutable rewrite-rule configuration snapshot.
// The payload is opaque to this subsystem; it is stored content-addressed so
// divergent re-registrations can be rejected.
type VersionConfig struct {
	Name     SyncVersion
	Payload  []byte
	Checksum [sha256.Size]byte
}

func NewVersionConfig(name SyncVersion, payload []byte) VersionConfig {
	return VersionConfig{
		Name:     name,
		Payload:  payload,
		Checksum: sha256.Sum256(payload),
	}
}

func (c VersionConfig) Equal(other VersionConfig) bool {
	return c.Name == other.Name && bytes.Equal(c.Checksum[:], other.Checksum[:])
}

// VersionRegistry associates sync version names with the configuration they
// name. Read-mostly; consulted for diagnostics and by the rewrite engine when
// picking the current version.
type VersionRegistry interface {
	// Register stores a version config. Registering the identical payload
	// again is a no-op; a different payload under the same name fails with
	// ErrVersionRedefined.
	Register(ctx context.Context, name SyncVersion, payload []byte) error

	// Resolve returns the config for a name, or ErrUnknownVersion.
	Resolve(ctx context.Context, name SyncVersion) (*VersionConfig, error)

	// ListVersions returns all registered version names.
	ListVersions(ctx context.Context) ([]SyncVersion, error)
}

// CachedRegistry is a read-through cache in front of a VersionRegistry.
// Version configs are immutable, so cached entries can never go stale - the
// expiry only bounds memory for abandoned names.
type CachedRegistry struct {
	inner  VersionRegistry
	cache  *lru.Cache
	expiry time.Duration
}

func NewCachedRegistry(inner VersionRegistry, size int, expiry time.Duration) (*CachedRegistry, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("version cache: %w", err)
	}
	return &CachedRegistry{
		inner:  inner,
		cache:  cache,
		expiry: expiry,
	}, nil
}

func (r *CachedRegistry) Register(ctx context.Context, name SyncVersion, payload []byte) error {
	err := r.inner.Register(ctx, name, payload)
	if err != nil {
		return err
	}
	cfg := NewVersionConfig(name, payload)
	r.cache.AddEx(name, &cfg, r.expiry)
	return nil
}

func (r *CachedRegistry) Resolve(ctx context.Context, name SyncVersion) (*VersionConfig, error) {
	if v, ok := r.cache.Get(name); ok {
		return v.(*VersionConfig), nil
	}
	cfg, err := r.inner.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	r.cache.AddEx(name, cfg, r.expiry)
	return cfg, nil
}

// ListVersions is not cached - it is a rare administrative query.
func (r *CachedRegistry) ListVersions(ctx context.Context) ([]SyncVersion, error) {
	return r.inner.ListVersions(ctx)
}

var _ VersionRegistry = (*CachedRegistry)(nil)
