package mapping_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crossrepo/crossrepo/pkg/mapping"
	"github.com/crossrepo/crossrepo/pkg/mapping/mem"
)

// countingRegistry counts reads that reach the backing registry.
type countingRegistry struct {
	mapping.VersionRegistry
	resolves int
}

func (c *countingRegistry) Resolve(ctx context.Context, name mapping.SyncVersion) (*mapping.VersionConfig, error) {
	c.resolves++
	return c.VersionRegistry.Resolve(ctx, name)
}

func TestCachedRegistry(t *testing.T) {
	ctx := context.Background()
	inner := &countingRegistry{VersionRegistry: mem.New()}
	registry, err := mapping.NewCachedRegistry(inner, 10, time.Minute)
	require.NoError(t, err)

	payload := []byte(`{"default_action": "preserve"}`)
	require.NoError(t, registry.Register(ctx, "v1", payload))

	// registering warmed the cache
	cfg, err := registry.Resolve(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, mapping.SyncVersion("v1"), cfg.Name)
	require.Equal(t, 0, inner.resolves)

	cfg, err = registry.Resolve(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, payload, cfg.Payload)
	require.Equal(t, 0, inner.resolves)

	// misses are not cached
	_, err = registry.Resolve(ctx, "v2")
	require.ErrorIs(t, err, mapping.ErrUnknownVersion)
	_, err = registry.Resolve(ctx, "v2")
	require.ErrorIs(t, err, mapping.ErrUnknownVersion)
	require.Equal(t, 2, inner.resolves)

	// redefinition fails and must not poison the cache
	err = registry.Register(ctx, "v1", []byte(`{"default_action": "drop"}`))
	require.ErrorIs(t, err, mapping.ErrVersionRedefined)
	cfg, err = registry.Resolve(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, payload, cfg.Payload)
}

func TestCachedRegistryReadThrough(t *testing.T) {
	ctx := context.Background()
	backing := mem.New()
	require.NoError(t, backing.Register(ctx, "v1", []byte("rules")))

	inner := &countingRegistry{VersionRegistry: backing}
	registry, err := mapping.NewCachedRegistry(inner, 10, time.Minute)
	require.NoError(t, err)

	// first read goes to the backing registry, the second is served cached
	_, err = registry.Resolve(ctx, "v1")
	require.NoError(t, err)
	_, err = registry.Resolve(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, 1, inner.resolves)

	names, err := registry.ListVersions(ctx)
	require.NoError(t, err)
	require.Equal(t, []mapping.SyncVersion{"v1"}, names)
}
