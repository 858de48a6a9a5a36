package mapping_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crossrepo/crossrepo/pkg/mapping"
)

func commitOf(b byte) mapping.CommitID {
	var id mapping.CommitID
	for i := range id {
		id[i] = b
	}
	return id
}

func versionOf(name string) *mapping.SyncVersion {
	v := mapping.SyncVersion(name)
	return &v
}

func TestParseCommitID(t *testing.T) {
	hexID := strings.Repeat("ab", mapping.CommitIDLength)
	id, err := mapping.ParseCommitID(hexID)
	require.NoError(t, err)
	require.Equal(t, hexID, id.String())
	require.False(t, id.IsZero())

	_, err = mapping.ParseCommitID("abcd")
	require.ErrorIs(t, err, mapping.ErrMalformedIdentifier)

	_, err = mapping.ParseCommitID(strings.Repeat("zz", mapping.CommitIDLength))
	require.ErrorIs(t, err, mapping.ErrMalformedIdentifier)

	roundTripped, err := mapping.CommitIDFromBytes(id.Bytes())
	require.NoError(t, err)
	require.Equal(t, id, roundTripped)

	_, err = mapping.CommitIDFromBytes([]byte{0x01, 0x02})
	require.ErrorIs(t, err, mapping.ErrMalformedIdentifier)
}

func TestMappingValidate(t *testing.T) {
	valid := mapping.Mapping{
		SmallRepo:   1,
		SmallCommit: commitOf(0x01),
		LargeRepo:   2,
		LargeCommit: commitOf(0x02),
		Version:     versionOf("v1"),
	}
	require.NoError(t, valid.Validate())

	noSmall := valid
	noSmall.SmallCommit = mapping.CommitID{}
	require.ErrorIs(t, noSmall.Validate(), mapping.ErrMalformedIdentifier)

	noLarge := valid
	noLarge.LargeCommit = mapping.CommitID{}
	require.ErrorIs(t, noLarge.Validate(), mapping.ErrMalformedIdentifier)

	emptyVersion := valid
	emptyVersion.Version = versionOf("")
	require.ErrorIs(t, emptyVersion.Validate(), mapping.ErrMalformedIdentifier)

	noVersion := valid
	noVersion.Version = nil
	require.NoError(t, noVersion.Validate())
}

func TestMappingEqual(t *testing.T) {
	m := mapping.Mapping{
		SmallRepo:   1,
		SmallCommit: commitOf(0x01),
		LargeRepo:   2,
		LargeCommit: commitOf(0x02),
		Version:     versionOf("v1"),
	}
	require.True(t, m.Equal(m))

	sameVersion := m
	sameVersion.Version = versionOf("v1")
	require.True(t, m.Equal(sameVersion), "distinct pointers to equal versions must compare equal")

	otherVersion := m
	otherVersion.Version = versionOf("v2")
	require.False(t, m.Equal(otherVersion))

	nilVersion := m
	nilVersion.Version = nil
	require.False(t, m.Equal(nilVersion))
	require.True(t, nilVersion.Equal(nilVersion))
}

func TestEquivalenceValidate(t *testing.T) {
	small := commitOf(0x01)
	valid := mapping.Equivalence{
		SmallRepo:   1,
		SmallCommit: &small,
		LargeRepo:   2,
		LargeCommit: commitOf(0x02),
	}
	require.NoError(t, valid.Validate())

	// nil small commit is the empty projection, a legal record
	emptyProjection := valid
	emptyProjection.SmallCommit = nil
	require.NoError(t, emptyProjection.Validate())

	// a present-but-zero hash is not how absence is spelled
	zero := mapping.CommitID{}
	zeroSmall := valid
	zeroSmall.SmallCommit = &zero
	require.ErrorIs(t, zeroSmall.Validate(), mapping.ErrMalformedIdentifier)
}

func TestEquivalenceEqual(t *testing.T) {
	smallA := commitOf(0x01)
	smallB := commitOf(0x02)
	e := mapping.Equivalence{
		SmallRepo:   1,
		SmallCommit: &smallA,
		LargeRepo:   2,
		LargeCommit: commitOf(0x03),
	}
	sameSmall := e
	copied := smallA
	sameSmall.SmallCommit = &copied
	require.True(t, e.Equal(sameSmall))

	otherSmall := e
	otherSmall.SmallCommit = &smallB
	require.False(t, e.Equal(otherSmall))

	nilSmall := e
	nilSmall.SmallCommit = nil
	require.False(t, e.Equal(nilSmall))
	require.True(t, nilSmall.Equal(nilSmall))
}

func TestParseDirection(t *testing.T) {
	cases := []struct {
		in   string
		want mapping.Direction
	}{
		{"small-to-large", mapping.SmallToLarge},
		{"forward", mapping.SmallToLarge},
		{"large-to-small", mapping.LargeToSmall},
		{"BACKWARD", mapping.LargeToSmall},
	}
	for _, c := range cases {
		got, err := mapping.ParseDirection(c.in)
		require.NoError(t, err, c.in)
		require.Equal(t, c.want, got, c.in)
	}

	_, err := mapping.ParseDirection("sideways")
	require.ErrorIs(t, err, mapping.ErrMalformedIdentifier)
}
