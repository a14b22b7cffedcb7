package duplex

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDGenerator_Next(t *testing.T) {
	require := require.New(t)

	gen := newIDGenerator()
	seen := make(map[ID]struct{})
	prev := ID(0)
	for range 1000 {
		id := gen.Next()
		require.Greater(uint64(id), uint64(prev), "ids are monotonic within an epoch")
		_, dup := seen[id]
		require.False(dup)
		seen[id] = struct{}{}
		prev = id
	}
}

func TestIDGenerator_NewEpoch(t *testing.T) {
	require := require.New(t)

	gen := &idGenerator{epoch: 7}
	first := gen.Next()
	require.Equal(uint32(7), first.Epoch())
	require.Equal(uint32(1), first.Seq())

	epoch := gen.NewEpoch()
	require.Equal(uint32(8), epoch)
	require.Equal(uint32(8), gen.Epoch())

	second := gen.Next()
	require.Equal(uint32(8), second.Epoch())
	require.Equal(uint32(1), second.Seq())
	require.NotEqual(first, second)
}

func TestIDGenerator_Wrap(t *testing.T) {
	require := require.New(t)

	gen := &idGenerator{epoch: epochMask, seq: math.MaxUint32}
	id := gen.Next()
	require.Equal(uint32(0), id.Epoch(), "epoch wraps inside its mask")
	require.Equal(uint32(1), id.Seq())

	gen = &idGenerator{epoch: 3, seq: math.MaxUint32 - 1}
	last := gen.Next()
	next := gen.Next()
	require.Equal(uint32(3), last.Epoch())
	require.Equal(uint32(4), next.Epoch())
}

func TestID_SafeInteger(t *testing.T) {
	maxID := ID(uint64(epochMask)<<seqBits | math.MaxUint32)
	require.Less(t, uint64(maxID), uint64(1)<<53)
	require.Equal(t, "4294967297", ID(1<<32|1).String())
}
