package util_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ev6sim/ev6core/util"
)

func TestBlockAllocatorSequential(t *testing.T) {
	a := util.NewBlockAllocator(19*1024*1024, 1024*1024)
	first := a.Alloc()
	second := a.Alloc()
	assert.Equal(t, uint64(19*1024*1024), first)
	assert.Equal(t, uint64(20*1024*1024), second)
	assert.Equal(t, uint64(21*1024*1024), a.HighWaterMark())
}

func TestBlockAllocatorReusesFreedBlocks(t *testing.T) {
	a := util.NewBlockAllocator(1024*1024, 1024*1024)
	first := a.Alloc()
	require.NoError(t, a.Free(first))
	second := a.Alloc()
	assert.Equal(t, first, second, "freed block should be reused before extending the file")
}

func TestBlockAllocatorFreeRejectsMisalignedOffset(t *testing.T) {
	a := util.NewBlockAllocator(1024*1024, 1024*1024)
	assert.Error(t, a.Free(12345))
}
