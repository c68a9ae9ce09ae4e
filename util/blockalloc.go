package util

import "fmt"

// BlockAllocator hands out fixed-size, 1 MiB-aligned file offsets for VHDX
// payload blocks that have not yet been materialized on disk. It tracks
// only "next free offset" plus a free list of reclaimed blocks; it does not
// itself touch the file.
type BlockAllocator struct {
	blockSize  uint64 // bytes per block, power of two
	nextOffset uint64 // next never-used offset, 1 MiB-aligned
	free       []uint64
}

// NewBlockAllocator creates an allocator that starts handing out blocks at
// startOffset (which must already be 1 MiB-aligned by the caller).
func NewBlockAllocator(startOffset, blockSize uint64) *BlockAllocator {
	return &BlockAllocator{
		blockSize:  blockSize,
		nextOffset: startOffset,
	}
}

// Alloc returns the file offset of a fresh block, preferring a reclaimed
// block over extending the file.
func (a *BlockAllocator) Alloc() uint64 {
	if n := len(a.free); n > 0 {
		off := a.free[n-1]
		a.free = a.free[:n-1]
		return off
	}
	off := a.nextOffset
	a.nextOffset += a.blockSize
	return off
}

// Free returns a previously allocated block to the free list for reuse.
// It rejects an offset that is not 1 MiB-aligned.
func (a *BlockAllocator) Free(offset uint64) error {
	if offset%(1024*1024) != 0 {
		return fmt.Errorf("util: BlockAllocator.Free: offset %#x not 1 MiB-aligned", offset)
	}
	a.free = append(a.free, offset)
	return nil
}

// HighWaterMark reports the file offset one past the last block ever
// handed out, i.e. the minimum file size needed to hold every allocated
// block.
func (a *BlockAllocator) HighWaterMark() uint64 {
	return a.nextOffset
}
