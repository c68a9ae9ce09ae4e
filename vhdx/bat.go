package vhdx

import (
	"encoding/binary"
	"errors"
)

// PayloadState is the low-3-bit state field of a BAT entry.
type PayloadState uint8

const (
	PayloadBlockNotPresent PayloadState = iota
	PayloadBlockUndefined
	PayloadBlockZero
	PayloadBlockUnmapped
	PayloadBlockFullyPresent
	PayloadBlockPartiallyPresent
)

// BATEntry is a single 64-bit block-allocation-table slot: a 3-bit state
// plus a 44-bit file offset in 1 MiB units.
type BATEntry uint64

// MakeBATEntry packs a state and a 1 MiB-unit file offset into an entry.
func MakeBATEntry(state PayloadState, offsetMiB uint64) BATEntry {
	return BATEntry(uint64(state)&0x7 | (offsetMiB << 20))
}

// State returns the entry's payload-block state.
func (e BATEntry) State() PayloadState { return PayloadState(e & 0x7) }

// FileOffset returns the entry's backing file offset, in bytes.
func (e BATEntry) FileOffset() uint64 { return (uint64(e) >> 20) * (1024 * 1024) }

// chunkRatio is the number of payload-block BAT entries between each
// interleaved
// sector-bitmap entry.
func chunkRatio(sectorSize, blockSize uint64) uint64 {
	return (uint64(1) << 23) * sectorSize / blockSize
}

// payloadEntryCount returns the number of payload-block BAT entries a
// virtual disk of the given size needs.
func payloadEntryCount(virtualDiskSize, blockSize uint64) uint64 {
	return (virtualDiskSize + blockSize - 1) / blockSize
}

// batSlotsNeeded returns the total number of 8-byte BAT slots the
// payload entries plus their interleaved sector-bitmap entries occupy.
func batSlotsNeeded(payloadEntries, ratio uint64) uint64 {
	bitmapEntries := (payloadEntries + ratio - 1) / ratio
	return payloadEntries + bitmapEntries
}

// batSlot returns the BAT slot index for payload block blockIdx, after
// accounting for the sector-bitmap entries interleaved before it: one
// bitmap slot follows every full chunk of ratio payload blocks.
func batSlot(blockIdx, ratio uint64) uint64 {
	return blockIdx + blockIdx/ratio
}

// BAT is the in-memory block allocation table: one entry per slot
// (payload blocks and interleaved sector-bitmap placeholders).
type BAT struct {
	entries []BATEntry
	ratio   uint64
}

func newBAT(payloadEntries, ratio uint64) *BAT {
	n := batSlotsNeeded(payloadEntries, ratio)
	return &BAT{entries: make([]BATEntry, n), ratio: ratio}
}

// Get returns the BAT entry mapping payload block blockIdx.
func (b *BAT) Get(blockIdx uint64) BATEntry {
	return b.entries[batSlot(blockIdx, b.ratio)]
}

// Set stores the BAT entry mapping payload block blockIdx.
func (b *BAT) Set(blockIdx uint64, e BATEntry) {
	b.entries[batSlot(blockIdx, b.ratio)] = e
}

func (b *BAT) marshal() []byte {
	buf := make([]byte, len(b.entries)*8)
	for i, e := range b.entries {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], uint64(e))
	}
	return buf
}

func unmarshalBAT(buf []byte, ratio uint64) (*BAT, error) {
	if len(buf)%8 != 0 {
		return nil, errors.New("vhdx: BAT buffer not a multiple of entry size")
	}
	b := &BAT{entries: make([]BATEntry, len(buf)/8), ratio: ratio}
	for i := range b.entries {
		b.entries[i] = BATEntry(binary.LittleEndian.Uint64(buf[i*8 : i*8+8]))
	}
	return b, nil
}
