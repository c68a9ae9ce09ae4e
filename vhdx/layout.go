// Package vhdx implements a content-addressed, log-journalled,
// block-allocated virtual-disk container:
// fixed-offset header/region-table/log/BAT/metadata regions backing a
// flat logical-sector address space exposed to the emulated system.
package vhdx

// Fixed offsets and sizes for the default single-file layout.
// Unlike a general-purpose VHDX writer, this module always
// lays out a file this way: the BAT and metadata regions are sized once
// at create time and never relocated.
const (
	FileIDOffset   = 0
	FileIDSize     = 64 * 1024
	fileIDSig      = "vhdxfile"
	creatorMaxUTF16 = 256 // 512 bytes of UTF-16

	Header1Offset = 64 * 1024
	Header2Offset = 128 * 1024
	HeaderSlotSize = 64 * 1024
	headerUsedSize = 4096

	RegionTable1Offset = 192 * 1024
	RegionTable2Offset = 256 * 1024
	RegionSlotSize     = 64 * 1024

	LogOffset = 1 * 1024 * 1024
	LogSize   = 1 * 1024 * 1024

	BATOffset     = 2 * 1024 * 1024
	BATRegionSize = 16 * 1024 * 1024

	MetadataOffset     = 18 * 1024 * 1024
	MetadataRegionSize = 1 * 1024 * 1024

	PayloadOffset = 19 * 1024 * 1024
)

// CreateVersion is the VHDX create-parameter version. The validator
// resolves an ambiguity between a switch that accepts versions 3/4 and
// a validator that rejects them: only versions 1 and 2 are ever exposed.
type CreateVersion int

const (
	CreateVer1 CreateVersion = 1
	CreateVer2 CreateVersion = 2
)
