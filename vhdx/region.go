package vhdx

import (
	"encoding/binary"
	"errors"

	"github.com/google/uuid"

	"github.com/ev6sim/ev6core/util"
)

const (
	regionSignature  = "regi"
	regionEntrySize  = 32
	regionHeaderSize = 16
)

// RegionEntry describes one region: the BAT or the metadata table.
type RegionEntry struct {
	GUID       uuid.UUID
	FileOffset uint64 // 1 MiB-aligned
	Length     uint32
	Required   bool
}

// RegionTable lists the BAT and metadata regions with their deterministic
// GUIDs and fixed offsets for the default layout this module always
// writes: exactly two required entries.
type RegionTable struct {
	Entries []RegionEntry
}

func (rt *RegionTable) marshal() []byte {
	buf := make([]byte, RegionSlotSize)
	copy(buf[0:4], regionSignature)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(rt.Entries)))

	off := regionHeaderSize
	for _, e := range rt.Entries {
		copy(buf[off:off+16], e.GUID[:])
		binary.LittleEndian.PutUint64(buf[off+16:off+24], e.FileOffset)
		binary.LittleEndian.PutUint32(buf[off+24:off+28], e.Length)
		var flags uint32
		if e.Required {
			flags |= 1
		}
		binary.LittleEndian.PutUint32(buf[off+28:off+32], flags)
		off += regionEntrySize
	}

	sum := util.CRC32C(buf)
	binary.LittleEndian.PutUint32(buf[4:8], sum)
	return buf
}

func unmarshalRegionTable(buf []byte) (*RegionTable, error) {
	if len(buf) != RegionSlotSize {
		return nil, errors.New("vhdx: region table slot has wrong size")
	}
	if string(buf[0:4]) != regionSignature {
		return nil, errors.New("vhdx: bad region table signature")
	}

	wantSum := binary.LittleEndian.Uint32(buf[4:8])
	scratch := make([]byte, len(buf))
	copy(scratch, buf)
	binary.LittleEndian.PutUint32(scratch[4:8], 0)
	if util.CRC32C(scratch) != wantSum {
		return nil, errors.New("vhdx: region table checksum mismatch")
	}

	count := binary.LittleEndian.Uint32(buf[8:12])
	rt := &RegionTable{Entries: make([]RegionEntry, 0, count)}
	off := regionHeaderSize
	for i := uint32(0); i < count; i++ {
		var e RegionEntry
		copy(e.GUID[:], buf[off:off+16])
		e.FileOffset = binary.LittleEndian.Uint64(buf[off+16 : off+24])
		e.Length = binary.LittleEndian.Uint32(buf[off+24 : off+28])
		flags := binary.LittleEndian.Uint32(buf[off+28 : off+32])
		e.Required = flags&1 != 0
		rt.Entries = append(rt.Entries, e)
		off += regionEntrySize
	}
	return rt, nil
}

// batRegionGUID and metadataRegionGUID identify this module's own BAT
// and metadata regions in the region table. They are fixed (not random)
// so that a file this module wrote is recognizable as such.
var (
	batRegionGUID      = uuid.MustParse("2DC27766-F623-4200-9D64-115E9BFD4A08")
	metadataRegionGUID = uuid.MustParse("8B7CA206-4790-4B9A-B8FE-575F050F886E")
)
