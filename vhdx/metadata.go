package vhdx

import (
	"encoding/binary"
	"errors"

	"github.com/google/uuid"
)

const (
	metadataSignature  = "metadata"
	metadataEntryCount = 5
	metadataEntrySize  = 24
	metadataHeaderSize = 16
	metadataItemBase   = 256 // offset, within the region, of the first item's data
	metadataItemStride = 32
)

// Metadata is the decoded content of the five fixed metadata entries
// this module always writes: File Parameters, Virtual Disk Size,
// Logical Sector Size, Physical Sector Size, and Page-83 Data. Exactly
// five entries are written; Page-83 data is the fifth, at table index 4.
type Metadata struct {
	BlockSize          uint32
	HasParent          bool
	VirtualDiskSize    uint64
	LogicalSectorSize  uint32
	PhysicalSectorSize uint32
	Page83             uuid.UUID
}

func (m *Metadata) marshal() []byte {
	buf := make([]byte, MetadataRegionSize)
	copy(buf[0:8], metadataSignature)
	binary.LittleEndian.PutUint32(buf[8:12], metadataEntryCount)

	guids := [metadataEntryCount]uuid.UUID{
		fileParametersGUID, virtualDiskSizeGUID, logicalSectorSizeGUID,
		physicalSectorSizeGUID, page83DataGUID,
	}
	for i, g := range guids {
		entryOff := metadataHeaderSize + i*metadataEntrySize
		itemOff := uint32(metadataItemBase + i*metadataItemStride)
		copy(buf[entryOff:entryOff+16], g[:])
		binary.LittleEndian.PutUint32(buf[entryOff+16:entryOff+20], itemOff)

		switch i {
		case 0: // File Parameters
			var flags uint32
			if m.HasParent {
				flags |= 1 << 1
			}
			binary.LittleEndian.PutUint32(buf[itemOff:itemOff+4], m.BlockSize)
			binary.LittleEndian.PutUint32(buf[itemOff+4:itemOff+8], flags)
			binary.LittleEndian.PutUint32(buf[entryOff+20:entryOff+24], 8)
		case 1: // Virtual Disk Size
			binary.LittleEndian.PutUint64(buf[itemOff:itemOff+8], m.VirtualDiskSize)
			binary.LittleEndian.PutUint32(buf[entryOff+20:entryOff+24], 8)
		case 2: // Logical Sector Size
			binary.LittleEndian.PutUint32(buf[itemOff:itemOff+4], m.LogicalSectorSize)
			binary.LittleEndian.PutUint32(buf[entryOff+20:entryOff+24], 4)
		case 3: // Physical Sector Size
			binary.LittleEndian.PutUint32(buf[itemOff:itemOff+4], m.PhysicalSectorSize)
			binary.LittleEndian.PutUint32(buf[entryOff+20:entryOff+24], 4)
		case 4: // Page-83 Data
			copy(buf[itemOff:itemOff+16], m.Page83[:])
			binary.LittleEndian.PutUint32(buf[entryOff+20:entryOff+24], 16)
		}
	}
	return buf
}

func unmarshalMetadata(buf []byte) (*Metadata, error) {
	if len(buf) != MetadataRegionSize {
		return nil, errors.New("vhdx: metadata region has wrong size")
	}
	if string(buf[0:8]) != metadataSignature {
		return nil, errors.New("vhdx: bad metadata signature")
	}
	count := binary.LittleEndian.Uint32(buf[8:12])
	if count != metadataEntryCount {
		return nil, errors.New("vhdx: unexpected metadata entry count")
	}

	m := &Metadata{}
	for i := 0; i < metadataEntryCount; i++ {
		entryOff := metadataHeaderSize + i*metadataEntrySize
		itemOff := binary.LittleEndian.Uint32(buf[entryOff+16 : entryOff+20])

		switch i {
		case 0:
			m.BlockSize = binary.LittleEndian.Uint32(buf[itemOff : itemOff+4])
			flags := binary.LittleEndian.Uint32(buf[itemOff+4 : itemOff+8])
			m.HasParent = flags&(1<<1) != 0
		case 1:
			m.VirtualDiskSize = binary.LittleEndian.Uint64(buf[itemOff : itemOff+8])
		case 2:
			m.LogicalSectorSize = binary.LittleEndian.Uint32(buf[itemOff : itemOff+4])
		case 3:
			m.PhysicalSectorSize = binary.LittleEndian.Uint32(buf[itemOff : itemOff+4])
		case 4:
			copy(m.Page83[:], buf[itemOff:itemOff+16])
		}
	}
	return m, nil
}
