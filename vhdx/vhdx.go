package vhdx

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ev6sim/ev6core/util"
)

// VHDXStatus is the closed status taxonomy container operations report.
type VHDXStatus int

const (
	StatusSuccess VHDXStatus = iota
	StatusInvalidParameter
	StatusFileExists
	StatusInvalidHandle
	StatusWriteFault
	StatusOutOfMemory
	StatusInvalidFormat
	StatusOutOfRange
)

func (s VHDXStatus) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusInvalidParameter:
		return "InvalidParameter"
	case StatusFileExists:
		return "FileExists"
	case StatusInvalidHandle:
		return "InvalidHandle"
	case StatusWriteFault:
		return "WriteFault"
	case StatusOutOfMemory:
		return "OutOfMemory"
	case StatusInvalidFormat:
		return "InvalidFormat"
	case StatusOutOfRange:
		return "OutOfRange"
	default:
		return "Unknown"
	}
}

// Error is returned by every Handle operation that fails; Op names the
// operation (e.g. "Create", "ReadSector").
type Error struct {
	Status VHDXStatus
	Op     string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vhdx: %s: %s: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("vhdx: %s: %s", e.Op, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(op string, status VHDXStatus, err error) *Error {
	return &Error{Op: op, Status: status, Err: err}
}

// creatorString is written verbatim into the FileID region at creation time.
const creatorString = "ev6core"

// Handle is an open VHDX container: the fixed on-disk regions, held in
// memory and kept consistent with the on-disk image
// through the journal.
type Handle struct {
	f    *os.File
	path string

	headers    [2]Header
	activeHdr  int
	regions    RegionTable
	meta       Metadata
	bat        *BAT
	ratio      uint64
	alloc      *util.BlockAllocator
	journal    *journal
	closed     bool

	// Logger receives one line per header commit. It defaults to a
	// discarding logger; callers that want visibility assign their own.
	// The journal-replay line Open writes goes to the default discarding
	// logger, since replay runs before a caller can assign one.
	Logger *log.Logger
}

// Create lays out a new VHDX file at path: FileID, two header slots, two
// region-table slots, an empty log, a zeroed BAT, and the five fixed
// metadata entries.
func Create(path string, virtualDiskSize, blockSize uint64, sectorSize uint32, version CreateVersion) (*Handle, error) {
	if virtualDiskSize == 0 || blockSize == 0 || sectorSize == 0 {
		return nil, newErr("Create", StatusInvalidParameter, nil)
	}
	if version != CreateVer1 && version != CreateVer2 {
		return nil, newErr("Create", StatusInvalidParameter, fmt.Errorf("unsupported create version %d", version))
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, newErr("Create", StatusFileExists, err)
		}
		return nil, newErr("Create", StatusInvalidParameter, err)
	}

	h, err := create(f, virtualDiskSize, blockSize, sectorSize)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	h.path = path
	return h, nil
}

func create(f *os.File, virtualDiskSize, blockSize uint64, sectorSize uint32) (*Handle, error) {
	if err := f.Truncate(PayloadOffset); err != nil {
		return nil, newErr("Create", StatusWriteFault, err)
	}

	fileID := make([]byte, FileIDSize)
	copy(fileID[0:8], fileIDSig)
	creator := util.AsciiToUTF16(creatorString, creatorMaxUTF16)
	copy(fileID[8:8+len(creator)], creator)
	if err := util.WriteAtOffset(f, fileID, FileIDOffset); err != nil {
		return nil, newErr("Create", StatusWriteFault, err)
	}

	hdr := Header{
		SequenceNumber: 0,
		FileWriteGUID:  newGUID(),
		DataWriteGUID:  newGUID(),
		LogGUID:        newGUID(),
		LogVersion:     0,
		FormatVersion:  1,
		LogLength:      LogSize,
		LogOffset:      LogOffset,
	}
	if err := util.WriteAtOffset(f, hdr.marshal(), Header1Offset); err != nil {
		return nil, newErr("Create", StatusWriteFault, err)
	}
	if err := util.WriteAtOffset(f, hdr.marshal(), Header2Offset); err != nil {
		return nil, newErr("Create", StatusWriteFault, err)
	}

	regions := RegionTable{Entries: []RegionEntry{
		{GUID: batRegionGUID, FileOffset: BATOffset, Length: BATRegionSize, Required: true},
		{GUID: metadataRegionGUID, FileOffset: MetadataOffset, Length: MetadataRegionSize, Required: true},
	}}
	if err := util.WriteAtOffset(f, regions.marshal(), RegionTable1Offset); err != nil {
		return nil, newErr("Create", StatusWriteFault, err)
	}
	if err := util.WriteAtOffset(f, regions.marshal(), RegionTable2Offset); err != nil {
		return nil, newErr("Create", StatusWriteFault, err)
	}

	jr := newJournal(f)
	if err := jr.writeHeader(); err != nil {
		return nil, newErr("Create", StatusWriteFault, err)
	}

	ratio := chunkRatio(uint64(sectorSize), blockSize)
	payloadEntries := payloadEntryCount(virtualDiskSize, blockSize)
	bat := newBAT(payloadEntries, ratio)
	if err := util.WriteAtOffset(f, bat.marshal(), BATOffset); err != nil {
		return nil, newErr("Create", StatusWriteFault, err)
	}

	meta := Metadata{
		BlockSize:          uint32(blockSize),
		HasParent:          false,
		VirtualDiskSize:    virtualDiskSize,
		LogicalSectorSize:  sectorSize,
		PhysicalSectorSize: sectorSize,
		Page83:             newGUID(),
	}
	if err := util.WriteAtOffset(f, meta.marshal(), MetadataOffset); err != nil {
		return nil, newErr("Create", StatusWriteFault, err)
	}

	return &Handle{
		f:         f,
		headers:   [2]Header{hdr, hdr},
		activeHdr: 0,
		regions:   regions,
		meta:      meta,
		bat:       bat,
		ratio:     ratio,
		alloc:     util.NewBlockAllocator(PayloadOffset, blockSize),
		journal:   jr,
		Logger:    log.New(io.Discard, "", 0),
	}, nil
}

// Open reads an existing VHDX file back into memory, replaying any
// outstanding log entries before returning the handle.
func Open(path string) (*Handle, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newErr("Open", StatusInvalidHandle, err)
		}
		return nil, newErr("Open", StatusInvalidParameter, err)
	}

	h, err := open(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	h.path = path
	return h, nil
}

func open(f *os.File) (*Handle, error) {
	hdr1buf := make([]byte, HeaderSlotSize)
	hdr2buf := make([]byte, HeaderSlotSize)
	if err := util.ReadAtOffset(f, hdr1buf, Header1Offset); err != nil {
		return nil, newErr("Open", StatusInvalidFormat, err)
	}
	if err := util.ReadAtOffset(f, hdr2buf, Header2Offset); err != nil {
		return nil, newErr("Open", StatusInvalidFormat, err)
	}
	hdr1, err1 := unmarshalHeader(hdr1buf)
	hdr2, err2 := unmarshalHeader(hdr2buf)
	active := 0
	var hdr *Header
	switch {
	case err1 == nil && err2 == nil:
		if hdr2.SequenceNumber > hdr1.SequenceNumber {
			hdr, active = hdr2, 1
		} else {
			hdr, active = hdr1, 0
		}
	case err1 == nil:
		hdr, active = hdr1, 0
	case err2 == nil:
		hdr, active = hdr2, 1
	default:
		return nil, newErr("Open", StatusInvalidFormat, err1)
	}

	rt1buf := make([]byte, RegionSlotSize)
	rt2buf := make([]byte, RegionSlotSize)
	if err := util.ReadAtOffset(f, rt1buf, RegionTable1Offset); err != nil {
		return nil, newErr("Open", StatusInvalidFormat, err)
	}
	if err := util.ReadAtOffset(f, rt2buf, RegionTable2Offset); err != nil {
		return nil, newErr("Open", StatusInvalidFormat, err)
	}
	regions, err := unmarshalRegionTable(rt1buf)
	if err != nil {
		regions, err = unmarshalRegionTable(rt2buf)
		if err != nil {
			return nil, newErr("Open", StatusInvalidFormat, err)
		}
	}

	logger := log.New(io.Discard, "", 0)

	pendingBuf := make([]byte, logHeaderSize)
	var outstanding uint64
	if err := util.ReadAtOffset(f, pendingBuf, LogOffset); err == nil {
		if prior, err := unmarshalLogHeader(pendingBuf); err == nil && prior.TailSeq > prior.HeadSeq {
			outstanding = prior.TailSeq - prior.HeadSeq
		}
	}

	jr, err := loadJournal(f)
	if err != nil {
		return nil, newErr("Open", StatusInvalidFormat, err)
	}
	if outstanding > 0 {
		logger.Printf("vhdx: replayed %d outstanding journal entries on open", outstanding)
	}

	metaBuf := make([]byte, MetadataRegionSize)
	if err := util.ReadAtOffset(f, metaBuf, MetadataOffset); err != nil {
		return nil, newErr("Open", StatusInvalidFormat, err)
	}
	meta, err := unmarshalMetadata(metaBuf)
	if err != nil {
		return nil, newErr("Open", StatusInvalidFormat, err)
	}

	ratio := chunkRatio(uint64(meta.LogicalSectorSize), uint64(meta.BlockSize))
	payloadEntries := payloadEntryCount(meta.VirtualDiskSize, uint64(meta.BlockSize))
	slots := batSlotsNeeded(payloadEntries, ratio)
	batBuf := make([]byte, slots*8)
	if err := util.ReadAtOffset(f, batBuf, BATOffset); err != nil {
		return nil, newErr("Open", StatusInvalidFormat, err)
	}
	bat, err := unmarshalBAT(batBuf, ratio)
	if err != nil {
		return nil, newErr("Open", StatusInvalidFormat, err)
	}

	highWater := uint64(PayloadOffset)
	for i := uint64(0); i < payloadEntries; i++ {
		if e := bat.Get(i); e.State() != PayloadBlockNotPresent {
			if end := e.FileOffset() + uint64(meta.BlockSize); end > highWater {
				highWater = end
			}
		}
	}
	alloc := util.NewBlockAllocator(highWater, uint64(meta.BlockSize))

	return &Handle{
		f:         f,
		headers:   [2]Header{*hdr, *hdr},
		activeHdr: active,
		regions:   *regions,
		meta:      *meta,
		bat:       bat,
		ratio:     ratio,
		alloc:     alloc,
		journal:   jr,
		Logger:    logger,
	}, nil
}

func (h *Handle) checkOpen(op string) error {
	if h.closed {
		return newErr(op, StatusInvalidHandle, nil)
	}
	return nil
}

// ReadSector fills dst (exactly one logical sector) with the content of
// logical block address lba. A never-written block reads as zeros.
func (h *Handle) ReadSector(lba uint64, dst []byte) error {
	if err := h.checkOpen("ReadSector"); err != nil {
		return err
	}
	if uint32(len(dst)) != h.meta.LogicalSectorSize {
		return newErr("ReadSector", StatusInvalidParameter, nil)
	}
	byteOffset := lba * uint64(h.meta.LogicalSectorSize)
	if byteOffset >= h.meta.VirtualDiskSize {
		return newErr("ReadSector", StatusOutOfRange, nil)
	}

	blockIdx := byteOffset / uint64(h.meta.BlockSize)
	offsetInBlock := byteOffset % uint64(h.meta.BlockSize)
	entry := h.bat.Get(blockIdx)
	if entry.State() == PayloadBlockNotPresent || entry.State() == PayloadBlockZero {
		for i := range dst {
			dst[i] = 0
		}
		return nil
	}

	if err := util.ReadAtOffset(h.f, dst, int64(entry.FileOffset()+offsetInBlock)); err != nil {
		return newErr("ReadSector", StatusWriteFault, err)
	}
	return nil
}

// WriteSector journals and then applies a single logical sector write.
// The container's logical sector size must be 512 or 4096 bytes;
// log.go's fixed-size journal slots accommodate either.
func (h *Handle) WriteSector(lba uint64, src []byte) error {
	if err := h.checkOpen("WriteSector"); err != nil {
		return err
	}
	if uint32(len(src)) != h.meta.LogicalSectorSize {
		return newErr("WriteSector", StatusInvalidParameter, nil)
	}
	byteOffset := lba * uint64(h.meta.LogicalSectorSize)
	if byteOffset >= h.meta.VirtualDiskSize {
		return newErr("WriteSector", StatusOutOfRange, nil)
	}

	blockIdx := byteOffset / uint64(h.meta.BlockSize)
	offsetInBlock := byteOffset % uint64(h.meta.BlockSize)
	entry := h.bat.Get(blockIdx)

	preImage := make([]byte, h.meta.LogicalSectorSize)
	if entry.State() == PayloadBlockNotPresent || entry.State() == PayloadBlockZero {
		newOffset := h.alloc.Alloc()
		// Extend the file over the whole new block so its unwritten
		// sectors read back as zeros rather than past end of file.
		blockEnd := int64(newOffset + uint64(h.meta.BlockSize))
		if size, err := util.FileSize(h.f); err != nil {
			return newErr("WriteSector", StatusWriteFault, err)
		} else if size < blockEnd {
			if err := h.f.Truncate(blockEnd); err != nil {
				return newErr("WriteSector", StatusWriteFault, err)
			}
		}
		entry = MakeBATEntry(PayloadBlockFullyPresent, newOffset/(1024*1024))
		h.bat.Set(blockIdx, entry)
	} else {
		if err := util.ReadAtOffset(h.f, preImage, int64(entry.FileOffset()+offsetInBlock)); err != nil {
			return newErr("WriteSector", StatusWriteFault, err)
		}
	}

	postImage := make([]byte, h.meta.LogicalSectorSize)
	copy(postImage, src)

	fileOffset := entry.FileOffset() + offsetInBlock
	if err := h.journal.appendEntry(fileOffset, preImage, postImage); err != nil {
		return newErr("WriteSector", StatusWriteFault, err)
	}
	if err := util.WriteAtOffset(h.f, src, int64(fileOffset)); err != nil {
		return newErr("WriteSector", StatusWriteFault, err)
	}

	batSlotOffset := int64(BATOffset) + int64(batSlot(blockIdx, h.ratio)*8)
	entryBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(entryBuf, uint64(entry))
	if err := util.WriteAtOffset(h.f, entryBuf, batSlotOffset); err != nil {
		return newErr("WriteSector", StatusWriteFault, err)
	}

	size, err := util.FileSize(h.f)
	if err != nil {
		return newErr("WriteSector", StatusWriteFault, err)
	}
	if err := h.journal.commit(uint64(size)); err != nil {
		return newErr("WriteSector", StatusWriteFault, err)
	}

	return h.commitHeader()
}

// commitHeader writes the next sequence number into the inactive header
// slot and makes it active.
func (h *Handle) commitHeader() error {
	next := h.activeHdr ^ 1
	hdr := h.headers[h.activeHdr]
	hdr.SequenceNumber++
	hdr.DataWriteGUID = newGUID()

	offset := int64(Header1Offset)
	if next == 1 {
		offset = Header2Offset
	}
	if err := util.WriteAtOffset(h.f, hdr.marshal(), offset); err != nil {
		return newErr("WriteSector", StatusWriteFault, err)
	}
	h.headers[next] = hdr
	h.activeHdr = next
	h.Logger.Printf("vhdx: committed header slot %d seq=%d", next, hdr.SequenceNumber)
	return nil
}

// Close releases the underlying file. Closing an already-closed handle
// reports InvalidHandle.
func (h *Handle) Close() error {
	if h.closed {
		return newErr("Close", StatusInvalidHandle, nil)
	}
	h.closed = true
	if err := h.f.Close(); err != nil {
		return newErr("Close", StatusWriteFault, err)
	}
	return nil
}

// VirtualDiskSize returns the logical size, in bytes, this container
// presents.
func (h *Handle) VirtualDiskSize() uint64 { return h.meta.VirtualDiskSize }

// SectorSize returns the logical sector size this container was created
// with.
func (h *Handle) SectorSize() uint32 { return h.meta.LogicalSectorSize }

// BlockSize returns the payload block size this container was created
// with.
func (h *Handle) BlockSize() uint32 { return h.meta.BlockSize }
