package vhdx

import (
	"encoding/binary"
	"errors"
	"os"

	"github.com/ev6sim/ev6core/util"
)

const (
	logSignature = "loge"
	logHeaderSize = 64
	// logSlotSize is the fixed per-entry image size: large enough to hold
	// either supported logical sector size (512 or 4096), so a single
	// log-entry layout serves both. Entries for a 512-byte sector
	// container use only the first 512 bytes of each image.
	logSlotSize = 4096
	// logEntrySize: seq + sector offset + sector size + pad + pre + post image.
	logEntrySize = 8 + 8 + 4 + 4 + logSlotSize + logSlotSize
)

// logHeader is the small ring-buffer bookkeeping record kept at the start
// of the 1 MiB log region: the sequence-number watermarks plus the
// flushed and last file offsets, both multiples of 1 MiB.
type logHeader struct {
	HeadSeq           uint64
	TailSeq           uint64
	FlushedFileOffset uint64
	LastFileOffset    uint64
}

func (h *logHeader) marshal() []byte {
	buf := make([]byte, logHeaderSize)
	copy(buf[0:4], logSignature)
	binary.LittleEndian.PutUint64(buf[8:16], h.HeadSeq)
	binary.LittleEndian.PutUint64(buf[16:24], h.TailSeq)
	binary.LittleEndian.PutUint64(buf[24:32], h.FlushedFileOffset)
	binary.LittleEndian.PutUint64(buf[32:40], h.LastFileOffset)

	sum := util.CRC32C(buf)
	binary.LittleEndian.PutUint32(buf[4:8], sum)
	return buf
}

func unmarshalLogHeader(buf []byte) (*logHeader, error) {
	if len(buf) != logHeaderSize {
		return nil, errors.New("vhdx: log header has wrong size")
	}
	if string(buf[0:4]) != logSignature {
		return nil, errors.New("vhdx: bad log signature")
	}
	wantSum := binary.LittleEndian.Uint32(buf[4:8])
	scratch := make([]byte, len(buf))
	copy(scratch, buf)
	binary.LittleEndian.PutUint32(scratch[4:8], 0)
	if util.CRC32C(scratch) != wantSum {
		return nil, errors.New("vhdx: log header checksum mismatch")
	}

	h := &logHeader{
		HeadSeq:           binary.LittleEndian.Uint64(buf[8:16]),
		TailSeq:           binary.LittleEndian.Uint64(buf[16:24]),
		FlushedFileOffset: binary.LittleEndian.Uint64(buf[24:32]),
		LastFileOffset:    binary.LittleEndian.Uint64(buf[32:40]),
	}
	return h, nil
}

// logCapacity is the number of entries the fixed 1 MiB log region can
// hold after its header.
func logCapacity() uint64 {
	return uint64((LogSize - logHeaderSize) / logEntrySize)
}

func logEntryFileOffset(seq uint64) int64 {
	idx := seq % logCapacity()
	return LogOffset + logHeaderSize + int64(idx)*logEntrySize
}

// journal is the staged-write log a Handle drives: every sector-granular
// write goes through appendEntry before the BAT or header mutation it
// protects.
type journal struct {
	f      *os.File
	header logHeader
}

func newJournal(f *os.File) *journal {
	return &journal{f: f}
}

// appendEntry records the pre- and post-images of one logical sector
// (512 or 4096 bytes) at fileOffset, advances the tail
// sequence number, and persists the log header. It does not itself
// apply postImage to fileOffset; callers do that as the next step, per
// the write-ahead ordering.
func (j *journal) appendEntry(fileOffset uint64, preImage, postImage []byte) error {
	buf := make([]byte, logEntrySize)
	binary.LittleEndian.PutUint64(buf[0:8], j.header.TailSeq)
	binary.LittleEndian.PutUint64(buf[8:16], fileOffset)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(postImage)))
	copy(buf[24:24+len(preImage)], preImage)
	copy(buf[24+logSlotSize:24+logSlotSize+len(postImage)], postImage)

	if err := util.WriteAtOffset(j.f, buf, logEntryFileOffset(j.header.TailSeq)); err != nil {
		return err
	}
	j.header.TailSeq++
	return j.writeHeader()
}

// commit marks every appended-but-unapplied entry as applied (head
// catches up to tail) and persists the header. Callers call this once
// the entries' post-images have actually been written to their target
// offsets.
func (j *journal) commit(fileSize uint64) error {
	j.header.HeadSeq = j.header.TailSeq
	j.header.FlushedFileOffset = fileSize
	j.header.LastFileOffset = fileSize
	return j.writeHeader()
}

func (j *journal) writeHeader() error {
	return util.WriteAtOffset(j.f, j.header.marshal(), LogOffset)
}

// loadJournal reads the log header from f and replays any entries
// between head and tail: on open, if the tail sequence number exceeds
// the head, outstanding entries are applied before I/O is allowed.
func loadJournal(f *os.File) (*journal, error) {
	buf := make([]byte, logHeaderSize)
	if err := util.ReadAtOffset(f, buf, LogOffset); err != nil {
		return nil, err
	}
	h, err := unmarshalLogHeader(buf)
	if err != nil {
		return nil, err
	}

	j := &journal{f: f, header: *h}
	if h.TailSeq > h.HeadSeq {
		if err := j.replay(); err != nil {
			return nil, err
		}
	}
	return j, nil
}

// replay applies the post-image of every entry between HeadSeq and
// TailSeq, in order, then advances HeadSeq to TailSeq. Power-fail
// recovery is idempotent: replaying an already-applied entry rewrites
// the same bytes.
func (j *journal) replay() error {
	for seq := j.header.HeadSeq; seq < j.header.TailSeq; seq++ {
		buf := make([]byte, logEntrySize)
		if err := util.ReadAtOffset(j.f, buf, logEntryFileOffset(seq)); err != nil {
			return err
		}
		fileOffset := binary.LittleEndian.Uint64(buf[8:16])
		sectorSize := binary.LittleEndian.Uint32(buf[16:20])
		postImage := buf[24+logSlotSize : 24+logSlotSize+int(sectorSize)]
		if err := util.WriteAtOffset(j.f, postImage, int64(fileOffset)); err != nil {
			return err
		}
	}
	j.header.HeadSeq = j.header.TailSeq
	return j.writeHeader()
}
