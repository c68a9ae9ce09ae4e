package vhdx

import (
	"encoding/binary"
	"errors"

	"github.com/google/uuid"

	"github.com/ev6sim/ev6core/util"
)

const headerSignature = "head"

// Header is a single VHDX header slot. Two of these alternate on each
// update; only the one with the higher sequence number and
// a valid checksum is authoritative.
type Header struct {
	SequenceNumber uint64
	FileWriteGUID  uuid.UUID
	DataWriteGUID  uuid.UUID
	LogGUID        uuid.UUID
	LogVersion     uint16 // always 0
	FormatVersion  uint16 // always 1
	LogLength      uint32
	LogOffset      uint64
}

// marshal serializes h into a zero-padded 64 KiB slot with the checksum
// computed over the entire slot with the checksum field zeroed during
// the computation.
func (h *Header) marshal() []byte {
	buf := make([]byte, HeaderSlotSize)
	copy(buf[0:4], headerSignature)
	// buf[4:8] checksum left zero for the CRC pass.
	binary.LittleEndian.PutUint64(buf[8:16], h.SequenceNumber)
	copy(buf[16:32], h.FileWriteGUID[:])
	copy(buf[32:48], h.DataWriteGUID[:])
	copy(buf[48:64], h.LogGUID[:])
	binary.LittleEndian.PutUint16(buf[64:66], h.LogVersion)
	binary.LittleEndian.PutUint16(buf[66:68], h.FormatVersion)
	binary.LittleEndian.PutUint32(buf[68:72], h.LogLength)
	binary.LittleEndian.PutUint64(buf[72:80], h.LogOffset)

	sum := util.CRC32C(buf)
	binary.LittleEndian.PutUint32(buf[4:8], sum)
	return buf
}

// unmarshalHeader parses a 64 KiB slot, validating the signature and
// checksum. It returns an error if either is invalid; callers use this
// to decide which of the two header slots is authoritative.
func unmarshalHeader(buf []byte) (*Header, error) {
	if len(buf) != HeaderSlotSize {
		return nil, errors.New("vhdx: header slot has wrong size")
	}
	if string(buf[0:4]) != headerSignature {
		return nil, errors.New("vhdx: bad header signature")
	}

	wantSum := binary.LittleEndian.Uint32(buf[4:8])
	scratch := make([]byte, len(buf))
	copy(scratch, buf)
	binary.LittleEndian.PutUint32(scratch[4:8], 0)
	if util.CRC32C(scratch) != wantSum {
		return nil, errors.New("vhdx: header checksum mismatch")
	}

	h := &Header{
		SequenceNumber: binary.LittleEndian.Uint64(buf[8:16]),
		LogVersion:     binary.LittleEndian.Uint16(buf[64:66]),
		FormatVersion:  binary.LittleEndian.Uint16(buf[66:68]),
		LogLength:      binary.LittleEndian.Uint32(buf[68:72]),
		LogOffset:      binary.LittleEndian.Uint64(buf[72:80]),
	}
	copy(h.FileWriteGUID[:], buf[16:32])
	copy(h.DataWriteGUID[:], buf[32:48])
	copy(h.LogGUID[:], buf[48:64])
	return h, nil
}
