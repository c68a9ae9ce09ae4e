package cpu

// RegisterFile holds the 32 integer and 32 floating-point architectural
// register slots. R31 and F31 are hard-wired to zero: writes are
// discarded, reads always return zero. Each slot is an opaque 64-bit word;
// callers interpret it as unsigned quadword, signed quadword, or one of
// the supported floating-point encodings via the pack/unpack helpers in
// fpformats.go.
type RegisterFile struct {
	Int [32]uint64
	FP  [32]uint64
}

// ReadInt returns the current value of integer register r (0-31).
func (rf *RegisterFile) ReadInt(r int) uint64 {
	if r == 31 {
		return 0
	}
	return rf.Int[r]
}

// WriteInt sets integer register r (0-31). Writes to R31 are discarded.
func (rf *RegisterFile) WriteInt(r int, v uint64) {
	if r == 31 {
		return
	}
	rf.Int[r] = v
}

// ReadFP returns the current bit pattern of floating-point register r
// (0-31).
func (rf *RegisterFile) ReadFP(r int) uint64 {
	if r == 31 {
		return 0
	}
	return rf.FP[r]
}

// WriteFP sets floating-point register r (0-31). Writes to F31 are
// discarded.
func (rf *RegisterFile) WriteFP(r int, v uint64) {
	if r == 31 {
		return
	}
	rf.FP[r] = v
}

// Reset zeroes every register slot (R31/F31 are already always zero).
func (rf *RegisterFile) Reset() {
	rf.Int = [32]uint64{}
	rf.FP = [32]uint64{}
}
