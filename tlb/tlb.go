// Package tlb implements the content-addressable page-map structure shared
// by the Instruction and Data Translation Buffers. Both the
// ITB and DTB are instances of the same TLB type; itb.go and dtb.go only
// add the thin, collaborator-specific wrappers fetch.go and mmu.go call
// through.
package tlb

import "github.com/ev6sim/ev6core/cpu"

// Size is the number of fully-associative entries a TLB holds. The EV6
// ITB and DTB are each 128-entry structures.
const Size = 128

// Granularity is the super-page hint: how many contiguous 8 KiB pages a
// single entry covers.
type Granularity int

const (
	Granularity1 Granularity = iota
	Granularity8
	Granularity64
	Granularity512
)

// pageCount returns the number of 8 KiB pages g covers.
func (g Granularity) pageCount() uint64 {
	switch g {
	case Granularity8:
		return 8
	case Granularity64:
		return 64
	case Granularity512:
		return 512
	default:
		return 1
	}
}

// pageMask returns the mask applied to a virtual page number before
// comparing it against an entry's VPN: the low bits covered by the
// super-page granularity are wildcarded.
func (g Granularity) pageMask() uint64 {
	return ^(g.pageCount() - 1)
}

// AccessKind distinguishes the four ways an address can be used.
type AccessKind int

const (
	AccessFetch AccessKind = iota
	AccessRead
	AccessWrite
	AccessModify
)

// Entry is a single TLB mapping.
type Entry struct {
	VPN            uint64 // virtual page number (VA >> 13)
	PFN            uint64 // physical page frame
	ASN            uint64
	ASM            bool // address-space match: ignores ASN
	FaultOnRead    bool
	FaultOnWrite   bool
	FaultOnExecute bool
	KernelRead     bool
	KernelWrite    bool
	ExecRead       bool
	ExecWrite      bool
	SupervisorRead bool
	SupervisorWrite bool
	UserRead       bool
	UserWrite      bool
	Granularity    Granularity
	PALEntry       bool // established while the CPU was in PALcode mode
}

func (e *Entry) matches(vpn, asn uint64) bool {
	mask := e.Granularity.pageMask()
	if (e.VPN & mask) != (vpn & mask) {
		return false
	}
	if e.ASM {
		return true
	}
	return e.ASN == asn
}

// TLB is a fully-associative, content-addressed translation buffer used
// for both instruction and data translation.
type TLB struct {
	entries  [Size]Entry
	valid    [Size]bool
	lastUsed [Size]uint64
	clock    uint64
}

// New creates an empty TLB.
func New() *TLB {
	return &TLB{}
}

// Find returns the entry matching (va, asn), masking by each candidate
// entry's own granularity hint and bypassing the ASN comparison for
// ASM-set entries. It returns (nil, false) if no entry matches, in which
// case the caller must raise TranslationNotValid and invoke PALcode to
// refill.
func (t *TLB) Find(va uint64, asn uint64) (*Entry, bool) {
	vpn := va >> 13
	for i := range t.entries {
		if !t.valid[i] {
			continue
		}
		if t.entries[i].matches(vpn, asn) {
			t.clock++
			t.lastUsed[i] = t.clock
			return &t.entries[i], true
		}
	}
	return nil, false
}

// findSlot returns the index of the entry matching (vpn, asn) if one is
// resident, regardless of recency bookkeeping.
func (t *TLB) findSlot(vpn, asn uint64) (int, bool) {
	for i := range t.entries {
		if t.valid[i] && t.entries[i].matches(vpn, asn) {
			return i, true
		}
	}
	return -1, false
}

// Insert adds e to the TLB. If an entry already matches e's (VPN, ASN)
// pair it is evicted first, preserving the invariant that at most one
// entry may match a (VA, ASN) pair. When the buffer is full, the
// replacement policy evicts the not-most-recently-used entry among
// non-ASM entries; ASM entries are preferred to stay resident but may be
// evicted if no non-ASM entry exists. Ties break on the lowest-indexed
// slot.
func (t *TLB) Insert(e Entry) {
	if slot, ok := t.findSlot(e.VPN, e.ASN); ok {
		t.set(slot, e)
		return
	}

	for i := range t.valid {
		if !t.valid[i] {
			t.set(i, e)
			return
		}
	}

	victim := t.chooseVictim()
	t.set(victim, e)
}

func (t *TLB) set(slot int, e Entry) {
	t.entries[slot] = e
	t.valid[slot] = true
	t.clock++
	t.lastUsed[slot] = t.clock
}

// chooseVictim implements the NMRU-among-non-ASM policy.
func (t *TLB) chooseVictim() int {
	victim := -1
	for i := range t.entries {
		if t.entries[i].ASM {
			continue
		}
		if victim == -1 || t.lastUsed[i] < t.lastUsed[victim] {
			victim = i
		}
	}
	if victim != -1 {
		return victim
	}

	// No non-ASM entry exists: fall back to the NMRU ASM entry.
	for i := range t.entries {
		if victim == -1 || t.lastUsed[i] < t.lastUsed[victim] {
			victim = i
		}
	}
	return victim
}

// InvalidateAll implements TBIA: removes every entry.
func (t *TLB) InvalidateAll() {
	t.valid = [Size]bool{}
}

// InvalidateAllProcess implements TBIAP: removes every non-ASM entry,
// leaving globally-matched (ASM) entries resident.
func (t *TLB) InvalidateAllProcess() {
	for i := range t.entries {
		if t.valid[i] && !t.entries[i].ASM {
			t.valid[i] = false
		}
	}
}

// InvalidateSingle implements TBIS: removes the single entry mapping va
// under the current ASN, if any.
func (t *TLB) InvalidateSingle(va uint64, asn uint64) {
	vpn := va >> 13
	if slot, ok := t.findSlot(vpn, asn); ok {
		t.valid[slot] = false
	}
}

// Snapshot returns a copy of every currently resident entry, for
// diagnostic display. Callers must not rely on ordering.
func (t *TLB) Snapshot() []Entry {
	out := make([]Entry, 0, Size)
	for i := range t.entries {
		if t.valid[i] {
			out = append(out, t.entries[i])
		}
	}
	return out
}

// CheckAccess consults fault-on-{read,write,execute} first, then the
// per-mode enable bits for the given access kind, returning the fault to
// signal or cpu.NoException on success.
func CheckAccess(e *Entry, kind AccessKind, mode cpu.Mode) cpu.Exception {
	switch kind {
	case AccessFetch:
		if e.FaultOnExecute {
			return cpu.FaultOnExecute
		}
	case AccessRead:
		if e.FaultOnRead {
			return cpu.FaultOnRead
		}
	case AccessWrite, AccessModify:
		if e.FaultOnWrite {
			return cpu.FaultOnWrite
		}
	}

	var allowRead, allowWrite bool
	switch mode {
	case cpu.ModeKernel:
		allowRead, allowWrite = e.KernelRead, e.KernelWrite
	case cpu.ModeExecutive:
		allowRead, allowWrite = e.ExecRead, e.ExecWrite
	case cpu.ModeSupervisor:
		allowRead, allowWrite = e.SupervisorRead, e.SupervisorWrite
	default:
		allowRead, allowWrite = e.UserRead, e.UserWrite
	}

	switch kind {
	case AccessFetch, AccessRead:
		if !allowRead {
			return cpu.AccessControlViolation
		}
	case AccessWrite, AccessModify:
		if !allowWrite {
			return cpu.AccessControlViolation
		}
	}
	return cpu.NoException
}

// Translate combines Find and CheckAccess: it returns the physical
// address, or an exception if translation or access checking fails.
func (t *TLB) Translate(va uint64, kind AccessKind, mode cpu.Mode, asn uint64) (uint64, cpu.Exception) {
	e, ok := t.Find(va, asn)
	if !ok {
		return 0, cpu.TranslationNotValid
	}
	if exc := CheckAccess(e, kind, mode); exc != cpu.NoException {
		return 0, exc
	}

	// Granularity-hint bits: the effective page frame is the entry's base
	// frame with its low bits replaced by the corresponding bits of the VA.
	pageCount := e.Granularity.pageCount()
	vpn := va >> 13
	pfn := (e.PFN &^ (pageCount - 1)) | (vpn & (pageCount - 1))
	pa := (pfn << 13) | (va & 0x1FFF)
	return pa, cpu.NoException
}
