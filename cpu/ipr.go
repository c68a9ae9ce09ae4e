package cpu

// Mode is the current privilege mode: kernel, executive, supervisor, or
// user, matching the four Alpha access modes.
type Mode int

const (
	ModeKernel Mode = iota
	ModeExecutive
	ModeSupervisor
	ModeUser
)

// IPRSet holds the process-visible Internal Processor Registers.
// Some are context-switched per process (ASN, PCBB, PTBR,
// ESP/KSP/SSP/USP), some are process-wide (SYSPTBR, VIRBND, WHAMI,
// AMASK), and some are write-only pseudo-registers that trigger TLB
// operations (that behavior lives in the tlb package; this struct only
// holds the storage).
type IPRSet struct {
	ASN     uint64
	ASTEN   uint64
	ASTSR   uint64
	ESP     uint64
	KSP     uint64
	SSP     uint64
	USP     uint64
	FEN     uint64
	IPL     uint64
	MCES    uint64
	PCBB    uint64
	PRBR    uint64
	PTBR    uint64
	SCBB    uint64
	SIRR    uint64
	SISR    uint64
	SYSPTBR uint64
	VIRBND  uint64
	VPTB    uint64
	WHAMI   uint64

	// AMASK reports the architectural capability mask and is treated as
	// immutable once set. Nothing in this module assigns it from
	// configuration.
	AMASK uint64
}

// StackPointerFor returns the stack-pointer IPR that corresponds to mode.
func (s *IPRSet) StackPointerFor(mode Mode) uint64 {
	switch mode {
	case ModeKernel:
		return s.KSP
	case ModeExecutive:
		return s.ESP
	case ModeSupervisor:
		return s.SSP
	default:
		return s.USP
	}
}

// SetStackPointerFor updates the stack-pointer IPR for mode.
func (s *IPRSet) SetStackPointerFor(mode Mode, v uint64) {
	switch mode {
	case ModeKernel:
		s.KSP = v
	case ModeExecutive:
		s.ESP = v
	case ModeSupervisor:
		s.SSP = v
	default:
		s.USP = v
	}
}
