package icache

// Kind classifies a pre-decoded instruction into the categories that
// matter for fetch-time prediction. Everything the fetch
// engine does not need to reason about (the bulk of the integer and
// floating-point opcode space) collapses into Opr/FOpr/Res; those are
// opaque to fetch and are fully decoded later by the Issue Unit.
type Kind int

const (
	Opr Kind = iota
	FOpr
	Mem
	Bra
	FBra
	Cond
	Jsr
	Mbr
	Pal
	Res
)

func (k Kind) String() string {
	switch k {
	case Opr:
		return "Opr"
	case FOpr:
		return "FOpr"
	case Mem:
		return "Mem"
	case Bra:
		return "Bra"
	case FBra:
		return "FBra"
	case Cond:
		return "Cond"
	case Jsr:
		return "Jsr"
	case Mbr:
		return "Mbr"
	case Pal:
		return "Pal"
	default:
		return "Res"
	}
}

// Classify decodes the 6-bit opcode in bits [31:26] of an Alpha
// instruction word into its fetch-relevant Kind. Branch and jump
// categories are detected purely from opcode.
func Classify(opcode uint32) Kind {
	op := (opcode >> 26) & 0x3F

	switch op {
	case 0x00, 0x19, 0x1B, 0x1D, 0x1E, 0x1F:
		// CALL_PAL and the HW_LD/HW_ST/HW_MFPR/HW_MTPR/HW_RET PALcode-only
		// forms.
		return Pal

	case 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F,
		0x20, 0x21, 0x22, 0x23, 0x24, 0x25, 0x26, 0x27,
		0x28, 0x29, 0x2A, 0x2B, 0x2C, 0x2D, 0x2E, 0x2F:
		// LDA/LDAH, integer/float load-store, LDx_L/STx_C.
		return Mem

	case 0x10, 0x11, 0x12, 0x13, 0x1C:
		// INTA/INTL/INTS/INTM arithmetic-logic-shift-multiply, FPTI.
		return Opr

	case 0x18:
		// MISC: MB/WMB/RS/RC memory-barrier and related ordering ops;
		// these drain the Cbox mailbox to enforce ordering.
		return Mbr

	case 0x14, 0x15, 0x16, 0x17:
		// ITFP, FLTV, FLTI, FLTL.
		return FOpr

	case 0x1A:
		// JMP/JSR/RET/JSR_COROUTINE: register-indirect jump.
		return Jsr

	case 0x30, 0x34:
		// BR, BSR: unconditional PC-relative branch.
		return Bra

	case 0x31, 0x32, 0x33, 0x35, 0x36, 0x37:
		// FBEQ/FBLT/FBLE/FBNE/FBGE/FBGT: floating conditional branch.
		return FBra

	case 0x38, 0x39, 0x3A, 0x3B, 0x3C, 0x3D, 0x3E, 0x3F:
		// BLBC/BEQ/BLT/BLE/BLBS/BNE/BGE/BGT: integer conditional branch.
		return Cond

	default:
		return Res
	}
}

// IsPCRelativeBranch reports whether k is a kind the fetch engine must
// compute a PC-relative target for (unconditional or conditional branch,
// including floating-point conditional branches). Jsr targets come from
// a register and are not PC-relative.
func (k Kind) IsPCRelativeBranch() bool {
	return k == Bra || k == FBra || k == Cond
}
