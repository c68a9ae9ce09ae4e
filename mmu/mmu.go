// Package mmu ties the ITB and DTB together behind a single
// virtual-to-physical entry point. It decides which translation buffer a
// given access kind consults and applies the PALcode-mode physical-access
// shortcut before falling through to a TLB lookup.
package mmu

import (
	"github.com/ev6sim/ev6core/cpu"
	"github.com/ev6sim/ev6core/tlb"
)

// palPhysicalBits is the width of the direct virtual-to-physical mapping
// PALcode-mode accesses use: the low 43 bits of the VA are the PA.
const palPhysicalBits = 43

// Translation is the successful result of va_to_pa.
type Translation struct {
	PA uint64
}

// Translate resolves va to a physical address. Fetch access kinds consult
// itb; all other access kinds consult dtb. When isPAL is true the access
// bypasses translation entirely: the low 43 bits of the VA are the PA,
// since PALcode-mode accesses use physical addresses directly.
func Translate(itb *tlb.ITB, dtb *tlb.DTB, va uint64, isPAL bool, kind tlb.AccessKind, mode cpu.Mode, asn uint64) (Translation, cpu.Exception) {
	if isPAL {
		return Translation{PA: va & ((1 << palPhysicalBits) - 1)}, cpu.NoException
	}

	var t *tlb.TLB
	if kind == tlb.AccessFetch {
		t = itb.TLB
	} else {
		t = dtb.TLB
	}

	pa, exc := t.Translate(va, kind, mode, asn)
	if exc != cpu.NoException {
		return Translation{}, exc
	}
	return Translation{PA: pa}, cpu.NoException
}
