package mmu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ev6sim/ev6core/cpu"
	"github.com/ev6sim/ev6core/tlb"
)

func TestTranslatePALBypassesTLB(t *testing.T) {
	itb := tlb.NewITB()
	dtb := tlb.NewDTB()

	va := uint64(0xFFFFFFFF00012340)
	tr, exc := Translate(itb, dtb, va, true, tlb.AccessRead, cpu.ModeKernel, 0)
	require.Equal(t, cpu.NoException, exc)
	assert.Equal(t, va&((1<<43)-1), tr.PA)
}

func TestTranslateFetchUsesITB(t *testing.T) {
	itb := tlb.NewITB()
	dtb := tlb.NewDTB()

	itb.Insert(tlb.Entry{
		VPN: 0x10, PFN: 0x55, ASN: 1,
		KernelRead: true, KernelWrite: true,
	})

	va := uint64(0x10) << 13
	tr, exc := Translate(itb, dtb, va, false, tlb.AccessFetch, cpu.ModeKernel, 1)
	require.Equal(t, cpu.NoException, exc)
	assert.Equal(t, uint64(0x55)<<13, tr.PA)

	// DTB has no matching entry: a data access at the same VA must miss.
	_, exc = Translate(itb, dtb, va, false, tlb.AccessRead, cpu.ModeKernel, 1)
	assert.Equal(t, cpu.TranslationNotValid, exc)
}

func TestTranslateDataUsesDTB(t *testing.T) {
	itb := tlb.NewITB()
	dtb := tlb.NewDTB()

	dtb.Insert(tlb.Entry{
		VPN: 0x20, PFN: 0x99, ASN: 2,
		UserRead: true, UserWrite: true,
	})

	va := uint64(0x20) << 13
	tr, exc := Translate(itb, dtb, va, false, tlb.AccessWrite, cpu.ModeUser, 2)
	require.Equal(t, cpu.NoException, exc)
	assert.Equal(t, uint64(0x99)<<13, tr.PA)
}
