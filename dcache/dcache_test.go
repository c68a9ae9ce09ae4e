package dcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ev6sim/ev6core/cbox"
	"github.com/ev6sim/ev6core/cpu"
	"github.com/ev6sim/ev6core/tlb"
)

func readWriteEntry() *tlb.Entry {
	return &tlb.Entry{
		KernelRead: true, KernelWrite: true,
		UserRead: true, UserWrite: true,
	}
}

func fillLine(dc *Dcache, va, pa uint64, finalState uint8) Location {
	loc := dc.AllocateFill(va, pa)
	var data [LineBytes]byte
	dc.CopyFromBcache(loc, pa, data, finalState)
	return loc
}

func TestReadMissThenFillThenHit(t *testing.T) {
	mb := cbox.New()
	dc := New(mb)

	va, pa := uint64(0x10000), uint64(0x10000)
	buf := make([]byte, 8)
	_, hit := dc.Read(va, pa, 8, buf, false)
	assert.False(t, hit)

	fillLine(dc, va, pa, cbox.FinalStateShared)

	_, hit = dc.Read(va, pa, 8, buf, false)
	assert.True(t, hit)
}

func TestWriteRequiresExclusiveOrModified(t *testing.T) {
	mb := cbox.New()
	dc := New(mb)
	va, pa := uint64(0x20000), uint64(0x20000)

	loc := fillLine(dc, va, pa, cbox.FinalStateShared)

	in := []byte{1, 2, 3, 4}
	ok := dc.Write(loc, pa, 4, in, 0xF, false)
	assert.False(t, ok, "write to a Shared line must fail until upgraded")

	require.True(t, dc.UpgradeToModified(loc, pa))
	outMsgs := mb.DrainOutbox()
	require.Len(t, outMsgs, 1)
	assert.Equal(t, cbox.InvalToDirty, outMsgs[0].Kind)

	ok = dc.Write(loc, pa, 4, in, 0xF, false)
	assert.True(t, ok)

	out := make([]byte, 4)
	_, hit := dc.Read(va, pa, 4, out, false)
	require.True(t, hit)
	assert.Equal(t, in, out)
}

func TestWriteToExclusiveSilentUpgrade(t *testing.T) {
	mb := cbox.New()
	dc := New(mb)
	va, pa := uint64(0x30000), uint64(0x30000)

	loc := fillLine(dc, va, pa, cbox.FinalStateExclusive)
	in := []byte{0xAA}
	ok := dc.Write(loc, pa, 1, in, 0x1, false)
	assert.True(t, ok)
	assert.Empty(t, mb.DrainOutbox(), "E->M silent upgrade sends no message")
}

func TestEvictModifiedWritesBack(t *testing.T) {
	mb := cbox.New()
	dc := New(mb)
	va, pa := uint64(0x40000), uint64(0x40000)

	loc := fillLine(dc, va, pa, cbox.FinalStateExclusive)
	dc.Write(loc, pa, 1, []byte{0x7}, 0x1, false)

	dc.Evict(pa, cpu.PC{})

	out := mb.DrainOutbox()
	require.Len(t, out, 1)
	assert.Equal(t, cbox.WriteBlock, out[0].Kind)

	buf := make([]byte, 1)
	_, hit := dc.Read(va, pa, 1, buf, false)
	assert.False(t, hit)
}

func TestFlushWritesBackAllModified(t *testing.T) {
	mb := cbox.New()
	dc := New(mb)

	loc1 := fillLine(dc, 0x50000, 0x50000, cbox.FinalStateExclusive)
	dc.Write(loc1, 0x50000, 1, []byte{1}, 0x1, false)
	fillLine(dc, 0x60000, 0x60000, cbox.FinalStateShared)

	dc.Flush()

	out := mb.DrainOutbox()
	require.Len(t, out, 1)
	assert.Equal(t, cbox.WriteBlock, out[0].Kind)

	buf := make([]byte, 1)
	_, hit := dc.Read(0x50000, 0x50000, 1, buf, false)
	assert.False(t, hit)
	_, hit = dc.Read(0x60000, 0x60000, 1, buf, false)
	assert.False(t, hit)
}

// TestLoadLockedStoreConditional: LDL_L
// at PA P, an intervening ProbeInvalidate(P), then STL_C fails and leaves
// the cache line Invalid.
func TestLoadLockedStoreConditional(t *testing.T) {
	mb := cbox.New()
	dc := New(mb)
	va, pa := uint64(0x70000), uint64(0x70000)

	fillLine(dc, va, pa, cbox.FinalStateExclusive)
	require.True(t, dc.Lock(va, pa))

	dc.HandleProbe(cbox.InMessage{Kind: cbox.ProbeInvalidate, PA: pa})

	ok := dc.StoreConditional(va, pa)
	assert.False(t, ok)

	buf := make([]byte, 1)
	_, hit := dc.Read(va, pa, 1, buf, false)
	assert.False(t, hit, "line must be Invalid after the probe")
}

func TestLoadLockedStoreConditionalSucceedsWithoutIntervention(t *testing.T) {
	mb := cbox.New()
	dc := New(mb)
	va, pa := uint64(0x80000), uint64(0x80000)

	fillLine(dc, va, pa, cbox.FinalStateExclusive)
	require.True(t, dc.Lock(va, pa))

	assert.True(t, dc.StoreConditional(va, pa))
	// The reservation is consumed: a second STL_C without a new LDL_L fails.
	assert.False(t, dc.StoreConditional(va, pa))
}

// TestTwoCPUCoherence: two Dcaches both
// holding PA 0x10000 in Shared; CPU0 writes, transitioning S->M and
// sending exactly one InvalToDirty; CPU1 receives the corresponding
// ProbeInvalidate and transitions S->I.
func TestTwoCPUCoherence(t *testing.T) {
	mb0 := cbox.New()
	mb1 := cbox.New()
	cpu0 := New(mb0)
	cpu1 := New(mb1)

	pa := uint64(0x10000)
	loc0 := fillLine(cpu0, pa, pa, cbox.FinalStateShared)
	fillLine(cpu1, pa, pa, cbox.FinalStateShared)

	require.True(t, cpu0.UpgradeToModified(loc0, pa))
	out := mb0.DrainOutbox()
	require.Len(t, out, 1)
	assert.Equal(t, cbox.InvalToDirty, out[0].Kind)
	assert.Equal(t, pa, out[0].PA)

	// The system relays the upgrade as a probe-invalidate to CPU1.
	cpu1.HandleProbe(cbox.InMessage{Kind: cbox.ProbeInvalidate, PA: pa})

	buf := make([]byte, 1)
	_, hit := cpu1.Read(pa, pa, 1, buf, false)
	assert.False(t, hit, "CPU1's line must be Invalid")
}

func TestStatusNeedsUpgradeOnSharedWrite(t *testing.T) {
	mb := cbox.New()
	dc := New(mb)
	va, pa := uint64(0x90000), uint64(0x90000)
	fillLine(dc, va, pa, cbox.FinalStateShared)

	entry := readWriteEntry()
	loc, hit, needsUpgrade, exc := dc.Status(entry, cpu.ModeKernel, va, pa, tlb.AccessWrite)
	require.Equal(t, cpu.NoException, exc)
	require.True(t, hit)
	assert.True(t, needsUpgrade)
	assert.Equal(t, Shared, loc.PriorState)
}

func TestStatusSignalsFaultOnWrite(t *testing.T) {
	mb := cbox.New()
	dc := New(mb)
	entry := &tlb.Entry{FaultOnWrite: true, KernelRead: true, KernelWrite: true}

	_, _, _, exc := dc.Status(entry, cpu.ModeKernel, 0x100, 0x100, tlb.AccessWrite)
	assert.Equal(t, cpu.FaultOnWrite, exc)
}
