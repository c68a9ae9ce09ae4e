package icache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ev6sim/ev6core/cpu"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, Opr, Classify(0x4be0173f))
	assert.Equal(t, Opr, Classify(0x43ff0401))
	assert.Equal(t, Opr, Classify(0x43ff0521))
	assert.Equal(t, Opr, Classify(0x47ff0001))
	assert.Equal(t, Pal, Classify(0x00000000))
	assert.Equal(t, Bra, Classify(0xC0000000))  // opcode 0x30
	assert.Equal(t, Bra, Classify(0xD0000000))  // opcode 0x34 (BSR)
	assert.Equal(t, Cond, Classify(0xE4000000)) // opcode 0x39 (BEQ)
	assert.Equal(t, Jsr, Classify(0x68000000))  // opcode 0x1A
	assert.Equal(t, Mem, Classify(0xA0000000))  // opcode 0x28 (LDL)
	assert.Equal(t, Mbr, Classify(0x60000000))  // opcode 0x18 (MB/WMB/RS/RC)
}

// TestColdMissThenHit: fetch at PC 0
// misses, a single ITB+Icache fill at PC 0 follows, and a re-fetch then
// hits for every PC in the filled 64-byte line with the expected first
// ins_line contents.
func TestColdMissThenHit(t *testing.T) {
	ic := New(0x3)
	pc := cpu.GetPC(0)
	pa := uint64(0)

	_, hit := ic.Fetch(pc, pa)
	require.False(t, hit, "cold access must miss")

	var block [InsPerLine]uint32
	block[0] = 0x4be0173f
	block[1] = 0x43ff0401
	block[2] = 0x43ff0521
	block[3] = 0x47ff0001

	ic.Add(pc, pa, block, false, 0)

	result, hit := ic.Fetch(pc, pa)
	require.True(t, hit)
	assert.Equal(t, [InsPerQuad]uint32{0x4be0173f, 0x43ff0401, 0x43ff0521, 0x47ff0001}, result.Quad.Instructions)
	assert.Equal(t, uint64(1), result.NextLineHint)

	// No further miss for any PC within the filled line (word addresses
	// 0..15, i.e. byte addresses 0..60).
	for word := uint64(0); word < 16; word++ {
		p := cpu.PC{Word: word}
		_, hit := ic.Fetch(p, pa+(word*4))
		assert.Truef(t, hit, "expected hit at word %d", word)
	}
}

func TestAddChoosesFirstInvalidWay(t *testing.T) {
	ic := New(0x3)
	pc := cpu.GetPC(0)
	var block [InsPerLine]uint32

	ic.Add(pc, 0x0, block, false, 0)
	ic.Add(pc, 0x40, block, false, 0) // different physical line, same index

	_, hit0 := ic.Fetch(pc, 0x0)
	_, hit1 := ic.Fetch(pc, 0x40)
	assert.True(t, hit0)
	assert.True(t, hit1)
}

func TestAddEvictsLRUWhenBothWaysValid(t *testing.T) {
	ic := New(0x3)
	pc := cpu.GetPC(0)
	var block [InsPerLine]uint32

	ic.Add(pc, 0x0, block, false, 0)
	ic.Add(pc, 0x40, block, false, 0)
	// Both ways at this index are now valid; a third fill must evict the
	// least-recently-filled one (pa=0x0's way).
	ic.Add(pc, 0x80, block, false, 0)

	_, hit0 := ic.Fetch(pc, 0x0)
	_, hit2 := ic.Fetch(pc, 0x80)
	assert.False(t, hit0, "oldest fill should have been evicted")
	assert.True(t, hit2)
}

func TestFlushAll(t *testing.T) {
	ic := New(0x3)
	pc := cpu.GetPC(0)
	var block [InsPerLine]uint32
	ic.Add(pc, 0x0, block, false, 0)

	ic.Flush(false)

	_, hit := ic.Fetch(pc, 0x0)
	assert.False(t, hit)
}

func TestFlushPALOnly(t *testing.T) {
	ic := New(0x3)
	pc := cpu.GetPC(0)
	var block [InsPerLine]uint32

	ic.Add(pc, 0x0, block, true, 0)  // PALcode line
	ic.Add(pc, 0x40, block, false, 0) // ordinary line, same index different tag

	ic.Flush(true)

	_, hitPAL := ic.Fetch(pc, 0x0)
	_, hitOrdinary := ic.Fetch(pc, 0x40)
	assert.False(t, hitPAL)
	assert.True(t, hitOrdinary)
}

func TestValidDoesNotUpdatePredictor(t *testing.T) {
	ic := New(0x3)
	pc := cpu.GetPC(0)
	var block [InsPerLine]uint32
	ic.Add(pc, 0x0, block, false, 0)
	ic.Add(pc, 0x40, block, false, 0) // second way, same index

	// A hit in way 1 points the set predictor at way 1.
	_, hit := ic.Fetch(pc, 0x40)
	require.True(t, hit)
	require.Equal(t, 1, ic.setPredictor[index(pc.ByteAddress())])

	assert.True(t, ic.Valid(pc, 0x0))
	assert.False(t, ic.Valid(pc, 0x999999000))
	assert.Equal(t, 1, ic.setPredictor[index(pc.ByteAddress())], "Valid of the way-0 line must not move the set predictor")
}

func TestUpdateLinePredictor(t *testing.T) {
	ic := New(0x3)
	pc := cpu.GetPC(0)
	var block [InsPerLine]uint32
	ic.Add(pc, 0x0, block, false, 0)

	ic.UpdateLinePredictor(0, 42)

	result, hit := ic.Fetch(pc, 0x0)
	require.True(t, hit)
	assert.Equal(t, uint64(42), result.NextLineHint)
}

func TestDisabledWayNeverFillsOrHits(t *testing.T) {
	ic := New(0x1) // only way 0 enabled
	pc := cpu.GetPC(0)
	var block [InsPerLine]uint32

	ic.Add(pc, 0x0, block, false, 0)
	ic.Add(pc, 0x40, block, false, 0)

	_, hit0 := ic.Fetch(pc, 0x0)
	_, hit1 := ic.Fetch(pc, 0x40)
	assert.False(t, hit0, "first fill should have been evicted from the single enabled way")
	assert.True(t, hit1)
}
