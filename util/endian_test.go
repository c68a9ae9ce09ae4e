package util_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ev6sim/ev6core/util"
)

func TestByteLaneSwapIdentity(t *testing.T) {
	// be_long(a) XOR be_byte(a) == 3, for any access size pairing of
	// longword vs byte, independent of the address a (the mask depends
	// only on size).
	assert.Equal(t, byte(3), util.BELongXORByte())
}

func TestByteLaneSwapValues(t *testing.T) {
	assert.Equal(t, byte(0), util.ByteLaneSwap(8))
	assert.Equal(t, byte(4), util.ByteLaneSwap(4))
	assert.Equal(t, byte(6), util.ByteLaneSwap(2))
	assert.Equal(t, byte(7), util.ByteLaneSwap(1))
}

func TestSignZeroExtension(t *testing.T) {
	assert.Equal(t, uint64(0xFFFFFFFFFFFFFF80), util.SextByte(0x80))
	assert.Equal(t, uint64(0x80), util.ZextByte(0x80))

	assert.Equal(t, uint64(0xFFFFFFFFFFFF8000), util.SextWord(0x8000))
	assert.Equal(t, uint64(0x8000), util.ZextWord(0x8000))

	assert.Equal(t, uint64(0xFFFFFFFF80000000), util.SextLong(0x80000000))
	assert.Equal(t, uint64(0x80000000), util.ZextLong(0x80000000))
}
