package util_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ev6sim/ev6core/util"
)

func TestCRC32CDeterministic(t *testing.T) {
	buf := make([]byte, 4096)
	copy(buf, []byte("head"))
	want := util.CRC32C(buf)
	got := util.CRC32C(buf)
	assert.Equal(t, want, got)
}

func TestCRC32CDetectsCorruption(t *testing.T) {
	buf := make([]byte, 4096)
	copy(buf, []byte("head"))
	before := util.CRC32C(buf)
	buf[100] ^= 0xFF
	after := util.CRC32C(buf)
	assert.NotEqual(t, before, after)
}
