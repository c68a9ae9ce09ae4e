package cpu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ev6sim/ev6core/cpu"
)

func TestStackPointerPerMode(t *testing.T) {
	iprs := &cpu.IPRSet{}
	iprs.SetStackPointerFor(cpu.ModeKernel, 0x1000)
	iprs.SetStackPointerFor(cpu.ModeUser, 0x2000)

	assert.Equal(t, uint64(0x1000), iprs.StackPointerFor(cpu.ModeKernel))
	assert.Equal(t, uint64(0x2000), iprs.StackPointerFor(cpu.ModeUser))
	assert.Equal(t, uint64(0x1000), iprs.KSP)
	assert.Equal(t, uint64(0x2000), iprs.USP)
}
