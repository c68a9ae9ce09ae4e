package cpu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ev6sim/ev6core/cpu"
)

func TestR31HardwiredZero(t *testing.T) {
	rf := &cpu.RegisterFile{}
	rf.WriteInt(31, 0xDEADBEEF)
	assert.Equal(t, uint64(0), rf.ReadInt(31))
}

func TestF31HardwiredZero(t *testing.T) {
	rf := &cpu.RegisterFile{}
	rf.WriteFP(31, 0xDEADBEEF)
	assert.Equal(t, uint64(0), rf.ReadFP(31))
}

func TestIntRegisterReadWrite(t *testing.T) {
	rf := &cpu.RegisterFile{}
	rf.WriteInt(5, 12345)
	assert.Equal(t, uint64(12345), rf.ReadInt(5))
}

func TestResetClearsRegisters(t *testing.T) {
	rf := &cpu.RegisterFile{}
	rf.WriteInt(5, 12345)
	rf.WriteFP(5, 6789)
	rf.Reset()
	assert.Equal(t, uint64(0), rf.ReadInt(5))
	assert.Equal(t, uint64(0), rf.ReadFP(5))
}
