package cpu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ev6sim/ev6core/cpu"
)

func TestFaultsReexecuteTrapsAdvance(t *testing.T) {
	assert.True(t, cpu.TranslationNotValid.IsFault())
	assert.True(t, cpu.FaultOnRead.IsFault())
	assert.False(t, cpu.BreakpointTrap.IsFault())
	assert.False(t, cpu.ArithmeticTrap.IsFault())
}

func TestExceptionStringing(t *testing.T) {
	assert.Equal(t, "TranslationNotValid", cpu.TranslationNotValid.String())
	assert.Equal(t, "NoException", cpu.NoException.String())
}

func TestNoFaultIsZeroValue(t *testing.T) {
	assert.Equal(t, cpu.NoException, cpu.NoFault.Exception)
}
