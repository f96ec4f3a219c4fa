package opcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpStringRoundTrips(t *testing.T) {
	assert.Equal(t, "ADD", ADD.String())
	assert.Equal(t, "SEND", SEND.String())
	assert.Equal(t, "ENTER", ENTER.String())
}

func TestPatternOfMatchesOperandShape(t *testing.T) {
	assert.Equal(t, PatBB, MOVE.PatternOf())
	assert.Equal(t, PatB, RETURN.PatternOf())
	assert.Equal(t, PatW, ENTER.PatternOf())
	assert.Equal(t, PatZ, NOP.PatternOf())
}

func TestUnknownOpStringIsStable(t *testing.T) {
	unknown := Op(255)
	assert.NotEmpty(t, unknown.String())
}
