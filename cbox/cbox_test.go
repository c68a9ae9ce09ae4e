package cbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendIsFIFOPerAddress(t *testing.T) {
	mb := New()
	mb.Send(OutMessage{Kind: ReadBlock, PA: 0x1000})
	mb.Send(OutMessage{Kind: InvalToDirty, PA: 0x1000})
	mb.Send(OutMessage{Kind: ReadBlock, PA: 0x2000})

	out := mb.DrainOutbox()
	require.Len(t, out, 3)
	assert.Equal(t, ReadBlock, out[0].Kind)
	assert.Equal(t, InvalToDirty, out[1].Kind)
	assert.Equal(t, ReadBlock, out[2].Kind)

	assert.Empty(t, mb.DrainOutbox())
}

func TestProbeDeferredUntilFillCompletes(t *testing.T) {
	mb := New()
	pa := uint64(0x4000)
	mb.MarkFillPending(pa)

	mb.DeliverProbe(InMessage{Kind: ProbeInvalidate, PA: pa})
	assert.Equal(t, 0, mb.PendingInbound(), "probe must be deferred while fill is pending")

	mb.ClearFillPending(pa)
	assert.Equal(t, 1, mb.PendingInbound())

	msg, ok := mb.NextInbound()
	require.True(t, ok)
	assert.Equal(t, ProbeInvalidate, msg.Kind)
}

func TestFillResponseNeverDeferred(t *testing.T) {
	mb := New()
	pa := uint64(0x4000)
	mb.MarkFillPending(pa)

	mb.DeliverProbe(InMessage{Kind: FillResponse, PA: pa, FinalState: FinalStateExclusive})
	assert.Equal(t, 1, mb.PendingInbound())
}

func TestFillPendingQuery(t *testing.T) {
	mb := New()
	pa := uint64(0x4000)
	assert.False(t, mb.FillPending(pa))

	mb.MarkFillPending(pa)
	assert.True(t, mb.FillPending(pa))
	assert.True(t, mb.FillPending(pa+0x20), "query matches at line granularity, not exact address")

	mb.ClearFillPending(pa)
	assert.False(t, mb.FillPending(pa))
}

func TestNextInboundEmpty(t *testing.T) {
	mb := New()
	_, ok := mb.NextInbound()
	assert.False(t, ok)
}
