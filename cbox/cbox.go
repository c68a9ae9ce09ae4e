// Package cbox implements the mailbox that marshals cache miss, evict,
// and probe messages between the Icache/Dcache and the emulated system
// bus. It is deliberately thin: it models only the two message queues
// and their ordering guarantees, not the full system-bus protocol.
package cbox

import (
	"io"
	"log"
	"sync"
)

// OutKind enumerates the outbound message kinds a cache can send to the
// system.
type OutKind int

const (
	ReadBlock OutKind = iota
	ReadBlockMod
	WriteBlock
	Evict
	InvalToDirty
	CleanShared
)

func (k OutKind) String() string {
	switch k {
	case ReadBlock:
		return "ReadBlock"
	case ReadBlockMod:
		return "ReadBlockMod"
	case WriteBlock:
		return "WriteBlock"
	case Evict:
		return "Evict"
	case InvalToDirty:
		return "InvalToDirty"
	case CleanShared:
		return "CleanShared"
	default:
		return "Unknown"
	}
}

// OutMessage is a single outbound request keyed by physical address.
type OutMessage struct {
	Kind OutKind
	PA   uint64
	Data [64]byte // valid for WriteBlock
}

// InKind enumerates the inbound message kinds the system can send to a
// cache.
type InKind int

const (
	ProbeShared InKind = iota
	ProbeInvalidate
	FillResponse
)

func (k InKind) String() string {
	switch k {
	case ProbeShared:
		return "ProbeShared"
	case ProbeInvalidate:
		return "ProbeInvalidate"
	case FillResponse:
		return "FillResponse"
	default:
		return "Unknown"
	}
}

// Final-state codes a FillResponse carries. The wire message uses a raw
// code rather than the Dcache's own coherence-state type so that cbox has
// no dependency on the dcache package.
const (
	FinalStateShared    uint8 = 0
	FinalStateExclusive uint8 = 1
)

// InMessage is a single inbound probe or fill response, keyed by physical
// address.
type InMessage struct {
	Kind       InKind
	PA         uint64
	Data       [64]byte // valid for FillResponse
	FinalState uint8    // valid for FillResponse
}

func lineTag(pa uint64) uint64 { return pa >> 6 }

// Mailbox is the single outbound/inbound queue pair between the caches
// and the system. Outbound messages for a given physical address are FIFO.
// Inbound probes are processed at cache-line granularity; a probe for a
// line with an outstanding fill is deferred until the fill completes.
type Mailbox struct {
	mu sync.Mutex

	out []OutMessage
	in  []InMessage

	pendingFill map[uint64]bool
	deferred    map[uint64][]InMessage

	// Logger receives a line per deferred/released probe. It defaults to
	// a discarding logger; callers that want visibility assign their own.
	Logger *log.Logger
}

// New creates an empty mailbox.
func New() *Mailbox {
	return &Mailbox{
		pendingFill: make(map[uint64]bool),
		deferred:    make(map[uint64][]InMessage),
		Logger:      log.New(io.Discard, "", 0),
	}
}

// Send enqueues an outbound message. Messages for the same physical
// address are delivered in the order they were sent.
func (m *Mailbox) Send(msg OutMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = append(m.out, msg)
}

// DrainOutbox removes and returns every currently queued outbound
// message, in FIFO order.
func (m *Mailbox) DrainOutbox() []OutMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.out
	m.out = nil
	return out
}

// Outbox returns a snapshot of the currently queued outbound messages
// without removing them.
func (m *Mailbox) Outbox() []OutMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OutMessage, len(m.out))
	copy(out, m.out)
	return out
}

// MarkFillPending records that a fill for the line containing pa is
// outstanding. Probes for that line arriving before ClearFillPending are
// deferred rather than delivered.
func (m *Mailbox) MarkFillPending(pa uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingFill[lineTag(pa)] = true
}

// FillPending reports whether a fill for the line containing pa is
// currently outstanding. Callers use this to avoid re-requesting a fill
// already in flight when a Step is replayed before CompleteFill runs.
func (m *Mailbox) FillPending(pa uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingFill[lineTag(pa)]
}

// ClearFillPending marks the fill for pa's line as complete and releases
// any probes that arrived while it was outstanding into the inbound
// queue, in the order they were deferred.
func (m *Mailbox) ClearFillPending(pa uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tag := lineTag(pa)
	delete(m.pendingFill, tag)
	if deferred := m.deferred[tag]; len(deferred) > 0 {
		m.in = append(m.in, deferred...)
		delete(m.deferred, tag)
		m.Logger.Printf("cbox: released %d deferred probe(s) for line 0x%x", len(deferred), tag)
	}
}

// DeliverProbe delivers an inbound probe or fill response from the
// system. A probe (ProbeShared/ProbeInvalidate) for a line with an
// outstanding fill is deferred until ClearFillPending releases it; fill
// responses are never deferred.
func (m *Mailbox) DeliverProbe(msg InMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.Kind != FillResponse && m.pendingFill[lineTag(msg.PA)] {
		tag := lineTag(msg.PA)
		m.deferred[tag] = append(m.deferred[tag], msg)
		m.Logger.Printf("cbox: deferred %s for line 0x%x (fill outstanding)", msg.Kind, tag)
		return
	}
	m.in = append(m.in, msg)
}

// NextInbound removes and returns the oldest inbound message, if any.
func (m *Mailbox) NextInbound() (InMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.in) == 0 {
		return InMessage{}, false
	}
	msg := m.in[0]
	m.in = m.in[1:]
	return msg, true
}

// PendingInbound reports how many inbound messages are queued for
// delivery (excluding deferred probes).
func (m *Mailbox) PendingInbound() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.in)
}
