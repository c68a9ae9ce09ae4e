// Package fetch implements the instruction-fetch pipeline: it consumes
// the ITB and Icache to turn a program counter into a decoded ins_line,
// enqueuing a Cbox fill request and reporting a miss when the line is
// not resident.
package fetch

import (
	"github.com/ev6sim/ev6core/cbox"
	"github.com/ev6sim/ev6core/cpu"
	"github.com/ev6sim/ev6core/icache"
	"github.com/ev6sim/ev6core/mmu"
	"github.com/ev6sim/ev6core/tlb"
)

// Outcome reports how a Step attempt resolved. There are no suspension
// points: a miss returns immediately with the fill already
// enqueued, and the caller retries the same PC on a later step once the
// fill response has been applied.
type Outcome int

const (
	Hit Outcome = iota
	Miss
	Fault
)

// StepResult is everything a single fetch step reports.
type StepResult struct {
	Outcome   Outcome
	Quad      icache.Quad
	NextPC    cpu.PC // speculative next-fetch target, valid on Hit
	Exception cpu.Exception
}

// Engine is the fetch pipeline: translation plus the Icache plus the
// outbound path to the Cbox mailbox for fills.
type Engine struct {
	itb     *tlb.ITB
	dtb     *tlb.DTB
	ic      *icache.Icache
	mailbox *cbox.Mailbox
}

// New creates a fetch engine over the given ITB, DTB (carried only so
// mmu.Translate has its full collaborator set; fetch never issues a
// non-fetch access kind), Icache, and Cbox mailbox.
func New(itb *tlb.ITB, dtb *tlb.DTB, ic *icache.Icache, mb *cbox.Mailbox) *Engine {
	return &Engine{itb: itb, dtb: dtb, ic: ic, mailbox: mb}
}

// Step attempts to fetch the ins_line at pc. On a TLB miss or access
// violation it returns Fault with the exception to deliver. On an Icache
// hit it returns the ins_line and the line predictor's hint for the next
// fetch. On an Icache miss it enqueues a ReadBlock fill request (unless
// one is already outstanding for that physical line) and returns Miss;
// the caller must replay the same PC on a later step.
func (e *Engine) Step(pc cpu.PC, mode cpu.Mode, asn uint64) StepResult {
	tr, exc := mmu.Translate(e.itb, e.dtb, pc.ByteAddress(), pc.PAL, tlb.AccessFetch, mode, asn)
	if exc != cpu.NoException {
		return StepResult{Outcome: Fault, Exception: exc}
	}

	if res, hit := e.ic.Fetch(pc, tr.PA); hit {
		nextLineBytes := res.NextLineHint * icache.LineBytes
		return StepResult{
			Outcome: Hit,
			Quad:    res.Quad,
			NextPC:  cpu.PC{Word: nextLineBytes / 4, PAL: pc.PAL},
		}
	}

	e.requestFill(tr.PA)
	return StepResult{Outcome: Miss}
}

// requestFill enqueues a ReadBlock for the physical line containing pa
// and marks it pending, unless a fill for that line is already in
// flight (a replayed Step after a miss must not re-request).
func (e *Engine) requestFill(pa uint64) {
	lineBase := pa &^ (icache.LineBytes - 1)
	if e.mailbox.FillPending(lineBase) {
		return
	}
	e.mailbox.Send(cbox.OutMessage{Kind: cbox.ReadBlock, PA: lineBase})
	e.mailbox.MarkFillPending(lineBase)
}

// CompleteFill applies a FillResponse from the Cbox mailbox: it
// pre-decodes the sixteen delivered instructions into the Icache and
// clears the pending-fill marker, releasing any probes the system
// deferred while the fill was outstanding.
func (e *Engine) CompleteFill(pc cpu.PC, pa uint64, block [icache.InsPerLine]uint32, isPAL bool, asn uint64) {
	e.ic.Add(pc, pa, block, isPAL, asn)
	e.mailbox.ClearFillPending(pa &^ (icache.LineBytes - 1))
}
