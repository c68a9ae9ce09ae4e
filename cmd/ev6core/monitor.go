package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"

	"github.com/ev6sim/ev6core/cbox"
	"github.com/ev6sim/ev6core/config"
	"github.com/ev6sim/ev6core/cpu"
	"github.com/ev6sim/ev6core/dcache"
	"github.com/ev6sim/ev6core/fetch"
	"github.com/ev6sim/ev6core/icache"
	"github.com/ev6sim/ev6core/tlb"
)

// monitor is a read-only dashboard onto a running fetch/dcache pair: it
// is not a debugger (no breakpoints, no single-step command, no source
// view); it simply redraws the register file, cache occupancy and
// coherence state, ITB/DTB residency, and Cbox mailbox depth on every
// step of an internally driven demo loop.
type monitor struct {
	app *tview.Application

	itb *tlb.ITB
	dtb *tlb.DTB
	ic  *icache.Icache
	dc  *dcache.Dcache
	mb  *cbox.Mailbox
	eng *fetch.Engine
	rf  cpu.RegisterFile

	pc    cpu.PC
	steps uint64

	registerView *tview.TextView
	icacheView   *tview.TextView
	dcacheView   *tview.TextView
	tlbView      *tview.TextView
	mailboxView  *tview.TextView
	statusView   *tview.TextView
}

func newMonitorCmd() *cobra.Command {
	var configPath string
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run a read-only tview dashboard over the fetch/dcache demo loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigOrDefault(configPath)
			if err != nil {
				return err
			}
			return newMonitorDashboard(cfg).run(interval)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a TOML config file (default: platform config path)")
	cmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "Time between steps of the demo loop")
	return cmd
}

func newMonitorDashboard(cfg *config.Config) *monitor {
	itb := tlb.NewITB()
	dtb := tlb.NewDTB()
	mb := cbox.New()
	ic := icache.New(cfg.Cache.ICacheEnableSets)
	dc := dcache.New(mb)
	eng := fetch.New(itb, dtb, ic, mb)

	itb.Insert(tlb.Entry{VPN: 0, PFN: 0, ASN: 0, KernelRead: true, KernelWrite: true})
	dtb.Insert(tlb.Entry{VPN: 0, PFN: 0, ASN: 0, KernelRead: true, KernelWrite: true})

	m := &monitor{
		app: tview.NewApplication(),
		itb: itb,
		dtb: dtb,
		ic:  ic,
		dc:  dc,
		mb:  mb,
		eng: eng,
		pc:  cpu.GetPC(0),
	}
	m.initializeViews()
	return m
}

func (m *monitor) initializeViews() {
	m.registerView = tview.NewTextView().SetDynamicColors(true).SetScrollable(false)
	m.registerView.SetBorder(true).SetTitle(" Registers ")

	m.icacheView = tview.NewTextView().SetDynamicColors(true).SetScrollable(false)
	m.icacheView.SetBorder(true).SetTitle(" Icache ")

	m.dcacheView = tview.NewTextView().SetDynamicColors(true).SetScrollable(false)
	m.dcacheView.SetBorder(true).SetTitle(" Dcache ")

	m.tlbView = tview.NewTextView().SetDynamicColors(true).SetScrollable(false)
	m.tlbView.SetBorder(true).SetTitle(" ITB / DTB ")

	m.mailboxView = tview.NewTextView().SetDynamicColors(true).SetScrollable(false)
	m.mailboxView.SetBorder(true).SetTitle(" Cbox Mailbox ")

	m.statusView = tview.NewTextView().SetDynamicColors(true).SetScrollable(false)
	m.statusView.SetBorder(true).SetTitle(" Fetch Step ")
}

func (m *monitor) buildLayout() *tview.Flex {
	top := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(m.registerView, 0, 1, false).
		AddItem(m.tlbView, 0, 1, false)

	middle := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(m.icacheView, 0, 1, false).
		AddItem(m.dcacheView, 0, 1, false)

	bottom := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(m.mailboxView, 0, 1, false).
		AddItem(m.statusView, 0, 1, false)

	return tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(top, 10, 0, false).
		AddItem(middle, 8, 0, false).
		AddItem(bottom, 8, 0, false)
}

// run wires the key bindings, starts the background step loop, and
// blocks until the user quits with Ctrl+C.
func (m *monitor) run(interval time.Duration) error {
	layout := m.buildLayout()

	m.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			m.app.Stop()
			return nil
		case tcell.KeyCtrlL:
			m.refreshAll()
			return nil
		}
		return event
	})

	m.refreshAll()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				m.step()
				m.app.QueueUpdateDraw(m.refreshAll)
			case <-done:
				return
			}
		}
	}()

	err := m.app.SetRoot(layout, true).SetFocus(layout).Run()
	close(done)
	return err
}

// step advances the demo loop by one fetch: it steps the current PC,
// and on a miss synthesizes a fill response so the next step hits, the
// same cold-miss-then-hit shape run.go exercises non-interactively.
func (m *monitor) step() {
	res := m.eng.Step(m.pc, cpu.ModeKernel, 0)
	m.steps++

	switch res.Outcome {
	case fetch.Miss:
		var block [icache.InsPerLine]uint32
		for i := range block {
			block[i] = 0x43ff0400 + uint32(i)
		}
		m.eng.CompleteFill(m.pc, m.pc.ByteAddress(), block, false, 0)
	case fetch.Hit:
		m.rf.WriteInt(0, m.rf.ReadInt(0)+1)
		m.pc = m.pc.Next()
	case fetch.Fault:
		m.pc = cpu.GetPC(0)
	}
}

func (m *monitor) refreshAll() {
	m.updateRegisterView()
	m.updateICacheView()
	m.updateDCacheView()
	m.updateTLBView()
	m.updateMailboxView()
	m.updateStatusView()
}

func (m *monitor) updateRegisterView() {
	var lines []string
	for row := 0; row < 8; row++ {
		var cols []string
		for col := 0; col < 4; col++ {
			r := row*4 + col
			cols = append(cols, fmt.Sprintf("R%-2d: 0x%016x", r, m.rf.ReadInt(r)))
		}
		lines = append(lines, strings.Join(cols, "  "))
	}
	m.registerView.SetText(strings.Join(lines, "\n"))
}

func (m *monitor) updateICacheView() {
	occ := m.ic.Occupancy()
	var lines []string
	for way := 0; way < icache.Ways; way++ {
		lines = append(lines, fmt.Sprintf("way %d: %4d / %d valid lines", way, occ[way], icache.NumIndex))
	}
	m.icacheView.SetText(strings.Join(lines, "\n"))
}

func (m *monitor) updateDCacheView() {
	valid, modified := m.dc.Occupancy()
	var lines []string
	for way := 0; way < dcache.Ways; way++ {
		lines = append(lines, fmt.Sprintf("way %d: %4d valid (%d [red]M[white])", way, valid[way], modified[way]))
	}
	m.dcacheView.SetText(strings.Join(lines, "\n"))
}

func (m *monitor) updateTLBView() {
	itbEntries := m.itb.Snapshot()
	dtbEntries := m.dtb.Snapshot()

	var lines []string
	lines = append(lines, fmt.Sprintf("ITB resident: %d / %d", len(itbEntries), tlb.Size))
	for _, e := range itbEntries {
		lines = append(lines, fmt.Sprintf("  vpn=0x%x pfn=0x%x asn=%d", e.VPN, e.PFN, e.ASN))
	}
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("DTB resident: %d / %d", len(dtbEntries), tlb.Size))
	for _, e := range dtbEntries {
		lines = append(lines, fmt.Sprintf("  vpn=0x%x pfn=0x%x asn=%d", e.VPN, e.PFN, e.ASN))
	}
	m.tlbView.SetText(strings.Join(lines, "\n"))
}

func (m *monitor) updateMailboxView() {
	outbox := m.mb.Outbox()
	var lines []string
	lines = append(lines, fmt.Sprintf("outbound queued: %d", len(outbox)))
	for _, msg := range outbox {
		lines = append(lines, fmt.Sprintf("  %s PA=0x%x", msg.Kind, msg.PA))
	}
	lines = append(lines, fmt.Sprintf("inbound pending: %d", m.mb.PendingInbound()))
	m.mailboxView.SetText(strings.Join(lines, "\n"))
}

func (m *monitor) updateStatusView() {
	m.statusView.SetText(fmt.Sprintf(
		"steps:  %d\nPC:     0x%x\n\n[yellow]Ctrl+C[white] quit  [yellow]Ctrl+L[white] redraw",
		m.steps, m.pc.ByteAddress(),
	))
}
