package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ev6sim/ev6core/cbox"
	"github.com/ev6sim/ev6core/config"
	"github.com/ev6sim/ev6core/cpu"
	"github.com/ev6sim/ev6core/fetch"
	"github.com/ev6sim/ev6core/icache"
	"github.com/ev6sim/ev6core/tlb"
)

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the cold-miss-then-hit instruction-fetch demo",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigOrDefault(configPath)
			if err != nil {
				return err
			}
			return runFetchDemo(cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a TOML config file (default: platform config path)")
	return cmd
}

func loadConfigOrDefault(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

// runFetchDemo walks the cold-miss-then-hit path:
// the first fetch at PC 0 misses, a ReadBlock fill is enqueued, and once the
// fill is applied every subsequent fetch to the same line hits.
func runFetchDemo(cfg *config.Config) error {
	itb := tlb.NewITB()
	dtb := tlb.NewDTB()
	ic := icache.New(cfg.Cache.ICacheEnableSets)
	mb := cbox.New()
	eng := fetch.New(itb, dtb, ic, mb)

	itb.Insert(tlb.Entry{VPN: 0, PFN: 0, ASN: 0, KernelRead: true, KernelWrite: true})

	pc := cpu.GetPC(0)
	res := eng.Step(pc, cpu.ModeKernel, 0)
	fmt.Printf("fetch PC=0x%x: %s\n", pc.ByteAddress(), outcomeString(res.Outcome))

	for _, msg := range mb.DrainOutbox() {
		fmt.Printf("  cbox out: %s PA=0x%x\n", msg.Kind, msg.PA)
	}

	var block [icache.InsPerLine]uint32
	block[0] = 0x4be0173f
	block[1] = 0x43ff0401
	block[2] = 0x43ff0521
	block[3] = 0x47ff0001
	eng.CompleteFill(pc, 0, block, false, 0)
	fmt.Println("  fill response applied")

	for word := uint64(0); word < 4; word++ {
		p := cpu.PC{Word: word}
		r := eng.Step(p, cpu.ModeKernel, 0)
		fmt.Printf("fetch PC=0x%x: %s quad=%v\n", p.ByteAddress(), outcomeString(r.Outcome), r.Quad.Instructions)
	}

	return nil
}

func outcomeString(o fetch.Outcome) string {
	switch o {
	case fetch.Hit:
		return "Hit"
	case fetch.Miss:
		return "Miss"
	default:
		return "Fault"
	}
}
