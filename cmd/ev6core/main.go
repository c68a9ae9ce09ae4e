// Command ev6core drives the instruction-fetch, data-cache, and VHDX
// container packages from the command line: a fetch demo, VHDX
// container management, and a
// read-only tview/tcell dashboard onto a running fetch/dcache pair.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "ev6core",
		Short: "EV6 instruction-fetch and data-cache core emulator",
		Version: Version,
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newVHDXCmd())
	rootCmd.AddCommand(newMonitorCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
