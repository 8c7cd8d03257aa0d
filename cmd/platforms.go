package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/dpstd/internal/dpst"
)

// CreatePlatformsCmd lists the display platforms the daemon can drive.
func CreatePlatformsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List supported display platforms",
		Long:  "Prints each supported platform with its histogram register block.",
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range dpst.SupportedPlatforms() {
				regs, err := dpst.ResolveRegisters(p)
				if err != nil {
					continue
				}
				fmt.Printf("%-12s ctl=0x%06x guard=0x%06x bin=0x%06x\n",
					p, regs.HistCtl, regs.HistGuard, regs.HistBin)
			}
		},
	}
}
