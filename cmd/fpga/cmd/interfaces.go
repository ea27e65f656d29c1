package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/transport"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List available register bridges",
	Long: `Scan the host for USB register bridges and print a summary of the detected
transports. The configured vendor and product IDs are included in the scan. The
simulator is always listed.`,
	RunE: runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	extra := transport.KnownDevice{
		VendorID:    cfg.USB.VendorID,
		ProductID:   cfg.USB.ProductID,
		Description: "Configured register bridge",
	}
	infos, err := transport.DiscoverInterfaces(ctx, extra)
	if err != nil {
		return fmt.Errorf("discover interfaces: %w", err)
	}

	fmt.Println("Detected interfaces:")
	seen := make(map[[2]int]bool)
	for _, iface := range infos {
		if iface.Kind == transport.InterfaceKindUSB {
			key := [2]int{iface.Bus, iface.Address}
			if seen[key] {
				continue
			}
			seen[key] = true
			fmt.Printf("  - %s [%s] (VID:PID %04X:%04X, bus %d address %d)\n",
				iface.Label(), iface.Kind, iface.VendorID, iface.ProductID, iface.Bus, iface.Address)
			continue
		}
		fmt.Printf("  - %s [%s]\n", iface.Label(), iface.Kind)
	}

	return nil
}
