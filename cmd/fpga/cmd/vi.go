package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/session"
)

var viCmd = &cobra.Command{
	Use:   "vi <run|abort|reset|download|state> <bitfile>",
	Short: "Control the FPGA VI",
	Long: `Run, abort, reset or re-download the VI described by the bitfile, or print its
execution state. Transports without lifecycle control report "not implemented".

Examples:
  fpga vi run design.lvbitx
  fpga vi state --transport usb design.lvbitx`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"run", "abort", "reset", "download", "state"},
	RunE:      runVI,
}

func init() {
	rootCmd.AddCommand(viCmd)
}

func runVI(cmd *cobra.Command, args []string) error {
	actions := map[string]func(*session.Session, context.Context) error{
		"run":      (*session.Session).Run,
		"abort":    (*session.Session).Abort,
		"reset":    (*session.Session).Reset,
		"download": (*session.Session).Download,
		"state":    nil,
	}
	action, ok := actions[args[0]]
	if !ok {
		return fmt.Errorf("unknown VI command %q", args[0])
	}

	ctx := context.Background()
	s, err := openSession(ctx, args[1])
	if err != nil {
		return err
	}
	defer s.Close()

	if action != nil {
		if err := action(s, ctx); err != nil {
			return err
		}
		if verbose {
			fmt.Printf("VI %s: ok\n", args[0])
		}
	}

	state, err := s.State(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("VI state: %s\n", state)
	return nil
}
