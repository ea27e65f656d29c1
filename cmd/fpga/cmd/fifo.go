package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/value"
)

var (
	fifoCount   int
	fifoTimeout time.Duration
	fifoDepth   int
	simElements []string // For simulator: elements queued before reading
)

var fifoCmd = &cobra.Command{
	Use:   "fifo",
	Short: "Read from or write to DMA FIFOs",
}

var fifoReadCmd = &cobra.Command{
	Use:   "read <bitfile> <channel>",
	Short: "Read elements from a target-to-host FIFO",
	Long: `Read elements from a DMA FIFO and print one per line, followed by the number of
elements still available.

Examples:
  fpga fifo read design.lvbitx Samples --count 16
  fpga fifo read design.lvbitx Samples --count 2 --sim-elements 0xFFFE,5`,
	Args: cobra.ExactArgs(2),
	RunE: runFifoRead,
}

var fifoWriteCmd = &cobra.Command{
	Use:   "write <bitfile> <channel> <values>",
	Short: "Write elements to a host-to-target FIFO",
	Long: `Write a sequence literal, or a single element, to a DMA FIFO and print the free
space left.

Examples:
  fpga fifo write design.lvbitx Commands '[1, 2, 3]'
  fpga fifo write design.lvbitx Commands 0x10`,
	Args: cobra.ExactArgs(3),
	RunE: runFifoWrite,
}

func init() {
	rootCmd.AddCommand(fifoCmd)
	fifoCmd.AddCommand(fifoReadCmd)
	fifoCmd.AddCommand(fifoWriteCmd)

	for _, c := range []*cobra.Command{fifoReadCmd, fifoWriteCmd} {
		c.Flags().DurationVar(&fifoTimeout, "timeout", 0,
			"FIFO timeout (default from configuration, negative waits forever)")
		c.Flags().IntVar(&fifoDepth, "depth", 0, "configure the FIFO depth first")
	}
	fifoReadCmd.Flags().IntVarP(&fifoCount, "count", "n", 1, "number of elements to read")
	fifoReadCmd.Flags().StringSliceVar(&simElements, "sim-elements", nil,
		"simulator: raw elements queued before reading (hex, e.g., 0xFFFE,5)")
}

func runFifoRead(cmd *cobra.Command, args []string) error {
	if fifoCount < 0 {
		return fmt.Errorf("--count must not be negative")
	}

	ctx := context.Background()
	s, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	f, err := s.Fifo(args[1])
	if err != nil {
		return err
	}
	if fifoDepth > 0 {
		if _, err := f.Configure(ctx, fifoDepth); err != nil {
			return err
		}
	}

	if len(simElements) > 0 {
		sim, ok := simulator(s)
		if !ok {
			return fmt.Errorf("--sim-elements requires the simulator transport")
		}
		elems, err := parseNumbers(simElements, f.Width())
		if err != nil {
			return fmt.Errorf("invalid --sim-elements: %w", err)
		}
		sim.Push(f.Number(), elems...)
	}

	timeout := cfg.FIFOTimeout
	if cmd.Flags().Changed("timeout") {
		timeout = fifoTimeout
	}
	if verbose {
		fmt.Printf("Reading %d element(s) from %s (#%d, %s), timeout %v\n", fifoCount, f.Name, f.Number(), f.Type(), timeout)
	}

	elems, remaining, err := f.ReadTimeout(ctx, fifoCount, timeout)
	if err != nil {
		return err
	}
	for _, e := range elems {
		fmt.Println(e)
	}
	fmt.Printf("Remaining: %d\n", remaining)
	return nil
}

func runFifoWrite(cmd *cobra.Command, args []string) error {
	v, err := value.ParseLiteral(args[2])
	if err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}
	elems, ok := v.Items()
	if !ok {
		elems = []value.Value{v}
	}

	ctx := context.Background()
	s, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	f, err := s.Fifo(args[1])
	if err != nil {
		return err
	}
	if fifoDepth > 0 {
		if _, err := f.Configure(ctx, fifoDepth); err != nil {
			return err
		}
	}

	timeout := cfg.FIFOTimeout
	if cmd.Flags().Changed("timeout") {
		timeout = fifoTimeout
	}
	free, err := f.WriteTimeout(ctx, elems, timeout)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d element(s) to %s\n", len(elems), f.Name)
	fmt.Printf("Free: %d\n", free)
	return nil
}
