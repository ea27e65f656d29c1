package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/session"
	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/value"
)

var (
	internalRegister bool
	simWords         []string // For simulator: register contents to return
)

var readCmd = &cobra.Command{
	Use:   "read <bitfile> <register>",
	Short: "Read a register",
	Long: `Read a register described by the bitfile and print its value in literal syntax.

Examples:
  fpga read design.lvbitx Counter
  fpga read --transport usb design.lvbitx Status
  fpga read design.lvbitx Status --sim-words 0x00000007,0x80000000`,
	Args: cobra.ExactArgs(2),
	RunE: runRead,
}

var writeCmd = &cobra.Command{
	Use:   "write <bitfile> <register> <value>",
	Short: "Write a register",
	Long: `Write a value to a register. Values use literal syntax:
  true, -12, 0x1F, 1.5e3, [1, 2, 3], {A: 7, B: true}

Examples:
  fpga write design.lvbitx Enable true
  fpga write design.lvbitx Window '[1, -2, 3, -4]'
  fpga write design.lvbitx Status '{A: 7, B: true}'`,
	Args: cobra.ExactArgs(3),
	RunE: runWrite,
}

func init() {
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)

	for _, c := range []*cobra.Command{readCmd, writeCmd} {
		c.Flags().BoolVar(&internalRegister, "internal", false, "address an internal register")
	}
	readCmd.Flags().StringSliceVar(&simWords, "sim-words", nil,
		"simulator: register words to return (hex, e.g., 0x12345678,0x80000000)")
}

func lookupRegister(s *session.Session, name string) (*session.Register, error) {
	if internalRegister {
		return s.InternalRegister(name)
	}
	return s.Register(name)
}

func runRead(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	s, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	reg, err := lookupRegister(s, args[1])
	if err != nil {
		return err
	}

	if len(simWords) > 0 {
		sim, ok := simulator(s)
		if !ok {
			return fmt.Errorf("--sim-words requires the simulator transport")
		}
		words, err := parseNumbers(simWords, 32)
		if err != nil {
			return fmt.Errorf("invalid --sim-words: %w", err)
		}
		if len(words) != reg.Descriptor().TransferWords() {
			return fmt.Errorf("--sim-words has %d word(s), %s needs %d", len(words), reg.Name, reg.Descriptor().TransferWords())
		}
		w32 := make([]uint32, len(words))
		for i, w := range words {
			w32[i] = uint32(w)
		}
		sim.SetRegister(reg.Resource(), w32...)
	}

	if verbose {
		fmt.Printf("Reading %s (%s) at 0x%08X\n", reg.Name, reg.Type(), reg.Resource())
	}

	v, err := reg.Read(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s = %s\n", reg.Name, v)
	return nil
}

func runWrite(cmd *cobra.Command, args []string) error {
	v, err := value.ParseLiteral(args[2])
	if err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}

	ctx := context.Background()
	s, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	reg, err := lookupRegister(s, args[1])
	if err != nil {
		return err
	}
	if reg.Descriptor().Indicator {
		fmt.Printf("Warning: %s is an indicator; the target may overwrite it\n", reg.Name)
	}

	if err := reg.Write(ctx, v); err != nil {
		return err
	}
	fmt.Printf("Wrote %s = %s\n", reg.Name, v)

	if sim, ok := simulator(s); ok {
		fmt.Printf("Words at 0x%08X: %s\n", reg.Resource(), formatWords(sim.LastWrite().Words))
	}
	return nil
}
