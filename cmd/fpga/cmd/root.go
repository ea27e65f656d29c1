package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/OpenTraceLab/OpenTraceFPGA/internal/config"
	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/bitfile"
	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/session"
	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/transport"
)

var (
	// Global flags
	verbose       bool
	configPath    string
	transportName string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fpga",
	Short: "FPGA register and FIFO access over a bitfile description",
	Long: `A tool for inspecting FPGA bitfiles and accessing the registers and DMA
FIFOs they describe, either on a USB register bridge or on the built-in simulator.

Examples:
  fpga parse design.lvbitx                              # Show registers and channels
  fpga read design.lvbitx Status                        # Read a register
  fpga write design.lvbitx Status '{A: 7, B: true}'     # Write a register
  fpga fifo read design.lvbitx Samples --count 16       # Read FIFO elements
  fpga interfaces                                       # List register bridges`,
	Version:           "0.9.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"configuration file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVarP(&transportName, "transport", "t", "",
		"transport to use (simulator, usb); overrides the configuration file")
}

// setup loads the configuration and installs the loggers.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if transportName != "" {
		loaded.Transport = transportName
		if err := loaded.Validate(); err != nil {
			return err
		}
	}
	cfg = loaded

	level, err := cfg.Level()
	if err != nil {
		return err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	logger, err := newLogger(level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	bitfile.SetLogger(logger)
	transport.SetLogger(logger)
	session.SetLogger(logger.Named("session"))
	return nil
}

func newLogger(level zapcore.Level) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	return zc.Build()
}
