package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceFPGA/internal/config"
	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/bitfile"
	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/session"
	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/transport"
)

// openSession loads the bitfile and binds it to the configured transport.
func openSession(ctx context.Context, path string) (*session.Session, error) {
	bf, err := bitfile.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load bitfile: %w", err)
	}
	if verbose && len(bf.Diagnostics) > 0 {
		fmt.Printf("Skipped %d register(s)/channel(s); run 'fpga parse' for details\n", len(bf.Diagnostics))
	}

	tr, err := createTransport()
	if err != nil {
		return nil, err
	}
	s, err := session.Open(ctx, bf, tr, cfg.SessionOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	return s, nil
}

// createTransport opens the transport named in the configuration.
func createTransport() (transport.Transport, error) {
	switch cfg.Transport {
	case config.TransportSimulator:
		if verbose {
			fmt.Println("Using simulator transport")
		}
		return transport.NewSimTransport(), nil

	case config.TransportUSB:
		if verbose {
			fmt.Printf("Opening USB register bridge %04X:%04X...\n", cfg.USB.VendorID, cfg.USB.ProductID)
		}
		tr, err := transport.NewUSBTransport(cfg.USB.VendorID, cfg.USB.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to open register bridge: %w", err)
		}
		return tr, nil
	}
	return nil, fmt.Errorf("unsupported transport: %s", cfg.Transport)
}

// simulator returns the session's transport when it is the simulator.
func simulator(s *session.Session) (*transport.SimTransport, bool) {
	sim, ok := s.Transport().(*transport.SimTransport)
	return sim, ok
}

// parseNumbers parses hex or decimal values such as "0x12345678".
func parseNumbers(values []string, bits int) ([]uint64, error) {
	out := make([]uint64, 0, len(values))
	for _, v := range values {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 0, bits)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", v, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func formatWords(words []uint32) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = fmt.Sprintf("0x%08X", w)
	}
	return strings.Join(parts, " ")
}
