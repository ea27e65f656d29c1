// Package transport moves raw 32-bit register words and DMA FIFO elements
// between the host and an FPGA target.
//
// Implementations know nothing about register types; the session layer
// packs values into word buffers before handing them to a Transport.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Transport is the low-level link to an FPGA target.
//
// Stream elements travel as uint64 carriers holding width-bit values
// (width is 8, 16, 32 or 64). StreamRead returns the elements read and the
// number still available; StreamWrite returns the free space left in the
// FIFO. A negative timeout waits forever.
type Transport interface {
	ReadWords(ctx context.Context, resource uint32, count int) ([]uint32, error)
	WriteWords(ctx context.Context, resource uint32, words []uint32) error

	StreamRead(ctx context.Context, channel uint32, width, count int, timeout time.Duration) ([]uint64, int, error)
	StreamWrite(ctx context.Context, channel uint32, width int, elems []uint64, timeout time.Duration) (int, error)
	StartStream(ctx context.Context, channel uint32) error
	StopStream(ctx context.Context, channel uint32) error
	ConfigureStream(ctx context.Context, channel uint32, depth int) (int, error)

	Close() error
}

// Controller is implemented by transports that can control the FPGA VI
// lifecycle.
type Controller interface {
	Run(ctx context.Context) error
	Abort(ctx context.Context) error
	Reset(ctx context.Context) error
	Download(ctx context.Context) error
	State(ctx context.Context) (VIState, error)
}

// Infinite disables the timeout of a stream operation.
const Infinite time.Duration = -1

// VIState is the execution state of the FPGA VI.
type VIState uint8

const (
	StateNotRunning VIState = iota
	StateInvalid
	StateRunning
	StateNaturallyStopped
)

func (s VIState) String() string {
	switch s {
	case StateNotRunning:
		return "NotRunning"
	case StateInvalid:
		return "Invalid"
	case StateRunning:
		return "Running"
	case StateNaturallyStopped:
		return "NaturallyStopped"
	}
	return fmt.Sprintf("VIState(%d)", uint8(s))
}

var (
	// ErrNotImplemented lets backends signal that a requested capability is
	// not available.
	ErrNotImplemented = errors.New("transport: not implemented")

	// ErrTimeout is returned when a stream operation does not complete
	// within its timeout.
	ErrTimeout = errors.New("transport: timed out")

	// ErrClosed is returned by operations on a closed transport.
	ErrClosed = errors.New("transport: closed")
)

// ValidateWidth checks that width is a supported stream element width.
func ValidateWidth(width int) error {
	switch width {
	case 8, 16, 32, 64:
		return nil
	}
	return fmt.Errorf("transport: unsupported element width %d", width)
}

// widthMask returns the mask selecting the low width bits.
func widthMask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}
