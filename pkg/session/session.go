// Package session binds a parsed bitfile to a transport, exposing its
// registers and DMA FIFOs as typed handles.
//
// A Session does not serialise access to the target; callers sharing one
// across goroutines coordinate themselves.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/bitfile"
	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/transport"
)

var (
	// ErrUnknownRegister is returned when a register name is not bound.
	ErrUnknownRegister = errors.New("session: unknown register")

	// ErrUnknownFifo is returned when a FIFO name is not bound.
	ErrUnknownFifo = errors.New("session: unknown FIFO")
)

// Session is an open binding between a bitfile and a target.
type Session struct {
	bitfile   *bitfile.Bitfile
	transport transport.Transport
	config    Config

	registers map[string]*Register
	internal  map[string]*Register
	fifos     map[string]*Fifo

	closeOnce sync.Once
	closeErr  error
}

// Open binds bf to tr. Public and internal registers are kept in separate
// namespaces; a repeated name within one namespace is logged and skipped.
// The session owns tr from here on: if Open fails, tr is closed.
func Open(ctx context.Context, bf *bitfile.Bitfile, tr transport.Transport, opts ...Option) (*Session, error) {
	if bf == nil {
		return nil, fmt.Errorf("session: nil bitfile")
	}
	if tr == nil {
		return nil, fmt.Errorf("session: nil transport")
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		tr.Close()
		return nil, err
	}

	s := &Session{
		bitfile:   bf,
		transport: tr,
		config:    *cfg,
		registers: make(map[string]*Register),
		internal:  make(map[string]*Register),
		fifos:     make(map[string]*Fifo),
	}

	if err := s.bind(ctx); err != nil {
		tr.Close()
		return nil, err
	}

	Logger().Debug("session opened",
		zap.String("signature", bf.Signature),
		zap.Int("registers", len(s.registers)),
		zap.Int("internal_registers", len(s.internal)),
		zap.Int("fifos", len(s.fifos)))

	return s, nil
}

func (s *Session) bind(ctx context.Context) error {
	for _, desc := range s.bitfile.Registers {
		target := s.registers
		kind := "public"
		if desc.Internal {
			target = s.internal
			kind = "internal"
		} else if !s.config.ShouldBindRegister(desc.Name) {
			continue
		}
		if _, dup := target[desc.Name]; dup {
			Logger().Warn("duplicate register name, skipping",
				zap.String("name", desc.Name),
				zap.String("namespace", kind),
				zap.Uint32("offset", desc.Offset))
			continue
		}
		target[desc.Name] = newRegister(s, desc)
	}

	for _, desc := range s.bitfile.Channels {
		if _, dup := s.fifos[desc.Name]; dup {
			Logger().Warn("duplicate FIFO name, skipping",
				zap.String("name", desc.Name),
				zap.Uint32("number", desc.Number))
			continue
		}
		f, err := newFifo(s, desc)
		if err != nil {
			return err
		}
		if s.config.FIFODepth > 0 {
			if _, err := f.Configure(ctx, s.config.FIFODepth); err != nil {
				return err
			}
		}
		s.fifos[desc.Name] = f
	}

	if s.config.RunOnOpen {
		if err := s.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Bitfile returns the bitfile the session was opened with.
func (s *Session) Bitfile() *bitfile.Bitfile { return s.bitfile }

// Transport returns the underlying transport.
func (s *Session) Transport() transport.Transport { return s.transport }

// Register returns the public register with the given name.
func (s *Session) Register(name string) (*Register, error) {
	r, ok := s.registers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegister, name)
	}
	return r, nil
}

// InternalRegister returns the internal register with the given name.
func (s *Session) InternalRegister(name string) (*Register, error) {
	r, ok := s.internal[name]
	if !ok {
		return nil, fmt.Errorf("%w: internal %q", ErrUnknownRegister, name)
	}
	return r, nil
}

// Fifo returns the FIFO with the given name.
func (s *Session) Fifo(name string) (*Fifo, error) {
	f, ok := s.fifos[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFifo, name)
	}
	return f, nil
}

// RegisterNames returns the public register names, sorted.
func (s *Session) RegisterNames() []string {
	return sortedNames(s.registers)
}

// FifoNames returns the FIFO names, sorted.
func (s *Session) FifoNames() []string {
	return sortedNames(s.fifos)
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Session) controller() (transport.Controller, error) {
	c, ok := s.transport.(transport.Controller)
	if !ok {
		return nil, transport.ErrNotImplemented
	}
	return c, nil
}

// Run starts the VI.
func (s *Session) Run(ctx context.Context) error {
	c, err := s.controller()
	if err != nil {
		return fmt.Errorf("session: run: %w", err)
	}
	if err := c.Run(ctx); err != nil {
		return fmt.Errorf("session: run: %w", err)
	}
	return nil
}

// Abort stops the VI.
func (s *Session) Abort(ctx context.Context) error {
	c, err := s.controller()
	if err != nil {
		return fmt.Errorf("session: abort: %w", err)
	}
	if err := c.Abort(ctx); err != nil {
		return fmt.Errorf("session: abort: %w", err)
	}
	return nil
}

// Reset aborts the VI and returns it to its initial state.
func (s *Session) Reset(ctx context.Context) error {
	c, err := s.controller()
	if err != nil {
		return fmt.Errorf("session: reset: %w", err)
	}
	if err := c.Reset(ctx); err != nil {
		return fmt.Errorf("session: reset: %w", err)
	}
	return nil
}

// Download reloads the bitstream onto the target.
func (s *Session) Download(ctx context.Context) error {
	c, err := s.controller()
	if err != nil {
		return fmt.Errorf("session: download: %w", err)
	}
	if err := c.Download(ctx); err != nil {
		return fmt.Errorf("session: download: %w", err)
	}
	return nil
}

// State reports the VI execution state.
func (s *Session) State(ctx context.Context) (transport.VIState, error) {
	c, err := s.controller()
	if err != nil {
		return transport.StateInvalid, fmt.Errorf("session: state: %w", err)
	}
	state, err := c.State(ctx)
	if err != nil {
		return transport.StateInvalid, fmt.Errorf("session: state: %w", err)
	}
	return state, nil
}

// Close closes the transport. Later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.transport.Close()
	})
	return s.closeErr
}
