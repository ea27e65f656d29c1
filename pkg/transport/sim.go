package transport

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TimeoutFlag marks a register resource whose access may time out. The
// simulator ignores it when addressing registers.
const TimeoutFlag uint32 = 0x80000000

// DefaultSimDepth is the FIFO depth used until ConfigureStream is called.
const DefaultSimDepth = 1024

// ReadHook lets tests supply register contents. Returning nil words falls
// through to the simulator's register file.
type ReadHook func(resource uint32, count int) ([]uint32, error)

// WriteHook observes register writes. An error aborts the write.
type WriteHook func(resource uint32, words []uint32) error

// WordOp captures a register access for inspection within tests.
type WordOp struct {
	Resource uint32
	Words    []uint32
}

var (
	_ Transport  = (*SimTransport)(nil)
	_ Controller = (*SimTransport)(nil)
)

type simFifo struct {
	queue   []uint64
	depth   int
	running bool
}

// SimTransport is an in-memory transport useful for unit tests and dry runs.
// Registers live in a map keyed by resource. Each DMA channel is a single
// bounded queue: the host side appends with StreamWrite and consumes with
// StreamRead, tests play the target with Push and Drain.
type SimTransport struct {
	OnRead  ReadHook
	OnWrite WriteHook

	mu        sync.Mutex
	changed   chan struct{}
	registers map[uint32][]uint32
	fifos     map[uint32]*simFifo
	state     VIState
	lastWrite WordOp
	downloads int
	closed    bool
}

// NewSimTransport constructs an empty simulator with the VI not running.
func NewSimTransport() *SimTransport {
	return &SimTransport{
		changed:   make(chan struct{}),
		registers: make(map[uint32][]uint32),
		fifos:     make(map[uint32]*simFifo),
	}
}

// LastWrite returns a copy of the most recent register write.
func (s *SimTransport) LastWrite() WordOp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return WordOp{
		Resource: s.lastWrite.Resource,
		Words:    append([]uint32(nil), s.lastWrite.Words...),
	}
}

// SetRegister stores words at resource without going through OnWrite.
func (s *SimTransport) SetRegister(resource uint32, words ...uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registers[resource&^TimeoutFlag] = append([]uint32(nil), words...)
}

// Push appends elements to a channel as if the target had produced them.
// Elements beyond the channel depth are dropped; Push returns how many were
// accepted.
func (s *SimTransport) Push(channel uint32, elems ...uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.fifo(channel)
	n := min(len(elems), f.depth-len(f.queue))
	f.queue = append(f.queue, elems[:n]...)
	s.broadcast()
	return n
}

// Drain removes and returns everything queued on a channel, as if the
// target had consumed it.
func (s *SimTransport) Drain(channel uint32) []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.fifo(channel)
	out := f.queue
	f.queue = nil
	s.broadcast()
	return out
}

// Running reports whether a channel has been started.
func (s *SimTransport) Running(channel uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fifo(channel).running
}

// SetState forces the VI state, e.g. to emulate a VI that stopped on its own.
func (s *SimTransport) SetState(state VIState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Downloads reports how many times Download was requested.
func (s *SimTransport) Downloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads
}

func (s *SimTransport) ReadWords(ctx context.Context, resource uint32, count int) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("transport: invalid word count %d", count)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	hook := s.OnRead
	stored := s.registers[resource&^TimeoutFlag]
	words := make([]uint32, count)
	copy(words, stored)
	s.mu.Unlock()

	if hook != nil {
		hooked, err := hook(resource, count)
		if err != nil {
			return nil, err
		}
		if hooked != nil {
			words = make([]uint32, count)
			copy(words, hooked)
		}
	}
	return words, nil
}

func (s *SimTransport) WriteWords(ctx context.Context, resource uint32, words []uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	hook := s.OnWrite
	s.mu.Unlock()

	if hook != nil {
		if err := hook(resource, words); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.registers[resource&^TimeoutFlag] = append([]uint32(nil), words...)
	s.lastWrite = WordOp{Resource: resource, Words: append([]uint32(nil), words...)}
	return nil
}

func (s *SimTransport) StreamRead(ctx context.Context, channel uint32, width, count int, timeout time.Duration) ([]uint64, int, error) {
	if err := ValidateWidth(width); err != nil {
		return nil, 0, err
	}
	if count < 0 {
		return nil, 0, fmt.Errorf("transport: invalid element count %d", count)
	}

	var out []uint64
	var remaining int
	err := s.wait(ctx, timeout, func() bool {
		f := s.fifo(channel)
		f.running = true
		if len(f.queue) < count {
			remaining = len(f.queue)
			return false
		}
		mask := widthMask(width)
		out = make([]uint64, count)
		for i := range out {
			out[i] = f.queue[i] & mask
		}
		f.queue = f.queue[count:]
		remaining = len(f.queue)
		return true
	})
	if err != nil {
		return nil, remaining, err
	}
	return out, remaining, nil
}

func (s *SimTransport) StreamWrite(ctx context.Context, channel uint32, width int, elems []uint64, timeout time.Duration) (int, error) {
	if err := ValidateWidth(width); err != nil {
		return 0, err
	}

	var free int
	err := s.wait(ctx, timeout, func() bool {
		f := s.fifo(channel)
		f.running = true
		free = f.depth - len(f.queue)
		if free < len(elems) {
			return false
		}
		mask := widthMask(width)
		for _, e := range elems {
			f.queue = append(f.queue, e&mask)
		}
		free = f.depth - len(f.queue)
		return true
	})
	if err != nil {
		return free, err
	}
	return free, nil
}

func (s *SimTransport) StartStream(ctx context.Context, channel uint32) error {
	return s.update(ctx, func() error {
		s.fifo(channel).running = true
		return nil
	})
}

func (s *SimTransport) StopStream(ctx context.Context, channel uint32) error {
	return s.update(ctx, func() error {
		f := s.fifo(channel)
		f.running = false
		f.queue = nil
		return nil
	})
}

// ConfigureStream sets the channel depth. Queued elements beyond the new
// depth are discarded.
func (s *SimTransport) ConfigureStream(ctx context.Context, channel uint32, depth int) (int, error) {
	if depth <= 0 {
		return 0, fmt.Errorf("transport: invalid FIFO depth %d", depth)
	}
	err := s.update(ctx, func() error {
		f := s.fifo(channel)
		f.depth = depth
		if len(f.queue) > depth {
			f.queue = f.queue[:depth]
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return depth, nil
}

func (s *SimTransport) Run(ctx context.Context) error {
	return s.update(ctx, func() error {
		if s.state == StateInvalid {
			return fmt.Errorf("transport: cannot run VI in state %s", s.state)
		}
		s.state = StateRunning
		return nil
	})
}

func (s *SimTransport) Abort(ctx context.Context) error {
	return s.update(ctx, func() error {
		s.state = StateNotRunning
		return nil
	})
}

// Reset aborts the VI and clears all registers and FIFOs.
func (s *SimTransport) Reset(ctx context.Context) error {
	return s.update(ctx, func() error {
		s.state = StateNotRunning
		s.registers = make(map[uint32][]uint32)
		for _, f := range s.fifos {
			f.queue = nil
			f.running = false
		}
		return nil
	})
}

func (s *SimTransport) Download(ctx context.Context) error {
	return s.update(ctx, func() error {
		s.downloads++
		s.state = StateNotRunning
		return nil
	})
}

func (s *SimTransport) State(ctx context.Context) (VIState, error) {
	var state VIState
	err := s.update(ctx, func() error {
		state = s.state
		return nil
	})
	return state, err
}

// Close marks the simulator closed and wakes blocked stream operations.
func (s *SimTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.broadcast()
	return nil
}

// update runs fn under the lock and wakes any waiters.
func (s *SimTransport) update(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	err := fn()
	s.broadcast()
	return err
}

// wait calls cond under the lock until it returns true, the timeout
// elapses, ctx is done or the transport is closed. A zero timeout checks
// once.
func (s *SimTransport) wait(ctx context.Context, timeout time.Duration, cond func() bool) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		if cond() {
			s.broadcast()
			s.mu.Unlock()
			return nil
		}
		changed := s.changed
		s.mu.Unlock()

		if timeout == 0 {
			return ErrTimeout
		}
		select {
		case <-changed:
		case <-expired:
			return ErrTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// broadcast wakes all waiters. Callers hold s.mu.
func (s *SimTransport) broadcast() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// fifo returns the channel state, creating it on first use. Callers hold
// s.mu.
func (s *SimTransport) fifo(channel uint32) *simFifo {
	f, ok := s.fifos[channel]
	if !ok {
		f = &simFifo{depth: DefaultSimDepth}
		s.fifos[channel] = f
	}
	return f
}
