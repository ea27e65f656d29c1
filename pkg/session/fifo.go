package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/constraints"

	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/bitfile"
	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/fpgatype"
	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/value"
)

// ErrWrongDirection is returned when reading a host-to-target FIFO or
// writing a target-to-host one.
var ErrWrongDirection = errors.New("session: wrong FIFO direction")

// Fifo is a bound DMA channel. Elements cross the transport as carriers of
// Width bits: 8 for booleans, the integer width for integers and 64 for
// fixed-point values, whose raw bits sit in the low WordLength bits.
type Fifo struct {
	Name string

	session *Session
	desc    *bitfile.Channel
	width   int
}

func newFifo(s *Session, desc *bitfile.Channel) (*Fifo, error) {
	width, err := elementWidth(desc.Type)
	if err != nil {
		return nil, fmt.Errorf("session: FIFO %q: %w", desc.Name, err)
	}
	return &Fifo{Name: desc.Name, session: s, desc: desc, width: width}, nil
}

func elementWidth(t *fpgatype.Type) (int, error) {
	switch t.Kind {
	case fpgatype.KindBool:
		return 8, nil
	case fpgatype.KindInt, fpgatype.KindUint:
		return t.Width, nil
	case fpgatype.KindFixedPoint:
		return 64, nil
	}
	return 0, fmt.Errorf("unsupported element type %s", t)
}

// Type returns the element type.
func (f *Fifo) Type() *fpgatype.Type { return f.desc.Type }

// Number returns the DMA channel number.
func (f *Fifo) Number() uint32 { return f.desc.Number }

// Direction returns the data flow of the channel.
func (f *Fifo) Direction() bitfile.Direction { return f.desc.Direction }

// Width returns the carrier width of one element in bits.
func (f *Fifo) Width() int { return f.width }

// Start starts the DMA channel.
func (f *Fifo) Start(ctx context.Context) error {
	if err := f.session.transport.StartStream(ctx, f.desc.Number); err != nil {
		return fmt.Errorf("session: start FIFO %s: %w", f.Name, err)
	}
	return nil
}

// Stop stops the DMA channel, discarding queued elements.
func (f *Fifo) Stop(ctx context.Context) error {
	if err := f.session.transport.StopStream(ctx, f.desc.Number); err != nil {
		return fmt.Errorf("session: stop FIFO %s: %w", f.Name, err)
	}
	return nil
}

// Configure requests a host buffer of depth elements and returns the depth
// actually granted.
func (f *Fifo) Configure(ctx context.Context, depth int) (int, error) {
	actual, err := f.session.transport.ConfigureStream(ctx, f.desc.Number, depth)
	if err != nil {
		return 0, fmt.Errorf("session: configure FIFO %s: %w", f.Name, err)
	}
	if actual != depth {
		Logger().Debug("FIFO depth adjusted",
			zap.String("name", f.Name),
			zap.Int("requested", depth),
			zap.Int("actual", actual))
	}
	return actual, nil
}

// Read reads count elements using the session's FIFO timeout. It returns
// the elements and the number still available.
func (f *Fifo) Read(ctx context.Context, count int) ([]value.Value, int, error) {
	return f.ReadTimeout(ctx, count, f.session.config.FIFOTimeout)
}

// ReadTimeout is Read with an explicit timeout.
func (f *Fifo) ReadTimeout(ctx context.Context, count int, timeout time.Duration) ([]value.Value, int, error) {
	raw, remaining, err := f.readRaw(ctx, count, timeout)
	if err != nil {
		return nil, remaining, err
	}
	out := make([]value.Value, len(raw))
	for i, r := range raw {
		out[i] = decodeElement(f.desc.Type, r)
	}
	return out, remaining, nil
}

// Write writes elems using the session's FIFO timeout and returns the free
// space left in the FIFO. Every element is checked before anything is sent.
func (f *Fifo) Write(ctx context.Context, elems []value.Value) (int, error) {
	return f.WriteTimeout(ctx, elems, f.session.config.FIFOTimeout)
}

// WriteTimeout is Write with an explicit timeout.
func (f *Fifo) WriteTimeout(ctx context.Context, elems []value.Value, timeout time.Duration) (int, error) {
	raw := make([]uint64, len(elems))
	for i, v := range elems {
		r, err := encodeElement(f.desc.Type, v)
		if err != nil {
			return 0, fmt.Errorf("session: write FIFO %s[%d]: %w", f.Name, i, err)
		}
		raw[i] = r
	}
	return f.writeRaw(ctx, raw, timeout)
}

func (f *Fifo) readRaw(ctx context.Context, count int, timeout time.Duration) ([]uint64, int, error) {
	if f.desc.Direction == bitfile.HostToTarget {
		return nil, 0, fmt.Errorf("session: read FIFO %s: %w", f.Name, ErrWrongDirection)
	}
	raw, remaining, err := f.session.transport.StreamRead(ctx, f.desc.Number, f.width, count, timeout)
	if err != nil {
		return nil, remaining, fmt.Errorf("session: read FIFO %s: %w", f.Name, err)
	}
	Logger().Debug("FIFO read",
		zap.String("name", f.Name),
		zap.Int("count", len(raw)),
		zap.Int("remaining", remaining))
	return raw, remaining, nil
}

func (f *Fifo) writeRaw(ctx context.Context, raw []uint64, timeout time.Duration) (int, error) {
	if f.desc.Direction == bitfile.TargetToHost {
		return 0, fmt.Errorf("session: write FIFO %s: %w", f.Name, ErrWrongDirection)
	}
	free, err := f.session.transport.StreamWrite(ctx, f.desc.Number, f.width, raw, timeout)
	if err != nil {
		return free, fmt.Errorf("session: write FIFO %s: %w", f.Name, err)
	}
	Logger().Debug("FIFO write",
		zap.String("name", f.Name),
		zap.Int("count", len(raw)),
		zap.Int("free", free))
	return free, nil
}

// Elements go through the register codec on a two-word buffer, so FIFO and
// register values share sign extension and saturation rules.

func decodeElement(t *fpgatype.Type, raw uint64) value.Value {
	words := []uint32{uint32(raw >> 32), uint32(raw)}
	return fpgatype.Unpack(t, words, 0)
}

func encodeElement(t *fpgatype.Type, v value.Value) (uint64, error) {
	words := make([]uint32, 2)
	if err := fpgatype.Pack(t, v, words, 0); err != nil {
		return 0, err
	}
	return uint64(words[0])<<32 | uint64(words[1]), nil
}

// ReadElements reads count integer elements from f into a slice of T. T
// must be at least as wide as the FIFO's integer type.
func ReadElements[T constraints.Integer](ctx context.Context, f *Fifo, count int) ([]T, int, error) {
	if err := checkIntegerFifo[T](f); err != nil {
		return nil, 0, err
	}
	raw, remaining, err := f.readRaw(ctx, count, f.session.config.FIFOTimeout)
	if err != nil {
		return nil, remaining, err
	}
	out := make([]T, len(raw))
	for i, r := range raw {
		if f.desc.Type.Kind == fpgatype.KindInt {
			out[i] = T(signExtend(r, f.width))
		} else {
			out[i] = T(r)
		}
	}
	return out, remaining, nil
}

// WriteElements writes integer elements to f. Values are truncated to the
// FIFO's integer width.
func WriteElements[T constraints.Integer](ctx context.Context, f *Fifo, elems []T) (int, error) {
	if err := checkIntegerFifo[T](f); err != nil {
		return 0, err
	}
	mask := ^uint64(0)
	if f.width < 64 {
		mask = uint64(1)<<f.width - 1
	}
	raw := make([]uint64, len(elems))
	for i, e := range elems {
		raw[i] = uint64(e) & mask
	}
	return f.writeRaw(ctx, raw, f.session.config.FIFOTimeout)
}

func checkIntegerFifo[T constraints.Integer](f *Fifo) error {
	switch f.desc.Type.Kind {
	case fpgatype.KindInt, fpgatype.KindUint:
	default:
		return fmt.Errorf("session: FIFO %s carries %s, not integers", f.Name, f.desc.Type)
	}
	if bits := reflect.TypeFor[T]().Bits(); bits < f.width {
		return fmt.Errorf("session: FIFO %s elements are %d bits, %T holds %d", f.Name, f.width, *new(T), bits)
	}
	return nil
}

func signExtend(raw uint64, width int) int64 {
	shift := 64 - width
	return int64(raw<<shift) >> shift
}
