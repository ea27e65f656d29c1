package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/bitfile"
	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/fpgatype"
	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/value"
)

// Register is a bound front-panel control or indicator. Every access moves
// the whole register: TransferWords words at Resource, with the value
// right-aligned at BitShift.
type Register struct {
	Name string

	session  *Session
	desc     *bitfile.Register
	resource uint32
	words    int
	shift    int
}

func newRegister(s *Session, desc *bitfile.Register) *Register {
	return &Register{
		Name:     desc.Name,
		session:  s,
		desc:     desc,
		resource: desc.Resource(s.bitfile.BaseAddress),
		words:    desc.TransferWords(),
		shift:    desc.BitShift(),
	}
}

// Type returns the register's data type.
func (r *Register) Type() *fpgatype.Type { return r.desc.Type }

// Descriptor returns the parsed register description.
func (r *Register) Descriptor() *bitfile.Register { return r.desc }

// Resource returns the address passed to the transport.
func (r *Register) Resource() uint32 { return r.resource }

// Length returns the element count of the register's type.
func (r *Register) Length() int { return r.desc.Length() }

// Read fetches the register and decodes its value.
func (r *Register) Read(ctx context.Context) (value.Value, error) {
	words, err := r.session.transport.ReadWords(ctx, r.resource, r.words)
	if err != nil {
		return value.Unit(), fmt.Errorf("session: read %s: %w", r.Name, err)
	}
	if len(words) != r.words {
		return value.Unit(), fmt.Errorf("session: read %s: got %d words, want %d", r.Name, len(words), r.words)
	}
	Logger().Debug("register read",
		zap.String("name", r.Name),
		zap.Uint32("resource", r.resource),
		zap.Uint32s("words", words))
	return fpgatype.Unpack(r.desc.Type, words, r.shift), nil
}

// ReadInto reads the register and decodes it into out, which must be a
// pointer. Cluster members map to struct fields by `fpga` tag or name.
func (r *Register) ReadInto(ctx context.Context, out any) error {
	v, err := r.Read(ctx)
	if err != nil {
		return err
	}
	if err := value.Decode(v, out); err != nil {
		return fmt.Errorf("session: read %s: %w", r.Name, err)
	}
	return nil
}

// Write encodes v and stores it in the register. Bits of the transfer
// buffer outside the value are sent as zero.
func (r *Register) Write(ctx context.Context, v value.Value) error {
	words := make([]uint32, r.words)
	if err := fpgatype.Pack(r.desc.Type, v, words, r.shift); err != nil {
		return fmt.Errorf("session: write %s: %w", r.Name, err)
	}
	Logger().Debug("register write",
		zap.String("name", r.Name),
		zap.Uint32("resource", r.resource),
		zap.Uint32s("words", words))
	if err := r.session.transport.WriteWords(ctx, r.resource, words); err != nil {
		return fmt.Errorf("session: write %s: %w", r.Name, err)
	}
	return nil
}

// WriteGo converts x with value.FromGo and writes it.
func (r *Register) WriteGo(ctx context.Context, x any) error {
	v, err := value.FromGo(x)
	if err != nil {
		return fmt.Errorf("session: write %s: %w", r.Name, err)
	}
	return r.Write(ctx, v)
}
