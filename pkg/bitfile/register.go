package bitfile

import "github.com/OpenTraceLab/OpenTraceFPGA/pkg/fpgatype"

// TimeoutFlag is OR'd into a register resource when access may time out.
const TimeoutFlag uint32 = 0x80000000

// TransferWords returns the number of 32-bit words needed to carry a value
// of sizeInBits bits.
func TransferWords(sizeInBits int) int {
	return (sizeInBits + 31) / 32
}

// BitShift returns the bit index at which a value of sizeInBits bits starts
// within its transfer buffer. Values that fit in one word start at bit 0;
// larger values are right-aligned against the end of the buffer.
func BitShift(sizeInBits int) int {
	words := TransferWords(sizeInBits)
	if words > 1 {
		return words*32 - sizeInBits
	}
	return 0
}

// Register describes a front-panel control or indicator.
type Register struct {
	Name             string
	Offset           uint32
	Indicator        bool // read by the host; controls are written
	AccessMayTimeout bool
	Internal         bool
	Type             *fpgatype.Type
}

// TransferWords returns the buffer size used to access the register.
func (r *Register) TransferWords() int {
	return TransferWords(r.Type.SizeInBits())
}

// BitShift returns the bit index of the register value in its buffer.
func (r *Register) BitShift() int {
	return BitShift(r.Type.SizeInBits())
}

// Resource returns the absolute address of the register given the base
// address of the register space.
func (r *Register) Resource(base uint32) uint32 {
	res := r.Offset + base
	if r.AccessMayTimeout {
		res |= TimeoutFlag
	}
	return res
}

// Length returns the element count of the register's type.
func (r *Register) Length() int {
	return r.Type.ElementCount()
}

// Direction is the data flow of a DMA channel.
type Direction int

const (
	DirectionUnknown Direction = iota
	TargetToHost
	HostToTarget
)

func (d Direction) String() string {
	switch d {
	case TargetToHost:
		return "TargetToHost"
	case HostToTarget:
		return "HostToTarget"
	}
	return "Unknown"
}

func parseDirection(s string) Direction {
	switch s {
	case "TargetToHost":
		return TargetToHost
	case "HostToTarget":
		return HostToTarget
	}
	return DirectionUnknown
}

// Channel describes a DMA FIFO.
type Channel struct {
	Name      string
	Number    uint32
	Direction Direction
	Type      *fpgatype.Type // scalar element type
}
