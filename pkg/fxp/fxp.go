// Package fxp converts between raw fixed-point words and float64 values.
//
// A fixed-point type is described by its total word length, the number of
// integer bits (which may be negative or exceed the word length) and
// signedness. The raw value is the integer obtained by dividing the real
// value by the type's delta, truncated toward zero and saturated to the
// representable range.
package fxp

import (
	"fmt"
	"math"
)

// machineEpsilon is the float64 machine epsilon, 2^-52.
const machineEpsilon = 2.2204460492503131e-16

// TypeInfo describes a fixed-point representation.
type TypeInfo struct {
	WordLength        int  // Total bits, 1..64
	IntegerWordLength int  // Bits of integer part; may be negative or > WordLength
	Signed            bool // Two's complement when true
}

// Validate checks that the word length fits a 64-bit raw value.
func (t TypeInfo) Validate() error {
	if t.WordLength < 1 || t.WordLength > 64 {
		return fmt.Errorf("fxp: word length %d out of range 1..64", t.WordLength)
	}
	return nil
}

// String renders the type in the <±WL,IWL> notation used by FPGA tooling.
func (t TypeInfo) String() string {
	sign := "+"
	if t.Signed {
		sign = "±"
	}
	return fmt.Sprintf("<%s%d,%d>", sign, t.WordLength, t.IntegerWordLength)
}

// Mask returns the WordLength-bit all-ones mask.
func (t TypeInfo) Mask() uint64 {
	if t.WordLength >= 64 {
		return math.MaxUint64
	}
	return (uint64(1) << uint(t.WordLength)) - 1
}

// Delta returns the value of one least significant bit,
// 2^(IntegerWordLength-WordLength), computed from the machine epsilon.
func (t TypeInfo) Delta() float64 {
	exponent := t.IntegerWordLength - t.WordLength
	return machineEpsilon * math.Pow(2, float64(exponent+53-1))
}

// Max returns the raw encoding of the largest representable value.
func (t TypeInfo) Max() uint64 {
	magnitude := t.WordLength
	if t.Signed {
		magnitude--
	}
	if magnitude >= 64 {
		return math.MaxUint64
	}
	return (uint64(1) << uint(magnitude)) - 1
}

// Min returns the raw encoding of the smallest representable value. For
// unsigned types this is zero.
func (t TypeInfo) Min() uint64 {
	if !t.Signed {
		return 0
	}
	return (uint64(1) << uint(t.WordLength-1)) & t.Mask()
}

// ToFloat converts a raw word into its real value.
func (t TypeInfo) ToFloat(raw uint64) float64 {
	mask := t.Mask()
	raw &= mask
	delta := t.Delta()
	if t.Signed {
		signBit := uint64(1) << uint(t.WordLength-1)
		if raw&signBit != 0 {
			magnitude := int64(raw ^ mask)
			magnitude = (magnitude + 1) * -1
			return delta * float64(magnitude)
		}
	}
	return delta * float64(raw)
}

// FromFloat converts a real value into its raw word. Division by delta
// truncates toward zero. Values above the range saturate to Max, values
// below it saturate to Min; negative values clamp to zero for unsigned
// types. NaN encodes as zero.
func (t TypeInfo) FromFloat(x float64) uint64 {
	if math.IsNaN(x) {
		return 0
	}
	mask := t.Mask()
	scaled := x / t.Delta()

	if x < 0 {
		if !t.Signed {
			return 0
		}
		// -2^(WL-1) is the most negative raw value.
		lowest := -math.Ldexp(1, t.WordLength-1)
		if scaled < lowest {
			return t.Min()
		}
		q := int64(scaled)
		if q == 0 {
			return 0
		}
		r := q ^ int64(mask)
		r = (r + 1) * -1
		return uint64(r) & mask
	}

	if scaled >= math.Ldexp(1, 64) {
		return t.Max()
	}
	q := uint64(scaled)
	if q&mask != q || q > t.Max() {
		return t.Max()
	}
	return q
}
