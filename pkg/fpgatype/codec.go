package fpgatype

import (
	"fmt"
	"strconv"

	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/value"
)

// Bits are addressed from the end of the buffer: bit i lives in
// words[len(words)-1-i/32] at position i%32. A field that crosses a word
// boundary continues at bit 0 of the preceding word.
//
// Callers size the buffer; bits that fall outside it are dropped on pack
// and read as zero on unpack.

// Unpack decodes the value of type t stored at bitIndex in words.
func Unpack(t *Type, words []uint32, bitIndex int) value.Value {
	switch t.Kind {
	case KindBool:
		return value.Bool(getBits(words, bitIndex, 1) != 0)
	case KindUint:
		return value.Uint(getBits(words, bitIndex, t.Width))
	case KindInt:
		return value.Int(signExtend(getBits(words, bitIndex, t.Width), t.Width))
	case KindFixedPoint:
		raw := getBits(words, bitIndex, t.FixedPoint.WordLength)
		return value.Float(t.FixedPoint.ToFloat(raw))
	case KindArray:
		// The first element read is the last element of the array.
		items := make([]value.Value, t.Count)
		size := t.Elem.SizeInBits()
		for i := 0; i < t.Count; i++ {
			items[t.Count-1-i] = Unpack(t.Elem, words, bitIndex)
			bitIndex += size
		}
		return value.Seq(items...)
	case KindCluster:
		m := value.NewMap()
		for i := len(t.Members) - 1; i >= 0; i-- {
			member := t.Members[i]
			m.Set(member.Name, Unpack(member, words, bitIndex))
			bitIndex += member.SizeInBits()
		}
		return value.MapValue(m)
	}
	return value.Unit()
}

// Pack encodes v as type t at bitIndex in words. Only the bits of the field
// are modified. The value is checked against the type before any bit is
// written, so a failed Pack leaves words untouched.
func Pack(t *Type, v value.Value, words []uint32, bitIndex int) error {
	if err := Check(t, v); err != nil {
		return err
	}
	pack(t, v, words, bitIndex)
	return nil
}

// Check reports whether v can be packed as t. Integer fields accept Int or
// Uint values, fixed-point fields also accept Float. Cluster values may omit
// opaque members and may carry extra keys.
func Check(t *Type, v value.Value) error {
	return check(t, v, t.Name)
}

func check(t *Type, v value.Value, path string) error {
	mismatch := func(detail string) error {
		return &PackError{Path: path, Type: t, Got: v.Kind(), Detail: detail}
	}

	switch t.Kind {
	case KindBool:
		if _, ok := v.AsBool(); !ok {
			return mismatch("")
		}
	case KindInt, KindUint:
		if _, ok := v.AsUint(); !ok {
			return mismatch("")
		}
	case KindFixedPoint:
		if _, ok := v.AsFloat(); !ok {
			return mismatch("")
		}
	case KindArray:
		items, ok := v.Items()
		if !ok {
			return mismatch("")
		}
		if len(items) != t.Count {
			return mismatch(fmt.Sprintf("length %d, want %d", len(items), t.Count))
		}
		for i, item := range items {
			if err := check(t.Elem, item, path+"["+strconv.Itoa(i)+"]"); err != nil {
				return err
			}
		}
	case KindCluster:
		m, ok := v.Map()
		if !ok {
			return mismatch("")
		}
		for _, member := range t.Members {
			if member.Kind == KindOpaque {
				continue
			}
			memberPath := member.Name
			if path != "" {
				memberPath = path + "." + member.Name
			}
			item, ok := m.Get(member.Name)
			if !ok {
				return &PackError{Path: memberPath, Type: member, Got: value.KindUnit, Detail: "missing member"}
			}
			if err := check(member, item, memberPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func pack(t *Type, v value.Value, words []uint32, bitIndex int) {
	switch t.Kind {
	case KindBool:
		b, _ := v.AsBool()
		var bit uint64
		if b {
			bit = 1
		}
		putBits(words, bitIndex, 1, bit)
	case KindInt, KindUint:
		raw, _ := v.AsUint()
		putBits(words, bitIndex, t.Width, raw)
	case KindFixedPoint:
		f, _ := v.AsFloat()
		putBits(words, bitIndex, t.FixedPoint.WordLength, t.FixedPoint.FromFloat(f))
	case KindArray:
		// Written in reverse, mirroring Unpack. The caller's slice is not
		// modified.
		items, _ := v.Items()
		size := t.Elem.SizeInBits()
		for i := 0; i < t.Count; i++ {
			pack(t.Elem, items[t.Count-1-i], words, bitIndex)
			bitIndex += size
		}
	case KindCluster:
		m, _ := v.Map()
		for i := len(t.Members) - 1; i >= 0; i-- {
			member := t.Members[i]
			if member.Kind != KindOpaque {
				item, _ := m.Get(member.Name)
				pack(member, item, words, bitIndex)
			}
			bitIndex += member.SizeInBits()
		}
	}
}

// getBits reads width bits (at most 64) starting at bitIndex.
func getBits(words []uint32, bitIndex, width int) uint64 {
	var acc uint64
	shift := 0
	for width > 0 {
		wi := len(words) - 1 - bitIndex/32
		off := bitIndex % 32
		n := min(32-off, width)
		if wi >= 0 && wi < len(words) {
			mask := uint32((uint64(1) << n) - 1)
			acc |= uint64((words[wi]>>off)&mask) << shift
		}
		shift += n
		bitIndex += n
		width -= n
	}
	return acc
}

// putBits writes the low width bits of v starting at bitIndex, leaving all
// other bits of words unchanged.
func putBits(words []uint32, bitIndex, width int, v uint64) {
	for width > 0 {
		wi := len(words) - 1 - bitIndex/32
		off := bitIndex % 32
		n := min(32-off, width)
		if wi >= 0 && wi < len(words) {
			mask := uint32((uint64(1)<<n)-1) << off
			words[wi] = words[wi]&^mask | (uint32(v)<<off)&mask
		}
		v >>= n
		bitIndex += n
		width -= n
	}
}

func signExtend(raw uint64, width int) int64 {
	if width >= 64 {
		return int64(raw)
	}
	if raw&(uint64(1)<<(width-1)) != 0 {
		raw |= ^uint64(0) << width
	}
	return int64(raw)
}
