// Package value defines the dynamically shaped values that flow through the
// FPGA register codec.
//
// A Value is a closed tagged variant: Unit, Bool, Int, Uint, Float, Seq or
// Map. Arrays unpack into Seq, clusters into Map (an insertion-ordered
// string-keyed map), fixed-point numbers into Float and opaque placeholder
// types into Unit.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind discriminates the Value variants.
type Kind uint8

const (
	KindUnit Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindSeq
	KindMap
)

var kindNames = [...]string{
	KindUnit:  "unit",
	KindBool:  "bool",
	KindInt:   "int",
	KindUint:  "uint",
	KindFloat: "float",
	KindSeq:   "seq",
	KindMap:   "map",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is an immutable tagged union. The zero Value is Unit.
type Value struct {
	kind Kind
	b    bool
	i    int64
	u    uint64
	f    float64
	seq  []Value
	m    *Map
}

// Unit returns the empty placeholder value.
func Unit() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps a signed integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Uint wraps an unsigned integer.
func Uint(u uint64) Value { return Value{kind: KindUint, u: u} }

// Float wraps a float64.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Seq wraps an ordered list of values. The slice is copied.
func Seq(items ...Value) Value {
	return Value{kind: KindSeq, seq: append([]Value(nil), items...)}
}

// MapValue wraps an ordered map. A nil map is treated as empty.
func MapValue(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

// Kind reports the variant.
func (v Value) Kind() Kind { return v.kind }

// IsUnit reports whether v is the Unit placeholder.
func (v Value) IsUnit() bool { return v.kind == KindUnit }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsInt returns the payload as int64. Uint payloads are reinterpreted.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindUint:
		return int64(v.u), true
	}
	return 0, false
}

// AsUint returns the payload as uint64. Int payloads are reinterpreted as
// two's complement.
func (v Value) AsUint() (uint64, bool) {
	switch v.kind {
	case KindUint:
		return v.u, true
	case KindInt:
		return uint64(v.i), true
	}
	return 0, false
}

// AsFloat returns the payload as float64, converting integers.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	case KindUint:
		return float64(v.u), true
	}
	return 0, false
}

// Items returns the elements of a Seq. The returned slice must not be
// modified.
func (v Value) Items() ([]Value, bool) {
	return v.seq, v.kind == KindSeq
}

// Map returns the ordered map of a Map value.
func (v Value) Map() (*Map, bool) {
	return v.m, v.kind == KindMap
}

// Equal reports deep equality. Floats compare by value, so NaN is never
// equal to itself.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindUnit:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindUint:
		return v.u == o.u
	case KindFloat:
		return v.f == o.f
	case KindSeq:
		if len(v.seq) != len(o.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(o.seq[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return v.m.Equal(o.m)
	}
	return false
}

// String renders the value in the literal syntax accepted by ParseLiteral.
func (v Value) String() string {
	var b strings.Builder
	v.write(&b)
	return b.String()
}

func (v Value) write(b *strings.Builder) {
	switch v.kind {
	case KindUnit:
		b.WriteString("()")
	case KindBool:
		b.WriteString(strconv.FormatBool(v.b))
	case KindInt:
		b.WriteString(strconv.FormatInt(v.i, 10))
	case KindUint:
		b.WriteString(strconv.FormatUint(v.u, 10))
	case KindFloat:
		s := strconv.FormatFloat(v.f, 'g', -1, 64)
		if !math.IsInf(v.f, 0) && !math.IsNaN(v.f) && !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		b.WriteString(s)
	case KindSeq:
		b.WriteByte('[')
		for i, item := range v.seq {
			if i > 0 {
				b.WriteString(", ")
			}
			item.write(b)
		}
		b.WriteByte(']')
	case KindMap:
		b.WriteByte('{')
		first := true
		v.m.Each(func(key string, item Value) {
			if !first {
				b.WriteString(", ")
			}
			first = false
			if isIdent(key) {
				b.WriteString(key)
			} else {
				b.WriteString(strconv.Quote(key))
			}
			b.WriteString(": ")
			item.write(b)
		})
		b.WriteByte('}')
	}
}

func isIdent(s string) bool {
	if s == "" || s == "true" || s == "false" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// ToGo converts v into plain Go values: nil, bool, int64, uint64, float64,
// []any and map[string]any.
func (v Value) ToGo() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindUint:
		return v.u
	case KindFloat:
		return v.f
	case KindSeq:
		out := make([]any, len(v.seq))
		for i, item := range v.seq {
			out[i] = item.ToGo()
		}
		return out
	case KindMap:
		out := make(map[string]any, v.m.Len())
		v.m.Each(func(key string, item Value) {
			out[key] = item.ToGo()
		})
		return out
	}
	return nil
}

// FromGo converts plain Go values into a Value. Maps with string keys become
// Map values with keys in sorted order, since Go maps carry no ordering.
func FromGo(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Unit(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Uint(uint64(t)), nil
	case uint8:
		return Uint(uint64(t)), nil
	case uint16:
		return Uint(uint64(t)), nil
	case uint32:
		return Uint(uint64(t)), nil
	case uint64:
		return Uint(t), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case []Value:
		return Seq(t...), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromGo(item)
			if err != nil {
				return Value{}, fmt.Errorf("value: index %d: %w", i, err)
			}
			items[i] = v
		}
		return Value{kind: KindSeq, seq: items}, nil
	case *Map:
		return MapValue(t), nil
	case map[string]any:
		m := NewMap()
		for _, key := range sortedKeys(t) {
			v, err := FromGo(t[key])
			if err != nil {
				return Value{}, fmt.Errorf("value: key %q: %w", key, err)
			}
			m.Set(key, v)
		}
		return MapValue(m), nil
	}
	return Value{}, fmt.Errorf("value: unsupported Go type %T", x)
}
