// Package fpgatype models the composite data types carried by FPGA registers
// and stream channels, and packs and unpacks values of those types into
// buffers of 32-bit words.
package fpgatype

import (
	"fmt"
	"strings"

	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/fxp"
)

// Kind discriminates the Type variants.
type Kind uint8

const (
	KindBool Kind = iota
	KindInt
	KindUint
	KindFixedPoint
	KindArray
	KindCluster
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindUint:
		return "Uint"
	case KindFixedPoint:
		return "FixedPoint"
	case KindArray:
		return "Array"
	case KindCluster:
		return "Cluster"
	case KindOpaque:
		return "Opaque"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Type describes a hardware data type. Types are built once by the
// constructors below and then treated as immutable.
type Type struct {
	Name string
	Kind Kind

	Width      int          // KindInt, KindUint: 8, 16, 32 or 64
	FixedPoint fxp.TypeInfo // KindFixedPoint
	Elem       *Type        // KindArray
	Count      int          // KindArray
	Members    []*Type      // KindCluster, in declaration order
}

// NewBool returns a 1-bit boolean type.
func NewBool(name string) *Type {
	return &Type{Name: name, Kind: KindBool}
}

// NewInt returns a signed or unsigned integer type of the given width.
func NewInt(name string, width int, signed bool) (*Type, error) {
	switch width {
	case 8, 16, 32, 64:
	default:
		return nil, fmt.Errorf("fpgatype: unsupported integer width %d", width)
	}
	kind := KindUint
	if signed {
		kind = KindInt
	}
	return &Type{Name: name, Kind: kind, Width: width}, nil
}

// NewFixedPoint returns a fixed-point type. With includeOverflow the result
// is a two-member cluster holding the number (under the same name) followed
// by a Bool named "OverflowStatus".
func NewFixedPoint(name string, info fxp.TypeInfo, includeOverflow bool) (*Type, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	number := &Type{Name: name, Kind: KindFixedPoint, FixedPoint: info}
	if !includeOverflow {
		return number, nil
	}
	return NewCluster(name, number, NewBool("OverflowStatus"))
}

// NewArray returns a fixed-length array of elem.
func NewArray(name string, elem *Type, count int) (*Type, error) {
	if elem == nil {
		return nil, fmt.Errorf("fpgatype: array %q has no element type", name)
	}
	if count < 0 {
		return nil, fmt.Errorf("fpgatype: array %q has negative size %d", name, count)
	}
	return &Type{Name: name, Kind: KindArray, Elem: elem, Count: count}, nil
}

// NewCluster returns a cluster of the given members. Member names must be
// unique within the cluster.
func NewCluster(name string, members ...*Type) (*Type, error) {
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		if _, dup := seen[m.Name]; dup {
			return nil, &DuplicateMemberNameError{Cluster: name, Member: m.Name}
		}
		seen[m.Name] = struct{}{}
	}
	return &Type{Name: name, Kind: KindCluster, Members: append([]*Type(nil), members...)}, nil
}

// NewOpaque returns a zero-width placeholder type, used for members such as
// strings in error clusters that never travel through registers.
func NewOpaque(name string) *Type {
	return &Type{Name: name, Kind: KindOpaque}
}

// SizeInBits returns the number of bits the type occupies.
func (t *Type) SizeInBits() int {
	switch t.Kind {
	case KindBool:
		return 1
	case KindInt, KindUint:
		return t.Width
	case KindFixedPoint:
		return t.FixedPoint.WordLength
	case KindArray:
		return t.Count * t.Elem.SizeInBits()
	case KindCluster:
		size := 0
		for _, m := range t.Members {
			size += m.SizeInBits()
		}
		return size
	}
	return 0
}

// ElementCount returns the array length, or 1 for every other kind.
func (t *Type) ElementCount() int {
	if t.Kind == KindArray {
		return t.Count
	}
	return 1
}

// IsPrimitive reports whether the type is a scalar (Bool, integer or
// fixed-point), or an array of such scalars.
func (t *Type) IsPrimitive() bool {
	switch t.Kind {
	case KindBool, KindInt, KindUint, KindFixedPoint:
		return true
	case KindArray:
		return t.Elem.IsPrimitive()
	}
	return false
}

// String renders a compact description, e.g. "Cluster{A: U32, B: Bool}".
func (t *Type) String() string {
	switch t.Kind {
	case KindBool:
		return "Bool"
	case KindInt:
		return fmt.Sprintf("I%d", t.Width)
	case KindUint:
		return fmt.Sprintf("U%d", t.Width)
	case KindFixedPoint:
		return "FXP" + t.FixedPoint.String()
	case KindArray:
		return fmt.Sprintf("Array[%d]<%s>", t.Count, t.Elem)
	case KindCluster:
		parts := make([]string, len(t.Members))
		for i, m := range t.Members {
			parts[i] = m.Name + ": " + m.String()
		}
		return "Cluster{" + strings.Join(parts, ", ") + "}"
	case KindOpaque:
		return "Opaque"
	}
	return t.Kind.String()
}
