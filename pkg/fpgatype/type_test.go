package fpgatype

import (
	"errors"
	"testing"

	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/fxp"
)

func TestSizeInBits(t *testing.T) {
	u16 := mustInt(t, "", 16, false)
	fx := &Type{Kind: KindFixedPoint, FixedPoint: fxp.TypeInfo{WordLength: 20, IntegerWordLength: 5}}

	tests := []struct {
		name      string
		typ       *Type
		size      int
		count     int
		primitive bool
	}{
		{"bool", NewBool("b"), 1, 1, true},
		{"u16", u16, 16, 1, true},
		{"fxp", fx, 20, 1, true},
		{"array", mustArray(t, "a", u16, 5), 80, 5, true},
		{"empty array", mustArray(t, "a", u16, 0), 0, 0, true},
		{"cluster", mustCluster(t, "c", u16, NewBool("x")), 17, 1, false},
		{"array of clusters", mustArray(t, "a", mustCluster(t, "c", NewBool("x")), 3), 3, 3, false},
		{"opaque", NewOpaque("s"), 0, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.typ.SizeInBits(); got != tt.size {
				t.Errorf("SizeInBits() = %d, want %d", got, tt.size)
			}
			if got := tt.typ.ElementCount(); got != tt.count {
				t.Errorf("ElementCount() = %d, want %d", got, tt.count)
			}
			if got := tt.typ.IsPrimitive(); got != tt.primitive {
				t.Errorf("IsPrimitive() = %v, want %v", got, tt.primitive)
			}
		})
	}
}

func TestDuplicateMemberName(t *testing.T) {
	_, err := NewCluster("c", NewBool("X"), mustInt(t, "X", 8, false))
	var dup *DuplicateMemberNameError
	if !errors.As(err, &dup) {
		t.Fatalf("NewCluster() error = %v, want DuplicateMemberNameError", err)
	}
	if dup.Cluster != "c" || dup.Member != "X" {
		t.Errorf("error = %+v", dup)
	}
}

func TestConstructorErrors(t *testing.T) {
	if _, err := NewInt("x", 12, false); err == nil {
		t.Error("expected error for 12-bit integer")
	}
	if _, err := NewArray("a", nil, 2); err == nil {
		t.Error("expected error for nil element")
	}
	if _, err := NewFixedPoint("f", fxp.TypeInfo{WordLength: 70}, false); err == nil {
		t.Error("expected error for 70-bit fixed point")
	}
}

func TestTypeString(t *testing.T) {
	typ := mustCluster(t, "c",
		mustInt(t, "A", 32, false),
		mustArray(t, "B", mustInt(t, "", 8, true), 4),
		NewBool("C"),
	)
	want := "Cluster{A: U32, B: Array[4]<I8>, C: Bool}"
	if got := typ.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
