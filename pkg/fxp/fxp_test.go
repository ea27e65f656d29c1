package fxp

import (
	"math"
	"testing"
)

func TestDelta(t *testing.T) {
	tests := []struct {
		info TypeInfo
		want float64
	}{
		{TypeInfo{WordLength: 8, IntegerWordLength: 8}, 1},
		{TypeInfo{WordLength: 16, IntegerWordLength: 8}, 1.0 / 256},
		{TypeInfo{WordLength: 32, IntegerWordLength: 0, Signed: true}, math.Ldexp(1, -32)},
		{TypeInfo{WordLength: 4, IntegerWordLength: 10}, 64},
		{TypeInfo{WordLength: 8, IntegerWordLength: -4}, math.Ldexp(1, -12)},
	}

	for _, tt := range tests {
		t.Run(tt.info.String(), func(t *testing.T) {
			if got := tt.info.Delta(); got != tt.want {
				t.Errorf("Delta() = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestRange(t *testing.T) {
	signed := TypeInfo{WordLength: 8, IntegerWordLength: 8, Signed: true}
	if signed.Max() != 0x7F {
		t.Errorf("signed Max = %#x, want 0x7f", signed.Max())
	}
	if signed.Min() != 0x80 {
		t.Errorf("signed Min = %#x, want 0x80", signed.Min())
	}

	unsigned := TypeInfo{WordLength: 8, IntegerWordLength: 8}
	if unsigned.Max() != 0xFF {
		t.Errorf("unsigned Max = %#x, want 0xff", unsigned.Max())
	}
	if unsigned.Min() != 0 {
		t.Errorf("unsigned Min = %#x, want 0", unsigned.Min())
	}

	wide := TypeInfo{WordLength: 64, IntegerWordLength: 64}
	if wide.Mask() != math.MaxUint64 || wide.Max() != math.MaxUint64 {
		t.Errorf("64-bit mask/max = %#x/%#x", wide.Mask(), wide.Max())
	}
}

func TestFromFloat(t *testing.T) {
	s8 := TypeInfo{WordLength: 8, IntegerWordLength: 8, Signed: true}
	u8 := TypeInfo{WordLength: 8, IntegerWordLength: 8}
	q8 := TypeInfo{WordLength: 16, IntegerWordLength: 8, Signed: true}

	tests := []struct {
		name string
		info TypeInfo
		in   float64
		want uint64
	}{
		{"signed saturate high", s8, 1000, 0x7F},
		{"signed saturate low", s8, -1000, 0x80},
		{"signed just below min", s8, -129, 0x80},
		{"signed min", s8, -128, 0x80},
		{"signed minus one", s8, -1, 0xFF},
		{"signed half range", s8, 200, 0x7F},
		{"signed small negative", s8, -0.5, 0},
		{"signed zero", s8, 0, 0},
		{"unsigned negative", u8, -1, 0},
		{"unsigned max", u8, 255, 0xFF},
		{"unsigned overflow", u8, 256, 0xFF},
		{"unsigned truncates", u8, 3.9, 3},
		{"fraction", q8, 1.5, 0x180},
		{"negative fraction", q8, -1.5, 0xFE80},
		{"nan", s8, math.NaN(), 0},
		{"positive inf", u8, math.Inf(1), 0xFF},
		{"negative inf", s8, math.Inf(-1), 0x80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.FromFloat(tt.in); got != tt.want {
				t.Errorf("FromFloat(%g) = %#x, want %#x", tt.in, got, tt.want)
			}
		})
	}
}

func TestToFloat(t *testing.T) {
	s8 := TypeInfo{WordLength: 8, IntegerWordLength: 8, Signed: true}
	q8 := TypeInfo{WordLength: 16, IntegerWordLength: 8, Signed: true}

	tests := []struct {
		name string
		info TypeInfo
		raw  uint64
		want float64
	}{
		{"signed max", s8, 0x7F, 127},
		{"signed min", s8, 0x80, -128},
		{"signed minus one", s8, 0xFF, -1},
		{"ignores bits above word", s8, 0x1FF, -1},
		{"fraction", q8, 0x0180, 1.5},
		{"negative fraction", q8, 0xFE80, -1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.ToFloat(tt.raw); got != tt.want {
				t.Errorf("ToFloat(%#x) = %g, want %g", tt.raw, got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	infos := []TypeInfo{
		{WordLength: 16, IntegerWordLength: 8, Signed: true},
		{WordLength: 24, IntegerWordLength: 4, Signed: true},
		{WordLength: 32, IntegerWordLength: 16},
		{WordLength: 40, IntegerWordLength: 20, Signed: true},
	}
	inputs := []float64{0, 0.1, 1.25, 3.14159, -2.71828, 7.5, -7.999}

	for _, info := range infos {
		for _, x := range inputs {
			if !info.Signed && x < 0 {
				continue
			}
			got := info.ToFloat(info.FromFloat(x))
			if math.Abs(got-x) > info.Delta() {
				t.Errorf("%s: round trip %g -> %g exceeds delta %g", info, x, got, info.Delta())
			}
		}
	}
}

func TestValidate(t *testing.T) {
	if err := (TypeInfo{WordLength: 0}).Validate(); err == nil {
		t.Error("expected error for zero word length")
	}
	if err := (TypeInfo{WordLength: 65}).Validate(); err == nil {
		t.Error("expected error for 65-bit word length")
	}
	if err := (TypeInfo{WordLength: 64, IntegerWordLength: -3}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
