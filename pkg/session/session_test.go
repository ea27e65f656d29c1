package session

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/bitfile"
	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/fpgatype"
	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/transport"
	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/value"
)

const demoBitfile = "../bitfile/testdata/demo.lvbitx"

func openDemo(t *testing.T, opts ...Option) (*Session, *transport.SimTransport) {
	t.Helper()
	bf, err := bitfile.Load(demoBitfile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	sim := transport.NewSimTransport()
	s, err := Open(context.Background(), bf, sim, opts...)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, sim
}

func mustLiteral(t *testing.T, src string) value.Value {
	t.Helper()
	v, err := value.ParseLiteral(src)
	if err != nil {
		t.Fatalf("ParseLiteral(%q) error = %v", src, err)
	}
	return v
}

// controlOnly hides the Controller methods of the wrapped transport.
type controlOnly struct {
	transport.Transport
	closes int
}

func (c *controlOnly) Close() error {
	c.closes++
	return c.Transport.Close()
}

func TestOpenBindsRegisters(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	s, _ := openDemo(t)

	want := []string{"Counter", "Enable", "Gain", "Mode", "Status", "Window", "error out"}
	if got := s.RegisterNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("RegisterNames() = %v, want %v", got, want)
	}

	// The first of two registers named Enable wins.
	enable, err := s.Register("Enable")
	if err != nil {
		t.Fatal(err)
	}
	if enable.Resource() != 98304+2 {
		t.Errorf("Enable resource = %d, want %d", enable.Resource(), 98304+2)
	}
	if logs.FilterMessage("duplicate register name, skipping").Len() != 1 {
		t.Errorf("expected one duplicate warning, got %v", logs.All())
	}

	if _, err := s.Register("ViControl"); !errors.Is(err, ErrUnknownRegister) {
		t.Errorf("Register(ViControl) error = %v, want ErrUnknownRegister", err)
	}
	if _, err := s.InternalRegister("ViControl"); err != nil {
		t.Errorf("InternalRegister(ViControl) error = %v", err)
	}

	wantFifos := []string{"Commands", "Samples", "Scaled"}
	if got := s.FifoNames(); !reflect.DeepEqual(got, wantFifos) {
		t.Errorf("FifoNames() = %v, want %v", got, wantFifos)
	}
}

func TestRegisterClusterAcrossWords(t *testing.T) {
	ctx := context.Background()
	s, sim := openDemo(t)

	status, err := s.Register("Status")
	if err != nil {
		t.Fatal(err)
	}
	if status.Resource() != 0x80018018 {
		t.Errorf("Resource() = %#x, want 0x80018018", status.Resource())
	}

	if err := status.Write(ctx, mustLiteral(t, "{A: 0x12345678, B: true}")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	last := sim.LastWrite()
	if last.Resource != 0x80018018 {
		t.Errorf("write resource = %#x", last.Resource)
	}
	if !reflect.DeepEqual(last.Words, []uint32{0x12345678, 0x80000000}) {
		t.Errorf("write words = %#x, want [0x12345678 0x80000000]", last.Words)
	}

	sim.SetRegister(0x80018018, 0xDEADBEEF, 0x00000000)
	v, err := status.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	m, ok := v.Map()
	if !ok {
		t.Fatalf("Read() = %s, want cluster", v)
	}
	if a, _ := m.Get("A"); !a.Equal(value.Uint(0xDEADBEEF)) {
		t.Errorf("A = %s", a)
	}
	if b, _ := m.Get("B"); !b.Equal(value.Bool(false)) {
		t.Errorf("B = %s", b)
	}
}

func TestRegisterReadInto(t *testing.T) {
	ctx := context.Background()
	s, sim := openDemo(t)
	sim.SetRegister(0x80018018, 42, 0x80000000)

	status, _ := s.Register("Status")
	var out struct {
		Count uint32 `fpga:"A"`
		Ready bool   `fpga:"B"`
	}
	if err := status.ReadInto(ctx, &out); err != nil {
		t.Fatalf("ReadInto() error = %v", err)
	}
	if out.Count != 42 || !out.Ready {
		t.Errorf("ReadInto() = %+v", out)
	}
}

func TestRegisterRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := openDemo(t)

	tests := []struct {
		register string
		literal  string
	}{
		{"Enable", "true"},
		{"Counter", "4000000000"},
		{"Mode", "1"},
		{"Window", "[1, -2, 3, -4]"},
		{"Gain", "{Gain: -1.5, OverflowStatus: true}"},
	}

	for _, tt := range tests {
		t.Run(tt.register, func(t *testing.T) {
			r, err := s.Register(tt.register)
			if err != nil {
				t.Fatal(err)
			}
			if err := r.Write(ctx, mustLiteral(t, tt.literal)); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			got, err := r.Read(ctx)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if got.String() != mustLiteral(t, tt.literal).String() && !sameNumbers(got, mustLiteral(t, tt.literal)) {
				t.Errorf("Read() = %s, want %s", got, tt.literal)
			}
		})
	}
}

// sameNumbers compares values numerically, ignoring whether a literal parsed
// as Int and the register decoded as Uint, and ignoring cluster key order.
func sameNumbers(a, b value.Value) bool {
	if am, ok := a.Map(); ok {
		bm, ok := b.Map()
		if !ok || am.Len() != bm.Len() {
			return false
		}
		for _, k := range am.Keys() {
			av, _ := am.Get(k)
			bv, found := bm.Get(k)
			if !found || !sameNumbers(av, bv) {
				return false
			}
		}
		return true
	}
	if ai, ok := a.Items(); ok {
		bi, ok := b.Items()
		if !ok || len(ai) != len(bi) {
			return false
		}
		for i := range ai {
			if !sameNumbers(ai[i], bi[i]) {
				return false
			}
		}
		return true
	}
	af, aok := a.AsFloat()
	bf, bok := b.AsFloat()
	if aok && bok {
		return af == bf
	}
	return a.Equal(b)
}

func TestRegisterWriteMismatch(t *testing.T) {
	ctx := context.Background()
	s, sim := openDemo(t)

	status, _ := s.Register("Status")
	err := status.Write(ctx, mustLiteral(t, "{A: true, B: true}"))
	if !errors.Is(err, fpgatype.ErrTypeMismatch) {
		t.Fatalf("Write() error = %v, want ErrTypeMismatch", err)
	}
	var perr *fpgatype.PackError
	if !errors.As(err, &perr) || perr.Path != "Status.A" {
		t.Errorf("PackError = %+v", perr)
	}
	if last := sim.LastWrite(); last.Words != nil {
		t.Errorf("failed write reached the transport: %+v", last)
	}
}

func TestRegisterWriteGo(t *testing.T) {
	ctx := context.Background()
	s, sim := openDemo(t)

	status, _ := s.Register("Status")
	if err := status.WriteGo(ctx, map[string]any{"A": uint32(7), "B": false}); err != nil {
		t.Fatalf("WriteGo() error = %v", err)
	}
	if words := sim.LastWrite().Words; words[0] != 7 || words[1] != 0 {
		t.Errorf("words = %#x", words)
	}
}

func TestOpenOptions(t *testing.T) {
	ctx := context.Background()

	s, sim := openDemo(t, WithRun(), WithRegisters("Status"), WithFIFODepth(16))
	if got := s.RegisterNames(); !reflect.DeepEqual(got, []string{"Status"}) {
		t.Errorf("RegisterNames() = %v", got)
	}
	if state, _ := sim.State(ctx); state != transport.StateRunning {
		t.Errorf("state = %s, want Running", state)
	}
	samples, _ := s.Fifo("Samples")
	if n := sim.Push(samples.Number(), make([]uint64, 20)...); n != 16 {
		t.Errorf("Push() accepted %d, want 16 after configure", n)
	}
}

func TestLifecycleWithoutController(t *testing.T) {
	ctx := context.Background()
	bf, err := bitfile.Load(demoBitfile)
	if err != nil {
		t.Fatal(err)
	}

	tr := &controlOnly{Transport: transport.NewSimTransport()}
	s, err := Open(ctx, bf, tr)
	if err != nil {
		t.Fatal(err)
	}
	ops := map[string]func() error{
		"run":      func() error { return s.Run(ctx) },
		"abort":    func() error { return s.Abort(ctx) },
		"reset":    func() error { return s.Reset(ctx) },
		"download": func() error { return s.Download(ctx) },
		"state":    func() error { _, err := s.State(ctx); return err },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, transport.ErrNotImplemented) {
			t.Errorf("%s: error = %v, want ErrNotImplemented", name, err)
		}
	}

	s.Close()
	s.Close()
	if tr.closes != 1 {
		t.Errorf("transport closed %d times, want 1", tr.closes)
	}

	tr2 := &controlOnly{Transport: transport.NewSimTransport()}
	if _, err := Open(ctx, bf, tr2, WithRun()); !errors.Is(err, transport.ErrNotImplemented) {
		t.Errorf("Open(WithRun) error = %v, want ErrNotImplemented", err)
	}
	if tr2.closes != 1 {
		t.Error("failed Open should close the transport")
	}
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	s, sim := openDemo(t)

	if err := s.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if state, err := s.State(ctx); err != nil || state != transport.StateRunning {
		t.Errorf("State() = %s, %v", state, err)
	}
	if err := s.Abort(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Download(ctx); err != nil {
		t.Fatal(err)
	}
	if sim.Downloads() != 1 {
		t.Errorf("Downloads() = %d", sim.Downloads())
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.FIFOTimeout != DefaultFIFOTimeout {
		t.Errorf("FIFOTimeout = %v, want default", cfg.FIFOTimeout)
	}
	if err := (&Config{FIFODepth: -1}).Validate(); err == nil {
		t.Error("expected error for negative depth")
	}
	if !DefaultConfig().ShouldBindRegister("anything") {
		t.Error("empty filter should bind every register")
	}
}
