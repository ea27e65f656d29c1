package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

// bridgeLink answers register bridge frames from a SimTransport, standing in
// for the probe firmware.
type bridgeLink struct {
	sim      *SimTransport
	requests [][]byte
	status   byte // forced status, 0 to answer normally
	closes   int
}

func newBridgeLink() *bridgeLink {
	return &bridgeLink{sim: NewSimTransport()}
}

func (b *bridgeLink) Exchange(ctx context.Context, cmd []byte) ([]byte, error) {
	b.requests = append(b.requests, append([]byte(nil), cmd...))
	if b.status != StatusOK {
		return []byte{cmd[0], b.status, 0, 0}, nil
	}

	payload := cmd[HeaderSize:]
	reply, err := b.serve(ctx, cmd[0], payload)
	if errors.Is(err, ErrTimeout) {
		return []byte{cmd[0], StatusTimeout, 0, 0}, nil
	}
	if err != nil {
		return []byte{cmd[0], StatusError, 0, 0}, nil
	}
	return frame(cmd[0], reply), nil
}

func (b *bridgeLink) serve(ctx context.Context, cmd byte, p []byte) ([]byte, error) {
	le := binary.LittleEndian
	switch cmd {
	case CmdReadWords:
		words, err := b.sim.ReadWords(ctx, le.Uint32(p), int(le.Uint16(p[4:])))
		if err != nil {
			return nil, err
		}
		out := make([]byte, 4*len(words))
		for i, w := range words {
			le.PutUint32(out[4*i:], w)
		}
		return out, nil

	case CmdWriteWords:
		words := make([]uint32, le.Uint16(p[4:]))
		for i := range words {
			words[i] = le.Uint32(p[6+4*i:])
		}
		return nil, b.sim.WriteWords(ctx, le.Uint32(p), words)

	case CmdStreamRead:
		width := int(p[4])
		elems, remaining, err := b.sim.StreamRead(ctx, le.Uint32(p), width, int(le.Uint16(p[5:])), wireTimeout(le.Uint32(p[7:])))
		if err != nil {
			return nil, err
		}
		out := make([]byte, 4+len(elems)*width/8)
		le.PutUint32(out, uint32(remaining))
		for i, e := range elems {
			putElement(out[4+i*width/8:], width, e)
		}
		return out, nil

	case CmdStreamWrite:
		width := int(p[4])
		elems := make([]uint64, le.Uint16(p[5:]))
		for i := range elems {
			elems[i] = getElement(p[11+i*width/8:], width)
		}
		free, err := b.sim.StreamWrite(ctx, le.Uint32(p), width, elems, wireTimeout(le.Uint32(p[7:])))
		if err != nil {
			return nil, err
		}
		return le.AppendUint32(nil, uint32(free)), nil

	case CmdStreamStart:
		return nil, b.sim.StartStream(ctx, le.Uint32(p))
	case CmdStreamStop:
		return nil, b.sim.StopStream(ctx, le.Uint32(p))
	case CmdStreamConf:
		depth, err := b.sim.ConfigureStream(ctx, le.Uint32(p), int(le.Uint32(p[4:])))
		if err != nil {
			return nil, err
		}
		return le.AppendUint32(nil, uint32(depth)), nil

	case CmdRun:
		return nil, b.sim.Run(ctx)
	case CmdAbort:
		return nil, b.sim.Abort(ctx)
	case CmdReset:
		return nil, b.sim.Reset(ctx)
	case CmdDownload:
		return nil, b.sim.Download(ctx)
	case CmdState:
		state, err := b.sim.State(ctx)
		return []byte{byte(state)}, err
	}
	return nil, errors.New("unknown command")
}

func (b *bridgeLink) Close() error {
	b.closes++
	return nil
}

func wireTimeout(ms uint32) time.Duration {
	if ms == infiniteTimeoutMs {
		return Infinite
	}
	return time.Duration(ms) * time.Millisecond
}

func TestUSBTransportRegisters(t *testing.T) {
	ctx := context.Background()
	link := newBridgeLink()
	tr := newUSBTransport(link, DefaultPacketSize)

	if err := tr.WriteWords(ctx, 0x18018|TimeoutFlag, []uint32{0x12345678, 0x80000000}); err != nil {
		t.Fatalf("WriteWords() error = %v", err)
	}
	if last := link.sim.LastWrite(); last.Resource != 0x80018018 || last.Words[1] != 0x80000000 {
		t.Errorf("bridge saw %+v", last)
	}

	words, err := tr.ReadWords(ctx, 0x18018, 2)
	if err != nil {
		t.Fatalf("ReadWords() error = %v", err)
	}
	if words[0] != 0x12345678 || words[1] != 0x80000000 {
		t.Errorf("ReadWords() = %#x", words)
	}
}

func TestUSBTransportStreams(t *testing.T) {
	ctx := context.Background()
	link := newBridgeLink()
	tr := newUSBTransport(link, DefaultPacketSize)

	depth, err := tr.ConfigureStream(ctx, 1, 8)
	if err != nil || depth != 8 {
		t.Fatalf("ConfigureStream() = %d, %v", depth, err)
	}
	if err := tr.StartStream(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if !link.sim.Running(1) {
		t.Error("bridge channel not started")
	}

	free, err := tr.StreamWrite(ctx, 1, 16, []uint64{0xBEEF, 0x1234}, time.Second)
	if err != nil {
		t.Fatalf("StreamWrite() error = %v", err)
	}
	if free != 6 {
		t.Errorf("free = %d, want 6", free)
	}

	elems, remaining, err := tr.StreamRead(ctx, 1, 16, 1, Infinite)
	if err != nil {
		t.Fatalf("StreamRead() error = %v", err)
	}
	if elems[0] != 0xBEEF || remaining != 1 {
		t.Errorf("StreamRead() = %#x, %d", elems, remaining)
	}

	if _, _, err := tr.StreamRead(ctx, 1, 16, 4, 0); !errors.Is(err, ErrTimeout) {
		t.Errorf("StreamRead() error = %v, want ErrTimeout", err)
	}

	if err := tr.StopStream(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if link.sim.Running(1) {
		t.Error("bridge channel still running")
	}
}

func TestUSBTransportController(t *testing.T) {
	ctx := context.Background()
	link := newBridgeLink()
	tr := newUSBTransport(link, DefaultPacketSize)

	if err := tr.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if state, err := tr.State(ctx); err != nil || state != StateRunning {
		t.Errorf("State() = %s, %v", state, err)
	}
	if err := tr.Abort(ctx); err != nil {
		t.Fatal(err)
	}
	if err := tr.Download(ctx); err != nil {
		t.Fatal(err)
	}
	if err := tr.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if link.sim.Downloads() != 1 {
		t.Errorf("Downloads() = %d, want 1", link.sim.Downloads())
	}

	link.sim.SetState(StateInvalid)
	if err := tr.Run(ctx); err == nil {
		t.Error("expected device error for Run in invalid state")
	}
}

func TestUSBTransportDeviceStatus(t *testing.T) {
	link := newBridgeLink()
	tr := newUSBTransport(link, DefaultPacketSize)

	link.status = StatusTimeout
	if _, err := tr.ReadWords(context.Background(), 0, 1); !errors.Is(err, ErrTimeout) {
		t.Errorf("ReadWords() error = %v, want ErrTimeout", err)
	}

	link.status = StatusError
	if err := tr.WriteWords(context.Background(), 0, []uint32{1}); err == nil {
		t.Error("expected error status to surface")
	}
}

func TestUSBTransportValidation(t *testing.T) {
	ctx := context.Background()
	link := newBridgeLink()
	tr := newUSBTransport(link, DefaultPacketSize)

	if _, _, err := tr.StreamRead(ctx, 0, 24, 1, 0); err == nil {
		t.Error("expected width error")
	}
	if _, err := tr.ConfigureStream(ctx, 0, 0); err == nil {
		t.Error("expected depth error")
	}
	if _, err := tr.ReadWords(ctx, 0, 0x10000); err == nil {
		t.Error("expected count error")
	}
	if len(link.requests) != 0 {
		t.Errorf("invalid requests reached the link: %d", len(link.requests))
	}
}

func TestUSBTransportClose(t *testing.T) {
	link := newBridgeLink()
	tr := newUSBTransport(link, DefaultPacketSize)

	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if link.closes != 1 {
		t.Errorf("link closed %d times, want 1", link.closes)
	}
	if _, err := tr.ReadWords(context.Background(), 0, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadWords() after Close error = %v, want ErrClosed", err)
	}
}

func TestUSBTransportHardware(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping hardware test in short mode")
	}

	tr, err := NewUSBTransport(VendorIDBridge, ProductIDBridge)
	if err != nil {
		t.Skipf("register bridge not available: %v", err)
	}
	defer tr.Close()

	if _, err := tr.State(context.Background()); err != nil {
		t.Errorf("State() error = %v", err)
	}
}
