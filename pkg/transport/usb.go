package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"
)

const (
	// Register bridge USB identifiers (pid.codes open hardware test PID)
	VendorIDBridge  = 0x1209
	ProductIDBridge = 0x0001

	DefaultPacketSize = 64
)

// link carries one command frame to the target and returns the response
// frame.
type link interface {
	Exchange(ctx context.Context, cmd []byte) ([]byte, error)
	Close() error
}

// usbLink talks to a register bridge over a vendor-class bulk interface.
type usbLink struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	packetSize int
}

func openUSBLink(vid, pid uint16) (*usbLink, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("transport: USB error: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("transport: device not found (VID:0x%04X PID:0x%04X)", vid, pid)
	}

	// Not supported on every platform.
	_ = dev.SetAutoDetach(true)

	l := &usbLink{ctx: ctx, dev: dev, packetSize: DefaultPacketSize}
	if err := l.claimInterface(); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

// claimInterface finds and claims the vendor-class interface, falling back
// to interface 0.
func (l *usbLink) claimInterface() error {
	cfg, err := l.dev.Config(1)
	if err != nil {
		return fmt.Errorf("transport: failed to get config: %w", err)
	}
	l.cfg = cfg

	vendorIntf := 0
	for _, intf := range cfg.Desc.Interfaces {
		if len(intf.AltSettings) > 0 && intf.AltSettings[0].Class == gousb.ClassVendorSpec {
			vendorIntf = intf.Number
			break
		}
	}

	intf, err := cfg.Interface(vendorIntf, 0)
	if err != nil {
		return fmt.Errorf("transport: failed to claim interface %d: %w", vendorIntf, err)
	}
	l.intf = intf

	var outAddr, inAddr int
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch {
		case ep.Direction == gousb.EndpointDirectionOut && outAddr == 0:
			outAddr = ep.Number
		case ep.Direction == gousb.EndpointDirectionIn && inAddr == 0:
			inAddr = ep.Number
			l.packetSize = ep.MaxPacketSize
		}
	}
	if outAddr == 0 {
		return fmt.Errorf("transport: bulk OUT endpoint not found")
	}
	if inAddr == 0 {
		return fmt.Errorf("transport: bulk IN endpoint not found")
	}

	if l.epOut, err = intf.OutEndpoint(outAddr); err != nil {
		return fmt.Errorf("transport: failed to open OUT endpoint: %w", err)
	}
	if l.epIn, err = intf.InEndpoint(inAddr); err != nil {
		return fmt.Errorf("transport: failed to open IN endpoint: %w", err)
	}
	return nil
}

// Exchange writes cmd padded to whole packets, then reads packets until a
// complete response frame has arrived.
func (l *usbLink) Exchange(ctx context.Context, cmd []byte) ([]byte, error) {
	padded := make([]byte, (len(cmd)+l.packetSize-1)/l.packetSize*l.packetSize)
	copy(padded, cmd)
	if _, err := l.epOut.WriteContext(ctx, padded); err != nil {
		return nil, fmt.Errorf("transport: USB write failed: %w", err)
	}

	var resp []byte
	packet := make([]byte, l.packetSize)
	for {
		n, err := l.epIn.ReadContext(ctx, packet)
		if err != nil {
			return nil, fmt.Errorf("transport: USB read failed: %w", err)
		}
		resp = append(resp, packet[:n]...)
		if total, ok := FrameLength(resp); ok && len(resp) >= total {
			return resp[:total], nil
		}
		if n == 0 {
			return nil, fmt.Errorf("transport: short USB response (%d bytes)", len(resp))
		}
	}
}

// Close releases USB resources
func (l *usbLink) Close() error {
	if l.intf != nil {
		l.intf.Close()
		l.intf = nil
	}
	if l.cfg != nil {
		l.cfg.Close()
		l.cfg = nil
	}
	if l.dev != nil {
		l.dev.Close()
		l.dev = nil
	}
	if l.ctx != nil {
		l.ctx.Close()
		l.ctx = nil
	}
	return nil
}

// USBTransport implements Transport and Controller for a register bridge
// probe attached over USB.
type USBTransport struct {
	link     link
	protocol *Protocol

	mu     sync.Mutex // one frame in flight at a time
	closed bool
}

var (
	_ Transport  = (*USBTransport)(nil)
	_ Controller = (*USBTransport)(nil)
)

// NewUSBTransport opens the first register bridge matching vid:pid.
func NewUSBTransport(vid, pid uint16) (*USBTransport, error) {
	l, err := openUSBLink(vid, pid)
	if err != nil {
		return nil, err
	}
	Logger().Debug("opened USB register bridge",
		zap.Uint16("vid", vid),
		zap.Uint16("pid", pid),
		zap.Int("packet_size", l.packetSize))
	return newUSBTransport(l, l.packetSize), nil
}

func newUSBTransport(l link, packetSize int) *USBTransport {
	return &USBTransport{link: l, protocol: NewProtocol(packetSize)}
}

func (t *USBTransport) exchange(ctx context.Context, cmd []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	if len(cmd)-HeaderSize > t.protocol.MaxPayload() {
		return nil, fmt.Errorf("transport: command 0x%02X payload of %d bytes exceeds frame limit", cmd[0], len(cmd)-HeaderSize)
	}
	Logger().Debug("usb exchange", zap.Uint8("cmd", cmd[0]), zap.Int("bytes", len(cmd)))
	return t.link.Exchange(ctx, cmd)
}

func (t *USBTransport) ReadWords(ctx context.Context, resource uint32, count int) ([]uint32, error) {
	if count < 0 || count > 0xFFFF {
		return nil, fmt.Errorf("transport: invalid word count %d", count)
	}
	resp, err := t.exchange(ctx, t.protocol.EncodeReadWords(resource, count))
	if err != nil {
		return nil, err
	}
	return t.protocol.DecodeReadWords(resp, count)
}

func (t *USBTransport) WriteWords(ctx context.Context, resource uint32, words []uint32) error {
	if len(words) > 0xFFFF {
		return fmt.Errorf("transport: invalid word count %d", len(words))
	}
	resp, err := t.exchange(ctx, t.protocol.EncodeWriteWords(resource, words))
	if err != nil {
		return err
	}
	return t.protocol.DecodeStatus(CmdWriteWords, resp)
}

func (t *USBTransport) StreamRead(ctx context.Context, channel uint32, width, count int, timeout time.Duration) ([]uint64, int, error) {
	if err := ValidateWidth(width); err != nil {
		return nil, 0, err
	}
	if count < 0 || count > 0xFFFF {
		return nil, 0, fmt.Errorf("transport: invalid element count %d", count)
	}
	resp, err := t.exchange(ctx, t.protocol.EncodeStreamRead(channel, width, count, timeout))
	if err != nil {
		return nil, 0, err
	}
	return t.protocol.DecodeStreamRead(resp, width, count)
}

func (t *USBTransport) StreamWrite(ctx context.Context, channel uint32, width int, elems []uint64, timeout time.Duration) (int, error) {
	if err := ValidateWidth(width); err != nil {
		return 0, err
	}
	if len(elems) > 0xFFFF {
		return 0, fmt.Errorf("transport: invalid element count %d", len(elems))
	}
	resp, err := t.exchange(ctx, t.protocol.EncodeStreamWrite(channel, width, elems, timeout))
	if err != nil {
		return 0, err
	}
	return t.protocol.DecodeStreamWrite(resp)
}

func (t *USBTransport) StartStream(ctx context.Context, channel uint32) error {
	return t.control(ctx, t.protocol.EncodeStreamControl(CmdStreamStart, channel))
}

func (t *USBTransport) StopStream(ctx context.Context, channel uint32) error {
	return t.control(ctx, t.protocol.EncodeStreamControl(CmdStreamStop, channel))
}

func (t *USBTransport) ConfigureStream(ctx context.Context, channel uint32, depth int) (int, error) {
	if depth <= 0 {
		return 0, fmt.Errorf("transport: invalid FIFO depth %d", depth)
	}
	resp, err := t.exchange(ctx, t.protocol.EncodeConfigure(channel, depth))
	if err != nil {
		return 0, err
	}
	return t.protocol.DecodeConfigure(resp)
}

func (t *USBTransport) Run(ctx context.Context) error {
	return t.control(ctx, t.protocol.EncodeControl(CmdRun))
}

func (t *USBTransport) Abort(ctx context.Context) error {
	return t.control(ctx, t.protocol.EncodeControl(CmdAbort))
}

func (t *USBTransport) Reset(ctx context.Context) error {
	return t.control(ctx, t.protocol.EncodeControl(CmdReset))
}

func (t *USBTransport) Download(ctx context.Context) error {
	return t.control(ctx, t.protocol.EncodeControl(CmdDownload))
}

func (t *USBTransport) State(ctx context.Context) (VIState, error) {
	resp, err := t.exchange(ctx, t.protocol.EncodeControl(CmdState))
	if err != nil {
		return 0, err
	}
	return t.protocol.DecodeState(resp)
}

func (t *USBTransport) control(ctx context.Context, cmd []byte) error {
	resp, err := t.exchange(ctx, cmd)
	if err != nil {
		return err
	}
	return t.protocol.DecodeStatus(cmd[0], resp)
}

// Close releases the USB device. Closing twice is a no-op.
func (t *USBTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.link.Close()
}
