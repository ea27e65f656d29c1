package transport

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Register bridge command IDs.
const (
	CmdReadWords   = 0x01
	CmdWriteWords  = 0x02
	CmdStreamRead  = 0x03
	CmdStreamWrite = 0x04
	CmdStreamStart = 0x05
	CmdStreamStop  = 0x06
	CmdStreamConf  = 0x07

	CmdRun      = 0x10
	CmdAbort    = 0x11
	CmdReset    = 0x12
	CmdDownload = 0x13
	CmdState    = 0x14
)

// Status codes
const (
	StatusOK      = 0x00
	StatusTimeout = 0x01
	StatusError   = 0xFF
)

// HeaderSize is the length of the frame header: command, status and a
// little-endian 16-bit payload length.
const HeaderSize = 4

// infiniteTimeoutMs is the wire encoding of an infinite timeout.
const infiniteTimeoutMs = 0xFFFFFFFF

// Protocol handles encoding/decoding of register bridge frames.
//
// Every request and response is a frame: command ID, status (zero in
// requests), payload length and payload. Multi-byte fields are
// little-endian.
type Protocol struct {
	PacketSize int
}

// NewProtocol creates a new protocol handler
func NewProtocol(packetSize int) *Protocol {
	return &Protocol{PacketSize: packetSize}
}

// MaxPayload returns the largest payload a single frame can carry.
func (p *Protocol) MaxPayload() int {
	return 0xFFFF
}

func frame(cmd byte, payload []byte) []byte {
	out := make([]byte, HeaderSize+len(payload))
	out[0] = cmd
	binary.LittleEndian.PutUint16(out[2:], uint16(len(payload)))
	copy(out[HeaderSize:], payload)
	return out
}

// FrameLength returns the total length of the frame starting at buf, or
// false if the header is incomplete.
func FrameLength(buf []byte) (int, bool) {
	if len(buf) < HeaderSize {
		return 0, false
	}
	return HeaderSize + int(binary.LittleEndian.Uint16(buf[2:])), true
}

// decodeFrame validates a response header and returns its payload.
func decodeFrame(cmd byte, resp []byte, minPayload int) ([]byte, error) {
	if len(resp) < HeaderSize {
		return nil, fmt.Errorf("transport: response too short")
	}
	if resp[0] != cmd {
		return nil, fmt.Errorf("transport: invalid command ID: 0x%02X", resp[0])
	}
	switch resp[1] {
	case StatusOK:
	case StatusTimeout:
		return nil, ErrTimeout
	default:
		return nil, fmt.Errorf("transport: command 0x%02X failed with status 0x%02X", cmd, resp[1])
	}
	n := int(binary.LittleEndian.Uint16(resp[2:]))
	if len(resp) < HeaderSize+n {
		return nil, fmt.Errorf("transport: incomplete payload")
	}
	payload := resp[HeaderSize : HeaderSize+n]
	if len(payload) < minPayload {
		return nil, fmt.Errorf("transport: payload too short for command 0x%02X", cmd)
	}
	return payload, nil
}

func timeoutMillis(timeout time.Duration) uint32 {
	if timeout < 0 {
		return infiniteTimeoutMs
	}
	ms := timeout.Milliseconds()
	if ms >= infiniteTimeoutMs {
		return infiniteTimeoutMs - 1
	}
	return uint32(ms)
}

// EncodeReadWords builds a register read command
func (p *Protocol) EncodeReadWords(resource uint32, count int) []byte {
	payload := make([]byte, 6)
	binary.LittleEndian.PutUint32(payload, resource)
	binary.LittleEndian.PutUint16(payload[4:], uint16(count))
	return frame(CmdReadWords, payload)
}

// DecodeReadWords parses a register read response
func (p *Protocol) DecodeReadWords(resp []byte, count int) ([]uint32, error) {
	payload, err := decodeFrame(CmdReadWords, resp, 4*count)
	if err != nil {
		return nil, err
	}
	words := make([]uint32, count)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(payload[4*i:])
	}
	return words, nil
}

// EncodeWriteWords builds a register write command
func (p *Protocol) EncodeWriteWords(resource uint32, words []uint32) []byte {
	payload := make([]byte, 6+4*len(words))
	binary.LittleEndian.PutUint32(payload, resource)
	binary.LittleEndian.PutUint16(payload[4:], uint16(len(words)))
	for i, w := range words {
		binary.LittleEndian.PutUint32(payload[6+4*i:], w)
	}
	return frame(CmdWriteWords, payload)
}

// DecodeStatus parses a response that carries no payload
func (p *Protocol) DecodeStatus(cmd byte, resp []byte) error {
	_, err := decodeFrame(cmd, resp, 0)
	return err
}

// EncodeStreamRead builds a FIFO read command
func (p *Protocol) EncodeStreamRead(channel uint32, width, count int, timeout time.Duration) []byte {
	payload := make([]byte, 11)
	binary.LittleEndian.PutUint32(payload, channel)
	payload[4] = byte(width)
	binary.LittleEndian.PutUint16(payload[5:], uint16(count))
	binary.LittleEndian.PutUint32(payload[7:], timeoutMillis(timeout))
	return frame(CmdStreamRead, payload)
}

// DecodeStreamRead parses a FIFO read response: remaining count followed
// by count elements of width bits each.
func (p *Protocol) DecodeStreamRead(resp []byte, width, count int) ([]uint64, int, error) {
	size := width / 8
	payload, err := decodeFrame(CmdStreamRead, resp, 4+size*count)
	if err != nil {
		return nil, 0, err
	}
	remaining := int(binary.LittleEndian.Uint32(payload))
	elems := make([]uint64, count)
	for i := range elems {
		elems[i] = getElement(payload[4+size*i:], width)
	}
	return elems, remaining, nil
}

// EncodeStreamWrite builds a FIFO write command
func (p *Protocol) EncodeStreamWrite(channel uint32, width int, elems []uint64, timeout time.Duration) []byte {
	size := width / 8
	payload := make([]byte, 11+size*len(elems))
	binary.LittleEndian.PutUint32(payload, channel)
	payload[4] = byte(width)
	binary.LittleEndian.PutUint16(payload[5:], uint16(len(elems)))
	binary.LittleEndian.PutUint32(payload[7:], timeoutMillis(timeout))
	for i, e := range elems {
		putElement(payload[11+size*i:], width, e)
	}
	return frame(CmdStreamWrite, payload)
}

// DecodeStreamWrite parses a FIFO write response carrying the free space.
func (p *Protocol) DecodeStreamWrite(resp []byte) (int, error) {
	payload, err := decodeFrame(CmdStreamWrite, resp, 4)
	if err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint32(payload)), nil
}

// EncodeStreamControl builds a FIFO start or stop command
func (p *Protocol) EncodeStreamControl(cmd byte, channel uint32) []byte {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, channel)
	return frame(cmd, payload)
}

// EncodeConfigure builds a FIFO configure command
func (p *Protocol) EncodeConfigure(channel uint32, depth int) []byte {
	payload := make([]byte, 8)
	binary.LittleEndian.PutUint32(payload, channel)
	binary.LittleEndian.PutUint32(payload[4:], uint32(depth))
	return frame(CmdStreamConf, payload)
}

// DecodeConfigure parses the actual depth granted by the target.
func (p *Protocol) DecodeConfigure(resp []byte) (int, error) {
	payload, err := decodeFrame(CmdStreamConf, resp, 4)
	if err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint32(payload)), nil
}

// EncodeControl builds a VI lifecycle command (run, abort, reset, download,
// state).
func (p *Protocol) EncodeControl(cmd byte) []byte {
	return frame(cmd, nil)
}

// DecodeState parses a VI state response
func (p *Protocol) DecodeState(resp []byte) (VIState, error) {
	payload, err := decodeFrame(CmdState, resp, 1)
	if err != nil {
		return 0, err
	}
	return VIState(payload[0]), nil
}

func putElement(buf []byte, width int, v uint64) {
	switch width {
	case 8:
		buf[0] = byte(v)
	case 16:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case 32:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case 64:
		binary.LittleEndian.PutUint64(buf, v)
	}
}

func getElement(buf []byte, width int) uint64 {
	switch width {
	case 8:
		return uint64(buf[0])
	case 16:
		return uint64(binary.LittleEndian.Uint16(buf))
	case 32:
		return uint64(binary.LittleEndian.Uint32(buf))
	case 64:
		return binary.LittleEndian.Uint64(buf)
	}
	return 0
}
