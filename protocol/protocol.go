// Package protocol implements the frame format that carries binder transactions over TCP.
//
// Each transaction or reply is one frame: a fixed 22-byte header followed by the
// parcel bytes. The receiver reads the header first to learn the body length,
// then reads exactly that many bytes.
//
// Frame format:
//
//	0      3  4  5  6      10     14       18       22
//	┌──────┬──┬──┬──┬──────┬──────┬────────┬────────┬───────────────┐
//	│magic │v │mt│fl│ seq  │ code │ status │bodyLen │    body ...   │
//	│ fgb  │01│  │  │ u32  │ u32  │  i32   │  u32   │ parcel bytes  │
//	└──────┴──┴──┴──┴──────┴──────┴────────┴────────┴───────────────┘
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic bytes "fgb" (flowgraph binder).
const (
	MagicNumber byte = 0x66 // 'f'
	MagicByte2  byte = 0x67 // 'g'
	MagicByte3  byte = 0x62 // 'b'
	Version     byte = 0x01
	HeaderSize  int  = 22 // 3 (magic) + 1 (version) + 1 (msgType) + 1 (flags) + 4 (seq) + 4 (code) + 4 (status) + 4 (bodyLen)

	// MaxBodyLen bounds the allocation made for a single frame body.
	MaxBodyLen uint32 = 16 << 20
)

// MsgType distinguishes transaction, reply, and heartbeat frames.
type MsgType byte

const (
	MsgTypeTransaction MsgType = 0 // Client → Server
	MsgTypeReply       MsgType = 1 // Server → Client
	MsgTypeHeartbeat   MsgType = 2 // KeepAlive probe (no body)
)

// Header represents the fixed frame header.
type Header struct {
	MsgType MsgType
	Flags   byte   // reserved, zero
	Seq     uint32 // matches a reply to its transaction
	Code    uint32 // transaction code, echoed in the reply
	Status  Status // transport status, meaningful on replies only
	BodyLen uint32
}

// Encode writes a complete frame (header + body) to w.
// Callers sharing w between goroutines must serialize calls.
func Encode(w io.Writer, h *Header, body []byte) error {
	if uint32(len(body)) != h.BodyLen {
		return fmt.Errorf("body length %d does not match header %d", len(body), h.BodyLen)
	}
	if h.BodyLen > MaxBodyLen {
		return fmt.Errorf("body too large: %d bytes", h.BodyLen)
	}

	buf := make([]byte, HeaderSize, HeaderSize+len(body))
	copy(buf[0:3], []byte{MagicNumber, MagicByte2, MagicByte3})
	buf[3] = Version
	buf[4] = byte(h.MsgType)
	buf[5] = h.Flags
	binary.BigEndian.PutUint32(buf[6:10], h.Seq)
	binary.BigEndian.PutUint32(buf[10:14], h.Code)
	binary.BigEndian.PutUint32(buf[14:18], uint32(h.Status))
	binary.BigEndian.PutUint32(buf[18:22], h.BodyLen)

	// one write per frame
	_, err := w.Write(append(buf, body...))
	return err
}

// Decode reads a complete frame (header + body) from r.
// It validates the magic number, version, message type, and body length.
func Decode(r io.Reader) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	if headerBuf[0] != MagicNumber || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, nil, fmt.Errorf("invalid magic number: %x", headerBuf[0:3])
	}
	if headerBuf[3] != Version {
		return nil, nil, fmt.Errorf("unsupported version: %d", headerBuf[3])
	}

	msgType := MsgType(headerBuf[4])
	if msgType != MsgTypeTransaction && msgType != MsgTypeReply && msgType != MsgTypeHeartbeat {
		return nil, nil, fmt.Errorf("unsupported message type: %d", msgType)
	}

	h := &Header{
		MsgType: msgType,
		Flags:   headerBuf[5],
		Seq:     binary.BigEndian.Uint32(headerBuf[6:10]),
		Code:    binary.BigEndian.Uint32(headerBuf[10:14]),
		Status:  Status(int32(binary.BigEndian.Uint32(headerBuf[14:18]))),
		BodyLen: binary.BigEndian.Uint32(headerBuf[18:22]),
	}
	if h.BodyLen > MaxBodyLen {
		return nil, nil, fmt.Errorf("body too large: %d bytes", h.BodyLen)
	}

	body := make([]byte, h.BodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, err
	}
	return h, body, nil
}

// Reserved transaction codes. Application codes live in
// [FirstCallTransaction, LastCallTransaction].
const (
	FirstCallTransaction uint32 = 0x00000001
	LastCallTransaction  uint32 = 0x00ffffff

	// InterfaceTransaction asks any endpoint for its interface descriptor.
	InterfaceTransaction uint32 = '_'<<24 | 'N'<<16 | 'T'<<8 | 'F'
)
