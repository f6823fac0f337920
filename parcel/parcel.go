// Package parcel implements the binary container carried by every binder transaction.
//
// A Parcel is a flat byte buffer with a read cursor. Writers append values, readers
// consume them in the same order. Every value occupies a multiple of 4 bytes.
//
// Layout of the types used on the wire:
//
//	int32     ┌────────────┐
//	          │ 4 bytes LE │
//	          └────────────┘
//	String16  ┌────────────┬──────────────────────┬──────┬─────────┐
//	          │ len int32  │ len × uint16 LE      │ 0x00 │ pad → 4 │
//	          └────────────┴──────────────────────┴──────┴─────────┘
//	          null String16 is len = -1 with nothing after it.
package parcel

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// ErrShortBuffer is returned when a read needs more bytes than remain in the parcel.
var ErrShortBuffer = errors.New("parcel: not enough data")

// Parcel is an in-memory transaction buffer.
type Parcel struct {
	data []byte
	pos  int // read cursor
}

// New returns an empty parcel ready for writing.
func New() *Parcel {
	return &Parcel{}
}

// FromBytes wraps received bytes for reading. The slice is not copied.
func FromBytes(data []byte) *Parcel {
	return &Parcel{data: data}
}

// Bytes returns everything written so far.
func (p *Parcel) Bytes() []byte {
	return p.data
}

// Len is the total size in bytes.
func (p *Parcel) Len() int {
	return len(p.data)
}

// Position is the read cursor.
func (p *Parcel) Position() int {
	return p.pos
}

// SetPosition moves the read cursor, e.g. to read a reply twice.
func (p *Parcel) SetPosition(pos int) error {
	if pos < 0 || pos > len(p.data) {
		return fmt.Errorf("parcel: position %d out of range [0,%d]", pos, len(p.data))
	}
	p.pos = pos
	return nil
}

// Remaining is the number of unread bytes.
func (p *Parcel) Remaining() int {
	return len(p.data) - p.pos
}

func pad4(n int) int {
	return (n + 3) &^ 3
}

// WriteInt32 appends a little-endian int32.
func (p *Parcel) WriteInt32(v int32) {
	p.data = binary.LittleEndian.AppendUint32(p.data, uint32(v))
}

// WriteString16 appends a length-prefixed UTF-16 string with its terminator.
func (p *Parcel) WriteString16(s String16) {
	p.WriteInt32(int32(len(s)))
	start := len(p.data)
	for _, u := range s {
		p.data = binary.LittleEndian.AppendUint16(p.data, u)
	}
	p.data = binary.LittleEndian.AppendUint16(p.data, 0)
	for i := len(p.data) - start; i < pad4((len(s)+1)*2); i++ {
		p.data = append(p.data, 0)
	}
}

// WriteNullString16 appends a null string marker.
func (p *Parcel) WriteNullString16() {
	p.WriteInt32(-1)
}

// WriteString converts s to UTF-16 and appends it.
func (p *Parcel) WriteString(s string) {
	p.WriteString16(NewString16(s))
}

// WriteInterfaceToken appends the interface name that must lead every application request.
func (p *Parcel) WriteInterfaceToken(name String16) {
	p.WriteString16(name)
}

// ReadInt32 consumes a little-endian int32.
func (p *Parcel) ReadInt32() (int32, error) {
	if p.Remaining() < 4 {
		return 0, errors.Wrapf(ErrShortBuffer, "int32 at offset %d", p.pos)
	}
	v := int32(binary.LittleEndian.Uint32(p.data[p.pos:]))
	p.pos += 4
	return v, nil
}

// ReadString16 consumes a length-prefixed UTF-16 string.
// A null string yields a nil String16 and no error.
func (p *Parcel) ReadString16() (String16, error) {
	start := p.pos
	n, err := p.ReadInt32()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	if n < 0 {
		p.pos = start
		return nil, fmt.Errorf("parcel: invalid string16 length %d at offset %d", n, start)
	}
	size := pad4((int(n) + 1) * 2)
	if p.Remaining() < size {
		p.pos = start
		return nil, errors.Wrapf(ErrShortBuffer, "string16 of %d units at offset %d", n, start)
	}
	s := make(String16, n)
	for i := range s {
		s[i] = binary.LittleEndian.Uint16(p.data[p.pos+2*i:])
	}
	p.pos += size
	return s, nil
}

// ReadInterfaceToken consumes the leading interface name of a request.
func (p *Parcel) ReadInterfaceToken() (String16, error) {
	return p.ReadString16()
}

// WriteNoException marks a successful reply.
func (p *Parcel) WriteNoException() {
	p.WriteInt32(ExceptionNone)
}

// WriteException marks a failed reply. The message follows the code.
func (p *Parcel) WriteException(code int32, msg string) {
	p.WriteInt32(code)
	p.WriteString(msg)
}

// ReadExceptionCode consumes the reply header. It must be called before any payload read.
func (p *Parcel) ReadExceptionCode() (int32, error) {
	code, err := p.ReadInt32()
	if err != nil {
		return 0, errors.Wrap(err, "read exception code")
	}
	return code, nil
}
