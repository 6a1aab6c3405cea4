package codec

import (
	"encoding/binary"
	"fmt"
)

// Read returns data[offset:offset+length] or ErrOutOfRange.
func Read(data []byte, offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > len(data) {
		return nil, fmt.Errorf("%w: tried to read %d bytes at offset %d (len=%d)", ErrOutOfRange, length, offset, len(data))
	}
	return data[offset : offset+length], nil
}

// ReadInt reads a big-endian two's-complement integer of 1 to 8 bytes.
//
// Widths up to 6 bytes are sign-extended from their own top bit, widths 7
// and 8 are taken as a full signed 64-bit value. For width 8 both rules give
// the same bits, which keeps device timestamps and 8-byte IO values intact.
func ReadInt(data []byte, offset, length int) (int64, error) {
	if length < 1 || length > 8 {
		return 0, fmt.Errorf("%w: unsupported integer width %d", ErrOutOfRange, length)
	}
	b, err := Read(data, offset, length)
	if err != nil {
		return 0, err
	}
	var buf [8]byte
	copy(buf[8-length:], b)
	v := int64(binary.BigEndian.Uint64(buf[:]))
	if length <= 6 {
		shift := uint(64 - 8*length)
		return v << shift >> shift, nil
	}
	if length == 7 && b[0]&0x80 != 0 {
		v |= -1 << 56
	}
	return v, nil
}

// Cursor is a bounds-checked sequential reader. Its position only moves
// through its own methods, and only when a read succeeds.
type Cursor struct {
	buf []byte
	pos int
}

func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Pos is the number of bytes consumed so far.
func (c *Cursor) Pos() int { return c.pos }

func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

func (c *Cursor) Bytes(n int) ([]byte, error) {
	b, err := Read(c.buf, c.pos, n)
	if err != nil {
		return nil, err
	}
	c.pos += n
	return b, nil
}

func (c *Cursor) Skip(n int) error {
	_, err := c.Bytes(n)
	return err
}

// Int reads a signed big-endian integer of n bytes (see ReadInt).
func (c *Cursor) Int(n int) (int64, error) {
	v, err := ReadInt(c.buf, c.pos, n)
	if err != nil {
		return 0, err
	}
	c.pos += n
	return v, nil
}

func (c *Cursor) Uint8() (uint8, error) {
	b, err := c.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) Uint16() (uint16, error) {
	b, err := c.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (c *Cursor) Uint32() (uint32, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}
