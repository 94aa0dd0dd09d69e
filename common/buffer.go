package common

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const MaximumStringLength = 0xFFFF

var (
	ErrBufferUnderflow = errors.New("buffer underflow")
	ErrBufferOverflow  = errors.New("buffer overflow")
	ErrStringTooLong   = errors.New("string too long")
)

// Buffer is a growable byte buffer with a single cursor shared by reads and
// writes. Reads never pass the logical length.
type Buffer struct {
	data  []byte
	pos   int
	limit int
}

func NewBuffer(limit int) *Buffer {
	return &Buffer{limit: limit}
}

func NewBufferFrom(b []byte) *Buffer {
	return &Buffer{data: b, limit: len(b)}
}

func (b *Buffer) Len() int {
	return len(b.data)
}

func (b *Buffer) Position() int {
	return b.pos
}

func (b *Buffer) Remaining() int {
	return len(b.data) - b.pos
}

func (b *Buffer) Bytes() []byte {
	return b.data
}

func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.pos = 0
}

// Resize sets the logical length to exactly n bytes, reusing the backing
// array when possible, and rewinds the cursor.
func (b *Buffer) Resize(n int) ([]byte, error) {
	if n < 0 || (b.limit > 0 && n > b.limit) {
		return nil, fmt.Errorf("resize %d over %d: %w", n, b.limit, ErrBufferOverflow)
	}
	if cap(b.data) < n {
		b.data = make([]byte, n)
	}
	b.data = b.data[:n]
	b.pos = 0
	return b.data, nil
}

func (b *Buffer) grow(n int) error {
	if b.limit > 0 && len(b.data)+n > b.limit {
		return fmt.Errorf("write %d at %d over %d: %w", n, len(b.data), b.limit, ErrBufferOverflow)
	}
	return nil
}

func (b *Buffer) Write(p []byte) error {
	if err := b.grow(len(p)); err != nil {
		return err
	}
	b.data = append(b.data, p...)
	return nil
}

func (b *Buffer) WriteUint8(v uint8) error {
	return b.Write([]byte{v})
}

func (b *Buffer) WriteUint16(v uint16) error {
	var s [2]byte
	binary.LittleEndian.PutUint16(s[:], v)
	return b.Write(s[:])
}

func (b *Buffer) WriteUint32(v uint32) error {
	var s [4]byte
	binary.LittleEndian.PutUint32(s[:], v)
	return b.Write(s[:])
}

func (b *Buffer) WriteString(s string) error {
	return b.WriteBytes([]byte(s))
}

// WriteBytes writes a u16 length prefixed blob.
func (b *Buffer) WriteBytes(p []byte) error {
	if len(p) > MaximumStringLength {
		return fmt.Errorf("string length %d: %w", len(p), ErrStringTooLong)
	}
	if err := b.grow(2 + len(p)); err != nil {
		return err
	}
	err := b.WriteUint16(uint16(len(p)))
	if err != nil {
		return err
	}
	return b.Write(p)
}

// ReadExact returns the next n bytes, failing closed when fewer remain.
// The returned slice aliases the buffer.
func (b *Buffer) ReadExact(n int) ([]byte, error) {
	if n < 0 || b.Remaining() < n {
		return nil, fmt.Errorf("read %d at %d of %d: %w", n, b.pos, len(b.data), ErrBufferUnderflow)
	}
	p := b.data[b.pos : b.pos+n]
	b.pos += n
	return p, nil
}

func (b *Buffer) ReadUint8() (uint8, error) {
	p, err := b.ReadExact(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (b *Buffer) ReadUint16() (uint16, error) {
	p, err := b.ReadExact(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(p), nil
}

func (b *Buffer) ReadUint32() (uint32, error) {
	p, err := b.ReadExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

func (b *Buffer) ReadBytes() ([]byte, error) {
	l, err := b.ReadUint16()
	if err != nil {
		return nil, err
	}
	p, err := b.ReadExact(int(l))
	if err != nil {
		return nil, err
	}
	return append([]byte{}, p...), nil
}

func (b *Buffer) ReadString() (string, error) {
	p, err := b.ReadBytes()
	return string(p), err
}
