package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// encoder builds a payload buffer using the fixed-width, null-terminated
// string convention described in spec.md §4.1.
type encoder struct {
	buf bytes.Buffer
}

func newEncoder() *encoder { return &encoder{} }

func (e *encoder) bytes() []byte { return e.buf.Bytes() }

// putString writes s as a fixed-width, null-terminated buffer of exactly
// width bytes. It truncates to width-1 bytes if s is too long, guaranteeing
// the trailing NUL terminator.
func (e *encoder) putString(s string, width int) {
	b := make([]byte, width)
	n := len(s)
	if n > width-1 {
		n = width - 1
	}
	copy(b, s[:n])
	e.buf.Write(b)
}

func (e *encoder) putU8(v uint8)   { e.buf.WriteByte(v) }
func (e *encoder) putBool(v bool) {
	if v {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
}
func (e *encoder) putU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}
func (e *encoder) putU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}
func (e *encoder) putI64(v int64) { e.putU64(uint64(v)) }

// putBytes writes a u32 length prefix followed by raw bytes, used for
// variable-length content that has no fixed width (file chunks, EXEC bodies).
func (e *encoder) putBytes(b []byte) {
	e.putU32(uint32(len(b)))
	e.buf.Write(b)
}

type decoder struct {
	b   []byte
	off int
}

func newDecoder(b []byte) *decoder { return &decoder{b: b} }

func (d *decoder) err(need int) error {
	return fmt.Errorf("wire: short payload: need %d bytes at offset %d, have %d", need, d.off, len(d.b))
}

func (d *decoder) getString(width int) (string, error) {
	if d.off+width > len(d.b) {
		return "", d.err(width)
	}
	raw := d.b[d.off : d.off+width]
	d.off += width
	n := bytes.IndexByte(raw, 0)
	if n < 0 {
		n = len(raw)
	}
	return string(raw[:n]), nil
}

func (d *decoder) getU8() (uint8, error) {
	if d.off+1 > len(d.b) {
		return 0, d.err(1)
	}
	v := d.b[d.off]
	d.off++
	return v, nil
}

func (d *decoder) getBool() (bool, error) {
	v, err := d.getU8()
	return v != 0, err
}

func (d *decoder) getU32() (uint32, error) {
	if d.off+4 > len(d.b) {
		return 0, d.err(4)
	}
	v := binary.LittleEndian.Uint32(d.b[d.off : d.off+4])
	d.off += 4
	return v, nil
}

func (d *decoder) getU64() (uint64, error) {
	if d.off+8 > len(d.b) {
		return 0, d.err(8)
	}
	v := binary.LittleEndian.Uint64(d.b[d.off : d.off+8])
	d.off += 8
	return v, nil
}

func (d *decoder) getI64() (int64, error) {
	v, err := d.getU64()
	return int64(v), err
}

func (d *decoder) getBytes() ([]byte, error) {
	n, err := d.getU32()
	if err != nil {
		return nil, err
	}
	if n > MaxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}
	if d.off+int(n) > len(d.b) {
		return nil, d.err(int(n))
	}
	out := make([]byte, n)
	copy(out, d.b[d.off:d.off+int(n)])
	d.off += int(n)
	return out, nil
}
