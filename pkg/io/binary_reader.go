package io

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// ErrInvalidVarUint is returned when a var_int prefix byte doesn't match
// the length of the value that follows, i.e. a non-canonical encoding.
var ErrInvalidVarUint = errors.New("io: invalid var_int encoding")

// BinReader mirrors BinWriter on the decode side: little-endian fixed
// width reads and var_int-prefixed variable length ones, with a sticky
// first error.
type BinReader struct {
	r   io.Reader
	Err error
}

// NewBinReaderFromIO creates a BinReader reading from r.
func NewBinReaderFromIO(r io.Reader) *BinReader {
	return &BinReader{r: r}
}

// NewBinReaderFromBuf creates a BinReader reading from an in-memory
// buffer.
func NewBinReaderFromBuf(b []byte) *BinReader {
	return NewBinReaderFromIO(bytes.NewReader(b))
}

func (r *BinReader) readBytes(buf []byte) {
	if r.Err != nil {
		return
	}
	_, r.Err = io.ReadFull(r.r, buf)
}

// ReadU8 reads a single byte.
func (r *BinReader) ReadU8() uint8 {
	var buf [1]byte
	r.readBytes(buf[:])
	return buf[0]
}

// ReadBool reads a single byte as a boolean.
func (r *BinReader) ReadBool() bool {
	return r.ReadU8() != 0
}

// ReadU16LE reads a little-endian uint16.
func (r *BinReader) ReadU16LE() uint16 {
	var buf [2]byte
	r.readBytes(buf[:])
	return binary.LittleEndian.Uint16(buf[:])
}

// ReadU32LE reads a little-endian uint32.
func (r *BinReader) ReadU32LE() uint32 {
	var buf [4]byte
	r.readBytes(buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

// ReadU64LE reads a little-endian uint64.
func (r *BinReader) ReadU64LE() uint64 {
	var buf [8]byte
	r.readBytes(buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}

// ReadVarUint reads the standard var_int encoding written by WriteVarUint.
func (r *BinReader) ReadVarUint() uint64 {
	if r.Err != nil {
		return 0
	}
	b := r.ReadU8()
	var v, min uint64
	switch b {
	case 0xfd:
		v, min = uint64(r.ReadU16LE()), 0xfd
	case 0xfe:
		v, min = uint64(r.ReadU32LE()), 0x10000
	case 0xff:
		v, min = r.ReadU64LE(), 0x100000000
	default:
		return uint64(b)
	}
	if r.Err == nil && v < min {
		r.Err = ErrInvalidVarUint
		return 0
	}
	return v
}

// ReadBytes reads a var_int-prefixed byte slice.
func (r *BinReader) ReadBytes() []byte {
	n := r.ReadVarUint()
	if r.Err != nil {
		return nil
	}
	if n > MaxArraySize {
		r.Err = errors.New("io: byte slice length exceeds limit")
		return nil
	}
	buf := make([]byte, n)
	r.readBytes(buf)
	return buf
}

// ReadFixedBytes reads exactly len(b) bytes into b.
func (r *BinReader) ReadFixedBytes(b []byte) {
	r.readBytes(b)
}

// ReadArray reads a var_int count followed by that many elements into
// *arr, a pointer to a slice of Serializable-compatible values.
// newElem, if non-nil, is used to allocate each element (needed when the
// slice element type is an interface, as with ConsensusPayload).
func (r *BinReader) ReadArray(arr interface{}, newElem ...func() Serializable) {
	var f func() Serializable
	if len(newElem) > 0 {
		f = newElem[0]
	}
	r.decodeArrayReflect(arr, f)
}
