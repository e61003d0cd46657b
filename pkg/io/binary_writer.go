package io

import (
	"bytes"
	"encoding/binary"
	"io"
)

// BinWriter is a convenient wrapper around an io.Writer that writes
// little-endian fixed-width values and var_int-prefixed variable-length
// ones, tracking the first error so call sites don't have to.
type BinWriter struct {
	w   io.Writer
	Err error
}

// NewBinWriterFromIO creates a BinWriter writing to w.
func NewBinWriterFromIO(w io.Writer) *BinWriter {
	return &BinWriter{w: w}
}

// BufBinWriter is a BinWriter writing into an in-memory buffer, with a
// convenience Bytes accessor.
type BufBinWriter struct {
	*BinWriter
	buf *bytes.Buffer
}

// NewBufBinWriter creates a new buffer-backed BinWriter.
func NewBufBinWriter() *BufBinWriter {
	b := new(bytes.Buffer)
	return &BufBinWriter{
		BinWriter: NewBinWriterFromIO(b),
		buf:       b,
	}
}

// Bytes returns the accumulated buffer; it is nil (not empty) if any
// write previously failed.
func (w *BufBinWriter) Bytes() []byte {
	if w.Err != nil {
		return nil
	}
	return w.buf.Bytes()
}

// Reset empties the buffer and clears any error, allowing the writer to
// be reused.
func (w *BufBinWriter) Reset() {
	w.Err = nil
	w.buf.Reset()
}

func (w *BinWriter) writeBytes(b []byte) {
	if w.Err != nil {
		return
	}
	_, w.Err = w.w.Write(b)
}

// WriteU8 writes a single byte.
func (w *BinWriter) WriteU8(v uint8) {
	w.writeBytes([]byte{v})
}

// WriteBool writes a boolean as a single byte (0/1).
func (w *BinWriter) WriteBool(v bool) {
	if v {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
}

// WriteU16LE writes v as little-endian uint16.
func (w *BinWriter) WriteU16LE(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	w.writeBytes(buf[:])
}

// WriteU32LE writes v as little-endian uint32.
func (w *BinWriter) WriteU32LE(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.writeBytes(buf[:])
}

// WriteU64LE writes v as little-endian uint64.
func (w *BinWriter) WriteU64LE(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	w.writeBytes(buf[:])
}

// WriteVarUint writes v using the standard blockchain var_int encoding:
// a length-class prefix byte followed by the narrowest fixed-width
// encoding that fits v.
func (w *BinWriter) WriteVarUint(v uint64) {
	if w.Err != nil {
		return
	}
	switch {
	case v < 0xfd:
		w.WriteU8(byte(v))
	case v <= 0xffff:
		w.WriteU8(0xfd)
		w.WriteU16LE(uint16(v))
	case v <= 0xffffffff:
		w.WriteU8(0xfe)
		w.WriteU32LE(uint32(v))
	default:
		w.WriteU8(0xff)
		w.WriteU64LE(v)
	}
}

// WriteBytes writes a var_int-prefixed byte slice.
func (w *BinWriter) WriteBytes(b []byte) {
	w.WriteVarUint(uint64(len(b)))
	w.writeBytes(b)
}

// WriteFixedBytes writes b verbatim with no length prefix. Used for
// fixed-size fields such as hashes and addresses.
func (w *BinWriter) WriteFixedBytes(b []byte) {
	w.writeBytes(b)
}

// WriteArray writes a var_int count followed by each element's
// EncodeBinary. arr must be a slice of Serializable, *T where T is
// Serializable, or a slice whose elements individually implement
// Serializable via value receiver.
func (w *BinWriter) WriteArray(arr interface{}) {
	switch elems := arr.(type) {
	case []Serializable:
		w.WriteVarUint(uint64(len(elems)))
		for _, e := range elems {
			if w.Err != nil {
				return
			}
			e.EncodeBinary(w)
		}
	default:
		w.encodeArrayReflect(arr)
	}
}
