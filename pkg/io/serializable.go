package io

// Serializable defines the binary encoding/decoding interface. Every wire
// type used by the consensus core (payloads, blocks, headers) implements
// it so that arrays of them can be pushed through BinWriter/BinReader
// uniformly.
type Serializable interface {
	EncodeBinary(w *BinWriter)
	DecodeBinary(r *BinReader)
}

// ToByteArray serializes s into a new byte slice.
func ToByteArray(s Serializable) ([]byte, error) {
	w := NewBufBinWriter()
	s.EncodeBinary(w.BinWriter)
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Bytes(), nil
}

// FromByteArray deserializes s from b.
func FromByteArray(s Serializable, b []byte) error {
	r := NewBinReaderFromBuf(b)
	s.DecodeBinary(r)
	return r.Err
}

// GetVarSize returns the number of bytes a dry-run encode of s would take,
// or 0 if the encode fails.
func GetVarSize(s Serializable) int {
	w := NewBufBinWriter()
	s.EncodeBinary(w.BinWriter)
	if w.Err != nil {
		return 0
	}
	return len(w.Bytes())
}
