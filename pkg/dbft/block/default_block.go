package block

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/meridianchain/dbft/pkg/crypto/hash"
	"github.com/meridianchain/dbft/pkg/crypto/keys"
	"github.com/meridianchain/dbft/pkg/io"
)

// defaultBlock is the built-in Block implementation returned by
// NewBlock, which the Block Assembler always uses. Field layout matches
// the deterministic encoding in spec.md §4.6.
type defaultBlock struct {
	version       uint32
	index         uint32
	timestamp     uint64
	prevHash      common.Hash
	nextConsensus common.Address
	primaryIndex  uint32
	nonce         uint64
	merkleRoot    common.Hash
	transactions  []Transaction
	signature     []byte
}

// NewBlock returns the default Block implementation.
func NewBlock() Block { return new(defaultBlock) }

var _ Block = (*defaultBlock)(nil)

func (b *defaultBlock) Version() uint32                  { return b.version }
func (b *defaultBlock) SetVersion(v uint32)              { b.version = v }
func (b *defaultBlock) Index() uint32                    { return b.index }
func (b *defaultBlock) SetIndex(v uint32)                { b.index = v }
func (b *defaultBlock) Timestamp() uint64                { return b.timestamp }
func (b *defaultBlock) SetTimestamp(v uint64)            { b.timestamp = v }
func (b *defaultBlock) PrevHash() common.Hash            { return b.prevHash }
func (b *defaultBlock) SetPrevHash(v common.Hash)        { b.prevHash = v }
func (b *defaultBlock) NextConsensus() common.Address    { return b.nextConsensus }
func (b *defaultBlock) SetNextConsensus(v common.Address) { b.nextConsensus = v }
func (b *defaultBlock) PrimaryIndex() uint32             { return b.primaryIndex }
func (b *defaultBlock) SetPrimaryIndex(v uint32)         { b.primaryIndex = v }
func (b *defaultBlock) Nonce() uint64                    { return b.nonce }
func (b *defaultBlock) SetNonce(v uint64)                { b.nonce = v }
func (b *defaultBlock) MerkleRoot() common.Hash          { return b.merkleRoot }
func (b *defaultBlock) SetMerkleRoot(v common.Hash)      { b.merkleRoot = v }
func (b *defaultBlock) Transactions() []Transaction      { return b.transactions }
func (b *defaultBlock) SetTransactions(v []Transaction)  { b.transactions = v }
func (b *defaultBlock) Signature() []byte                { return b.signature }
func (b *defaultBlock) SetSignature(v []byte)            { b.signature = v }

// hashableFields returns the byte encoding of everything that
// contributes to the block hash and to the signature over it: version,
// index, timestamp, prev-hash, next-consensus, consensus data
// (primary index + nonce) and Merkle root. Transactions and the witness
// are excluded, matching the header/body split used to sign blocks.
func (b *defaultBlock) hashableFields() []byte {
	w := io.NewBufBinWriter()
	b.encodeHashable(w.BinWriter)
	return w.Bytes()
}

func (b *defaultBlock) encodeHashable(w *io.BinWriter) {
	w.WriteU32LE(b.version)
	w.WriteU32LE(b.index)
	w.WriteU64LE(b.timestamp)
	w.WriteFixedBytes(b.prevHash[:])
	w.WriteFixedBytes(b.nextConsensus[:])
	w.WriteU32LE(b.primaryIndex)
	w.WriteU64LE(b.nonce)
	w.WriteFixedBytes(b.merkleRoot[:])
}

// Hash implements Block.
func (b *defaultBlock) Hash() common.Hash {
	return hash.DoubleSha256(b.hashableFields())
}

// Verify implements Block.
func (b *defaultBlock) Verify(pub *keys.PublicKey, sig []byte) error {
	h := b.Hash()
	return pub.Verify(h[:], sig)
}

// EncodeBinary implements io.Serializable; used when a defaultBlock is
// persisted or relayed wholesale.
func (b *defaultBlock) EncodeBinary(w *io.BinWriter) {
	b.encodeHashable(w)
	w.WriteBytes(b.signature)
	w.WriteVarUint(uint64(len(b.transactions)))
	for _, tx := range b.transactions {
		h := tx.Hash()
		w.WriteFixedBytes(h[:])
	}
}

// DecodeBinary implements io.Serializable. Transactions are decoded as
// trimmed hash-only stand-ins since the core never needs their bodies
// after assembly.
func (b *defaultBlock) DecodeBinary(r *io.BinReader) {
	b.version = r.ReadU32LE()
	b.index = r.ReadU32LE()
	b.timestamp = r.ReadU64LE()
	r.ReadFixedBytes(b.prevHash[:])
	r.ReadFixedBytes(b.nextConsensus[:])
	b.primaryIndex = r.ReadU32LE()
	b.nonce = r.ReadU64LE()
	r.ReadFixedBytes(b.merkleRoot[:])
	b.signature = r.ReadBytes()
	n := r.ReadVarUint()
	if r.Err != nil {
		return
	}
	b.transactions = make([]Transaction, n)
	for i := range b.transactions {
		var h common.Hash
		r.ReadFixedBytes(h[:])
		b.transactions[i] = hashTx(h)
	}
}

// hashTx is a trimmed Transaction stand-in carrying only a hash.
type hashTx common.Hash

func (h hashTx) Hash() common.Hash { return common.Hash(h) }
