package dbft

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/meridianchain/dbft/pkg/dbft/block"
	"github.com/meridianchain/dbft/pkg/dbft/payload"
	io2 "github.com/meridianchain/dbft/pkg/io"
)

// MaxTransactionsPerBlock bounds the transaction count the codec will
// read off the wire (§4.6).
const MaxTransactionsPerBlock = 65536

// MaxValidators bounds each payload-slot array's count read off the
// wire (§4.6); validator sets never legitimately approach this.
const MaxValidators = 1024

// EncodeBinary implements io.Serializable: the deterministic binary
// layout of §4.6, in the exact field order peers expect.
func (c *Context) EncodeBinary(w *io2.BinWriter) {
	w.WriteU32LE(c.Version)
	w.WriteU32LE(c.BlockIndex)
	w.WriteU64LE(c.Timestamp)
	w.WriteFixedBytes(c.NextConsensus[:])
	w.WriteU32LE(c.PrimaryIndex)
	w.WriteU64LE(c.Nonce)
	w.WriteU8(c.ViewNumber)

	w.WriteU32LE(uint32(len(c.TransactionHashes)))
	for _, h := range c.TransactionHashes {
		w.WriteFixedBytes(h[:])
	}

	// Transactions is rebuilt as a hash-keyed mapping on decode (§4.6):
	// only the hash identifies each entry on the wire.
	w.WriteVarUint(uint64(len(c.TransactionHashes)))
	for _, h := range c.TransactionHashes {
		w.WriteFixedBytes(h[:])
	}

	encodePayloadSlots(w, c.PreparationPayloads)
	encodePayloadSlots(w, c.CommitPayloads)
	encodePayloadSlots(w, c.ChangeViewPayloads)
	encodePayloadSlots(w, c.LastChangeViewPayloads)
}

func encodePayloadSlots(w *io2.BinWriter, slots []payload.ConsensusPayload) {
	w.WriteVarUint(uint64(len(slots)))
	for _, p := range slots {
		if p == nil {
			w.WriteBool(false)
			continue
		}
		w.WriteBool(true)
		p.EncodeBinary(w)
	}
}

// DecodeBinary implements io.Serializable. Per §4.6, the Context must
// already be Reset(0) against the live ledger before decoding: the
// persisted record only overlays the fields it owns (timestamp,
// next-consensus, primary index, nonce, view, transaction set, payload
// slots) onto the freshly rebuilt block skeleton, and
// is rejected outright if it targets a different protocol version or
// height.
func (c *Context) DecodeBinary(r *io2.BinReader) {
	version := r.ReadU32LE()
	index := r.ReadU32LE()
	if r.Err != nil {
		return
	}
	if version != c.Version {
		r.Err = errCheckpointVersion
		return
	}
	if index != c.BlockIndex {
		r.Err = errCheckpointHeight
		return
	}

	c.Timestamp = r.ReadU64LE()
	var nc common.Address
	r.ReadFixedBytes(nc[:])
	c.NextConsensus = nc
	c.PrimaryIndex = r.ReadU32LE()
	c.Nonce = r.ReadU64LE()
	c.ViewNumber = r.ReadU8()

	hashCount := r.ReadU32LE()
	if r.Err != nil {
		return
	}
	if hashCount == 0 {
		c.TransactionHashes = nil
	} else {
		c.TransactionHashes = make([]common.Hash, hashCount)
		for i := range c.TransactionHashes {
			r.ReadFixedBytes(c.TransactionHashes[i][:])
		}
	}

	txCount := r.ReadVarUint()
	if r.Err != nil {
		return
	}
	if txCount > MaxTransactionsPerBlock {
		r.Err = errCheckpointFormat
		return
	}
	if txCount == 0 {
		c.Transactions = nil
	} else {
		c.Transactions = make(map[common.Hash]block.Transaction, txCount)
		for i := uint64(0); i < txCount && r.Err == nil; i++ {
			var h common.Hash
			r.ReadFixedBytes(h[:])
			c.Transactions[h] = txHash(h)
		}
	}

	c.PreparationPayloads = decodePayloadSlots(r)
	c.CommitPayloads = decodePayloadSlots(r)
	c.ChangeViewPayloads = decodePayloadSlots(r)
	c.LastChangeViewPayloads = decodePayloadSlots(r)
}

// txHash is a trimmed block.Transaction stand-in used when the codec
// only needs a transaction's identity back, mirroring block.hashTx.
type txHash common.Hash

func (h txHash) Hash() common.Hash { return common.Hash(h) }

func decodePayloadSlots(r *io2.BinReader) []payload.ConsensusPayload {
	n := r.ReadVarUint()
	if r.Err != nil {
		return nil
	}
	if n > MaxValidators {
		r.Err = errCheckpointFormat
		return nil
	}
	slots := make([]payload.ConsensusPayload, n)
	for i := uint64(0); i < n && r.Err == nil; i++ {
		if !r.ReadBool() {
			continue
		}
		p := payload.NewConsensusPayload()
		p.DecodeBinary(r)
		slots[i] = p
	}
	return slots
}
