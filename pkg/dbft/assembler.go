package dbft

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/meridianchain/dbft/pkg/crypto/hash"
	"github.com/meridianchain/dbft/pkg/dbft/block"
)

// EnsureHeader lazily computes the block's Merkle root from the
// consensus data and transaction hashes once they're known, memoizing
// the result so repeated calls are idempotent (§4.4, §8 property 6). It
// returns nil if TransactionHashes hasn't been set yet (no
// PrepareRequest seen).
func (c *Context) EnsureHeader() block.Block {
	if c.TransactionHashes == nil {
		return nil
	}
	if c.header != nil {
		return c.header
	}

	leaves := make([]common.Hash, 0, len(c.TransactionHashes)+1)
	leaves = append(leaves, hash.CalcConsensusDataHash(c.PrimaryIndex, c.Nonce))
	leaves = append(leaves, c.TransactionHashes...)

	h := block.NewBlock()
	h.SetVersion(c.Version)
	h.SetIndex(c.BlockIndex)
	h.SetTimestamp(c.Timestamp)
	h.SetPrevHash(c.PrevHash)
	h.SetNextConsensus(c.NextConsensus)
	h.SetPrimaryIndex(c.PrimaryIndex)
	h.SetNonce(c.Nonce)
	h.SetMerkleRoot(hash.CalcMerkleRoot(leaves))

	c.header = h
	c.MerkleRoot = h.MerkleRoot()
	return h
}

// CreateBlock assembles the witnessed block: an M-of-N multisignature
// gathered from CommitPayloads whose message view matches the current
// one (as many as are available, capped at M), plus the transactions in
// TransactionHashes order (§4.4). The orchestration service calls this
// twice: speculatively at PrepareRequest time to verify the candidate
// block's structure (typically zero commits yet), and again once
// count_committed reaches M to produce the block it finalizes — only
// the latter's witness is a valid quorum proof. TransactionHashes being
// unset is a programmer error: the caller must not invoke this before a
// PrepareRequest has been processed.
func (c *Context) CreateBlock() block.Block {
	header := c.EnsureHeader()
	if header == nil {
		panic("dbft: CreateBlock called before transaction_hashes is known")
	}

	sigs := make([][]byte, 0, c.M())
	for i := range c.Validators {
		m := c.CommitPayloads[i]
		if m == nil || m.ViewNumber() != c.ViewNumber {
			continue
		}
		sigs = append(sigs, m.GetCommit().Signature())
		if len(sigs) == c.M() {
			break
		}
	}

	witness := make([]byte, 0, 2+len(sigs)*72)
	witness = append(witness, byte(len(sigs)))
	for _, s := range sigs {
		witness = append(witness, byte(len(s)))
		witness = append(witness, s...)
	}

	txs := make([]block.Transaction, len(c.TransactionHashes))
	for i, h := range c.TransactionHashes {
		txs[i] = c.Transactions[h]
	}

	b := block.NewBlock()
	b.SetVersion(header.Version())
	b.SetIndex(header.Index())
	b.SetTimestamp(header.Timestamp())
	b.SetPrevHash(header.PrevHash())
	b.SetNextConsensus(header.NextConsensus())
	b.SetPrimaryIndex(header.PrimaryIndex())
	b.SetNonce(header.Nonce())
	b.SetMerkleRoot(header.MerkleRoot())
	b.SetTransactions(txs)
	b.SetSignature(witness)

	c.block = b
	return b
}
