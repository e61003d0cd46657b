package dbft

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/meridianchain/dbft/pkg/crypto/keys"
	"github.com/meridianchain/dbft/pkg/dbft/block"
)

// Header is the minimal blockchain header surface the Context needs to
// look up a parent block by hash (§6).
type Header interface {
	Hash() common.Hash
	Index() uint32
	Timestamp() uint64
}

// Snapshot is a scoped, read-consistent view of the ledger at the
// parent block (GLOSSARY "Snapshot"). It is acquired in Reset(0) and
// released by Dispose or the next Reset(0); no other part of the
// Context ever holds one past that window (§3 invariant 9, §5).
type Snapshot interface {
	// CurrentBlockHash is the hash of the parent block.
	CurrentBlockHash() common.Hash
	// Height is the parent block's index; the block under
	// construction is Height()+1.
	Height() uint32
	// GetHeader looks up a header by hash.
	GetHeader(h common.Hash) (Header, error)
	// GetValidators returns the validator set for the current height.
	GetValidators() []*keys.PublicKey
	// GetNextBlockValidators returns the validator set for Height()+1,
	// the set this Context's in-progress block will be signed by.
	GetNextBlockValidators() []*keys.PublicKey
	// ConsensusAddress derives the next-consensus address for a
	// validator set.
	ConsensusAddress(validators []*keys.PublicKey) (common.Address, error)
	// GetVerifiedTransactions returns verified, sorted transactions
	// from the memory pool, candidates for the next PrepareRequest.
	GetVerifiedTransactions() []block.Transaction
	// Close releases the snapshot. Safe to call more than once.
	Close()
}
