package block

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/meridianchain/dbft/pkg/crypto/keys"
	"github.com/meridianchain/dbft/pkg/io"
)

// Block is the finalized-or-finalizing result the Block Assembler
// produces: everything needed to hash, sign and persist a proposed
// block, without any execution semantics (§1 out of scope).
//
// A Block doubles as its own header until transactions are attached:
// EnsureHeader fills Version/Index/Timestamp/PrevHash/NextConsensus/
// PrimaryIndex/Nonce/MerkleRoot, and CreateBlock later calls
// SetTransactions and SetSignature.
type Block interface {
	io.Serializable

	Version() uint32
	SetVersion(uint32)

	Index() uint32
	SetIndex(uint32)

	Timestamp() uint64
	SetTimestamp(uint64)

	PrevHash() common.Hash
	SetPrevHash(common.Hash)

	NextConsensus() common.Address
	SetNextConsensus(common.Address)

	PrimaryIndex() uint32
	SetPrimaryIndex(uint32)

	Nonce() uint64
	SetNonce(uint64)

	MerkleRoot() common.Hash
	SetMerkleRoot(common.Hash)

	Transactions() []Transaction
	SetTransactions([]Transaction)

	// Signature returns the assembled witness (a signature count byte
	// followed by each length-prefixed commit signature), nil until the
	// Block Assembler runs.
	Signature() []byte
	SetSignature([]byte)

	// Hash returns the double-SHA256 of the header's hashable fields;
	// it is independent of Transactions/Signature so signing the header
	// and hashing the full block agree.
	Hash() common.Hash

	// Verify checks sig as pub's individual witness over Hash(), the
	// per-validator signature a Commit carries (§4.3) before it is
	// folded into the block's multisig witness.
	Verify(pub *keys.PublicKey, sig []byte) error
}
