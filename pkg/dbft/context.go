package dbft

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/meridianchain/dbft/pkg/crypto/keys"
	"github.com/meridianchain/dbft/pkg/dbft/block"
	"github.com/meridianchain/dbft/pkg/dbft/payload"
	"github.com/meridianchain/dbft/pkg/dbft/timer"
)

// Context is the per-height, per-view state machine a validator
// maintains while agreeing on the next block. It fuses the block under
// construction, the four message slot arrays, leader election and the
// scoped ledger snapshot into one object whose invariants must survive
// view changes, restarts and adversarial peers.
//
// Context is not internally synchronized (§5): it is owned by a single
// actor (DBFT) that feeds it one message at a time.
type Context struct {
	Config *Config

	// Version, PrevHash, BlockIndex, Timestamp, Nonce, NextConsensus and
	// MerkleRoot are the flattened fields of the block under
	// construction; PrimaryIndex is its consensus data.
	Version       uint32
	PrevHash      common.Hash
	BlockIndex    uint32
	Timestamp     uint64
	Nonce         uint64
	NextConsensus common.Address
	PrimaryIndex  uint32
	MerkleRoot    common.Hash

	ViewNumber byte
	Validators []*keys.PublicKey
	MyIndex    int

	TransactionHashes   []common.Hash
	Transactions        map[common.Hash]block.Transaction
	MissingTransactions []common.Hash

	PreparationPayloads    []payload.ConsensusPayload
	CommitPayloads         []payload.ConsensusPayload
	ChangeViewPayloads     []payload.ConsensusPayload
	LastChangeViewPayloads []payload.ConsensusPayload
	LastSeenMessage        []*timer.HV

	snapshot Snapshot
	priv     *keys.PrivateKey
	pub      *keys.PublicKey

	block  block.Block // assembled block, set once CreateBlock has run
	header block.Block // memoized EnsureHeader result

	lastBlockIndex uint32
	lastBlockTime  time.Time
}

// N is the number of validators at this height.
func (c *Context) N() int { return len(c.Validators) }

// F is the maximum number of Byzantine faults the validator set tolerates.
func (c *Context) F() int { return (c.N() - 1) / 3 }

// M is the honest quorum size, N-F (>= 2F+1).
func (c *Context) M() int { return c.N() - c.F() }

// GetPrimaryIndex returns the primary validator's index for view v, a
// pure function of the block index, the view and the validator count
// (§4.2): every honest node reaches the same primary under the same
// (index, view) without any coordination.
func (c *Context) GetPrimaryIndex(v byte) uint32 {
	n := int64(c.N())
	p := (int64(c.BlockIndex) - int64(v)) % n
	if p < 0 {
		p += n
	}
	return uint32(p)
}

// GetValidators resolves the validator set for height: a query for
// BlockIndex+1 returns the snapshot's next-block validators, and any
// other height returns Validators.
func (c *Context) GetValidators(height uint32) []*keys.PublicKey {
	if c.snapshot != nil && height == c.BlockIndex+1 {
		return c.snapshot.GetNextBlockValidators()
	}
	return c.Validators
}

// GetConsensusAddress derives the next-consensus address for validators.
func (c *Context) GetConsensusAddress(validators ...*keys.PublicKey) common.Address {
	addr, err := keys.ConsensusAddress(validators)
	if err != nil {
		return common.Address{}
	}
	return addr
}

// IsPrimary reports whether this node leads the current view.
func (c *Context) IsPrimary() bool {
	return c.MyIndex >= 0 && uint32(c.MyIndex) == c.PrimaryIndex
}

// IsBackup reports whether this node is a validator but not the primary.
func (c *Context) IsBackup() bool {
	return c.MyIndex >= 0 && !c.IsPrimary()
}

// WatchOnly reports whether this node is not a validator this height.
func (c *Context) WatchOnly() bool {
	return c.MyIndex < 0
}

// CountCommitted returns the number of non-nil commit slots, regardless
// of which view they were cast in.
func (c *Context) CountCommitted() int {
	n := 0
	for _, m := range c.CommitPayloads {
		if m != nil {
			n++
		}
	}
	return n
}

// CountFailed returns the number of validators whose last-seen height
// trails the block under construction by more than one, a proxy for
// "absent or behind".
func (c *Context) CountFailed() int {
	n := 0
	threshold := int64(c.BlockIndex) - 1
	for _, hv := range c.LastSeenMessage {
		if hv == nil || int64(hv.Height) < threshold {
			n++
		}
	}
	return n
}

// RequestSentOrReceived reports whether the primary's PrepareRequest
// for this view has been seen (slot indexed by PrimaryIndex).
func (c *Context) RequestSentOrReceived() bool {
	return c.PreparationPayloads[c.PrimaryIndex] != nil
}

// ResponseSent reports whether this node has filled its own
// preparation slot (PrepareRequest if primary, PrepareResponse if backup).
func (c *Context) ResponseSent() bool {
	return !c.WatchOnly() && c.PreparationPayloads[c.MyIndex] != nil
}

// CommitSent reports whether this node has cast a Commit at this
// height; a view change does not clear the commit slot.
func (c *Context) CommitSent() bool {
	return !c.WatchOnly() && c.CommitPayloads[c.MyIndex] != nil
}

// BlockSent reports whether CreateBlock has run since the last reset,
// including the speculative call made at PrepareRequest time, so the
// assembled block carries its transaction list.
func (c *Context) BlockSent() bool {
	return c.block != nil
}

// ViewChanging reports whether this node has requested a view beyond
// the current one and is awaiting its peers to agree.
func (c *Context) ViewChanging() bool {
	if c.WatchOnly() {
		return false
	}
	m := c.ChangeViewPayloads[c.MyIndex]
	if m == nil {
		return false
	}
	return m.GetChangeView().NewViewNumber() > c.ViewNumber
}

// MoreThanFNodesCommittedOrLost reports whether enough of the network is
// either already committed or effectively absent that refusing payloads
// while changing view would risk stalling or splitting it (§4.1).
func (c *Context) MoreThanFNodesCommittedOrLost() bool {
	return c.CountCommitted()+c.CountFailed() > c.F()
}

// NotAcceptingPayloadsDueToViewChanging reports whether incoming
// payloads should be ignored because this node wants a new view and the
// network isn't yet in the regime where it must stop refusing them.
func (c *Context) NotAcceptingPayloadsDueToViewChanging() bool {
	return c.ViewChanging() && !c.MoreThanFNodesCommittedOrLost()
}

// hasAllTransactions reports whether every hash in TransactionHashes has
// a matching entry in Transactions.
func (c *Context) hasAllTransactions() bool {
	if c.TransactionHashes == nil {
		return false
	}
	for _, h := range c.TransactionHashes {
		if _, ok := c.Transactions[h]; !ok {
			return false
		}
	}
	return true
}
