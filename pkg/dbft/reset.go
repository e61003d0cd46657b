package dbft

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/meridianchain/dbft/pkg/dbft/payload"
	"github.com/meridianchain/dbft/pkg/dbft/timer"
)

// reset re-initializes the Context for view v, in one of two modes
// (§4.5). v == 0 starts a new height: the snapshot is re-acquired, the
// block skeleton and validator set are rebuilt from the ledger, and
// my_index/key_pair are rediscovered. v > 0 is a view bump within the
// same height: it preserves cross-view ChangeView evidence and leaves
// the snapshot, validators and my_index untouched.
func (c *Context) reset(v byte) {
	if v == 0 {
		c.resetHeight()
	} else {
		c.preserveChangeViewEvidence(v)
	}

	c.ViewNumber = v
	c.PrimaryIndex = c.GetPrimaryIndex(v)

	c.MerkleRoot = common.Hash{}
	c.Timestamp = 0
	c.Transactions = nil
	c.TransactionHashes = nil
	c.MissingTransactions = nil
	c.PreparationPayloads = make([]payload.ConsensusPayload, c.N())
	c.block = nil
	c.header = nil

	if c.MyIndex >= 0 {
		c.stampLastSeen(c.MyIndex, c.BlockIndex)
	}
}

// resetHeight implements Reset(0): release the prior snapshot, acquire
// a fresh one, and rebuild everything derived from the ledger.
func (c *Context) resetHeight() {
	if c.snapshot != nil {
		c.snapshot.Close()
		c.snapshot = nil
	}

	snap, err := c.Config.GetSnapshot()
	if err != nil {
		panic("dbft: reset(0): " + err.Error())
	}
	c.snapshot = snap

	c.Version = 0
	c.PrevHash = snap.CurrentBlockHash()
	c.BlockIndex = snap.Height() + 1
	c.Nonce = 0

	c.Validators = snap.GetNextBlockValidators()
	c.NextConsensus = c.GetConsensusAddress(c.Validators...)

	c.MyIndex = -1
	c.priv = nil
	c.pub = nil
	c.resolveKeyPair()

	c.CommitPayloads = make([]payload.ConsensusPayload, c.N())
	c.ChangeViewPayloads = make([]payload.ConsensusPayload, c.N())
	c.LastChangeViewPayloads = make([]payload.ConsensusPayload, c.N())

	if c.LastSeenMessage == nil {
		c.LastSeenMessage = make([]*timer.HV, c.N())
		for i := range c.LastSeenMessage {
			c.LastSeenMessage[i] = nil
		}
	}
}

// resolveKeyPair scans Validators for the first entry this node can
// sign with, fixing my_index and the signing key pair.
func (c *Context) resolveKeyPair() {
	if c.Config.GetKeyPair != nil {
		if idx, priv, pub := c.Config.GetKeyPair(c.Validators); idx >= 0 {
			c.MyIndex = idx
			c.priv = priv
			c.pub = pub
			return
		}
	}
	if c.Config.Wallet == nil {
		return
	}
	for i, pub := range c.Validators {
		if acc, ok := c.Config.Wallet.GetAccount(pub); ok {
			c.MyIndex = i
			c.pub = pub
			if acc.HasKey() {
				if priv, err := acc.PrivateKey(); err == nil {
					c.priv = priv
				}
			}
			return
		}
	}
}

// preserveChangeViewEvidence implements the view-bump half of Reset:
// any ChangeView already aimed at v or beyond survives into
// LastChangeViewPayloads as recovery evidence; everything else is
// dropped (§4.5, §8 property 7).
func (c *Context) preserveChangeViewEvidence(v byte) {
	for i, cv := range c.ChangeViewPayloads {
		if cv != nil && cv.GetChangeView().NewViewNumber() >= v {
			c.LastChangeViewPayloads[i] = cv
		} else {
			c.LastChangeViewPayloads[i] = nil
		}
	}
}

// stampLastSeen records that this node has itself seen block index h,
// keeping last_seen_message[my_index] current (§3 invariant 8).
func (c *Context) stampLastSeen(i int, h uint32) {
	c.LastSeenMessage[i] = &timer.HV{Height: h, View: c.ViewNumber}
}

// Dispose releases the ledger snapshot. Safe to call more than once or
// when no snapshot is held.
func (c *Context) Dispose() {
	if c.snapshot != nil {
		c.snapshot.Close()
		c.snapshot = nil
	}
}
