package dbft

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/meridianchain/dbft/pkg/crypto/keys"
	"github.com/meridianchain/dbft/pkg/dbft/block"
	"github.com/meridianchain/dbft/pkg/dbft/payload"
)

// sign stamps cp's witness with this node's signing key over its
// hashable fields. Signing failure (no key available, e.g. watch-only
// or a wallet that rejected the request) leaves cp unsigned rather than
// raising an error: the network layer must not broadcast a witness-less
// payload, but building one is not itself a fault (§7, §9).
func (c *Context) sign(cp payload.ConsensusPayload) {
	priv := c.signingKey()
	if priv == nil {
		return
	}
	data, err := cp.EncodeHashableFields()
	if err != nil {
		return
	}
	sig, err := priv.Sign(data)
	if err != nil {
		return
	}
	cp.SetSignature(sig)
}

// signingKey resolves the private key this node signs with, preferring
// a directly-injected key pair and falling back to the wallet
// collaborator, mirroring how Reset locates my_index.
func (c *Context) signingKey() *keys.PrivateKey {
	if c.priv != nil {
		return c.priv
	}
	if c.Config.Wallet == nil || c.MyIndex < 0 {
		return nil
	}
	acc, ok := c.Config.Wallet.GetAccount(c.Validators[c.MyIndex])
	if !ok || !acc.HasKey() {
		return nil
	}
	priv, err := acc.PrivateKey()
	if err != nil {
		return nil
	}
	return priv
}

// newPayload builds a blank envelope stamped with this Context's epoch.
func (c *Context) newPayload(t payload.MessageType, p interface{}) payload.ConsensusPayload {
	return c.Config.NewConsensusPayload(c, t, p)
}

// MakeChangeView constructs a ChangeView requesting the next view,
// stores it in this node's slot and returns it (§4.3).
func (c *Context) MakeChangeView(reason payload.ChangeViewReason) payload.ConsensusPayload {
	cv := payload.NewChangeView()
	cv.SetNewViewNumber(c.ViewNumber + 1)
	cv.SetTimestamp(c.Config.Now())
	cv.SetReason(reason)

	cp := c.newPayload(payload.ChangeViewType, cv)
	c.sign(cp)

	if c.MyIndex >= 0 {
		c.ChangeViewPayloads[c.MyIndex] = cp
	}
	return cp
}

// MakePrepareRequest is primary-only: it proposes the transaction set
// for this height and stamps the block's timestamp and nonce (§4.3).
// Calling it off-primary is a programmer error; the orchestration
// service is responsible for only calling it when IsPrimary.
func (c *Context) MakePrepareRequest() payload.ConsensusPayload {
	c.Nonce = keys.RandomNonce8()

	txs := c.gatherTransactions()
	c.TransactionHashes = make([]common.Hash, 0, len(txs))
	c.Transactions = make(map[common.Hash]block.Transaction, len(txs))
	for _, tx := range txs {
		h := tx.Hash()
		c.TransactionHashes = append(c.TransactionHashes, h)
		c.Transactions[h] = tx
	}

	c.Timestamp = c.nextTimestamp()

	pr := payload.NewPrepareRequest()
	pr.SetTimestamp(c.Timestamp)
	pr.SetNonce(c.Nonce)
	pr.SetTransactionHashes(c.TransactionHashes)
	pr.SetNextConsensus(c.NextConsensus)

	cp := c.newPayload(payload.PrepareRequestType, pr)
	c.sign(cp)

	if c.MyIndex >= 0 {
		c.PreparationPayloads[c.MyIndex] = cp
	}
	return cp
}

// nextTimestamp enforces strict monotonicity against the parent header:
// block.timestamp = max(now_ms, prev_header.timestamp + increment).
func (c *Context) nextTimestamp() uint64 {
	now := c.Config.Now()
	if c.snapshot == nil {
		return now
	}
	prev, err := c.snapshot.GetHeader(c.PrevHash)
	if err != nil {
		return now
	}
	min := prev.Timestamp() + c.Config.TimestampIncrement
	if now > min {
		return now
	}
	return min
}

// gatherTransactions pulls verified transactions from the memory pool
// and runs them through the registered policy plugins, each reducing
// the set it's handed (§4.3, §6).
func (c *Context) gatherTransactions() []block.Transaction {
	var txs []block.Transaction
	if c.snapshot != nil {
		txs = c.snapshot.GetVerifiedTransactions()
	}
	return applyPolicies(c.Config.Policies, txs)
}

// MakePrepareResponse endorses the current primary's PrepareRequest by
// hash (§4.3). Calling it off-backup is a programmer error.
func (c *Context) MakePrepareResponse() payload.ConsensusPayload {
	req := c.PreparationPayloads[c.PrimaryIndex]

	pr := payload.NewPrepareResponse()
	if req != nil {
		pr.SetPreparationHash(req.Hash())
	}

	cp := c.newPayload(payload.PrepareResponseType, pr)
	c.sign(cp)

	if c.MyIndex >= 0 {
		c.PreparationPayloads[c.MyIndex] = cp
	}
	return cp
}

// MakeCommit is idempotent: repeated calls return the already-stored
// commit rather than re-signing (§4.3, §8 property 5).
func (c *Context) MakeCommit() payload.ConsensusPayload {
	if c.MyIndex >= 0 {
		if existing := c.CommitPayloads[c.MyIndex]; existing != nil {
			return existing
		}
	}

	cm := payload.NewCommit()
	if header := c.EnsureHeader(); header != nil {
		priv := c.signingKey()
		if priv != nil {
			h := header.Hash()
			if sig, err := priv.Sign(h[:]); err == nil {
				cm.SetSignature(sig)
			}
		}
	}

	cp := c.newPayload(payload.CommitType, cm)
	c.sign(cp)

	if c.MyIndex >= 0 {
		c.CommitPayloads[c.MyIndex] = cp
	}
	return cp
}

// MakeRecoveryRequest solicits recovery from peers (§4.3).
func (c *Context) MakeRecoveryRequest() payload.ConsensusPayload {
	rr := payload.NewRecoveryRequest()
	rr.SetTimestamp(c.Config.Now())

	cp := c.newPayload(payload.RecoveryRequestType, rr)
	c.sign(cp)
	return cp
}

// MakeRecoveryMessage bundles enough of this node's consensus view for
// a peer to catch up (§4.3): at most M ChangeView compacts (evidence
// only), the full PrepareRequest or a plurality-elected preparation
// hash, every preparation slot, and commits only if this node has
// itself committed.
func (c *Context) MakeRecoveryMessage() payload.ConsensusPayload {
	rm := payload.NewRecoveryMessage()

	cvCount := 0
	for _, cv := range c.LastChangeViewPayloads {
		if cv == nil {
			continue
		}
		if cvCount >= c.M() {
			break
		}
		rm.AddPayload(cv)
		cvCount++
	}

	if req := c.PreparationPayloads[c.PrimaryIndex]; req != nil && req.Type() == payload.PrepareRequestType {
		rm.AddPayload(req)
	} else if h := c.electPreparationHash(); h != nil {
		rm.SetPreparationHash(h)
	}

	for _, p := range c.PreparationPayloads {
		if p != nil && p.Type() == payload.PrepareResponseType {
			rm.AddPayload(p)
		}
	}

	if c.CommitSent() {
		for _, p := range c.CommitPayloads {
			if p != nil {
				rm.AddPayload(p)
			}
		}
	}

	cp := c.newPayload(payload.RecoveryMessageType, rm)
	c.sign(cp)
	return cp
}

// electPreparationHash groups current PrepareResponses by the
// preparation hash they endorse and returns the most-endorsed one, used
// when this node doesn't hold the PrepareRequest's transaction list
// itself.
func (c *Context) electPreparationHash() *common.Hash {
	counts := make(map[common.Hash]int)
	var order []common.Hash

	for _, p := range c.PreparationPayloads {
		if p == nil || p.Type() != payload.PrepareResponseType {
			continue
		}
		h := p.GetPrepareResponse().PreparationHash()
		if counts[h] == 0 {
			order = append(order, h)
		}
		counts[h]++
	}
	if len(order) == 0 {
		return nil
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	return &order[0]
}
