package payload

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/meridianchain/dbft/pkg/io"
)

type (
	// ChangeView represents dBFT ChangeView message.
	ChangeView interface {
		// NewViewNumber returns the proposed view number.
		NewViewNumber() byte
		SetNewViewNumber(byte)
		// Timestamp is the millisecond timestamp of this request.
		Timestamp() uint64
		SetTimestamp(uint64)
		// Reason is an optional diagnostic reason code.
		Reason() ChangeViewReason
		SetReason(ChangeViewReason)
	}

	// PrepareRequest represents dBFT PrepareRequest message.
	PrepareRequest interface {
		Timestamp() uint64
		SetTimestamp(uint64)
		Nonce() uint64
		SetNonce(uint64)
		TransactionHashes() []common.Hash
		SetTransactionHashes([]common.Hash)
		NextConsensus() common.Address
		SetNextConsensus(common.Address)
	}

	// PrepareResponse represents dBFT PrepareResponse message.
	PrepareResponse interface {
		PreparationHash() common.Hash
		SetPreparationHash(common.Hash)
	}

	// Commit represents dBFT Commit message.
	Commit interface {
		Signature() []byte
		SetSignature([]byte)
	}

	// RecoveryRequest represents dBFT RecoveryRequest message.
	RecoveryRequest interface {
		Timestamp() uint64
		SetTimestamp(uint64)
	}
)

type changeView struct {
	newViewNumber byte
	timestamp     uint64
	reason        ChangeViewReason
}

// NewChangeView creates a blank ChangeView message.
func NewChangeView() ChangeView { return new(changeView) }

func (c *changeView) NewViewNumber() byte             { return c.newViewNumber }
func (c *changeView) SetNewViewNumber(v byte)         { c.newViewNumber = v }
func (c *changeView) Timestamp() uint64               { return c.timestamp }
func (c *changeView) SetTimestamp(v uint64)           { c.timestamp = v }
func (c *changeView) Reason() ChangeViewReason        { return c.reason }
func (c *changeView) SetReason(v ChangeViewReason)    { c.reason = v }

func (c *changeView) EncodeBinary(w *io.BinWriter) {
	w.WriteU8(c.newViewNumber)
	w.WriteU64LE(c.timestamp)
	w.WriteU8(byte(c.reason))
}

func (c *changeView) DecodeBinary(r *io.BinReader) {
	c.newViewNumber = r.ReadU8()
	c.timestamp = r.ReadU64LE()
	c.reason = ChangeViewReason(r.ReadU8())
}

type prepareRequest struct {
	timestamp         uint64
	nonce             uint64
	transactionHashes []common.Hash
	nextConsensus     common.Address
}

// NewPrepareRequest creates a blank PrepareRequest message.
func NewPrepareRequest() PrepareRequest { return new(prepareRequest) }

func (p *prepareRequest) Timestamp() uint64                      { return p.timestamp }
func (p *prepareRequest) SetTimestamp(v uint64)                  { p.timestamp = v }
func (p *prepareRequest) Nonce() uint64                          { return p.nonce }
func (p *prepareRequest) SetNonce(v uint64)                      { p.nonce = v }
func (p *prepareRequest) TransactionHashes() []common.Hash       { return p.transactionHashes }
func (p *prepareRequest) SetTransactionHashes(v []common.Hash)   { p.transactionHashes = v }
func (p *prepareRequest) NextConsensus() common.Address          { return p.nextConsensus }
func (p *prepareRequest) SetNextConsensus(v common.Address)      { p.nextConsensus = v }

func (p *prepareRequest) EncodeBinary(w *io.BinWriter) {
	w.WriteU64LE(p.timestamp)
	w.WriteU64LE(p.nonce)
	w.WriteFixedBytes(p.nextConsensus[:])
	w.WriteVarUint(uint64(len(p.transactionHashes)))
	for _, h := range p.transactionHashes {
		w.WriteFixedBytes(h[:])
	}
}

func (p *prepareRequest) DecodeBinary(r *io.BinReader) {
	p.timestamp = r.ReadU64LE()
	p.nonce = r.ReadU64LE()
	r.ReadFixedBytes(p.nextConsensus[:])
	n := r.ReadVarUint()
	if r.Err != nil {
		return
	}
	p.transactionHashes = make([]common.Hash, n)
	for i := range p.transactionHashes {
		r.ReadFixedBytes(p.transactionHashes[i][:])
	}
}

type prepareResponse struct {
	preparationHash common.Hash
}

// NewPrepareResponse creates a blank PrepareResponse message.
func NewPrepareResponse() PrepareResponse { return new(prepareResponse) }

func (p *prepareResponse) PreparationHash() common.Hash         { return p.preparationHash }
func (p *prepareResponse) SetPreparationHash(v common.Hash)     { p.preparationHash = v }

func (p *prepareResponse) EncodeBinary(w *io.BinWriter) {
	w.WriteFixedBytes(p.preparationHash[:])
}

func (p *prepareResponse) DecodeBinary(r *io.BinReader) {
	r.ReadFixedBytes(p.preparationHash[:])
}

type commit struct {
	signature []byte
}

// NewCommit creates a blank Commit message.
func NewCommit() Commit { return new(commit) }

func (c *commit) Signature() []byte { return c.signature }
func (c *commit) SetSignature(v []byte) {
	c.signature = append([]byte(nil), v...)
}

func (c *commit) EncodeBinary(w *io.BinWriter) {
	w.WriteBytes(c.signature)
}

func (c *commit) DecodeBinary(r *io.BinReader) {
	c.signature = r.ReadBytes()
}

type recoveryRequest struct {
	timestamp uint64
}

// NewRecoveryRequest creates a blank RecoveryRequest message.
func NewRecoveryRequest() RecoveryRequest { return new(recoveryRequest) }

func (r *recoveryRequest) Timestamp() uint64     { return r.timestamp }
func (r *recoveryRequest) SetTimestamp(v uint64) { r.timestamp = v }

func (r *recoveryRequest) EncodeBinary(w *io.BinWriter) {
	w.WriteU64LE(r.timestamp)
}

func (r *recoveryRequest) DecodeBinary(br *io.BinReader) {
	r.timestamp = br.ReadU64LE()
}
