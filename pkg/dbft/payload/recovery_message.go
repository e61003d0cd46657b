package payload

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/meridianchain/dbft/pkg/crypto/keys"
	"github.com/meridianchain/dbft/pkg/io"
)

type (
	// RecoveryMessage represents dBFT Recovery message: a bundle a peer
	// can use to reconstruct this node's consensus view (§4.3).
	RecoveryMessage interface {
		// AddPayload adds a payload from this epoch to be recovered.
		AddPayload(p ConsensusPayload)
		// GetPrepareRequest returns the PrepareRequest to be processed,
		// or nil if this node only carries a preparation hash.
		GetPrepareRequest(p ConsensusPayload, validators []*keys.PublicKey, primary uint16) ConsensusPayload
		// GetPrepareResponses returns PrepareResponse payloads in any order.
		GetPrepareResponses(p ConsensusPayload, validators []*keys.PublicKey) []ConsensusPayload
		// GetChangeViews returns ChangeView payloads in any order.
		GetChangeViews(p ConsensusPayload, validators []*keys.PublicKey) []ConsensusPayload
		// GetCommits returns Commit payloads in any order.
		GetCommits(p ConsensusPayload, validators []*keys.PublicKey) []ConsensusPayload

		// PreparationHash returns the hash of the PrepareRequest payload
		// for this epoch, useful when only PrepareResponses were seen.
		PreparationHash() *common.Hash
		SetPreparationHash(h *common.Hash)
	}

	preparationCompact struct {
		validatorIndex uint16
	}

	commitCompact struct {
		viewNumber     byte
		validatorIndex uint16
		signature      []byte
	}

	changeViewCompact struct {
		validatorIndex     uint16
		originalViewNumber byte
		timestamp          uint64
	}

	recoveryMessage struct {
		preparationHash     *common.Hash
		preparationPayloads []preparationCompact
		commitPayloads      []commitCompact
		changeViewPayloads  []changeViewCompact
		prepareRequest      PrepareRequest
	}
)

var _ RecoveryMessage = (*recoveryMessage)(nil)

// NewRecoveryMessage creates a blank RecoveryMessage.
func NewRecoveryMessage() RecoveryMessage { return new(recoveryMessage) }

// PreparationHash implements RecoveryMessage.
func (m *recoveryMessage) PreparationHash() *common.Hash { return m.preparationHash }

// SetPreparationHash implements RecoveryMessage.
func (m *recoveryMessage) SetPreparationHash(h *common.Hash) { m.preparationHash = h }

// AddPayload implements RecoveryMessage. Note the asymmetry with
// GetPrepareRequest/GetChangeViews: ChangeViews are only evidence, so
// MakeRecoveryMessage caps how many it carries, while every
// preparation slot is part of the quorum being reconstructed and must
// all be kept (§4.3, §9).
func (m *recoveryMessage) AddPayload(p ConsensusPayload) {
	switch p.Type() {
	case PrepareRequestType:
		m.prepareRequest = p.GetPrepareRequest()
		prepHash := p.Hash()
		m.preparationHash = &prepHash
	case PrepareResponseType:
		m.preparationPayloads = append(m.preparationPayloads, preparationCompact{
			validatorIndex: p.ValidatorIndex(),
		})
	case ChangeViewType:
		m.changeViewPayloads = append(m.changeViewPayloads, changeViewCompact{
			validatorIndex:     p.ValidatorIndex(),
			originalViewNumber: p.GetChangeView().NewViewNumber() - 1,
			timestamp:          p.GetChangeView().Timestamp(),
		})
	case CommitType:
		cc := commitCompact{
			viewNumber:     p.ViewNumber(),
			validatorIndex: p.ValidatorIndex(),
			signature:      append([]byte(nil), p.GetCommit().Signature()...),
		}
		m.commitPayloads = append(m.commitPayloads, cc)
	}
}

func fromPayload(t MessageType, recovery ConsensusPayload, p interface{}) *Payload {
	return &Payload{
		message: message{
			cmType:     t,
			viewNumber: recovery.ViewNumber(),
			payload:    p,
		},
		version:  recovery.Version(),
		prevHash: recovery.PrevHash(),
		height:   recovery.Height(),
	}
}

// GetPrepareRequest implements RecoveryMessage. ind is the primary's
// validator index for the recovered view: only the primary ever sends
// a PrepareRequest, so the reconstructed copy is always attributed to
// it rather than to whichever peer relayed the recovery message.
func (m *recoveryMessage) GetPrepareRequest(p ConsensusPayload, _ []*keys.PublicKey, ind uint16) ConsensusPayload {
	if m.prepareRequest == nil {
		return nil
	}

	req := fromPayload(PrepareRequestType, p, &prepareRequest{
		timestamp:         m.prepareRequest.Timestamp(),
		nonce:             m.prepareRequest.Nonce(),
		transactionHashes: m.prepareRequest.TransactionHashes(),
		nextConsensus:     m.prepareRequest.NextConsensus(),
	})
	req.SetValidatorIndex(ind)

	return req
}

// GetPrepareResponses implements RecoveryMessage.
func (m *recoveryMessage) GetPrepareResponses(p ConsensusPayload, _ []*keys.PublicKey) []ConsensusPayload {
	if m.preparationHash == nil {
		return nil
	}

	payloads := make([]ConsensusPayload, len(m.preparationPayloads))

	for i, resp := range m.preparationPayloads {
		payloads[i] = fromPayload(PrepareResponseType, p, &prepareResponse{
			preparationHash: *m.preparationHash,
		})
		payloads[i].SetValidatorIndex(resp.validatorIndex)
	}

	return payloads
}

// GetChangeViews implements RecoveryMessage.
func (m *recoveryMessage) GetChangeViews(p ConsensusPayload, _ []*keys.PublicKey) []ConsensusPayload {
	payloads := make([]ConsensusPayload, len(m.changeViewPayloads))

	for i, cv := range m.changeViewPayloads {
		payloads[i] = fromPayload(ChangeViewType, p, &changeView{
			newViewNumber: cv.originalViewNumber + 1,
			timestamp:     cv.timestamp,
		})
		payloads[i].SetValidatorIndex(cv.validatorIndex)
	}

	return payloads
}

// GetCommits implements RecoveryMessage.
func (m *recoveryMessage) GetCommits(p ConsensusPayload, _ []*keys.PublicKey) []ConsensusPayload {
	payloads := make([]ConsensusPayload, len(m.commitPayloads))

	for i, c := range m.commitPayloads {
		sig := append([]byte(nil), c.signature...)
		payloads[i] = fromPayload(CommitType, p, &commit{signature: sig})
		payloads[i].SetValidatorIndex(c.validatorIndex)
		payloads[i].SetViewNumber(c.viewNumber)
	}

	return payloads
}

func (c preparationCompact) EncodeBinary(w *io.BinWriter) {
	w.WriteU16LE(c.validatorIndex)
}

func (c *preparationCompact) DecodeBinary(r *io.BinReader) {
	c.validatorIndex = r.ReadU16LE()
}

func (c commitCompact) EncodeBinary(w *io.BinWriter) {
	w.WriteU8(c.viewNumber)
	w.WriteU16LE(c.validatorIndex)
	w.WriteBytes(c.signature)
}

func (c *commitCompact) DecodeBinary(r *io.BinReader) {
	c.viewNumber = r.ReadU8()
	c.validatorIndex = r.ReadU16LE()
	c.signature = r.ReadBytes()
}

func (c changeViewCompact) EncodeBinary(w *io.BinWriter) {
	w.WriteU16LE(c.validatorIndex)
	w.WriteU8(c.originalViewNumber)
	w.WriteU64LE(c.timestamp)
}

func (c *changeViewCompact) DecodeBinary(r *io.BinReader) {
	c.validatorIndex = r.ReadU16LE()
	c.originalViewNumber = r.ReadU8()
	c.timestamp = r.ReadU64LE()
}

// EncodeBinary implements io.Serializable.
func (m *recoveryMessage) EncodeBinary(w *io.BinWriter) {
	w.WriteArray(m.changeViewPayloads)

	hasReq := m.prepareRequest != nil
	w.WriteBool(hasReq)

	if hasReq {
		m.prepareRequest.(io.Serializable).EncodeBinary(w)
	} else if m.preparationHash == nil {
		w.WriteBool(false)
	} else {
		w.WriteBool(true)
		w.WriteFixedBytes(m.preparationHash[:])
	}

	w.WriteArray(m.preparationPayloads)
	w.WriteArray(m.commitPayloads)
}

// DecodeBinary implements io.Serializable.
func (m *recoveryMessage) DecodeBinary(r *io.BinReader) {
	r.ReadArray(&m.changeViewPayloads)

	if hasReq := r.ReadBool(); hasReq {
		m.prepareRequest = new(prepareRequest)
		m.prepareRequest.(io.Serializable).DecodeBinary(r)
	} else if hasHash := r.ReadBool(); hasHash {
		var h common.Hash
		r.ReadFixedBytes(h[:])
		m.preparationHash = &h
	} else {
		m.preparationHash = nil
	}

	if r.Err == nil {
		r.ReadArray(&m.preparationPayloads)
		r.ReadArray(&m.commitPayloads)
	}
}
