package payload

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/meridianchain/dbft/pkg/crypto/hash"
	"github.com/meridianchain/dbft/pkg/io"
)

// ConsensusPayload is the common envelope every dBFT message travels
// in: version, prev-hash, block index and validator index identify the
// epoch and sender; the embedded message carries the type-specific
// content; the witness is the sender's signature over the hashable
// fields, attached by the wallet during message construction (§4.3).
type ConsensusPayload interface {
	io.Serializable
	hash.Hashable

	Version() uint32
	SetVersion(uint32)

	PrevHash() common.Hash
	SetPrevHash(common.Hash)

	Height() uint32
	SetHeight(uint32)

	ValidatorIndex() uint16
	SetValidatorIndex(uint16)

	ViewNumber() byte
	SetViewNumber(byte)

	Type() MessageType
	SetType(MessageType)

	Payload() interface{}
	SetPayload(interface{})

	GetChangeView() ChangeView
	GetPrepareRequest() PrepareRequest
	GetPrepareResponse() PrepareResponse
	GetCommit() Commit
	GetRecoveryRequest() RecoveryRequest
	GetRecoveryMessage() RecoveryMessage

	// Signature returns the witness bytes over EncodeHashableFields, or
	// nil if the payload hasn't been signed (e.g. signing failed, §7).
	Signature() []byte
	SetSignature([]byte)

	// Hash returns the double-SHA256 digest of the hashable fields.
	Hash() common.Hash
}

// message is the type-tagged envelope content shared by Payload and by
// the compacted forms a RecoveryMessage reconstructs.
type message struct {
	cmType     MessageType
	viewNumber byte
	payload    interface{}
}

// Payload is the default ConsensusPayload implementation.
type Payload struct {
	message

	version        uint32
	prevHash       common.Hash
	height         uint32
	validatorIndex uint16
	signature      []byte

	cachedHash *common.Hash
}

var _ ConsensusPayload = (*Payload)(nil)

// NewConsensusPayload creates a blank ConsensusPayload.
func NewConsensusPayload() ConsensusPayload { return new(Payload) }

func (p *Payload) Version() uint32           { return p.version }
func (p *Payload) SetVersion(v uint32)       { p.version = v; p.cachedHash = nil }
func (p *Payload) PrevHash() common.Hash     { return p.prevHash }
func (p *Payload) SetPrevHash(v common.Hash) { p.prevHash = v; p.cachedHash = nil }
func (p *Payload) Height() uint32            { return p.height }
func (p *Payload) SetHeight(v uint32)        { p.height = v; p.cachedHash = nil }
func (p *Payload) ValidatorIndex() uint16    { return p.validatorIndex }
func (p *Payload) SetValidatorIndex(v uint16) {
	p.validatorIndex = v
	p.cachedHash = nil
}
func (p *Payload) ViewNumber() byte        { return p.viewNumber }
func (p *Payload) SetViewNumber(v byte)    { p.viewNumber = v; p.cachedHash = nil }
func (p *Payload) Type() MessageType       { return p.cmType }
func (p *Payload) SetType(v MessageType)   { p.cmType = v; p.cachedHash = nil }
func (p *Payload) Payload() interface{}    { return p.payload }
func (p *Payload) SetPayload(v interface{}) {
	p.payload = v
	p.cachedHash = nil
}

func (p *Payload) Signature() []byte      { return p.signature }
func (p *Payload) SetSignature(v []byte)  { p.signature = v }

func (p *Payload) GetChangeView() ChangeView {
	c, _ := p.payload.(ChangeView)
	return c
}

func (p *Payload) GetPrepareRequest() PrepareRequest {
	r, _ := p.payload.(PrepareRequest)
	return r
}

func (p *Payload) GetPrepareResponse() PrepareResponse {
	r, _ := p.payload.(PrepareResponse)
	return r
}

func (p *Payload) GetCommit() Commit {
	c, _ := p.payload.(Commit)
	return c
}

func (p *Payload) GetRecoveryRequest() RecoveryRequest {
	r, _ := p.payload.(RecoveryRequest)
	return r
}

func (p *Payload) GetRecoveryMessage() RecoveryMessage {
	r, _ := p.payload.(RecoveryMessage)
	return r
}

// EncodeHashableFields implements hash.Hashable; it excludes the
// witness signature itself, which is computed over this encoding.
func (p *Payload) EncodeHashableFields() ([]byte, error) {
	w := io.NewBufBinWriter()
	p.encodeHashable(w.BinWriter)
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Bytes(), nil
}

func (p *Payload) encodeHashable(w *io.BinWriter) {
	w.WriteU32LE(p.version)
	w.WriteFixedBytes(p.prevHash[:])
	w.WriteU32LE(p.height)
	w.WriteU16LE(p.validatorIndex)
	w.WriteU8(byte(p.cmType))
	w.WriteU8(p.viewNumber)
	p.encodeMessagePayload(w)
}

func (p *Payload) encodeMessagePayload(w *io.BinWriter) {
	s, ok := p.payload.(io.Serializable)
	if !ok {
		w.Err = errors.New("payload: message payload not serializable")
		return
	}
	s.EncodeBinary(w)
}

// Hash implements ConsensusPayload; it's cached since a payload is
// hashed repeatedly (by the cache, by recovery reconstruction, by
// equality checks) and its hashable fields never change after signing.
func (p *Payload) Hash() common.Hash {
	if p.cachedHash != nil {
		return *p.cachedHash
	}
	b, err := p.EncodeHashableFields()
	if err != nil {
		return common.Hash{}
	}
	h := hash.DoubleSha256(b)
	p.cachedHash = &h
	return h
}

// EncodeBinary implements io.Serializable.
func (p *Payload) EncodeBinary(w *io.BinWriter) {
	p.encodeHashable(w)
	w.WriteBytes(p.signature)
}

// DecodeBinary implements io.Serializable.
func (p *Payload) DecodeBinary(r *io.BinReader) {
	p.version = r.ReadU32LE()
	r.ReadFixedBytes(p.prevHash[:])
	p.height = r.ReadU32LE()
	p.validatorIndex = r.ReadU16LE()
	p.cmType = MessageType(r.ReadU8())
	p.viewNumber = r.ReadU8()

	switch p.cmType {
	case ChangeViewType:
		m := new(changeView)
		m.DecodeBinary(r)
		p.payload = m
	case PrepareRequestType:
		m := new(prepareRequest)
		m.DecodeBinary(r)
		p.payload = m
	case PrepareResponseType:
		m := new(prepareResponse)
		m.DecodeBinary(r)
		p.payload = m
	case CommitType:
		m := new(commit)
		m.DecodeBinary(r)
		p.payload = m
	case RecoveryRequestType:
		m := new(recoveryRequest)
		m.DecodeBinary(r)
		p.payload = m
	case RecoveryMessageType:
		m := new(recoveryMessage)
		m.DecodeBinary(r)
		p.payload = m
	default:
		r.Err = errors.New("payload: unknown message type")
		return
	}
	p.signature = r.ReadBytes()
	p.cachedHash = nil
}
