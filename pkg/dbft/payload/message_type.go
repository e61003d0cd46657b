package payload

// MessageType enumerates the consensus message kinds carried in a
// ConsensusPayload envelope, per GLOSSARY.
type MessageType byte

// Valid message types.
const (
	ChangeViewType      MessageType = 0x00
	PrepareRequestType  MessageType = 0x20
	PrepareResponseType MessageType = 0x21
	CommitType          MessageType = 0x30
	RecoveryRequestType MessageType = 0x40
	RecoveryMessageType MessageType = 0x41
)

// String implements fmt.Stringer.
func (t MessageType) String() string {
	switch t {
	case ChangeViewType:
		return "ChangeView"
	case PrepareRequestType:
		return "PrepareRequest"
	case PrepareResponseType:
		return "PrepareResponse"
	case CommitType:
		return "Commit"
	case RecoveryRequestType:
		return "RecoveryRequest"
	case RecoveryMessageType:
		return "RecoveryMessage"
	default:
		return "Unknown"
	}
}

// ChangeViewReason is the reason code stamped onto a ChangeView message.
type ChangeViewReason byte

// Valid reason codes.
const (
	CVTimeout               ChangeViewReason = 0x0
	CVChangeAgreement       ChangeViewReason = 0x1
	CVTxNotFound            ChangeViewReason = 0x2
	CVTxInvalid             ChangeViewReason = 0x3
	CVTxRejectedByPolicy    ChangeViewReason = 0x4
	CVBlockRejectedByPolicy ChangeViewReason = 0x5
)

// String implements fmt.Stringer.
func (r ChangeViewReason) String() string {
	switch r {
	case CVTimeout:
		return "Timeout"
	case CVChangeAgreement:
		return "ChangeAgreement"
	case CVTxNotFound:
		return "TxNotFound"
	case CVTxInvalid:
		return "TxInvalid"
	case CVTxRejectedByPolicy:
		return "TxRejectedByPolicy"
	case CVBlockRejectedByPolicy:
		return "BlockRejectedByPolicy"
	default:
		return "Unknown"
	}
}
