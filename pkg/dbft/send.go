package dbft

import "github.com/meridianchain/dbft/pkg/dbft/payload"

// broadcast hands a constructed payload to the network collaborator,
// skipping payloads the Message Factory left unsigned (§7: a
// witness-less payload must never go out over the wire).
func (d *DBFT) broadcast(msg payload.ConsensusPayload) {
	if msg == nil || msg.Signature() == nil {
		return
	}
	d.Config.Broadcast(msg)
}

func (d *DBFT) sendPrepareRequest() {
	d.broadcast(d.Context.MakePrepareRequest())
}

func (d *DBFT) sendPrepareResponse() {
	d.broadcast(d.Context.MakePrepareResponse())
}

func (d *DBFT) sendCommit() {
	d.broadcast(d.Context.MakeCommit())
}

func (d *DBFT) sendChangeView(reason payload.ChangeViewReason) {
	d.broadcast(d.Context.MakeChangeView(reason))
}

func (d *DBFT) sendRecoveryMessage() {
	d.broadcast(d.Context.MakeRecoveryMessage())
}
