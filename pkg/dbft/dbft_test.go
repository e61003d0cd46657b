package dbft

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/meridianchain/dbft/pkg/dbft/block"
	"github.com/meridianchain/dbft/pkg/dbft/payload"
)

// cluster wires n DBFT instances against a shared ledger snapshot,
// routing each node's Broadcast straight into its peers' OnReceive so a
// round can be driven synchronously, without any network layer.
type cluster struct {
	nodes []*DBFT
}

func newCluster(t *testing.T, n int) *cluster {
	t.Helper()
	validators, privs := makeValidatorsWithKeys(t, n)
	// height is chosen so the view-0 primary is the last node in
	// iteration order: Start is called on every node in cl.nodes order
	// below, and only the primary's Start broadcasts a PrepareRequest,
	// so every backup must already be reset before it fires.
	snap := &fakeSnapshot{
		currentHash: common.Hash{0xAA},
		height:      42,
		validators:  validators,
	}

	cl := &cluster{nodes: make([]*DBFT, n)}
	for i := 0; i < n; i++ {
		idx := i
		d := New(
			WithKeyPair(privs[idx], validators[idx]),
			WithGetSnapshot(func() (Snapshot, error) { return snap, nil }),
			WithBroadcast(func(m payload.ConsensusPayload) { cl.route(m) }),
		)
		require.NotNil(t, d)
		cl.nodes[i] = d
	}
	return cl
}

func (cl *cluster) route(m payload.ConsensusPayload) {
	for _, n := range cl.nodes {
		if int(m.ValidatorIndex()) == n.MyIndex {
			continue
		}
		n.OnReceive(m)
	}
}

// TestDBFTSingleHeightRound drives a 4-node cluster through a full
// prepare -> response -> commit round for one height and checks that
// every node produces the same witnessed block.
func TestDBFTSingleHeightRound(t *testing.T) {
	const n = 4
	cl := newCluster(t, n)

	blocks := make([]block.Block, n)
	for i, d := range cl.nodes {
		idx := i
		d.Config.ProcessBlock = func(b block.Block) { blocks[idx] = b }
	}

	for _, d := range cl.nodes {
		d.Start()
	}

	for i, b := range blocks {
		require.NotNil(t, b, "node %d never reached quorum", i)
	}
	quorum := byte(cl.nodes[0].M())
	require.Equal(t, quorum, blocks[0].Signature()[0], "witness carries M signatures")
	for i := 1; i < n; i++ {
		require.Equal(t, blocks[0].Hash(), blocks[i].Hash(), "all nodes must commit the same block")
		require.Equal(t, quorum, blocks[i].Signature()[0], "witness carries M signatures")
	}

	primary := cl.nodes[0].GetPrimaryIndex(0)
	require.Equal(t, primary, blocks[0].PrimaryIndex())
}
