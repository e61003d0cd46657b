package dbft

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/meridianchain/dbft/pkg/dbft/block"
	"github.com/meridianchain/dbft/pkg/dbft/payload"
)

func TestEnsureHeaderNilWithoutTransactionHashes(t *testing.T) {
	c, _ := primaryTestContext(t, 4)
	require.Nil(t, c.EnsureHeader())
}

func TestEnsureHeaderIdempotent(t *testing.T) {
	c, _ := primaryTestContext(t, 4)
	h := common.Hash{9}
	c.TransactionHashes = []common.Hash{h}
	c.Transactions = map[common.Hash]block.Transaction{h: fakeTx(h)}

	first := c.EnsureHeader()
	require.NotNil(t, first)
	second := c.EnsureHeader()
	require.Same(t, first, second)
	require.Equal(t, first.MerkleRoot(), c.MerkleRoot)
}

func TestCreateBlockSpeculativeBeforeQuorum(t *testing.T) {
	c, _ := primaryTestContext(t, 4)
	h := common.Hash{3}
	c.TransactionHashes = []common.Hash{h}
	c.Transactions = map[common.Hash]block.Transaction{h: fakeTx(h)}

	b := c.CreateBlock()
	require.NotNil(t, b)
	require.Equal(t, []block.Transaction{fakeTx(h)}, b.Transactions())
	require.Equal(t, byte(0), b.Signature()[0], "no commits cast yet: zero signatures in the witness")
}

func TestCreateBlockAssemblesQuorumWitness(t *testing.T) {
	n := 4
	validators, privs := makeValidatorsWithKeys(t, n)

	snap := &fakeSnapshot{
		currentHash: common.Hash{1},
		height:      9,
		validators:  validators,
	}
	c := &Context{Config: newTestConfig(snap, 0, privs[0])}
	c.reset(0)
	c.PrimaryIndex = c.GetPrimaryIndex(0)
	c.MyIndex = 0

	h := common.Hash{3}
	c.TransactionHashes = []common.Hash{h}
	c.Transactions = map[common.Hash]block.Transaction{h: fakeTx(h)}

	header := c.EnsureHeader()
	require.NotNil(t, header)
	headerHash := header.Hash()

	for i := 0; i < c.M(); i++ {
		sig, err := privs[i].Sign(headerHash[:])
		require.NoError(t, err)

		cm := payload.NewCommit()
		cm.SetSignature(sig)

		cp := payload.NewConsensusPayload()
		cp.SetType(payload.CommitType)
		cp.SetValidatorIndex(uint16(i))
		cp.SetViewNumber(c.ViewNumber)
		cp.SetPayload(cm)

		c.CommitPayloads[i] = cp
	}

	b := c.CreateBlock()
	require.NotNil(t, b)
	require.Equal(t, byte(c.M()), b.Signature()[0], "witness carries exactly M signatures")

	for i := 0; i < c.M(); i++ {
		require.NoError(t, header.Verify(validators[i], c.CommitPayloads[i].GetCommit().Signature()))
	}
}
