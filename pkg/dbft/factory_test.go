package dbft

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/meridianchain/dbft/pkg/dbft/block"
)

func primaryTestContext(t *testing.T, n int) (*Context, *fakeSnapshot) {
	t.Helper()
	c, snap := newTestContext(t, n, 0)
	c.reset(0)
	c.PrimaryIndex = c.GetPrimaryIndex(0)
	c.MyIndex = int(c.PrimaryIndex)
	return c, snap
}

func TestMakePrepareRequestTimestampMonotonic(t *testing.T) {
	c, snap := primaryTestContext(t, 4)
	c.Config.Now = func() uint64 { return 500 }

	// Parent header's timestamp + increment exceeds "now": the proposed
	// block's timestamp must not regress below it (§4.3, §8 property 4).
	snap.headers = map[common.Hash]fakeHeader{
		c.PrevHash: {hash: c.PrevHash, ts: 600},
	}

	cp := c.MakePrepareRequest()
	require.NotNil(t, cp)
	require.Equal(t, uint64(601), cp.GetPrepareRequest().Timestamp())
}

func TestMakePrepareRequestUsesNowWhenAhead(t *testing.T) {
	c, snap := primaryTestContext(t, 4)
	c.Config.Now = func() uint64 { return 5000 }
	snap.headers = map[common.Hash]fakeHeader{
		c.PrevHash: {hash: c.PrevHash, ts: 600},
	}

	cp := c.MakePrepareRequest()
	require.Equal(t, uint64(5000), cp.GetPrepareRequest().Timestamp())
}

func TestMakeCommitIdempotent(t *testing.T) {
	c, _ := primaryTestContext(t, 4)

	h := common.Hash{7}
	c.TransactionHashes = []common.Hash{h}
	c.Transactions = map[common.Hash]block.Transaction{h: fakeTx(h)}

	first := c.MakeCommit()
	require.NotNil(t, first)
	require.NotEmpty(t, first.GetCommit().Signature())

	second := c.MakeCommit()
	require.Same(t, first, second, "repeated MakeCommit returns the stored payload unchanged")
}
