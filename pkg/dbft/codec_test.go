package dbft

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/meridianchain/dbft/pkg/dbft/block"
	"github.com/meridianchain/dbft/pkg/dbft/payload"
	io2 "github.com/meridianchain/dbft/pkg/io"
)

func TestCheckpointRoundTrip(t *testing.T) {
	c, _ := newTestContext(t, 4, 1)
	c.reset(0)

	h1 := common.Hash{1}
	h2 := common.Hash{2}
	c.TransactionHashes = []common.Hash{h1, h2}
	c.Transactions = map[common.Hash]block.Transaction{
		h1: fakeTx(h1),
		h2: fakeTx(h2),
	}

	cv := payload.NewConsensusPayload()
	cv.SetType(payload.ChangeViewType)
	cv.SetPayload(payload.NewChangeView())
	c.ChangeViewPayloads[0] = cv

	w := io2.NewBufBinWriter()
	c.EncodeBinary(w.BinWriter)
	require.NoError(t, w.Err)
	data := w.Bytes()
	require.NotEmpty(t, data)

	c2, _ := newTestContext(t, 4, 1)
	c2.reset(0)
	// DecodeBinary requires the receiving Context to already agree on
	// version/height, exactly as Load's contract requires (§4.6).
	c2.Version = c.Version
	c2.BlockIndex = c.BlockIndex

	r := io2.NewBinReaderFromBuf(data)
	c2.DecodeBinary(r)
	require.NoError(t, r.Err)

	require.Equal(t, c.TransactionHashes, c2.TransactionHashes)
	require.Equal(t, c.Timestamp, c2.Timestamp)
	require.Equal(t, c.NextConsensus, c2.NextConsensus)
	require.NotNil(t, c2.ChangeViewPayloads[0])
}

func TestCheckpointRejectsHeightMismatch(t *testing.T) {
	c, _ := newTestContext(t, 4, 1)
	c.reset(0)

	w := io2.NewBufBinWriter()
	c.EncodeBinary(w.BinWriter)
	require.NoError(t, w.Err)

	c2, _ := newTestContext(t, 4, 1)
	c2.reset(0)
	c2.BlockIndex = c.BlockIndex + 1 // simulate a stale checkpoint from a prior height

	r := io2.NewBinReaderFromBuf(w.Bytes())
	c2.DecodeBinary(r)
	require.ErrorIs(t, r.Err, errCheckpointHeight)
}
