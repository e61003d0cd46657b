package dbft

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridianchain/dbft/pkg/crypto/keys"
	"github.com/meridianchain/dbft/pkg/dbft/payload"
	"github.com/meridianchain/dbft/pkg/dbft/timer"
)

func newTestContext(t *testing.T, n, myIndex int) (*Context, *fakeSnapshot) {
	t.Helper()
	validators, privs := makeValidatorsWithKeys(t, n)

	snap := &fakeSnapshot{
		currentHash: [32]byte{1},
		height:      9,
		validators:  validators,
	}

	var priv *keys.PrivateKey
	if myIndex >= 0 {
		priv = privs[myIndex]
	}
	return &Context{Config: newTestConfig(snap, myIndex, priv)}, snap
}

func TestResetHeightRebuildsFromSnapshot(t *testing.T) {
	c, snap := newTestContext(t, 4, 1)
	c.reset(0)

	require.Equal(t, snap.height+1, c.BlockIndex)
	require.Equal(t, snap.currentHash, c.PrevHash)
	require.Equal(t, byte(0), c.ViewNumber)
	require.Equal(t, 1, c.MyIndex)
	require.Len(t, c.CommitPayloads, 4)
	require.Len(t, c.ChangeViewPayloads, 4)
	require.Len(t, c.PreparationPayloads, 4)
	require.Nil(t, c.TransactionHashes)
}

func TestResetViewChangePreservesEvidence(t *testing.T) {
	c, _ := newTestContext(t, 4, 1)
	c.reset(0)

	// Validator 0 requests view 2, validator 2 requests view 1 (stale
	// once we bump to view 2).
	cv0 := payload.NewConsensusPayload()
	cvMsg0 := payload.NewChangeView()
	cvMsg0.SetNewViewNumber(2)
	cv0.SetPayload(cvMsg0)
	c.ChangeViewPayloads[0] = cv0

	cv2 := payload.NewConsensusPayload()
	cvMsg2 := payload.NewChangeView()
	cvMsg2.SetNewViewNumber(1)
	cv2.SetPayload(cvMsg2)
	c.ChangeViewPayloads[2] = cv2

	c.reset(2)

	require.Equal(t, byte(2), c.ViewNumber)
	require.NotNil(t, c.LastChangeViewPayloads[0], "evidence aimed at or beyond the new view survives")
	require.Nil(t, c.LastChangeViewPayloads[2], "stale evidence below the new view is dropped")
}

func TestResetAllocatesLastSeenMessageOnce(t *testing.T) {
	c, _ := newTestContext(t, 4, 1)
	c.reset(0)
	require.Len(t, c.LastSeenMessage, 4)
	require.NotNil(t, c.LastSeenMessage[1], "resetting stamps this node's own last-seen entry")

	c.LastSeenMessage[2] = &timer.HV{Height: 42, View: 3}
	c.reset(1)
	require.Equal(t, uint32(42), c.LastSeenMessage[2].Height, "LastSeenMessage is never reset across views")
}

func TestDisposeReleasesSnapshot(t *testing.T) {
	c, snap := newTestContext(t, 4, 1)
	c.reset(0)
	require.False(t, snap.closed)

	c.Dispose()
	require.True(t, snap.closed)
}
