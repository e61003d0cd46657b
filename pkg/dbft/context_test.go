package dbft

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridianchain/dbft/pkg/crypto/keys"
	"github.com/meridianchain/dbft/pkg/dbft/payload"
	"github.com/meridianchain/dbft/pkg/dbft/timer"
)

func makeValidators(t *testing.T, n int) []*keys.PublicKey {
	t.Helper()
	vs := make([]*keys.PublicKey, n)
	for i := range vs {
		priv, err := keys.NewPrivateKey()
		require.NoError(t, err)
		vs[i] = priv.PublicKey()
	}
	return vs
}

func TestQuorumMath(t *testing.T) {
	cases := []struct {
		n, f, m int
	}{
		{n: 4, f: 1, m: 3},
		{n: 7, f: 2, m: 5},
		{n: 1, f: 0, m: 1},
	}

	for _, tc := range cases {
		c := &Context{Validators: make([]*keys.PublicKey, tc.n)}
		require.Equal(t, tc.n, c.N())
		require.Equal(t, tc.f, c.F())
		require.Equal(t, tc.m, c.M())
	}
}

func TestGetPrimaryIndex(t *testing.T) {
	c := &Context{
		Validators: make([]*keys.PublicKey, 7),
		BlockIndex: 100,
	}

	for v := byte(0); v < 7; v++ {
		want := uint32((int64(100) - int64(v) + 7) % 7)
		require.Equal(t, want, c.GetPrimaryIndex(v))
	}
}

func TestPrimaryBackupWatchOnly(t *testing.T) {
	c := &Context{
		Validators: make([]*keys.PublicKey, 4),
		BlockIndex: 10,
	}
	c.PrimaryIndex = c.GetPrimaryIndex(0)

	c.MyIndex = int(c.PrimaryIndex)
	require.True(t, c.IsPrimary())
	require.False(t, c.IsBackup())
	require.False(t, c.WatchOnly())

	c.MyIndex = (int(c.PrimaryIndex) + 1) % c.N()
	require.False(t, c.IsPrimary())
	require.True(t, c.IsBackup())
	require.False(t, c.WatchOnly())

	c.MyIndex = -1
	require.False(t, c.IsPrimary())
	require.False(t, c.IsBackup())
	require.True(t, c.WatchOnly())
}

func TestCountCommitted(t *testing.T) {
	n := 4
	c := &Context{
		Validators:    make([]*keys.PublicKey, n),
		BlockIndex:    5,
		CommitPayloads: make([]payload.ConsensusPayload, n),
	}
	require.Equal(t, 0, c.CountCommitted())

	p := payload.NewConsensusPayload()
	p.SetType(payload.CommitType)
	c.CommitPayloads[1] = p
	require.Equal(t, 1, c.CountCommitted())
}

func TestCountFailed(t *testing.T) {
	n := 4
	c := &Context{
		Validators:      make([]*keys.PublicKey, n),
		BlockIndex:      10,
		LastSeenMessage: make([]*timer.HV, n),
	}
	// every validator unseen -> all count as failed
	require.Equal(t, n, c.CountFailed())

	c.LastSeenMessage[0] = &timer.HV{Height: 9}
	require.Equal(t, n-1, c.CountFailed())
}
