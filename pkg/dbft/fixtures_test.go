package dbft

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/meridianchain/dbft/pkg/crypto/keys"
	"github.com/meridianchain/dbft/pkg/dbft/block"
)

type fakeTx common.Hash

func (t fakeTx) Hash() common.Hash { return common.Hash(t) }

type fakeHeader struct {
	hash common.Hash
	idx  uint32
	ts   uint64
}

func (h fakeHeader) Hash() common.Hash { return h.hash }
func (h fakeHeader) Index() uint32     { return h.idx }
func (h fakeHeader) Timestamp() uint64 { return h.ts }

// fakeSnapshot is a minimal in-memory Snapshot double for tests.
type fakeSnapshot struct {
	currentHash   common.Hash
	height        uint32
	validators    []*keys.PublicKey
	nextValidators []*keys.PublicKey
	verifiedTxs   []block.Transaction
	headers       map[common.Hash]fakeHeader
	closed        bool
}

func (s *fakeSnapshot) CurrentBlockHash() common.Hash { return s.currentHash }
func (s *fakeSnapshot) Height() uint32                { return s.height }

func (s *fakeSnapshot) GetHeader(h common.Hash) (Header, error) {
	if hdr, ok := s.headers[h]; ok {
		return hdr, nil
	}
	return fakeHeader{hash: h, idx: s.height, ts: 0}, nil
}

func (s *fakeSnapshot) GetValidators() []*keys.PublicKey { return s.validators }
func (s *fakeSnapshot) GetNextBlockValidators() []*keys.PublicKey {
	if s.nextValidators != nil {
		return s.nextValidators
	}
	return s.validators
}

func (s *fakeSnapshot) ConsensusAddress(validators []*keys.PublicKey) (common.Address, error) {
	return keys.ConsensusAddress(validators)
}

func (s *fakeSnapshot) GetVerifiedTransactions() []block.Transaction { return s.verifiedTxs }
func (s *fakeSnapshot) Close()                                       { s.closed = true }

var _ Snapshot = (*fakeSnapshot)(nil)

// makeValidatorsWithKeys returns a validator set together with its
// private keys, so a test can hand the key at myIndex to newTestConfig
// and get a Context that can actually sign.
func makeValidatorsWithKeys(t *testing.T, n int) ([]*keys.PublicKey, []*keys.PrivateKey) {
	t.Helper()
	pubs := make([]*keys.PublicKey, n)
	privs := make([]*keys.PrivateKey, n)
	for i := range pubs {
		priv, err := keys.NewPrivateKey()
		require.NoError(t, err)
		privs[i] = priv
		pubs[i] = priv.PublicKey()
	}
	return pubs, privs
}

func newTestConfig(snap *fakeSnapshot, myIndex int, priv *keys.PrivateKey) *Config {
	cfg := defaultConfig()
	cfg.GetSnapshot = func() (Snapshot, error) { return snap, nil }
	cfg.GetKeyPair = func(vs []*keys.PublicKey) (int, *keys.PrivateKey, *keys.PublicKey) {
		if myIndex < 0 {
			return -1, nil, nil
		}
		return myIndex, priv, vs[myIndex]
	}
	cfg.Now = func() uint64 { return 1000 }
	return cfg
}
