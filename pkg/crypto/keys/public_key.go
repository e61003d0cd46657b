package keys

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/ethereum/go-ethereum/common"
	"github.com/meridianchain/dbft/pkg/crypto/hash"
)

// PublicKey wraps a secp256k1 public key in compressed form.
type PublicKey struct {
	key *btcec.PublicKey
}

// NewPublicKeyFromBytes parses a compressed secp256k1 public key.
func NewPublicKeyFromBytes(b []byte) (*PublicKey, error) {
	key, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, err
	}
	return &PublicKey{key: key}, nil
}

// Bytes returns the 33-byte compressed encoding.
func (p *PublicKey) Bytes() []byte {
	if p == nil || p.key == nil {
		return nil
	}
	return p.key.SerializeCompressed()
}

// Equal reports whether p and other encode the same key.
func (p *PublicKey) Equal(other *PublicKey) bool {
	if p == nil || other == nil {
		return p == other
	}
	return bytes.Equal(p.Bytes(), other.Bytes())
}

// Verify checks an ECDSA signature over msg.
func (p *PublicKey) Verify(msg, sig []byte) error {
	s, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return err
	}
	digest := sha256Sum(msg)
	if !s.Verify(digest[:], p.key) {
		return errors.New("keys: signature verification failed")
	}
	return nil
}

func sha256Sum(b []byte) common.Hash {
	return sha256.Sum256(b)
}

// PublicKeys is a sortable list of validator public keys, used to build
// deterministic multisig redeem scripts and next-consensus addresses.
type PublicKeys []*PublicKey

func (p PublicKeys) Len() int      { return len(p) }
func (p PublicKeys) Swap(i, j int) { p[i], p[j] = p[j], p[i] }
func (p PublicKeys) Less(i, j int) bool {
	return bytes.Compare(p[i].Bytes(), p[j].Bytes()) < 0
}

// Sorted returns a sorted copy of p, leaving p untouched; the canonical
// multisig script requires keys in ascending byte order regardless of
// the validator-index ordering the Context keeps them in.
func (p PublicKeys) Sorted() PublicKeys {
	cp := make(PublicKeys, len(p))
	copy(cp, p)
	sort.Sort(cp)
	return cp
}

// CreateDefaultMultiSigRedeemScript builds the M-of-N (M = N-(N-1)/3)
// redeem script for this validator set, sorted into canonical order.
func (p PublicKeys) CreateDefaultMultiSigRedeemScript() ([]byte, error) {
	n := len(p)
	if n == 0 {
		return nil, errors.New("keys: empty validator set")
	}
	f := (n - 1) / 3
	m := n - f
	return p.CreateMultiSigRedeemScript(m)
}

// CreateMultiSigRedeemScript builds an m-of-n redeem script: a simple,
// deterministic encoding (m, sorted compressed keys, n) good enough to
// hash into a next-consensus address and to parse back for signature
// verification; it is not a smart-contract opcode script, the broader
// VM is out of this core's scope.
func (p PublicKeys) CreateMultiSigRedeemScript(m int) ([]byte, error) {
	n := len(p)
	if m <= 0 || m > n {
		return nil, errors.New("keys: invalid multisig threshold")
	}
	sorted := p.Sorted()
	buf := make([]byte, 0, 2+n*33)
	buf = append(buf, byte(m))
	for _, k := range sorted {
		buf = append(buf, k.Bytes()...)
	}
	buf = append(buf, byte(n))
	return buf, nil
}

// ConsensusAddress derives the next-consensus address for a validator
// set: Hash160 of its default multisig redeem script.
func ConsensusAddress(validators []*PublicKey) (common.Address, error) {
	script, err := PublicKeys(validators).CreateDefaultMultiSigRedeemScript()
	if err != nil {
		return common.Address{}, err
	}
	return hash.Hash160(script), nil
}
