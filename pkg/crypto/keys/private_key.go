// Package keys implements the validator signing material used by the
// consensus core: secp256k1 key pairs over btcec, and the ordered
// PublicKeys list used to derive the M-of-N multisig address.
package keys

import (
	"crypto/rand"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	key *btcec.PrivateKey
}

// NewPrivateKey generates a fresh random private key.
func NewPrivateKey() (*PrivateKey, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: key}, nil
}

// NewPrivateKeyFromBytes reconstructs a private key from its raw scalar.
func NewPrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, errors.New("keys: invalid private key length")
	}
	key, _ := btcec.PrivKeyFromBytes(b)
	return &PrivateKey{key: key}, nil
}

// PublicKey returns the public key matching this private key.
func (p *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: p.key.PubKey()}
}

// Bytes returns the raw 32-byte scalar.
func (p *PrivateKey) Bytes() []byte {
	return p.key.Serialize()
}

// Sign produces a deterministic ECDSA signature (RFC 6979) over the
// SHA-256 digest of msg, the witness material for PrepareRequest,
// Commit, ChangeView, RecoveryRequest and RecoveryMessage payloads.
func (p *PrivateKey) Sign(msg []byte) ([]byte, error) {
	digest := sha256Sum(msg)
	sig := ecdsa.Sign(p.key, digest[:])
	return sig.Serialize(), nil
}

// randomNonce is the nonce source used for block construction (§4.3);
// the block nonce's entropy does not carry security weight (that rests
// on the commit signatures), so math/rand would have been acceptable
// too, but crypto/rand is used here since it is equally cheap and
// avoids ever seeding a global PRNG.
func randomNonce() uint64 {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(buf[i])
	}
	return v
}

// RandomNonce8 draws 8 random bytes and returns them as a big-endian
// uint64, matching MakePrepareRequest's nonce draw (§4.3).
func RandomNonce8() uint64 {
	return randomNonce()
}
