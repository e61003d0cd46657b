package dbft

import "github.com/meridianchain/dbft/pkg/crypto/keys"

// Account is a single wallet-held key the Context can sign with.
type Account interface {
	// HasKey reports whether the private key is available (an account
	// can be known by public key alone, e.g. imported as watch-only).
	HasKey() bool
	// PrivateKey returns the signing key, or an error if HasKey is false.
	PrivateKey() (*keys.PrivateKey, error)
}

// Wallet is the signing collaborator borrowed read-only per signing
// call (§5, §6). The Context never persists or modifies it.
type Wallet interface {
	// GetAccount returns the account controlling pub, if any is held.
	GetAccount(pub *keys.PublicKey) (Account, bool)
}
