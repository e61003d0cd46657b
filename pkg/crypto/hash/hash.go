// Package hash collects the hash primitives the consensus core and its
// wire format depend on: payload hashing, the validator multisig
// address, and the block Merkle root.
package hash

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // matches the teacher's hash160 construction
	"golang.org/x/crypto/sha3"
)

// Hashable is implemented by anything that can compute its own
// EncodeHashableFields for hashing/signing purposes.
type Hashable interface {
	EncodeHashableFields() ([]byte, error)
}

// Sha256 computes a single SHA-256 digest.
func Sha256(b []byte) common.Hash {
	return sha256.Sum256(b)
}

// DoubleSha256 computes SHA-256 applied twice, the convention used for
// payload hashes throughout the wire format.
func DoubleSha256(b []byte) common.Hash {
	h1 := sha256.Sum256(b)
	h2 := sha256.Sum256(h1[:])
	return h2
}

// Keccak256 computes the Keccak-256 digest. The consensus address is
// not derived with it; that uses Hash160.
func Keccak256(b []byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// Hash160 computes RIPEMD160(SHA256(b)), the standard script-hash
// construction used to derive the next-consensus address from a
// multisig redeem script.
func Hash160(b []byte) common.Address {
	sh := sha256.Sum256(b)
	r := ripemd160.New()
	r.Write(sh[:])
	sum := r.Sum(nil)
	var addr common.Address
	copy(addr[:], sum)
	return addr
}

// CalcConsensusDataHash hashes the consensus data (primary index and
// nonce) that forms leaf zero of the block's Merkle tree, alongside the
// transaction hashes (§4.4).
func CalcConsensusDataHash(primaryIndex uint32, nonce uint64) common.Hash {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[:4], primaryIndex)
	binary.LittleEndian.PutUint64(buf[4:], nonce)
	return DoubleSha256(buf)
}

// CalcMerkleRoot computes the Merkle tree root over hashes, pairing and
// double-hashing adjacent nodes level by level and duplicating the last
// node of an odd-sized level. An empty input yields the zero hash.
func CalcMerkleRoot(hashes []common.Hash) common.Hash {
	if len(hashes) == 0 {
		return common.Hash{}
	}
	if len(hashes) == 1 {
		return hashes[0]
	}

	level := make([]common.Hash, len(hashes))
	copy(level, hashes)

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]common.Hash, len(level)/2)
		for i := 0; i < len(next); i++ {
			buf := make([]byte, 64)
			copy(buf[:32], level[2*i][:])
			copy(buf[32:], level[2*i+1][:])
			next[i] = DoubleSha256(buf)
		}
		level = next
	}
	return level[0]
}
