// Package block declares the abstract collaborator types the consensus
// Context builds against: a Transaction the core never parses beyond
// its hash, and a Block it assembles but never executes. A concrete
// chain's own block/transaction types satisfy these interfaces; the
// core stays decoupled from them, per spec.md §9's "re-architect as
// explicit collaborators" note.
package block

import "github.com/ethereum/go-ethereum/common"

// Transaction is the minimal surface the consensus core needs: enough
// to identify, order and count transactions without validating them
// (validation beyond memory-pool membership is out of scope).
type Transaction interface {
	Hash() common.Hash
}
