package dbft

import "github.com/meridianchain/dbft/pkg/dbft/block"

// PolicyPlugin filters the transaction set a PrepareRequest proposes.
// Plugins are composed left-to-right by registration order, each one
// reducing the list it's handed (§4.3, §6).
type PolicyPlugin interface {
	FilterForBlock(txs []block.Transaction) []block.Transaction
}

// PolicyPluginFunc adapts a plain function to PolicyPlugin.
type PolicyPluginFunc func(txs []block.Transaction) []block.Transaction

// FilterForBlock implements PolicyPlugin.
func (f PolicyPluginFunc) FilterForBlock(txs []block.Transaction) []block.Transaction {
	return f(txs)
}

// applyPolicies runs txs through every plugin in order, each consuming
// the previous one's output.
func applyPolicies(plugins []PolicyPlugin, txs []block.Transaction) []block.Transaction {
	for _, p := range plugins {
		txs = p.FilterForBlock(txs)
	}
	return txs
}
