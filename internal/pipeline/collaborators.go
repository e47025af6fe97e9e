// Package pipeline assembles the two consumer-dispatcher pipelines
// (block and transaction) from the named consumers spec.md §4.3/§4.4
// describe, in the order each data flow requires.
package pipeline

import (
	"time"

	"github.com/tendermint/nodecore/internal/hashcache"
	"github.com/tendermint/nodecore/pkg/chain"
)

// Hasher computes content hashes from the transaction registry's wire
// encoding; out-of-scope (the plugin manager owns the registry), so this
// package depends only on the function shape.
type Hasher interface {
	HashBlock(b *chain.BlockElement) chain.Hash
	HashTransaction(tx *chain.TransactionElement) chain.Hash
}

// AddressResolver runs the notification publisher over a transaction and
// returns the addresses it touches.
type AddressResolver func(tx chain.TransactionElement) []chain.Address

// StatelessValidator validates one element independent of chain state.
type StatelessValidator func(tx chain.TransactionElement) error

// TimeSource abstracts "now" for ChainCheck's future-time guard.
type TimeSource func() time.Time

// NewBlockSink receives a committed block, tagged with its effective
// source.
type NewBlockSink func(block chain.BlockElement, source chain.InputSource)

// NewTransactionSink receives a transaction that passed stateless
// validation, before and regardless of the UT pool's stateful validation.
type NewTransactionSink func(tx chain.TransactionElement, source chain.InputSource)

// StatusSink reports a per-transaction stateless-validation failure.
type StatusSink func(hash chain.Hash, err error)

// HashCache is the subset of *hashcache.Cache the HashCheck consumers
// need; declared as an interface so block and transaction pipelines can
// each hold their own instance without this package depending on the
// concrete type's full surface.
type HashCache interface {
	CheckAndInsert(hash chain.Hash) (alreadySeen bool)
}

var _ HashCache = (*hashcache.Cache)(nil)
