// Package chainsync implements the block-chain-sync consumer, the
// hardest of the pipeline's stages: it owns the chain's one-writer
// invariant, rolling an already-committed suffix back when a better
// fork arrives and executing the incoming suffix in its place.
package chainsync

import (
	"github.com/tendermint/nodecore/pkg/chain"
)

// Cache is the subset of the out-of-scope Catapult-style composite cache
// this package depends on: a versioned, transactional state store.
// Snapshot gives a read-only view for stateless/score work; Begin opens a
// mutable transaction that Undo and Execute write into and that only
// Commit (inside a sync attempt) or Discard makes durable or undoes.
type Cache interface {
	Snapshot() CacheSnapshot
	Begin() CacheTransaction
}

// CacheSnapshot is a read-only view of cache state as of some height.
type CacheSnapshot interface {
	Height() int64
	Score() uint64
}

// CacheTransaction is a mutable view opened for one sync attempt. Undo
// and Execute apply their effects to it; Commit makes them durable,
// Discard throws them away. Neither may be called more than once.
type CacheTransaction interface {
	CacheSnapshot
	Commit() error
	Discard()
}

// Storage is the out-of-scope append-only block store: load committed
// blocks by height, append the incoming suffix, and drop everything
// above a height before doing so.
type Storage interface {
	LoadRange(fromHeight, toHeight int64) ([]chain.BlockElement, error)
	DropAbove(height int64) error
	Append(blocks []chain.BlockElement) error
	Height() int64
}

// ObserverState is the mutable view an undo-entity observer runs
// against while UndoBlock rolls a committed block back. It is backed by
// the cache transaction so undo effects are discardable along with
// everything else in Checking/Undoing/Executing.
type ObserverState interface {
	CacheTransaction
}

// ChangeInfo is passed to StateChange on a successful commit.
type ChangeInfo struct {
	NewScore   uint64
	ScoreDelta int64
	NewHeight  int64
	Blocks     []chain.BlockElement
}

// TransactionsChangeInfo is passed to TransactionsChange after a commit,
// so the UT pool can reconcile with the new chain state.
type TransactionsChangeInfo struct {
	AddedHashes   []chain.Hash
	RevertedInfos []chain.TransactionElement
}

// Handlers is the five-function-field bundle spec.md's data model names,
// constructed once at service start and treated as immutable afterward.
type Handlers struct {
	// DifficultyChecker reports whether block's difficulty matches what
	// the chain configuration and the block-difficulty sub-cache expect.
	DifficultyChecker func(block chain.BlockElement, snapshot CacheSnapshot) (ok bool, err error)

	// UndoBlock rolls one already-committed block out of state, running
	// the plugin manager's undo-entity observer against state.
	UndoBlock func(block chain.BlockElement, state ObserverState) error

	// Processor runs stateful validation and the batch entity processor
	// for one incoming block against txn, aborting the whole attempt on
	// failure.
	Processor func(block chain.BlockElement, txn CacheTransaction) error

	// StateChange notifies subscribers of a successful commit. The local
	// score is mutated only as a side effect of this call succeeding.
	StateChange func(info ChangeInfo)

	// TransactionsChange notifies the UT pool of a chain change so it can
	// reconcile confirmed/unconfirmed transactions.
	TransactionsChange func(info TransactionsChangeInfo)
}
