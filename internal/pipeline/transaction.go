package pipeline

import (
	"context"

	"github.com/tendermint/nodecore/internal/dispatcher"
	"github.com/tendermint/nodecore/internal/utpool"
	"github.com/tendermint/nodecore/pkg/chain"
)

// TransactionHashCalculator computes the hash of every top-level
// transaction in a transaction-pipeline input.
type TransactionHashCalculator struct {
	hasher Hasher
}

func NewTransactionHashCalculator(hasher Hasher) *TransactionHashCalculator {
	return &TransactionHashCalculator{hasher: hasher}
}

func (c *TransactionHashCalculator) Name() string { return "HashCalculator" }

func (c *TransactionHashCalculator) Process(_ context.Context, input *chain.ConsumerInput) (dispatcher.Result, error) {
	for i := range input.Transactions {
		tx := &input.Transactions[i]
		tx.Hash = c.hasher.HashTransaction(tx)
	}
	return dispatcher.ResultContinue(), nil
}

// KnownHashPredicate reports whether a hash is already tracked by the UT
// pool, supplied by the pool collaborator per spec.md §4.4.2.
type KnownHashPredicate func(hash chain.Hash) bool

// TransactionHashCheck combines the short-lived seen-cache with the UT
// pool's known-hash predicate, filtering duplicates from either source
// silently (no status notification per spec.md's literal scenario 5).
type TransactionHashCheck struct {
	cache HashCache
	known KnownHashPredicate
}

func NewTransactionHashCheck(cache HashCache, known KnownHashPredicate) *TransactionHashCheck {
	return &TransactionHashCheck{cache: cache, known: known}
}

func (c *TransactionHashCheck) Name() string { return "HashCheck" }

func (c *TransactionHashCheck) Process(_ context.Context, input *chain.ConsumerInput) (dispatcher.Result, error) {
	survivors := input.Transactions[:0]
	for _, tx := range input.Transactions {
		if c.cache.CheckAndInsert(tx.Hash) {
			continue
		}
		if c.known != nil && c.known(tx.Hash) {
			continue
		}
		survivors = append(survivors, tx)
	}
	input.Transactions = survivors

	if len(survivors) == 0 {
		return dispatcher.ResultComplete(), nil
	}
	return dispatcher.ResultContinue(), nil
}

// NewTransactions forwards surviving transactions to the new-transactions
// sink and to UtUpdater.UpdateNew, unconditionally of local stateful
// validation outcome — spec.md §4.4.5's open question is resolved by
// forwarding to the sink first, so a failing pool update never suppresses
// gossip (see DESIGN.md).
type NewTransactions struct {
	sink    NewTransactionSink
	updater *utpool.Updater
}

func NewNewTransactions(sink NewTransactionSink, updater *utpool.Updater) *NewTransactions {
	return &NewTransactions{sink: sink, updater: updater}
}

func (c *NewTransactions) Name() string { return "NewTransactions" }

func (c *NewTransactions) Process(_ context.Context, input *chain.ConsumerInput) (dispatcher.Result, error) {
	for _, tx := range input.Transactions {
		c.sink(tx, input.Source)
	}
	c.updater.UpdateNew(input.Transactions)
	return dispatcher.ResultComplete(), nil
}
