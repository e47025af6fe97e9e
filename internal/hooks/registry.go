// Package hooks implements the write-once hook registry spec.md §9
// calls for: a typed builder that accumulates callbacks and consumer
// factories exactly once each, then hands pipeline assembly an
// immutable Bundle. Unlike a bag of mutable callbacks set at boot, a
// Bundle field can never be read before it is set and never needs a
// runtime "is this hook set?" check once assembly starts.
package hooks

import (
	"fmt"

	"github.com/tendermint/nodecore/internal/chainsync"
	"github.com/tendermint/nodecore/pkg/chain"
)

// BlockRangeConsumer accepts a submitted block range for a given
// source, fire-and-forget.
type BlockRangeConsumer func(input *chain.ConsumerInput)

// CompletionAwareBlockRangeConsumer accepts a submitted block range and
// invokes callback once the dispatcher's inspector has run.
type CompletionAwareBlockRangeConsumer func(input *chain.ConsumerInput, callback func(chain.ElementID, chain.CompletionResult)) chain.ElementID

// TransactionRangeConsumer accepts a submitted transaction range for a
// given source, fire-and-forget.
type TransactionRangeConsumer func(input *chain.ConsumerInput)

// KnownHashPredicate reports whether the UT pool already tracks hash.
type KnownHashPredicate func(hash chain.Hash) bool

// NewBlockSink receives a block once it has been committed.
type NewBlockSink func(block chain.BlockElement, source chain.InputSource)

// NewTransactionsSink receives surviving transactions after validation.
type NewTransactionsSink func(tx chain.TransactionElement, source chain.InputSource)

// TransactionsChangeHandler is notified after a chain change so
// subscribers beyond the UT pool (e.g. a wallet indexer) can react.
// Builder supports appending more than one, unlike the single-valued
// fields below, since spec.md §6 explicitly allows "additional
// subscribers may be appended".
type TransactionsChangeHandler func(info chainsync.TransactionsChangeInfo)

// Bundle is the immutable record Builder.Build produces. Every
// single-valued field is guaranteed populated: Build panics rather than
// return a Bundle with a zero-value hook, since a consumer discovering a
// nil hook mid-pipeline is exactly the runtime check this design
// eliminates. TransactionsChangeHandlers is not checked and may be empty.
type Bundle struct {
	BlockRangeConsumerFactory        func(source chain.InputSource) BlockRangeConsumer
	CompletionAwareBlockRangeFactory func(source chain.InputSource) CompletionAwareBlockRangeConsumer
	TransactionRangeConsumerFactory  func(source chain.InputSource) TransactionRangeConsumer
	KnownHashPredicate               KnownHashPredicate
	NewBlockSink                     NewBlockSink
	NewTransactionsSink              NewTransactionsSink
	TransactionsChangeHandlers       []TransactionsChangeHandler
}

// Builder accumulates hooks exactly once each. Every setter panics if
// called twice on the same field, matching the "write-once" contract;
// Build panics if any required field was never set.
type Builder struct {
	bundle Bundle
	set    map[string]bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{set: make(map[string]bool)}
}

func (b *Builder) markOnce(name string) {
	if b.set[name] {
		panic(fmt.Sprintf("hooks: %s already set", name))
	}
	b.set[name] = true
}

func (b *Builder) WithBlockRangeConsumerFactory(f func(chain.InputSource) BlockRangeConsumer) *Builder {
	b.markOnce("BlockRangeConsumerFactory")
	b.bundle.BlockRangeConsumerFactory = f
	return b
}

func (b *Builder) WithCompletionAwareBlockRangeFactory(f func(chain.InputSource) CompletionAwareBlockRangeConsumer) *Builder {
	b.markOnce("CompletionAwareBlockRangeFactory")
	b.bundle.CompletionAwareBlockRangeFactory = f
	return b
}

func (b *Builder) WithTransactionRangeConsumerFactory(f func(chain.InputSource) TransactionRangeConsumer) *Builder {
	b.markOnce("TransactionRangeConsumerFactory")
	b.bundle.TransactionRangeConsumerFactory = f
	return b
}

func (b *Builder) WithKnownHashPredicate(f KnownHashPredicate) *Builder {
	b.markOnce("KnownHashPredicate")
	b.bundle.KnownHashPredicate = f
	return b
}

func (b *Builder) WithNewBlockSink(f NewBlockSink) *Builder {
	b.markOnce("NewBlockSink")
	b.bundle.NewBlockSink = f
	return b
}

func (b *Builder) WithNewTransactionsSink(f NewTransactionsSink) *Builder {
	b.markOnce("NewTransactionsSink")
	b.bundle.NewTransactionsSink = f
	return b
}

// AppendTransactionsChangeHandler may be called any number of times;
// each call appends one more subscriber, matching spec.md §6's "additional
// subscribers may be appended" for this one hook.
func (b *Builder) AppendTransactionsChangeHandler(f TransactionsChangeHandler) *Builder {
	b.bundle.TransactionsChangeHandlers = append(b.bundle.TransactionsChangeHandlers, f)
	return b
}

// Build validates every single-valued hook was set and returns the
// immutable Bundle. Panics on a missing required hook: this runs once
// at boot, before any pipeline accepts traffic, so failing loudly here
// is strictly better than a nil-hook panic deep in a consumer later.
func (b *Builder) Build() Bundle {
	required := []string{
		"BlockRangeConsumerFactory",
		"CompletionAwareBlockRangeFactory",
		"TransactionRangeConsumerFactory",
		"KnownHashPredicate",
		"NewBlockSink",
		"NewTransactionsSink",
	}
	for _, name := range required {
		if !b.set[name] {
			panic(fmt.Sprintf("hooks: required hook %s was never set", name))
		}
	}
	return b.bundle
}
