package hooks

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tendermint/nodecore/internal/chainsync"
	"github.com/tendermint/nodecore/pkg/chain"
)

func fullyBuiltBuilder() *Builder {
	return NewBuilder().
		WithBlockRangeConsumerFactory(func(chain.InputSource) BlockRangeConsumer {
			return func(*chain.ConsumerInput) {}
		}).
		WithCompletionAwareBlockRangeFactory(func(chain.InputSource) CompletionAwareBlockRangeConsumer {
			return func(*chain.ConsumerInput, func(chain.ElementID, chain.CompletionResult)) chain.ElementID { return 0 }
		}).
		WithTransactionRangeConsumerFactory(func(chain.InputSource) TransactionRangeConsumer {
			return func(*chain.ConsumerInput) {}
		}).
		WithKnownHashPredicate(func(chain.Hash) bool { return false }).
		WithNewBlockSink(func(chain.BlockElement, chain.InputSource) {}).
		WithNewTransactionsSink(func(chain.TransactionElement, chain.InputSource) {})
}

func TestBuilderProducesBundleWhenFullyPopulated(t *testing.T) {
	bundle := fullyBuiltBuilder().Build()

	require.NotNil(t, bundle.BlockRangeConsumerFactory)
	require.NotNil(t, bundle.CompletionAwareBlockRangeFactory)
	require.NotNil(t, bundle.TransactionRangeConsumerFactory)
	require.NotNil(t, bundle.KnownHashPredicate)
	require.NotNil(t, bundle.NewBlockSink)
	require.NotNil(t, bundle.NewTransactionsSink)
	require.Empty(t, bundle.TransactionsChangeHandlers)
}

func TestBuilderPanicsOnMissingRequiredHook(t *testing.T) {
	b := NewBuilder().
		WithBlockRangeConsumerFactory(func(chain.InputSource) BlockRangeConsumer {
			return func(*chain.ConsumerInput) {}
		})

	require.Panics(t, func() { b.Build() })
}

func TestBuilderPanicsOnDoubleSet(t *testing.T) {
	b := NewBuilder().WithKnownHashPredicate(func(chain.Hash) bool { return false })

	require.Panics(t, func() {
		b.WithKnownHashPredicate(func(chain.Hash) bool { return true })
	})
}

func TestBuilderAppendsMultipleTransactionsChangeHandlers(t *testing.T) {
	var calls int
	b := fullyBuiltBuilder().
		AppendTransactionsChangeHandler(func(chainsync.TransactionsChangeInfo) { calls++ }).
		AppendTransactionsChangeHandler(func(chainsync.TransactionsChangeInfo) { calls++ })

	bundle := b.Build()
	require.Len(t, bundle.TransactionsChangeHandlers, 2)

	for _, h := range bundle.TransactionsChangeHandlers {
		h(chainsync.TransactionsChangeInfo{})
	}
	require.Equal(t, 2, calls)
}
