package node

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tendermint/nodecore/config"
	"github.com/tendermint/nodecore/libs/log"
	"github.com/tendermint/nodecore/pkg/chain"
)

func testNode(t *testing.T) *Node {
	t.Helper()
	cfg := config.TestConfig()
	cfg.SetRoot(t.TempDir())

	n, err := DefaultNewNode(cfg, log.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	t.Cleanup(func() { _ = n.Stop() })
	return n
}

func TestDefaultNewNodeStartsAndStops(t *testing.T) {
	n := testNode(t)
	require.True(t, n.IsRunning())
}

func TestBundleBlockRangeConsumerCommitsExtension(t *testing.T) {
	n := testNode(t)
	bundle := n.Bundle()

	results := make(chan chain.CompletionResult, 1)
	submit := bundle.CompletionAwareBlockRangeFactory(chain.SourceLocal)
	submit(&chain.ConsumerInput{
		Blocks: []chain.BlockElement{
			{Block: chain.Block{Height: 1, Score: 1}},
		},
	}, func(_ chain.ElementID, result chain.CompletionResult) {
		results <- result
	})

	select {
	case result := <-results:
		require.True(t, result.IsNormal())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for block completion")
	}
}

func TestBundleKnownHashPredicateReflectsPool(t *testing.T) {
	n := testNode(t)
	bundle := n.Bundle()

	// A transaction never submitted is never known.
	require.False(t, bundle.KnownHashPredicate(chain.Hash("nonexistent")))
}

func TestBundleTransactionRangeConsumerAccepted(t *testing.T) {
	n := testNode(t)
	bundle := n.Bundle()

	submit := bundle.TransactionRangeConsumerFactory(chain.SourceLocal)
	require.NotPanics(t, func() {
		submit(&chain.ConsumerInput{
			Transactions: []chain.TransactionElement{
				{Transaction: chain.Transaction{Raw: []byte("tx-1")}},
			},
		})
	})
}

func TestUtPoolSweepEvictsStaleTransactions(t *testing.T) {
	cfg := config.TestConfig()
	cfg.SetRoot(t.TempDir())
	cfg.UtPool.MaxAge = 10 * time.Millisecond
	cfg.UtPool.SweepInterval = 20 * time.Millisecond

	n, err := DefaultNewNode(cfg, log.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	t.Cleanup(func() { _ = n.Stop() })

	bundle := n.Bundle()
	raw := []byte("stale-tx")
	sum := sha256.Sum256(raw)
	hash := chain.Hash(sum[:])

	submit := bundle.TransactionRangeConsumerFactory(chain.SourceLocal)
	submit(&chain.ConsumerInput{
		Transactions: []chain.TransactionElement{
			{Transaction: chain.Transaction{Raw: raw}},
		},
	})

	require.Eventually(t, func() bool {
		return bundle.KnownHashPredicate(hash)
	}, 2*time.Second, 5*time.Millisecond, "transaction was never admitted to the pool")

	require.Eventually(t, func() bool {
		return !bundle.KnownHashPredicate(hash)
	}, 2*time.Second, 5*time.Millisecond, "periodic sweep never evicted the stale transaction")
}

func TestBundleAcceptsRemoteSourcedInput(t *testing.T) {
	n := testNode(t)
	bundle := n.Bundle()

	peer := chain.NewPeerID()
	require.NotEmpty(t, string(peer))

	submit := bundle.BlockRangeConsumerFactory(chain.SourceRemotePush)
	require.NotPanics(t, func() {
		submit(&chain.ConsumerInput{
			Peer: peer,
			Blocks: []chain.BlockElement{
				{Block: chain.Block{Height: 1, Score: 1}},
			},
		})
	})
}
