package pipeline

import (
	"context"
	"crypto/sha256"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tendermint/nodecore/internal/chainsync"
	"github.com/tendermint/nodecore/internal/dispatcher"
	"github.com/tendermint/nodecore/internal/rollback"
	"github.com/tendermint/nodecore/libs/log"
	"github.com/tendermint/nodecore/pkg/chain"
)

type stubHasher struct{}

func (stubHasher) HashBlock(b *chain.BlockElement) chain.Hash {
	sum := sha256.Sum256([]byte{byte(b.Block.Height)})
	return chain.Hash(sum[:])
}

func (stubHasher) HashTransaction(tx *chain.TransactionElement) chain.Hash {
	sum := sha256.Sum256(tx.Transaction.Raw)
	return chain.Hash(sum[:])
}

type fakeSnapshot struct {
	height int64
	score  uint64
}

func (s fakeSnapshot) Height() int64 { return s.height }
func (s fakeSnapshot) Score() uint64 { return s.score }

type fakeTxn struct{ fakeSnapshot }

func (fakeTxn) Commit() error { return nil }
func (fakeTxn) Discard()      {}

type fakeCache struct {
	mu  sync.Mutex
	cur fakeSnapshot
}

func (c *fakeCache) Snapshot() chainsync.CacheSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeCache) Begin() chainsync.CacheTransaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fakeTxn{c.cur}
}

type fakeStorage struct {
	mu     sync.Mutex
	height int64
}

func (s *fakeStorage) LoadRange(int64, int64) ([]chain.BlockElement, error) { return nil, nil }
func (s *fakeStorage) DropAbove(height int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.height = height
	return nil
}
func (s *fakeStorage) Append(blocks []chain.BlockElement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(blocks) > 0 {
		s.height = blocks[len(blocks)-1].Block.Height
	}
	return nil
}
func (s *fakeStorage) Height() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

type fakePool struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func newFakePool() *fakePool { return &fakePool{held: map[string]time.Time{}} }

func (p *fakePool) Insert(tx chain.TransactionElement, insertedAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.held[tx.Hash.String()] = insertedAt
}
func (p *fakePool) Remove(hash chain.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.held, hash.String())
}
func (p *fakePool) Has(hash chain.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.held[hash.String()]
	return ok
}
func (p *fakePool) Prune(time.Time, time.Duration) {}

func testConfig() Config {
	return Config{
		BlockDispatcherOptions:       dispatcher.DefaultOptions("block"),
		TransactionDispatcherOptions: dispatcher.DefaultOptions("transaction"),
		ShortLivedCacheBlockCapacity:       64,
		ShortLivedCacheBlockDuration:       time.Minute,
		ShortLivedCacheTransactionCapacity: 64,
		ShortLivedCacheTransactionDuration: time.Minute,
		ChainCheck: ChainCheckOptions{
			MaxBlocksPerSyncAttempt: 16,
			MaxBlockFutureTime:      time.Hour,
		},
		ChainSync:                  chainsync.Options{MaxRollbackBlocks: 10},
		RollbackRecentWindow:       time.Minute,
		StatelessValidationWorkers: 4,
	}
}

func waitFor(t *testing.T, ch <-chan chain.CompletionResult) chain.CompletionResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for completion")
		return chain.CompletionResult{}
	}
}

func TestAssembleBlockPipelineCommitsExtension(t *testing.T) {
	storage := &fakeStorage{height: 0}
	cache := &fakeCache{cur: fakeSnapshot{height: 0, score: 0}}

	var announced []chain.BlockElement
	var mu sync.Mutex

	cfg := testConfig()
	asm, err := Assemble(log.NewNopLogger(), cfg, Collaborators{
		Hasher:               stubHasher{},
		AddressResolver:      func(chain.TransactionElement) []chain.Address { return nil },
		BlockValidator:       func(chain.TransactionElement) error { return nil },
		TransactionValidator: func(chain.TransactionElement) error { return nil },
		ChainSyncHandlers: chainsync.Handlers{
			DifficultyChecker: func(chain.BlockElement, chainsync.CacheSnapshot) (bool, error) { return true, nil },
			UndoBlock:         func(chain.BlockElement, chainsync.ObserverState) error { return nil },
			Processor:         func(chain.BlockElement, chainsync.CacheTransaction) error { return nil },
			StateChange:       func(chainsync.ChangeInfo) {},
		},
		Cache:   cache,
		Storage: storage,
		UtPool:  newFakePool(),
		UtValidator: func(chain.TransactionElement) error { return nil },
		NewBlockSink: func(b chain.BlockElement, _ chain.InputSource) {
			mu.Lock()
			defer mu.Unlock()
			announced = append(announced, b)
		},
		NewTransactionSink: func(chain.TransactionElement, chain.InputSource) {},
		Now:                time.Now,
	}, nil, nil)
	require.NoError(t, err)

	done := make(chan chain.CompletionResult, 1)
	_, err = asm.BlockDispatcher.ProcessElementWithCallback(context.Background(), &chain.ConsumerInput{
		Source: chain.SourceRemotePull,
		Blocks: []chain.BlockElement{
			{Block: chain.Block{Height: 1, Score: 5, PreviousHash: nil}},
		},
	}, func(_ chain.ElementID, result chain.CompletionResult) {
		done <- result
	})
	require.NoError(t, err)

	result := waitFor(t, done)
	require.True(t, result.IsNormal())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, announced, 1)
	require.EqualValues(t, 1, storage.Height())
	require.EqualValues(t, 0, asm.Rollback.Count(rollback.Committed, rollback.All))
}
