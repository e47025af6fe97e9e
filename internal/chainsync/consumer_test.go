package chainsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tendermint/nodecore/internal/dispatcher"
	"github.com/tendermint/nodecore/internal/rollback"
	"github.com/tendermint/nodecore/libs/log"
	"github.com/tendermint/nodecore/pkg/chain"
)

type fakeSnapshot struct {
	height int64
	score  uint64
}

func (s fakeSnapshot) Height() int64 { return s.height }
func (s fakeSnapshot) Score() uint64 { return s.score }

type fakeTxn struct {
	fakeSnapshot
	committed bool
	discarded bool
}

func (t *fakeTxn) Commit() error { t.committed = true; return nil }
func (t *fakeTxn) Discard()      { t.discarded = true }

type fakeCache struct {
	snapshot fakeSnapshot
	txn      *fakeTxn
}

func (c *fakeCache) Snapshot() CacheSnapshot { return c.snapshot }
func (c *fakeCache) Begin() CacheTransaction {
	c.txn = &fakeTxn{fakeSnapshot: c.snapshot}
	return c.txn
}

type fakeStorage struct {
	blocks   map[int64]chain.BlockElement
	height   int64
	dropped  int64
	appended []chain.BlockElement
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{blocks: map[int64]chain.BlockElement{}}
}

func (s *fakeStorage) put(b chain.BlockElement) {
	s.blocks[b.Block.Height] = b
	if b.Block.Height > s.height {
		s.height = b.Block.Height
	}
}

func (s *fakeStorage) LoadRange(from, to int64) ([]chain.BlockElement, error) {
	var out []chain.BlockElement
	for h := from; h <= to; h++ {
		b, ok := s.blocks[h]
		if !ok {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *fakeStorage) DropAbove(height int64) error {
	s.dropped = height
	for h := range s.blocks {
		if h > height {
			delete(s.blocks, h)
		}
	}
	return nil
}

func (s *fakeStorage) Append(blocks []chain.BlockElement) error {
	s.appended = append(s.appended, blocks...)
	for _, b := range blocks {
		s.put(b)
	}
	return nil
}

func (s *fakeStorage) Height() int64 { return s.height }

func okHandlers() Handlers {
	return Handlers{
		DifficultyChecker:  func(chain.BlockElement, CacheSnapshot) (bool, error) { return true, nil },
		UndoBlock:          func(chain.BlockElement, ObserverState) error { return nil },
		Processor:          func(chain.BlockElement, CacheTransaction) error { return nil },
		StateChange:        func(ChangeInfo) {},
		TransactionsChange: func(TransactionsChangeInfo) {},
	}
}

func block(height int64, prevHash string, score uint64) chain.BlockElement {
	return chain.BlockElement{
		Hash: chain.Hash(height2hash(height)),
		Block: chain.Block{
			Height:       height,
			PreviousHash: chain.Hash(prevHash),
			Score:        score,
		},
	}
}

func height2hash(h int64) string {
	return string(rune('a' + h))
}

func newTestRollback() *rollback.Info {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return rollback.New(time.Minute, func() time.Time { return now }, nil)
}

func TestChainSyncAppliesSimpleExtension(t *testing.T) {
	storage := newFakeStorage()
	genesis := block(0, "", 10)
	storage.put(genesis)

	cache := &fakeCache{snapshot: fakeSnapshot{height: 0, score: 10}}
	info := newTestRollback()
	handlers := okHandlers()
	var stateChangeInfo ChangeInfo
	handlers.StateChange = func(ci ChangeInfo) { stateChangeInfo = ci }

	c := New(log.NewNopLogger(), handlers, cache, storage, info, Options{MaxRollbackBlocks: 10})

	next := block(1, genesis.Hash.String(), 5)
	input := &chain.ConsumerInput{Blocks: []chain.BlockElement{next}}

	result, err := c.Process(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, dispatcher.Continue, result.Outcome)
	require.Equal(t, uint64(15), stateChangeInfo.NewScore)
	require.Equal(t, int64(1), stateChangeInfo.NewHeight)
	require.Equal(t, int64(0), info.Count(rollback.Committed, rollback.All))
}

func TestChainSyncRejectsLowerScore(t *testing.T) {
	storage := newFakeStorage()
	genesis := block(0, "", 10)
	storage.put(genesis)
	current := block(1, genesis.Hash.String(), 50)
	storage.put(current)

	cache := &fakeCache{snapshot: fakeSnapshot{height: 1, score: 60}}
	info := newTestRollback()
	handlers := okHandlers()

	c := New(log.NewNopLogger(), handlers, cache, storage, info, Options{MaxRollbackBlocks: 10})

	next := block(1, genesis.Hash.String(), 1)
	input := &chain.ConsumerInput{Blocks: []chain.BlockElement{next}}

	result, err := c.Process(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, dispatcher.Abort, result.Outcome)
	require.Equal(t, chain.AbortNeutral, result.Reason)
	require.Equal(t, int64(1), info.Count(rollback.Ignored, rollback.All))
}

func TestChainSyncRejectsTooFarBehind(t *testing.T) {
	storage := newFakeStorage()
	genesis := block(0, "", 10)
	storage.put(genesis)
	prevHash := genesis.Hash.String()
	for h := int64(1); h <= 5; h++ {
		b := block(h, prevHash, 1)
		storage.put(b)
		prevHash = b.Hash.String()
	}

	cache := &fakeCache{snapshot: fakeSnapshot{height: 5, score: 15}}
	info := newTestRollback()
	handlers := okHandlers()

	c := New(log.NewNopLogger(), handlers, cache, storage, info, Options{MaxRollbackBlocks: 1})

	next := block(1, genesis.Hash.String(), 100)
	input := &chain.ConsumerInput{Blocks: []chain.BlockElement{next}}

	result, err := c.Process(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, dispatcher.Abort, result.Outcome)
	require.Equal(t, chain.AbortStructuralFailure, result.Reason)
}

func TestChainSyncUndoesCompetingSuffix(t *testing.T) {
	storage := newFakeStorage()
	genesis := block(0, "", 10)
	storage.put(genesis)
	weakFork := block(1, genesis.Hash.String(), 1)
	storage.put(weakFork)

	cache := &fakeCache{snapshot: fakeSnapshot{height: 1, score: 11}}
	info := newTestRollback()

	var undone []chain.BlockElement
	handlers := okHandlers()
	handlers.UndoBlock = func(b chain.BlockElement, _ ObserverState) error {
		undone = append(undone, b)
		return nil
	}

	c := New(log.NewNopLogger(), handlers, cache, storage, info, Options{MaxRollbackBlocks: 10})

	strongFork := block(1, genesis.Hash.String(), 50)
	input := &chain.ConsumerInput{Blocks: []chain.BlockElement{strongFork}}

	result, err := c.Process(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, dispatcher.Continue, result.Outcome)
	require.Len(t, undone, 1)
	require.Equal(t, int64(1), info.Count(rollback.Committed, rollback.All))
}
