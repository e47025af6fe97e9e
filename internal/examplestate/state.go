// Package examplestate is a minimal in-memory stand-in for the
// out-of-scope collaborators pipeline.Assemble needs (cache, storage,
// the unconfirmed-transaction pool, hashing, address resolution). It
// plays the same role abci/example/kvstore plays for an ABCI
// application: enough of a real implementation to let cmd/nodecore
// boot and run end to end without wiring a production plugin manager.
package examplestate

import (
	"crypto/sha256"
	"sync"
	"time"

	"github.com/tendermint/nodecore/internal/chainsync"
	"github.com/tendermint/nodecore/libs/clist"
	"github.com/tendermint/nodecore/pkg/chain"
)

// Hasher computes SHA-256 block and transaction hashes over the raw
// transaction bytes, matching pipeline.Hasher.
type Hasher struct{}

func (Hasher) HashBlock(b *chain.BlockElement) chain.Hash {
	h := sha256.New()
	for _, tx := range b.Block.Transactions {
		h.Write(tx.Raw)
	}
	return chain.Hash(h.Sum(nil))
}

func (Hasher) HashTransaction(tx *chain.TransactionElement) chain.Hash {
	sum := sha256.Sum256(tx.Transaction.Raw)
	return chain.Hash(sum[:])
}

// ResolveAddresses is a pipeline.AddressResolver that treats the first
// 20 bytes of the transaction's hash as its sole touched address, since
// real account addressing is owned by the (out of scope) plugin
// manager.
func ResolveAddresses(tx chain.TransactionElement) []chain.Address {
	var addr chain.Address
	copy(addr[:], tx.Hash)
	return []chain.Address{addr}
}

// ValidateStateless accepts any non-empty transaction. Real stateless
// rules (signature checks, schema checks) belong to the plugin manager.
func ValidateStateless(tx chain.TransactionElement) error {
	if len(tx.Transaction.Raw) == 0 {
		return errEmptyTransaction
	}
	return nil
}

type emptyTransactionError struct{}

func (emptyTransactionError) Error() string { return "examplestate: empty transaction" }

var errEmptyTransaction = emptyTransactionError{}

//-----------------------------------------------------------------------------
// Cache: height/score snapshot with transactional overlay.

type snapshot struct {
	height int64
	score  uint64
}

func (s snapshot) Height() int64 { return s.height }
func (s snapshot) Score() uint64 { return s.score }

// txn is the CacheTransaction a sync attempt opens: Undo/Execute mutate
// it freely, only Commit publishes it back to the Cache.
type txn struct {
	snapshot
	cache *Cache
}

func (t *txn) Commit() error {
	t.cache.mu.Lock()
	t.cache.current = t.snapshot
	t.cache.mu.Unlock()
	return nil
}

func (t *txn) Discard() {}

// Cache is the in-memory chainsync.Cache implementation: current height
// and score, guarded by a mutex, with Begin() handing out a disposable
// copy for the sync attempt to mutate.
type Cache struct {
	mu      sync.Mutex
	current snapshot
}

var _ chainsync.Cache = (*Cache)(nil)

func NewCache() *Cache {
	return &Cache{}
}

func (c *Cache) Snapshot() chainsync.CacheSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Cache) Begin() chainsync.CacheTransaction {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	return &txn{snapshot: cur, cache: c}
}

//-----------------------------------------------------------------------------
// Storage: append-only in-memory block list indexed by height.

// Storage is the in-memory chainsync.Storage implementation: blocks are
// kept in a plain slice indexed by height-1, since a real append-only
// block-file format is out of scope for this pipeline.
type Storage struct {
	mu     sync.Mutex
	blocks []chain.BlockElement
}

var _ chainsync.Storage = (*Storage)(nil)

func NewStorage() *Storage {
	return &Storage{}
}

func (s *Storage) Height() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.blocks))
}

func (s *Storage) LoadRange(fromHeight, toHeight int64) ([]chain.BlockElement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fromHeight < 1 || toHeight > int64(len(s.blocks)) || fromHeight > toHeight {
		return nil, errOutOfRange
	}
	out := make([]chain.BlockElement, toHeight-fromHeight+1)
	copy(out, s.blocks[fromHeight-1:toHeight])
	return out, nil
}

func (s *Storage) DropAbove(height int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if height < 0 || height > int64(len(s.blocks)) {
		return errOutOfRange
	}
	s.blocks = s.blocks[:height]
	return nil
}

func (s *Storage) Append(blocks []chain.BlockElement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, blocks...)
	return nil
}

type outOfRangeError struct{}

func (outOfRangeError) Error() string { return "examplestate: height out of range" }

var errOutOfRange = outOfRangeError{}

//-----------------------------------------------------------------------------
// Pool: unconfirmed-transaction memory pool, ordered by arrival like
// the teacher's mempool gossip index (internal/mempool/tx.go), backed
// by the same goroutine-safe linked list (libs/clist) instead
// of the teacher's priority heap, since this pool has no gas-price
// ordering to maintain.

type poolEntry struct {
	tx         chain.TransactionElement
	insertedAt time.Time
	el         *clist.CElement
}

// Pool is the in-memory utpool.Pool implementation.
type Pool struct {
	mu      sync.Mutex
	byHash  map[string]*poolEntry
	ordered *clist.CList
}

func NewPool() *Pool {
	return &Pool{
		byHash:  make(map[string]*poolEntry),
		ordered: clist.New(),
	}
}

func (p *Pool) Insert(tx chain.TransactionElement, insertedAt time.Time) {
	key := string(tx.Hash)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byHash[key]; ok {
		return
	}
	el := p.ordered.PushBack(tx.Hash)
	p.byHash[key] = &poolEntry{tx: tx, insertedAt: insertedAt, el: el}
}

func (p *Pool) Remove(hash chain.Hash) {
	key := string(hash)
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.byHash[key]
	if !ok {
		return
	}
	delete(p.byHash, key)
	p.ordered.Remove(entry.el)
	entry.el.DetachPrev()
}

func (p *Pool) Has(hash chain.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.byHash[string(hash)]
	return ok
}

func (p *Pool) Prune(now time.Time, maxAge time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, entry := range p.byHash {
		if now.Sub(entry.insertedAt) > maxAge {
			delete(p.byHash, key)
			p.ordered.Remove(entry.el)
			entry.el.DetachPrev()
		}
	}
}

// Len reports the number of unconfirmed transactions currently held,
// read in gossip order.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ordered.Len()
}
