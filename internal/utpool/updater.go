// Package utpool implements UtUpdater, the unconfirmed-transaction
// pool's single writer: it keeps the pool consistent with the chain
// whenever new transactions arrive or the chain itself changes.
package utpool

import (
	"sync"
	"time"

	"github.com/tendermint/nodecore/libs/log"
	"github.com/tendermint/nodecore/pkg/chain"
)

// Pool is the out-of-scope unconfirmed-transaction memory pool this
// package is the sole writer for.
type Pool interface {
	Insert(tx chain.TransactionElement, insertedAt time.Time)
	Remove(hash chain.Hash)
	Has(hash chain.Hash) bool
	// Prune evicts entries older than maxAge relative to now.
	Prune(now time.Time, maxAge time.Duration)
}

// Validator runs stateful validation against a read-only cache snapshot.
type Validator func(tx chain.TransactionElement) error

// StatusNotifier reports a per-transaction outcome to the
// transaction-status subscriber, e.g. when a submitted transaction fails
// stateful validation.
type StatusNotifier func(hash chain.Hash, err error)

// Throttle decides whether a transaction is admitted at all, independent
// of validity — e.g. a per-account in-flight limit. Returning false
// means the transaction is dropped without a status notification,
// matching spec.md's "admission policy... expressed by configured
// validators and throttle" framing.
type Throttle func(tx chain.TransactionElement) bool

// Updater is the UT pool's single writer. All Update calls are
// serialized by mu, satisfying spec.md §4.6's ordering requirement that
// the updater is the pool's one writer.
type Updater struct {
	mu sync.Mutex

	logger   log.Logger
	pool     Pool
	validate Validator
	notify   StatusNotifier
	throttle Throttle
	now      func() time.Time
	maxAge   time.Duration
}

// Options configures an Updater.
type Options struct {
	Throttle Throttle
	MaxAge   time.Duration
	Now      func() time.Time
}

// New builds an Updater. A nil Throttle admits everything.
func New(logger log.Logger, pool Pool, validate Validator, notify StatusNotifier, opts Options) *Updater {
	if opts.Throttle == nil {
		opts.Throttle = func(chain.TransactionElement) bool { return true }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Updater{
		logger:   logger.With("component", "ut_updater"),
		pool:     pool,
		validate: validate,
		notify:   notify,
		throttle: opts.Throttle,
		now:      opts.Now,
		maxAge:   opts.MaxAge,
	}
}

// UpdateNew admits newly arrived transactions: throttle, then stateful
// validation, inserting valid ones and notifying the status subscriber
// of the rest.
func (u *Updater) UpdateNew(txs []chain.TransactionElement) {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now()
	for _, tx := range txs {
		if !u.throttle(tx) {
			continue
		}
		if err := u.validate(tx); err != nil {
			if u.notify != nil {
				u.notify(tx.Hash, err)
			}
			continue
		}
		u.pool.Insert(tx, now)
	}
}

// UpdateChain reconciles the pool with a chain change: addedHashes are
// now confirmed and are removed; revertedInfos are unconfirmed again and
// are revalidated and reinserted exactly like new arrivals.
func (u *Updater) UpdateChain(addedHashes []chain.Hash, revertedInfos []chain.TransactionElement) {
	u.mu.Lock()
	for _, h := range addedHashes {
		u.pool.Remove(h)
	}
	u.mu.Unlock()

	u.UpdateNew(revertedInfos)
}

// Prune sweeps entries older than the configured max age out of the
// pool. Supplemental behavior from the original system (see DESIGN.md):
// the distilled spec names admission policy as out of scope but says
// nothing about eviction of stale entries, which is resource management,
// not policy.
func (u *Updater) Prune() {
	if u.maxAge <= 0 {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pool.Prune(u.now(), u.maxAge)
}
