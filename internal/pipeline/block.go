package pipeline

import (
	"context"
	"time"

	"github.com/tendermint/nodecore/internal/dispatcher"
	"github.com/tendermint/nodecore/internal/workerpool"
	"github.com/tendermint/nodecore/pkg/chain"
)

// BlockHashCalculator computes each incoming block's hash and, for every
// transaction it carries, that transaction's hash — a pure function of
// the bytes the range arrived with.
type BlockHashCalculator struct {
	hasher Hasher
}

func NewBlockHashCalculator(hasher Hasher) *BlockHashCalculator {
	return &BlockHashCalculator{hasher: hasher}
}

func (c *BlockHashCalculator) Name() string { return "HashCalculator" }

func (c *BlockHashCalculator) Process(_ context.Context, input *chain.ConsumerInput) (dispatcher.Result, error) {
	for i := range input.Blocks {
		b := &input.Blocks[i]
		b.Hash = c.hasher.HashBlock(b)
		for j := range b.Transactions {
			tx := &b.Transactions[j]
			tx.Hash = c.hasher.HashTransaction(tx)
		}
	}
	return dispatcher.ResultContinue(), nil
}

// BlockHashCheck rejects a block range whose hash has already been seen
// within the configured short-lived window.
type BlockHashCheck struct {
	cache HashCache
}

func NewBlockHashCheck(cache HashCache) *BlockHashCheck {
	return &BlockHashCheck{cache: cache}
}

func (c *BlockHashCheck) Name() string { return "HashCheck" }

func (c *BlockHashCheck) Process(_ context.Context, input *chain.ConsumerInput) (dispatcher.Result, error) {
	for _, b := range input.Blocks {
		if c.cache.CheckAndInsert(b.Hash) {
			return dispatcher.ResultAbort(chain.AbortNeutral), nil
		}
	}
	return dispatcher.ResultContinue(), nil
}

// AddressExtractor resolves and records addresses for every transaction
// carried by the input, whether at the top level (transaction pipeline)
// or nested in blocks (block pipeline). Enabled only when
// ShouldPrecomputeTransactionAddresses is configured, per spec.md §4.3.3
// / §4.4.3 — construction is unconditional, wiring it into a pipeline is
// the opt-in.
type AddressExtractor struct {
	resolve AddressResolver
}

func NewAddressExtractor(resolve AddressResolver) *AddressExtractor {
	return &AddressExtractor{resolve: resolve}
}

func (c *AddressExtractor) Name() string { return "AddressExtractor" }

func (c *AddressExtractor) Process(_ context.Context, input *chain.ConsumerInput) (dispatcher.Result, error) {
	for i := range input.Blocks {
		for j := range input.Blocks[i].Transactions {
			tx := &input.Blocks[i].Transactions[j]
			tx.Addresses = c.resolve(*tx)
		}
	}
	for i := range input.Transactions {
		tx := &input.Transactions[i]
		tx.Addresses = c.resolve(*tx)
	}
	return dispatcher.ResultContinue(), nil
}

// ChainCheckOptions bounds the structural limits ChainCheck enforces.
type ChainCheckOptions struct {
	MaxBlocksPerSyncAttempt int
	MaxBlockFutureTime      time.Duration
}

// ChainCheck enforces the block pipeline's structural limits: range
// size, height contiguity, and future-timestamp tolerance.
type ChainCheck struct {
	opts ChainCheckOptions
	now  TimeSource
}

func NewChainCheck(opts ChainCheckOptions, now TimeSource) *ChainCheck {
	return &ChainCheck{opts: opts, now: now}
}

func (c *ChainCheck) Name() string { return "ChainCheck" }

func (c *ChainCheck) Process(_ context.Context, input *chain.ConsumerInput) (dispatcher.Result, error) {
	blocks := input.Blocks
	if len(blocks) == 0 {
		return dispatcher.ResultContinue(), nil
	}

	if c.opts.MaxBlocksPerSyncAttempt > 0 && len(blocks) > c.opts.MaxBlocksPerSyncAttempt {
		return dispatcher.ResultAbort(chain.AbortStructuralFailure), nil
	}

	for i := 1; i < len(blocks); i++ {
		if blocks[i].Block.Height != blocks[i-1].Block.Height+1 {
			return dispatcher.ResultAbort(chain.AbortStructuralFailure), nil
		}
	}

	deadline := c.now().Add(c.opts.MaxBlockFutureTime)
	for _, b := range blocks {
		if b.Block.Timestamp.After(deadline) {
			return dispatcher.ResultAbort(chain.AbortStructuralFailure), nil
		}
	}

	return dispatcher.ResultContinue(), nil
}

// StatelessValidation fans transaction validation out across an isolated
// worker pool. The block variant validates transactions nested in blocks
// and aborts the whole element on any failure; the transaction variant
// validates top-level transactions and drops only the failing ones.
type StatelessValidation struct {
	validate       StatelessValidator
	pool           *workerpool.Pool
	status         StatusSink
	abortOnFailure bool
}

// NewBlockStatelessValidation builds the block pipeline's variant: any
// transaction failure aborts the whole range, since an invalid
// transaction inside a block makes the block itself unacceptable.
func NewBlockStatelessValidation(validate StatelessValidator, pool *workerpool.Pool) *StatelessValidation {
	return &StatelessValidation{validate: validate, pool: pool, abortOnFailure: true}
}

// NewTransactionStatelessValidation builds the transaction pipeline's
// variant: a failing transaction is reported individually and dropped;
// the rest of the range continues, per spec.md §4.4.4.
func NewTransactionStatelessValidation(validate StatelessValidator, pool *workerpool.Pool, status StatusSink) *StatelessValidation {
	return &StatelessValidation{validate: validate, pool: pool, status: status, abortOnFailure: false}
}

func (c *StatelessValidation) Name() string { return "StatelessValidation" }

func (c *StatelessValidation) Process(ctx context.Context, input *chain.ConsumerInput) (dispatcher.Result, error) {
	if c.abortOnFailure {
		var tasks []workerpool.Task
		for i := range input.Blocks {
			for j := range input.Blocks[i].Transactions {
				tx := input.Blocks[i].Transactions[j]
				tasks = append(tasks, func(context.Context) error { return c.validate(tx) })
			}
		}
		if err := c.pool.RunAll(ctx, tasks); err != nil {
			return dispatcher.ResultAbort(chain.AbortStatelessFailure), nil
		}
		return dispatcher.ResultContinue(), nil
	}

	type outcome struct {
		hash chain.Hash
		err  error
	}
	outcomes := make([]outcome, len(input.Transactions))
	tasks := make([]workerpool.Task, len(input.Transactions))
	for i := range input.Transactions {
		i := i
		tx := input.Transactions[i]
		tasks[i] = func(context.Context) error {
			outcomes[i] = outcome{hash: tx.Hash, err: c.validate(tx)}
			return nil
		}
	}
	_ = c.pool.RunAll(ctx, tasks)

	var survivors []chain.TransactionElement
	for i, o := range outcomes {
		if o.err != nil {
			if c.status != nil {
				c.status(o.hash, o.err)
			}
			continue
		}
		survivors = append(survivors, input.Transactions[i])
	}
	input.Transactions = survivors

	return dispatcher.ResultContinue(), nil
}

// NewBlockAnnounce forwards a committed block to the new-block sink,
// tagged Local when the block was produced by this node, otherwise
// carrying the input's original source.
type NewBlockAnnounce struct {
	sink NewBlockSink
}

func NewNewBlockAnnounce(sink NewBlockSink) *NewBlockAnnounce {
	return &NewBlockAnnounce{sink: sink}
}

func (c *NewBlockAnnounce) Name() string { return "NewBlockAnnounce" }

func (c *NewBlockAnnounce) Process(_ context.Context, input *chain.ConsumerInput) (dispatcher.Result, error) {
	for _, b := range input.Blocks {
		c.sink(b, input.Source)
	}
	return dispatcher.ResultComplete(), nil
}
