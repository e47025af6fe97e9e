package chainsync

import (
	"context"

	"github.com/pkg/errors"

	"github.com/tendermint/nodecore/internal/dispatcher"
	"github.com/tendermint/nodecore/internal/rollback"
	"github.com/tendermint/nodecore/libs/log"
	"github.com/tendermint/nodecore/pkg/chain"
)

// ErrCommonAncestorNotFound is returned when the incoming suffix's
// parent hash does not match the local chain at the only height this
// package can check it against (height H-1, immediately below the
// incoming range). Locating a fork point deeper than that requires the
// out-of-scope sync/P2P layer to have already supplied enough of the
// competing chain; this package trusts that the dispatcher only ever
// hands it a suffix whose claimed parent is checkable.
var ErrCommonAncestorNotFound = errors.New("chainsync: no common ancestor at height H-1")

// Options configures a Consumer's structural limits.
type Options struct {
	// MaxRollbackBlocks bounds how many already-committed blocks a sync
	// attempt may undo before it is rejected as too far behind.
	MaxRollbackBlocks int64
}

// Consumer is the dispatcher.Consumer that runs the block-chain-sync
// state machine described in spec.md §4.5.
type Consumer struct {
	logger   log.Logger
	handlers Handlers
	cache    Cache
	storage  Storage
	rollback *rollback.Info
	opts     Options

	state State
}

// New builds a ChainSync consumer. handlers must be fully populated;
// rollback must outlive the consumer since the sync-handler bundle only
// references it, never owns it.
func New(logger log.Logger, handlers Handlers, cache Cache, storage Storage, info *rollback.Info, opts Options) *Consumer {
	return &Consumer{
		logger:   logger.With("consumer", "ChainSync"),
		handlers: handlers,
		cache:    cache,
		storage:  storage,
		rollback: info,
		opts:     opts,
		state:    Idle,
	}
}

func (c *Consumer) Name() string { return "ChainSync" }

func (c *Consumer) setState(s State) {
	c.state = s
	c.logger.Debug("state transition", "state", s.String())
}

// State reports the consumer's current position in the state machine;
// exposed for tests, since it is otherwise private to one sync attempt.
func (c *Consumer) State() State { return c.state }

func (c *Consumer) Process(_ context.Context, input *chain.ConsumerInput) (dispatcher.Result, error) {
	if len(input.Blocks) == 0 {
		return dispatcher.ResultContinue(), nil
	}

	c.setState(Checking)
	snapshot := c.cache.Snapshot()

	for _, b := range input.Blocks {
		ok, err := c.handlers.DifficultyChecker(b, snapshot)
		if err != nil {
			c.setState(Idle)
			return dispatcher.ResultAbort(chain.AbortStatefulFailure), errors.Wrap(err, "chainsync: difficulty check")
		}
		if !ok {
			c.rollback.Reset()
			c.setState(Idle)
			return dispatcher.ResultAbort(chain.AbortStatefulFailure), nil
		}
	}

	currentHeight := snapshot.Height()
	incomingStart := input.Blocks[0].Block.Height

	ancestor, err := c.findCommonAncestor(input.Blocks[0], currentHeight, incomingStart)
	if err != nil {
		c.setState(Idle)
		return dispatcher.ResultAbort(chain.AbortStructuralFailure), err
	}

	undoCount := currentHeight - ancestor
	if undoCount > c.opts.MaxRollbackBlocks {
		// Guard: the sync is not attempted at all, so RollbackInfo is not
		// mutated — this never became a real attempt.
		c.setState(Idle)
		return dispatcher.ResultAbort(chain.AbortStructuralFailure), nil
	}

	var committed []chain.BlockElement
	if undoCount > 0 {
		committed, err = c.storage.LoadRange(ancestor+1, currentHeight)
		if err != nil {
			c.setState(Idle)
			return dispatcher.ResultAbort(chain.AbortStatefulFailure), errors.Wrap(err, "chainsync: load committed suffix")
		}
	}

	currentScore := snapshot.Score()
	candidateScore := currentScore - sumScores(committed) + sumScores(input.Blocks)
	if candidateScore <= currentScore {
		c.rollback.Reset()
		c.setState(Idle)
		return dispatcher.ResultAbort(chain.AbortNeutral), nil
	}

	txn := c.cache.Begin()

	c.setState(Undoing)
	for i := len(committed) - 1; i >= 0; i-- {
		if err := c.handlers.UndoBlock(committed[i], txn); err != nil {
			txn.Discard()
			c.rollback.Reset()
			c.setState(Idle)
			return dispatcher.ResultAbort(chain.AbortStatefulFailure), errors.Wrap(err, "chainsync: undo block")
		}
		c.rollback.RecordUndo()
	}

	c.setState(Executing)
	for _, b := range input.Blocks {
		if err := c.handlers.Processor(b, txn); err != nil {
			txn.Discard()
			c.rollback.Reset()
			c.setState(Aborting)
			c.setState(Idle)
			return dispatcher.ResultAbort(chain.AbortStatefulFailure), errors.Wrap(err, "chainsync: execute incoming suffix")
		}
	}

	c.setState(Committing)
	if err := c.storage.DropAbove(ancestor); err != nil {
		txn.Discard()
		c.rollback.Reset()
		c.setState(Idle)
		return dispatcher.ResultAbort(chain.AbortStatefulFailure), errors.Wrap(err, "chainsync: drop storage above ancestor")
	}
	if err := c.storage.Append(input.Blocks); err != nil {
		txn.Discard()
		c.rollback.Reset()
		c.setState(Idle)
		return dispatcher.ResultAbort(chain.AbortStatefulFailure), errors.Wrap(err, "chainsync: append incoming suffix")
	}
	if err := txn.Commit(); err != nil {
		c.rollback.Reset()
		c.setState(Idle)
		return dispatcher.ResultAbort(chain.AbortStatefulFailure), errors.Wrap(err, "chainsync: commit cache transaction")
	}

	scoreDelta := int64(candidateScore) - int64(currentScore)
	c.handlers.StateChange(ChangeInfo{
		NewScore:   candidateScore,
		ScoreDelta: scoreDelta,
		NewHeight:  input.Blocks[len(input.Blocks)-1].Block.Height,
		Blocks:     input.Blocks,
	})
	c.rollback.Save()

	c.handlers.TransactionsChange(TransactionsChangeInfo{
		AddedHashes:   inFlightHashes(committed, input.Blocks),
		RevertedInfos: revertedTransactions(committed),
	})

	c.setState(Idle)
	return dispatcher.ResultContinue(), nil
}

// findCommonAncestor resolves the fork point this package can check:
// whether the incoming suffix's declared parent hash matches the local
// chain at height H-1. See ErrCommonAncestorNotFound's doc comment for
// why this is the only height checkable here.
func (c *Consumer) findCommonAncestor(first chain.BlockElement, currentHeight, incomingStart int64) (int64, error) {
	ancestor := incomingStart - 1
	if ancestor > currentHeight {
		ancestor = currentHeight
	}
	if ancestor < 0 {
		return 0, ErrCommonAncestorNotFound
	}

	if ancestor > 0 && ancestor == incomingStart-1 {
		blocks, err := c.storage.LoadRange(ancestor, ancestor)
		if err != nil {
			return 0, errors.Wrap(err, "chainsync: load ancestor block")
		}
		if len(blocks) == 0 || blocks[0].Hash.String() != first.Block.PreviousHash.String() {
			return 0, ErrCommonAncestorNotFound
		}
	}

	return ancestor, nil
}

func sumScores(blocks []chain.BlockElement) uint64 {
	var total uint64
	for _, b := range blocks {
		total += b.Block.Score
	}
	return total
}

// inFlightHashes collects hashes of transactions that were in the
// discarded incoming suffix's blocks and were already known to be
// in-flight — approximated here as every transaction hash present in the
// newly committed blocks, since the UT pool is the authority on which of
// those it was already tracking.
func inFlightHashes(_ []chain.BlockElement, incoming []chain.BlockElement) []chain.Hash {
	var hashes []chain.Hash
	for _, b := range incoming {
		for _, tx := range b.Transactions {
			hashes = append(hashes, tx.Hash)
		}
	}
	return hashes
}

// revertedTransactions flattens the full transactions carried by the
// undone blocks, for UtUpdater to reinsert and revalidate.
func revertedTransactions(undone []chain.BlockElement) []chain.TransactionElement {
	var txs []chain.TransactionElement
	for _, b := range undone {
		txs = append(txs, b.Transactions...)
	}
	return txs
}
