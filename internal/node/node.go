// Package node wires a Config, a pipeline.Collaborators, and the
// instance lock into the single long-running service cmd/nodecore
// starts and stops: the role node.Node plays here is the one
// node.Node/node.Provider play for a tendermint binary, and
// DefaultNewNode plays the role abci/example/kvstore's in-process
// application plays for a standalone run.
package node

import (
	"context"
	"time"

	"github.com/tendermint/nodecore/config"
	"github.com/tendermint/nodecore/internal/chainsync"
	"github.com/tendermint/nodecore/internal/dispatcher"
	"github.com/tendermint/nodecore/internal/examplestate"
	"github.com/tendermint/nodecore/internal/hooks"
	"github.com/tendermint/nodecore/internal/instancelock"
	"github.com/tendermint/nodecore/internal/pipeline"
	"github.com/tendermint/nodecore/internal/rollback"
	"github.com/tendermint/nodecore/libs/log"
	"github.com/tendermint/nodecore/libs/service"
	"github.com/tendermint/nodecore/pkg/chain"
)

// Provider builds a Node from a loaded Config, the way tendermint's
// node.Provider builds a *node.Node from a *cfg.Config. A binary
// embedding this package supplies its own Provider to plug in a real
// plugin manager; cmd/nodecore defaults to DefaultNewNode.
type Provider func(cfg *config.Config, logger log.Logger) (*Node, error)

// Node owns the assembled block and transaction pipelines plus the data
// directory's instance lock, and exposes the Bundle an ingest surface
// (RPC handler, test harness, embedding binary) submits work through.
type Node struct {
	service.BaseService

	logger        log.Logger
	lock          *instancelock.Lock
	assembly      *pipeline.Assembly
	bundle        hooks.Bundle
	sweepInterval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// New assembles the pipelines from cfg and collab and wires the hook
// Bundle's consumer factories against the resulting dispatchers.
// extraHandlers are appended to the chain-change fan-out alongside
// collab.ChainSyncHandlers.TransactionsChange and the UT pool's own
// reconciliation, matching spec.md §6's "additional subscribers may be
// appended."
func New(logger log.Logger, cfg *config.Config, collab pipeline.Collaborators, extraHandlers ...hooks.TransactionsChangeHandler) (*Node, error) {
	if len(extraHandlers) > 0 {
		existing := collab.ChainSyncHandlers.TransactionsChange
		collab.ChainSyncHandlers.TransactionsChange = func(info chainsync.TransactionsChangeInfo) {
			if existing != nil {
				existing(info)
			}
			for _, h := range extraHandlers {
				h(info)
			}
		}
	}

	var rollbackMetrics *rollback.Metrics
	var dispatcherMetrics *dispatcher.Metrics
	if cfg.Instrumentation.Prometheus {
		rollbackMetrics = rollback.PrometheusMetrics(cfg.Instrumentation.Namespace)
		dispatcherMetrics = dispatcher.PrometheusMetrics(cfg.Instrumentation.Namespace)
	} else {
		rollbackMetrics = rollback.NopMetrics()
		dispatcherMetrics = dispatcher.NopMetrics()
	}

	pcfg := pipeline.Config{
		BlockDispatcherOptions:       blockDispatcherOptions(cfg),
		TransactionDispatcherOptions: transactionDispatcherOptions(cfg),

		ShouldAuditDispatcherInputs:          cfg.Dispatcher.ShouldAuditDispatcherInputs,
		ShouldPrecomputeTransactionAddresses: cfg.Dispatcher.ShouldPrecomputeTransactionAddresses,

		ShortLivedCacheBlockCapacity:       cfg.Cache.ShortLivedCacheBlockCapacity,
		ShortLivedCacheBlockDuration:       cfg.Cache.ShortLivedCacheBlockDuration,
		ShortLivedCacheTransactionCapacity: cfg.Cache.ShortLivedCacheTransactionCapacity,
		ShortLivedCacheTransactionDuration: cfg.Cache.ShortLivedCacheTransactionDuration,

		ChainCheck: pipeline.ChainCheckOptions{
			MaxBlocksPerSyncAttempt: cfg.ChainSync.MaxBlocksPerSyncAttempt,
			MaxBlockFutureTime:      cfg.ChainSync.MaxBlockFutureTime,
		},
		ChainSync: chainsync.Options{MaxRollbackBlocks: cfg.ChainSync.MaxRollbackBlocks},

		RollbackRecentWindow: cfg.ChainSync.RollbackRecentWindow,

		StatelessValidationWorkers: cfg.Dispatcher.StatelessValidationWorkers,

		DataDirectory: cfg.DataDir(),
		BootTime:      time.Now(),
	}

	assembly, err := pipeline.Assemble(logger, pcfg, collab, rollbackMetrics, dispatcherMetrics)
	if err != nil {
		return nil, err
	}

	bundle := hooks.NewBuilder().
		WithBlockRangeConsumerFactory(blockRangeFactory(assembly)).
		WithCompletionAwareBlockRangeFactory(completionAwareBlockRangeFactory(assembly)).
		WithTransactionRangeConsumerFactory(transactionRangeFactory(assembly)).
		WithKnownHashPredicate(hooks.KnownHashPredicate(collab.KnownHash)).
		WithNewBlockSink(hooks.NewBlockSink(collab.NewBlockSink)).
		WithNewTransactionsSink(hooks.NewTransactionsSink(collab.NewTransactionSink)).
		Build()

	n := &Node{
		logger:        logger,
		lock:          instancelock.New(cfg.DataDir()),
		assembly:      assembly,
		bundle:        bundle,
		sweepInterval: cfg.UtPool.SweepInterval,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	n.BaseService = *service.NewBaseService(logger, "Node", n)
	return n, nil
}

// DefaultNewNode is the Provider cmd/nodecore falls back to when no
// plugin manager is wired in: it plays the same role
// abci/example/kvstore plays for an ABCI application, giving every
// out-of-scope collaborator (cache, storage, UT pool, hashing, address
// resolution, stateless validation) an in-memory implementation so the
// process can boot and run end to end.
func DefaultNewNode(cfg *config.Config, logger log.Logger) (*Node, error) {
	cache := examplestate.NewCache()
	storage := examplestate.NewStorage()
	pool := examplestate.NewPool()

	collab := pipeline.Collaborators{
		Hasher:               examplestate.Hasher{},
		AddressResolver:      examplestate.ResolveAddresses,
		BlockValidator:       examplestate.ValidateStateless,
		TransactionValidator: examplestate.ValidateStateless,

		ChainSyncHandlers: examplestate.Handlers(logger),
		Cache:             cache,
		Storage:           storage,

		UtPool:      pool,
		KnownHash:   pool.Has,
		UtValidator: examplestate.ValidateStateless,
		UtMaxAge:    cfg.UtPool.MaxAge,

		NewBlockSink: func(block chain.BlockElement, source chain.InputSource) {
			logger.Info("new block", "height", block.Block.Height, "source", source)
		},
		NewTransactionSink: func(tx chain.TransactionElement, source chain.InputSource) {
			logger.Debug("new transaction", "hash", tx.Hash, "source", source)
		},
		TransactionStatus: func(hash chain.Hash, err error) {
			logger.Debug("transaction rejected", "hash", hash, "error", err)
		},
	}

	return New(logger, cfg, collab)
}

func blockDispatcherOptions(cfg *config.Config) dispatcher.Options {
	return dispatcher.Options{
		Name:                 "block",
		RingCapacity:         cfg.Dispatcher.BlockDisruptorSize,
		ElementTraceInterval: cfg.Dispatcher.BlockElementTraceInterval,
		ShouldThrowIfFull:    cfg.Dispatcher.ShouldAbortWhenDispatcherIsFull,
	}
}

func transactionDispatcherOptions(cfg *config.Config) dispatcher.Options {
	return dispatcher.Options{
		Name:                 "transaction",
		RingCapacity:         cfg.Dispatcher.TransactionDisruptorSize,
		ElementTraceInterval: cfg.Dispatcher.TransactionElementTraceInterval,
		ShouldThrowIfFull:    cfg.Dispatcher.ShouldAbortWhenDispatcherIsFull,
	}
}

func blockRangeFactory(a *pipeline.Assembly) func(chain.InputSource) hooks.BlockRangeConsumer {
	return func(source chain.InputSource) hooks.BlockRangeConsumer {
		return func(input *chain.ConsumerInput) {
			input.Source = source
			_, _ = a.BlockDispatcher.ProcessElement(context.Background(), input)
		}
	}
}

func completionAwareBlockRangeFactory(a *pipeline.Assembly) func(chain.InputSource) hooks.CompletionAwareBlockRangeConsumer {
	return func(source chain.InputSource) hooks.CompletionAwareBlockRangeConsumer {
		return func(input *chain.ConsumerInput, callback func(chain.ElementID, chain.CompletionResult)) chain.ElementID {
			input.Source = source
			id, err := a.BlockDispatcher.ProcessElementWithCallback(context.Background(), input, callback)
			if err != nil {
				return 0
			}
			return id
		}
	}
}

func transactionRangeFactory(a *pipeline.Assembly) func(chain.InputSource) hooks.TransactionRangeConsumer {
	return func(source chain.InputSource) hooks.TransactionRangeConsumer {
		return func(input *chain.ConsumerInput) {
			input.Source = source
			_, _ = a.TransactionDispatcher.ProcessElement(context.Background(), input)
		}
	}
}

// Bundle returns the hook Bundle wired against this node's dispatchers,
// for an ingest surface to submit work through.
func (n *Node) Bundle() hooks.Bundle { return n.bundle }

// Rollback exposes the shared RollbackInfo counters for a metrics or
// admin endpoint to read.
func (n *Node) Rollback() *rollback.Info { return n.assembly.Rollback }

// OnStart acquires the data directory's instance lock and starts the UT
// pool's periodic eviction sweep. The dispatch pipelines themselves are
// already running: dispatcher.New starts their stage goroutines at
// construction time, before Node even exists.
func (n *Node) OnStart(context.Context) error {
	if err := n.lock.Acquire(); err != nil {
		return err
	}
	n.logger.Info("acquired instance lock", "path", n.lock.Path())

	go n.runUtPoolSweep()
	return nil
}

// OnStop stops the UT pool sweep, calls Stop on both dispatchers, and
// releases the instance lock. Dispatcher.Stop does not wait for
// in-flight elements, so elements still in a pipeline may finish after
// the lock is released.
func (n *Node) OnStop() {
	close(n.stopCh)
	<-n.doneCh

	n.assembly.BlockDispatcher.Stop()
	n.assembly.TransactionDispatcher.Stop()
	if err := n.lock.Release(); err != nil {
		n.logger.Error("failed to release instance lock", "error", err)
	}
}

// runUtPoolSweep periodically evicts stale UT pool entries until Stop is
// called, mirroring the BatchRangeDispatcher's own Start/Stop ticker loop.
func (n *Node) runUtPoolSweep() {
	ticker := time.NewTicker(n.sweepInterval)
	defer ticker.Stop()
	defer close(n.doneCh)

	for {
		select {
		case <-ticker.C:
			n.assembly.Updater.Prune()
		case <-n.stopCh:
			return
		}
	}
}
