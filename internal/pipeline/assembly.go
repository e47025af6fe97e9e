package pipeline

import (
	"time"

	"github.com/tendermint/nodecore/internal/chainsync"
	"github.com/tendermint/nodecore/internal/dispatcher"
	"github.com/tendermint/nodecore/internal/hashcache"
	"github.com/tendermint/nodecore/internal/rollback"
	"github.com/tendermint/nodecore/internal/utpool"
	"github.com/tendermint/nodecore/internal/workerpool"
	"github.com/tendermint/nodecore/libs/log"
)

// Config is the subset of node configuration PipelineAssembly consumes
// to build both dispatchers in the order spec.md §4.3/§4.4 require.
type Config struct {
	BlockDispatcherOptions       dispatcher.Options
	TransactionDispatcherOptions dispatcher.Options

	ShouldAuditDispatcherInputs          bool
	ShouldPrecomputeTransactionAddresses bool

	ShortLivedCacheBlockCapacity       int
	ShortLivedCacheBlockDuration       time.Duration
	ShortLivedCacheTransactionCapacity int
	ShortLivedCacheTransactionDuration time.Duration

	ChainCheck ChainCheckOptions
	ChainSync  chainsync.Options

	RollbackRecentWindow time.Duration

	StatelessValidationWorkers int

	DataDirectory string
	BootTime      time.Time
}

// Collaborators bundles every external dependency PipelineAssembly wires
// the consumers to.
type Collaborators struct {
	Hasher               Hasher
	AddressResolver      AddressResolver
	BlockValidator       StatelessValidator
	TransactionValidator StatelessValidator

	ChainSyncHandlers chainsync.Handlers
	Cache             chainsync.Cache
	Storage           chainsync.Storage

	UtPool      utpool.Pool
	KnownHash   KnownHashPredicate
	UtValidator utpool.Validator
	UtThrottle  utpool.Throttle
	UtMaxAge    time.Duration

	NewBlockSink       NewBlockSink
	NewTransactionSink NewTransactionSink
	TransactionStatus  StatusSink

	Now TimeSource
}

// Assembly holds the two constructed dispatchers and the shared
// RollbackInfo/UtUpdater instances a node wires into its service group.
type Assembly struct {
	BlockDispatcher       *dispatcher.Dispatcher
	TransactionDispatcher *dispatcher.Dispatcher
	Rollback              *rollback.Info
	Updater               *utpool.Updater
}

// Assemble builds both pipelines. logger is the root logger each
// dispatcher and consumer derives a named child from.
func Assemble(logger log.Logger, cfg Config, collab Collaborators, rollbackMetrics *rollback.Metrics, dispatcherMetrics *dispatcher.Metrics) (*Assembly, error) {
	now := collab.Now
	if now == nil {
		now = time.Now
	}

	info := rollback.New(cfg.RollbackRecentWindow, now, rollbackMetrics)

	pool := workerpool.New(cfg.StatelessValidationWorkers)

	blockCache := hashcache.New(cfg.ShortLivedCacheBlockCapacity, cfg.ShortLivedCacheBlockDuration)
	txCache := hashcache.New(cfg.ShortLivedCacheTransactionCapacity, cfg.ShortLivedCacheTransactionDuration)

	updater := utpool.New(logger, collab.UtPool, collab.UtValidator, nil, utpool.Options{
		Throttle: collab.UtThrottle,
		MaxAge:   collab.UtMaxAge,
		Now:      now,
	})
	collab.ChainSyncHandlers.TransactionsChange = wrapTransactionsChange(collab.ChainSyncHandlers.TransactionsChange, updater)

	blockConsumers := []dispatcher.Consumer{
		NewBlockHashCalculator(collab.Hasher),
		NewBlockHashCheck(blockCache),
	}
	if cfg.ShouldPrecomputeTransactionAddresses {
		blockConsumers = append(blockConsumers, NewAddressExtractor(collab.AddressResolver))
	}
	blockConsumers = append(blockConsumers,
		NewChainCheck(cfg.ChainCheck, now),
		NewBlockStatelessValidation(collab.BlockValidator, pool),
		chainsync.New(logger, collab.ChainSyncHandlers, collab.Cache, collab.Storage, info, cfg.ChainSync),
		NewNewBlockAnnounce(collab.NewBlockSink),
	)
	if cfg.ShouldAuditDispatcherInputs {
		audit, err := dispatcher.NewAuditConsumer(cfg.DataDirectory, cfg.BlockDispatcherOptions.Name, cfg.BootTime)
		if err != nil {
			return nil, err
		}
		blockConsumers = append([]dispatcher.Consumer{audit}, blockConsumers...)
	}

	txConsumers := []dispatcher.Consumer{
		NewTransactionHashCalculator(collab.Hasher),
		NewTransactionHashCheck(txCache, collab.KnownHash),
	}
	if cfg.ShouldPrecomputeTransactionAddresses {
		txConsumers = append(txConsumers, NewAddressExtractor(collab.AddressResolver))
	}
	txConsumers = append(txConsumers,
		NewTransactionStatelessValidation(collab.TransactionValidator, pool, collab.TransactionStatus),
		NewNewTransactions(collab.NewTransactionSink, updater),
	)
	if cfg.ShouldAuditDispatcherInputs {
		audit, err := dispatcher.NewAuditConsumer(cfg.DataDirectory, cfg.TransactionDispatcherOptions.Name, cfg.BootTime)
		if err != nil {
			return nil, err
		}
		txConsumers = append([]dispatcher.Consumer{audit}, txConsumers...)
	}

	blockDispatcher := dispatcher.New(logger, cfg.BlockDispatcherOptions, blockConsumers, nil, dispatcherMetrics)
	txDispatcher := dispatcher.New(logger, cfg.TransactionDispatcherOptions, txConsumers, nil, dispatcherMetrics)

	return &Assembly{
		BlockDispatcher:       blockDispatcher,
		TransactionDispatcher: txDispatcher,
		Rollback:              info,
		Updater:               updater,
	}, nil
}

// wrapTransactionsChange composes any caller-supplied TransactionsChange
// hook with the UT updater's own reconciliation, so both run on every
// chain change.
func wrapTransactionsChange(existing func(chainsync.TransactionsChangeInfo), updater *utpool.Updater) func(chainsync.TransactionsChangeInfo) {
	return func(info chainsync.TransactionsChangeInfo) {
		updater.UpdateChain(info.AddedHashes, info.RevertedInfos)
		if existing != nil {
			existing(info)
		}
	}
}
