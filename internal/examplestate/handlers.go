package examplestate

import (
	"github.com/tendermint/nodecore/internal/chainsync"
	"github.com/tendermint/nodecore/libs/log"
	"github.com/tendermint/nodecore/pkg/chain"
)

// Handlers builds a chainsync.Handlers bundle wired against this
// package's in-memory Cache: difficulty checking is a no-op (real
// difficulty policy belongs to the plugin manager), UndoBlock rewinds
// the transactional snapshot's height and score past each undone block,
// and Processor advances them as it walks the incoming suffix. StateChange only logs; block
// announcement to subscribers runs through pipeline.Collaborators'
// NewBlockSink instead, so the two paths don't double-announce.
func Handlers(logger log.Logger) chainsync.Handlers {
	logger = logger.With("component", "examplestate")
	return chainsync.Handlers{
		DifficultyChecker: func(chain.BlockElement, chainsync.CacheSnapshot) (bool, error) {
			return true, nil
		},
		UndoBlock: func(block chain.BlockElement, state chainsync.ObserverState) error {
			t, ok := state.(*txn)
			if !ok {
				return errUnrecognizedTransaction
			}
			t.height = block.Block.Height - 1
			t.score -= block.Block.Score
			return nil
		},
		Processor: func(block chain.BlockElement, state chainsync.CacheTransaction) error {
			t, ok := state.(*txn)
			if !ok {
				return errUnrecognizedTransaction
			}
			t.height = block.Block.Height
			t.score += block.Block.Score
			return nil
		},
		StateChange: func(info chainsync.ChangeInfo) {
			logger.Info("chain committed", "height", info.NewHeight, "score", info.NewScore)
		},
	}
}

type unrecognizedTransactionError struct{}

func (unrecognizedTransactionError) Error() string {
	return "examplestate: cache transaction not recognized by Processor"
}

var errUnrecognizedTransaction = unrecognizedTransactionError{}
