package commands

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/tendermint/nodecore/internal/instancelock"
	"github.com/tendermint/nodecore/internal/node"
	ncos "github.com/tendermint/nodecore/libs/os"
)

// AddNodeFlags exposes configuration knobs embedding binaries (or
// operators) commonly want on the command line, layered over whatever
// config.toml and the environment already set.
func AddNodeFlags(cmd *cobra.Command) {
	cmd.Flags().Int("dispatcher.block_disruptor_size", conf.Dispatcher.BlockDisruptorSize, "block dispatcher ring capacity")
	cmd.Flags().Int("dispatcher.transaction_disruptor_size", conf.Dispatcher.TransactionDisruptorSize, "transaction dispatcher ring capacity")
	cmd.Flags().Bool("dispatcher.should_abort_when_dispatcher_is_full", conf.Dispatcher.ShouldAbortWhenDispatcherIsFull, "reject submissions instead of blocking when a dispatcher is full")
	cmd.Flags().Int64("chainsync.max_rollback_blocks", conf.ChainSync.MaxRollbackBlocks, "max already-committed blocks a sync attempt may undo")
	cmd.Flags().Bool("instrumentation.prometheus", conf.Instrumentation.Prometheus, "expose Prometheus metrics")
	cmd.Flags().String("instrumentation.prometheus_listen_addr", conf.Instrumentation.PrometheusListenAddr, "Prometheus listen address")
}

// NewRunNodeCmd returns the "start" command, parameterized over how to
// build the Node: an embedding binary can supply its own node.Provider
// wired to a real plugin manager instead of node.DefaultNewNode.
//
// A failure to acquire the data directory's instance lock exits -3; any
// other failure to construct or start the node exits -2, matching
// cmd/nodecore's main-level exit code policy (config load failures exit
// -1 from RootCmd's PersistentPreRunE instead).
func NewRunNodeCmd(nodeProvider node.Provider) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"node", "run"},
		Short:   "Run the nodecore ingest-and-apply pipeline",
		Run: func(cmd *cobra.Command, args []string) {
			n, err := nodeProvider(conf, logger)
			if err != nil {
				logger.Error("failed to create node", "error", err)
				os.Exit(-2)
			}

			if err := n.Start(context.Background()); err != nil {
				if errors.Is(err, instancelock.ErrAlreadyLocked) {
					logger.Error("failed to acquire instance lock", "error", err)
					os.Exit(-3)
				}
				logger.Error("failed to start node", "error", err)
				os.Exit(-2)
			}

			logger.Info("started node", "node", n.String())

			ncos.TrapSignal(logger, func() {
				if n.IsRunning() {
					if err := n.Stop(); err != nil {
						logger.Error("unable to stop node", "error", err)
					}
				}
			})

			select {}
		},
	}

	AddNodeFlags(cmd)
	return cmd
}
