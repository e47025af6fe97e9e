package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	ncos "github.com/tendermint/nodecore/libs/os"
)

// defaultDirPerm is the default permissions used when creating directories.
const defaultDirPerm = 0700

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate")
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

/****** these are for production settings ***********/

// EnsureRoot creates the root, config, and data directories if they don't exist,
// and panics if it fails.
func EnsureRoot(rootDir string) {
	if err := ncos.EnsureDir(rootDir, defaultDirPerm); err != nil {
		panic(err.Error())
	}
	if err := ncos.EnsureDir(filepath.Join(rootDir, defaultConfigDir), defaultDirPerm); err != nil {
		panic(err.Error())
	}
	if err := ncos.EnsureDir(filepath.Join(rootDir, defaultDataDir), defaultDirPerm); err != nil {
		panic(err.Error())
	}
}

// WriteConfigFile renders config using the template and writes it to configFilePath.
// This function is called by cmd/nodecore's init command.
func WriteConfigFile(rootDir string, config *Config) error {
	return config.WriteToTemplate(filepath.Join(rootDir, defaultConfigFilePath))
}

// WriteToTemplate writes the config to the exact file specified by
// the path, in the default toml template and does not mangle the path
// or filename at all.
func (cfg *Config) WriteToTemplate(path string) error {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, cfg); err != nil {
		return err
	}

	return writeFile(path, buffer.Bytes(), 0644)
}

func writeDefaultConfigFileIfNone(rootDir string) error {
	configFilePath := filepath.Join(rootDir, defaultConfigFilePath)
	if !ncos.FileExists(configFilePath) {
		return WriteConfigFile(rootDir, DefaultConfig())
	}
	return nil
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# NOTE: Any path below can be absolute (e.g. "/var/lib/nodecore/data") or
# relative to the home directory (e.g. "data"). The home directory is
# "$HOME/.nodecore" by default, but could be changed via the --home flag.

#######################################################################
###                   Main Base Config Options                      ###
#######################################################################

# DataDirectory is where the audit consumer and instance lock write.
data_dir = "{{ js .BaseConfig.DataDirectory }}"

# Output level for logging ("debug", "info", "error", ...)
log_level = "{{ .BaseConfig.LogLevel }}"

# Output format: 'plain' (colored text) or 'json'
log_format = "{{ .BaseConfig.LogFormat }}"

#######################################################
###       Dispatcher Configuration Options          ###
#######################################################
[dispatcher]

# Ring buffer capacity for the block ConsumerDispatcher.
block_disruptor_size = {{ .Dispatcher.BlockDisruptorSize }}

# Ring buffer capacity for the transaction ConsumerDispatcher.
transaction_disruptor_size = {{ .Dispatcher.TransactionDisruptorSize }}

# How often (in elements) the block dispatcher logs a throughput trace.
block_element_trace_interval = {{ .Dispatcher.BlockElementTraceInterval }}

# How often (in elements) the transaction dispatcher logs a throughput trace.
transaction_element_trace_interval = {{ .Dispatcher.TransactionElementTraceInterval }}

# If true, submission to a full ring returns an error immediately instead
# of blocking the submitter until space frees up.
should_abort_when_dispatcher_is_full = {{ .Dispatcher.ShouldAbortWhenDispatcherIsFull }}

# If true, every element entering either dispatcher is persisted to
# data_dir before being handed to consumers, for offline replay.
should_audit_dispatcher_inputs = {{ .Dispatcher.ShouldAuditDispatcherInputs }}

# If true, sender/recipient addresses are resolved once up front and
# cached on the element instead of being recomputed by each consumer.
should_precompute_transaction_addresses = {{ .Dispatcher.ShouldPrecomputeTransactionAddresses }}

# Number of goroutines in the isolated pool that runs stateless
# block/transaction validation.
stateless_validation_workers = {{ .Dispatcher.StatelessValidationWorkers }}

# Flush period for the transaction batch-range dispatcher.
transaction_batch_interval = "{{ .Dispatcher.TransactionBatchInterval }}"

#######################################################
###       Chain Sync Configuration Options          ###
#######################################################
[chainsync]

# Maximum number of blocks accepted in a single contiguous extension
# before the sync attempt is cut off.
max_blocks_per_sync_attempt = {{ .ChainSync.MaxBlocksPerSyncAttempt }}

# How far into the future a block's timestamp may be before it's rejected.
max_block_future_time = "{{ .ChainSync.MaxBlockFutureTime }}"

# Maximum number of blocks a single reorg may roll back before it's
# treated as a chain break instead of a normal reorg.
max_rollback_blocks = {{ .ChainSync.MaxRollbackBlocks }}

# Window used by RollbackInfo's "recent" rollback counters.
rollback_recent_window = "{{ .ChainSync.RollbackRecentWindow }}"

#######################################################
###         Cache Configuration Options             ###
#######################################################
[cache]

# Capacity of the short-lived seen-block-hash cache.
short_lived_cache_block_capacity = {{ .Cache.ShortLivedCacheBlockCapacity }}

# Expiry for entries in the seen-block-hash cache.
short_lived_cache_block_duration = "{{ .Cache.ShortLivedCacheBlockDuration }}"

# Capacity of the short-lived seen-transaction-hash cache.
short_lived_cache_transaction_capacity = {{ .Cache.ShortLivedCacheTransactionCapacity }}

# Expiry for entries in the seen-transaction-hash cache.
short_lived_cache_transaction_duration = "{{ .Cache.ShortLivedCacheTransactionDuration }}"

#######################################################
###         UT Pool Configuration Options           ###
#######################################################
[utpool]

# Maximum age an unconfirmed transaction may reach before the
# supplemental eviction sweep discards it.
max_age = "{{ .UtPool.MaxAge }}"

# How often the supplemental eviction sweep runs.
sweep_interval = "{{ .UtPool.SweepInterval }}"

#######################################################
###       Instrumentation Configuration Options     ###
#######################################################
[instrumentation]

# When true, dispatcher and rollback metrics are registered with the
# default Prometheus registry. The node starts no HTTP listener for them.
prometheus = {{ .Instrumentation.Prometheus }}

# Address for Prometheus collector(s) connections. The node does not
# listen on it.
prometheus_listen_addr = "{{ .Instrumentation.PrometheusListenAddr }}"

# Instrumentation namespace.
namespace = "{{ .Instrumentation.Namespace }}"
`

/****** these are for test settings ***********/

// ResetTestRoot creates a unique, concurrency-safe test directory under
// dir (os.TempDir() when dir is empty), writes a default config into it,
// and returns a Config rooted there.
func ResetTestRoot(dir, testName string) (*Config, error) {
	rootDir, err := os.MkdirTemp(dir, fmt.Sprintf("%s_", testName))
	if err != nil {
		return nil, err
	}
	if err := ncos.EnsureDir(filepath.Join(rootDir, defaultConfigDir), defaultDirPerm); err != nil {
		return nil, err
	}
	if err := ncos.EnsureDir(filepath.Join(rootDir, defaultDataDir), defaultDirPerm); err != nil {
		return nil, err
	}

	if err := writeDefaultConfigFileIfNone(rootDir); err != nil {
		return nil, err
	}

	config := TestConfig().SetRoot(rootDir)
	return config, nil
}

func writeFile(filePath string, contents []byte, mode os.FileMode) error {
	if err := os.WriteFile(filePath, contents, mode); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
