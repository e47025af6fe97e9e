package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

const (
	// LogFormatPlain is a format for colored text.
	LogFormatPlain = "plain"
	// LogFormatJSON is a format for json output.
	LogFormatJSON = "json"
)

// NOTE: Config's fields and the default configuration options are used to
// manually generate config.toml. Reflect any changes made here in
// defaultConfigTemplate in config/toml.go.
var (
	DefaultHomeDir   = ".nodecore"
	defaultConfigDir = "config"
	defaultDataDir   = "data"

	defaultConfigFileName = "config.toml"
)

var defaultConfigFilePath = filepath.Join(defaultConfigDir, defaultConfigFileName)

// Config is the top-level configuration for a nodecore process.
type Config struct {
	BaseConfig `mapstructure:",squash"`

	Dispatcher *DispatcherConfig `mapstructure:"dispatcher"`
	ChainSync  *ChainSyncConfig  `mapstructure:"chainsync"`
	Cache      *CacheConfig      `mapstructure:"cache"`
	UtPool     *UtPoolConfig     `mapstructure:"utpool"`

	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
}

// DefaultConfig returns a default configuration for a nodecore process.
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		Dispatcher:      DefaultDispatcherConfig(),
		ChainSync:       DefaultChainSyncConfig(),
		Cache:           DefaultCacheConfig(),
		UtPool:          DefaultUtPoolConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration tuned for fast, deterministic tests.
func TestConfig() *Config {
	return &Config{
		BaseConfig:      TestBaseConfig(),
		Dispatcher:      TestDispatcherConfig(),
		ChainSync:       TestChainSyncConfig(),
		Cache:           TestCacheConfig(),
		UtPool:          TestUtPoolConfig(),
		Instrumentation: TestInstrumentationConfig(),
	}
}

// SetRoot sets the RootDir for every sub-config that carries one.
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	return cfg
}

// ValidateBasic checks param bounds across every section, matching the
// teacher's per-section error-wrapping convention.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.Dispatcher.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [dispatcher] section")
	}
	if err := cfg.ChainSync.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [chainsync] section")
	}
	if err := cfg.Cache.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [cache] section")
	}
	if err := cfg.UtPool.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [utpool] section")
	}
	return errors.Wrap(cfg.Instrumentation.ValidateBasic(), "error in [instrumentation] section")
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig holds process-wide settings that don't belong to any one
// pipeline component.
type BaseConfig struct {
	// RootDir is the root directory for all data. Set by viper so it can
	// unmarshal into this struct.
	RootDir string `mapstructure:"home"`

	// DataDirectory is where the audit consumer and instance lock write,
	// relative to RootDir unless absolute.
	DataDirectory string `mapstructure:"data_dir"`

	// LogLevel is the zerolog level name ("debug", "info", "error", ...).
	LogLevel string `mapstructure:"log_level"`

	// LogFormat selects 'plain' (colored console text) or 'json'.
	LogFormat string `mapstructure:"log_format"`
}

// DefaultBaseConfig returns sensible process-wide defaults.
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		DataDirectory: defaultDataDir,
		LogLevel:      "info",
		LogFormat:     LogFormatPlain,
	}
}

// TestBaseConfig returns base settings tuned for tests.
func TestBaseConfig() BaseConfig {
	cfg := DefaultBaseConfig()
	cfg.LogLevel = "error"
	return cfg
}

// DataDir returns the full path to the data directory.
func (cfg BaseConfig) DataDir() string {
	return rootify(cfg.DataDirectory, cfg.RootDir)
}

// ValidateBasic performs basic validation and returns an error if any
// check fails.
func (cfg BaseConfig) ValidateBasic() error {
	switch cfg.LogFormat {
	case LogFormatPlain, LogFormatJSON:
	default:
		return errors.New("unknown log_format (must be 'plain' or 'json')")
	}
	return nil
}

//-----------------------------------------------------------------------------
// DispatcherConfig

// DispatcherConfig configures both the block and transaction
// ConsumerDispatchers, per spec.md §6's configuration-input list.
type DispatcherConfig struct {
	BlockDisruptorSize       int `mapstructure:"block_disruptor_size"`
	TransactionDisruptorSize int `mapstructure:"transaction_disruptor_size"`

	BlockElementTraceInterval       int `mapstructure:"block_element_trace_interval"`
	TransactionElementTraceInterval int `mapstructure:"transaction_element_trace_interval"`

	ShouldAbortWhenDispatcherIsFull bool `mapstructure:"should_abort_when_dispatcher_is_full"`
	ShouldAuditDispatcherInputs     bool `mapstructure:"should_audit_dispatcher_inputs"`

	ShouldPrecomputeTransactionAddresses bool `mapstructure:"should_precompute_transaction_addresses"`

	// StatelessValidationWorkers sizes the isolated worker pool
	// StatelessValidation fans out to (supplemental input, §4.3/§4.4).
	StatelessValidationWorkers int `mapstructure:"stateless_validation_workers"`

	// TransactionBatchInterval is the BatchRangeDispatcher's flush
	// ticker period (supplemental input, §4.2).
	TransactionBatchInterval time.Duration `mapstructure:"transaction_batch_interval"`
}

// DefaultDispatcherConfig returns production-sized defaults.
func DefaultDispatcherConfig() *DispatcherConfig {
	return &DispatcherConfig{
		BlockDisruptorSize:                   4096,
		TransactionDisruptorSize:             8192,
		BlockElementTraceInterval:            1000,
		TransactionElementTraceInterval:      1000,
		ShouldAbortWhenDispatcherIsFull:      false,
		ShouldAuditDispatcherInputs:          false,
		ShouldPrecomputeTransactionAddresses: true,
		StatelessValidationWorkers:           8,
		TransactionBatchInterval:             200 * time.Millisecond,
	}
}

// TestDispatcherConfig returns a small, fast-failing configuration for
// tests: a small ring that rejects rather than blocks makes backpressure
// scenarios exercisable without timeouts.
func TestDispatcherConfig() *DispatcherConfig {
	cfg := DefaultDispatcherConfig()
	cfg.BlockDisruptorSize = 16
	cfg.TransactionDisruptorSize = 16
	cfg.BlockElementTraceInterval = 1
	cfg.TransactionElementTraceInterval = 1
	cfg.ShouldAbortWhenDispatcherIsFull = true
	cfg.StatelessValidationWorkers = 2
	cfg.TransactionBatchInterval = 10 * time.Millisecond
	return cfg
}

// ValidateBasic checks param bounds.
func (cfg *DispatcherConfig) ValidateBasic() error {
	if cfg.BlockDisruptorSize <= 0 {
		return errors.New("block_disruptor_size must be positive")
	}
	if cfg.TransactionDisruptorSize <= 0 {
		return errors.New("transaction_disruptor_size must be positive")
	}
	if cfg.BlockElementTraceInterval < 0 {
		return errors.New("block_element_trace_interval can't be negative")
	}
	if cfg.TransactionElementTraceInterval < 0 {
		return errors.New("transaction_element_trace_interval can't be negative")
	}
	if cfg.StatelessValidationWorkers <= 0 {
		return errors.New("stateless_validation_workers must be positive")
	}
	if cfg.TransactionBatchInterval <= 0 {
		return errors.New("transaction_batch_interval must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// ChainSyncConfig

// ChainSyncConfig bounds the block pipeline's structural limits.
type ChainSyncConfig struct {
	MaxBlocksPerSyncAttempt int           `mapstructure:"max_blocks_per_sync_attempt"`
	MaxBlockFutureTime      time.Duration `mapstructure:"max_block_future_time"`
	MaxRollbackBlocks       int64         `mapstructure:"max_rollback_blocks"`

	// RollbackRecentWindow bounds RollbackInfo's Recent counter family.
	RollbackRecentWindow time.Duration `mapstructure:"rollback_recent_window"`
}

// DefaultChainSyncConfig returns production-sized defaults.
func DefaultChainSyncConfig() *ChainSyncConfig {
	return &ChainSyncConfig{
		MaxBlocksPerSyncAttempt: 500,
		MaxBlockFutureTime:      10 * time.Second,
		MaxRollbackBlocks:       100,
		RollbackRecentWindow:    10 * time.Minute,
	}
}

// TestChainSyncConfig returns a configuration for chain-sync tests.
func TestChainSyncConfig() *ChainSyncConfig {
	cfg := DefaultChainSyncConfig()
	cfg.MaxBlocksPerSyncAttempt = 10
	cfg.MaxRollbackBlocks = 5
	cfg.RollbackRecentWindow = time.Minute
	return cfg
}

// ValidateBasic checks param bounds.
func (cfg *ChainSyncConfig) ValidateBasic() error {
	if cfg.MaxBlocksPerSyncAttempt <= 0 {
		return errors.New("max_blocks_per_sync_attempt must be positive")
	}
	if cfg.MaxBlockFutureTime < 0 {
		return errors.New("max_block_future_time can't be negative")
	}
	if cfg.MaxRollbackBlocks < 0 {
		return errors.New("max_rollback_blocks can't be negative")
	}
	if cfg.RollbackRecentWindow <= 0 {
		return errors.New("rollback_recent_window must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// CacheConfig

// CacheConfig sizes the short-lived seen-hash caches.
type CacheConfig struct {
	ShortLivedCacheBlockCapacity       int           `mapstructure:"short_lived_cache_block_capacity"`
	ShortLivedCacheBlockDuration       time.Duration `mapstructure:"short_lived_cache_block_duration"`
	ShortLivedCacheTransactionCapacity int           `mapstructure:"short_lived_cache_transaction_capacity"`
	ShortLivedCacheTransactionDuration time.Duration `mapstructure:"short_lived_cache_transaction_duration"`
}

// DefaultCacheConfig returns production-sized defaults.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		ShortLivedCacheBlockCapacity:       4096,
		ShortLivedCacheBlockDuration:       10 * time.Minute,
		ShortLivedCacheTransactionCapacity: 65536,
		ShortLivedCacheTransactionDuration: 10 * time.Minute,
	}
}

// TestCacheConfig returns a small configuration for tests.
func TestCacheConfig() *CacheConfig {
	return &CacheConfig{
		ShortLivedCacheBlockCapacity:       64,
		ShortLivedCacheBlockDuration:       time.Minute,
		ShortLivedCacheTransactionCapacity: 64,
		ShortLivedCacheTransactionDuration: time.Minute,
	}
}

// ValidateBasic checks param bounds.
func (cfg *CacheConfig) ValidateBasic() error {
	if cfg.ShortLivedCacheBlockCapacity <= 0 {
		return errors.New("short_lived_cache_block_capacity must be positive")
	}
	if cfg.ShortLivedCacheBlockDuration <= 0 {
		return errors.New("short_lived_cache_block_duration must be positive")
	}
	if cfg.ShortLivedCacheTransactionCapacity <= 0 {
		return errors.New("short_lived_cache_transaction_capacity must be positive")
	}
	if cfg.ShortLivedCacheTransactionDuration <= 0 {
		return errors.New("short_lived_cache_transaction_duration must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// UtPoolConfig

// UtPoolConfig configures UtUpdater's supplemental eviction sweep.
type UtPoolConfig struct {
	MaxAge        time.Duration `mapstructure:"max_age"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// DefaultUtPoolConfig returns production-sized defaults.
func DefaultUtPoolConfig() *UtPoolConfig {
	return &UtPoolConfig{MaxAge: 24 * time.Hour, SweepInterval: 10 * time.Minute}
}

// TestUtPoolConfig returns a configuration for tests.
func TestUtPoolConfig() *UtPoolConfig {
	return &UtPoolConfig{MaxAge: time.Minute, SweepInterval: 50 * time.Millisecond}
}

// ValidateBasic checks param bounds.
func (cfg *UtPoolConfig) ValidateBasic() error {
	if cfg.MaxAge < 0 {
		return errors.New("max_age can't be negative")
	}
	if cfg.SweepInterval <= 0 {
		return errors.New("sweep_interval must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig configures Prometheus metrics exposure.
type InstrumentationConfig struct {
	Prometheus           bool   `mapstructure:"prometheus"`
	PrometheusListenAddr string `mapstructure:"prometheus_listen_addr"`
	Namespace            string `mapstructure:"namespace"`
}

// DefaultInstrumentationConfig returns a default configuration for
// metrics reporting.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		Namespace:            "nodecore",
	}
}

// TestInstrumentationConfig returns a default configuration for tests.
func TestInstrumentationConfig() *InstrumentationConfig {
	return DefaultInstrumentationConfig()
}

// ValidateBasic checks param bounds.
func (cfg *InstrumentationConfig) ValidateBasic() error {
	if cfg.Namespace == "" {
		return errors.New("namespace can't be empty")
	}
	return nil
}

//-----------------------------------------------------------------------------
// Utils

// rootify makes config creation independent of the root dir: an absolute
// path is kept as-is, a relative one is joined under root.
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// defaultHomeDir resolves DefaultHomeDir under the user's home
// directory, falling back to the current directory if it can't be
// determined.
func defaultHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultHomeDir
	}
	return filepath.Join(home, DefaultHomeDir)
}
