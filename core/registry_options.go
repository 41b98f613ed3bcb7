package core

import "time"

// DefaultHistoryCapacity is the number of completion records kept per pool.
const DefaultHistoryCapacity = 100

type registryOptions struct {
	logger          Logger
	readyTimeout    time.Duration
	metrics         Metrics
	panicHandler    PanicHandler
	rejectedHandler RejectedTaskHandler
	prepareHook     PrepareHook
	defaultPool     PoolConfig
	historyCapacity int
}

func defaultRegistryOptions() registryOptions {
	return registryOptions{
		readyTimeout:    DefaultReadyTimeout,
		defaultPool:     DefaultPoolConfig(),
		historyCapacity: DefaultHistoryCapacity,
	}
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

// WithLogger sets the logging sink for lifecycle events, task failures and
// initialization failures. The default logs through the standard library.
func WithLogger(logger Logger) RegistryOption {
	return func(o *registryOptions) { o.logger = logger }
}

// WithReadyTimeout sets how long a submission waits for a pool to become
// ready. Pools may override it with PoolConfig.ReadyTimeout.
func WithReadyTimeout(d time.Duration) RegistryOption {
	return func(o *registryOptions) {
		if d > 0 {
			o.readyTimeout = d
		}
	}
}

// WithMetrics sets the per-task metrics sink.
func WithMetrics(m Metrics) RegistryOption {
	return func(o *registryOptions) { o.metrics = m }
}

// WithPanicHandler sets the uncaught-panic hook of every worker.
func WithPanicHandler(h PanicHandler) RegistryOption {
	return func(o *registryOptions) { o.panicHandler = h }
}

// WithRejectedTaskHandler sets the handler for tasks that never run.
func WithRejectedTaskHandler(h RejectedTaskHandler) RegistryOption {
	return func(o *registryOptions) { o.rejectedHandler = h }
}

// WithPrepareHook sets a hook run by every pool while it is PREPARING,
// the default pool included.
func WithPrepareHook(hook PrepareHook) RegistryOption {
	return func(o *registryOptions) { o.prepareHook = hook }
}

// WithDefaultPoolConfig sets the configuration of the default pool. Its
// workers are always daemon workers.
func WithDefaultPoolConfig(cfg PoolConfig) RegistryOption {
	return func(o *registryOptions) { o.defaultPool = cfg }
}

// WithHistoryCapacity sets how many completion records each pool keeps.
// Zero disables the history.
func WithHistoryCapacity(n int) RegistryOption {
	return func(o *registryOptions) { o.historyCapacity = n }
}
