package bulk

// RetryOptions bounds the two retry kinds the engine applies on behalf of
// callers.
type RetryOptions struct {
	// MaxRetryAttemptsOnThrottledRequests caps 429-triggered rebatch
	// attempts per operation. Default: 9.
	MaxRetryAttemptsOnThrottledRequests int

	// MaxRetryWaitTimeInSeconds caps the cumulative retry-after delay an
	// operation may accumulate across 429 retries before surfacing
	// Throttled. Default: 30.
	MaxRetryWaitTimeInSeconds int

	// MaxPartitionGoneRetryAttempts caps rebatch attempts triggered by a
	// stale-routing response, independent of the throttle budget above.
	// Default: 3.
	MaxPartitionGoneRetryAttempts int
}

// DefaultRetryOptions returns the engine's default retry budgets.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetryAttemptsOnThrottledRequests: 9,
		MaxRetryWaitTimeInSeconds:           30,
		MaxPartitionGoneRetryAttempts:       3,
	}
}

// ExecutorOptions configures an Executor's batching, concurrency, and
// ambient behavior. Every tunable is a documented struct field with a
// default, rather than a package constant, so callers can override any of
// them without forking the engine.
type ExecutorOptions struct {
	// MaxServerRequestOperationCount is the hard cap on operations per
	// batch. Must be ≥1. Default: 100.
	MaxServerRequestOperationCount int

	// MaxServerRequestBodyLength is the hard cap on batch body bytes.
	// Must be ≥1. Default: 2097152 (2 MiB).
	MaxServerRequestBodyLength int

	// DispatchTimerSeconds bounds how long an operation may wait in a
	// non-full buffer before a timer-triggered seal. Must be ≥1.
	// Default: 1.
	DispatchTimerSeconds int

	// RetryOptions configures the retry pipeline.
	RetryOptions RetryOptions

	// PermitLimiterInitial is each range's starting permit count.
	// Default: 5.
	PermitLimiterInitial int

	// PermitLimiterMax is the ceiling the congestion controller's
	// additive increase will not exceed. Default: 60.
	PermitLimiterMax int

	// CongestionAdditiveFactorInitial is the starting additive-increase
	// step (aif). Default: 5.
	CongestionAdditiveFactorInitial int

	// DebugMode is a flag for callers that format errors with
	// FormatError(err, debugMode); the Executor itself does not read it.
	// Default: false.
	DebugMode bool

	// Logger is the logger implementation to use. If nil, a no-op
	// logger is used.
	Logger Logger

	// LogLevel names a minimum log level (DEBUG, INFO, WARN, ERROR).
	// NewExecutor does not apply it to Logger: Logger is used as given,
	// so its own level decides what is emitted. Default: "INFO".
	LogLevel string

	// OnRangeCreated is called the first time a partition range's
	// streamer/limiter/controller triple is created.
	OnRangeCreated func(rangeID string)

	// OnShutdown is called once Dispose has finished draining every
	// range and stopping every controller.
	OnShutdown func()
}

// DefaultExecutorOptions returns ExecutorOptions with the engine's
// documented defaults.
func DefaultExecutorOptions() ExecutorOptions {
	return ExecutorOptions{
		MaxServerRequestOperationCount:   100,
		MaxServerRequestBodyLength:       2 * 1024 * 1024,
		DispatchTimerSeconds:             1,
		RetryOptions:                     DefaultRetryOptions(),
		PermitLimiterInitial:             5,
		PermitLimiterMax:                 60,
		CongestionAdditiveFactorInitial:  5,
		DebugMode:                        false,
		LogLevel:                         "INFO",
	}
}

// normalize fills in any zero-valued tunable with its default and returns
// the corrected copy; called once by NewExecutor so every other component
// can assume options are well-formed.
func (o ExecutorOptions) normalize() ExecutorOptions {
	def := DefaultExecutorOptions()
	if o.MaxServerRequestOperationCount <= 0 {
		o.MaxServerRequestOperationCount = def.MaxServerRequestOperationCount
	}
	if o.MaxServerRequestBodyLength <= 0 {
		o.MaxServerRequestBodyLength = def.MaxServerRequestBodyLength
	}
	if o.DispatchTimerSeconds <= 0 {
		o.DispatchTimerSeconds = def.DispatchTimerSeconds
	}
	if o.RetryOptions.MaxRetryAttemptsOnThrottledRequests <= 0 {
		o.RetryOptions.MaxRetryAttemptsOnThrottledRequests = def.RetryOptions.MaxRetryAttemptsOnThrottledRequests
	}
	if o.RetryOptions.MaxRetryWaitTimeInSeconds <= 0 {
		o.RetryOptions.MaxRetryWaitTimeInSeconds = def.RetryOptions.MaxRetryWaitTimeInSeconds
	}
	if o.RetryOptions.MaxPartitionGoneRetryAttempts <= 0 {
		o.RetryOptions.MaxPartitionGoneRetryAttempts = def.RetryOptions.MaxPartitionGoneRetryAttempts
	}
	if o.PermitLimiterInitial <= 0 {
		o.PermitLimiterInitial = def.PermitLimiterInitial
	}
	if o.PermitLimiterMax <= 0 {
		o.PermitLimiterMax = def.PermitLimiterMax
	}
	if o.CongestionAdditiveFactorInitial <= 0 {
		o.CongestionAdditiveFactorInitial = def.CongestionAdditiveFactorInitial
	}
	if o.Logger == nil {
		o.Logger = NewNoopLogger()
	}
	if o.LogLevel == "" {
		o.LogLevel = def.LogLevel
	}
	return o
}
