package sdk

import "time"

// RetryConfig controls how the pipeline retries transport-level failures.
// HTTP error statuses are never retried here; only requests that received no
// response at all enter the backoff loop.
type RetryConfig struct {
	// MaxRetries is the retry ceiling beyond the initial attempt.
	// Zero means the default of 5.
	MaxRetries int
	// BackoffUnit scales the exponential backoff. The nth retry waits
	// 2^n units; the default unit is one second.
	BackoffUnit time.Duration
}

func defaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  5,
		BackoffUnit: time.Second,
	}
}

func (r RetryConfig) normalized() RetryConfig {
	cfg := r
	def := defaultRetryConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = def.BackoffUnit
	}
	return cfg
}

// backoffDelay returns the wait before the nth retry (n starts at 1): 2^n
// whole backoff units.
func (r RetryConfig) backoffDelay(retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	return r.BackoffUnit << uint(retry)
}
