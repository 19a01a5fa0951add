// Package policy defines configurable execution policy for the orchestrator.
// It centralizes the scheduling and retry parameters so they can be set from
// configuration and overridden in tests.
package policy

import "time"

// Config contains all configurable policy parameters for the orchestrator.
type Config struct {
	// Scheduling policies
	Scheduling SchedulingPolicy

	// Retry policies for steps that declare retries
	Retry RetryPolicy
}

// SchedulingPolicy controls parallel dispatch.
type SchedulingPolicy struct {
	// MaxParallel caps the number of steps of one dependency level that run
	// at the same time. Zero means no cap.
	MaxParallel int
}

// RetryPolicy controls the wait between attempts of a failed step.
type RetryPolicy struct {
	// Backoff is multiplied by the attempt number to get the wait before the
	// next attempt.
	Backoff time.Duration
	// MaxBackoff caps a single wait. Zero means no cap.
	MaxBackoff time.Duration
}

// Delay returns the wait before the given retry (1-based).
func (r RetryPolicy) Delay(retry int) time.Duration {
	if retry < 1 || r.Backoff <= 0 {
		return 0
	}
	d := r.Backoff * time.Duration(retry)
	if r.MaxBackoff > 0 && d > r.MaxBackoff {
		return r.MaxBackoff
	}
	return d
}

// Default returns the default policy configuration.
func Default() *Config {
	return &Config{
		Scheduling: SchedulingPolicy{
			MaxParallel: 0,
		},
		Retry: RetryPolicy{
			Backoff:    2 * time.Second,
			MaxBackoff: 30 * time.Second,
		},
	}
}
