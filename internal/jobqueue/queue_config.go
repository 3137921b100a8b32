/*
Package jobqueue configuration - tunable parameters for the River job queue.

Thread snapshots are cheap to compute, so the defaults favour fast retries and a
short job timeout. Values from the [queue] section of the configuration file
override MaxWorkers, MaxRetries and JobTimeout; the retry policy stays in code.
*/
package jobqueue

import (
	"math"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/chatthread/internal/config"
)

// QueueConfig holds all configurable parameters for the job queue
type QueueConfig struct {
	MaxWorkers  int           // Concurrent snapshot workers
	MaxRetries  int           // Retries after the first attempt
	RetryPolicy RetryPolicy   // Backoff between attempts
	JobTimeout  time.Duration // Maximum time a single job can run
}

// RetryPolicy defines how failed jobs are retried. It implements River's
// ClientRetryPolicy.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultQueueConfig returns the default configuration
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		MaxWorkers: 5,
		MaxRetries: 5,
		RetryPolicy: RetryPolicy{
			InitialInterval: 1 * time.Second,
			MaxInterval:     5 * time.Minute,
			Multiplier:      2.0,
		},
		JobTimeout: 1 * time.Minute,
	}
}

// FromConfig applies the [queue] section on top of the defaults. Zero values keep
// the default.
func FromConfig(cfg config.QueueConfig) *QueueConfig {
	qc := DefaultQueueConfig()
	if cfg.MaxWorkers > 0 {
		qc.MaxWorkers = cfg.MaxWorkers
	}
	if cfg.MaxRetries > 0 {
		qc.MaxRetries = cfg.MaxRetries
	}
	if cfg.JobTimeout > 0 {
		qc.JobTimeout = cfg.JobTimeout
	}
	return qc
}

// RiverQueueConfig converts our config to River's queue configuration format
func (c *QueueConfig) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {
			MaxWorkers: c.MaxWorkers,
		},
	}
}

// Backoff returns the wait before retry number attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	wait := float64(p.InitialInterval) * math.Pow(p.Multiplier, float64(attempt-1))
	if wait > float64(p.MaxInterval) || math.IsInf(wait, 0) {
		return p.MaxInterval
	}
	return time.Duration(wait)
}

// NextRetry implements river.ClientRetryPolicy.
func (p RetryPolicy) NextRetry(job *rivertype.JobRow) time.Time {
	return time.Now().Add(p.Backoff(len(job.Errors) + 1))
}
