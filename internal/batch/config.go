package batch

import (
	"fmt"
	"time"
)

// Config holds the closing rules, admission bound and retry policy of the
// batching engine. Millisecond fields keep config files and flags simple;
// the getters convert them to durations.
type Config struct {
	// Closing rules
	BatchMaxRecords       int `json:"batch_max_records" mapstructure:"batch_max_records"`               // Close as soon as the batch holds this many records
	BatchTimeoutArrivalMs int `json:"batch_timeout_arrival_ms" mapstructure:"batch_timeout_arrival_ms"` // Close after this long without a new record
	BatchTimeoutOverallMs int `json:"batch_timeout_overall_ms" mapstructure:"batch_timeout_overall_ms"` // Close this long after creation

	// Backpressure
	AddTimeoutMs int `json:"add_timeout_ms" mapstructure:"add_timeout_ms"` // Max wait for batch admission

	// Dispatch retry
	RetryInitialDelayMs int `json:"retry_initial_delay_ms" mapstructure:"retry_initial_delay_ms"` // First backoff delay, doubled per attempt
	RetryMaxDelayMs     int `json:"retry_max_delay_ms" mapstructure:"retry_max_delay_ms"`         // Backoff ceiling, 0 for uncapped
	RetryAlertAttempts  int `json:"retry_alert_attempts" mapstructure:"retry_alert_attempts"`     // Escalate failures to ERROR after this many attempts, 0 to disable
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchMaxRecords:       1000,
		BatchTimeoutArrivalMs: 250,
		BatchTimeoutOverallMs: 2500,
		AddTimeoutMs:          30000,
		RetryInitialDelayMs:   100,
		RetryMaxDelayMs:       0,
		RetryAlertAttempts:    0,
	}
}

// Validate checks that every closing rule can fire and the retry policy is
// well formed.
func (c *Config) Validate() error {
	if c.BatchMaxRecords <= 0 {
		return fmt.Errorf("batch max records must be positive, got %d", c.BatchMaxRecords)
	}
	if c.BatchTimeoutArrivalMs <= 0 {
		return fmt.Errorf("batch arrival timeout must be positive, got %d ms", c.BatchTimeoutArrivalMs)
	}
	if c.BatchTimeoutOverallMs <= 0 {
		return fmt.Errorf("batch overall timeout must be positive, got %d ms", c.BatchTimeoutOverallMs)
	}
	if c.AddTimeoutMs <= 0 {
		return fmt.Errorf("add timeout must be positive, got %d ms", c.AddTimeoutMs)
	}
	if c.RetryInitialDelayMs <= 0 {
		return fmt.Errorf("retry initial delay must be positive, got %d ms", c.RetryInitialDelayMs)
	}
	if c.RetryMaxDelayMs < 0 {
		return fmt.Errorf("retry max delay must be non-negative, got %d ms", c.RetryMaxDelayMs)
	}
	if c.RetryMaxDelayMs > 0 && c.RetryMaxDelayMs < c.RetryInitialDelayMs {
		return fmt.Errorf("retry max delay (%d ms) must not be below the initial delay (%d ms)",
			c.RetryMaxDelayMs, c.RetryInitialDelayMs)
	}
	if c.RetryAlertAttempts < 0 {
		return fmt.Errorf("retry alert attempts must be non-negative, got %d", c.RetryAlertAttempts)
	}
	return nil
}

// GetArrivalTimeout returns the arrival timeout as a duration.
func (c *Config) GetArrivalTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutArrivalMs) * time.Millisecond
}

// GetOverallTimeout returns the overall timeout as a duration.
func (c *Config) GetOverallTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutOverallMs) * time.Millisecond
}

// GetAddTimeout returns the admission bound as a duration.
func (c *Config) GetAddTimeout() time.Duration {
	return time.Duration(c.AddTimeoutMs) * time.Millisecond
}

// GetRetryInitialDelay returns the first backoff delay as a duration.
func (c *Config) GetRetryInitialDelay() time.Duration {
	return time.Duration(c.RetryInitialDelayMs) * time.Millisecond
}

// GetRetryMaxDelay returns the backoff ceiling, zero when uncapped.
func (c *Config) GetRetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMs) * time.Millisecond
}
