package domain

import "fmt"

// SignalUnavailableError reports that a signal source had no opinion. Engines treat it as neutral.
type SignalUnavailableError struct {
	Source    string
	ProductID string
}

func (e *SignalUnavailableError) Error() string {
	return fmt.Sprintf("signal %q unavailable for product %s", e.Source, e.ProductID)
}

// ExecutionError wraps a failed agent cycle.
type ExecutionError struct {
	Worker string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("agent %s cycle failed: %v", e.Worker, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// SinkError wraps a failed sink or apply call.
type SinkError struct {
	Op  string
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// ConfigInvalidError is returned when a configuration value is out of range.
type ConfigInvalidError struct {
	Field  string
	Reason string
}

func (e *ConfigInvalidError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// ProductNotFoundError is returned when a product ID does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

// UnknownRecommendationTypeError is returned when no applier is registered for a recommendation type.
type UnknownRecommendationTypeError struct {
	Type string
}

func (e *UnknownRecommendationTypeError) Error() string {
	return fmt.Sprintf("no applier registered for recommendation type %q", e.Type)
}

// RateLimitExceededError is returned when auto-apply exceeds its rate limit.
type RateLimitExceededError struct {
	Key   string
	Limit int
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %q: limit is %d", e.Key, e.Limit)
}
