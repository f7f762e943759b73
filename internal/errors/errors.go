package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error types for the string matching pipeline
type ErrorType string

const (
	// Pipeline errors
	ErrorTypeUsage ErrorType = "usage"
	ErrorTypeInput ErrorType = "input"

	// Cache errors
	ErrorTypeCache ErrorType = "cache"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"
)

var (
	// ErrNoMatrix is returned when linking is attempted before a ratio matrix exists.
	ErrNoMatrix = errors.New("no ratio matrix available")

	// ErrNoPartition is returned when results are assembled before linking ran.
	ErrNoPartition = errors.New("no cluster partition available")

	// ErrCacheMiss is wrapped by every recoverable cache failure.
	ErrCacheMiss = errors.New("cache miss")
)

// UsageError reports an operation invoked out of order or with invalid arguments
type UsageError struct {
	Type       ErrorType
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewUsageError creates a new usage error
func NewUsageError(op string, err error) *UsageError {
	return &UsageError{
		Type:       ErrorTypeUsage,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *UsageError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Type, e.Operation, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *UsageError) Unwrap() error {
	return e.Underlying
}

// InputError reports labels that could not be read from an input source
type InputError struct {
	Type       ErrorType
	Source     string
	Underlying error
	Timestamp  time.Time
}

// NewInputError creates a new input error for source ("-" is stdin)
func NewInputError(source string, err error) *InputError {
	return &InputError{
		Type:       ErrorTypeInput,
		Source:     source,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *InputError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("input error: %v", e.Underlying)
	}
	return fmt.Sprintf("input error for %s: %v", e.Source, e.Underlying)
}

// Unwrap returns the underlying error
func (e *InputError) Unwrap() error {
	return e.Underlying
}

// CacheError represents a failure reading or writing the ratio matrix cache
type CacheError struct {
	Type        ErrorType
	Path        string
	Operation   string
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// NewCacheError creates a new cache error. Cache errors are recoverable by default:
// the caller falls back to recomputation.
func NewCacheError(op, path string, err error) *CacheError {
	return &CacheError{
		Type:        ErrorTypeCache,
		Path:        path,
		Operation:   op,
		Underlying:  err,
		Timestamp:   time.Now(),
		Recoverable: true,
	}
}

// WithRecoverable marks the error as recoverable
func (e *CacheError) WithRecoverable(recoverable bool) *CacheError {
	e.Recoverable = recoverable
	return e
}

// Error implements the error interface
func (e *CacheError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("cache %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
	}
	return fmt.Sprintf("cache %s failed: %v", e.Operation, e.Underlying)
}

// Unwrap returns the underlying error
func (e *CacheError) Unwrap() error {
	return e.Underlying
}

// IsRecoverable checks if the pipeline can continue without the cache
func (e *CacheError) IsRecoverable() bool {
	return e.Recoverable
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// ErrorOrNil returns nil when no errors were collected
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
