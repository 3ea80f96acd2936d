// Package errors provides custom error types for pipeline failures.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Standard sentinel errors
var (
	ErrEmptySalesHistory = errors.New("sales history is empty")
	ErrInsufficientData  = errors.New("insufficient data")
	ErrAgentTimeout      = errors.New("agent timed out")
	ErrAgentPanic        = errors.New("agent panicked")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrInputValidation   = errors.New("input validation failed")
	ErrDataNotFound      = errors.New("data not found")
	ErrDatabaseError     = errors.New("database error")
	ErrUnsupportedFormat = errors.New("unsupported batch format")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// ValidationError represents input that cannot be analyzed.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// InsufficientDataError reports a product whose history is too short for a model.
type InsufficientDataError struct {
	ProductID string
	Model     string
	Required  int
	Available int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data [%s] %s: need %d points, have %d",
		e.ProductID, e.Model, e.Required, e.Available)
}

func (e *InsufficientDataError) Unwrap() error {
	return ErrInsufficientData
}

// NewInsufficientDataError creates a new InsufficientDataError.
func NewInsufficientDataError(productID, model string, required, available int) *InsufficientDataError {
	return &InsufficientDataError{
		ProductID: productID,
		Model:     model,
		Required:  required,
		Available: available,
	}
}

// AgentTimeoutError reports an agent that exceeded its execution budget.
type AgentTimeoutError struct {
	AgentName string
	Timeout   time.Duration
	Attempt   int
}

func (e *AgentTimeoutError) Error() string {
	return fmt.Sprintf("agent timeout [%s] attempt %d: exceeded %s", e.AgentName, e.Attempt, e.Timeout)
}

func (e *AgentTimeoutError) Unwrap() error {
	return ErrAgentTimeout
}

// NewAgentTimeoutError creates a new AgentTimeoutError.
func NewAgentTimeoutError(agentName string, timeout time.Duration, attempt int) *AgentTimeoutError {
	return &AgentTimeoutError{
		AgentName: agentName,
		Timeout:   timeout,
		Attempt:   attempt,
	}
}

// AgentExecutionError represents an agent that failed outright.
type AgentExecutionError struct {
	AgentName string
	Operation string
	Err       error
}

func (e *AgentExecutionError) Error() string {
	return fmt.Sprintf("agent error [%s] %s: %v", e.AgentName, e.Operation, e.Err)
}

func (e *AgentExecutionError) Unwrap() error {
	return e.Err
}

// NewAgentExecutionError creates a new AgentExecutionError.
func NewAgentExecutionError(agentName, operation string, err error) *AgentExecutionError {
	return &AgentExecutionError{
		AgentName: agentName,
		Operation: operation,
		Err:       err,
	}
}

// ConfigurationError represents an out-of-range or inconsistent setting.
type ConfigurationError struct {
	Key     string
	Value   interface{}
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s (%v): %s", e.Key, e.Value, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(key string, value interface{}, message string) *ConfigurationError {
	return &ConfigurationError{
		Key:     key,
		Value:   value,
		Message: message,
	}
}

// DataError represents a batch source that could not be read.
type DataError struct {
	Source  string
	Message string
	Err     error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s]: %s: %v", e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s]: %s", e.Source, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(source, message string, err error) *DataError {
	return &DataError{
		Source:  source,
		Message: message,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
