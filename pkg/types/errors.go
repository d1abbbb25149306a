package types

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

// Predefined errors
var (
	// ErrStopped is returned by a blocking pop once the queue has been
	// stopped and holds no more elements. It is a termination signal, not a
	// fault.
	ErrStopped = errors.New("queue is stopped")

	// ErrPoolStopped indicates the worker pool no longer accepts tasks
	ErrPoolStopped = errors.New("worker pool is stopped")

	// ErrNilTask indicates a nil task or function was submitted
	ErrNilTask = errors.New("task cannot be nil")

	// ErrInvalidConfig indicates a constructor received an unusable setting
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrWouldBlock reports that a non-blocking operation could not proceed,
	// e.g. a dequeue from an empty lock-free queue.
	//
	// This is an alias for [iox.ErrWouldBlock] so callers can use the iox
	// backoff helpers directly.
	ErrWouldBlock = iox.ErrWouldBlock
)

// IsWouldBlock reports whether err indicates the operation would block.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// ConfigError describes a rejected construction parameter
type ConfigError struct {
	// Component is the name of the component being constructed
	Component string

	// Field is the offending configuration field
	Field string

	// Value is the rejected value
	Value interface{}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s must be positive, got %v", e.Component, e.Field, e.Value)
}

// Is makes every ConfigError match ErrInvalidConfig
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Component: component,
		Field:     field,
		Value:     value,
	}
}

// TaskError wraps a failure raised while a worker executed a task
type TaskError struct {
	// TaskID identifies the failed task
	TaskID string

	// WorkerID is the worker that ran the task
	WorkerID int

	// Cause is the underlying error (or the recovered panic value)
	Cause error

	// Stack is the goroutine stack captured when the task panicked
	Stack string
}

// Error implements the error interface
func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed on worker %d: %v", e.TaskID, e.WorkerID, e.Cause)
}

// Unwrap returns the underlying error
func (e *TaskError) Unwrap() error {
	return e.Cause
}

// Panicked reports whether the task failed by panicking
func (e *TaskError) Panicked() bool {
	return e.Stack != ""
}
