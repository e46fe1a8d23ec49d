// Package domain defines core types, interfaces, and errors for the generation pipeline.
package domain

import (
	"errors"
	"fmt"
)

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// PaymentError indicates the payment proof was missing, invalid, insufficient
// or already consumed. No job is created when admission returns it.
type PaymentError struct {
	Message string
}

func (e *PaymentError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrPayment creates a PaymentError with a formatted message.
func ErrPayment(format string, args ...interface{}) *PaymentError {
	return &PaymentError{Message: fmt.Sprintf(format, args...)}
}

// ErrorClass classifies why a job or one of its steps failed.
type ErrorClass string

// Error classes.
const (
	ClassPaymentInvalid      ErrorClass = "PaymentInvalid"
	ClassProviderUnavailable ErrorClass = "ProviderUnavailable"
	ClassCategoryUnresolved  ErrorClass = "CategoryUnresolved"
	ClassGenerationFailed    ErrorClass = "GenerationFailed"
	ClassResourceExhausted   ErrorClass = "ResourceExhausted"
	ClassStorageWriteFailed  ErrorClass = "StorageWriteFailed"
)

// JobError is a classified failure raised by one pipeline step.
type JobError struct {
	Class ErrorClass
	Step  string
	Err   error
}

func (e *JobError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Step, e.Class)
	}
	return fmt.Sprintf("%s: %s: %v", e.Step, e.Class, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// NewJobError wraps err with a class and the step that produced it.
func NewJobError(class ErrorClass, step string, err error) *JobError {
	return &JobError{Class: class, Step: step, Err: err}
}

// ClassOf returns the error class carried by err. Payment errors map to
// PaymentInvalid; any other unclassified error maps to GenerationFailed.
func ClassOf(err error) ErrorClass {
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return jobErr.Class
	}
	var payErr *PaymentError
	if errors.As(err, &payErr) {
		return ClassPaymentInvalid
	}
	return ClassGenerationFailed
}
