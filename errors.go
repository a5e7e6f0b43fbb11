package deniable

import (
	"errors"
	"fmt"
)

// ValidationError represents a configuration or parameter validation error.
// It is raised before any hashing work begins.
type ValidationError struct {
	Field   string // The field or parameter that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// FormatError represents a malformed unlocker artifact
type FormatError struct {
	Field   string // Header field being decoded
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *FormatError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("format error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("format error: %s", e.Message)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// DeviceError represents an I/O failure against a device or artifact path
type DeviceError struct {
	Operation string // "size", "open", "read", "write", etc.
	Path      string // Device or file path
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *DeviceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("device error: %s %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("device error: %s: %s", e.Operation, e.Message)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Common sentinel errors
var (
	ErrNoTargets          = errors.New("at least one partition target is required")
	ErrEmptyPassword      = errors.New("password cannot be empty")
	ErrDuplicatePassword  = errors.New("password is used by more than one partition")
	ErrInvalidModulus     = errors.New("block modulus must be positive")
	ErrTargetOutOfRange   = errors.New("target offset is past the end of the device")
	ErrInvalidIterations  = errors.New("invalid iteration window")
	ErrInvalidKeySize     = errors.New("invalid key size")
	ErrInvalidSalt        = errors.New("invalid salt")
	ErrInvalidBlockSize   = errors.New("invalid block size")
	ErrUnsupportedHash    = errors.New("unsupported hash primitive")
	ErrUnsupportedPolicy  = errors.New("unsupported deviation policy")
	ErrInvalidHeader      = errors.New("invalid artifact header")
	ErrUnsupportedVersion = errors.New("unsupported artifact format version")
)

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// newValidationErr wraps a sentinel so errors.Is keeps working
func newValidationErr(field string, value any, sentinel error, format string, args ...any) error {
	msg := sentinel.Error()
	if format != "" {
		msg = fmt.Sprintf("%s: %s", msg, fmt.Sprintf(format, args...))
	}
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
		Err:     sentinel,
	}
}

// NewFormatError creates a new artifact format error
func NewFormatError(field string, err error) error {
	return &FormatError{
		Field:   field,
		Message: err.Error(),
		Err:     err,
	}
}

// NewDeviceError creates a new device I/O error
func NewDeviceError(operation, path string, err error) error {
	return &DeviceError{
		Operation: operation,
		Path:      path,
		Message:   err.Error(),
		Err:       err,
	}
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsFormatError checks if an error is an artifact format error
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsDeviceError checks if an error is a device error
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}
