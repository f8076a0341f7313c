package kvs

import (
	"errors"
	"fmt"
)

// Code identifies an error category. The numeric values are stable and are
// what the CLI reports.
type Code int

const (
	CodeUnknown          Code = 0
	CodeConcurrentAccess Code = 100
	CodeKeyTooLarge      Code = 101
	CodeValueTooLarge    Code = 102
	CodeCapacityExceeded Code = 103
	CodeStorageOpen      Code = 104
	CodeInvalidValue     Code = 105
	CodeStorage          Code = 106
	CodeDuplicateKey     Code = 201
	CodeKeyNotFound      Code = 202
	CodeClosed           Code = 300
)

var codeNames = map[Code]string{
	CodeUnknown:          "unknown",
	CodeConcurrentAccess: "concurrent_access",
	CodeKeyTooLarge:      "key_too_large",
	CodeValueTooLarge:    "value_too_large",
	CodeCapacityExceeded: "capacity_exceeded",
	CodeStorageOpen:      "storage_open",
	CodeInvalidValue:     "invalid_value",
	CodeStorage:          "storage",
	CodeDuplicateKey:     "duplicate_key",
	CodeKeyNotFound:      "key_not_found",
	CodeClosed:           "closed",
}

// String returns the snake_case name of the code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code_%d", int(c))
}

// ParseCode returns the Code with the given snake_case name.
func ParseCode(name string) (Code, bool) {
	for code, n := range codeNames {
		if n == name {
			return code, true
		}
	}
	return CodeUnknown, false
}

// Error is the error type returned by every Registry and Handle operation.
//
// Use errors.Is with the Err* sentinels to test the category; two Errors
// match when their codes are equal.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Key is the affected key, if any.
	Key string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Key != "" {
		msg += fmt.Sprintf(" (key=%q)", e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrConcurrentAccess = &Error{Code: CodeConcurrentAccess, Message: "another process is accessing the file"}
	ErrKeyTooLarge      = &Error{Code: CodeKeyTooLarge, Message: "key exceeds the length limit"}
	ErrValueTooLarge    = &Error{Code: CodeValueTooLarge, Message: "value exceeds the size limit"}
	ErrCapacityExceeded = &Error{Code: CodeCapacityExceeded, Message: "store is at its maximum capacity"}
	ErrStorageOpen      = &Error{Code: CodeStorageOpen, Message: "cannot open storage"}
	ErrInvalidValue     = &Error{Code: CodeInvalidValue, Message: "value cannot be encoded as JSON"}
	ErrStorage          = &Error{Code: CodeStorage, Message: "storage failure"}
	ErrDuplicateKey     = &Error{Code: CodeDuplicateKey, Message: "key already exists"}
	ErrKeyNotFound      = &Error{Code: CodeKeyNotFound, Message: "key does not exist"}
	ErrClosed           = &Error{Code: CodeClosed, Message: "handle is closed"}
)

// CodeOf extracts the Code from err, or CodeUnknown if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

func newError(code Code, message, key string, cause error) *Error {
	return &Error{Code: code, Message: message, Key: key, Err: cause}
}

func storageError(op, key string, cause error) *Error {
	return newError(CodeStorage, op+" failed", key, cause)
}
