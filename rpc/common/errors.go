package common

import (
	"errors"
	"fmt"
	"strings"
)

// RetCode classifies errors that are returned by the server
type RetCode int

const (
	RetCInternalError    RetCode = iota + 1 // The server failed to process a valid request
	RetCInvalidOperation                    // The request is malformed or not supported
	RetCNoSession                           // The request requires a Hello first
)

func (c RetCode) String() string {
	switch c {
	case RetCInternalError:
		return "internal error"
	case RetCInvalidOperation:
		return "invalid operation"
	case RetCNoSession:
		return "no session"
	default:
		return "unknown error"
	}
}

// Error is an error with a return code
type Error struct {
	Code RetCode
	Msg  string
}

// NewError creates a new Error with a formatted message
func NewError(code RetCode, format string, args ...any) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Is reports whether target is an *Error with the same code
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	// ErrNoSession can be compared with errors.Is to detect missing sessions
	ErrNoSession = &Error{Code: RetCNoSession}
)

// ParseError converts an error message received from the server back into an error.
// Messages created from an *Error keep their return code.
func ParseError(msg string) error {
	if msg == "" {
		return nil
	}
	for _, code := range []RetCode{RetCInternalError, RetCInvalidOperation, RetCNoSession} {
		if rest, ok := strings.CutPrefix(msg, code.String()+": "); ok {
			return &Error{Code: code, Msg: rest}
		}
	}
	return errors.New(msg)
}
