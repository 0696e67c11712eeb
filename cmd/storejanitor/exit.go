package main

import (
	"errors"
	"fmt"

	"github.com/dray-io/storejanitor/internal/storeerr"
)

// Exit codes.
const (
	ExitSuccess = 0 // run completed, possibly with per-item failures
	ExitFailure = 1 // a store was unreachable or the run could not enumerate
	ExitUsage   = 2 // bad flags, arguments or configuration
)

// ExitError carries the process exit code for a command error.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageError(message string, err error) *ExitError {
	return &ExitError{Code: ExitUsage, Message: message, Err: err}
}

func failure(message string, err error) *ExitError {
	return &ExitError{Code: ExitFailure, Message: message, Err: err}
}

// exitCode maps a command error to a process exit code. Errors that are
// not ExitErrors come from cobra's own argument handling.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if storeerr.IsConnection(err) {
		return ExitFailure
	}
	return ExitUsage
}
