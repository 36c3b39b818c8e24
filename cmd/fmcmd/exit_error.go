package main

import (
	"errors"

	"github.com/kriansa/fmcmd/internal/commands"
)

// exitError is a command failure with the process exit code to use
type exitError struct {
	Code int
	Err  error
	// Reported is set when the user was already notified
	Reported bool
}

func (e *exitError) Error() string {
	return e.Err.Error()
}

func (e *exitError) Unwrap() error {
	return e.Err
}

// toExitError maps a command failure to its exit status. Commands report
// their own failures as *commands.ExitError; anything else exits 1.
func toExitError(err error) *exitError {
	var cmdErr *commands.ExitError
	if errors.As(err, &cmdErr) {
		return &exitError{Code: cmdErr.Code, Err: err, Reported: true}
	}
	return &exitError{Code: 1, Err: err}
}
