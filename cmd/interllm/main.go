package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess   = 0 // Run completed, every scenario succeeded
	ExitRunFailed = 1 // Run completed, but one or more scenarios failed
	ExitError     = 2 // Configuration or runtime error
)

// RunFailureError indicates the orchestration run itself completed, but one
// or more scenarios failed.
type RunFailureError struct {
	Message string
}

func (e *RunFailureError) Error() string {
	return e.Message
}

// exitCodeError carries a child process's exit code up to main (used by the
// proxy command, which must mirror the wrapped process).
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

func main() {
	if err := execute(); err != nil {
		var codeErr *exitCodeError
		if errors.As(err, &codeErr) {
			os.Exit(codeErr.code)
		}

		fmt.Fprintln(os.Stderr, err)

		var runErr *RunFailureError
		if errors.As(err, &runErr) {
			os.Exit(ExitRunFailed)
		}

		// All other errors are configuration/runtime errors
		os.Exit(ExitError)
	}
}
