package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess    = 0 // All pairs passed
	ExitPairFailed = 1 // One or more pairs failed
	ExitError      = 2 // Configuration or runtime error
)

// PairFailureError indicates that the matrix ran to completion but one or
// more pairs failed validation.
type PairFailureError struct {
	Message string
}

func (e *PairFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var pairFailureErr *PairFailureError
		if errors.As(err, &pairFailureErr) {
			os.Exit(ExitPairFailed)
		}

		// All other errors are configuration/runtime errors
		os.Exit(ExitError)
	}
}
