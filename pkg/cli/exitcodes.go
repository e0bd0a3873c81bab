package cli

import (
	"errors"

	"github.com/luizaranda/requester/pkg/requester"
)

// Exit codes of the requester command. Failed requests exit with their
// requester.ErrorCode, which follows libcurl numbering.
const (
	// ExitSuccess indicates the command did what was asked.
	ExitSuccess = 0

	// ExitFailure indicates a negative answer, like a host that does not
	// respond to ping, or an unexpected error.
	ExitFailure = 1

	// ExitUsageError indicates invalid flags or arguments.
	ExitUsageError = 64

	// ExitConfigError indicates an invalid configuration.
	ExitConfigError = 78
)

// silentError carries an exit code for a failure already reported to the
// user.
type silentError struct {
	code int
}

func (e *silentError) Error() string { return "exit status" }

type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var (
		silent *silentError
		usage  *usageError
		config *configError
	)

	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &silent):
		return silent.code
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &config):
		return ExitConfigError
	case requester.CodeOf(err) != 0:
		return int(requester.CodeOf(err))
	default:
		return ExitFailure
	}
}
