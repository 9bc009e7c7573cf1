package cli

import (
	"errors"
	"strings"

	"github.com/ecosyste-ms/ecosystems-cli/internal/api"
	"github.com/ecosyste-ms/ecosystems-cli/internal/spec"
	"github.com/spf13/pflag"
)

const (
	exitOK       = 0
	exitGeneric  = 1
	exitUsage    = 2
	exitAuth     = 3
	exitNotFound = 4
	exitServer   = 7
	exitNetwork  = 8
)

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, pflag.ErrHelp):
		return exitOK
	case errors.Is(err, api.ErrAuthentication):
		return exitAuth
	case errors.Is(err, api.ErrNotFound), errors.Is(err, spec.ErrSpecNotFound):
		return exitNotFound
	case errors.Is(err, api.ErrServer):
		return exitServer
	case errors.Is(err, api.ErrNetwork):
		return exitNetwork
	case errors.Is(err, ErrUsage),
		errors.Is(err, api.ErrInvalidOperation),
		errors.Is(err, api.ErrMissingPathParameter),
		errors.Is(err, api.ErrMissingParameter),
		isCobraUsageError(err):
		return exitUsage
	}
	return exitGeneric
}

// isCobraUsageError recognizes argument errors cobra returns as plain errors.
func isCobraUsageError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"unknown command",
		"required flag(s)",
		"accepts ",
		"requires at least",
		"unknown flag",
	} {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}
