package cli

import (
	"errors"
	"fmt"
)

// ErrUsage matches every error caused by how the command was invoked. Such
// errors exit with status 2.
var ErrUsage = errors.New("cli usage error")

type usageError struct {
	msg string
}

func newUsageErrorf(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}
