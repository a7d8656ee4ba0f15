package logging

import (
	"errors"
	"syscall"
)

// isTerminalSyncError reports the errors fsync returns for ttys and pipes,
// which are expected when syncing stdout or stderr.
func isTerminalSyncError(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF)
}
