package core

// Exit codes for the upscaler binary.
// Signal-based exits follow the Unix 128 + signal number convention.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1

	// ExitCodeUsage indicates invalid flags, arguments or configuration.
	ExitCodeUsage = 2

	// ExitCodeSIGINT indicates termination due to SIGINT (Ctrl+C): 128 + 2.
	ExitCodeSIGINT = 130

	// ExitCodeSIGTERM indicates termination due to SIGTERM: 128 + 15.
	ExitCodeSIGTERM = 143
)

// ExitCodeName returns a human-readable name for an exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitCodeSuccess:
		return "success"
	case ExitCodeError:
		return "error"
	case ExitCodeUsage:
		return "usage error"
	case ExitCodeSIGINT:
		return "interrupted (SIGINT)"
	case ExitCodeSIGTERM:
		return "terminated (SIGTERM)"
	default:
		return "unknown"
	}
}

// IsSignalExit returns true if the exit code indicates a signal-based termination.
func IsSignalExit(code int) bool {
	return code == ExitCodeSIGINT || code == ExitCodeSIGTERM
}
