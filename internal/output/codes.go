// Package output provides JSON/Markdown/styled output formatting and error handling.
package output

// Exit codes.
const (
	ExitOK        = 0  // Success
	ExitUsage     = 1  // Invalid arguments or flags
	ExitNotFound  = 2  // Unknown record or key
	ExitConfig    = 3  // Config or registry file could not be loaded
	ExitInternal  = 7  // Unexpected failure
	ExitUnhealthy = 9  // A pass finished with errors
	ExitStore     = 10 // The key-value store failed
)

// Error codes for JSON envelope.
const (
	CodeUsage     = "usage"
	CodeNotFound  = "not_found"
	CodeConfig    = "config"
	CodeInternal  = "internal"
	CodeUnhealthy = "unhealthy"
	CodeStore     = "store"
)

// ExitCodeFor returns the exit code for a given error code.
func ExitCodeFor(code string) int {
	switch code {
	case CodeUsage:
		return ExitUsage
	case CodeNotFound:
		return ExitNotFound
	case CodeConfig:
		return ExitConfig
	case CodeUnhealthy:
		return ExitUnhealthy
	case CodeStore:
		return ExitStore
	default:
		return ExitInternal
	}
}

// HTTPStatusFor returns the HTTP status used by the status server for a
// given error code.
func HTTPStatusFor(code string) int {
	switch code {
	case CodeUsage:
		return 400
	case CodeNotFound:
		return 404
	case CodeUnhealthy, CodeStore:
		return 503
	default:
		return 500
	}
}
