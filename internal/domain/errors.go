package domain

// ErrorKind classifies why a submitted question failed.
type ErrorKind string

const (
	// ErrAuth is a credential or permission failure (401/403 from the remote service).
	ErrAuth ErrorKind = "auth"
	// ErrRateLimited is an HTTP 429 from the remote service.
	ErrRateLimited ErrorKind = "rate-limited"
	// ErrServerError is an HTTP 5xx or a relay-reported transport failure.
	ErrServerError ErrorKind = "server-error"
	// ErrTimeout means the polling budget was exhausted without a terminal status.
	ErrTimeout ErrorKind = "timeout"
	// ErrNetwork means the relay itself was unreachable or returned non-JSON.
	ErrNetwork ErrorKind = "network"
	// ErrQueryFailed means the remote service explicitly reported a FAILED status.
	ErrQueryFailed ErrorKind = "query-failed"
	// ErrInvalidInput is a local validation failure; it never reaches the network.
	ErrInvalidInput ErrorKind = "invalid-input"
	// ErrUnknown is the fallback classification.
	ErrUnknown ErrorKind = "unknown"
)

// Retryable reports whether re-submitting the same question could help.
// Only local validation failures are non-retryable.
func (k ErrorKind) Retryable() bool {
	return k != ErrInvalidInput
}

// Message returns the user-facing notice for this error kind.
func (k ErrorKind) Message() string {
	switch k {
	case ErrAuth:
		return "Not authorized to query the data service. Please contact the site owner."
	case ErrRateLimited:
		return "Too many questions right now. Please wait a moment and try again."
	case ErrServerError:
		return "The data service had a problem answering. Please try again."
	case ErrTimeout:
		return "The answer is taking too long. Please try again."
	case ErrNetwork:
		return "Could not reach the data service. Check your connection and try again."
	case ErrQueryFailed:
		return "The data service could not answer that question. Try rephrasing it."
	case ErrInvalidInput:
		return "Questions must be between 5 and 1000 characters."
	default:
		return "Something went wrong. Please try again."
	}
}
