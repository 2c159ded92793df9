package domain

import "fmt"

// CodeProcessingFailure is the fallback error code when the server reports a
// failed job without a structured error envelope.
const CodeProcessingFailure = "PROCESSING_FAILURE"

// ValidationError marks a payload rejected before any network call. It is
// never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid submission: %s: %s", e.Field, e.Reason)
}

// NetworkError wraps a transport-level failure (DNS, connection refused,
// timeout). It is retried only inside the poller's bounded loop.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AuthRequiredError means no usable credential exists or the server rejected
// the attached one. RequiresLogin tells the caller to re-authenticate; the
// stored session credential has already been cleared when it was the source.
type AuthRequiredError struct {
	RequiresLogin bool
	Reason        string
}

func (e *AuthRequiredError) Error() string {
	if e.Reason != "" {
		return "authentication required: " + e.Reason
	}
	return "authentication required"
}

// RemoteError carries the server's structured error envelope. Code and
// Message pass through verbatim when the envelope is present; otherwise the
// code is synthesized from the HTTP status.
type RemoteError struct {
	Code       string
	Message    string
	HTTPStatus int
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("remote error: %s", e.Message)
}

// ParseError marks a response body that was present but not decodable as
// expected. It is a hard failure outside the poller's loop.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MissingResultError means a job completed without a result URL. The job
// nominally succeeded but yielded nothing usable; always fatal.
type MissingResultError struct {
	JobID string
}

func (e *MissingResultError) Error() string {
	return fmt.Sprintf("job %s completed without a result URL", e.JobID)
}

// UnknownStatusError marks a status string outside the protocol vocabulary.
// Always fatal; polling an uninterpretable state would never terminate.
type UnknownStatusError struct {
	Status string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown job status %q", e.Status)
}

// PollingTimeoutError means the attempt budget ran out before the job
// reached a terminal state.
type PollingTimeoutError struct {
	Attempts int
}

func (e *PollingTimeoutError) Error() string {
	return fmt.Sprintf("job did not reach a terminal state within %d status checks", e.Attempts)
}

// StrategiesExhaustedError means every resource-fetch strategy failed. Last
// holds the final strategy's error verbatim and is reachable via Unwrap, so
// error provenance survives the fallback chain.
type StrategiesExhaustedError struct {
	URL  string
	Last error
}

func (e *StrategiesExhaustedError) Error() string {
	return fmt.Sprintf("all fetch strategies failed for %s: %v", e.URL, e.Last)
}

func (e *StrategiesExhaustedError) Unwrap() error { return e.Last }
