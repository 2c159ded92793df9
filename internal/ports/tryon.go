package ports

import (
	"context"

	"tryon-cli/internal/domain"
)

// SubmissionClient posts a generation payload to the remote service.
type SubmissionClient interface {
	// Submit validates the payload, encodes it and posts it. It returns an
	// asynchronous job handle or, on legacy deployments, the result directly.
	Submit(ctx context.Context, payload domain.SubmissionPayload) (domain.Submission, error)
}

// StatusClient reads the current state of a submitted job.
type StatusClient interface {
	JobStatus(ctx context.Context, jobID string) (domain.Job, error)
}

// HistoryClient lists a customer's previously generated results.
type HistoryClient interface {
	CustomerHistory(ctx context.Context, query domain.HistoryQuery) (domain.HistoryPage, error)
}

// ResourceFetcher retrieves the raw bytes behind an asset URL. It returns
// the data and the content type reported by whichever transport succeeded.
type ResourceFetcher interface {
	FetchResource(ctx context.Context, url string) ([]byte, string, error)
}

// CredentialStore abstracts the externally owned session-token storage. Token
// reports whether a stored credential exists; Clear discards it after the
// server rejects it.
type CredentialStore interface {
	Token() (string, bool)
	Clear()
}

// TokenBridge issues short-lived bearer tokens from the embedding platform.
// Implementations may block on the platform handshake, hence the context.
type TokenBridge interface {
	SessionToken(ctx context.Context) (string, error)
}
