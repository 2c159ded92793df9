package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"tryon-cli/internal/domain"
	"tryon-cli/internal/infra"
	"tryon-cli/internal/ports"
)

const (
	// DefaultMaxAttempts bounds the poll loop; combined with DefaultInterval
	// it gives a hard ceiling of roughly ten minutes of wall clock.
	DefaultMaxAttempts = 200
	// DefaultInterval is the fixed pause between status checks.
	DefaultInterval = 3 * time.Second
)

// PollerOptions configures a Poller. Zero values take the defaults above.
type PollerOptions struct {
	MaxAttempts int
	Interval    time.Duration
	Logger      *infra.Logger
}

// Poller drives a submitted job to a terminal state. Transport and decode
// failures consume an attempt and retry after the interval; protocol
// violations and server-reported failures end the poll immediately.
type Poller struct {
	status      ports.StatusClient
	maxAttempts int
	interval    time.Duration
	logger      *infra.Logger
}

// NewPoller constructs a Poller over the given status client.
func NewPoller(status ports.StatusClient, opts PollerOptions) *Poller {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.Discard()
	}
	return &Poller{status: status, maxAttempts: maxAttempts, interval: interval, logger: logger}
}

// Poll queries the job status until it terminates, the attempt budget runs
// out, or ctx is cancelled. onProgress, when non-nil, receives one event per
// successfully decoded status response, before the status is evaluated.
//
// Completed without a result URL is MissingResultError; a server-reported
// failure propagates its error envelope, defaulting to PROCESSING_FAILURE;
// budget exhaustion is PollingTimeoutError.
func (p *Poller) Poll(ctx context.Context, jobID string, onProgress func(domain.StatusEvent)) (domain.ResultRef, error) {
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.ResultRef{}, err
		}

		job, err := p.status.JobStatus(ctx, jobID)
		switch {
		case err != nil && retryable(err):
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.ResultRef{}, ctxErr
			}
			p.logger.Debug().Err(err).Int("attempt", attempt).Str("job_id", jobID).Msg("status check failed, will retry")

		case err != nil:
			return domain.ResultRef{}, err

		default:
			if onProgress != nil {
				onProgress(domain.StatusEvent{Status: job.Status, Description: progressText(job)})
			}
			switch job.Status {
			case domain.StatusCompleted:
				if strings.TrimSpace(job.ResultURL) == "" {
					return domain.ResultRef{}, &domain.MissingResultError{JobID: jobID}
				}
				p.logger.Info().Str("job_id", jobID).Int("attempts", attempt).Msg("job completed")
				return domain.ResultRef{ID: jobID, SourceURL: job.ResultURL}, nil
			case domain.StatusFailed:
				return domain.ResultRef{}, failureError(job)
			}
			// pending and processing loop around
		}

		if attempt == p.maxAttempts {
			break
		}
		if err := sleep(ctx, p.interval); err != nil {
			return domain.ResultRef{}, err
		}
	}
	return domain.ResultRef{}, &domain.PollingTimeoutError{Attempts: p.maxAttempts}
}

// Watch exposes the poll loop as an event stream. The channel receives one
// event per observed status plus a final terminal event carrying the result
// or the error, then closes. The caller must drain the channel; cancelling
// ctx releases the poller regardless.
func (p *Poller) Watch(ctx context.Context, jobID string) <-chan domain.StatusEvent {
	events := make(chan domain.StatusEvent, 1)
	go func() {
		defer close(events)
		ref, err := p.Poll(ctx, jobID, func(ev domain.StatusEvent) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
		terminal := domain.StatusEvent{Status: domain.StatusCompleted, Result: &ref}
		if err != nil {
			terminal = domain.StatusEvent{Status: domain.StatusFailed, Err: err}
		}
		select {
		case events <- terminal:
		case <-ctx.Done():
		}
	}()
	return events
}

// retryable reports whether an error from a status check consumes an attempt
// rather than ending the poll: transport failures, undecodable bodies and
// server-side 5xx responses. Client-side rejections (the job id is unknown,
// auth is gone) will not heal by waiting.
func retryable(err error) bool {
	var netErr *domain.NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var parseErr *domain.ParseError
	if errors.As(err, &parseErr) {
		return true
	}
	var remoteErr *domain.RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.HTTPStatus >= http.StatusInternalServerError
	}
	return false
}

// progressText picks the human-readable text for a progress event.
func progressText(job domain.Job) string {
	if job.StatusDescription != "" {
		return job.StatusDescription
	}
	return job.Message
}

func failureError(job domain.Job) error {
	code := domain.CodeProcessingFailure
	message := "the generation job failed"
	if job.Err != nil {
		if job.Err.Code != "" {
			code = job.Err.Code
		}
		if job.Err.Message != "" {
			message = job.Err.Message
		}
	} else if job.Message != "" {
		message = job.Message
	}
	return &domain.RemoteError{Code: code, Message: message}
}

// sleep pauses for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
