package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tryon-cli/internal/domain"
	"tryon-cli/internal/service"
)

// scriptedStatus replays a fixed sequence of status responses, repeating the
// final entry once the script runs out.
type scriptedStatus struct {
	mu     sync.Mutex
	calls  int
	script []statusStep
}

type statusStep struct {
	job domain.Job
	err error
}

func (s *scriptedStatus) JobStatus(ctx context.Context, jobID string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	s.calls++
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	step := s.script[idx]
	return step.job, step.err
}

func (s *scriptedStatus) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newFastPoller(status *scriptedStatus, maxAttempts int) *service.Poller {
	return service.NewPoller(status, service.PollerOptions{
		MaxAttempts: maxAttempts,
		Interval:    time.Millisecond,
	})
}

func pending() statusStep {
	return statusStep{job: domain.Job{Status: domain.StatusPending, StatusDescription: "Queued"}}
}

func processing(desc string) statusStep {
	return statusStep{job: domain.Job{Status: domain.StatusProcessing, StatusDescription: desc}}
}

func completed(url string) statusStep {
	return statusStep{job: domain.Job{Status: domain.StatusCompleted, ResultURL: url}}
}

func TestPoll_ReturnsResultAfterTerminalCompleted(t *testing.T) {
	status := &scriptedStatus{script: []statusStep{
		pending(),
		processing("Analyzing pose"),
		processing("Rendering"),
		completed("https://r/1.png"),
	}}
	poller := newFastPoller(status, 200)

	ref, err := poller.Poll(context.Background(), "job-1", nil)

	require.NoError(t, err)
	assert.Equal(t, "https://r/1.png", ref.SourceURL)
	assert.Equal(t, 4, status.callCount(), "poller must issue exactly one request per observed status")
}

func TestPoll_PropagatesServerFailureOnFirstAttempt(t *testing.T) {
	status := &scriptedStatus{script: []statusStep{
		{job: domain.Job{Status: domain.StatusFailed, Err: &domain.RemoteError{Code: "X", Message: "boom"}}},
	}}
	poller := newFastPoller(status, 200)

	_, err := poller.Poll(context.Background(), "job-1", nil)

	var remoteErr *domain.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "X", remoteErr.Code)
	assert.Equal(t, "boom", remoteErr.Message)
	assert.Equal(t, 1, status.callCount())
}

func TestPoll_FailureWithoutEnvelopeDefaultsCode(t *testing.T) {
	status := &scriptedStatus{script: []statusStep{
		{job: domain.Job{Status: domain.StatusFailed}},
	}}
	poller := newFastPoller(status, 200)

	_, err := poller.Poll(context.Background(), "job-1", nil)

	var remoteErr *domain.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, domain.CodeProcessingFailure, remoteErr.Code)
}

func TestPoll_CompletedWithoutResultURLIsFatal(t *testing.T) {
	status := &scriptedStatus{script: []statusStep{completed("")}}
	poller := newFastPoller(status, 200)

	_, err := poller.Poll(context.Background(), "job-1", nil)

	var missingErr *domain.MissingResultError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, "job-1", missingErr.JobID)
}

func TestPoll_UnknownStatusStopsImmediately(t *testing.T) {
	status := &scriptedStatus{script: []statusStep{
		{err: &domain.UnknownStatusError{Status: "paused"}},
		completed("https://r/never.png"),
	}}
	poller := newFastPoller(status, 200)

	_, err := poller.Poll(context.Background(), "job-1", nil)

	var unknownErr *domain.UnknownStatusError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, 1, status.callCount(), "no further requests after a protocol violation")
}

func TestPoll_RetriesTransportFailuresWithinBudget(t *testing.T) {
	status := &scriptedStatus{script: []statusStep{
		{err: &domain.NetworkError{Op: "GET status", Err: errors.New("connection reset")}},
		{err: &domain.ParseError{Op: "decoding status response", Err: errors.New("bad json")}},
		completed("https://r/1.png"),
	}}
	poller := newFastPoller(status, 200)

	ref, err := poller.Poll(context.Background(), "job-1", nil)

	require.NoError(t, err)
	assert.Equal(t, "https://r/1.png", ref.SourceURL)
	assert.Equal(t, 3, status.callCount())
}

func TestPoll_AuthFailureIsNotRetried(t *testing.T) {
	status := &scriptedStatus{script: []statusStep{
		{err: &domain.AuthRequiredError{RequiresLogin: true}},
	}}
	poller := newFastPoller(status, 200)

	_, err := poller.Poll(context.Background(), "job-1", nil)

	var authErr *domain.AuthRequiredError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, 1, status.callCount())
}

func TestPoll_TimesOutExactlyAtAttemptBudget(t *testing.T) {
	status := &scriptedStatus{script: []statusStep{pending()}}
	poller := newFastPoller(status, 5)

	_, err := poller.Poll(context.Background(), "job-1", nil)

	var timeoutErr *domain.PollingTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 5, timeoutErr.Attempts)
	assert.Equal(t, 5, status.callCount(), "exhaustion must happen exactly at the budget")
}

func TestPoll_FailedAttemptsConsumeTheSameBudget(t *testing.T) {
	status := &scriptedStatus{script: []statusStep{
		{err: &domain.NetworkError{Op: "GET status", Err: errors.New("timeout")}},
	}}
	poller := newFastPoller(status, 3)

	_, err := poller.Poll(context.Background(), "job-1", nil)

	var timeoutErr *domain.PollingTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 3, status.callCount())
}

func TestPoll_CancellationStopsTheLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	status := &scriptedStatus{script: []statusStep{pending()}}
	poller := newFastPoller(status, 200)

	_, err := poller.Poll(ctx, "job-1", func(ev domain.StatusEvent) {
		cancel() // the caller walks away after the first observation
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, status.callCount(), "no requests may be issued after cancellation")
}

func TestPoll_EmitsServerSuppliedProgressText(t *testing.T) {
	status := &scriptedStatus{script: []statusStep{
		{job: domain.Job{Status: domain.StatusPending, Message: "Waiting for a worker"}},
		processing("Fitting the garment"),
		completed("https://r/1.png"),
	}}
	poller := newFastPoller(status, 200)

	var descriptions []string
	_, err := poller.Poll(context.Background(), "job-1", func(ev domain.StatusEvent) {
		descriptions = append(descriptions, ev.Description)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Waiting for a worker", "Fitting the garment", ""}, descriptions)
}

func TestWatch_StreamsEventsAndClosesAfterTerminal(t *testing.T) {
	status := &scriptedStatus{script: []statusStep{
		pending(),
		processing("Rendering"),
		completed("https://r/1.png"),
	}}
	poller := newFastPoller(status, 200)

	var events []domain.StatusEvent
	for ev := range poller.Watch(context.Background(), "job-1") {
		events = append(events, ev)
	}

	require.NotEmpty(t, events)
	terminal := events[len(events)-1]
	require.NotNil(t, terminal.Result)
	assert.Equal(t, "https://r/1.png", terminal.Result.SourceURL)
	assert.NoError(t, terminal.Err)
	// Intermediate events carry the progress text.
	assert.Equal(t, domain.StatusPending, events[0].Status)
}

func TestWatch_TerminalEventCarriesTheError(t *testing.T) {
	status := &scriptedStatus{script: []statusStep{
		{job: domain.Job{Status: domain.StatusFailed, Err: &domain.RemoteError{Code: "X", Message: "boom"}}},
	}}
	poller := newFastPoller(status, 200)

	var terminal domain.StatusEvent
	for ev := range poller.Watch(context.Background(), "job-1") {
		terminal = ev
	}

	var remoteErr *domain.RemoteError
	require.ErrorAs(t, terminal.Err, &remoteErr)
	assert.Equal(t, "X", remoteErr.Code)
}
