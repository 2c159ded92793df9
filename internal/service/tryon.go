package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"tryon-cli/internal/domain"
	"tryon-cli/internal/infra"
	"tryon-cli/internal/ports"
)

// DuplicatePolicy decides what happens when identical payloads are submitted
// concurrently. The server does not deduplicate, so the choice lives here.
type DuplicatePolicy int

const (
	// DuplicatesAllowed submits every payload as its own server job.
	DuplicatesAllowed DuplicatePolicy = iota
	// DuplicatesCoalesced shares one in-flight job between concurrent
	// submissions whose inputs fingerprint identically. Payloads carrying
	// file uploads cannot be fingerprinted and always run standalone.
	DuplicatesCoalesced
)

// Deps are the ports the service is wired over.
type Deps struct {
	Submitter ports.SubmissionClient
	Status    ports.StatusClient
	Fetcher   ports.ResourceFetcher
	History   ports.HistoryClient
}

// ServiceOptions configures the application service.
type ServiceOptions struct {
	Duplicates DuplicatePolicy
	Poller     PollerOptions
	Cache      CacheOptions
	Logger     *infra.Logger
}

// Service wires submission, polling, asset fetching and the recency cache
// behind one API surface. All collaborator state lives on the instance;
// nothing is module-global.
type Service struct {
	submitter ports.SubmissionClient
	status    ports.StatusClient
	fetcher   ports.ResourceFetcher
	poller    *Poller
	cache     *RecencyCache
	policy    DuplicatePolicy
	logger    *infra.Logger
	flight    singleflight.Group
}

// NewService constructs the application service.
func NewService(deps Deps, opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = infra.Discard()
	}
	pollerOpts := opts.Poller
	if pollerOpts.Logger == nil {
		pollerOpts.Logger = logger
	}
	cacheOpts := opts.Cache
	if cacheOpts.Logger == nil {
		cacheOpts.Logger = logger
	}
	return &Service{
		submitter: deps.Submitter,
		status:    deps.Status,
		fetcher:   deps.Fetcher,
		poller:    NewPoller(deps.Status, pollerOpts),
		cache:     NewRecencyCache(deps.History, cacheOpts),
		policy:    opts.Duplicates,
		logger:    logger,
	}
}

// Submit posts the payload without waiting for completion.
func (s *Service) Submit(ctx context.Context, payload domain.SubmissionPayload) (domain.Submission, error) {
	return s.submitter.Submit(ctx, payload)
}

// Status reads the current state of a job once.
func (s *Service) Status(ctx context.Context, jobID string) (domain.Job, error) {
	return s.status.JobStatus(ctx, jobID)
}

// Generate runs one try-on end to end: submit the payload, then either
// return the synchronous result or poll the job to completion. onProgress,
// when non-nil, observes intermediate status events.
//
// Under DuplicatesCoalesced, concurrent calls with identical fingerprints
// share a single submission and poll; only the first caller's onProgress
// observes events.
func (s *Service) Generate(ctx context.Context, payload domain.SubmissionPayload, onProgress func(domain.StatusEvent)) (domain.ResultRef, error) {
	if s.policy == DuplicatesCoalesced {
		if key, ok := payload.Fingerprint(); ok {
			v, err, shared := s.flight.Do(key, func() (interface{}, error) {
				ref, err := s.generate(ctx, payload, onProgress)
				if err != nil {
					return nil, err
				}
				return ref, nil
			})
			if err != nil {
				return domain.ResultRef{}, err
			}
			if shared {
				s.logger.Debug().Str("fingerprint", key).Msg("submission coalesced with an identical in-flight job")
			}
			return v.(domain.ResultRef), nil
		}
	}
	return s.generate(ctx, payload, onProgress)
}

func (s *Service) generate(ctx context.Context, payload domain.SubmissionPayload, onProgress func(domain.StatusEvent)) (domain.ResultRef, error) {
	sub, err := s.submitter.Submit(ctx, payload)
	if err != nil {
		return domain.ResultRef{}, err
	}
	if sub.Result != nil {
		// Legacy deployments answer synchronously; nothing to poll.
		return *sub.Result, nil
	}
	return s.poller.Poll(ctx, sub.JobID, onProgress)
}

// Watch exposes a job's remaining lifecycle as an event stream; see
// Poller.Watch.
func (s *Service) Watch(ctx context.Context, jobID string) <-chan domain.StatusEvent {
	return s.poller.Watch(ctx, jobID)
}

// ResultImage retrieves the raw bytes behind a result reference, along with
// the content type of whichever transport strategy succeeded.
func (s *Service) ResultImage(ctx context.Context, ref domain.ResultRef) ([]byte, string, error) {
	return s.fetcher.FetchResource(ctx, ref.SourceURL)
}

// Recent returns the customer's deduplicated latest results, served from the
// recency cache while it is valid.
func (s *Service) Recent(ctx context.Context, identity, store string, forceRefresh bool) ([]domain.ResultRef, error) {
	return s.cache.Recent(ctx, identity, store, forceRefresh)
}

// DownloadRecent saves the customer's latest results into dir, fetching the
// assets concurrently. The returned paths follow the Recent ordering.
func (s *Service) DownloadRecent(ctx context.Context, identity, store, dir string) ([]string, error) {
	items, err := s.Recent(ctx, identity, store, false)
	if err != nil {
		return nil, err
	}

	paths := make([]string, len(items))
	p := pool.New().WithErrors().WithContext(ctx)
	for i, item := range items {
		p.Go(func(ctx context.Context) error {
			data, contentType, err := s.fetcher.FetchResource(ctx, item.SourceURL)
			if err != nil {
				return fmt.Errorf("downloading %s: %w", item.SourceURL, err)
			}
			name := item.ID
			if name == "" {
				name = fmt.Sprintf("result_%d", i+1)
			}
			path := filepath.Join(dir, name+extensionFor(contentType))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			paths[i] = path
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func extensionFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return ".jpg"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	}
	return ".img"
}
