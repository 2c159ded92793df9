package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tryon-cli/internal/domain"
	"tryon-cli/internal/infra"
	"tryon-cli/internal/ports"
)

// FetcherOptions configures the multi-strategy resource fetcher.
type FetcherOptions struct {
	// HTTPClient defaults to a 60 second timeout client. Asset fetches are
	// unauthenticated; the fetcher never attaches credentials.
	HTTPClient *http.Client

	// ProxyURL is the server-side proxy endpoint, e.g.
	// https://tryon.example.com/api/proxy-image. Empty disables the proxy
	// strategy.
	ProxyURL string

	// ProxyHosts lists asset hosts whose cross-origin policies are known to
	// block direct reads. URLs on these hosts go through the proxy first.
	ProxyHosts []string

	Logger *infra.Logger
}

// Fetcher retrieves binary assets from result URLs, trying transport
// strategies in order until one yields usable bytes. Every strategy error
// but the last is swallowed; the last one survives verbatim inside the
// StrategiesExhaustedError.
type Fetcher struct {
	httpClient *http.Client
	proxyURL   string
	proxyHosts map[string]struct{}
	logger     *infra.Logger
}

// NewFetcher constructs a Fetcher.
func NewFetcher(opts FetcherOptions) *Fetcher {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	hosts := make(map[string]struct{}, len(opts.ProxyHosts))
	for _, host := range opts.ProxyHosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host != "" {
			hosts[host] = struct{}{}
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.Discard()
	}
	return &Fetcher{
		httpClient: httpClient,
		proxyURL:   strings.TrimRight(opts.ProxyURL, "/"),
		proxyHosts: hosts,
		logger:     logger,
	}
}

type fetchStrategy struct {
	name string
	run  func(ctx context.Context, rawURL string) ([]byte, string, error)
}

// FetchResource implements ports.ResourceFetcher.
func (f *Fetcher) FetchResource(ctx context.Context, rawURL string) ([]byte, string, error) {
	var lastErr error
	for _, strategy := range f.strategies(rawURL) {
		data, contentType, err := strategy.run(ctx, rawURL)
		if err == nil {
			f.logger.Debug().Str("strategy", strategy.name).Str("url", rawURL).Msg("resource fetched")
			return data, contentType, nil
		}
		lastErr = err
		f.logger.Debug().Str("strategy", strategy.name).Str("url", rawURL).Err(err).Msg("fetch strategy failed")
	}
	return nil, "", &domain.StrategiesExhaustedError{URL: rawURL, Last: lastErr}
}

// strategies returns the ordered attempt list for rawURL. Hosts known to
// block cross-origin reads get the proxy first; everything gets the direct
// fetch and then the bare fallback.
func (f *Fetcher) strategies(rawURL string) []fetchStrategy {
	list := []fetchStrategy{
		{name: "direct", run: f.fetchDirect},
		{name: "bare", run: f.fetchBare},
	}
	if f.proxyURL != "" && f.hostNeedsProxy(rawURL) {
		list = append([]fetchStrategy{{name: "proxy", run: f.fetchProxied}}, list...)
	}
	return list
}

func (f *Fetcher) hostNeedsProxy(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := f.proxyHosts[strings.ToLower(u.Hostname())]
	return ok
}

// fetchDirect asks for the asset with image content negotiation and accepts
// only an ok response.
func (f *Fetcher) fetchDirect(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("direct fetch: %w", err)
	}
	req.Header.Set("Accept", "image/*")
	return f.readImageResponse(req, "direct fetch")
}

// fetchBare retries without any negotiated headers for origins that reject
// them. A response without readable bytes is useless and rejected.
func (f *Fetcher) fetchBare(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("bare fetch: %w", err)
	}
	return f.readImageResponse(req, "bare fetch")
}

// fetchProxied routes the asset through the service's proxy endpoint,
// sidestepping the asset origin's cross-origin policy entirely.
func (f *Fetcher) fetchProxied(ctx context.Context, rawURL string) ([]byte, string, error) {
	endpoint := f.proxyURL + "?url=" + url.QueryEscape(rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("proxy fetch: %w", err)
	}
	return f.readImageResponse(req, "proxy fetch")
}

func (f *Fetcher) readImageResponse(req *http.Request, op string) ([]byte, string, error) {
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%s: reading body: %w", op, err)
	}
	if len(data) == 0 {
		return nil, "", errors.New(op + ": response carried no readable bytes")
	}
	return data, resp.Header.Get("Content-Type"), nil
}

var _ ports.ResourceFetcher = (*Fetcher)(nil)
