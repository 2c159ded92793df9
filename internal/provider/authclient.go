package provider

import (
	"net/http"
	"time"

	"tryon-cli/internal/domain"
	"tryon-cli/internal/infra"
	"tryon-cli/internal/ports"
)

// sessionHeader carries the stored session token on requests that fall back
// past the embedding-platform credentials.
const sessionHeader = "X-Session-Token"

type credentialSource int

const (
	credentialNone credentialSource = iota
	credentialBridgeTransport
	credentialBearer
	credentialSession
)

// AuthOptions configures the authenticated request layer.
type AuthOptions struct {
	// HTTPClient overrides the transport. Defaults to a client with a 60
	// second timeout and no cookie jar, so requests never carry ambient
	// cookies.
	HTTPClient *http.Client

	// AuthTransport, when set, is an already-authenticated RoundTripper
	// supplied by the embedding platform. It takes precedence over every
	// other credential source.
	AuthTransport http.RoundTripper

	// Bridge issues bearer tokens when no authenticated transport exists.
	Bridge ports.TokenBridge

	// Sessions holds the previously stored session token.
	Sessions ports.CredentialStore

	Logger *infra.Logger
}

// AuthClient resolves a credential per request along an ordered fallback
// chain and executes the request: platform-authenticated transport, then a
// bridge-issued bearer token, then the stored session token, then anonymous.
//
// A 401 invalidates the stored session credential once and surfaces an
// AuthRequiredError; there is no retry loop beyond that single invalidation.
type AuthClient struct {
	base     *http.Client
	bridged  *http.Client
	bridge   ports.TokenBridge
	sessions ports.CredentialStore
	logger   *infra.Logger
}

// NewAuthClient constructs an AuthClient from the given options.
func NewAuthClient(opts AuthOptions) *AuthClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	var bridged *http.Client
	if opts.AuthTransport != nil {
		c := *httpClient
		c.Transport = opts.AuthTransport
		bridged = &c
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.Discard()
	}
	return &AuthClient{
		base:     httpClient,
		bridged:  bridged,
		bridge:   opts.Bridge,
		sessions: opts.Sessions,
		logger:   logger,
	}
}

// Do attaches the first resolvable credential to req and executes it.
//
// Transport failures surface as NetworkError. A 401 surfaces as
// AuthRequiredError with RequiresLogin set, clearing the stored session
// credential when that was the source. Every other status, 4xx and 5xx
// included, is returned as a plain non-ok response for the caller to
// interpret.
func (c *AuthClient) Do(req *http.Request) (*http.Response, error) {
	client := c.base
	source := credentialNone

	if c.bridged != nil {
		client = c.bridged
		source = credentialBridgeTransport
	} else {
		if c.bridge != nil {
			token, err := c.bridge.SessionToken(req.Context())
			switch {
			case err != nil:
				c.logger.Debug().Err(err).Msg("token bridge unavailable, falling back")
			case token != "":
				req.Header.Set("Authorization", "Bearer "+token)
				source = credentialBearer
			}
		}
		if source == credentialNone && c.sessions != nil {
			if token, ok := c.sessions.Token(); ok && token != "" {
				req.Header.Set(sessionHeader, token)
				source = credentialSession
			}
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Op: req.Method + " " + req.URL.Path, Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if source == credentialSession {
			c.sessions.Clear()
			c.logger.Info().Str("path", req.URL.Path).Msg("stored session rejected, credential cleared")
		}
		return nil, &domain.AuthRequiredError{RequiresLogin: true, Reason: "server rejected the request credential"}
	}
	return resp, nil
}
