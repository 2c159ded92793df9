package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"tryon-cli/internal/domain"
	"tryon-cli/internal/infra"
)

// The server renders all results in a fixed portrait frame; the hint rides
// along on every submission.
const defaultAspectRatio = "3:4"

// ErrMissingBaseURL indicates the client was configured without a service URL.
var ErrMissingBaseURL = errors.New("provider: base URL is required")

// Options configures the try-on API client.
type Options struct {
	// BaseURL is the root of the try-on service, e.g. https://tryon.example.com.
	BaseURL string
	// Shop identifies the storefront on submissions. A payload carrying its
	// own Shop overrides it.
	Shop string
	// Auth performs the actual requests. Defaults to an anonymous AuthClient.
	Auth   *AuthClient
	Logger *infra.Logger
}

// APIClient is the HTTP adapter for the try-on service. It implements the
// submission, status and history ports.
type APIClient struct {
	baseURL      string
	shop         string
	auth         *AuthClient
	logger       *infra.Logger
	newRequestID func() string
}

// NewAPIClient constructs an APIClient.
func NewAPIClient(opts Options) (*APIClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	auth := opts.Auth
	if auth == nil {
		auth = NewAuthClient(AuthOptions{Logger: opts.Logger})
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.Discard()
	}
	return &APIClient{
		baseURL:      baseURL,
		shop:         strings.TrimSpace(opts.Shop),
		auth:         auth,
		logger:       logger,
		newRequestID: uuid.NewString,
	}, nil
}

// decodeRemoteError turns a non-2xx response body into a RemoteError. The
// server's envelope passes through verbatim when present; otherwise a
// generic error is synthesized from the HTTP status.
func decodeRemoteError(status int, body []byte) *domain.RemoteError {
	var envelope struct {
		ErrorMessage struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error_message"`
	}
	if json.Unmarshal(body, &envelope) == nil &&
		(envelope.ErrorMessage.Code != "" || envelope.ErrorMessage.Message != "") {
		code := envelope.ErrorMessage.Code
		if code == "" {
			code = fmt.Sprintf("HTTP_%d", status)
		}
		return &domain.RemoteError{Code: code, Message: envelope.ErrorMessage.Message, HTTPStatus: status}
	}
	return &domain.RemoteError{
		Code:       fmt.Sprintf("HTTP_%d", status),
		Message:    http.StatusText(status),
		HTTPStatus: status,
	}
}
