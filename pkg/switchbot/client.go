// Package switchbot is a minimal client for the SwitchBot cloud API.
//
// Every call is signed with a fresh encryption.SignedRequest and made exactly once.
// Transport failures are reported as ErrTransportFailure; any HTTP response, including
// non-2xx statuses, is returned to the caller to interpret.
package switchbot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/benmeehan/switchbot-bridge/pkg/encryption"
	http_utils "github.com/benmeehan/switchbot-bridge/pkg/httpUtils"
	"github.com/rs/zerolog"
)

// ErrTransportFailure is returned when a vendor call did not produce an HTTP response.
var ErrTransportFailure = errors.New("switchbot: transport failure")

// Header names used by the signed request scheme.
const (
	HeaderAuthorization = "Authorization"
	HeaderSign          = "sign"
	HeaderTimestamp     = "t"
	HeaderNonce         = "nonce"
	HeaderContentType   = "Content-Type"
)

const contentTypeJSON = "application/json; charset=utf8"

// Response is a vendor HTTP response.
type Response = http_utils.Response

// VendorClient issues signed calls against the vendor API.
type VendorClient interface {
	Get(ctx context.Context, path string) (*Response, error)
	Post(ctx context.Context, path string, body []byte) (*Response, error)
}

// Client implements VendorClient over net/http.
type Client struct {
	baseURL    string
	signer     encryption.SignerInterface
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a Client. baseURL is normalized to end with "/".
func NewClient(baseURL string, signer encryption.SignerInterface, httpClient *http.Client, logger zerolog.Logger) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		signer:     signer,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "switchbot").Logger(),
	}
}

// Get issues a signed GET for path relative to the base URL.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post issues a signed POST for path relative to the base URL. A nil body sends no body.
func (c *Client) Post(ctx context.Context, path string, body []byte) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// URL returns the absolute URL for a path relative to the base URL.
func (c *Client) URL(path string) string {
	return c.baseURL + strings.TrimPrefix(path, "/")
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*Response, error) {
	url := c.URL(path)
	headers := SignedHeaders(c.signer.Sign())

	c.logger.Debug().Str("method", method).Str("url", url).Int("body_bytes", len(body)).Msg("Calling vendor API")

	resp, err := http_utils.DoRequest(ctx, c.httpClient, method, url, headers, body)
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("url", url).Msg("Vendor API call failed")
		return nil, fmt.Errorf("%w: %w", ErrTransportFailure, err)
	}

	c.logger.Debug().Str("method", method).Str("url", url).Int("status", resp.StatusCode).Msg("Vendor API responded")
	return resp, nil
}

// SignedHeaders converts a SignedRequest into the vendor's header set.
func SignedHeaders(req encryption.SignedRequest) map[string]string {
	return map[string]string{
		HeaderAuthorization: req.Token,
		HeaderSign:          req.Signature,
		HeaderTimestamp:     req.Timestamp,
		HeaderNonce:         req.Nonce,
		HeaderContentType:   contentTypeJSON,
	}
}
