package ghl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/engageautomations/ghl-api-backend/internal/domain"
)

// Client encapsulates outbound HTTP calls to the HighLevel API.
type Client interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (*domain.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenResponse, error)
	ConvertLocationToken(ctx context.Context, companyToken, companyID, locationID string) (*domain.TokenResponse, error)
	Forward(ctx context.Context, req ForwardRequest) (*UpstreamResponse, error)
}

// ForwardRequest describes one proxied call to the upstream API.
type ForwardRequest struct {
	Method      string
	Path        string
	Query       url.Values
	AccessToken string
	// ContentType labels the body; media uploads arrive as multipart, most
	// everything else as JSON.
	ContentType string
	Body        []byte
}

// UpstreamResponse relays the upstream status and raw JSON body.
type UpstreamResponse struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the upstream answered with a 2xx status.
func (r *UpstreamResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Options configures the HTTP client.
type Options struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	APIVersion   string
	Timeout      time.Duration
}

// HTTPClient is the default Client implementation.
type HTTPClient struct {
	opts       Options
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient constructs the default Client. A nil http.Client gets a fixed
// timeout so a hung upstream call fails instead of suspending forever.
func NewHTTPClient(opts Options, client *http.Client) *HTTPClient {
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPClient{opts: opts, httpClient: client}
}

// ExchangeCode performs the authorization-code token exchange. A single POST,
// no retry; non-2xx or an unparseable body surfaces as TokenExchangeError.
func (c *HTTPClient) ExchangeCode(ctx context.Context, code, redirectURI string) (*domain.TokenResponse, error) {
	if strings.TrimSpace(code) == "" {
		return nil, domain.ErrInvalidRequest
	}
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("client_id", c.opts.ClientID)
	data.Set("client_secret", c.opts.ClientSecret)
	data.Set("code", code)
	data.Set("redirect_uri", redirectURI)

	token, status, body, err := c.postTokenForm(ctx, data)
	if err != nil || status >= 300 {
		return nil, domain.NewTokenExchangeError(status, body, err)
	}
	return token, nil
}

// RefreshToken performs the refresh grant against the token endpoint.
func (c *HTTPClient) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, domain.ErrInvalidRequest
	}
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("client_id", c.opts.ClientID)
	data.Set("client_secret", c.opts.ClientSecret)
	data.Set("refresh_token", refreshToken)

	token, status, body, err := c.postTokenForm(ctx, data)
	if err != nil || status >= 300 {
		return nil, domain.NewTokenRefreshError(status, body, err)
	}
	return token, nil
}

// ConvertLocationToken exchanges a Company-level token for a Location-scoped
// one via the provider's locationToken endpoint.
func (c *HTTPClient) ConvertLocationToken(ctx context.Context, companyToken, companyID, locationID string) (*domain.TokenResponse, error) {
	data := url.Values{}
	data.Set("companyId", companyID)
	data.Set("locationId", locationID)

	endpoint := c.opts.BaseURL + "/oauth/locationToken"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, domain.NewLocationConversionError(0, "", fmt.Errorf("build conversion request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+companyToken)
	req.Header.Set("Version", c.opts.APIVersion)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewLocationConversionError(0, "", fmt.Errorf("conversion request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domain.NewLocationConversionError(resp.StatusCode, "", fmt.Errorf("read conversion response: %w", err))
	}
	if resp.StatusCode >= 300 {
		return nil, domain.NewLocationConversionError(resp.StatusCode, string(body), nil)
	}

	token, err := parseTokenBody(body)
	if err != nil {
		return nil, domain.NewLocationConversionError(resp.StatusCode, string(body), err)
	}
	return token, nil
}

// Forward relays one request to the upstream API with the supplied bearer
// token. Non-2xx upstream statuses are returned to the caller, not errors.
func (c *HTTPClient) Forward(ctx context.Context, fwd ForwardRequest) (*UpstreamResponse, error) {
	target := c.opts.BaseURL + fwd.Path
	if len(fwd.Query) > 0 {
		target += "?" + fwd.Query.Encode()
	}

	var reader io.Reader
	if len(fwd.Body) > 0 {
		reader = bytes.NewReader(fwd.Body)
	}
	req, err := http.NewRequestWithContext(ctx, fwd.Method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+fwd.AccessToken)
	req.Header.Set("Version", c.opts.APIVersion)
	req.Header.Set("Accept", "application/json")
	if len(fwd.Body) > 0 {
		contentType := fwd.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}
	return &UpstreamResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

func (c *HTTPClient) postTokenForm(ctx context.Context, data url.Values) (*domain.TokenResponse, int, string, error) {
	endpoint := c.opts.BaseURL + "/oauth/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, 0, "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, resp.StatusCode, string(body), nil
	}

	token, err := parseTokenBody(body)
	if err != nil {
		return nil, resp.StatusCode, string(body), err
	}
	return token, resp.StatusCode, "", nil
}

func parseTokenBody(body []byte) (*domain.TokenResponse, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	token := &domain.TokenResponse{
		AccessToken:  stringValue(raw["access_token"]),
		RefreshToken: stringValue(raw["refresh_token"]),
		TokenType:    stringValue(raw["token_type"]),
		Scope:        stringValue(raw["scope"]),
		UserID:       stringValue(raw["userId"]),
		LocationID:   stringValue(raw["locationId"]),
		CompanyID:    stringValue(raw["companyId"]),
		UserType:     stringValue(raw["userType"]),
		Raw:          raw,
	}
	if token.TokenType == "" {
		token.TokenType = "Bearer"
	}
	if exp := raw["expires_in"]; exp != nil {
		token.ExpiresIn = int64Value(exp)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}
	return token, nil
}

func stringValue(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func int64Value(input any) int64 {
	switch v := input.(type) {
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	case int64:
		return v
	case int32:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
