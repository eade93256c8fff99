// Package backend talks to the external authentication service over HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	apperrors "github.com/target/mmk-portal/internal/errors"
	"github.com/target/mmk-portal/internal/ports"
)

const (
	// DefaultLoginPath and DefaultRegisterPath match the Spring Boot auth controller.
	DefaultLoginPath    = "/api/auth/login"
	DefaultRegisterPath = "/api/auth/register"

	maxResponseBytes = 1 << 20
)

// DefaultTokenFields are tried in order against a successful login response.
func DefaultTokenFields() []string {
	return []string{"accessToken", "token", "jwt"}
}

// Config configures Client.
type Config struct {
	BaseURL      string
	LoginPath    string
	RegisterPath string
	Timeout      time.Duration
	// TokenFields are JMESPath expressions evaluated in order against the login
	// response body. The first non-empty string result is the token.
	TokenFields []string
	// RateLimit caps outbound requests per second; zero disables pacing.
	RateLimit float64
	Burst     int
	Client    *http.Client
	Logger    *slog.Logger
}

// Client implements ports.Backend against a JSON HTTP API.
type Client struct {
	loginURL    string
	registerURL string
	fields      []string
	limiter     *rate.Limiter
	client      *http.Client
	logger      *slog.Logger
}

var _ ports.Backend = (*Client)(nil)

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend base url %q is not absolute", cfg.BaseURL)
	}

	fields := cfg.TokenFields
	if len(fields) == 0 {
		fields = DefaultTokenFields()
	}
	for _, f := range fields {
		if _, err := jmespath.Compile(f); err != nil {
			return nil, fmt.Errorf("token field %q: %w", f, err)
		}
	}

	hc := cfg.Client
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		hc = &http.Client{Timeout: timeout, Jar: jar}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		loginURL:    base.JoinPath(fallbackString(cfg.LoginPath, DefaultLoginPath)).String(),
		registerURL: base.JoinPath(fallbackString(cfg.RegisterPath, DefaultRegisterPath)).String(),
		fields:      fields,
		limiter:     limiter,
		client:      hc,
		logger:      logger.With("component", "backend"),
	}, nil
}

func fallbackString(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

// Login posts the credentials and extracts the token from the response.
func (c *Client) Login(ctx context.Context, in ports.Credentials) (string, error) {
	body, err := c.post(ctx, c.loginURL, in)
	if err != nil {
		return "", err
	}
	return c.extractToken(body)
}

// Register posts a new account. Any 2xx response is success; its body is ignored.
func (c *Client) Register(ctx context.Context, in ports.Registration) error {
	_, err := c.post(ctx, c.registerURL, in)
	return err
}

// post sends payload as JSON and returns the body of a 2xx response. Non-2xx
// responses become AppErrors carrying the backend's message; failures before a
// response is read become AppErrors with a cause and no message.
func (c *Client) post(ctx context.Context, target string, payload any) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, transportError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "backend request failed", "url", target, "error", err)
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.InfoContext(ctx, "backend rejected request", "url", target, "status", resp.StatusCode)
		return nil, apperrors.FromHTTPStatus(resp.StatusCode, errorMessage(body))
	}
	return body, nil
}

func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(err, apperrors.ErrCodeTimeout, "")
	}
	if errors.Is(err, context.Canceled) {
		return apperrors.Wrap(err, apperrors.ErrCodeCanceled, "")
	}
	return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "")
}

// errorMessage returns the "message" field of a JSON error body, if any.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Message)
}

func (c *Client) extractToken(body []byte) (string, error) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("%w: response is not JSON", ports.ErrNoTokenInResponse)
	}

	if _, isObject := data.(map[string]any); isObject {
		for _, expr := range c.fields {
			v, err := jmespath.Search(expr, data)
			if err != nil {
				continue
			}
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s), nil
			}
		}
	}

	if s, ok := data.(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s), nil
	}
	return "", ports.ErrNoTokenInResponse
}
