// Package oauth2pw signs in through an OAuth2 resource-owner password grant.
package oauth2pw

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	apperrors "github.com/target/mmk-portal/internal/errors"
	"github.com/target/mmk-portal/internal/ports"
)

// Config configures Backend.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// TokenField selects the token handed to the session: "access_token" (default)
	// or an extra field such as "id_token".
	TokenField string
	Timeout    time.Duration
	Client     *http.Client
	// Registrar handles Register; the token endpoint cannot create accounts.
	Registrar ports.Backend
}

// Backend implements ports.Backend with the password grant.
type Backend struct {
	oauth      *oauth2.Config
	tokenField string
	client     *http.Client
	registrar  ports.Backend
}

var _ ports.Backend = (*Backend)(nil)

// New builds a Backend.
func New(cfg Config) (*Backend, error) {
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, errors.New("oauth2 token url is required")
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("oauth2 client id is required")
	}
	hc := cfg.Client
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	field := strings.TrimSpace(cfg.TokenField)
	if field == "" {
		field = "access_token"
	}
	return &Backend{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
			Scopes:       cfg.Scopes,
		},
		tokenField: field,
		client:     hc,
		registrar:  cfg.Registrar,
	}, nil
}

// Login exchanges the credentials at the token endpoint.
func (b *Backend) Login(ctx context.Context, in ports.Credentials) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.client)
	tok, err := b.oauth.PasswordCredentialsToken(ctx, in.Username, in.Password)
	if err != nil {
		return "", classify(err)
	}

	raw := tok.AccessToken
	if b.tokenField != "access_token" {
		raw, _ = tok.Extra(b.tokenField).(string)
	}
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: %s", ports.ErrNoTokenInResponse, b.tokenField)
	}
	return raw, nil
}

// Register forwards to the configured registrar.
func (b *Backend) Register(ctx context.Context, in ports.Registration) error {
	if b.registrar == nil {
		return apperrors.Unavailable("Registration is not available for this sign-in provider")
	}
	return b.registrar.Register(ctx, in)
}

func classify(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		msg := re.ErrorDescription
		if msg == "" && re.ErrorCode == "invalid_grant" {
			msg = "Invalid username or password"
		}
		return apperrors.FromHTTPStatus(re.Response.StatusCode, msg)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(err, apperrors.ErrCodeTimeout, "")
	}
	return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "")
}
