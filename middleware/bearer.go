package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/goAuthClient/jwt"
	"golang.org/x/oauth2"
)

// TokenProvider is the part of goAuthClient.Manager the adapters need.
type TokenProvider interface {
	EnsureFreshAccessToken(ctx context.Context) (string, error)
}

// RoundTripper wraps base (http.DefaultTransport when nil) and sets the
// bearer header from provider on each request. A provider failure is
// returned as the round-trip error and no request is sent.
func RoundTripper(provider TokenProvider, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &bearerTransport{provider: provider, base: base}
}

type bearerTransport struct {
	provider TokenProvider
	base     http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.provider == nil {
		return nil, errors.New("middleware: nil token provider")
	}
	token, err := t.provider.EnsureFreshAccessToken(req.Context())
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}

	// RoundTrippers must not modify the caller's request.
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(out)
}

// TokenSource returns an oauth2.TokenSource that asks provider for a fresh
// access token on every call, using ctx for any refresh it triggers.
//
// Do not wrap it in oauth2.ReuseTokenSource: that cache would keep serving a
// token after the manager logged out.
func TokenSource(ctx context.Context, provider TokenProvider) oauth2.TokenSource {
	if ctx == nil {
		ctx = context.Background()
	}
	return &managerTokenSource{ctx: ctx, provider: provider}
}

type managerTokenSource struct {
	ctx      context.Context
	provider TokenProvider
}

func (s *managerTokenSource) Token() (*oauth2.Token, error) {
	if s.provider == nil {
		return nil, errors.New("middleware: nil token provider")
	}
	access, err := s.provider.EnsureFreshAccessToken(s.ctx)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if exp, err := jwt.DecodeExpiry(access); err == nil {
		tok.Expiry = exp
	}
	return tok, nil
}

// NewClient returns an *http.Client whose requests carry a fresh bearer
// token. Requests use their own context for refreshes.
func NewClient(provider TokenProvider, base http.RoundTripper) *http.Client {
	return &http.Client{Transport: RoundTripper(provider, base)}
}

// NewOAuth2Client returns an *http.Client built on oauth2.Transport, for code
// that already standardizes on golang.org/x/oauth2.
func NewOAuth2Client(ctx context.Context, provider TokenProvider, base http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: TokenSource(ctx, provider),
			Base:   base,
		},
	}
}
