package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	defaultLoginPath    = "/auth/login"
	defaultRefreshPath  = "/auth/refresh_token"
	defaultRegisterPath = "/auth/register"
	defaultUserAgent    = "goauthclient/1"
	defaultTimeout      = 15 * time.Second

	// maxResponseBytes caps how much of a reply is read.
	maxResponseBytes = 1 << 20
)

// Config configures [HTTP].
type Config struct {
	// BaseURL is the scheme and host (and optional path prefix) of the API,
	// e.g. "http://localhost:6060".
	BaseURL string

	LoginPath    string
	RefreshPath  string
	RegisterPath string

	UserAgent string
	// Timeout applies when Client is nil. Defaults to 15s.
	Timeout time.Duration
	// Client overrides the HTTP client.
	Client *http.Client
}

// HTTP is a goAuthClient.Transport and goAuthClient.Registrar backed by
// net/http.
type HTTP struct {
	base         *url.URL
	client       *http.Client
	userAgent    string
	loginPath    string
	refreshPath  string
	registerPath string
}

var (
	_ goAuthClient.Transport = (*HTTP)(nil)
	_ goAuthClient.Registrar = (*HTTP)(nil)
)

// New validates cfg and returns a transport.
func New(cfg Config) (*HTTP, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("transport: BaseURL is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("transport: parse BaseURL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("transport: unsupported scheme %q", base.Scheme)
	}
	if base.Host == "" {
		return nil, errors.New("transport: BaseURL has no host")
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &HTTP{
		base:         base,
		client:       client,
		userAgent:    firstNonEmpty(cfg.UserAgent, defaultUserAgent),
		loginPath:    firstNonEmpty(cfg.LoginPath, defaultLoginPath),
		refreshPath:  firstNonEmpty(cfg.RefreshPath, defaultRefreshPath),
		registerPath: firstNonEmpty(cfg.RegisterPath, defaultRegisterPath),
	}, nil
}

// Login posts the credentials and returns the issued pair.
func (t *HTTP) Login(ctx context.Context, username, password string) (goAuthClient.CredentialPair, error) {
	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "username", username)
	body, _ = sjson.SetBytes(body, "password", password)

	reply, err := t.post(ctx, t.loginPath, body, "")
	if err != nil {
		return goAuthClient.CredentialPair{}, err
	}
	return decodePair(reply)
}

// Refresh presents refreshToken as a bearer credential and returns the new pair.
func (t *HTTP) Refresh(ctx context.Context, refreshToken string) (goAuthClient.CredentialPair, error) {
	reply, err := t.post(ctx, t.refreshPath, []byte(`{}`), refreshToken)
	if err != nil {
		return goAuthClient.CredentialPair{}, err
	}
	return decodePair(reply)
}

// Register creates an account. The reply body is not interpreted beyond its
// status code.
func (t *HTTP) Register(ctx context.Context, req goAuthClient.RegisterRequest) error {
	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "username", req.Username)
	body, _ = sjson.SetBytes(body, "email", req.Email)
	body, _ = sjson.SetBytes(body, "password", req.Password)
	body, _ = sjson.SetBytes(body, "role", req.Role)

	_, err := t.post(ctx, t.registerPath, body, "")
	return err
}

func (t *HTTP) endpoint(path string) string {
	u := *t.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return u.String()
}

func (t *HTTP) post(ctx context.Context, path string, body []byte, bearer string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return nil, goAuthClient.NewAuthError(goAuthClient.KindServer, 0, "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("X-Request-ID", requestID(ctx))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, goAuthClient.NewAuthError(goAuthClient.KindNetwork, 0, "", err)
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, goAuthClient.NewAuthError(goAuthClient.KindNetwork, resp.StatusCode, "", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return reply, nil
	}
	return nil, statusError(resp.StatusCode, reply)
}

func statusError(status int, reply []byte) *goAuthClient.AuthError {
	kind := goAuthClient.KindServer
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		kind = goAuthClient.KindInvalidCredentials
	}
	return goAuthClient.NewAuthError(kind, status, replyMessage(reply), nil)
}

func replyMessage(reply []byte) string {
	if !gjson.ValidBytes(reply) {
		return goAuthClient.DefaultErrorMessage
	}
	for _, field := range []string{"error", "message"} {
		if v := gjson.GetBytes(reply, field); v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
			return v.Str
		}
	}
	return goAuthClient.DefaultErrorMessage
}

func decodePair(reply []byte) (goAuthClient.CredentialPair, error) {
	if !gjson.ValidBytes(reply) {
		return goAuthClient.CredentialPair{}, goAuthClient.NewAuthError(goAuthClient.KindServer, 0, "malformed credential reply", nil)
	}
	pair := goAuthClient.CredentialPair{
		AccessToken:  gjson.GetBytes(reply, "accessToken").String(),
		RefreshToken: gjson.GetBytes(reply, "refreshToken").String(),
	}
	if !pair.Complete() {
		return goAuthClient.CredentialPair{}, goAuthClient.NewAuthError(goAuthClient.KindServer, 0, "credential reply is missing tokens", nil)
	}
	return pair, nil
}

func requestID(ctx context.Context) string {
	if id := goAuthClient.RequestIDFromContext(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

func firstNonEmpty(v, fallback string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return fallback
}
