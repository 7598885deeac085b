package goAuthClient

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

func mintToken(t *testing.T, subject string, exp time.Time) string {
	t.Helper()
	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: gojwt.NewNumericDate(exp),
		IssuedAt:  gojwt.NewNumericDate(exp.Add(-time.Hour)),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func freshPair(t *testing.T, subject string) CredentialPair {
	t.Helper()
	now := time.Now()
	return CredentialPair{
		AccessToken:  mintToken(t, subject, now.Add(time.Hour)),
		RefreshToken: mintToken(t, subject, now.Add(24*time.Hour)),
	}
}

func expiredAccessPair(t *testing.T, subject string) CredentialPair {
	t.Helper()
	now := time.Now()
	return CredentialPair{
		AccessToken:  mintToken(t, subject, now.Add(-time.Second)),
		RefreshToken: mintToken(t, subject, now.Add(time.Hour)),
	}
}

// fakeStore is a CredentialStore without the BatchStore capability.
type fakeStore struct {
	mu      sync.Mutex
	values  map[string]string
	gets    int
	sets    int
	deletes int

	failGet    error
	failSet    error
	failDelete error

	// failKeyOnce fails the next Set of that key with failKeyErr.
	failKeyOnce string
	failKeyErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (s *fakeStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.failGet != nil {
		return "", false, s.failGet
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *fakeStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.failSet != nil {
		return s.failSet
	}
	if s.failKeyOnce != "" && key == s.failKeyOnce {
		s.failKeyOnce = ""
		return s.failKeyErr
	}
	s.values[key] = value
	return nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	if s.failDelete != nil {
		return s.failDelete
	}
	delete(s.values, key)
	return nil
}

func (s *fakeStore) seed(pair CredentialPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[DefaultAccessKey] = pair.AccessToken
	s.values[DefaultRefreshKey] = pair.RefreshToken
}

func (s *fakeStore) pair() CredentialPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CredentialPair{AccessToken: s.values[DefaultAccessKey], RefreshToken: s.values[DefaultRefreshKey]}
}

func (s *fakeStore) calls() (gets, sets, deletes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets, s.sets, s.deletes
}

func (s *fakeStore) resetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets, s.sets, s.deletes = 0, 0, 0
}

func (s *fakeStore) setFailSet(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSet = err
}

func (s *fakeStore) failNextSetOf(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failKeyOnce, s.failKeyErr = key, err
}

func (s *fakeStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

// batchFakeStore adds the BatchStore capability.
type batchFakeStore struct {
	*fakeStore
	setManys    atomic.Int32
	deleteManys atomic.Int32
}

func (s *batchFakeStore) SetMany(_ context.Context, values map[string]string) error {
	s.setManys.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet != nil {
		return s.failSet
	}
	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

func (s *batchFakeStore) DeleteMany(_ context.Context, keys ...string) error {
	s.deleteManys.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete != nil {
		return s.failDelete
	}
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

type fakeTransport struct {
	loginFn   func(ctx context.Context, username, password string) (CredentialPair, error)
	refreshFn func(ctx context.Context, refreshToken string) (CredentialPair, error)

	logins    atomic.Int32
	refreshes atomic.Int32
}

func (f *fakeTransport) Login(ctx context.Context, username, password string) (CredentialPair, error) {
	f.logins.Add(1)
	if f.loginFn == nil {
		return CredentialPair{}, errors.New("login not configured")
	}
	return f.loginFn(ctx, username, password)
}

func (f *fakeTransport) Refresh(ctx context.Context, refreshToken string) (CredentialPair, error) {
	f.refreshes.Add(1)
	if f.refreshFn == nil {
		return CredentialPair{}, errors.New("refresh not configured")
	}
	return f.refreshFn(ctx, refreshToken)
}

type registeringTransport struct {
	fakeTransport
	got RegisterRequest
	err error
}

func (r *registeringTransport) Register(_ context.Context, req RegisterRequest) error {
	r.got = req
	return r.err
}

func loginReturning(pair CredentialPair) func(context.Context, string, string) (CredentialPair, error) {
	return func(_ context.Context, _, password string) (CredentialPair, error) {
		if password == "bad" {
			return CredentialPair{}, NewAuthError(KindInvalidCredentials, 401, "Invalid username or password", nil)
		}
		return pair, nil
	}
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestManager(t *testing.T, store CredentialStore, tr Transport, configure ...func(*Builder)) *Manager {
	t.Helper()
	b := New().WithStore(store).WithTransport(tr).WithLogger(quietLogger())
	for _, fn := range configure {
		fn(b)
	}
	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
