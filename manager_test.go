package goAuthClient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestEnsureFreshReturnsCachedTokenWithoutIO(t *testing.T) {
	store := newFakeStore()
	pair := freshPair(t, "user-1")
	store.seed(pair)
	tr := &fakeTransport{}
	m := newTestManager(t, store, tr)

	if s, err := m.Restore(context.Background()); err != nil || s.Kind != StateAuthenticated {
		t.Fatalf("Restore: state=%v err=%v", s.Kind, err)
	}
	store.resetCalls()

	for i := 0; i < 5; i++ {
		token, err := m.EnsureFreshAccessToken(context.Background())
		if err != nil {
			t.Fatalf("EnsureFreshAccessToken: %v", err)
		}
		if token != pair.AccessToken {
			t.Fatal("expected cached access token")
		}
	}

	gets, sets, deletes := store.calls()
	if gets+sets+deletes != 0 {
		t.Fatalf("expected no store calls, got gets=%d sets=%d deletes=%d", gets, sets, deletes)
	}
	if tr.refreshes.Load() != 0 || tr.logins.Load() != 0 {
		t.Fatal("expected no transport calls")
	}
	if got := m.MetricsSnapshot().Counters[MetricFreshTokenHit]; got != 5 {
		t.Fatalf("fresh token hits = %d, want 5", got)
	}
}

func TestEnsureFreshRefreshesExpiredAccessAndPersists(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTransport{
		loginFn: loginReturning(expiredAccessPair(t, "user-1")),
		refreshFn: func(context.Context, string) (CredentialPair, error) {
			return CredentialPair{AccessToken: "A2", RefreshToken: "R2"}, nil
		},
	}
	m := newTestManager(t, store, tr)

	if _, err := m.Login(context.Background(), "u", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	token, err := m.EnsureFreshAccessToken(context.Background())
	if err != nil {
		t.Fatalf("EnsureFreshAccessToken: %v", err)
	}
	if token != "A2" {
		t.Fatalf("token = %q, want A2", token)
	}
	if got := store.pair(); got.AccessToken != "A2" || got.RefreshToken != "R2" {
		t.Fatalf("store holds %+v, want A2/R2", got)
	}
	if s := m.State(); s.Kind != StateAuthenticated || s.Pair.AccessToken != "A2" {
		t.Fatalf("state = %+v", s)
	}
	if got := tr.refreshes.Load(); got != 1 {
		t.Fatalf("refresh calls = %d, want 1", got)
	}
}

func TestConcurrentCallersShareOneRefresh(t *testing.T) {
	const callers = 16

	store := newFakeStore()
	next := freshPair(t, "user-1")
	release := make(chan struct{})
	tr := &fakeTransport{
		loginFn: loginReturning(expiredAccessPair(t, "user-1")),
		refreshFn: func(context.Context, string) (CredentialPair, error) {
			<-release
			return next, nil
		},
	}
	m := newTestManager(t, store, tr)
	if _, err := m.Login(context.Background(), "u", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	var (
		wg     sync.WaitGroup
		start  = make(chan struct{})
		tokens = make([]string, callers)
		errs   = make([]error, callers)
	)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			<-start
			tokens[i], errs[i] = m.EnsureFreshAccessToken(context.Background())
		}(i)
	}
	close(start)

	waitFor(t, "all callers to wait on the ticket", func() bool {
		return m.refresher.Waiters() == callers
	})
	close(release)
	wg.Wait()

	if got := tr.refreshes.Load(); got != 1 {
		t.Fatalf("refresh calls = %d, want exactly 1", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if tokens[i] != next.AccessToken {
			t.Fatalf("caller %d received a different token", i)
		}
	}
	snap := m.MetricsSnapshot()
	if snap.Counters[MetricRefreshJoined] != callers-1 {
		t.Fatalf("joined = %d, want %d", snap.Counters[MetricRefreshJoined], callers-1)
	}
	if snap.Counters[MetricRefreshSuccess] != 1 {
		t.Fatalf("refresh success = %d, want 1", snap.Counters[MetricRefreshSuccess])
	}
}

func TestLateCallerAfterRefreshDoesNotRefreshAgain(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTransport{
		loginFn: loginReturning(expiredAccessPair(t, "user-1")),
	}
	next := freshPair(t, "user-1")
	tr.refreshFn = func(context.Context, string) (CredentialPair, error) {
		return next, nil
	}
	m := newTestManager(t, store, tr)
	if _, err := m.Login(context.Background(), "u", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// A caller that observed the expired token before the first refresh
	// landed reaches the coordinator afterwards.
	_, staleEpoch := m.snapshot()
	staleRefresh := m.State().Pair.RefreshToken
	if _, err := m.EnsureFreshAccessToken(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	pair, err := m.refreshPair(context.Background(), staleEpoch, staleRefresh)
	if err != nil {
		t.Fatalf("late refresh: %v", err)
	}
	if pair.AccessToken != next.AccessToken {
		t.Fatal("late caller should receive the renewed token")
	}
	if got := tr.refreshes.Load(); got != 1 {
		t.Fatalf("refresh calls = %d, want 1", got)
	}
}

func TestRefreshPersistFailureEndsSession(t *testing.T) {
	for _, batch := range []bool{false, true} {
		name := "sequential"
		if batch {
			name = "batch"
		}
		t.Run(name, func(t *testing.T) {
			base := newFakeStore()
			var store CredentialStore = base
			if batch {
				store = &batchFakeStore{fakeStore: base}
			}
			stale := expiredAccessPair(t, "user-1")
			tr := &fakeTransport{
				loginFn: loginReturning(stale),
				refreshFn: func(context.Context, string) (CredentialPair, error) {
					return CredentialPair{AccessToken: "A2", RefreshToken: "R2"}, nil
				},
			}
			m := newTestManager(t, store, tr)
			if _, err := m.Login(context.Background(), "u", "pw"); err != nil {
				t.Fatalf("Login: %v", err)
			}

			base.setFailSet(errors.New("disk full"))
			token, err := m.EnsureFreshAccessToken(context.Background())
			if token != "" {
				t.Fatalf("expected no token, got %q", token)
			}
			if !errors.Is(err, ErrServer) || !errors.Is(err, ErrStorage) {
				t.Fatalf("expected server error wrapping storage failure, got %v", err)
			}
			if s := m.State(); s.Kind != StateUnauthenticated {
				t.Fatalf("state = %v, want unauthenticated", s.Kind)
			}
			if _, ok := m.CurrentAccessToken(); ok {
				t.Fatal("stale token still exposed after failed persist")
			}
			if got := base.pair(); got.AccessToken == stale.AccessToken {
				t.Fatal("stale access token left in store")
			}
		})
	}
}

func TestRefreshFailureEndsSessionAndClearsStore(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTransport{
		loginFn: loginReturning(expiredAccessPair(t, "user-1")),
		refreshFn: func(context.Context, string) (CredentialPair, error) {
			return CredentialPair{}, NewAuthError(KindNetwork, 0, "", errors.New("connection refused"))
		},
	}
	m := newTestManager(t, store, tr)
	if _, err := m.Login(context.Background(), "u", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	_, err := m.EnsureFreshAccessToken(context.Background())
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if s := m.State(); s.Kind != StateUnauthenticated {
		t.Fatalf("state = %v, want unauthenticated", s.Kind)
	}
	if store.len() != 0 {
		t.Fatal("store not cleared after refresh failure")
	}

	_, err = m.EnsureFreshAccessToken(context.Background())
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if got := tr.refreshes.Load(); got != 1 {
		t.Fatalf("refresh calls = %d, want 1", got)
	}
}

func TestExpiredRefreshTokenFailsWithoutNetwork(t *testing.T) {
	store := newFakeStore()
	now := time.Now()
	tr := &fakeTransport{
		loginFn: loginReturning(CredentialPair{
			AccessToken:  mintToken(t, "user-1", now.Add(-time.Minute)),
			RefreshToken: mintToken(t, "user-1", now.Add(-time.Second)),
		}),
	}
	m := newTestManager(t, store, tr)
	if _, err := m.Login(context.Background(), "u", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	_, err := m.EnsureFreshAccessToken(context.Background())
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if tr.refreshes.Load() != 0 {
		t.Fatal("expired refresh token must not reach the transport")
	}
	if m.State().Kind != StateUnauthenticated {
		t.Fatal("expected unauthenticated")
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	store := &batchFakeStore{fakeStore: newFakeStore()}
	tr := &fakeTransport{loginFn: loginReturning(freshPair(t, "user-1"))}
	m := newTestManager(t, store, tr)
	if _, err := m.Login(context.Background(), "u", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := m.Logout(context.Background()); err != nil {
			t.Fatalf("Logout #%d: %v", i+1, err)
		}
		if s := m.State(); s.Kind != StateUnauthenticated {
			t.Fatalf("Logout #%d: state = %v", i+1, s.Kind)
		}
		if store.len() != 0 {
			t.Fatalf("Logout #%d: store not empty", i+1)
		}
	}
	if got := store.deleteManys.Load(); got != 2 {
		t.Fatalf("DeleteMany calls = %d, want 2", got)
	}
}

func TestLogoutDuringRefreshDiscardsLateResult(t *testing.T) {
	store := newFakeStore()
	release := make(chan struct{})
	tr := &fakeTransport{
		loginFn: loginReturning(expiredAccessPair(t, "user-1")),
		refreshFn: func(context.Context, string) (CredentialPair, error) {
			<-release
			return CredentialPair{AccessToken: "A2", RefreshToken: "R2"}, nil
		},
	}
	m := newTestManager(t, store, tr)
	if _, err := m.Login(context.Background(), "u", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := m.EnsureFreshAccessToken(context.Background())
		errCh <- err
	}()
	waitFor(t, "refresh to start", func() bool { return tr.refreshes.Load() == 1 })

	if err := m.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrLoggedOut) {
			t.Fatalf("waiter expected ErrLoggedOut, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not released by logout")
	}

	close(release)
	waitFor(t, "late refresh result to be discarded", func() bool {
		return m.MetricsSnapshot().Counters[MetricRefreshDiscarded] >= 2
	})

	if s := m.State(); s.Kind != StateUnauthenticated {
		t.Fatalf("state resurrected to %v after logout", s.Kind)
	}
	if store.len() != 0 {
		t.Fatalf("late refresh wrote the store: %+v", store.pair())
	}
}

func TestLoginSupersedesInFlightRefresh(t *testing.T) {
	store := newFakeStore()
	release := make(chan struct{})
	second := freshPair(t, "user-2")
	logins := 0
	tr := &fakeTransport{
		refreshFn: func(context.Context, string) (CredentialPair, error) {
			<-release
			return CredentialPair{AccessToken: "A-stale", RefreshToken: "R-stale"}, nil
		},
	}
	first := expiredAccessPair(t, "user-1")
	tr.loginFn = func(context.Context, string, string) (CredentialPair, error) {
		logins++
		if logins == 1 {
			return first, nil
		}
		return second, nil
	}
	m := newTestManager(t, store, tr)
	if _, err := m.Login(context.Background(), "u1", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := m.EnsureFreshAccessToken(context.Background())
		errCh <- err
	}()
	waitFor(t, "refresh to start", func() bool { return tr.refreshes.Load() == 1 })

	if _, err := m.Login(context.Background(), "u2", "pw"); err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if err := <-errCh; !errors.Is(err, ErrLoggedOut) {
		t.Fatalf("superseded waiter expected ErrLoggedOut, got %v", err)
	}

	close(release)
	waitFor(t, "superseded refresh to land", func() bool {
		return m.MetricsSnapshot().Counters[MetricRefreshDiscarded] >= 2
	})
	if s := m.State(); s.Pair != second {
		t.Fatal("superseded refresh overwrote the new session")
	}
	if got := store.pair(); got != second {
		t.Fatal("superseded refresh overwrote the stored pair")
	}
}

func TestWaiterCancellationDoesNotAbortRefresh(t *testing.T) {
	store := newFakeStore()
	release := make(chan struct{})
	next := freshPair(t, "user-1")
	tr := &fakeTransport{
		loginFn: loginReturning(expiredAccessPair(t, "user-1")),
		refreshFn: func(ctx context.Context, _ string) (CredentialPair, error) {
			select {
			case <-release:
				return next, nil
			case <-ctx.Done():
				return CredentialPair{}, ctx.Err()
			}
		},
	}
	m := newTestManager(t, store, tr)
	if _, err := m.Login(context.Background(), "u", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := m.EnsureFreshAccessToken(ctx)
		errCh <- err
	}()
	waitFor(t, "refresh to start", func() bool { return tr.refreshes.Load() == 1 })
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(release)
	waitFor(t, "refresh to complete", func() bool {
		return m.MetricsSnapshot().Counters[MetricRefreshSuccess] == 1
	})
	if got := store.pair(); got != next {
		t.Fatal("refresh result was not persisted after the first waiter left")
	}
}

func TestEnsureFreshRequiresSession(t *testing.T) {
	m := newTestManager(t, newFakeStore(), &fakeTransport{})

	_, err := m.EnsureFreshAccessToken(context.Background())
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated before restore, got %v", err)
	}
	if _, ok := m.CurrentAccessToken(); ok {
		t.Fatal("CurrentAccessToken must report no token")
	}
}

func TestRestoreBothExpiredClearsStore(t *testing.T) {
	store := newFakeStore()
	now := time.Now()
	store.seed(CredentialPair{
		AccessToken:  mintToken(t, "user-1", now.Add(-time.Hour)),
		RefreshToken: mintToken(t, "user-1", now.Add(-time.Minute)),
	})
	tr := &fakeTransport{}
	m := newTestManager(t, store, tr)

	s, err := m.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if s.Kind != StateUnauthenticated {
		t.Fatalf("state = %v, want unauthenticated", s.Kind)
	}
	if store.len() != 0 {
		t.Fatal("store not cleared")
	}
	if tr.refreshes.Load() != 0 {
		t.Fatal("no refresh expected when the refresh token is expired")
	}
}

func TestRestoreMalformedRefreshIsTreatedAsExpired(t *testing.T) {
	store := newFakeStore()
	store.seed(CredentialPair{
		AccessToken:  mintToken(t, "user-1", time.Now().Add(-time.Hour)),
		RefreshToken: "not-a-jwt",
	})
	tr := &fakeTransport{}
	m := newTestManager(t, store, tr)

	s, err := m.Restore(context.Background())
	if err != nil || s.Kind != StateUnauthenticated {
		t.Fatalf("Restore: state=%v err=%v", s.Kind, err)
	}
	if tr.refreshes.Load() != 0 || store.len() != 0 {
		t.Fatal("malformed refresh token must end the session without a network call")
	}
}

func TestRestoreRefreshesExpiredAccess(t *testing.T) {
	store := newFakeStore()
	store.seed(expiredAccessPair(t, "user-1"))
	next := freshPair(t, "user-1")
	tr := &fakeTransport{
		refreshFn: func(context.Context, string) (CredentialPair, error) { return next, nil },
	}
	m := newTestManager(t, store, tr)

	s, err := m.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if s.Kind != StateAuthenticated || s.Pair != next {
		t.Fatalf("state = %+v", s)
	}
	if store.pair() != next {
		t.Fatal("refreshed pair not persisted")
	}
}

func TestRestoreRefreshFailureEndsUnauthenticated(t *testing.T) {
	store := newFakeStore()
	store.seed(expiredAccessPair(t, "user-1"))
	tr := &fakeTransport{
		refreshFn: func(context.Context, string) (CredentialPair, error) {
			return CredentialPair{}, NewAuthError(KindInvalidCredentials, 401, "revoked", nil)
		},
	}
	m := newTestManager(t, store, tr)

	s, err := m.Restore(context.Background())
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if s.Kind != StateUnauthenticated || store.len() != 0 {
		t.Fatalf("state=%v store=%d", s.Kind, store.len())
	}
}

func TestRestoreStoreReadFailureKeepsStore(t *testing.T) {
	store := newFakeStore()
	store.seed(freshPair(t, "user-1"))
	store.failGet = errors.New("keychain locked")
	m := newTestManager(t, store, &fakeTransport{})

	s, err := m.Restore(context.Background())
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if s.Kind != StateUnauthenticated {
		t.Fatalf("state = %v", s.Kind)
	}
	if _, _, deletes := store.calls(); deletes != 0 {
		t.Fatal("store must not be cleared after a read failure")
	}
}

func TestRestoreOnlyReadsOnce(t *testing.T) {
	store := newFakeStore()
	store.seed(freshPair(t, "user-1"))
	m := newTestManager(t, store, &fakeTransport{})

	if _, err := m.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	store.resetCalls()
	s, err := m.Restore(context.Background())
	if err != nil || s.Kind != StateAuthenticated {
		t.Fatalf("second Restore: state=%v err=%v", s.Kind, err)
	}
	if gets, _, _ := store.calls(); gets != 0 {
		t.Fatal("second Restore touched the store")
	}
}

func TestLoginBadPasswordLeavesStateAndStore(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTransport{loginFn: loginReturning(freshPair(t, "user-1"))}
	m := newTestManager(t, store, tr)
	if _, err := m.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	store.resetCalls()

	_, err := m.Login(context.Background(), "u", "bad")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	var ae *AuthError
	if !errors.As(err, &ae) || ae.UserMessage() != "Invalid username or password" {
		t.Fatalf("expected server message, got %v", err)
	}
	if s := m.State(); s.Kind != StateUnauthenticated {
		t.Fatalf("state = %v", s.Kind)
	}
	if gets, sets, deletes := store.calls(); gets+sets+deletes != 0 {
		t.Fatal("failed login touched the store")
	}
}

func TestLoginPersistsBeforePublishing(t *testing.T) {
	store := newFakeStore()
	pair := freshPair(t, "user-1")
	tr := &fakeTransport{loginFn: loginReturning(pair)}
	m := newTestManager(t, store, tr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	states := m.Watch(ctx)
	if s := <-states; s.Kind != StateUnknown {
		t.Fatalf("first watched state = %v", s.Kind)
	}

	got, err := m.Login(context.Background(), "u", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got != pair {
		t.Fatal("Login returned a different pair")
	}
	s := <-states
	if s.Kind != StateAuthenticated || s.Pair != pair {
		t.Fatalf("watched state = %+v", s)
	}
	if store.pair() != pair {
		t.Fatal("pair not persisted")
	}
}

func TestLoginPersistFailureLeavesStateUnchanged(t *testing.T) {
	store := newFakeStore()
	store.failSet = errors.New("read-only")
	tr := &fakeTransport{loginFn: loginReturning(freshPair(t, "user-1"))}
	m := newTestManager(t, store, tr)
	if _, err := m.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	_, err := m.Login(context.Background(), "u", "pw")
	if !errors.Is(err, ErrServer) || !errors.Is(err, ErrStorage) {
		t.Fatalf("expected server error wrapping storage failure, got %v", err)
	}
	if s := m.State(); s.Kind != StateUnauthenticated {
		t.Fatalf("state = %v", s.Kind)
	}
}

func TestWatchDeliversLatestAndClosesOnCancel(t *testing.T) {
	tr := &fakeTransport{loginFn: loginReturning(freshPair(t, "user-1"))}
	m := newTestManager(t, newFakeStore(), tr)

	ctx, cancel := context.WithCancel(context.Background())
	states := m.Watch(ctx)

	// Nobody reads while three transitions happen.
	if _, err := m.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, err := m.Login(context.Background(), "u", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := m.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if s := <-states; s.Kind != StateUnauthenticated {
		t.Fatalf("expected only the latest state, got %v", s.Kind)
	}

	cancel()
	select {
	case _, ok := <-states:
		if ok {
			t.Fatal("no further states expected")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch channel not closed after cancel")
	}
}

func TestCloseClosesWatchersAndRejectsCalls(t *testing.T) {
	b := New().WithStore(newFakeStore()).WithTransport(&fakeTransport{}).WithLogger(quietLogger())
	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	states := m.Watch(context.Background())
	<-states

	m.Close()
	m.Close()

	if _, ok := <-states; ok {
		t.Fatal("watch channel open after Close")
	}
	if _, err := m.EnsureFreshAccessToken(context.Background()); !errors.Is(err, ErrManagerNotReady) {
		t.Fatalf("expected ErrManagerNotReady, got %v", err)
	}
}

func TestRegister(t *testing.T) {
	m := newTestManager(t, newFakeStore(), &fakeTransport{})
	if err := m.Register(context.Background(), RegisterRequest{Username: "u"}); !errors.Is(err, ErrRegistrationUnsupported) {
		t.Fatalf("expected ErrRegistrationUnsupported, got %v", err)
	}

	rt := &registeringTransport{}
	m = newTestManager(t, newFakeStore(), rt)
	req := RegisterRequest{Username: "u", Email: "u@example.com", Password: "pw", Role: "brewer"}
	if err := m.Register(context.Background(), req); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if rt.got != req {
		t.Fatalf("transport received %+v", rt.got)
	}
	if m.State().Kind != StateUnknown {
		t.Fatal("Register must not change state")
	}

	rt.err = NewAuthError(KindInvalidCredentials, 400, "username taken", nil)
	if err := m.Register(context.Background(), req); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestBuilderValidation(t *testing.T) {
	if _, err := New().WithTransport(&fakeTransport{}).Build(); err == nil {
		t.Fatal("expected error without store")
	}
	if _, err := New().WithStore(newFakeStore()).Build(); err == nil {
		t.Fatal("expected error without transport")
	}

	b := New().WithStore(newFakeStore()).WithTransport(&fakeTransport{}).WithLogger(quietLogger())
	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer m.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error on builder reuse")
	}
}
