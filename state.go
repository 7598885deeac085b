package goAuthClient

import (
	"context"
	"sync"
)

// StateKind is the coarse authentication state of a [Manager].
type StateKind uint8

const (
	// StateUnknown is the initial state until Restore completes.
	StateUnknown StateKind = iota
	StateAuthenticated
	StateUnauthenticated
)

func (k StateKind) String() string {
	switch k {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// AuthState is the observable authentication state. Pair is populated only
// when Kind is StateAuthenticated.
type AuthState struct {
	Kind StateKind
	Pair CredentialPair
}

// Authenticated reports whether s.Kind is StateAuthenticated.
func (s AuthState) Authenticated() bool {
	return s.Kind == StateAuthenticated
}

func unauthenticatedState() AuthState {
	return AuthState{Kind: StateUnauthenticated}
}

func authenticatedState(pair CredentialPair) AuthState {
	return AuthState{Kind: StateAuthenticated, Pair: pair}
}

// stateHub fans state transitions out to watchers. Each watcher channel has
// capacity one and always holds the newest undelivered state.
type stateHub struct {
	mu       sync.Mutex
	watchers map[*watcher]struct{}
	closed   bool
}

type watcher struct {
	ch   chan AuthState
	once sync.Once
}

func (w *watcher) offer(s AuthState) {
	for {
		select {
		case w.ch <- s:
			return
		default:
		}
		// Replace the stale value the reader has not taken yet.
		select {
		case <-w.ch:
		default:
		}
	}
}

func (w *watcher) close() {
	w.once.Do(func() { close(w.ch) })
}

func newStateHub() *stateHub {
	return &stateHub{watchers: make(map[*watcher]struct{})}
}

func (h *stateHub) subscribe(ctx context.Context, current AuthState) <-chan AuthState {
	w := &watcher{ch: make(chan AuthState, 1)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		w.close()
		return w.ch
	}
	w.ch <- current
	h.watchers[w] = struct{}{}
	h.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			h.unsubscribe(w)
		}()
	}
	return w.ch
}

func (h *stateHub) unsubscribe(w *watcher) {
	h.mu.Lock()
	delete(h.watchers, w)
	h.mu.Unlock()
	w.close()
}

// publish must be called in transition order; the manager calls it while
// holding its state lock.
func (h *stateHub) publish(s AuthState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watchers {
		w.offer(s)
	}
}

func (h *stateHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for w := range h.watchers {
		w.close()
		delete(h.watchers, w)
	}
}

func (h *stateHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}
