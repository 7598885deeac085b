// Package goAuthClient keeps an authenticated session alive on the client
// side of a JWT access/refresh token API.
//
// A [Manager] owns the credential pair, persists it through a
// [CredentialStore], and talks to the API through a [Transport]. Callers ask
// for a usable token with [Manager.EnsureFreshAccessToken]; when the access
// token has expired the manager refreshes it once, no matter how many
// goroutines are waiting, and hands every waiter the same new pair.
//
// Manager methods are safe to call from multiple goroutines after
// construction through [Builder.Build].
//
// # Architecture boundaries
//
// goAuthClient is the public surface. It exposes [Manager], [Builder],
// [Config], [AuthState], and [AuthError]. Storage backends live in store/,
// the HTTP transport in transport/, the single-flight refresh coordinator in
// refresh/, and token decoding in jwt/. Audit dispatch and metric counters
// live under internal/ and are never exported.
//
// # Guarantees
//
//   - A refreshed pair is written to the store before any caller receives it.
//   - At most one refresh request is in flight per manager.
//   - After Logout returns, no refresh that was already in flight can bring
//     the session back.
//   - A failed refresh ends the session: the store is cleared and the state
//     becomes unauthenticated.
//
// # What this package must NOT do
//
//   - Verify token signatures. The API is the authority; the client only
//     reads the exp and sub claims.
//   - Log token values.
//   - Import any sub-package that re-imports goAuthClient (no import cycles).
package goAuthClient
