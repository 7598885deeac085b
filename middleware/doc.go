// Package middleware adapts a goAuthClient.Manager to outgoing HTTP requests.
//
// # Adapters
//
//   - [RoundTripper] sets "Authorization: Bearer <token>" on every request,
//     asking the manager for a fresh token with the request's context.
//   - [TokenSource] exposes the manager as an oauth2.TokenSource so it plugs
//     into golang.org/x/oauth2 clients and libraries that accept one.
//   - [NewClient] builds an *http.Client from either.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Manager calls. Expiry checks,
// refresh coordination and persistence all stay in the Manager.
//
// # What this package must NOT do
//
//   - Cache tokens (the Manager already does, and a second cache would
//     outlive a logout).
//   - Retry requests that fail with 401.
//   - Parse JWTs except to report an expiry to oauth2.
package middleware
