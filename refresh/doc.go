// Package refresh coordinates credential renewal so that any number of concurrent
// callers discovering an expired access token share a single refresh attempt.
//
// # Tickets
//
// A ticket is the handle for one in-flight attempt. It is created by the first
// caller that finds no attempt running, joined by every later caller, and
// discarded in the same critical section that publishes its result. A ticket can
// be invalidated (on logout); its waiters are released immediately with the
// invalidation error and the late result of the attempt is dropped.
//
// # Architecture boundaries
//
// This package owns only the single-flight discipline. Persisting the result and
// updating session state is the refresh function's job, which is why a result is
// durable before any waiter can observe it.
//
// # What this package must NOT do
//
//   - Perform network or storage I/O itself.
//   - Retry a failed attempt.
//   - Import goAuthClient, jwt, store, or transport.
package refresh
