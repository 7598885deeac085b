// Package jwt decodes bearer tokens into their registered claims so the session
// manager can decide when an access or refresh credential has expired.
//
// # Trust model
//
// Tokens are parsed without signature verification. The client only needs the
// exp claim to schedule renewal; the server remains the authority on whether a
// token is accepted. This is a known limitation and is kept on purpose.
//
// # What this package must NOT do
//
//   - Verify signatures or hold signing keys.
//   - Perform I/O or keep per-token state.
//   - Import goAuthClient or any store/transport package.
package jwt
