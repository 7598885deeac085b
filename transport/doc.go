// Package transport implements goAuthClient.Transport over the JSON HTTP API
// of the auth server.
//
// # Endpoints
//
//	POST {base}/auth/login          {"username","password"}            -> {"accessToken","refreshToken"}
//	POST {base}/auth/refresh_token  Authorization: Bearer <refresh>, {} -> {"accessToken","refreshToken"}
//	POST {base}/auth/register       {"username","email","password","role"}
//
// # Error mapping
//
// Every failure is a *goAuthClient.AuthError. A request that never produced
// a response is KindNetwork; 400, 401 and 403 are KindInvalidCredentials; any
// other non-2xx status, or a 2xx reply without both tokens, is KindServer.
// The user-facing message is read from the reply's "error" field, then
// "message", and falls back to goAuthClient.DefaultErrorMessage.
//
// # What this package must NOT do
//
//   - Retry requests; the manager treats a failure as terminal for the attempt.
//   - Log or persist token values.
package transport
